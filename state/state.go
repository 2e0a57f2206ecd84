// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/epochtally/tally/kv"
	"github.com/epochtally/tally/stackedmap"
	"github.com/epochtally/tally/tally"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a state error with the given message.
func NewError(msg string) error {
	return &Error{errors.New(msg)}
}

// storageKey is the in-memory identity of a storage slot.
type storageKey struct {
	ns  tally.Address
	key tally.Bytes32
}

// persistentKey derives the kv key for a storage slot. Hashing namespace
// and slot key together keeps component schemas collision free.
func (k *storageKey) persistentKey() []byte {
	h := tally.Blake2b(k.ns.Bytes(), k.key.Bytes())
	return h.Bytes()
}

// State manages namespaced storage for tally components.
//
// Writes are journaled in a stacked map so that a mutating call can be
// reverted as a whole: take a Checkpoint before the call, RevertTo it on
// failure. Commit flushes the journal to the backing kv store in one batch.
type State struct {
	store kv.GetPutter
	sm    *stackedmap.StackedMap[storageKey, []byte]
}

// New create a state object backed by the given kv store.
func New(store kv.GetPutter) *State {
	state := &State{store: store}
	state.sm = stackedmap.New(state.storeGetter)
	state.sm.Push() // base layer for writes outside any checkpoint
	return state
}

// storeGetter implements stackedmap.MapGetter. Absent keys read as empty raw.
func (s *State) storeGetter(key storageKey) ([]byte, bool, error) {
	raw, err := s.store.Get(key.persistentKey())
	if err != nil {
		if s.store.IsNotFound(err) {
			return nil, true, nil
		}
		return nil, false, &Error{err}
	}
	return raw, true, nil
}

// GetRawStorage returns the raw storage value. Empty raw means absent.
func (s *State) GetRawStorage(ns tally.Address, key tally.Bytes32) ([]byte, error) {
	raw, _, err := s.sm.Get(storageKey{ns, key})
	return raw, err
}

// SetRawStorage sets the raw storage value. Empty raw deletes the slot.
func (s *State) SetRawStorage(ns tally.Address, key tally.Bytes32, raw []byte) {
	s.sm.Put(storageKey{ns, key}, raw)
}

// DecodeStorage decodes raw storage value via the decode hook.
// The hook receives empty raw when the slot is absent.
func (s *State) DecodeStorage(ns tally.Address, key tally.Bytes32, decode func(raw []byte) error) error {
	raw, err := s.GetRawStorage(ns, key)
	if err != nil {
		return err
	}
	if err := decode(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// EncodeStorage encodes a storage value via the encode hook and stores it.
// Returning empty raw from the hook deletes the slot.
func (s *State) EncodeStorage(ns tally.Address, key tally.Bytes32, encode func() ([]byte, error)) error {
	raw, err := encode()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(ns, key, raw)
	return nil
}

// GetStorage returns a Bytes32 storage value.
func (s *State) GetStorage(ns tally.Address, key tally.Bytes32) (tally.Bytes32, error) {
	raw, err := s.GetRawStorage(ns, key)
	if err != nil {
		return tally.Bytes32{}, err
	}
	if len(raw) == 0 {
		return tally.Bytes32{}, nil
	}
	_, content, _, err := rlp.Split(raw)
	if err != nil {
		return tally.Bytes32{}, &Error{err}
	}
	return tally.BytesToBytes32(content), nil
}

// SetStorage sets a Bytes32 storage value. Zero value deletes the slot.
func (s *State) SetStorage(ns tally.Address, key, value tally.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(ns, key, nil)
		return
	}
	trimmed, _ := rlp.EncodeToBytes(bytes.TrimLeft(value.Bytes(), "\x00"))
	s.SetRawStorage(ns, key, trimmed)
}

// Checkpoint makes a checkpoint of the current state.
// It returns a value to be used with RevertTo.
func (s *State) Checkpoint() int {
	return s.sm.Push()
}

// RevertTo reverts the state to the given checkpoint, discarding all
// writes made since.
func (s *State) RevertTo(checkpoint int) {
	s.sm.PopTo(checkpoint)
}

// Commit writes all journaled changes to the backing store in one batch
// and flattens the journal.
func (s *State) Commit() error {
	batch := s.store.NewBatch()
	var jerr error
	s.sm.Journal(func(key storageKey, raw []byte) bool {
		if len(raw) == 0 {
			jerr = batch.Delete(key.persistentKey())
		} else {
			jerr = batch.Put(key.persistentKey(), raw)
		}
		return jerr == nil
	})
	if jerr != nil {
		return &Error{jerr}
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}

	s.sm = stackedmap.New(s.storeGetter)
	s.sm.Push()
	return nil
}
