// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package schema

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/epochtally/tally/tally"
)

// Key is anything usable as a mapping key.
type Key interface {
	Bytes() []byte
}

// U64 adapts an uint64 (e.g. an epoch number or a list index) to Key.
type U64 uint64

// Bytes returns the big-endian form of the key.
func (u U64) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(u))
	return b[:]
}

// Mapping is a persistent key/value collection, similar to a mapping in
// storage-oriented contract code. Values are RLP encoded. Absence is
// explicit: Get reports whether the key is present, there is no reserved
// sentinel value.
type Mapping[K Key, V any] struct {
	context *Context
	basePos tally.Bytes32
}

// NewMapping creates a mapping rooted at the given slot.
func NewMapping[K Key, V any](context *Context, pos tally.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

func (m *Mapping[K, V]) position(key K) tally.Bytes32 {
	return tally.Blake2b(key.Bytes(), m.basePos.Bytes())
}

// Get retrieves the value for the given key.
// The found flag is false when the key has never been set (or was deleted);
// value is the zero value in that case.
func (m *Mapping[K, V]) Get(key K) (value V, found bool, err error) {
	err = m.context.state.DecodeStorage(m.context.ns, m.position(key), func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		found = true
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set stores the value for the given key.
func (m *Mapping[K, V]) Set(key K, value V) error {
	return m.context.state.EncodeStorage(m.context.ns, m.position(key), func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Delete removes the key.
func (m *Mapping[K, V]) Delete(key K) error {
	return m.context.state.EncodeStorage(m.context.ns, m.position(key), func() ([]byte, error) {
		return nil, nil
	})
}

// Has reports whether the key is present.
func (m *Mapping[K, V]) Has(key K) (bool, error) {
	raw, err := m.context.state.GetRawStorage(m.context.ns, m.position(key))
	if err != nil {
		return false, err
	}
	return len(raw) > 0, nil
}
