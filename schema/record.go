// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package schema

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/epochtally/tally/tally"
)

// Record is a single RLP encoded storage slot holding a struct value,
// e.g. a scratch running-total record or a config record. Absence is
// explicit via the found flag.
type Record[V any] struct {
	context *Context
	pos     tally.Bytes32
}

// NewRecord creates a record accessor at the given slot.
func NewRecord[V any](context *Context, pos tally.Bytes32) *Record[V] {
	return &Record[V]{context: context, pos: pos}
}

// Get retrieves the record. found is false when the slot is empty.
func (r *Record[V]) Get() (value V, found bool, err error) {
	err = r.context.state.DecodeStorage(r.context.ns, r.pos, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		found = true
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set stores the record.
func (r *Record[V]) Set(value V) error {
	return r.context.state.EncodeStorage(r.context.ns, r.pos, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Clear empties the slot.
func (r *Record[V]) Clear() error {
	return r.context.state.EncodeStorage(r.context.ns, r.pos, func() ([]byte, error) {
		return nil, nil
	})
}
