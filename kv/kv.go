// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package kv defines the flat key-value interfaces the state layer is
// built on.
package kv

// Range is the half-open key range [From, To).
type Range struct {
	From []byte
	To   []byte
}

// Getter reads keys.
type Getter interface {
	// Get returns the value for key. A missing key is an error,
	// distinguishable via IsNotFound.
	Get(key []byte) (value []byte, err error)
	Has(key []byte) (bool, error)
	IsNotFound(error) bool

	NewIterator(r Range) Iterator
}

// Putter writes keys.
type Putter interface {
	Put(key, value []byte) error
	Delete(key []byte) error

	NewBatch() Batch
}

// GetPutter reads and writes keys.
type GetPutter interface {
	Getter
	Putter
}

// GetPutCloser is a GetPutter owning a closable resource.
type GetPutCloser interface {
	GetPutter
	Close() error
}

// Batch accumulates writes and commits them in one Write call.
type Batch interface {
	Putter

	Len() int
	Write() error
}

// Iterator walks keys in order within a range.
type Iterator interface {
	Next() bool
	Release()
	Error() error

	Key() []byte
	Value() []byte
}
