// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package schema

import (
	"encoding/binary"
	"math/big"

	"github.com/epochtally/tally/tally"
)

// Uint64 is a single uint64 storage slot.
type Uint64 struct {
	context *Context
	pos     tally.Bytes32
}

// NewUint64 creates an uint64 slot accessor.
func NewUint64(context *Context, pos tally.Bytes32) *Uint64 {
	return &Uint64{context: context, pos: pos}
}

// Get returns the slot value, 0 when unset.
func (u *Uint64) Get() (uint64, error) {
	b32, err := u.context.state.GetStorage(u.context.ns, u.pos)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b32[24:]), nil
}

// Set stores the slot value. 0 clears the slot.
func (u *Uint64) Set(value uint64) {
	var b32 tally.Bytes32
	binary.BigEndian.PutUint64(b32[24:], value)
	u.context.state.SetStorage(u.context.ns, u.pos, b32)
}

// BigInt is a single unsigned big integer storage slot.
// Values exceeding 256 bits are truncated to fit tally.Bytes32.
type BigInt struct {
	context *Context
	pos     tally.Bytes32
}

// NewBigInt creates a big integer slot accessor.
func NewBigInt(context *Context, pos tally.Bytes32) *BigInt {
	return &BigInt{context: context, pos: pos}
}

// Get returns the slot value, zero when unset.
func (b *BigInt) Get() (*big.Int, error) {
	storage, err := b.context.state.GetStorage(b.context.ns, b.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(storage.Bytes()), nil
}

// Set stores the slot value.
func (b *BigInt) Set(value *big.Int) {
	b.context.state.SetStorage(b.context.ns, b.pos, tally.BytesToBytes32(value.Bytes()))
}

// Add adds value to the slot.
func (b *BigInt) Add(value *big.Int) error {
	current, err := b.Get()
	if err != nil {
		return err
	}
	current.Add(current, value)
	b.Set(current)
	return nil
}

// Sub subtracts value from the slot.
func (b *BigInt) Sub(value *big.Int) error {
	current, err := b.Get()
	if err != nil {
		return err
	}
	current.Sub(current, value)
	b.Set(current)
	return nil
}

// Address is a single address storage slot.
type Address struct {
	context *Context
	pos     tally.Bytes32
}

// NewAddress creates an address slot accessor.
func NewAddress(context *Context, pos tally.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

// Get returns the slot value, zero address when unset.
func (a *Address) Get() (tally.Address, error) {
	b32, err := a.context.state.GetStorage(a.context.ns, a.pos)
	if err != nil {
		return tally.Address{}, err
	}
	return tally.BytesToAddress(b32.Bytes()), nil
}

// Set stores the slot value. Zero address clears the slot.
func (a *Address) Set(addr tally.Address) {
	a.context.state.SetStorage(a.context.ns, a.pos, tally.BytesToBytes32(addr.Bytes()))
}
