// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package schema provides typed accessors over namespaced state storage.
// Each component owns one storage namespace and declares its slots by
// versioned name, which permits additive schema evolution.
package schema

import (
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

// Context binds a storage namespace to a state instance.
type Context struct {
	ns    tally.Address
	state *state.State
}

// NewContext creates a storage context for the given namespace.
func NewContext(ns tally.Address, state *state.State) *Context {
	return &Context{ns: ns, state: state}
}

// State returns the underlying state.
func (c *Context) State() *state.State {
	return c.state
}

// Namespace returns the storage namespace.
func (c *Context) Namespace() tally.Address {
	return c.ns
}

// Slot derives the storage slot for a versioned name, e.g. "v1/next-epoch".
func Slot(name string) tally.Bytes32 {
	return tally.Blake2b([]byte(name))
}
