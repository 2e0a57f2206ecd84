// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package clock abstracts the external epoch counter consumed by the feeds.
package clock

import "sync/atomic"

// Clock reads the current epoch. Implementations must be monotonically
// non-decreasing. The tally core only ever reads the clock.
type Clock interface {
	CurrentEpoch() uint64
}

// Manual is a host-driven clock. The host (or a test) advances it
// explicitly; it never moves backwards.
type Manual struct {
	epoch atomic.Uint64
}

// NewManual creates a manual clock at the given epoch.
func NewManual(epoch uint64) *Manual {
	m := &Manual{}
	m.epoch.Store(epoch)
	return m
}

// CurrentEpoch implements Clock.
func (m *Manual) CurrentEpoch() uint64 {
	return m.epoch.Load()
}

// Advance moves the clock forward by n epochs.
func (m *Manual) Advance(n uint64) {
	m.epoch.Add(n)
}

// Set moves the clock to the given epoch. Attempts to move backwards are ignored.
func (m *Manual) Set(epoch uint64) {
	for {
		current := m.epoch.Load()
		if epoch <= current {
			return
		}
		if m.epoch.CompareAndSwap(current, epoch) {
			return
		}
	}
}
