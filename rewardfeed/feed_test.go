// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewardfeed

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epochtally/tally/authority"
	"github.com/epochtally/tally/clock"
	"github.com/epochtally/tally/lvldb"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var (
	feeder = tally.BytesToAddress([]byte("feeder"))
	rando  = tally.BytesToAddress([]byte("rando"))
)

func newTestFeed(t *testing.T) (*Feed, *clock.Manual) {
	kv, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	clk := clock.NewManual(2)
	return New(tally.BytesToAddress([]byte("rewardfeed")), state.New(kv), authority.AllowAll{}, clk), clk
}

func TestLifecycle(t *testing.T) {
	feed, _ := newTestFeed(t)

	// seal and abort need an open report
	assert.Equal(t, ErrNotOpen, feed.Seal(feeder))
	assert.Equal(t, ErrNotOpen, feed.Abort(feeder))

	assert.Equal(t, ErrZeroUnits, feed.Open(feeder, big.NewInt(100), 0))
	assert.Equal(t, ErrBadReward, feed.Open(feeder, big.NewInt(-1), 4))

	require.NoError(t, feed.Open(feeder, big.NewInt(100), 4))
	assert.Equal(t, ErrReportExists, feed.Open(feeder, big.NewInt(100), 4))

	status, err := feed.Status(1)
	assert.Nil(t, err)
	assert.Equal(t, tally.StatusOpen, status)
	_, err = feed.Summary(1)
	assert.Equal(t, ErrNotSealed, err)

	require.NoError(t, feed.Seal(feeder))

	available, err := feed.Available(1)
	assert.Nil(t, err)
	assert.True(t, available)

	summary, err := feed.Summary(1)
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(100), summary.TotalReward)
	assert.Equal(t, uint64(4), summary.TotalUnits)

	next, err := feed.NextEpoch()
	assert.Nil(t, err)
	assert.Equal(t, uint64(2), next)
}

func TestAbortReopens(t *testing.T) {
	feed, _ := newTestFeed(t)

	require.NoError(t, feed.Open(feeder, big.NewInt(100), 4))
	require.NoError(t, feed.Abort(feeder))

	status, err := feed.Status(1)
	assert.Nil(t, err)
	assert.Equal(t, tally.StatusNone, status)

	require.NoError(t, feed.Open(feeder, big.NewInt(200), 8))
	require.NoError(t, feed.Seal(feeder))

	summary, err := feed.Summary(1)
	assert.Nil(t, err)
	assert.Equal(t, big.NewInt(200), summary.TotalReward)
}

func TestOpenRequiresElapsedEpoch(t *testing.T) {
	kv, _ := lvldb.NewMem()
	t.Cleanup(func() { kv.Close() })

	feed := New(tally.BytesToAddress([]byte("rewardfeed")), state.New(kv), authority.AllowAll{}, clock.NewManual(1))
	assert.Equal(t, ErrBadEpoch, feed.Open(feeder, big.NewInt(100), 4))
}

func TestEqualShare(t *testing.T) {
	feed, _ := newTestFeed(t)

	require.NoError(t, feed.Open(feeder, big.NewInt(100), 3))
	require.NoError(t, feed.Seal(feeder))

	sealed, err := feed.Sealed(1)
	assert.Nil(t, err)
	assert.True(t, sealed)

	// every staker's unit share is identical and floored
	for _, staker := range []tally.Address{feeder, rando} {
		share, err := feed.Share(1, staker, nil)
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(33), share)
	}

	_, err = feed.Share(2, rando, nil)
	assert.Equal(t, ErrNotSealed, err)
}
