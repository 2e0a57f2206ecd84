// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package client

import (
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epochtally/tally/api"
	"github.com/epochtally/tally/authority"
	"github.com/epochtally/tally/clock"
	"github.com/epochtally/tally/contribution"
	"github.com/epochtally/tally/distributor"
	"github.com/epochtally/tally/lvldb"
	"github.com/epochtally/tally/rewardfeed"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var (
	admin  = tally.BytesToAddress([]byte("admin"))
	feeder = tally.BytesToAddress([]byte("feeder"))
	staker = tally.BytesToAddress([]byte("staker"))
)

func newTestClient(t *testing.T) *Client {
	kv, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	st := state.New(kv)
	auth := authority.New(tally.BytesToAddress([]byte("ns-authority")), st)
	require.NoError(t, auth.Initialize(admin))
	require.NoError(t, auth.Grant(admin, authority.RoleFeeder, feeder))

	clk := clock.NewManual(2)
	feed := contribution.New(tally.BytesToAddress([]byte("ns-contribution")), st, auth, clk)
	rewardFeed := rewardfeed.New(tally.BytesToAddress([]byte("ns-rewardfeed")), st, auth, clk)
	pool := distributor.NewPool(tally.BytesToAddress([]byte("ns-pool")), st)
	dist := distributor.New(tally.BytesToAddress([]byte("ns-distributor")), st, auth, clk, feed, pool, nil)

	require.NoError(t, feed.Open(feeder, big.NewInt(70), 1))
	require.NoError(t, feed.Push(feeder, []contribution.StakerWeight{
		{Staker: staker, Weight: big.NewInt(70)},
	}))
	require.NoError(t, feed.Seal(feeder))

	require.NoError(t, rewardFeed.Open(feeder, big.NewInt(90), 3))
	require.NoError(t, rewardFeed.Seal(feeder))

	server := httptest.NewServer(api.New(feed, rewardFeed, dist, nil, api.Options{AllowedOrigins: "*"}))
	t.Cleanup(server.Close)
	return New(server.URL)
}

func TestClientReads(t *testing.T) {
	c := newTestClient(t)

	healthy, err := c.Healthy()
	require.NoError(t, err)
	assert.True(t, healthy)

	next, err := c.NextEpoch()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next)

	report, err := c.GetReport(1)
	require.NoError(t, err)
	assert.Equal(t, "sealed", report.Status)
	require.NotNil(t, report.Summary)
	assert.Equal(t, big.NewInt(70), report.Summary.TotalWeight)

	weight, found, err := c.GetWeight(1, staker)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, big.NewInt(70), weight)

	_, found, err = c.GetWeight(1, admin)
	require.NoError(t, err)
	assert.False(t, found)

	rewardReport, err := c.GetRewardReport(1)
	require.NoError(t, err)
	require.NotNil(t, rewardReport.Summary)
	assert.Equal(t, uint64(3), rewardReport.Summary.TotalUnits)

	claimable, err := c.GetClaimable(staker)
	require.NoError(t, err)
	assert.Equal(t, "0", claimable.Claimable) // epoch never funded
	assert.Equal(t, uint64(2), claimable.NextUnprocessedEpoch)

	// history disabled on this host
	_, err = c.GetHistory(staker, 10, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
