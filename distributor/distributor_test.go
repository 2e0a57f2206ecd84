// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epochtally/tally/authority"
	"github.com/epochtally/tally/clock"
	"github.com/epochtally/tally/contribution"
	"github.com/epochtally/tally/lvldb"
	"github.com/epochtally/tally/rewardfeed"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var (
	admin    = tally.BytesToAddress([]byte("admin"))
	feeder   = tally.BytesToAddress([]byte("feeder"))
	treasury = tally.BytesToAddress([]byte("treasury"))
	stakerA  = tally.BytesToAddress([]byte("staker-a"))
	stakerB  = tally.BytesToAddress([]byte("staker-b"))
	stakerC  = tally.BytesToAddress([]byte("staker-c"))
	delegate = tally.BytesToAddress([]byte("delegate"))
)

type testEnv struct {
	clk  *clock.Manual
	feed *contribution.Feed
	pool *Pool
	dist *Distributor
}

type stubSource struct {
	accrued *big.Int
}

func (s *stubSource) Pull(tally.Address) (*big.Int, error) {
	amount := s.accrued
	s.accrued = new(big.Int)
	return amount, nil
}

func newTestEnv(t *testing.T, source RewardSource) *testEnv {
	kv, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	st := state.New(kv)
	auth := authority.New(tally.BytesToAddress([]byte("ns-authority")), st)
	require.NoError(t, auth.Initialize(admin))
	require.NoError(t, auth.Grant(admin, authority.RoleFeeder, feeder))

	clk := clock.NewManual(2)
	feed := contribution.New(tally.BytesToAddress([]byte("ns-contribution")), st, auth, clk)
	pool := NewPool(tally.BytesToAddress([]byte("ns-pool")), st)
	dist := New(tally.BytesToAddress([]byte("ns-distributor")), st, auth, clk, feed, pool, source)
	require.NoError(t, dist.SetTreasury(admin, treasury))

	return &testEnv{clk: clk, feed: feed, pool: pool, dist: dist}
}

// sealEpoch opens, populates and seals the feed's next epoch.
func (env *testEnv) sealEpoch(t *testing.T, total int64, weights map[tally.Address]int64) {
	require.NoError(t, env.feed.Open(feeder, big.NewInt(total), uint64(len(weights))))
	var batch []contribution.StakerWeight
	for staker, w := range weights {
		batch = append(batch, contribution.StakerWeight{Staker: staker, Weight: big.NewInt(w)})
	}
	require.NoError(t, env.feed.Push(feeder, batch))
	require.NoError(t, env.feed.Seal(feeder))
}

// fundEpoch records the epoch reward and backs it with pool balance.
func (env *testEnv) fundEpoch(t *testing.T, epoch uint64, amount int64) {
	require.NoError(t, env.dist.SetEpochReward(admin, epoch, big.NewInt(amount)))
	require.NoError(t, env.pool.Fund(big.NewInt(amount)))
}

func TestClaimProportionalScenario(t *testing.T) {
	env := newTestEnv(t, nil)

	// epoch 1: A=400, B=300, treasury=300 of 1000, pushed in two batches
	require.NoError(t, env.feed.Open(feeder, big.NewInt(1000), 3))
	require.NoError(t, env.feed.Push(feeder, []contribution.StakerWeight{
		{Staker: stakerA, Weight: big.NewInt(400)},
		{Staker: stakerB, Weight: big.NewInt(300)},
	}))
	require.NoError(t, env.feed.Push(feeder, []contribution.StakerWeight{
		{Staker: treasury, Weight: big.NewInt(300)},
	}))
	require.NoError(t, env.feed.Seal(feeder))
	env.fundEpoch(t, 1, 1000)

	// A's 40% share would trip the default 10% cap
	require.NoError(t, env.dist.SetCapBps(admin, 4000))

	for staker, want := range map[tally.Address]int64{
		stakerA:  400,
		stakerB:  300,
		treasury: 300,
	} {
		settlement, err := env.dist.Claim(staker, staker)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(want), settlement.Amount)
		assert.Equal(t, uint64(1), settlement.FromEpoch)
		assert.Equal(t, uint64(1), settlement.ToEpoch)

		credit, err := env.pool.CreditOf(staker)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(want), credit)
	}

	// everything paid out, nothing stranded
	balance, err := env.pool.Balance()
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Sign())
}

func TestRepeatedClaimReturnsZero(t *testing.T) {
	env := newTestEnv(t, nil)

	env.sealEpoch(t, 100, map[tally.Address]int64{treasury: 100})
	env.fundEpoch(t, 1, 100)

	settlement, err := env.dist.Claim(treasury, treasury)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), settlement.Amount)

	cursor, err := env.dist.Cursor(treasury)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cursor)

	// nothing newly sealed: no-op, cursor unchanged
	settlement, err = env.dist.Claim(treasury, treasury)
	require.NoError(t, err)
	assert.Equal(t, 0, settlement.Amount.Sign())

	cursor, err = env.dist.Cursor(treasury)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cursor)
}

func TestClaimStopsAtFirstUnsealedEpoch(t *testing.T) {
	env := newTestEnv(t, nil)

	env.sealEpoch(t, 100, map[tally.Address]int64{treasury: 100})
	env.fundEpoch(t, 1, 100)

	// epochs 2 and 3 have elapsed but are not sealed yet
	env.clk.Set(4)

	amount, next, err := env.dist.Claimable(treasury)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), amount)
	assert.Equal(t, uint64(2), next)

	settlement, err := env.dist.Claim(treasury, treasury)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), settlement.Amount)
	assert.Equal(t, uint64(1), settlement.ToEpoch)

	// seal the gap and the claim resumes from it
	env.sealEpoch(t, 50, map[tally.Address]int64{treasury: 50})
	env.fundEpoch(t, 2, 200)

	settlement, err = env.dist.Claim(treasury, treasury)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), settlement.Amount)
	assert.Equal(t, uint64(2), settlement.FromEpoch)
	assert.Equal(t, uint64(2), settlement.ToEpoch)
}

func TestCapEnforcement(t *testing.T) {
	env := newTestEnv(t, nil)

	// treasury would take 60%, A takes 40%; default cap is 10%
	env.sealEpoch(t, 1000, map[tally.Address]int64{
		stakerA:  400,
		treasury: 600,
	})
	env.fundEpoch(t, 1, 1000)

	_, err := env.dist.Claim(stakerA, stakerA)
	assert.Equal(t, ErrCapExceeded, err)

	// failed claim left the cursor untouched
	cursor, err := env.dist.Cursor(stakerA)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cursor)

	// treasury is exempt far above the cap
	settlement, err := env.dist.Claim(treasury, treasury)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), settlement.Amount)
}

func TestDustConservation(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.dist.SetCapBps(admin, 0))

	// 3 equal stakers, epoch funded with 100
	env.sealEpoch(t, 3, map[tally.Address]int64{
		stakerA: 1,
		stakerB: 1,
		stakerC: 1,
	})
	env.fundEpoch(t, 1, 100)

	claimed := new(big.Int)
	for _, staker := range []tally.Address{stakerA, stakerB, stakerC} {
		settlement, err := env.dist.Claim(staker, staker)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(33), settlement.Amount)
		claimed.Add(claimed, settlement.Amount)
	}
	assert.Equal(t, big.NewInt(99), claimed)

	// the shortfall stays observable in the pool
	balance, err := env.pool.Balance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), balance)
}

func TestDelegatedClaim(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.dist.SetCapBps(admin, 0))

	env.sealEpoch(t, 100, map[tally.Address]int64{stakerA: 100})
	env.fundEpoch(t, 1, 100)

	// unapproved delegate is rejected before any mutation
	_, err := env.dist.Claim(delegate, stakerA)
	assert.Equal(t, ErrNotAuthorized, err)

	require.NoError(t, env.dist.SetClaimApproval(stakerA, delegate, true))
	ok, err := env.dist.Approved(stakerA, delegate)
	require.NoError(t, err)
	assert.True(t, ok)

	settlement, err := env.dist.Claim(delegate, stakerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), settlement.Amount)
	assert.Equal(t, delegate, settlement.Caller)

	// the payout goes to the staker, not the delegate
	credit, err := env.pool.CreditOf(stakerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), credit)

	// revocation takes effect immediately
	require.NoError(t, env.dist.SetClaimApproval(stakerA, delegate, false))
	_, err = env.dist.Claim(delegate, stakerA)
	assert.Equal(t, ErrNotAuthorized, err)
}

func TestBatchClaimAtomicity(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.dist.SetCapBps(admin, 0))

	env.sealEpoch(t, 100, map[tally.Address]int64{
		stakerA: 50,
		stakerB: 50,
	})
	env.fundEpoch(t, 1, 100)

	require.NoError(t, env.dist.SetClaimApproval(stakerA, delegate, true))

	// B never approved the delegate: the whole call fails
	_, err := env.dist.BatchClaim(delegate, []tally.Address{stakerA, stakerB})
	assert.Equal(t, ErrNotAuthorized, err)

	// no partial payout to the approved member
	credit, err := env.pool.CreditOf(stakerA)
	require.NoError(t, err)
	assert.Equal(t, 0, credit.Sign())
	cursor, err := env.dist.Cursor(stakerA)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cursor)

	require.NoError(t, env.dist.SetClaimApproval(stakerB, delegate, true))
	total, err := env.dist.BatchClaim(delegate, []tally.Address{stakerA, stakerB})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total)

	// an authorized member with nothing left contributes 0
	total, err = env.dist.BatchClaim(delegate, []tally.Address{stakerA, stakerB})
	require.NoError(t, err)
	assert.Equal(t, 0, total.Sign())
}

func TestBatchClaimRevertsAfterPartialPayout(t *testing.T) {
	env := newTestEnv(t, nil)

	// A and B sit at the default 10% cap, C is far over it
	env.sealEpoch(t, 100, map[tally.Address]int64{
		stakerA: 10,
		stakerB: 10,
		stakerC: 80,
	})
	env.fundEpoch(t, 1, 100)

	for _, staker := range []tally.Address{stakerA, stakerB, stakerC} {
		require.NoError(t, env.dist.SetClaimApproval(staker, delegate, true))
	}

	// A and B are paid before C trips the cap; the whole call reverts
	_, err := env.dist.BatchClaim(delegate, []tally.Address{stakerA, stakerB, stakerC})
	assert.Equal(t, ErrCapExceeded, err)

	balance, err := env.pool.Balance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), balance)

	for _, staker := range []tally.Address{stakerA, stakerB, stakerC} {
		credit, err := env.pool.CreditOf(staker)
		require.NoError(t, err)
		assert.Equal(t, 0, credit.Sign())
		cursor, err := env.dist.Cursor(staker)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)
	}

	// the reverted state is still fully usable
	total, err := env.dist.BatchClaim(delegate, []tally.Address{stakerA, stakerB})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), total)

	balance, err = env.pool.Balance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(80), balance)
}

func TestBatchClaimBounds(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.dist.BatchClaim(stakerA, nil)
	assert.Equal(t, ErrEmptyBatch, err)

	require.NoError(t, env.dist.SetClaimConfig(admin, ClaimConfig{
		MaxClaimEpochsPerCall: 32,
		MaxStakersPerBatch:    1,
	}))
	_, err = env.dist.BatchClaim(stakerA, []tally.Address{stakerA, stakerA})
	assert.Equal(t, ErrBatchTooLarge, err)
}

func TestClaimRangeBoundedByConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.dist.SetCapBps(admin, 0))
	require.NoError(t, env.dist.SetClaimConfig(admin, ClaimConfig{
		MaxClaimEpochsPerCall: 2,
		MaxStakersPerBatch:    16,
	}))

	for epoch := uint64(1); epoch <= 3; epoch++ {
		env.clk.Set(epoch + 1)
		env.sealEpoch(t, 10, map[tally.Address]int64{stakerA: 10})
		env.fundEpoch(t, epoch, 10)
	}

	// first call walks epochs 1-2, second picks up epoch 3
	settlement, err := env.dist.Claim(stakerA, stakerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), settlement.Amount)
	assert.Equal(t, uint64(2), settlement.ToEpoch)

	settlement, err = env.dist.Claim(stakerA, stakerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), settlement.Amount)
	assert.Equal(t, uint64(3), settlement.ToEpoch)
}

func TestInsufficientPoolRevertsClaim(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.dist.SetCapBps(admin, 0))

	env.sealEpoch(t, 100, map[tally.Address]int64{stakerA: 100})
	// epoch reward recorded but the pool holds nothing
	require.NoError(t, env.dist.SetEpochReward(admin, 1, big.NewInt(100)))

	_, err := env.dist.Claim(stakerA, stakerA)
	assert.Equal(t, ErrInsufficientPool, err)

	// the cursor update was reverted along with the failed payout
	cursor, err := env.dist.Cursor(stakerA)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cursor)
}

func TestAdminGating(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, ErrNotAdmin, env.dist.SetTreasury(stakerA, stakerA))
	assert.Equal(t, ErrNotAdmin, env.dist.SetCapBps(stakerA, 0))
	assert.Equal(t, ErrNotAdmin, env.dist.SetEpochReward(stakerA, 1, big.NewInt(1)))
	assert.Equal(t, ErrNotAdmin, env.dist.SetClaimConfig(stakerA, ClaimConfig{1, 1}))

	assert.Equal(t, ErrBadConfig, env.dist.SetClaimConfig(admin, ClaimConfig{0, 1}))
	assert.Equal(t, ErrBadCap, env.dist.SetCapBps(admin, 10001))
	assert.Equal(t, ErrBadAmount, env.dist.SetEpochReward(admin, 1, big.NewInt(-1)))
}

func TestPullFromUpstream(t *testing.T) {
	source := &stubSource{accrued: big.NewInt(500)}
	env := newTestEnv(t, source)

	_, _, err := env.dist.PullFromUpstream(stakerA)
	assert.Equal(t, ErrNotAdmin, err)

	amount, epoch, err := env.dist.PullFromUpstream(admin)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), amount)
	assert.Equal(t, uint64(1), epoch)

	funded, err := env.dist.Reward(1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), funded)

	// nothing accrued: no-op returning 0
	amount, _, err = env.dist.PullFromUpstream(admin)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Sign())
	funded, err = env.dist.Reward(1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), funded)
}

func TestEqualSplitPolicy(t *testing.T) {
	kv, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	st := state.New(kv)
	auth := authority.New(tally.BytesToAddress([]byte("ns-authority")), st)
	require.NoError(t, auth.Initialize(admin))
	require.NoError(t, auth.Grant(admin, authority.RoleFeeder, feeder))

	clk := clock.NewManual(2)
	feed := rewardfeed.New(tally.BytesToAddress([]byte("ns-rewardfeed")), st, auth, clk)
	pool := NewPool(tally.BytesToAddress([]byte("ns-pool")), st)
	dist := New(tally.BytesToAddress([]byte("ns-distributor")), st, auth, clk, feed, pool, nil)

	// identical shares carry no concentration risk: cap disabled
	require.NoError(t, dist.SetCapBps(admin, 0))

	require.NoError(t, feed.Open(feeder, big.NewInt(90), 3))
	require.NoError(t, feed.Seal(feeder))
	require.NoError(t, pool.Fund(big.NewInt(90)))

	for _, staker := range []tally.Address{stakerA, stakerB} {
		settlement, err := dist.Claim(staker, staker)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(30), settlement.Amount)
	}
}

func TestPullFromUpstreamRequiresCompletedEpoch(t *testing.T) {
	kv, _ := lvldb.NewMem()
	t.Cleanup(func() { kv.Close() })
	st := state.New(kv)
	auth := authority.New(tally.BytesToAddress([]byte("ns-authority")), st)
	require.NoError(t, auth.Initialize(admin))

	clk := clock.NewManual(1)
	pool := NewPool(tally.BytesToAddress([]byte("ns-pool")), st)
	feed := contribution.New(tally.BytesToAddress([]byte("ns-contribution")), st, auth, clk)
	dist := New(tally.BytesToAddress([]byte("ns-distributor")), st, auth, clk, feed, pool, &stubSource{accrued: big.NewInt(1)})

	_, _, err := dist.PullFromUpstream(admin)
	assert.Equal(t, ErrNoCompletedEpoch, err)
}
