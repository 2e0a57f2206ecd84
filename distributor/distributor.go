// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package distributor settles rewards from sealed epochs. Each staker
// carries a claim cursor; a claim walks forward from it through sealed
// epochs below the clock's current value, sums the shares the configured
// policy computes, enforces the per-wallet concentration cap (treasury
// exempt) and pays the total out in one effect.
package distributor

import (
	"math/big"

	"github.com/epochtally/tally/authority"
	"github.com/epochtally/tally/clock"
	"github.com/epochtally/tally/log"
	"github.com/epochtally/tally/metrics"
	"github.com/epochtally/tally/schema"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var logger = log.WithContext("pkg", "distributor")

var (
	metricClaims        = metrics.LazyLoadCounter("distributor_claims_total")
	metricCapRejections = metrics.LazyLoadCounter("distributor_cap_rejections_total")
	metricUpstreamPulls = metrics.LazyLoadCounter("distributor_upstream_pulls_total")
)

var (
	slotCursors   = schema.Slot("v1/cursors")
	slotApprovals = schema.Slot("v1/approvals")
	slotConfig    = schema.Slot("v1/claim-config")
	slotTreasury  = schema.Slot("v1/treasury")
	slotRewards   = schema.Slot("v1/epoch-rewards")
	slotCapBps    = schema.Slot("v1/cap-bps")
)

const fullBps = 10000

// Distributor implements reward settlement over namespaced state.
type Distributor struct {
	context   *schema.Context
	policy    authority.Policy
	clock     clock.Clock
	share     SharePolicy
	payer     Payer
	source    RewardSource
	identity  tally.Address
	cursors   *schema.Mapping[addrKey, uint64]
	approvals *schema.Mapping[approvalKey, bool]
	config    *schema.Record[*ClaimConfig]
	treasury  *schema.Address
	rewards   *schema.Mapping[schema.U64, *big.Int]
	capBps    *schema.Record[uint32]
}

// New create a distributor bound to the given namespace. source may be
// nil when no upstream accrual exists.
func New(
	ns tally.Address,
	st *state.State,
	policy authority.Policy,
	clk clock.Clock,
	share SharePolicy,
	payer Payer,
	source RewardSource,
) *Distributor {
	context := schema.NewContext(ns, st)
	return &Distributor{
		context:   context,
		policy:    policy,
		clock:     clk,
		share:     share,
		payer:     payer,
		source:    source,
		identity:  ns,
		cursors:   schema.NewMapping[addrKey, uint64](context, slotCursors),
		approvals: schema.NewMapping[approvalKey, bool](context, slotApprovals),
		config:    schema.NewRecord[*ClaimConfig](context, slotConfig),
		treasury:  schema.NewAddress(context, slotTreasury),
		rewards:   schema.NewMapping[schema.U64, *big.Int](context, slotRewards),
		capBps:    schema.NewRecord[uint32](context, slotCapBps),
	}
}

// atomically runs fn inside a state checkpoint, reverting every
// intermediate write on failure.
func (d *Distributor) atomically(fn func() error) error {
	cp := d.context.State().Checkpoint()
	if err := fn(); err != nil {
		d.context.State().RevertTo(cp)
		return err
	}
	return nil
}

func (d *Distributor) requireAdmin(caller tally.Address) error {
	ok, err := d.policy.Has(authority.RoleAdmin, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAdmin
	}
	return nil
}

// authorized reports whether caller may claim on behalf of staker.
// Self-claim is always permitted.
func (d *Distributor) authorized(caller, staker tally.Address) (bool, error) {
	if caller == staker {
		return true, nil
	}
	allowed, found, err := d.approvals.Get(approvalKey{staker, caller})
	if err != nil {
		return false, err
	}
	return found && allowed, nil
}

// SetClaimApproval toggles delegate's right to claim on the caller's behalf.
func (d *Distributor) SetClaimApproval(caller, delegate tally.Address, allowed bool) error {
	return d.atomically(func() error {
		key := approvalKey{caller, delegate}
		if !allowed {
			return d.approvals.Delete(key)
		}
		if err := d.approvals.Set(key, true); err != nil {
			return err
		}
		logger.Debug("claim approval set", "account", caller, "delegate", delegate)
		return nil
	})
}

// Approved reports whether delegate may claim on account's behalf.
func (d *Distributor) Approved(account, delegate tally.Address) (bool, error) {
	return d.authorized(delegate, account)
}

// Cursor returns the staker's last settled epoch, 0 when never claimed.
func (d *Distributor) Cursor(staker tally.Address) (uint64, error) {
	cursor, _, err := d.cursors.Get(addrKey(staker))
	return cursor, err
}

// Config returns the claim config, defaults when never set.
func (d *Distributor) Config() (*ClaimConfig, error) {
	cfg, found, err := d.config.Get()
	if err != nil {
		return nil, err
	}
	if !found {
		return &ClaimConfig{
			MaxClaimEpochsPerCall: tally.DefaultMaxClaimEpochsPerCall,
			MaxStakersPerBatch:    tally.DefaultMaxStakersPerBatch,
		}, nil
	}
	return cfg, nil
}

// CapBps returns the concentration cap in basis points, the default when
// never set. 0 means the cap is disabled.
func (d *Distributor) CapBps() (uint32, error) {
	bps, found, err := d.capBps.Get()
	if err != nil {
		return 0, err
	}
	if !found {
		return tally.DefaultCapBps, nil
	}
	return bps, nil
}

// Treasury returns the cap-exempt treasury address, zero when never set.
func (d *Distributor) Treasury() (tally.Address, error) {
	return d.treasury.Get()
}

// Reward returns the epoch's funded reward, zero when never funded.
func (d *Distributor) Reward(epoch uint64) (*big.Int, error) {
	funded, found, err := d.rewards.Get(schema.U64(epoch))
	if err != nil {
		return nil, err
	}
	if !found {
		return new(big.Int), nil
	}
	return funded, nil
}

// checkCap rejects a share exceeding capBps of the epoch's funded reward.
// The treasury is exempt; capBps 0 disables the cap. Compared by
// cross-multiplication to stay in integer arithmetic.
func (d *Distributor) checkCap(staker tally.Address, share, funded *big.Int) error {
	bps, err := d.CapBps()
	if err != nil {
		return err
	}
	if bps == 0 {
		return nil
	}
	treasury, err := d.Treasury()
	if err != nil {
		return err
	}
	if staker == treasury {
		return nil
	}
	lhs := new(big.Int).Mul(share, big.NewInt(fullBps))
	rhs := new(big.Int).Mul(funded, big.NewInt(int64(bps)))
	if lhs.Cmp(rhs) > 0 {
		metricCapRejections().Add(1)
		return ErrCapExceeded
	}
	return nil
}

// walk sums the staker's shares over [cursor+1, min(current-1,
// cursor+maxClaimEpochsPerCall)], stopping at the first non-sealed epoch.
// processed is the last epoch actually summed; processed == cursor means
// nothing was. Epochs seal strictly in order, so a gap never hides a
// later sealed epoch.
func (d *Distributor) walk(staker tally.Address) (total *big.Int, cursor, processed uint64, err error) {
	cursor, err = d.Cursor(staker)
	if err != nil {
		return nil, 0, 0, err
	}
	cfg, err := d.Config()
	if err != nil {
		return nil, 0, 0, err
	}

	total = new(big.Int)
	processed = cursor

	current := d.clock.CurrentEpoch()
	if current == 0 {
		return total, cursor, processed, nil
	}
	last := current - 1
	if bound := cursor + cfg.MaxClaimEpochsPerCall; last > bound {
		last = bound
	}

	for epoch := cursor + 1; epoch <= last; epoch++ {
		sealed, err := d.share.Sealed(epoch)
		if err != nil {
			return nil, 0, 0, err
		}
		if !sealed {
			break
		}
		funded, err := d.Reward(epoch)
		if err != nil {
			return nil, 0, 0, err
		}
		share, err := d.share.Share(epoch, staker, funded)
		if err != nil {
			return nil, 0, 0, err
		}
		if err := d.checkCap(staker, share, funded); err != nil {
			return nil, 0, 0, err
		}
		total.Add(total, share)
		processed = epoch
	}
	return total, cursor, processed, nil
}

// Claimable returns the amount a claim would settle now and the first
// epoch it would leave unprocessed. Pure read; the cap applies the same
// as in a claim, so a capped epoch surfaces the same error here.
func (d *Distributor) Claimable(staker tally.Address) (*big.Int, uint64, error) {
	total, _, processed, err := d.walk(staker)
	if err != nil {
		return nil, 0, err
	}
	return total, processed + 1, nil
}

// claimOne settles one staker within the caller's open checkpoint. The
// cursor commits before the payout so a re-entrant call cannot observe a
// stale cursor and double-claim.
func (d *Distributor) claimOne(caller, staker tally.Address) (*Settlement, error) {
	ok, err := d.authorized(caller, staker)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthorized
	}

	total, cursor, processed, err := d.walk(staker)
	if err != nil {
		return nil, err
	}
	if processed > cursor {
		if err := d.cursors.Set(addrKey(staker), processed); err != nil {
			return nil, err
		}
	}
	if total.Sign() > 0 {
		if err := d.payer.Pay(staker, total); err != nil {
			return nil, err
		}
	}
	return &Settlement{
		Staker:    staker,
		Caller:    caller,
		FromEpoch: cursor + 1,
		ToEpoch:   processed,
		Amount:    total,
	}, nil
}

// Claim settles the staker's unclaimed sealed epochs and pays the total
// out. Zero claimable is a successful no-op.
func (d *Distributor) Claim(caller, staker tally.Address) (settlement *Settlement, err error) {
	err = d.atomically(func() error {
		settlement, err = d.claimOne(caller, staker)
		if err != nil {
			return err
		}
		metricClaims().Add(1)
		logger.Info("claim settled", "staker", staker, "caller", caller,
			"from", settlement.FromEpoch, "to", settlement.ToEpoch, "amount", settlement.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// BatchClaim settles each staker in turn. Every member must be claimable
// by the caller or the whole call fails with nothing committed; an
// authorized member with nothing to settle simply contributes 0.
func (d *Distributor) BatchClaim(caller tally.Address, stakers []tally.Address) (total *big.Int, err error) {
	err = d.atomically(func() error {
		if len(stakers) == 0 {
			return ErrEmptyBatch
		}
		cfg, err := d.Config()
		if err != nil {
			return err
		}
		if uint64(len(stakers)) > cfg.MaxStakersPerBatch {
			return ErrBatchTooLarge
		}

		// reject before any settlement mutates state
		for _, staker := range stakers {
			ok, err := d.authorized(caller, staker)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotAuthorized
			}
		}

		total = new(big.Int)
		for _, staker := range stakers {
			settlement, err := d.claimOne(caller, staker)
			if err != nil {
				return err
			}
			total.Add(total, settlement.Amount)
		}
		metricClaims().Add(int64(len(stakers)))
		logger.Info("batch claim settled", "caller", caller, "stakers", len(stakers), "total", total)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// SetClaimConfig sets the per-call work bounds. Admin only.
func (d *Distributor) SetClaimConfig(caller tally.Address, cfg ClaimConfig) error {
	return d.atomically(func() error {
		if err := d.requireAdmin(caller); err != nil {
			return err
		}
		if cfg.MaxClaimEpochsPerCall == 0 || cfg.MaxStakersPerBatch == 0 {
			return ErrBadConfig
		}
		if err := d.config.Set(&cfg); err != nil {
			return err
		}
		logger.Info("claim config set", "maxClaimEpochs", cfg.MaxClaimEpochsPerCall,
			"maxStakersPerBatch", cfg.MaxStakersPerBatch)
		return nil
	})
}

// SetTreasury designates the cap-exempt treasury address. Admin only.
func (d *Distributor) SetTreasury(caller, treasury tally.Address) error {
	return d.atomically(func() error {
		if err := d.requireAdmin(caller); err != nil {
			return err
		}
		d.treasury.Set(treasury)
		logger.Info("treasury set", "treasury", treasury)
		return nil
	})
}

// SetCapBps sets the concentration cap in basis points, 0 to disable.
// Admin only.
func (d *Distributor) SetCapBps(caller tally.Address, bps uint32) error {
	return d.atomically(func() error {
		if err := d.requireAdmin(caller); err != nil {
			return err
		}
		if bps > fullBps {
			return ErrBadCap
		}
		if err := d.capBps.Set(bps); err != nil {
			return err
		}
		logger.Info("cap set", "bps", bps)
		return nil
	})
}

// SetEpochReward records the epoch's funded reward. Admin only.
func (d *Distributor) SetEpochReward(caller tally.Address, epoch uint64, amount *big.Int) error {
	return d.atomically(func() error {
		if err := d.requireAdmin(caller); err != nil {
			return err
		}
		if amount == nil || amount.Sign() < 0 {
			return ErrBadAmount
		}
		if err := d.rewards.Set(schema.U64(epoch), amount); err != nil {
			return err
		}
		logger.Info("epoch funded", "epoch", epoch, "amount", amount)
		return nil
	})
}

// PullFromUpstream imports accrued reward from the upstream source into
// the most recently completed epoch. Pulling when nothing has accrued is
// a no-op returning 0. Admin only.
func (d *Distributor) PullFromUpstream(caller tally.Address) (amount *big.Int, epoch uint64, err error) {
	err = d.atomically(func() error {
		if err := d.requireAdmin(caller); err != nil {
			return err
		}
		if d.source == nil {
			return ErrNoSource
		}
		current := d.clock.CurrentEpoch()
		if current <= tally.InitialEpoch {
			return ErrNoCompletedEpoch
		}
		epoch = current - 1

		amount, err = d.source.Pull(d.identity)
		if err != nil {
			return err
		}
		if amount == nil || amount.Sign() < 0 {
			return ErrBadAmount
		}
		if amount.Sign() == 0 {
			return nil
		}

		funded, err := d.Reward(epoch)
		if err != nil {
			return err
		}
		if err := d.rewards.Set(schema.U64(epoch), new(big.Int).Add(funded, amount)); err != nil {
			return err
		}
		metricUpstreamPulls().Add(1)
		logger.Info("upstream reward pulled", "epoch", epoch, "amount", amount)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return amount, epoch, nil
}
