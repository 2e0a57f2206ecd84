// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rewardfeed is the equal-split sibling of the contribution
// feed: per epoch it carries only an aggregate (total reward, total
// participant units) through the same open/seal/abort lifecycle, and
// every unit's share is identical. A distributor wired to it runs with
// the concentration cap disabled.
package rewardfeed

import (
	"errors"
	"math/big"

	"github.com/epochtally/tally/authority"
	"github.com/epochtally/tally/clock"
	"github.com/epochtally/tally/log"
	"github.com/epochtally/tally/metrics"
	"github.com/epochtally/tally/schema"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var logger = log.WithContext("pkg", "rewardfeed")

var metricSealedRewards = metrics.LazyLoadCounter("rewardfeed_sealed_reports_total")

var (
	slotRewards   = schema.Slot("v1/epoch-rewards")
	slotNextEpoch = schema.Slot("v1/next-epoch")
)

var (
	// ErrNotAuthorized caller lacks the feeder capability.
	ErrNotAuthorized = errors.New("not authorized: feeder capability required")
	// ErrBadEpoch the target epoch has not fully elapsed yet.
	ErrBadEpoch = errors.New("epoch has not elapsed")
	// ErrReportExists a non-cleared report already exists for the epoch.
	ErrReportExists = errors.New("report already exists")
	// ErrNotOpen the operation requires an open report.
	ErrNotOpen = errors.New("report not open")
	// ErrZeroUnits an open report must declare at least one unit.
	ErrZeroUnits = errors.New("total units must be positive")
	// ErrBadReward the total reward is nil or negative.
	ErrBadReward = errors.New("total reward must not be negative")
	// ErrNotSealed the read requires a sealed report.
	ErrNotSealed = errors.New("report not sealed")
)

// EpochReward is the per-epoch aggregate payload.
type EpochReward struct {
	TotalReward *big.Int `json:"totalReward"`
	TotalUnits  uint64   `json:"totalUnits"`
}

// record is the per-epoch storage form.
type record struct {
	Status      uint8
	TotalReward *big.Int
	TotalUnits  uint64
}

func (r *record) status() tally.ReportStatus {
	return tally.ReportStatus(r.Status)
}

// Feed implements the equal-split reward feed over namespaced state.
type Feed struct {
	context   *schema.Context
	policy    authority.Policy
	clock     clock.Clock
	rewards   *schema.Mapping[schema.U64, *record]
	nextEpoch *schema.Uint64
}

// New create a new feed instance bound to the given namespace.
func New(ns tally.Address, st *state.State, policy authority.Policy, clk clock.Clock) *Feed {
	context := schema.NewContext(ns, st)
	return &Feed{
		context:   context,
		policy:    policy,
		clock:     clk,
		rewards:   schema.NewMapping[schema.U64, *record](context, slotRewards),
		nextEpoch: schema.NewUint64(context, slotNextEpoch),
	}
}

func (f *Feed) atomically(fn func() error) error {
	cp := f.context.State().Checkpoint()
	if err := fn(); err != nil {
		f.context.State().RevertTo(cp)
		return err
	}
	return nil
}

func (f *Feed) requireFeeder(caller tally.Address) error {
	ok, err := f.policy.Has(authority.RoleFeeder, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}

// NextEpoch returns the epoch the feed will accept a report for next.
func (f *Feed) NextEpoch() (uint64, error) {
	epoch, err := f.nextEpoch.Get()
	if err != nil {
		return 0, err
	}
	if epoch < tally.InitialEpoch {
		epoch = tally.InitialEpoch
	}
	return epoch, nil
}

func (f *Feed) getRecord(epoch uint64) (*record, error) {
	rec, found, err := f.rewards.Get(schema.U64(epoch))
	if err != nil {
		return nil, err
	}
	if !found {
		return &record{Status: uint8(tally.StatusNone), TotalReward: new(big.Int)}, nil
	}
	return rec, nil
}

// Open opens the report for the feed's next epoch with the full
// aggregate payload. The target epoch must be strictly below the
// clock's current epoch.
func (f *Feed) Open(caller tally.Address, totalReward *big.Int, totalUnits uint64) error {
	return f.atomically(func() error {
		if err := f.requireFeeder(caller); err != nil {
			return err
		}
		if totalReward == nil || totalReward.Sign() < 0 {
			return ErrBadReward
		}
		if totalUnits == 0 {
			return ErrZeroUnits
		}

		epoch, err := f.NextEpoch()
		if err != nil {
			return err
		}
		if epoch >= f.clock.CurrentEpoch() {
			return ErrBadEpoch
		}

		rec, err := f.getRecord(epoch)
		if err != nil {
			return err
		}
		if rec.status() != tally.StatusNone {
			return ErrReportExists
		}

		if err := f.rewards.Set(schema.U64(epoch), &record{
			Status:      uint8(tally.StatusOpen),
			TotalReward: totalReward,
			TotalUnits:  totalUnits,
		}); err != nil {
			return err
		}
		logger.Info("reward report opened", "epoch", epoch,
			"totalReward", totalReward, "totalUnits", totalUnits)
		return nil
	})
}

// Seal seals the open report and advances the feed. The payload was
// declared whole at open, so there is nothing further to verify.
func (f *Feed) Seal(caller tally.Address) error {
	return f.atomically(func() error {
		if err := f.requireFeeder(caller); err != nil {
			return err
		}

		epoch, err := f.NextEpoch()
		if err != nil {
			return err
		}
		rec, err := f.getRecord(epoch)
		if err != nil {
			return err
		}
		if rec.status() != tally.StatusOpen {
			return ErrNotOpen
		}

		rec.Status = uint8(tally.StatusSealed)
		if err := f.rewards.Set(schema.U64(epoch), rec); err != nil {
			return err
		}
		f.nextEpoch.Set(epoch + 1)

		metricSealedRewards().Add(1)
		logger.Info("reward report sealed", "epoch", epoch,
			"totalReward", rec.TotalReward, "totalUnits", rec.TotalUnits)
		return nil
	})
}

// Abort clears the open report. The payload holds no per-address
// entries, so the drain always completes in one call and the status
// returns straight to NONE (the ABORTING stop-over is degenerate here).
func (f *Feed) Abort(caller tally.Address) error {
	return f.atomically(func() error {
		if err := f.requireFeeder(caller); err != nil {
			return err
		}

		epoch, err := f.NextEpoch()
		if err != nil {
			return err
		}
		rec, err := f.getRecord(epoch)
		if err != nil {
			return err
		}
		if rec.status() != tally.StatusOpen {
			return ErrNotOpen
		}

		if err := f.rewards.Delete(schema.U64(epoch)); err != nil {
			return err
		}
		logger.Info("reward report aborted", "epoch", epoch)
		return nil
	})
}

// Status returns the lifecycle status of the epoch's report.
func (f *Feed) Status(epoch uint64) (tally.ReportStatus, error) {
	rec, err := f.getRecord(epoch)
	if err != nil {
		return tally.StatusNone, err
	}
	return rec.status(), nil
}

// Available reports whether the epoch's report is sealed and readable.
func (f *Feed) Available(epoch uint64) (bool, error) {
	status, err := f.Status(epoch)
	if err != nil {
		return false, err
	}
	return status == tally.StatusSealed, nil
}

// Summary returns the sealed aggregate.
func (f *Feed) Summary(epoch uint64) (*EpochReward, error) {
	rec, err := f.getRecord(epoch)
	if err != nil {
		return nil, err
	}
	if rec.status() != tally.StatusSealed {
		return nil, ErrNotSealed
	}
	return &EpochReward{TotalReward: rec.TotalReward, TotalUnits: rec.TotalUnits}, nil
}

// Sealed implements distributor.SharePolicy.
func (f *Feed) Sealed(epoch uint64) (bool, error) {
	return f.Available(epoch)
}

// Share implements distributor.SharePolicy: one unit's equal split of
// the epoch's total reward, the same for every staker. The funded
// parameter is ignored; this feed carries its own reward aggregate.
func (f *Feed) Share(epoch uint64, _ tally.Address, _ *big.Int) (*big.Int, error) {
	summary, err := f.Summary(epoch)
	if err != nil {
		return nil, err
	}
	if summary.TotalUnits == 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Div(summary.TotalReward, new(big.Int).SetUint64(summary.TotalUnits)), nil
}
