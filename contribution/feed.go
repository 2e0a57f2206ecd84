// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package contribution owns the per-epoch report lifecycle: a feeder opens
// a report for the epoch that just elapsed, pushes weight batches, then
// seals it (or aborts and restarts). Sealed weights are public reads.
package contribution

import (
	"math/big"

	"github.com/epochtally/tally/authority"
	"github.com/epochtally/tally/cache"
	"github.com/epochtally/tally/clock"
	"github.com/epochtally/tally/log"
	"github.com/epochtally/tally/metrics"
	"github.com/epochtally/tally/schema"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var logger = log.WithContext("pkg", "contribution")

var (
	metricSealedReports  = metrics.LazyLoadCounter("contribution_sealed_reports_total")
	metricAbortedReports = metrics.LazyLoadCounter("contribution_aborted_reports_total")
	metricPushedWeights  = metrics.LazyLoadCounter("contribution_pushed_weights_total")
)

var (
	slotReports   = schema.Slot("v1/reports")
	slotWeights   = schema.Slot("v1/weights")
	slotIndex     = schema.Slot("v1/weight-index")
	slotProgress  = schema.Slot("v1/progress")
	slotNextEpoch = schema.Slot("v1/next-epoch")
)

const summaryCacheSize = 64

// Feed implements the contribution feed over namespaced state.
type Feed struct {
	context   *schema.Context
	policy    authority.Policy
	clock     clock.Clock
	reports   *schema.Mapping[schema.U64, *report]
	weights   *schema.Mapping[weightKey, *StakerWeight]
	index     *schema.Mapping[stakerKey, uint64]
	progress  *schema.Record[*progress]
	nextEpoch *schema.Uint64
	summaries *cache.LRU
}

// New create a new feed instance bound to the given namespace.
func New(ns tally.Address, st *state.State, policy authority.Policy, clk clock.Clock) *Feed {
	context := schema.NewContext(ns, st)
	summaries, _ := cache.NewLRU(summaryCacheSize)
	return &Feed{
		context:   context,
		policy:    policy,
		clock:     clk,
		reports:   schema.NewMapping[schema.U64, *report](context, slotReports),
		weights:   schema.NewMapping[weightKey, *StakerWeight](context, slotWeights),
		index:     schema.NewMapping[stakerKey, uint64](context, slotIndex),
		progress:  schema.NewRecord[*progress](context, slotProgress),
		nextEpoch: schema.NewUint64(context, slotNextEpoch),
		summaries: summaries,
	}
}

// atomically runs fn inside a state checkpoint, reverting every
// intermediate write on failure.
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
// It advances exactly once per sealed report.
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

func (f *Feed) getReport(epoch uint64) (*report, error) {
	rpt, found, err := f.reports.Get(schema.U64(epoch))
	if err != nil {
		return nil, err
	}
	if !found {
		return &report{Status: uint8(tally.StatusNone), DeclaredTotalWeight: new(big.Int)}, nil
	}
	return rpt, nil
}

func (f *Feed) getProgress() (*progress, error) {
	p, found, err := f.progress.Get()
	if err != nil {
		return nil, err
	}
	if !found {
		return &progress{PushedWeight: new(big.Int)}, nil
	}
	return p, nil
}

// Open opens the report for the feed's next epoch, declaring the totals
// the pushed weight-set must reach exactly. The target epoch must be
// strictly below the clock's current epoch.
func (f *Feed) Open(caller tally.Address, declaredTotalWeight *big.Int, declaredCount uint64) error {
	return f.atomically(func() error {
		if err := f.requireFeeder(caller); err != nil {
			return err
		}
		if declaredTotalWeight == nil || declaredTotalWeight.Sign() < 0 {
			return ErrZeroWeight
		}

		epoch, err := f.NextEpoch()
		if err != nil {
			return err
		}
		if epoch >= f.clock.CurrentEpoch() {
			return ErrBadEpoch
		}

		rpt, err := f.getReport(epoch)
		if err != nil {
			return err
		}
		if rpt.status() != tally.StatusNone {
			return ErrReportExists
		}

		if err := f.reports.Set(schema.U64(epoch), &report{
			Status:              uint8(tally.StatusOpen),
			DeclaredTotalWeight: declaredTotalWeight,
			DeclaredCount:       declaredCount,
		}); err != nil {
			return err
		}
		if err := f.progress.Set(&progress{PushedWeight: new(big.Int)}); err != nil {
			return err
		}

		logger.Info("report opened", "epoch", epoch,
			"declaredTotalWeight", declaredTotalWeight, "declaredCount", declaredCount)
		return nil
	})
}

// Push appends a batch of staker weights to the open report. Weights must
// be positive and each staker may appear at most once per report.
func (f *Feed) Push(caller tally.Address, batch []StakerWeight) error {
	return f.atomically(func() error {
		if err := f.requireFeeder(caller); err != nil {
			return err
		}
		if len(batch) == 0 {
			return ErrEmptyBatch
		}
		if len(batch) > tally.MaxWeightBatch {
			return ErrBatchTooLarge
		}

		epoch, err := f.NextEpoch()
		if err != nil {
			return err
		}
		rpt, err := f.getReport(epoch)
		if err != nil {
			return err
		}
		if rpt.status() != tally.StatusOpen {
			return ErrNotOpen
		}

		prog, err := f.getProgress()
		if err != nil {
			return err
		}

		for i := range batch {
			entry := &batch[i]
			if entry.Weight == nil || entry.Weight.Sign() <= 0 {
				return ErrZeroWeight
			}
			key := stakerKey{epoch, entry.Staker}
			taken, err := f.index.Has(key)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateStaker
			}

			idx := prog.PushedCount
			if err := f.weights.Set(weightKey{epoch, idx}, &StakerWeight{
				Staker: entry.Staker,
				Weight: entry.Weight,
			}); err != nil {
				return err
			}
			if err := f.index.Set(key, idx); err != nil {
				return err
			}
			prog.PushedCount++
			prog.PushedWeight = new(big.Int).Add(prog.PushedWeight, entry.Weight)
		}

		if err := f.progress.Set(prog); err != nil {
			return err
		}

		metricPushedWeights().Add(int64(len(batch)))
		logger.Debug("weights pushed", "epoch", epoch, "batch", len(batch),
			"pushedCount", prog.PushedCount, "pushedWeight", prog.PushedWeight)
		return nil
	})
}

// Seal seals the open report. The pushed running totals must exactly
// equal the declared totals; there is no partial seal.
func (f *Feed) Seal(caller tally.Address) error {
	return f.atomically(func() error {
		if err := f.requireFeeder(caller); err != nil {
			return err
		}

		epoch, err := f.NextEpoch()
		if err != nil {
			return err
		}
		rpt, err := f.getReport(epoch)
		if err != nil {
			return err
		}
		if rpt.status() != tally.StatusOpen {
			return ErrNotOpen
		}

		prog, err := f.getProgress()
		if err != nil {
			return err
		}
		if prog.PushedCount != rpt.DeclaredCount ||
			prog.PushedWeight.Cmp(rpt.DeclaredTotalWeight) != 0 {
			return ErrTotalsMismatch
		}

		rpt.Status = uint8(tally.StatusSealed)
		if err := f.reports.Set(schema.U64(epoch), rpt); err != nil {
			return err
		}
		if err := f.progress.Clear(); err != nil {
			return err
		}
		f.nextEpoch.Set(epoch + 1)

		metricSealedReports().Add(1)
		logger.Info("report sealed", "epoch", epoch,
			"totalWeight", rpt.DeclaredTotalWeight, "count", rpt.DeclaredCount)
		return nil
	})
}

// Abort drains the current open (or aborting) report in bounded chunks.
// It returns the number of entries still to drain; the caller must call
// again until it reports zero, at which point the report is fully cleared
// and the epoch can be reopened.
func (f *Feed) Abort(caller tally.Address) (remaining uint64, err error) {
	err = f.atomically(func() error {
		if err := f.requireFeeder(caller); err != nil {
			return err
		}

		epoch, err := f.NextEpoch()
		if err != nil {
			return err
		}
		rpt, err := f.getReport(epoch)
		if err != nil {
			return err
		}
		if rpt.status() != tally.StatusOpen && rpt.status() != tally.StatusAborting {
			return ErrNotAbortable
		}

		prog, err := f.getProgress()
		if err != nil {
			return err
		}

		for n := 0; n < tally.AbortChunkSize && prog.PushedCount > 0; n++ {
			idx := prog.PushedCount - 1
			entry, found, err := f.weights.Get(weightKey{epoch, idx})
			if err != nil {
				return err
			}
			if !found {
				return state.NewError("weight entry missing during abort")
			}
			if err := f.index.Delete(stakerKey{epoch, entry.Staker}); err != nil {
				return err
			}
			if err := f.weights.Delete(weightKey{epoch, idx}); err != nil {
				return err
			}
			prog.PushedCount = idx
			prog.PushedWeight = new(big.Int).Sub(prog.PushedWeight, entry.Weight)
		}

		if prog.PushedCount > 0 {
			rpt.Status = uint8(tally.StatusAborting)
			if err := f.reports.Set(schema.U64(epoch), rpt); err != nil {
				return err
			}
			if err := f.progress.Set(prog); err != nil {
				return err
			}
			remaining = prog.PushedCount
			logger.Info("report aborting", "epoch", epoch, "remaining", remaining)
			return nil
		}

		if err := f.reports.Delete(schema.U64(epoch)); err != nil {
			return err
		}
		if err := f.progress.Clear(); err != nil {
			return err
		}
		metricAbortedReports().Add(1)
		logger.Info("report aborted", "epoch", epoch)
		return nil
	})
	return
}

// Status returns the lifecycle status of the epoch's report.
func (f *Feed) Status(epoch uint64) (tally.ReportStatus, error) {
	rpt, err := f.getReport(epoch)
	if err != nil {
		return tally.StatusNone, err
	}
	return rpt.status(), nil
}

// Available reports whether the epoch's report is sealed and readable.
func (f *Feed) Available(epoch uint64) (bool, error) {
	status, err := f.Status(epoch)
	if err != nil {
		return false, err
	}
	return status == tally.StatusSealed, nil
}

func (f *Feed) requireSealed(epoch uint64) (*report, error) {
	rpt, err := f.getReport(epoch)
	if err != nil {
		return nil, err
	}
	if rpt.status() != tally.StatusSealed {
		return nil, ErrNotSealed
	}
	return rpt, nil
}

// WeightCount returns the number of weights in the sealed report.
func (f *Feed) WeightCount(epoch uint64) (uint64, error) {
	rpt, err := f.requireSealed(epoch)
	if err != nil {
		return 0, err
	}
	return rpt.DeclaredCount, nil
}

// WeightAt returns the i-th weight of the sealed report.
func (f *Feed) WeightAt(epoch, index uint64) (*StakerWeight, error) {
	rpt, err := f.requireSealed(epoch)
	if err != nil {
		return nil, err
	}
	if index >= rpt.DeclaredCount {
		return nil, ErrIndexOutOfRange
	}
	entry, found, err := f.weights.Get(weightKey{epoch, index})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, state.NewError("weight entry missing in sealed report")
	}
	return entry, nil
}

// WeightOf returns the staker's weight within the sealed report.
// found is false when the staker has no entry.
func (f *Feed) WeightOf(epoch uint64, staker tally.Address) (*big.Int, bool, error) {
	if _, err := f.requireSealed(epoch); err != nil {
		return nil, false, err
	}
	idx, found, err := f.index.Get(stakerKey{epoch, staker})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	entry, found, err := f.weights.Get(weightKey{epoch, idx})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, state.NewError("weight entry missing in sealed report")
	}
	return entry.Weight, true, nil
}

// Summary returns the aggregate of the sealed report. Sealed reports are
// immutable, so summaries are served through an LRU cache.
func (f *Feed) Summary(epoch uint64) (*Summary, error) {
	summary, err := f.summaries.GetOrLoad(epoch, func(interface{}) (interface{}, error) {
		rpt, err := f.requireSealed(epoch)
		if err != nil {
			return nil, err
		}
		return &Summary{
			TotalWeight: rpt.DeclaredTotalWeight,
			Count:       rpt.DeclaredCount,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return summary.(*Summary), nil
}

// Sealed implements distributor.SharePolicy.
func (f *Feed) Sealed(epoch uint64) (bool, error) {
	return f.Available(epoch)
}

// Share implements distributor.SharePolicy: the staker's weighted share of
// the epoch's funded reward, rounded down. The integer-division remainder
// ("dust") stays in the pool.
func (f *Feed) Share(epoch uint64, staker tally.Address, funded *big.Int) (*big.Int, error) {
	weight, found, err := f.WeightOf(epoch, staker)
	if err != nil {
		return nil, err
	}
	if !found || funded == nil || funded.Sign() == 0 {
		return new(big.Int), nil
	}
	summary, err := f.Summary(epoch)
	if err != nil {
		return nil, err
	}
	if summary.TotalWeight.Sign() == 0 {
		return new(big.Int), nil
	}
	share := new(big.Int).Mul(weight, funded)
	return share.Div(share, summary.TotalWeight), nil
}
