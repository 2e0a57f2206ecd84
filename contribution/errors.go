// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package contribution

import "errors"

var (
	// ErrNotAuthorized caller lacks the feeder capability.
	ErrNotAuthorized = errors.New("not authorized: feeder capability required")
	// ErrBadEpoch the target epoch has not fully elapsed yet.
	ErrBadEpoch = errors.New("epoch has not elapsed")
	// ErrReportExists a non-cleared report already exists for the epoch.
	ErrReportExists = errors.New("report already exists")
	// ErrNotOpen the operation requires an open report.
	ErrNotOpen = errors.New("report not open")
	// ErrNotAbortable the operation requires an open or aborting report.
	ErrNotAbortable = errors.New("no report to abort")
	// ErrEmptyBatch the pushed batch is empty.
	ErrEmptyBatch = errors.New("empty weight batch")
	// ErrBatchTooLarge the pushed batch exceeds the max batch size.
	ErrBatchTooLarge = errors.New("weight batch too large")
	// ErrZeroWeight a pushed weight is zero or negative.
	ErrZeroWeight = errors.New("weight must be positive")
	// ErrDuplicateStaker the staker already has a weight in this report.
	ErrDuplicateStaker = errors.New("duplicate staker in report")
	// ErrTotalsMismatch pushed running totals do not exactly match declared totals.
	ErrTotalsMismatch = errors.New("pushed totals do not match declared totals")
	// ErrNotSealed the read requires a sealed report.
	ErrNotSealed = errors.New("report not sealed")
	// ErrIndexOutOfRange the weight index exceeds the sealed count.
	ErrIndexOutOfRange = errors.New("weight index out of range")
)
