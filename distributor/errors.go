// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import "errors"

var (
	// ErrNotAuthorized caller is neither the staker nor an approved delegate.
	ErrNotAuthorized = errors.New("not authorized: caller is not the staker or an approved delegate")
	// ErrNotAdmin caller lacks the admin capability.
	ErrNotAdmin = errors.New("not authorized: admin capability required")
	// ErrCapExceeded an epoch share exceeds the per-wallet concentration cap.
	ErrCapExceeded = errors.New("epoch share exceeds concentration cap")
	// ErrEmptyBatch the staker batch is empty.
	ErrEmptyBatch = errors.New("empty staker batch")
	// ErrBatchTooLarge the staker batch exceeds the configured bound.
	ErrBatchTooLarge = errors.New("staker batch too large")
	// ErrInsufficientPool the pool balance cannot cover the payout.
	ErrInsufficientPool = errors.New("insufficient pool balance")
	// ErrNoCompletedEpoch the clock has not passed the first epoch yet.
	ErrNoCompletedEpoch = errors.New("no completed epoch to fund")
	// ErrNoSource no upstream reward source is configured.
	ErrNoSource = errors.New("no upstream reward source configured")
	// ErrBadConfig claim config bounds must be positive.
	ErrBadConfig = errors.New("claim config bounds must be positive")
	// ErrBadCap the cap exceeds 10000 basis points.
	ErrBadCap = errors.New("cap must not exceed 10000 basis points")
	// ErrBadAmount the amount is nil or negative.
	ErrBadAmount = errors.New("amount must not be negative")
)
