// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tally

// Constants of the tally protocol.
const (
	// InitialEpoch is the first epoch a feed will accept a report for.
	// Epoch 0 is reserved to mean "never" for claim cursors.
	InitialEpoch uint64 = 1

	// MaxWeightBatch limits the number of staker weights accepted by a
	// single push call.
	MaxWeightBatch = 256

	// AbortChunkSize limits the number of weight entries removed by a
	// single abort call. An aborting report with more entries stays in
	// the ABORTING status until drained.
	AbortChunkSize = 256

	// DefaultCapBps is the default per-wallet concentration cap, in
	// basis points of an epoch's total reward. 0 disables the cap.
	DefaultCapBps uint32 = 1000

	// DefaultMaxClaimEpochsPerCall bounds the epoch range a single
	// claim call walks.
	DefaultMaxClaimEpochsPerCall uint64 = 32

	// DefaultMaxStakersPerBatch bounds batch claim fan-out.
	DefaultMaxStakersPerBatch uint64 = 16
)
