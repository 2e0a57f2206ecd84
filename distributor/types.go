// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"

	"github.com/epochtally/tally/tally"
)

// SharePolicy computes per-epoch shares from a sealed report. The
// contribution feed implements it with weighted shares, the reward feed
// with equal splits; the distributor does not care which.
type SharePolicy interface {
	// Sealed reports whether the epoch's report is sealed and readable.
	Sealed(epoch uint64) (bool, error)
	// Share returns the staker's share of the epoch's funded reward,
	// zero for non-participants. Never negative.
	Share(epoch uint64, staker tally.Address, funded *big.Int) (*big.Int, error)
}

// Payer executes the payout effect. Implementations must fail with an
// unambiguous error when the backing balance cannot cover the amount.
type Payer interface {
	Pay(recipient tally.Address, amount *big.Int) error
}

// RewardSource is an upstream accrual the distributor can pull funding
// from. Pull returns the amount transferred to the recipient; zero when
// nothing has accrued.
type RewardSource interface {
	Pull(recipient tally.Address) (*big.Int, error)
}

// ClaimConfig bounds the work a single claim call may perform.
type ClaimConfig struct {
	MaxClaimEpochsPerCall uint64 `json:"maxClaimEpochsPerCall"`
	MaxStakersPerBatch    uint64 `json:"maxStakersPerBatch"`
}

// Settlement is the outcome of one claim: the epoch range walked and the
// amount paid out. A zero-amount settlement is a successful no-op.
type Settlement struct {
	Staker    tally.Address `json:"staker"`
	Caller    tally.Address `json:"caller"`
	FromEpoch uint64        `json:"fromEpoch"`
	ToEpoch   uint64        `json:"toEpoch"`
	Amount    *big.Int      `json:"amount"`
}

// addrKey adapts an address to schema.Key.
type addrKey tally.Address

func (k addrKey) Bytes() []byte {
	return tally.Address(k).Bytes()
}

// approvalKey addresses the (account, delegate) approval relation.
type approvalKey struct {
	account  tally.Address
	delegate tally.Address
}

func (k approvalKey) Bytes() []byte {
	h := tally.Keccak256(k.account.Bytes(), k.delegate.Bytes())
	return h.Bytes()
}
