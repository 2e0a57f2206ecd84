// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package contribution

import (
	"encoding/binary"
	"math/big"

	"github.com/epochtally/tally/tally"
)

// StakerWeight is one staker's share of an epoch's contribution,
// immutable once pushed. The weight is meaningful only relative to the
// report's total weight.
type StakerWeight struct {
	Staker tally.Address
	Weight *big.Int
}

// Summary is the aggregate of a sealed report.
type Summary struct {
	TotalWeight *big.Int `json:"totalWeight"`
	Count       uint64   `json:"count"`
}

// report is the per-epoch storage record of declared totals.
type report struct {
	Status              uint8
	DeclaredTotalWeight *big.Int
	DeclaredCount       uint64
}

func (r *report) status() tally.ReportStatus {
	return tally.ReportStatus(r.Status)
}

// progress is the scratch running-total record maintained while a report
// is open, kept separate from the weight list so integrity checks do not
// re-scan pushed entries.
type progress struct {
	PushedWeight *big.Int
	PushedCount  uint64
}

// weightKey addresses the i-th pushed weight of an epoch.
type weightKey struct {
	epoch uint64
	index uint64
}

func (k weightKey) Bytes() []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], k.epoch)
	binary.BigEndian.PutUint64(b[8:], k.index)
	return b[:]
}

// stakerKey addresses a staker's index entry within an epoch's report.
type stakerKey struct {
	epoch  uint64
	staker tally.Address
}

func (k stakerKey) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], k.epoch)
	return append(b[:], k.staker.Bytes()...)
}
