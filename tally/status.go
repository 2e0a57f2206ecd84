// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tally

// ReportStatus is the lifecycle status of a per-epoch report.
// Both the contribution feed and the reward feed share this lifecycle.
type ReportStatus uint8

const (
	// StatusNone no report exists for the epoch.
	StatusNone ReportStatus = iota
	// StatusOpen the report is accepting entries.
	StatusOpen
	// StatusSealed the report is terminal and readable.
	StatusSealed
	// StatusAborting the report is being drained; further abort calls required.
	StatusAborting
)

func (s ReportStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusOpen:
		return "open"
	case StatusSealed:
		return "sealed"
	case StatusAborting:
		return "aborting"
	default:
		return "unknown"
	}
}
