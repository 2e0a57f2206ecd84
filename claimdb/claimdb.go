// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package claimdb keeps the settlement history in sqlite. The host
// appends a record after each successful claim; the core distributor
// never writes here.
package claimdb

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/epochtally/tally/distributor"
	"github.com/epochtally/tally/tally"
)

const settlementTableSchema = `CREATE TABLE IF NOT EXISTS settlement (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	staker BLOB(20) NOT NULL,
	caller BLOB(20) NOT NULL,
	fromEpoch INTEGER NOT NULL,
	toEpoch INTEGER NOT NULL,
	amount BLOB NOT NULL,
	createdAt INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS settlement_staker ON settlement(staker);
CREATE INDEX IF NOT EXISTS settlement_toEpoch ON settlement(toEpoch);`

// Order of query results.
type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Options limit/offset of a query.
type Options struct {
	Offset uint64
	Limit  uint64
}

// EpochRange filters settlements whose walked range ended inside [From, To].
type EpochRange struct {
	From uint64
	To   uint64
}

// Filter criteria for settlement queries. Nil fields match everything.
type Filter struct {
	Staker  *tally.Address
	Range   *EpochRange
	Order   Order
	Options *Options
}

// Record is one stored settlement.
type Record struct {
	ID         uint64                 `json:"id"`
	Settlement distributor.Settlement `json:"settlement"`
	CreatedAt  int64                  `json:"createdAt"`
}

// ClaimDB is the sqlite backed settlement log.
type ClaimDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New create or open claim db at given path.
func New(path string) (claimDB *ClaimDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if claimDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(settlementTableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &ClaimDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem create a claim db in ram.
func NewMem() (*ClaimDB, error) {
	return New(":memory:")
}

// Close close the claim db.
func (db *ClaimDB) Close() {
	db.db.Close()
}

func (db *ClaimDB) Path() string {
	return db.path
}

// Log appends a settlement. Zero-amount settlements are logged too:
// they mark cursor advances.
func (db *ClaimDB) Log(s *distributor.Settlement) error {
	_, err := db.db.Exec(
		"INSERT INTO settlement(staker, caller, fromEpoch, toEpoch, amount, createdAt) VALUES(?,?,?,?,?,?)",
		s.Staker.Bytes(),
		s.Caller.Bytes(),
		s.FromEpoch,
		s.ToEpoch,
		s.Amount.Bytes(),
		time.Now().Unix(),
	)
	return err
}

// Filter queries settlements matching the filter.
func (db *ClaimDB) Filter(ctx context.Context, filter *Filter) ([]*Record, error) {
	if filter == nil {
		return db.query(ctx, "SELECT * FROM settlement")
	}
	var args []interface{}
	stmt := "SELECT * FROM settlement WHERE 1"
	if filter.Staker != nil {
		args = append(args, filter.Staker.Bytes())
		stmt += " AND staker = ? "
	}
	if filter.Range != nil {
		args = append(args, filter.Range.From)
		stmt += " AND toEpoch >= ? "
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND toEpoch <= ? "
		}
	}

	if filter.Order == DESC {
		stmt += " ORDER BY id DESC "
	} else {
		stmt += " ORDER BY id ASC "
	}

	if filter.Options != nil {
		stmt += " limit ?, ? "
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.query(ctx, stmt, args...)
}

func (db *ClaimDB) query(ctx context.Context, stmt string, args ...interface{}) ([]*Record, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			id        uint64
			staker    []byte
			caller    []byte
			fromEpoch uint64
			toEpoch   uint64
			amount    []byte
			createdAt int64
		)
		if err := rows.Scan(&id, &staker, &caller, &fromEpoch, &toEpoch, &amount, &createdAt); err != nil {
			return nil, err
		}
		records = append(records, &Record{
			ID: id,
			Settlement: distributor.Settlement{
				Staker:    tally.BytesToAddress(staker),
				Caller:    tally.BytesToAddress(caller),
				FromEpoch: fromEpoch,
				ToEpoch:   toEpoch,
				Amount:    new(big.Int).SetBytes(amount),
			},
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
