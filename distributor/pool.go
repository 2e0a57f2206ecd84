// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"

	"github.com/epochtally/tally/schema"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var (
	slotPoolBalance = schema.Slot("v1/pool-balance")
	slotPoolCredits = schema.Slot("v1/pool-credits")
)

// Pool is a state-backed reward pool ledger implementing Payer. Paying
// moves value from the pool balance to the recipient's credit; how credits
// leave the ledger (token transfer, bridge, withdrawal) is the host's
// concern.
type Pool struct {
	context *schema.Context
	balance *schema.BigInt
	credits *schema.Mapping[addrKey, *big.Int]
}

// NewPool creates a pool ledger bound to the given namespace.
func NewPool(ns tally.Address, st *state.State) *Pool {
	context := schema.NewContext(ns, st)
	return &Pool{
		context: context,
		balance: schema.NewBigInt(context, slotPoolBalance),
		credits: schema.NewMapping[addrKey, *big.Int](context, slotPoolCredits),
	}
}

// Fund adds amount to the pool balance.
func (p *Pool) Fund(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrBadAmount
	}
	return p.balance.Add(amount)
}

// Balance returns the unassigned pool balance.
func (p *Pool) Balance() (*big.Int, error) {
	return p.balance.Get()
}

// CreditOf returns the recipient's accumulated credit.
func (p *Pool) CreditOf(recipient tally.Address) (*big.Int, error) {
	credit, found, err := p.credits.Get(addrKey(recipient))
	if err != nil {
		return nil, err
	}
	if !found {
		return new(big.Int), nil
	}
	return credit, nil
}

// Pay implements Payer. It fails with ErrInsufficientPool when the pool
// balance cannot cover the amount; nothing is moved in that case.
func (p *Pool) Pay(recipient tally.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrBadAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := p.balance.Get()
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientPool
	}
	if err := p.balance.Sub(amount); err != nil {
		return err
	}
	credit, err := p.CreditOf(recipient)
	if err != nil {
		return err
	}
	return p.credits.Set(addrKey(recipient), new(big.Int).Add(credit, amount))
}
