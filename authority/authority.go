// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package authority keeps the capability registry gating mutating calls.
package authority

import (
	"errors"

	"github.com/epochtally/tally/log"
	"github.com/epochtally/tally/schema"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var logger = log.WithContext("pkg", "authority")

// Role is a capability required to perform gated operations.
type Role uint8

const (
	// RoleFeeder may open, populate, seal and abort reports.
	RoleFeeder Role = iota + 1
	// RoleAdmin may set claim config, treasury, rewards and manage grants.
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleFeeder:
		return "feeder"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Policy is the authorization dependency consumed by the feeds and the
// distributor before each gated call.
type Policy interface {
	Has(role Role, caller tally.Address) (bool, error)
}

var (
	// ErrNotAuthorized caller lacks the required capability.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrAlreadyInitialized the registry already has an admin.
	ErrAlreadyInitialized = errors.New("already initialized")
)

var (
	slotGrants     = schema.Slot("v1/grants")
	slotAdminCount = schema.Slot("v1/admin-count")
)

type grantKey struct {
	role Role
	addr tally.Address
}

func (k grantKey) Bytes() []byte {
	return append([]byte{byte(k.role)}, k.addr.Bytes()...)
}

// Authority implements Policy over persistent state.
type Authority struct {
	context    *schema.Context
	grants     *schema.Mapping[grantKey, bool]
	adminCount *schema.Uint64
}

// New create a new instance bound to the given namespace.
func New(ns tally.Address, st *state.State) *Authority {
	context := schema.NewContext(ns, st)
	return &Authority{
		context:    context,
		grants:     schema.NewMapping[grantKey, bool](context, slotGrants),
		adminCount: schema.NewUint64(context, slotAdminCount),
	}
}

// Initialize grants the first admin capability. It fails once any admin exists,
// so a deployed registry cannot be re-seeded.
func (a *Authority) Initialize(admin tally.Address) error {
	count, err := a.adminCount.Get()
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyInitialized
	}
	if err := a.grants.Set(grantKey{RoleAdmin, admin}, true); err != nil {
		return err
	}
	a.adminCount.Set(1)
	logger.Info("registry initialized", "admin", admin)
	return nil
}

// Has implements Policy.
func (a *Authority) Has(role Role, caller tally.Address) (bool, error) {
	granted, found, err := a.grants.Get(grantKey{role, caller})
	if err != nil {
		return false, err
	}
	return found && granted, nil
}

// Grant gives the grantee the given role. Caller must be an admin.
func (a *Authority) Grant(caller tally.Address, role Role, grantee tally.Address) error {
	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	already, err := a.Has(role, grantee)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := a.grants.Set(grantKey{role, grantee}, true); err != nil {
		return err
	}
	if role == RoleAdmin {
		count, err := a.adminCount.Get()
		if err != nil {
			return err
		}
		a.adminCount.Set(count + 1)
	}
	logger.Info("capability granted", "role", role, "grantee", grantee)
	return nil
}

// Revoke removes the grantee's role. Caller must be an admin.
// The last admin cannot be revoked: the registry must stay administrable.
func (a *Authority) Revoke(caller tally.Address, role Role, grantee tally.Address) error {
	if err := a.requireAdmin(caller); err != nil {
		return err
	}
	has, err := a.Has(role, grantee)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	if role == RoleAdmin {
		count, err := a.adminCount.Get()
		if err != nil {
			return err
		}
		if count <= 1 {
			return errors.New("cannot revoke the last admin")
		}
		a.adminCount.Set(count - 1)
	}
	if err := a.grants.Delete(grantKey{role, grantee}); err != nil {
		return err
	}
	logger.Info("capability revoked", "role", role, "grantee", grantee)
	return nil
}

func (a *Authority) requireAdmin(caller tally.Address) error {
	isAdmin, err := a.Has(RoleAdmin, caller)
	if err != nil {
		return err
	}
	if !isAdmin {
		return ErrNotAuthorized
	}
	return nil
}

// AllowAll is a Policy granting every capability. For tests and tooling.
type AllowAll struct{}

// Has implements Policy.
func (AllowAll) Has(Role, tally.Address) (bool, error) {
	return true, nil
}
