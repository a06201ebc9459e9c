// Package authz maps roles to capability sets and turns them into explicit
// allow/deny decisions for the workflows.
package authz

import (
	"fmt"
	"sort"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOperator   Role = "operator_persediaan"
	RoleKasubag    Role = "kasubag_umum"
	RoleSekretaris Role = "sekretaris"
	RolePegawai    Role = "pegawai"
)

type Capability string

const (
	ManageItems     Capability = "manage_items"
	ViewLedger      Capability = "view_ledger"
	ManagePurchases Capability = "manage_purchases"
	CreateRequest   Capability = "create_request"
	ApproveDirect   Capability = "approve_direct"
	ApproveLevel1   Capability = "approve_level1"
	ApproveLevel2   Capability = "approve_level2"
	ApproveLevel3   Capability = "approve_level3"
	Distribute      Capability = "distribute"
	ConfirmReceive  Capability = "confirm_receive"
	RejectRequest   Capability = "reject_request"
	ManageOpname    Capability = "manage_opname"
	ApproveOpname   Capability = "approve_opname"
	ManageAssets    Capability = "manage_assets"
)

var all = []Capability{
	ManageItems, ViewLedger, ManagePurchases, CreateRequest, ApproveDirect,
	ApproveLevel1, ApproveLevel2, ApproveLevel3, Distribute, ConfirmReceive,
	RejectRequest, ManageOpname, ApproveOpname, ManageAssets,
}

var grants = map[Role][]Capability{
	RoleSuperAdmin: all,
	RoleOperator: {
		ManageItems, ViewLedger, ManagePurchases, CreateRequest, ApproveDirect,
		ApproveLevel1, Distribute, RejectRequest, ManageOpname, ManageAssets,
	},
	RoleKasubag:    {ViewLedger, CreateRequest, ApproveLevel2, RejectRequest, ApproveOpname},
	RoleSekretaris: {ViewLedger, CreateRequest, ApproveLevel3, RejectRequest},
	RolePegawai:    {CreateRequest, ConfirmReceive},
}

// Set is an immutable capability set.
type Set map[Capability]struct{}

func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Capabilities is defined for every role; unknown roles get an empty set.
func Capabilities(role Role) Set {
	set := make(Set, len(grants[role]))
	for _, c := range grants[role] {
		set[c] = struct{}{}
	}
	return set
}

// ApproveLevel returns the capability guarding a multi-level approval step.
func ApproveLevel(level domain.ApprovalLevel) Capability {
	switch level {
	case domain.Level1:
		return ApproveLevel1
	case domain.Level2:
		return ApproveLevel2
	case domain.Level3:
		return ApproveLevel3
	}
	return ""
}

// Actor is the authenticated caller a workflow acts on behalf of.
type Actor struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

type Decision struct {
	Allowed bool
	Reason  string
}

func Decide(actor Actor, c Capability) Decision {
	if actor.UserID <= 0 {
		return Decision{Reason: "no authenticated user"}
	}
	if Capabilities(actor.Role).Has(c) {
		return Decision{Allowed: true, Reason: fmt.Sprintf("role %s grants %s", actor.Role, c)}
	}
	if _, known := grants[actor.Role]; !known {
		return Decision{Reason: fmt.Sprintf("unknown role %q", actor.Role)}
	}
	return Decision{Reason: fmt.Sprintf("role %s lacks %s", actor.Role, c)}
}

// Require converts a deny decision into a domain.PermissionError.
func Require(actor Actor, c Capability) error {
	d := Decide(actor, c)
	if d.Allowed {
		return nil
	}
	return &domain.PermissionError{Capability: string(c), Reason: d.Reason}
}
