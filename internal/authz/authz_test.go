package authz

import (
	"testing"

	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
)

func TestCapabilitiesTotal(t *testing.T) {
	if got := Capabilities(Role("janitor")); len(got) != 0 {
		t.Fatalf("unknown role got %v", got.List())
	}
	if got := Capabilities(""); len(got) != 0 {
		t.Fatalf("empty role got %v", got.List())
	}
	if got := Capabilities(RoleSuperAdmin); len(got) != len(all) {
		t.Fatalf("super admin has %d capabilities, want %d", len(got), len(all))
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleOperator, ApproveLevel1, true},
		{RoleOperator, ApproveLevel2, false},
		{RoleKasubag, ApproveLevel2, true},
		{RoleKasubag, ApproveOpname, true},
		{RoleSekretaris, ApproveLevel3, true},
		{RoleSekretaris, Distribute, false},
		{RolePegawai, CreateRequest, true},
		{RolePegawai, ConfirmReceive, true},
		{RolePegawai, ManageItems, false},
		{RoleSuperAdmin, ManageAssets, true},
		{Role("guest"), CreateRequest, false},
	}
	for _, tc := range cases {
		d := Decide(Actor{UserID: 1, Role: tc.role}, tc.cap)
		if d.Allowed != tc.want {
			t.Fatalf("Decide(%s, %s) = %v (%s), want %v", tc.role, tc.cap, d.Allowed, d.Reason, tc.want)
		}
		if d.Reason == "" {
			t.Fatalf("Decide(%s, %s) gave no reason", tc.role, tc.cap)
		}
	}
}

func TestDecideAnonymous(t *testing.T) {
	if Decide(Actor{Role: RoleSuperAdmin}, ManageItems).Allowed {
		t.Fatalf("actor without user id must be denied")
	}
}

func TestRequire(t *testing.T) {
	err := Require(Actor{UserID: 3, Role: RolePegawai}, ApproveDirect)
	if !domain.IsPermission(err) {
		t.Fatalf("err = %v, want permission error", err)
	}
	if err := Require(Actor{UserID: 3, Role: RoleOperator}, ApproveDirect); err != nil {
		t.Fatalf("operator approve direct: %v", err)
	}
}

func TestApproveLevel(t *testing.T) {
	for level, want := range map[domain.ApprovalLevel]Capability{
		domain.Level1: ApproveLevel1,
		domain.Level2: ApproveLevel2,
		domain.Level3: ApproveLevel3,
		4:             "",
	} {
		if got := ApproveLevel(level); got != want {
			t.Fatalf("ApproveLevel(%d) = %q, want %q", level, got, want)
		}
	}
}
