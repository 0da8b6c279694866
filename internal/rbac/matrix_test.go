package rbac

import (
	"errors"
	"testing"
)

func TestRoleHierarchy(t *testing.T) {
	if RoleAdmin.Rank() <= RoleMember.Rank() || RoleMember.Rank() <= RoleViewer.Rank() {
		t.Fatalf("rank order broken: admin=%d member=%d viewer=%d",
			RoleAdmin.Rank(), RoleMember.Rank(), RoleViewer.Rank())
	}
	if Role("owner").Rank() != 0 {
		t.Fatalf("unknown role must rank 0")
	}
	if !HasRequiredRole(RoleAdmin, RoleViewer) {
		t.Fatalf("admin should satisfy viewer requirement")
	}
	if HasRequiredRole(RoleViewer, RoleMember) {
		t.Fatalf("viewer should not satisfy member requirement")
	}
	if HasRequiredRole(Role("owner"), RoleViewer) {
		t.Fatalf("unknown role should never satisfy a requirement")
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Admin ")
	if err != nil {
		t.Fatalf("ParseRole: %v", err)
	}
	if role != RoleAdmin {
		t.Fatalf("got %q", role)
	}
	if _, err := ParseRole("superuser"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := ParseRole(""); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for empty input, got %v", err)
	}
}

func TestHighestRole(t *testing.T) {
	role, err := HighestRole([]Role{RoleViewer, RoleAdmin, RoleMember})
	if err != nil {
		t.Fatalf("HighestRole: %v", err)
	}
	if role != RoleAdmin {
		t.Fatalf("got %q, want admin", role)
	}
	if _, err := HighestRole(nil); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected error on empty input, got %v", err)
	}
	if _, err := HighestRole([]Role{Role("owner")}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected error on invalid-only input, got %v", err)
	}
}

// Each higher role must hold every permission of the role below it.
func TestMatrixSupersets(t *testing.T) {
	for _, p := range Permissions(RoleViewer) {
		if !HasPermission(RoleMember, p) {
			t.Errorf("member missing viewer permission %q", p)
		}
	}
	for _, p := range Permissions(RoleMember) {
		if !HasPermission(RoleAdmin, p) {
			t.Errorf("admin missing member permission %q", p)
		}
	}
}

func TestMatrixSpotChecks(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermCustomersRead, true},
		{RoleViewer, PermCustomersCreate, false},
		{RoleViewer, PermAuditRead, false},
		{RoleMember, PermInvoicesCreate, true},
		{RoleMember, PermInvoicesSend, true},
		{RoleMember, PermInvoicesVoid, false},
		{RoleMember, PermCustomersDelete, false},
		{RoleMember, PermWorkspaceInviteMembers, false},
		{RoleAdmin, PermCustomersDelete, true},
		{RoleAdmin, PermAuditExport, true},
		{RoleAdmin, PermSystemAdmin, true},
		{Role("owner"), PermCustomersRead, false},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestMatrixDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if !HasPermission(RoleMember, PermTasksCreate) {
			t.Fatalf("check flipped on iteration %d", i)
		}
		if HasPermission(RoleViewer, PermTasksCreate) {
			t.Fatalf("check flipped on iteration %d", i)
		}
	}
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	if !HasAnyPermission(RoleViewer, PermCustomersCreate, PermCustomersRead) {
		t.Fatalf("expected any-match via customers:read")
	}
	if HasAnyPermission(RoleViewer, PermCustomersCreate, PermCustomersDelete) {
		t.Fatalf("unexpected any-match")
	}
	if !HasAllPermissions(RoleAdmin, PermCustomersRead, PermCustomersDelete, PermAuditRead) {
		t.Fatalf("admin should hold all listed permissions")
	}
	if HasAllPermissions(RoleMember, PermCustomersRead, PermCustomersDelete) {
		t.Fatalf("member should fail all-check on customers:delete")
	}
	if !HasAllPermissions(RoleViewer) {
		t.Fatalf("empty all-check must be vacuously true")
	}
}

func TestRequirePermission(t *testing.T) {
	if err := RequirePermission(RoleAdmin, PermSystemAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := RequirePermission(RoleViewer, PermCustomersCreate)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PermissionError, got %T", err)
	}
	if perr.Role != RoleViewer || perr.Permission != PermCustomersCreate {
		t.Fatalf("error carries %q/%q", perr.Role, perr.Permission)
	}
}

func TestRequireRole(t *testing.T) {
	if err := RequireRole(RoleMember, RoleViewer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := RequireRole(RoleMember, RoleAdmin)
	if !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
	var rerr *InsufficientRoleError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *InsufficientRoleError, got %T", err)
	}
	if rerr.Required != RoleAdmin {
		t.Fatalf("error carries required %q", rerr.Required)
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	gated := []Permission{
		PermWorkspaceDelete,
		PermWorkspaceManageMembers,
		PermWorkspaceRemoveMembers,
		PermWorkspaceChangeMemberRoles,
		PermInvoicesVoid,
		PermPaymentsDelete,
		PermAuditExport,
		PermSystemAdmin,
	}
	for _, p := range gated {
		if !IsAdminOnlyOperation(p) {
			t.Errorf("%q should be admin-only", p)
		}
		if !HasPermission(RoleAdmin, p) {
			t.Errorf("admin should still hold %q in the matrix", p)
		}
	}
	if IsAdminOnlyOperation(PermCustomersCreate) {
		t.Fatalf("customers:create should not be admin-only")
	}
}

func TestPermissionHalves(t *testing.T) {
	if PermInvoicesVoid.Resource() != "invoices" || PermInvoicesVoid.Capability() != "void" {
		t.Fatalf("got %q/%q", PermInvoicesVoid.Resource(), PermInvoicesVoid.Capability())
	}
}
