// Package rbac holds the static role→capability matrix and the role
// hierarchy. The matrix is read-only data fixed at process start: introducing
// a new resource or capability means editing the tables below, nothing else.
package rbac

// viewerPermissions is the read-only baseline every role inherits.
var viewerPermissions = []Permission{
	PermWorkspaceRead,
	PermCustomersRead,
	PermInvoicesRead,
	PermExpensesRead,
	PermTasksRead,
	PermPaymentsRead,
	PermReportsRead,
}

// memberPermissions extends viewer with day-to-day mutating capabilities.
var memberPermissions = append(clonePerms(viewerPermissions),
	PermCustomersCreate,
	PermCustomersUpdate,
	PermInvoicesCreate,
	PermInvoicesUpdate,
	PermInvoicesSend,
	PermExpensesCreate,
	PermExpensesUpdate,
	PermTasksCreate,
	PermTasksUpdate,
	PermTasksAssign,
	PermTasksComplete,
	PermPaymentsCreate,
)

// adminPermissions extends member with destructive and administrative
// capabilities. The append-chain construction guarantees the superset
// property admin ⊇ member ⊇ viewer by shape, not by discipline.
var adminPermissions = append(clonePerms(memberPermissions),
	PermWorkspaceUpdate,
	PermWorkspaceDelete,
	PermWorkspaceManageMembers,
	PermWorkspaceInviteMembers,
	PermWorkspaceRemoveMembers,
	PermWorkspaceChangeMemberRoles,
	PermCustomersDelete,
	PermCustomersArchive,
	PermCustomersExport,
	PermInvoicesDelete,
	PermInvoicesArchive,
	PermInvoicesVoid,
	PermExpensesDelete,
	PermExpensesArchive,
	PermTasksDelete,
	PermPaymentsDelete,
	PermReportsExport,
	PermAuditRead,
	PermAuditExport,
	PermSystemAdmin,
)

// matrix maps each role to its capability set. Built once at init, read-only
// afterwards, so unsynchronized concurrent reads are safe.
var matrix = map[Role]map[Permission]struct{}{
	RoleViewer: permSet(viewerPermissions),
	RoleMember: permSet(memberPermissions),
	RoleAdmin:  permSet(adminPermissions),
}

// adminOnly is an independent allow-list of operations that require the admin
// rank regardless of what the matrix says. A matrix misconfiguration cannot
// open these up.
var adminOnly = map[Permission]struct{}{
	PermWorkspaceDelete:            {},
	PermWorkspaceManageMembers:     {},
	PermWorkspaceRemoveMembers:     {},
	PermWorkspaceChangeMemberRoles: {},
	PermInvoicesVoid:               {},
	PermPaymentsDelete:             {},
	PermAuditExport:                {},
	PermSystemAdmin:                {},
}

// HasPermission reports whether the role's static capability set contains the
// permission. The check is evaluated against the supplied role every time;
// nothing is cached across requests.
func HasPermission(role Role, perm Permission) bool {
	set, ok := matrix[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// HasAnyPermission reports whether the role holds at least one of the
// permissions.
func HasAnyPermission(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the role holds every permission. An empty
// input is vacuously true.
func HasAllPermissions(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// RequirePermission returns a *PermissionError when the role lacks the
// permission, nil otherwise.
func RequirePermission(role Role, perm Permission) error {
	if HasPermission(role, perm) {
		return nil
	}
	return &PermissionError{Role: role, Permission: perm}
}

// RequireRole returns an *InsufficientRoleError when userRole ranks below
// required, nil otherwise.
func RequireRole(userRole, required Role) error {
	if HasRequiredRole(userRole, required) {
		return nil
	}
	return &InsufficientRoleError{Role: userRole, Required: required}
}

// IsAdminOnlyOperation reports whether the permission sits on the fixed
// admin-gated allow-list checked independently of the matrix.
func IsAdminOnlyOperation(perm Permission) bool {
	_, ok := adminOnly[perm]
	return ok
}

// Permissions returns the role's capability set as a fresh slice, for
// introspection endpoints and tests. Order is unspecified.
func Permissions(role Role) []Permission {
	set, ok := matrix[role]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

func permSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func clonePerms(perms []Permission) []Permission {
	out := make([]Permission, len(perms), len(perms)+32)
	copy(out, perms)
	return out
}
