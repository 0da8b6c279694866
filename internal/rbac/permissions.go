package rbac

import "strings"

// Permission is a fine-grained capability tag of the form
// "<resource>:<capability>". Permissions are immutable, globally defined, and
// never persisted.
type Permission string

// Workspace administration.
const (
	PermWorkspaceRead              Permission = "workspace:read"
	PermWorkspaceUpdate            Permission = "workspace:update"
	PermWorkspaceDelete            Permission = "workspace:delete"
	PermWorkspaceManageMembers     Permission = "workspace:manage_members"
	PermWorkspaceInviteMembers     Permission = "workspace:invite_members"
	PermWorkspaceRemoveMembers     Permission = "workspace:remove_members"
	PermWorkspaceChangeMemberRoles Permission = "workspace:change_member_roles"
)

// Customers.
const (
	PermCustomersRead    Permission = "customers:read"
	PermCustomersCreate  Permission = "customers:create"
	PermCustomersUpdate  Permission = "customers:update"
	PermCustomersDelete  Permission = "customers:delete"
	PermCustomersArchive Permission = "customers:archive"
	PermCustomersExport  Permission = "customers:export"
)

// Invoices.
const (
	PermInvoicesRead    Permission = "invoices:read"
	PermInvoicesCreate  Permission = "invoices:create"
	PermInvoicesUpdate  Permission = "invoices:update"
	PermInvoicesDelete  Permission = "invoices:delete"
	PermInvoicesArchive Permission = "invoices:archive"
	PermInvoicesSend    Permission = "invoices:send"
	PermInvoicesVoid    Permission = "invoices:void"
)

// Expenses.
const (
	PermExpensesRead    Permission = "expenses:read"
	PermExpensesCreate  Permission = "expenses:create"
	PermExpensesUpdate  Permission = "expenses:update"
	PermExpensesDelete  Permission = "expenses:delete"
	PermExpensesArchive Permission = "expenses:archive"
)

// Tasks.
const (
	PermTasksRead     Permission = "tasks:read"
	PermTasksCreate   Permission = "tasks:create"
	PermTasksUpdate   Permission = "tasks:update"
	PermTasksDelete   Permission = "tasks:delete"
	PermTasksAssign   Permission = "tasks:assign"
	PermTasksComplete Permission = "tasks:complete"
)

// Payments.
const (
	PermPaymentsRead   Permission = "payments:read"
	PermPaymentsCreate Permission = "payments:create"
	PermPaymentsDelete Permission = "payments:delete"
)

// Reports and audit trail.
const (
	PermReportsRead   Permission = "reports:read"
	PermReportsExport Permission = "reports:export"
	PermAuditRead     Permission = "audit:read"
	PermAuditExport   Permission = "audit:export"
	PermSystemAdmin   Permission = "system:admin"
)

// Resource returns the "<resource>" half of the tag.
func (p Permission) Resource() string {
	res, _, _ := strings.Cut(string(p), ":")
	return res
}

// Capability returns the "<capability>" half of the tag.
func (p Permission) Capability() string {
	_, capability, _ := strings.Cut(string(p), ":")
	return capability
}

func (p Permission) String() string {
	return string(p)
}
