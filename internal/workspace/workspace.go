// Package workspace models the tenant boundary: workspaces and their
// members. A member's role is the single authority for every permission
// check inside that workspace.
package workspace

import (
	"context"
	"errors"
	"time"

	"opsdesk.dev/internal/rbac"
)

var (
	ErrNotFound      = errors.New("workspace: not found")
	ErrAlreadyExists = errors.New("workspace: already exists")
	ErrInvalidInput  = errors.New("workspace: invalid input")
)

// Workspace is a tenant.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a user's standing inside one workspace.
type Member struct {
	WorkspaceID  string    `json:"workspace_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Role         rbac.Role `json:"role"`
	PasswordHash string    `json:"-"`
	InviteToken  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MemberStore persists workspace membership.
//
// AcceptInvite redeems a pending invite token: it clears the token, sets the
// password hash when one is supplied, and returns the activated member. A
// token redeems at most once; unknown or already-redeemed tokens resolve to
// ErrNotFound.
type MemberStore interface {
	Role(ctx context.Context, workspaceID, userID string) (rbac.Role, error)
	Get(ctx context.Context, workspaceID, userID string) (Member, error)
	List(ctx context.Context, workspaceID string) ([]Member, error)
	Add(ctx context.Context, m Member) error
	UpdateRole(ctx context.Context, workspaceID, userID string, role rbac.Role) (Member, error)
	Remove(ctx context.Context, workspaceID, userID string) error
	AcceptInvite(ctx context.Context, token, passwordHash string) (Member, error)
}

// Resolver adapts a MemberStore to the guard's role-resolution contract.
type Resolver struct {
	Store MemberStore
}

// ResolveRole returns the actor's current role in the workspace. Non-members
// resolve to ErrNotFound, which the guard treats as a denial.
func (r Resolver) ResolveRole(ctx context.Context, workspaceID, userID string) (rbac.Role, error) {
	return r.Store.Role(ctx, workspaceID, userID)
}
