package rbac

import (
	"fmt"
	"strings"
)

// Role is the unit of permission granting for a user within a workspace.
// Roles are totally ordered: admin > member > viewer.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

var roleRanks = map[Role]int{
	RoleAdmin:  3,
	RoleMember: 2,
	RoleViewer: 1,
}

// ParseRole validates a role name supplied at the boundary. Unknown names are
// rejected so an unrecognized role can never slip into a permission check.
func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(s)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidRole, s)
	}
	return role, nil
}

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the fixed hierarchy rank (admin=3, member=2, viewer=1).
// Unknown roles rank 0, below every valid role.
func (r Role) Rank() int {
	return roleRanks[r]
}

func (r Role) String() string {
	return string(r)
}

// HasRequiredRole reports whether userRole meets or exceeds required by rank.
func HasRequiredRole(userRole, required Role) bool {
	if !userRole.Valid() || !required.Valid() {
		return false
	}
	return userRole.Rank() >= required.Rank()
}

// HighestRole returns the highest-ranked role in the input. Fails on an empty
// input; callers must guard.
func HighestRole(roles []Role) (Role, error) {
	if len(roles) == 0 {
		return "", fmt.Errorf("%w: no roles supplied", ErrInvalidRole)
	}
	best := roles[0]
	for _, r := range roles[1:] {
		if r.Rank() > best.Rank() {
			best = r
		}
	}
	if !best.Valid() {
		return "", fmt.Errorf("%w: no valid role in input", ErrInvalidRole)
	}
	return best, nil
}
