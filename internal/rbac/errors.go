package rbac

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRole      = errors.New("rbac: invalid role")
	ErrPermissionDenied = errors.New("rbac: permission denied")
	ErrInsufficientRole = errors.New("rbac: insufficient role")
)

// PermissionError reports a role missing a required capability.
type PermissionError struct {
	Role       Role
	Permission Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("rbac: role %q lacks permission %q", e.Role, e.Permission)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// InsufficientRoleError reports a role ranked below the required one.
type InsufficientRoleError struct {
	Role     Role
	Required Role
}

func (e *InsufficientRoleError) Error() string {
	return fmt.Sprintf("rbac: role %q is below required role %q", e.Role, e.Required)
}

func (e *InsufficientRoleError) Unwrap() error {
	return ErrInsufficientRole
}
