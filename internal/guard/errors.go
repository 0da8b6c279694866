package guard

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized = errors.New("guard: actor has no role in this workspace")
	ErrRateLimited  = errors.New("guard: rate limit exceeded")
	ErrValidation   = errors.New("guard: input validation failed")
	ErrInvalidInput = errors.New("guard: invalid request")
)

// RateLimitError reports an exhausted attempt budget. ResetAt tells the
// caller when the window opens again.
type RateLimitError struct {
	Action  string
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("guard: rate limit exceeded for %s, resets at %s", e.Action, e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ValidationError reports unsafe input. Reason carries the matched signature
// for the operational log; user-facing layers must not expose it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "guard: input rejected by security validation"
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
