// Package ratelimit implements a sliding-window attempt counter keyed by
// (workspace, actor, action). It is a defense-in-depth limiter, not a hard
// quota: the count is a best-effort read and slight over-admission under a
// concurrent race is acceptable.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// AttemptStore supplies the count of recorded attempts inside a window. The
// audit store satisfies this interface, so the limiter can run off the audit
// trail without a dedicated counter table.
type AttemptStore interface {
	CountInWindow(ctx context.Context, workspaceID, actorID, action string, since time.Time) (int, error)
}

// Result describes the outcome of a single check.
type Result struct {
	Allowed           bool
	RemainingAttempts int
	ResetAt           time.Time
}

// Limiter evaluates sliding windows against an injected attempt store. It
// holds no mutable state of its own; every check reads fresh.
type Limiter struct {
	store AttemptStore
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Test use.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a Limiter over the given attempt store.
func New(store AttemptStore, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: attempt store is required")
	}
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check counts attempts in [now-window, now] and compares against max. The
// boundary is inclusive: an attempt exactly window old still counts. A check
// does not record an attempt; the caller records successful attempts
// separately through the audit trail.
func (l *Limiter) Check(ctx context.Context, workspaceID, actorID, action string, window time.Duration, max int) (Result, error) {
	if window <= 0 || max <= 0 {
		return Result{}, errors.New("ratelimit: window and max attempts must be positive")
	}
	now := l.now().UTC()
	count, err := l.store.CountInWindow(ctx, workspaceID, actorID, action, now.Add(-window))
	if err != nil {
		return Result{}, err
	}
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:           count < max,
		RemainingAttempts: remaining,
		ResetAt:           now.Add(window),
	}, nil
}
