// Package audit owns the append-only activity trail. Records are written
// once and never edited or deleted through application code; the store's
// only mutating operation is an insert.
package audit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("audit: invalid input")
	ErrWriteFailed  = errors.New("audit: write failed")
)

// Built-in audit actions. LogAction accepts custom verbs as well; everything
// is stored uppercased.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Change is a per-field before/after pair inside Record.Changes.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Record is the persisted audit entry. UserID is empty for system-initiated
// actions. Changes is always derivable from OldValues/NewValues alone.
type Record struct {
	ID           string            `json:"id"`
	WorkspaceID  string            `json:"workspace_id"`
	UserID       string            `json:"user_id,omitempty"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id,omitempty"`
	OldValues    map[string]any    `json:"old_values,omitempty"`
	NewValues    map[string]any    `json:"new_values,omitempty"`
	Changes      map[string]Change `json:"changes,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// RequestMeta carries the client fields forwarded by the HTTP layer.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Filter narrows a trail query. Zero values mean "any". Limit defaults to 50
// and caps at 500.
type Filter struct {
	ResourceType string
	ResourceID   string
	UserID       string
	Action       string
	Start        time.Time
	End          time.Time
	Limit        int
	Offset       int
}

// Stats aggregates trail activity over a trailing window. Day keys are
// calendar dates in UTC, formatted 2006-01-02.
type Stats struct {
	Total          int            `json:"total"`
	ByAction       map[string]int `json:"by_action"`
	ByResourceType map[string]int `json:"by_resource_type"`
	ByDay          map[string]int `json:"by_day"`
}

// Store is the persistence collaborator. Append must be insert-only; the
// core issues no schema-specific queries beyond these three shapes.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	Query(ctx context.Context, workspaceID string, f Filter) ([]Record, error)
	CountInWindow(ctx context.Context, workspaceID, userID, action string, since time.Time) (int, error)
}
