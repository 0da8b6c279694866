package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"opsdesk.dev/internal/ids"
)

// Logger writes and reads the audit trail. It is safe for concurrent use:
// the only shared state is the injected store, and every write is a fresh
// insert.
type Logger struct {
	store Store
	now   func() time.Time
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithClock overrides the time source. Test use.
func WithClock(now func() time.Time) LoggerOption {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger constructs a Logger over the given store.
func NewLogger(store Store, opts ...LoggerOption) (*Logger, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	l := &Logger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LogCreate records a CREATE: old values absent, changes mirror the new
// snapshot. Credential-like fields are dropped before anything is stored.
func (l *Logger) LogCreate(ctx context.Context, workspaceID, userID, resourceType, resourceID string, newValues map[string]any, meta RequestMeta) (Record, error) {
	clean := redactSnapshot(newValues)
	rec := Record{
		Action:       ActionCreate,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		NewValues:    clean,
		Changes:      snapshotToChanges(clean),
	}
	return l.append(ctx, workspaceID, userID, rec, meta)
}

// LogUpdate records an UPDATE with a minimal diff: only fields whose values
// differ between the snapshots appear in Changes, each shaped {old, new}.
// The diff is computed purely from the two supplied snapshots.
func (l *Logger) LogUpdate(ctx context.Context, workspaceID, userID, resourceType, resourceID string, oldValues, newValues map[string]any, meta RequestMeta) (Record, error) {
	oldClean := redactSnapshot(oldValues)
	newClean := redactSnapshot(newValues)
	rec := Record{
		Action:       ActionUpdate,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    oldClean,
		NewValues:    newClean,
		Changes:      diffSnapshots(oldClean, newClean),
	}
	return l.append(ctx, workspaceID, userID, rec, meta)
}

// LogDelete records a DELETE: new values absent, changes capture the removed
// snapshot.
func (l *Logger) LogDelete(ctx context.Context, workspaceID, userID, resourceType, resourceID string, oldValues map[string]any, meta RequestMeta) (Record, error) {
	clean := redactSnapshot(oldValues)
	changes := make(map[string]Change, len(clean))
	for field, val := range clean {
		changes[field] = Change{Old: val, New: nil}
	}
	if len(changes) == 0 {
		changes = nil
	}
	rec := Record{
		Action:       ActionDelete,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    clean,
		Changes:      changes,
	}
	return l.append(ctx, workspaceID, userID, rec, meta)
}

// LogAction is the generic entry point for custom verbs (SEND, VOID,
// INVITE, ...). The verb is uppercased before storage; details are stored as
// the new-value snapshot after credential stripping.
func (l *Logger) LogAction(ctx context.Context, workspaceID, userID, action, resourceType, resourceID string, details map[string]any, meta RequestMeta) (Record, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action == "" {
		return Record{}, fmt.Errorf("%w: action is required", ErrInvalidInput)
	}
	clean := redactSnapshot(details)
	rec := Record{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		NewValues:    clean,
		Changes:      snapshotToChanges(clean),
	}
	return l.append(ctx, workspaceID, userID, rec, meta)
}

func (l *Logger) append(ctx context.Context, workspaceID, userID string, rec Record, meta RequestMeta) (Record, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return Record{}, fmt.Errorf("%w: workspace_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(rec.ResourceType) == "" {
		return Record{}, fmt.Errorf("%w: resource_type is required", ErrInvalidInput)
	}
	// Final redaction gate: every entry point already strips credential
	// fields from the snapshots, but the computed diff passes through here
	// once more before anything reaches the store.
	rec.Changes = redactChanges(rec.Changes)
	rec.ID = ids.New()
	rec.WorkspaceID = workspaceID
	rec.UserID = strings.TrimSpace(userID)
	rec.IPAddress = meta.IPAddress
	rec.UserAgent = meta.UserAgent
	rec.CreatedAt = l.now().UTC()
	if err := l.store.Append(ctx, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return rec, nil
}

// Logs returns matching records newest-first. An empty result is an empty
// slice, not an error.
func (l *Logger) Logs(ctx context.Context, workspaceID string, f Filter) ([]Record, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id is required", ErrInvalidInput)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return l.store.Query(ctx, workspaceID, f)
}

// Stats aggregates the trailing days window: total actions, counts by action
// type, by resource type, and per UTC calendar day. Computed from Query so
// the store surface stays at its three shapes.
func (l *Logger) Stats(ctx context.Context, workspaceID string, days int) (Stats, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return Stats{}, fmt.Errorf("%w: workspace_id is required", ErrInvalidInput)
	}
	if days <= 0 {
		days = 30
	}
	now := l.now().UTC()
	stats := Stats{
		ByAction:       map[string]int{},
		ByResourceType: map[string]int{},
		ByDay:          map[string]int{},
	}
	const page = 500
	filter := Filter{Start: now.AddDate(0, 0, -days), End: now, Limit: page}
	for {
		batch, err := l.store.Query(ctx, workspaceID, filter)
		if err != nil {
			return Stats{}, err
		}
		for _, rec := range batch {
			stats.Total++
			stats.ByAction[rec.Action]++
			stats.ByResourceType[rec.ResourceType]++
			stats.ByDay[rec.CreatedAt.UTC().Format("2006-01-02")]++
		}
		if len(batch) < page {
			return stats, nil
		}
		filter.Offset += page
	}
}
