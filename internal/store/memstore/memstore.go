// Package memstore provides in-memory implementations of the persistence
// collaborators: the audit store, workspace membership, and the business
// directory. Used for tests and for running the API without Postgres.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"opsdesk.dev/internal/audit"
	"opsdesk.dev/internal/directory"
	"opsdesk.dev/internal/rbac"
	"opsdesk.dev/internal/workspace"
)

// AuditStore is an append-only in-memory audit trail.
type AuditStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

// NewAuditStore returns an empty trail.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

var _ audit.Store = (*AuditStore)(nil)

// Append inserts a copy of the record. Stored records are never handed back
// by reference, so callers cannot mutate the trail.
func (s *AuditStore) Append(_ context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, cloneRecord(*rec))
	return nil
}

// Query returns matching records newest-first with limit/offset pagination.
func (s *AuditStore) Query(_ context.Context, workspaceID string, f audit.Filter) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Record
	for _, rec := range s.records {
		if rec.WorkspaceID != workspaceID {
			continue
		}
		if f.ResourceType != "" && rec.ResourceType != f.ResourceType {
			continue
		}
		if f.ResourceID != "" && rec.ResourceID != f.ResourceID {
			continue
		}
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if f.Action != "" && rec.Action != f.Action {
			continue
		}
		if !f.Start.IsZero() && rec.CreatedAt.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && rec.CreatedAt.After(f.End) {
			continue
		}
		matched = append(matched, cloneRecord(rec))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []audit.Record{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	if matched == nil {
		matched = []audit.Record{}
	}
	return matched, nil
}

// CountInWindow counts records for (workspace, user, action) at or after
// since. The boundary is inclusive.
func (s *AuditStore) CountInWindow(_ context.Context, workspaceID, userID, action string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.records {
		if rec.WorkspaceID != workspaceID || rec.UserID != userID || rec.Action != action {
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

// Len reports the number of stored records. Test use.
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(rec audit.Record) audit.Record {
	out := rec
	out.OldValues = cloneMap(rec.OldValues)
	out.NewValues = cloneMap(rec.NewValues)
	if rec.Changes != nil {
		out.Changes = make(map[string]audit.Change, len(rec.Changes))
		for k, v := range rec.Changes {
			out.Changes[k] = v
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// MemberStore keeps workspace membership in memory.
type MemberStore struct {
	mu      sync.RWMutex
	members map[string]workspace.Member // key: workspaceID + "/" + userID
}

// NewMemberStore returns an empty membership store.
func NewMemberStore() *MemberStore {
	return &MemberStore{members: make(map[string]workspace.Member)}
}

var _ workspace.MemberStore = (*MemberStore)(nil)

func memberKey(workspaceID, userID string) string {
	return workspaceID + "/" + userID
}

func (s *MemberStore) Role(_ context.Context, workspaceID, userID string) (rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey(workspaceID, userID)]
	if !ok {
		return "", workspace.ErrNotFound
	}
	return m.Role, nil
}

func (s *MemberStore) Get(_ context.Context, workspaceID, userID string) (workspace.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey(workspaceID, userID)]
	if !ok {
		return workspace.Member{}, workspace.ErrNotFound
	}
	return m, nil
}

func (s *MemberStore) List(_ context.Context, workspaceID string) ([]workspace.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []workspace.Member
	for _, m := range s.members {
		if m.WorkspaceID == workspaceID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemberStore) Add(_ context.Context, m workspace.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(m.WorkspaceID, m.UserID)
	if _, exists := s.members[key]; exists {
		return workspace.ErrAlreadyExists
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.members[key] = m
	return nil
}

func (s *MemberStore) UpdateRole(_ context.Context, workspaceID, userID string, role rbac.Role) (workspace.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(workspaceID, userID)
	m, ok := s.members[key]
	if !ok {
		return workspace.Member{}, workspace.ErrNotFound
	}
	m.Role = role
	m.UpdatedAt = time.Now().UTC()
	s.members[key] = m
	return m, nil
}

// AcceptInvite redeems a pending invite token. The token is single-use:
// redeeming clears it, so a second attempt resolves to ErrNotFound.
func (s *MemberStore) AcceptInvite(_ context.Context, token, passwordHash string) (workspace.Member, error) {
	if token == "" {
		return workspace.Member{}, workspace.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.members {
		if m.InviteToken != token {
			continue
		}
		m.InviteToken = ""
		if passwordHash != "" {
			m.PasswordHash = passwordHash
		}
		m.UpdatedAt = time.Now().UTC()
		s.members[key] = m
		return m, nil
	}
	return workspace.Member{}, workspace.ErrNotFound
}

func (s *MemberStore) Remove(_ context.Context, workspaceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(workspaceID, userID)
	if _, ok := s.members[key]; !ok {
		return workspace.ErrNotFound
	}
	delete(s.members, key)
	return nil
}

// Directory stores business objects keyed by workspace/resource-type/id.
type Directory struct {
	mu      sync.RWMutex
	objects map[string]map[string]any
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{objects: make(map[string]map[string]any)}
}

var _ directory.Store = (*Directory)(nil)

func objectKey(workspaceID, resourceType, id string) string {
	return strings.Join([]string{workspaceID, resourceType, id}, "/")
}

func (d *Directory) Get(_ context.Context, workspaceID, resourceType, id string) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := d.objects[objectKey(workspaceID, resourceType, id)]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return cloneMap(obj), nil
}

func (d *Directory) List(_ context.Context, workspaceID, resourceType string) ([]map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	prefix := workspaceID + "/" + resourceType + "/"
	keys := make([]string, 0)
	for key := range d.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, cloneMap(d.objects[key]))
	}
	return out, nil
}

func (d *Directory) Put(_ context.Context, workspaceID, resourceType, id string, obj map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[objectKey(workspaceID, resourceType, id)] = cloneMap(obj)
	return nil
}

func (d *Directory) Delete(_ context.Context, workspaceID, resourceType, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := objectKey(workspaceID, resourceType, id)
	if _, ok := d.objects[key]; !ok {
		return directory.ErrNotFound
	}
	delete(d.objects, key)
	return nil
}
