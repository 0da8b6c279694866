package audit

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"
)

type recordingStore struct {
	records []Record
	err     error
}

func (s *recordingStore) Append(_ context.Context, rec *Record) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *recordingStore) Query(_ context.Context, workspaceID string, f Filter) ([]Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Record
	for _, rec := range s.records {
		if rec.WorkspaceID != workspaceID {
			continue
		}
		if !f.Start.IsZero() && rec.CreatedAt.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && rec.CreatedAt.After(f.End) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return []Record{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *recordingStore) CountInWindow(_ context.Context, workspaceID, userID, action string, since time.Time) (int, error) {
	n := 0
	for _, rec := range s.records {
		if rec.WorkspaceID == workspaceID && rec.UserID == userID && rec.Action == action && !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func newTestLogger(t *testing.T, store Store, at time.Time) *Logger {
	t.Helper()
	l, err := NewLogger(store, WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return l
}

func TestLogCreate(t *testing.T) {
	store := &recordingStore{}
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	l := newTestLogger(t, store, at)

	rec, err := l.LogCreate(context.Background(), "ws-1", "user-1", "customer", "c-1",
		map[string]any{"name": "Acme", "email": "ops@acme.test"},
		RequestMeta{IPAddress: "203.0.113.9", UserAgent: "curl/8"})
	if err != nil {
		t.Fatalf("LogCreate: %v", err)
	}

	if rec.ID == "" {
		t.Fatal("record has no id")
	}
	if rec.Action != ActionCreate {
		t.Fatalf("action = %q", rec.Action)
	}
	if rec.OldValues != nil {
		t.Fatalf("create must have no old values, got %v", rec.OldValues)
	}
	want := map[string]Change{
		"name":  {Old: nil, New: "Acme"},
		"email": {Old: nil, New: "ops@acme.test"},
	}
	if !reflect.DeepEqual(rec.Changes, want) {
		t.Fatalf("changes = %#v", rec.Changes)
	}
	if !rec.CreatedAt.Equal(at) {
		t.Fatalf("createdAt = %v", rec.CreatedAt)
	}
	if rec.IPAddress != "203.0.113.9" || rec.UserAgent != "curl/8" {
		t.Fatalf("meta not carried: %q %q", rec.IPAddress, rec.UserAgent)
	}
	if len(store.records) != 1 {
		t.Fatalf("%d records stored", len(store.records))
	}
}

func TestLogUpdateMinimalDiff(t *testing.T) {
	store := &recordingStore{}
	l := newTestLogger(t, store, time.Now())

	old := map[string]any{"name": "Acme", "email": "ops@acme.test", "tier": "basic"}
	updated := map[string]any{"name": "Acme Corp", "email": "ops@acme.test", "tier": "pro"}

	rec, err := l.LogUpdate(context.Background(), "ws-1", "user-1", "customer", "c-1", old, updated, RequestMeta{})
	if err != nil {
		t.Fatalf("LogUpdate: %v", err)
	}

	want := map[string]Change{
		"name": {Old: "Acme", New: "Acme Corp"},
		"tier": {Old: "basic", New: "pro"},
	}
	if !reflect.DeepEqual(rec.Changes, want) {
		t.Fatalf("changes = %#v, want %#v", rec.Changes, want)
	}
	if _, present := rec.Changes["email"]; present {
		t.Fatal("unchanged field leaked into the diff")
	}
}

func TestLogUpdateOneSidedFields(t *testing.T) {
	store := &recordingStore{}
	l := newTestLogger(t, store, time.Now())

	rec, err := l.LogUpdate(context.Background(), "ws-1", "u", "customer", "c-1",
		map[string]any{"phone": "555-0100"},
		map[string]any{"fax": "555-0101"},
		RequestMeta{})
	if err != nil {
		t.Fatalf("LogUpdate: %v", err)
	}
	want := map[string]Change{
		"phone": {Old: "555-0100", New: nil},
		"fax":   {Old: nil, New: "555-0101"},
	}
	if !reflect.DeepEqual(rec.Changes, want) {
		t.Fatalf("changes = %#v", rec.Changes)
	}
}

func TestLogUpdateNoChanges(t *testing.T) {
	store := &recordingStore{}
	l := newTestLogger(t, store, time.Now())

	snap := map[string]any{"name": "Acme"}
	rec, err := l.LogUpdate(context.Background(), "ws-1", "u", "customer", "c-1", snap, snap, RequestMeta{})
	if err != nil {
		t.Fatalf("LogUpdate: %v", err)
	}
	if rec.Changes != nil {
		t.Fatalf("identical snapshots should produce no diff, got %#v", rec.Changes)
	}
}

func TestCredentialRedaction(t *testing.T) {
	store := &recordingStore{}
	l := newTestLogger(t, store, time.Now())

	rec, err := l.LogCreate(context.Background(), "ws-1", "u", "member", "m-1",
		map[string]any{
			"email":         "new@acme.test",
			"password_hash": "bcrypt$...",
			"invite_token":  "abc123",
			"api_key":       "k",
			"ClientSecret":  "s",
			"profile": map[string]any{
				"name":          "Pat",
				"refresh_token": "r",
			},
		}, RequestMeta{})
	if err != nil {
		t.Fatalf("LogCreate: %v", err)
	}

	for _, field := range []string{"password_hash", "invite_token", "api_key", "ClientSecret"} {
		if _, present := rec.NewValues[field]; present {
			t.Errorf("credential field %q stored", field)
		}
		if _, present := rec.Changes[field]; present {
			t.Errorf("credential field %q in changes", field)
		}
	}
	profile := rec.NewValues["profile"].(map[string]any)
	if _, present := profile["refresh_token"]; present {
		t.Error("nested credential field stored")
	}
	if profile["name"] != "Pat" {
		t.Error("non-credential nested field dropped")
	}
}

func TestRedactChanges(t *testing.T) {
	in := map[string]Change{
		"email":        {Old: "a@x", New: "b@x"},
		"api_key":      {Old: "k1", New: "k2"},
		"InviteToken":  {Old: nil, New: "t"},
		"display_name": {Old: "A", New: "B"},
	}
	out := redactChanges(in)
	if len(out) != 2 {
		t.Fatalf("changes = %v", out)
	}
	for _, field := range []string{"api_key", "InviteToken"} {
		if _, present := out[field]; present {
			t.Errorf("credential field %q kept", field)
		}
	}
	if redactChanges(map[string]Change{"secret": {New: "s"}}) != nil {
		t.Error("all-credential diff should collapse to nil")
	}
	if redactChanges(nil) != nil {
		t.Error("nil diff should stay nil")
	}
}

func TestLogDelete(t *testing.T) {
	store := &recordingStore{}
	l := newTestLogger(t, store, time.Now())

	rec, err := l.LogDelete(context.Background(), "ws-1", "u", "invoice", "i-1",
		map[string]any{"number": "INV-7", "total": 120.50}, RequestMeta{})
	if err != nil {
		t.Fatalf("LogDelete: %v", err)
	}
	if rec.Action != ActionDelete {
		t.Fatalf("action = %q", rec.Action)
	}
	if rec.NewValues != nil {
		t.Fatalf("delete must have no new values")
	}
	want := map[string]Change{
		"number": {Old: "INV-7", New: nil},
		"total":  {Old: 120.50, New: nil},
	}
	if !reflect.DeepEqual(rec.Changes, want) {
		t.Fatalf("changes = %#v", rec.Changes)
	}
}

func TestLogActionUppercasesVerb(t *testing.T) {
	store := &recordingStore{}
	l := newTestLogger(t, store, time.Now())

	rec, err := l.LogAction(context.Background(), "ws-1", "u", "send", "invoice", "i-1",
		map[string]any{"recipient": "billing@acme.test"}, RequestMeta{})
	if err != nil {
		t.Fatalf("LogAction: %v", err)
	}
	if rec.Action != "SEND" {
		t.Fatalf("action = %q, want SEND", rec.Action)
	}
	if rec.NewValues["recipient"] != "billing@acme.test" {
		t.Fatalf("details not stored: %#v", rec.NewValues)
	}

	if _, err := l.LogAction(context.Background(), "ws-1", "u", "  ", "invoice", "i-1", nil, RequestMeta{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank action, got %v", err)
	}
}

func TestAppendValidation(t *testing.T) {
	store := &recordingStore{}
	l := newTestLogger(t, store, time.Now())

	if _, err := l.LogCreate(context.Background(), "", "u", "customer", "c-1", nil, RequestMeta{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty workspace, got %v", err)
	}
	if _, err := l.LogCreate(context.Background(), "ws-1", "u", "  ", "c-1", nil, RequestMeta{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty resource type, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("invalid input reached the store")
	}
}

func TestAppendWrapsStoreFailure(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	l := newTestLogger(t, store, time.Now())

	_, err := l.LogCreate(context.Background(), "ws-1", "u", "customer", "c-1", map[string]any{"a": 1}, RequestMeta{})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestLogsPagination(t *testing.T) {
	store := &recordingStore{}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		l := newTestLogger(t, store, at)
		if _, err := l.LogCreate(context.Background(), "ws-1", "u", "task", "t", map[string]any{"n": i}, RequestMeta{}); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	l := newTestLogger(t, store, base.Add(24*time.Hour))
	page, err := l.Logs(context.Background(), "ws-1", Filter{Limit: 3})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("got %d records, want 3", len(page))
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) || !page[1].CreatedAt.After(page[2].CreatedAt) {
		t.Fatal("records not newest-first")
	}

	rest, err := l.Logs(context.Background(), "ws-1", Filter{Limit: 10, Offset: 3})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(rest) != 4 {
		t.Fatalf("got %d records after offset, want 4", len(rest))
	}

	if _, err := l.Logs(context.Background(), "  ", Filter{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStats(t *testing.T) {
	store := &recordingStore{}
	day1 := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	l1 := newTestLogger(t, store, day1)
	if _, err := l1.LogCreate(context.Background(), "ws-1", "u", "customer", "c-1", map[string]any{"a": 1}, RequestMeta{}); err != nil {
		t.Fatal(err)
	}
	if _, err := l1.LogCreate(context.Background(), "ws-1", "u", "invoice", "i-1", map[string]any{"a": 1}, RequestMeta{}); err != nil {
		t.Fatal(err)
	}
	l2 := newTestLogger(t, store, day2)
	if _, err := l2.LogUpdate(context.Background(), "ws-1", "u", "customer", "c-1",
		map[string]any{"a": 1}, map[string]any{"a": 2}, RequestMeta{}); err != nil {
		t.Fatal(err)
	}
	// A different workspace must not bleed into the stats.
	if _, err := l2.LogCreate(context.Background(), "ws-2", "u", "customer", "c-9", map[string]any{"a": 1}, RequestMeta{}); err != nil {
		t.Fatal(err)
	}

	stats, err := newTestLogger(t, store, day2.Add(time.Hour)).Stats(context.Background(), "ws-1", 30)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("total = %d, want 3", stats.Total)
	}
	if stats.ByAction[ActionCreate] != 2 || stats.ByAction[ActionUpdate] != 1 {
		t.Fatalf("byAction = %#v", stats.ByAction)
	}
	if stats.ByResourceType["customer"] != 2 || stats.ByResourceType["invoice"] != 1 {
		t.Fatalf("byResourceType = %#v", stats.ByResourceType)
	}
	if stats.ByDay["2026-08-27"] != 2 || stats.ByDay["2026-08-28"] != 1 {
		t.Fatalf("byDay = %#v", stats.ByDay)
	}
}
