package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	count     int
	err       error
	lastSince time.Time
	calls     int
}

func (f *fakeStore) CountInWindow(_ context.Context, _, _, _ string, since time.Time) (int, error) {
	f.calls++
	f.lastSince = since
	return f.count, f.err
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	store := &fakeStore{count: 0}
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	l, err := New(store, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := l.Check(context.Background(), "ws-1", "user-1", "CREATE", time.Minute, 5)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expected allowed")
	}
	if res.RemainingAttempts != 5 {
		t.Fatalf("remaining = %d, want 5", res.RemainingAttempts)
	}
	if !res.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("resetAt = %v", res.ResetAt)
	}
	if !store.lastSince.Equal(now.Add(-time.Minute)) {
		t.Fatalf("since = %v, want %v", store.lastSince, now.Add(-time.Minute))
	}
}

func TestCheckDeniesAtLimit(t *testing.T) {
	store := &fakeStore{count: 5}
	l, _ := New(store)

	res, err := l.Check(context.Background(), "ws-1", "user-1", "CREATE", time.Minute, 5)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected denied at the limit")
	}
	if res.RemainingAttempts != 0 {
		t.Fatalf("remaining = %d, want 0", res.RemainingAttempts)
	}
}

func TestCheckLastSlot(t *testing.T) {
	store := &fakeStore{count: 4}
	l, _ := New(store)

	res, err := l.Check(context.Background(), "ws-1", "user-1", "CREATE", time.Minute, 5)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed || res.RemainingAttempts != 1 {
		t.Fatalf("got allowed=%v remaining=%d, want true/1", res.Allowed, res.RemainingAttempts)
	}
}

func TestCheckCountsEveryTime(t *testing.T) {
	store := &fakeStore{count: 0}
	l, _ := New(store)

	for i := 0; i < 3; i++ {
		if _, err := l.Check(context.Background(), "ws-1", "u", "CREATE", time.Minute, 5); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}
	if store.calls != 3 {
		t.Fatalf("store queried %d times, want 3", store.calls)
	}
}

func TestCheckPropagatesStoreError(t *testing.T) {
	wantErr := errors.New("db down")
	l, _ := New(&fakeStore{err: wantErr})

	if _, err := l.Check(context.Background(), "ws-1", "u", "CREATE", time.Minute, 5); !errors.Is(err, wantErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCheckRejectsBadArguments(t *testing.T) {
	l, _ := New(&fakeStore{})
	if _, err := l.Check(context.Background(), "ws-1", "u", "CREATE", 0, 5); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := l.Check(context.Background(), "ws-1", "u", "CREATE", time.Minute, 0); err == nil {
		t.Fatal("expected error for zero max")
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
