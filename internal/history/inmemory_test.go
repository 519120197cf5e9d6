package history

import (
	"context"
	"testing"
	"time"
)

func TestAppendAndHistoryOrder(t *testing.T) {
	s := NewInMemoryStore(100, time.Hour)
	ctx := context.Background()

	for _, turn := range []Turn{
		{User: "premier", Bot: "r1"},
		{User: "deuxième", Bot: "r2"},
		{User: "troisième", Bot: "r3"},
	} {
		if err := s.Append(ctx, "s1", turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	turns, err := s.History(ctx, "s1", 20)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	if turns[0].User != "troisième" {
		t.Fatalf("most recent turn first, got %q", turns[0].User)
	}

	chrono := Chronological(turns)
	if chrono[0].User != "premier" || chrono[2].User != "troisième" {
		t.Fatalf("Chronological order wrong: %+v", chrono)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	s := NewInMemoryStore(2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, "s1", Turn{User: "m", Bot: "r"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	turns, err := s.History(ctx, "s1", 20)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2 (oldest evicted)", len(turns))
	}
}

func TestClearThenHistoryEmpty(t *testing.T) {
	s := NewInMemoryStore(100, time.Hour)
	ctx := context.Background()

	if err := s.Append(ctx, "s1", Turn{User: "m", Bot: "r"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	turns, err := s.History(ctx, "s1", 20)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("len(turns) = %d, want 0 after clear", len(turns))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := NewInMemoryStore(100, time.Hour)
	ctx := context.Background()

	if err := s.Append(ctx, "a", Turn{User: "ma", Bot: "ra"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	turns, err := s.History(ctx, "b", 20)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("session b should be empty, got %d turns", len(turns))
	}
}

func TestValuesRoundTripAndTTL(t *testing.T) {
	s := NewInMemoryStore(100, time.Hour)
	ctx := context.Background()

	type state struct {
		Status string `json:"status"`
	}
	if err := s.SetValue(ctx, "s1", "human_support", state{Status: "open"}, time.Hour); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	var got state
	ok, err := s.GetValue(ctx, "s1", "human_support", &got)
	if err != nil || !ok {
		t.Fatalf("GetValue() = %v, %v; want found", ok, err)
	}
	if got.Status != "open" {
		t.Fatalf("Status = %q, want open", got.Status)
	}

	// Simulate expiry by moving the clock forward.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	ok, err = s.GetValue(ctx, "s1", "human_support", &got)
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if ok {
		t.Fatalf("value should be expired")
	}
}

func TestRawKeysRoundTrip(t *testing.T) {
	s := NewInMemoryStore(100, time.Hour)
	ctx := context.Background()

	if err := s.SetKey(ctx, "human_support_thread:C1:T1", "sess-1", time.Hour); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	v, ok, err := s.GetKey(ctx, "human_support_thread:C1:T1")
	if err != nil || !ok || v != "sess-1" {
		t.Fatalf("GetKey() = %q, %v, %v; want sess-1", v, ok, err)
	}
	if err := s.DeleteKey(ctx, "human_support_thread:C1:T1"); err != nil {
		t.Fatalf("DeleteKey() error = %v", err)
	}
	_, ok, err = s.GetKey(ctx, "human_support_thread:C1:T1")
	if err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}
	if ok {
		t.Fatalf("key should be deleted")
	}
}
