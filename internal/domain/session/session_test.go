package session

import (
	"testing"
	"time"
)

func TestEmitAssignsStrictlyIncreasingIDs(t *testing.T) {
	s := New()
	var prev uint64
	for i := 0; i < 5; i++ {
		ev := s.Emit(KindData, "payload", nil, nil)
		if ev.ID <= prev {
			t.Fatalf("expected strictly increasing IDs, got %d after %d", ev.ID, prev)
		}
		prev = ev.ID
	}
}

func TestReplayBufferTrimsToMostRecent(t *testing.T) {
	s := New()
	trimmed := 0
	for i := 0; i < maxReplayBuffer+10; i++ {
		s.Emit(KindData, "payload", func() { trimmed++ }, nil)
	}
	buffered := s.ReplaySince(0)
	if len(buffered) != maxReplayBuffer {
		t.Fatalf("expected buffer capped at %d, got %d", maxReplayBuffer, len(buffered))
	}
	if trimmed != 10 {
		t.Fatalf("expected 10 trims, got %d", trimmed)
	}
	if buffered[0].ID != 11 {
		t.Fatalf("expected oldest retained event to be id 11, got %d", buffered[0].ID)
	}
}

func TestReplaySinceFiltersByID(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Emit(KindData, "payload", nil, nil)
	}
	replay := s.ReplaySince(3)
	if len(replay) != 2 {
		t.Fatalf("expected 2 events after id 3, got %d", len(replay))
	}
	if replay[0].ID != 4 || replay[1].ID != 5 {
		t.Fatalf("unexpected replay ids: %+v", replay)
	}
}

func TestAttachReplacesPreviousSender(t *testing.T) {
	s := New()
	first := s.Attach()
	second := s.Attach()

	if _, ok := <-first; ok {
		t.Fatal("expected previous sender to be closed on re-attach")
	}
	s.Emit(KindData, "hello", nil, nil)
	select {
	case ev, ok := <-second:
		if !ok {
			t.Fatal("expected second sender to remain open")
		}
		if ev.Payload != "hello" {
			t.Fatalf("unexpected payload: %q", ev.Payload)
		}
	default:
		t.Fatal("expected event delivered to current sender")
	}
}

func TestEmitDropsOldestOnBackpressure(t *testing.T) {
	s := New()
	ch := s.Attach()

	dropped := 0
	for i := 0; i < eventChannelCapacity+5; i++ {
		s.Emit(KindData, "x", nil, func() { dropped++ })
	}
	if dropped == 0 {
		t.Fatal("expected at least one drop under backpressure")
	}
	if len(ch) != eventChannelCapacity {
		t.Fatalf("expected channel to stay at capacity %d, got %d", eventChannelCapacity, len(ch))
	}
}

func TestBindServerKeepsFirstBinding(t *testing.T) {
	s := New()
	if got := s.ServerName(); got != "" {
		t.Fatalf("expected no server bound yet, got %q", got)
	}
	s.BindServer("alpha")
	s.BindServer("beta")
	if got := s.ServerName(); got != "alpha" {
		t.Fatalf("expected first binding to stick, got %q", got)
	}
}

func TestStoreGetExpiresIdleSession(t *testing.T) {
	store := NewStore(10 * time.Millisecond)
	s := New()
	store.Create(s)

	time.Sleep(20 * time.Millisecond)
	if _, err := store.Get(s.ID); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreReapDropsIdleSessions(t *testing.T) {
	store := NewStore(10 * time.Millisecond)
	s := New()
	store.Create(s)

	time.Sleep(20 * time.Millisecond)
	if n := store.Reap(); n != 1 {
		t.Fatalf("expected 1 session reaped, got %d", n)
	}
	if store.Count() != 0 {
		t.Fatal("expected store empty after reap")
	}
}
