package server

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// SessionStore
// ---------------------------------------------------------------------------

func TestSessionStore_CreateAndDestroy(t *testing.T) {
	store := NewSessionStore()
	s1, replaced := store.Create(1, "first")
	if replaced != nil {
		t.Errorf("first session replaced %+v", replaced)
	}
	s2, replaced := store.Create(1, "second")
	if replaced != s1 {
		t.Errorf("replaced = %+v, want the first session", replaced)
	}
	if _, ok := store.Get(s1.Token); ok {
		t.Error("replaced session should not be retrievable")
	}
	if got, ok := store.BySlot(1); !ok || got != s2 {
		t.Errorf("BySlot(1) = %+v", got)
	}

	if _, ok := store.Destroy(s1.Token); ok {
		t.Error("destroying a replaced session should fail")
	}
	if _, ok := store.Destroy(s2.Token); !ok {
		t.Error("Destroy failed")
	}
	if _, ok := store.BySlot(1); ok {
		t.Error("slot 1 should be free")
	}
	if n := len(store.All()); n != 0 {
		t.Errorf("%d sessions left", n)
	}
}

func TestSessionStore_BySlotRange(t *testing.T) {
	store := NewSessionStore()
	for _, slot := range []int{-1, 4, 100} {
		if _, ok := store.BySlot(slot); ok {
			t.Errorf("BySlot(%d) found a session", slot)
		}
	}
}

// ---------------------------------------------------------------------------
// StaleSweeper
// ---------------------------------------------------------------------------

func TestStaleSweeper(t *testing.T) {
	store := NewSessionStore()
	var gone *Session
	sweeper := NewStaleSweeper(testCtx.Exchange(), store, time.Minute, func(s *Session) {
		gone = s
		store.Destroy(s.Token)
	})

	if sweeper.Sweep(time.Now().Add(time.Hour)) {
		t.Error("sweep without a console session disconnected something")
	}

	session, _ := store.Create(0, "console")
	if sweeper.Sweep(time.Now()) {
		t.Error("fresh session was swept")
	}
	if !sweeper.Sweep(time.Now().Add(2 * time.Minute)) {
		t.Fatal("stale session was not swept")
	}
	if gone != session {
		t.Errorf("disconnected %+v, want %+v", gone, session)
	}
	if _, ok := store.BySlot(0); ok {
		t.Error("slot 0 still has a session")
	}
}
