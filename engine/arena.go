package engine

import (
	"sync"
	"time"
)

// Handle is an opaque reference to a value preserved in an Arena.
// Zero is never a valid handle.
type Handle uint64

// Arena keeps engine values reachable while a client refers to them and
// maps them to opaque integer handles.
type Arena struct {
	mu      sync.Mutex
	entries map[Handle]*arenaEntry
	byValue map[*Value]Handle
	nextID  Handle
}

type arenaEntry struct {
	value    *Value
	owner    string
	refs     int
	created  time.Time
	lastUsed time.Time
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		entries: make(map[Handle]*arenaEntry),
		byValue: make(map[*Value]Handle),
		nextID:  1,
	}
}

// Preserve registers v for owner and returns its handle. Preserving the
// same value again returns the existing handle and bumps its count.
func (a *Arena) Preserve(v *Value, owner string) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if h, ok := a.byValue[v]; ok {
		e := a.entries[h]
		e.refs++
		e.lastUsed = now
		if e.owner == "" {
			e.owner = owner
		}
		return h
	}
	h := a.nextID
	a.nextID++
	a.entries[h] = &arenaEntry{
		value:    v,
		owner:    owner,
		refs:     1,
		created:  now,
		lastUsed: now,
	}
	a.byValue[v] = h
	return h
}

// Lookup returns the value for h. The bool is false when h is unknown or
// already released.
func (a *Arena) Lookup(h Handle) (*Value, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[h]
	if !ok {
		return nil, false
	}
	e.lastUsed = time.Now()
	return e.value, true
}

// Release drops one preservation of h. The handle disappears when its count
// reaches zero.
func (a *Arena) Release(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(h, false)
}

func (a *Arena) releaseLocked(h Handle, all bool) {
	e, ok := a.entries[h]
	if !ok {
		return
	}
	e.refs--
	if all || e.refs <= 0 {
		delete(a.entries, h)
		delete(a.byValue, e.value)
	}
}

// ReleaseOwner drops every handle preserved for owner and returns how many
// were released.
func (a *Arena) ReleaseOwner(owner string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for h, e := range a.entries {
		if e.owner == owner {
			a.releaseLocked(h, true)
			count++
		}
	}
	return count
}

// Sweep releases owned handles not used within ttl. Handles without an owner
// belong to a scope and are left alone.
func (a *Arena) Sweep(ttl time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	count := 0
	for h, e := range a.entries {
		if e.owner != "" && e.lastUsed.Before(cutoff) {
			a.releaseLocked(h, true)
			count++
		}
	}
	return count
}

// Count returns the number of live handles.
func (a *Arena) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Scope collects values protected during one operation.
type Scope struct {
	arena   *Arena
	handles []Handle
}

// Scope opens a protect scope. Release must be called on every exit path.
func (a *Arena) Scope() *Scope {
	return &Scope{arena: a}
}

// Protect keeps v alive until the scope is released and returns its handle.
func (s *Scope) Protect(v *Value) Handle {
	h := s.arena.Preserve(v, "")
	s.handles = append(s.handles, h)
	return h
}

// Release drops everything protected by the scope. It is safe to call twice.
func (s *Scope) Release() {
	for _, h := range s.handles {
		s.arena.Release(h)
	}
	s.handles = nil
}
