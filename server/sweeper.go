package server

import (
	"time"

	"github.com/chazu/rjs/exchange"
)

// StaleSweeper disconnects a console client that has not called for longer
// than the stale span. A client waiting in RunMainLoop is never stale.
type StaleSweeper struct {
	x          *exchange.Exchange
	sessions   *SessionStore
	span       time.Duration
	disconnect func(*Session)
}

// NewStaleSweeper creates a sweeper; disconnect ends a stale session.
func NewStaleSweeper(x *exchange.Exchange, sessions *SessionStore, span time.Duration, disconnect func(*Session)) *StaleSweeper {
	return &StaleSweeper{x: x, sessions: sessions, span: span, disconnect: disconnect}
}

// Sweep checks the console session against now. It reports whether the
// session was disconnected.
func (s *StaleSweeper) Sweep(now time.Time) bool {
	session, ok := s.sessions.BySlot(0)
	if !ok || s.x.ConsoleWaiting() {
		return false
	}
	last := s.x.LastActivity(0)
	if last.Before(session.Connected) {
		last = session.Connected
	}
	if now.Sub(last) < s.span {
		return false
	}
	log.Warningf("console client %s idle since %s, disconnecting", session.Token, last.Format(time.RFC3339))
	s.disconnect(session)
	return true
}

// Start runs periodic sweeps in the background.
// Returns a stop function.
func (s *StaleSweeper) Start(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case now := <-ticker.C:
				s.Sweep(now)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
