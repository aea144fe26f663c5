// internal/telegram/session.go
package telegram

import (
	"sync"
	"time"
)

// SessionStore holds the pending multi-turn command per requesting user,
// keyed by the stable Telegram user identifier. Entries live in memory
// only; a process restart clears every pending flow. Stale entries are
// expired on access after the configured idle TTL so the map cannot grow
// without bound.
type SessionStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[int64]sessionEntry

	now func() time.Time // swapped out in tests
}

type sessionEntry struct {
	cmd     command
	touched time.Time
}

// NewSessionStore creates a session store with the given idle TTL.
// A non-positive TTL disables expiry.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl: ttl,
		m:   make(map[int64]sessionEntry),
		now: time.Now,
	}
}

// Pending returns the user's pending command, expiring it first if it
// has been idle past the TTL.
func (s *SessionStore) Pending(userID int64) (command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.m[userID]
	if !ok {
		return "", false
	}
	if s.ttl > 0 && s.now().Sub(entry.touched) > s.ttl {
		delete(s.m, userID)
		return "", false
	}
	return entry.cmd, true
}

// Set records cmd as the user's pending command, superseding any
// previous one.
func (s *SessionStore) Set(userID int64, cmd command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = sessionEntry{cmd: cmd, touched: s.now()}
}

// Clear drops the user's pending command, if any.
func (s *SessionStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
