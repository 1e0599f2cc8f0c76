// Package session implements the TTL'd, capacity-bounded session cache
// backing the (session-gated) status UI's `[http.status]` bounds.
// Gating itself — deciding which requests are entitled
// to a session — is an HTTP front-end concern outside this package's
// scope; Sessions only tracks liveness of whatever keys the front end
// hands it.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a single entitlement record: its only state is the last
// time it was touched.
type Session struct {
	mu sync.Mutex
	ts time.Time
}

// NewSession creates a Session stamped with the current time.
func NewSession() *Session {
	return &Session{ts: time.Now()}
}

// Touch refreshes the session's last-seen timestamp, extending its
// lifetime.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ts = time.Now()
}

// Timestamp returns the session's last-seen time.
func (s *Session) Timestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ts
}

// Lifetime returns how long it has been since the session was last
// touched, as of now.
func (s *Session) Lifetime(now time.Time) time.Duration {
	return now.Sub(s.Timestamp())
}

// Sessions is an in-memory registry of live sessions, bounded by both a
// TTL and a maximum capacity. When over capacity, the least-recently-
// touched sessions are evicted first.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	capacity int
}

// New constructs a Sessions registry with the given capacity and TTL.
func New(capacity int, ttl time.Duration) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		capacity: capacity,
	}
}

// NewKey mints a fresh session key.
func NewKey() string {
	return uuid.NewString()
}

// Get returns the session registered under key, if any.
func (s *Sessions) Get(key string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Set registers a session under key, replacing any existing entry.
func (s *Sessions) Set(key string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess
}

// Remove deletes the session registered under key, if any.
func (s *Sessions) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Len reports the number of currently registered sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup evicts every session older than the configured TTL, then —
// if still over capacity — evicts the least-recently-touched sessions
// until back at capacity.
func (s *Sessions) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, sess := range s.sessions {
		if sess.Lifetime(now) >= s.ttl {
			delete(s.sessions, key)
		}
	}

	if len(s.sessions) <= s.capacity {
		return
	}

	type entry struct {
		key string
		ts  time.Time
	}
	entries := make([]entry, 0, len(s.sessions))
	for key, sess := range s.sessions {
		entries = append(entries, entry{key: key, ts: sess.Timestamp()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })

	toRemove := len(entries) - s.capacity
	for _, e := range entries[:toRemove] {
		delete(s.sessions, e.key)
	}
}
