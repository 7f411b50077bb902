package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Liebig-2005/farmassist/internal/search"
)

var (
	// ErrNotFound is returned when no session exists for a given id.
	ErrNotFound = errors.New("search session not found")
)

type sessionEntry struct {
	assistant *search.Assistant
	lastSeen  time.Time
}

// SessionStore is a concurrency-safe in-memory registry of search sessions.
type SessionStore struct {
	mu sync.RWMutex

	// key: session id
	sessions map[string]*sessionEntry

	// retention configuration
	maxSessions int           // max number of live sessions (0 = unlimited)
	maxIdle     time.Duration // max idle age before a session is swept (0 = unlimited)
}

// NewSessionStore creates a new SessionStore with optional limits.
// If maxSessions is <= 0, it is treated as unlimited.
func NewSessionStore(maxSessions int, maxIdle time.Duration) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		maxSessions: maxSessions,
		maxIdle:     maxIdle,
	}
}

// Create registers an assistant and returns its new session id. When the
// store is full, the longest-idle session makes room.
func (s *SessionStore) Create(a *search.Assistant) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked(len(s.sessions) - s.maxSessions + 1)
	}

	s.sessions[id] = &sessionEntry{
		assistant: a,
		lastSeen:  time.Now(),
	}
	return id
}

// Get returns the assistant for a session and marks the session as seen.
func (s *SessionStore) Get(id string) (*search.Assistant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	entry.lastSeen = time.Now()
	return entry.assistant, nil
}

// Delete removes a session if it exists.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than the configured max age and
// returns how many were removed.
func (s *SessionStore) Sweep() int {
	if s.maxIdle <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-s.maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// evictOldestLocked removes the n longest-idle sessions. Callers must hold s.mu.
func (s *SessionStore) evictOldestLocked(n int) {
	type aged struct {
		id       string
		lastSeen time.Time
	}

	entries := make([]aged, 0, len(s.sessions))
	for id, entry := range s.sessions {
		entries = append(entries, aged{id: id, lastSeen: entry.lastSeen})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastSeen.Before(entries[j].lastSeen)
	})

	for i := 0; i < n && i < len(entries); i++ {
		delete(s.sessions, entries[i].id)
	}
}
