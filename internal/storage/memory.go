// Package storage provides an in-memory conversation store implementation.
package storage

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of ConversationStore.
//
// The conversation map is guarded by mu, which is held only to look up, insert
// or remove sessions. Each session carries its own mutex, so work on one call
// never waits on another call's history.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session

	policy RetentionPolicy
	now    func() time.Time
}

type session struct {
	mu        sync.Mutex
	turns     []Turn
	updatedAt time.Time
	// removed is set once the session has been dropped from the map.
	// Writers that still hold the pointer must look the ID up again.
	removed bool
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithRetention sets the retention policy applied after every append.
func WithRetention(policy RetentionPolicy) Option {
	return func(s *MemoryStore) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory conversation store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*session),
		policy:   DefaultRetention(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the retention policy in effect.
func (s *MemoryStore) Policy() RetentionPolicy {
	return s.policy
}

// Append adds a turn to a conversation.
func (s *MemoryStore) Append(id string, role Role, content string) error {
	if err := ValidateTurn(role, content); err != nil {
		return err
	}

	for {
		sess := s.acquire(id)

		sess.mu.Lock()
		if sess.removed {
			sess.mu.Unlock()
			continue
		}
		sess.turns = s.policy.Apply(append(sess.turns, Turn{Role: role, Content: content}))
		sess.updatedAt = s.now()
		sess.mu.Unlock()
		return nil
	}
}

// History returns a copy of a conversation's turns.
func (s *MemoryStore) History(id string) []Turn {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return []Turn{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.removed {
		return []Turn{}
	}

	// Return a copy to prevent external modification
	turns := make([]Turn, len(sess.turns))
	copy(turns, sess.turns)
	return turns
}

// Clear removes a conversation.
func (s *MemoryStore) Clear(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.retire(sess)
	}
}

// Cleanup removes conversations that have not been appended to within olderThan.
func (s *MemoryStore) Cleanup(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		stale := sess.updatedAt.Before(cutoff)
		if stale {
			sess.removed = true
			sess.turns = nil
		}
		sess.mu.Unlock()

		if stale {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed
}

// Len returns the number of conversations in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// acquire returns the session for id, creating it if absent.
func (s *MemoryStore) acquire(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{
		turns:     make([]Turn, 0, 4),
		updatedAt: s.now(),
	}
	s.sessions[id] = sess
	return sess
}

func (s *MemoryStore) retire(sess *session) {
	sess.mu.Lock()
	sess.removed = true
	sess.turns = nil
	sess.mu.Unlock()
}
