// Package session keeps short-lived conversation state so follow-up
// questions can be phrased against recent context. Sessions expire after a
// TTL of inactivity and keep a bounded number of turns.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

type conversation struct {
	turns    []Turn
	lastSeen time.Time
}

// Store holds conversations by session ID. Safe for concurrent use.
type Store struct {
	ttl      time.Duration
	maxTurns int
	now      func() time.Time

	mu    sync.Mutex
	convs map[string]*conversation
}

// NewStore creates a session store. Sessions idle longer than ttl are
// dropped; each keeps at most maxTurns recent turns.
func NewStore(ttl time.Duration, maxTurns int) *Store {
	if maxTurns < 1 {
		maxTurns = 1
	}
	return &Store{
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
		convs:    make(map[string]*conversation),
	}
}

// NewID returns a fresh session identifier.
func NewID() string { return uuid.NewString() }

// Append records a completed turn, creating the session if needed.
func (s *Store) Append(id string, turn Turn) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		c = &conversation{}
		s.convs[id] = c
	}
	c.turns = append(c.turns, turn)
	if len(c.turns) > s.maxTurns {
		c.turns = c.turns[len(c.turns)-s.maxTurns:]
	}
	c.lastSeen = s.now()
}

// Recent returns up to n most recent turns for the session, oldest first.
// An expired or unknown session returns nil.
func (s *Store) Recent(id string, n int) []Turn {
	if id == "" || n < 1 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil
	}
	if s.expired(c) {
		delete(s.convs, id)
		return nil
	}
	c.lastSeen = s.now()

	turns := c.turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear removes one session. Reports whether it existed.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.convs[id]
	delete(s.convs, id)
	return ok
}

// Len returns the number of live sessions, counting not-yet-purged expired
// ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// Purge drops all expired sessions and returns how many were removed.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.convs {
		if s.expired(c) {
			delete(s.convs, id)
			removed++
		}
	}
	return removed
}

// StartJanitor purges expired sessions every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Purge()
			}
		}
	}()
}

func (s *Store) expired(c *conversation) bool {
	return s.ttl > 0 && s.now().Sub(c.lastSeen) > s.ttl
}
