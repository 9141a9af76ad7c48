package campaign

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds active wizard sessions keyed by campaign ID and evicts the ones
// that have gone idle past the TTL.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Pipeline
	deps     Deps
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a session store. Call StartJanitor to begin TTL eviction.
func NewStore(deps Deps, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Pipeline),
		deps:     deps,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
}

// Create starts a new wizard session.
func (s *Store) Create() *Pipeline {
	p := newPipeline(uuid.New().String(), s.deps)
	s.mu.Lock()
	s.sessions[p.ID()] = p
	s.mu.Unlock()
	return p
}

// Get returns the session with the given ID.
func (s *Store) Get(id string) (*Pipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sessions[id]
	return p, ok
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle past the TTL and reports how many were removed.
func (s *Store) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	var expired []*Pipeline
	for id, p := range s.sessions {
		if p.expired(s.ttl, now) {
			expired = append(expired, p)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, p := range expired {
		p.Close()
	}
	return len(expired)
}

// StartJanitor sweeps expired sessions periodically until Stop is called.
func (s *Store) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 && s.deps.Logger != nil {
					s.deps.Logger.Info("Swept expired campaign sessions", "count", n)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the janitor.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
