package server

import (
	"sync"
	"time"

	"github.com/ivlev/stitchpreview/internal/composition"
)

const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 64
)

type sessionEntry struct {
	inst     *composition.Instance
	lastSeen time.Time
}

// sessionStore holds the open composition instances by id. Sessions idle
// longer than ttl are dropped, and the least recently used one goes when
// the store is full.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	max      int
	now      func() time.Time
}

func newSessionStore(ttl time.Duration, max int) *sessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &sessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		max:      max,
		now:      time.Now,
	}
}

// add stores the instance and returns the sessions it evicted to make room.
func (s *sessionStore) add(inst *composition.Instance) []string {
	s.mu.Lock()
	now := s.now()
	var evicted []*composition.Instance
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.ttl {
			evicted = append(evicted, e.inst)
			delete(s.sessions, id)
		}
	}
	for len(s.sessions) >= s.max {
		oldest := ""
		for id, e := range s.sessions {
			if oldest == "" || e.lastSeen.Before(s.sessions[oldest].lastSeen) {
				oldest = id
			}
		}
		evicted = append(evicted, s.sessions[oldest].inst)
		delete(s.sessions, oldest)
	}
	s.sessions[inst.ID()] = &sessionEntry{inst: inst, lastSeen: now}
	s.mu.Unlock()

	ids := make([]string, len(evicted))
	for i, e := range evicted {
		e.Close()
		ids[i] = e.ID()
	}
	return ids
}

// get returns the instance and marks it as used.
func (s *sessionStore) get(id string) (*composition.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(e.lastSeen) > s.ttl {
		delete(s.sessions, id)
		e.inst.Close()
		return nil, false
	}
	e.lastSeen = now
	return e.inst, true
}

// remove forgets the instance and abandons it if it is still loading.
func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		e.inst.Close()
	}
	return ok
}

func (s *sessionStore) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()
	for _, e := range all {
		e.inst.Close()
	}
}

func (s *sessionStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
