package practice

import (
	"sync"
	"time"
)

const DefaultSessionTTL = 2 * time.Hour

// Registry holds live sessions keyed by id. Every Get slides the expiry
// forward.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	expiresAt map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
}

func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		expiresAt: make(map[string]time.Time),
		ttl:       ttl,
		now:       now,
	}
}

func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	r.expiresAt[s.ID()] = r.now().Add(r.ttl)
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.After(r.expiresAt[id]) {
		return nil, false
	}
	r.expiresAt[id] = now.Add(r.ttl)
	return s, true
}

func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		delete(r.expiresAt, id)
	}
	return s, ok
}

// CleanupExpired drops expired sessions and returns them so the caller can
// close them outside the registry lock.
func (r *Registry) CleanupExpired() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var out []*Session
	for id, exp := range r.expiresAt {
		if now.After(exp) {
			out = append(out, r.sessions[id])
			delete(r.sessions, id)
			delete(r.expiresAt, id)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
