package grid

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type registryEntry struct {
	o        *Orchestrator
	lastSeen time.Time
}

// Registry holds the live viewport sessions, keyed by a random id. Sessions
// that are not touched for a while are removed by ExpireIdle.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*registryEntry
	factory     func() *Orchestrator
	maxSessions int
	now         func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxSessions caps the number of live sessions. Creating one past the
// cap closes the least recently used. Zero means no cap.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) {
		r.maxSessions = n
	}
}

// WithRegistryClock overrides time.Now, for tests.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry that builds sessions with factory.
func NewRegistry(factory func() *Orchestrator, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*registryEntry),
		factory:  factory,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a new session and returns its id.
func (r *Registry) Create() (string, *Orchestrator) {
	id := uuid.NewString()
	o := r.factory()

	r.mu.Lock()
	var evicted *Orchestrator
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		evicted = r.evictOldestLocked()
	}
	r.sessions[id] = &registryEntry{o: o, lastSeen: r.now()}
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
	}
	return id, o
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.o, true
}

// Close stops and removes a session. It reports whether the id existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		e.o.Close()
	}
	return ok
}

// ExpireIdle closes every session not used within maxIdle and returns how
// many were removed.
func (r *Registry) ExpireIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Orchestrator
	for id, e := range r.sessions {
		if !e.lastSeen.After(cutoff) {
			idle = append(idle, e.o)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, o := range idle {
		o.Close()
	}
	return len(idle)
}

// CloseAll stops every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range sessions {
		e.o.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) evictOldestLocked() *Orchestrator {
	var (
		oldestID string
		oldest   *registryEntry
	)
	for id, e := range r.sessions {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return nil
	}
	delete(r.sessions, oldestID)
	return oldest.o
}
