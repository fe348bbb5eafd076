package engine

import (
	"sync"
	"time"

	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
)

const (
	DefaultSessionTTL        = 30 * time.Minute
	DefaultFinishedRetention = 5 * time.Minute
)

type registryEntry struct {
	mu      sync.Mutex
	session *BattleSession
	removed bool
}

// Registry holds the live sessions. Each session has its own lock so actions
// on one battle are serialised while different battles proceed in parallel.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*registryEntry
	ttl       time.Duration
	retention time.Duration
}

// NewRegistry creates an empty registry. Zero durations fall back to the defaults.
func NewRegistry(ttl, retention time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if retention <= 0 {
		retention = DefaultFinishedRetention
	}
	return &Registry{
		entries:   make(map[string]*registryEntry),
		ttl:       ttl,
		retention: retention,
	}
}

// Put publishes a fully built session.
func (r *Registry) Put(s *BattleSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID] = &registryEntry{session: s}
}

func (r *Registry) entry(id string) (*registryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Get returns a deep snapshot of a session.
func (r *Registry) Get(id string) (*BattleSession, bool) {
	e, ok := r.entry(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false
	}
	return e.session.Clone(), true
}

// Update runs fn on the live session while holding its lock, then returns a snapshot.
// A missing session yields a NotFound error.
func (r *Registry) Update(id string, fn func(*BattleSession) error) (*BattleSession, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, apperrors.NotFound("battle not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, apperrors.NotFound("battle not found")
	}
	if err := fn(e.session); err != nil {
		return nil, err
	}
	return e.session.Clone(), nil
}

// Remove drops a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// EvictIdle removes sessions untouched for longer than the TTL, and finished
// sessions older than the retention window. It returns the evicted ids.
func (r *Registry) EvictIdle(now time.Time) []string {
	r.mu.RLock()
	candidates := make(map[string]*registryEntry, len(r.entries))
	for id, e := range r.entries {
		candidates[id] = e
	}
	r.mu.RUnlock()

	var evicted []string
	for id, e := range candidates {
		e.mu.Lock()
		idle := now.Sub(e.session.UpdatedAt)
		expired := idle > r.ttl || (e.session.Finished && idle > r.retention)
		if expired {
			e.removed = true
		}
		e.mu.Unlock()

		if expired {
			r.mu.Lock()
			if r.entries[id] == e {
				delete(r.entries, id)
			}
			r.mu.Unlock()
			evicted = append(evicted, id)
		}
	}
	return evicted
}
