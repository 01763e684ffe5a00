package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultMaxSessions = 1000
	defaultIdleTTL     = 30 * time.Minute
)

// entry holds one user's session. refs counts callers holding or waiting on
// mu and is guarded by Repository.mu.
type entry struct {
	mu      sync.Mutex
	session *Session
	touched time.Time
	refs    int
}

// Repository keeps sessions in a bounded LRU. Sessions idle longer than the
// TTL are replaced by a fresh one on next access. Entries in use stay pinned
// in held even after the LRU evicts them, so a user never has two live
// sessions at once.
type Repository struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *entry]
	held  map[string]*entry
	ttl   time.Duration
	now   func() time.Time
}

// NewRepository creates a repository. Non-positive values fall back to
// 1000 sessions and 30 minutes; a nil now means time.Now.
func NewRepository(maxSessions int, ttl time.Duration, now func() time.Time) *Repository {
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	if now == nil {
		now = time.Now
	}
	// lru.New only errors on non-positive size, guarded above.
	cache, _ := lru.New[string, *entry](maxSessions)
	return &Repository{cache: cache, held: map[string]*entry{}, ttl: ttl, now: now}
}

// lookup finds the user's entry, pinned first. Callers hold r.mu.
func (r *Repository) lookup(userID string) (*entry, bool) {
	if e, ok := r.held[userID]; ok {
		return e, true
	}
	return r.cache.Peek(userID)
}

// Acquire returns the user's session locked for exclusive use. The caller
// must call release exactly once when done mutating it.
func (r *Repository) Acquire(userID string) (*Session, func()) {
	r.mu.Lock()
	e, ok := r.lookup(userID)
	if !ok {
		e = &entry{}
	}
	r.cache.Add(userID, e)
	e.refs++
	r.held[userID] = e
	r.mu.Unlock()

	e.mu.Lock()
	now := r.now()
	if e.session == nil || now.Sub(e.touched) > r.ttl {
		e.session = &Session{UserID: userID, State: Idle}
	}
	e.touched = now

	var once sync.Once
	return e.session, func() {
		once.Do(func() {
			e.session.UpdatedAt = r.now()
			e.touched = e.session.UpdatedAt
			e.mu.Unlock()

			r.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(r.held, userID)
			}
			r.mu.Unlock()
		})
	}
}

// Peek returns a copy of the user's session state without creating one.
func (r *Repository) Peek(userID string) (State, bool) {
	r.mu.Lock()
	e, ok := r.lookup(userID)
	r.mu.Unlock()
	if !ok {
		return Idle, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || r.now().Sub(e.touched) > r.ttl {
		return Idle, false
	}
	return e.session.State, true
}

// Len reports how many sessions are kept, expired ones included.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.cache.Len()
	for id := range r.held {
		if !r.cache.Contains(id) {
			n++
		}
	}
	return n
}

// Sweep removes sessions idle longer than the TTL and returns how many were
// dropped. Sessions held or awaited by a caller are skipped.
func (r *Repository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for _, key := range r.cache.Keys() {
		e, ok := r.cache.Peek(key)
		if !ok || e.refs > 0 {
			continue
		}
		e.mu.Lock()
		expired := now.Sub(e.touched) > r.ttl
		e.mu.Unlock()
		if expired {
			r.cache.Remove(key)
			removed++
		}
	}
	return removed
}
