package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/lgrep/internal/debug"
	"github.com/standardbeagle/lgrep/internal/search"
)

const defaultSessionTTL = 5 * time.Minute

// session pairs a live search handle with its idle bookkeeping.
type session struct {
	handle     *search.PendingSearch
	created    time.Time
	lastAccess time.Time
}

// sessionRegistry owns the handles behind search_start sessions. Every
// handle is eventually Closed: explicitly by search_cancel, implicitly
// when a poll drains it to done, or by the reaper once idle past the
// TTL. An abandoned handle would otherwise pin its buffered results
// forever.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	r := &sessionRegistry{
		sessions: make(map[string]*session),
		ttl:      ttl,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.reap()
	return r
}

// register stores a handle under a fresh session id.
func (r *sessionRegistry) register(handle *search.PendingSearch) string {
	id := uuid.NewString()
	now := time.Now()

	r.mu.Lock()
	r.sessions[id] = &session{handle: handle, created: now, lastAccess: now}
	r.mu.Unlock()
	return id
}

// get returns the handle for id and refreshes its idle clock.
func (r *sessionRegistry) get(id string) (*search.PendingSearch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastAccess = time.Now()
	return s.handle, true
}

// release removes a session and closes its handle. Reports whether the
// id was known.
func (r *sessionRegistry) release(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.handle.Close()
	}
	return ok
}

// count reports the number of live sessions.
func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// close stops the reaper and closes every remaining handle. Safe to
// call more than once.
func (r *sessionRegistry) close() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done

	r.mu.Lock()
	remaining := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for id, s := range remaining {
		debug.LogMCP("closing session %s on shutdown\n", id)
		s.handle.Close()
	}
}

func (r *sessionRegistry) reap() {
	defer close(r.done)

	interval := r.ttl / 4
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

// evictIdle closes sessions not polled within the TTL. A finished but
// undrained session counts as idle; its queued results are dropped with
// it.
func (r *sessionRegistry) evictIdle() {
	cutoff := time.Now().Add(-r.ttl)

	var evicted []*session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.lastAccess.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, s)
			debug.LogMCP("evicting idle session %s\n", id)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.handle.Close()
	}
}
