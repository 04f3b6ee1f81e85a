package flow

import "sync"

// Registry maps transport identities to their live sessions. One session per
// identity; CreateOrReplace is the only way a second session supersedes a
// first. The map lock protects lookups and replacement; per-event ordering
// for one identity is the session lock's job.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the live session for an identity, if any.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// CreateOrReplace installs a fresh session for the identity, discarding any
// prior one. Events already holding the old session finish against the
// orphaned object; subsequent lookups only ever see the replacement.
func (r *Registry) CreateOrReplace(userID, username string) *Session {
	s := newSession(userID, username)
	r.mu.Lock()
	r.sessions[userID] = s
	r.mu.Unlock()
	return s
}

// Remove discards the identity's session, if present.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
