package poll

import "sync"

// registry is the process-wide session table. Lookups and mutations are
// cheap map operations; nothing blocking happens under its lock, so one
// poll's persistence or render calls never stall another poll's events.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

func (r *registry) get(pollID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[pollID]
	return sess, ok
}

// putIfAbsent installs sess unless the poll already has a session, and
// returns the one that is now in the table. A poll must never have two
// sessions: each has its own mutex, and votes ordered by different mutexes
// are not ordered at all.
func (r *registry) putIfAbsent(pollID string, sess *Session) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[pollID]; ok {
		return existing, false
	}
	r.sessions[pollID] = sess
	return sess, true
}

func (r *registry) remove(pollID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, pollID)
}

func (r *registry) all() map[string]*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make(map[string]*Session, len(r.sessions))
	for id, sess := range r.sessions {
		sessions[id] = sess
	}
	return sessions
}
