package chat

import "sync"

// Registry maps each online user to their single live session. Last
// connection wins: registering a user who is already online overwrites the
// mapping. Purely in-memory and rebuildable; the store never depends on it.
//
// One mutex guards everything, and no method blocks while holding it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]string
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]string)}
}

// Register maps userID to sessionID, overwriting any prior session.
func (r *Registry) Register(userID int64, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = sessionID
}

// Unregister drops the user's mapping. Calling it for an unknown user is a
// silent no-op; disconnect races are expected.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// UnregisterSession drops the mapping only if sessionID is the one currently
// mapped, and reports whether it mutated anything. A stale socket closing
// after the user reconnected must not knock the fresh session offline.
func (r *Registry) UnregisterSession(userID int64, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[userID] != sessionID {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *Registry) Lookup(userID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.sessions[userID]
	return sessionID, ok
}

// Snapshot returns the ids of all currently online users.
func (r *Registry) Snapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
