package session

import "sync"

// Registry keeps one Store per session id.
type Registry struct {
	mu       sync.Mutex
	stores   map[string]*Store
	onCreate func(sessionID string, s *Store)
}

func NewRegistry() *Registry {
	return &Registry{stores: map[string]*Store{}}
}

// NewRegistryWith calls onCreate once for every store it hands out, before the store is
// handed out. Use it to restore persisted selections and subscribe a writer. onCreate
// runs without the registry lock held, so it may do I/O.
func NewRegistryWith(onCreate func(sessionID string, s *Store)) *Registry {
	return &Registry{stores: map[string]*Store{}, onCreate: onCreate}
}

// Get returns the session's store, creating it on first use.
func (r *Registry) Get(sessionID string) *Store {
	if s, ok := r.Lookup(sessionID); ok {
		return s
	}
	s := NewStore()
	if r.onCreate != nil {
		r.onCreate(sessionID, s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a concurrent Get may have won; its store is the one already handed out
	if cur, ok := r.stores[sessionID]; ok {
		return cur
	}
	r.stores[sessionID] = s
	return s
}

// Lookup returns the session's store without creating one.
func (r *Registry) Lookup(sessionID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[sessionID]
	return s, ok
}

// Drop forgets a session, e.g. on logout.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, sessionID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
