package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the concurrency-safe set of open viewer connections.
//
// The member list is copy-on-write: Add and Remove install a new slice, so a
// Snapshot stays valid and unchanged while the caller iterates it, even as
// connections come and go. No method performs network I/O.
type Registry struct {
	mu    sync.RWMutex
	index map[uuid.UUID]*Conn
	conns []*Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[uuid.UUID]*Conn)}
}

// Add inserts c unless a connection with the same identity is present, and
// returns the resulting count.
func (r *Registry) Add(c *Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[c.ID()]; exists {
		return len(r.conns)
	}
	r.index[c.ID()] = c

	next := make([]*Conn, len(r.conns), len(r.conns)+1)
	copy(next, r.conns)
	r.conns = append(next, c)
	return len(r.conns)
}

// Remove deletes c and returns the resulting count. removed is false when c
// was not present, which makes repeated calls harmless.
func (r *Registry) Remove(c *Conn) (count int, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[c.ID()]; !exists {
		return len(r.conns), false
	}
	delete(r.index, c.ID())

	next := make([]*Conn, 0, len(r.conns)-1)
	for _, existing := range r.conns {
		if existing != c {
			next = append(next, existing)
		}
	}
	r.conns = next
	return len(r.conns), true
}

// Snapshot returns the members at this instant, in insertion order. The slice
// is shared and must not be modified.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns
}

// Count returns the number of members.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
