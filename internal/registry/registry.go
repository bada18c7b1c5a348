package registry

import (
	"fmt"
	"sync"

	"chatmatch/pkg/types"
)

// Registry maps connection ids to connections and remembers insertion order.
// Insertion order is the matchmaking tie-break, so it must survive removals
// of unrelated entries unchanged.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	order       []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Insert adds a connection. A duplicate id is a bug in id assignment and is rejected.
func (r *Registry) Insert(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if conn.ID == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateConnection, conn.ID)
	}
	r.connections[conn.ID] = conn
	r.order = append(r.order, conn.ID)
	return nil
}

// Remove deletes a connection by id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[id]; !exists {
		return
	}
	delete(r.connections, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the connection for id
func (r *Registry) Lookup(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[id]
	return conn, exists
}

// All returns the registered connections in insertion order.
// The slice is a fresh copy; the entries are shared.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Connection, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.connections[id])
	}
	return all
}

// Len returns the number of connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Update runs fn under the write lock. Core components use it so that
// concurrent readers (stats endpoints) never observe half-applied pairings.
// The lock is not reentrant: fn must not call any other Registry method.
// Look connections up first and mutate the captured pointers inside fn.
func (r *Registry) Update(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// GetStats returns connection counts by state for monitoring
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]int{
		"total_connections": len(r.connections),
		"unregistered":      0,
		"waiting":           0,
		"matched":           0,
	}
	for _, conn := range r.connections {
		switch conn.State {
		case types.StateUnregistered:
			stats["unregistered"]++
		case types.StateRegistered:
			stats["waiting"]++
		case types.StateMatched:
			stats["matched"]++
		}
	}
	stats["active_sessions"] = stats["matched"] / 2
	return stats
}
