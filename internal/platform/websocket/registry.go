package websocket

import (
	"sync"

	"github.com/medsoft/medsoft/internal/platform/metrics"
)

// Registry is the set of currently open dashboard clients. All operations are
// thread-safe via sync.RWMutex.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]struct{})}
}

// Add registers a client. Adding a member again is a no-op.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	n := len(r.clients)
	r.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(n))
}

// Remove unregisters a client and reports whether it was a member.
// Removing an absent client is a no-op.
func (r *Registry) Remove(c *Client) bool {
	r.mu.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	n := len(r.clients)
	r.mu.Unlock()

	if ok {
		metrics.WebSocketConnections.Set(float64(n))
	}
	return ok
}

// Snapshot returns the current members. The returned slice is owned by the
// caller and unaffected by later Add or Remove calls.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Contains reports whether c is a member.
func (r *Registry) Contains(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[c]
	return ok
}

// Len returns the number of members.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
