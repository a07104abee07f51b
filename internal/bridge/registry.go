package bridge

import (
	"sync"
)

// Registry owns the live connection table. Connections are registered on
// transport connect and unregistered exactly once on disconnect; the
// unregister hooks are how the correlator and channel table learn about
// a death.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn

	hooks []func(connID string)
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
	}
}

// OnUnregister appends a hook invoked after a connection leaves the
// table. Hooks must be installed before connections are accepted.
func (r *Registry) OnUnregister(fn func(connID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *Registry) Register(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
}

// Unregister removes the connection and fires the unregister hooks.
// Safe to call for an id that was already removed.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	hooks := r.hooks
	r.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close()
	for _, fn := range hooks {
		fn(connID)
	}
}

func (r *Registry) Get(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// IsConnected reports whether at least one connection is live.
func (r *Registry) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns) > 0
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// filter returns registered connections whose id passes keep, preserving
// the order of ids.
func (r *Registry) filter(ids []string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(ids))
	for _, id := range ids {
		if conn, ok := r.conns[id]; ok {
			out = append(out, conn)
		}
	}
	return out
}
