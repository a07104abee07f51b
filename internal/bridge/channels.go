package bridge

import (
	"fmt"
	"sync"

	"easel/internal/protocol"
)

// ChannelManager owns channel membership. A connection belongs to at
// most one channel; joining a new channel implicitly leaves the prior
// one. Membership lists keep join order so "current connection" resolves
// to the most recent joiner still alive.
type ChannelManager struct {
	mu       sync.RWMutex
	members  map[string][]string // channel -> conn ids, join order
	byConn   map[string]string   // conn id -> channel
	registry *Registry
}

func NewChannelManager(registry *Registry) *ChannelManager {
	return &ChannelManager{
		members:  make(map[string][]string),
		byConn:   make(map[string]string),
		registry: registry,
	}
}

// Join moves the connection into channel. Re-joining the channel a
// connection is already in refreshes its recency.
func (m *ChannelManager) Join(connID, channel string) error {
	if err := protocol.ValidateChannelName(channel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChannelName, err)
	}
	if _, ok := m.registry.Get(connID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(connID)
	m.members[channel] = append(m.members[channel], connID)
	m.byConn[connID] = channel
	return nil
}

// Leave removes the connection from its channel, if any.
func (m *ChannelManager) Leave(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(connID)
}

// Channel returns the channel the connection currently belongs to.
func (m *ChannelManager) Channel(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.byConn[connID]
	return channel, ok
}

// CurrentConnection resolves the most recently joined live member of
// channel. Last joined wins when several connections share the name.
func (m *ChannelManager) CurrentConnection(channel string) (*Conn, error) {
	m.mu.RLock()
	ids := m.members[channel]
	m.mu.RUnlock()

	for i := len(ids) - 1; i >= 0; i-- {
		conn, ok := m.registry.Get(ids[i])
		if ok && conn.Alive() {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoActiveChannel, channel)
}

// ConnectionsIn returns the live members of channel in join order.
func (m *ChannelManager) ConnectionsIn(channel string) []*Conn {
	m.mu.RLock()
	ids := append([]string(nil), m.members[channel]...)
	m.mu.RUnlock()
	return m.registry.filter(ids)
}

// Channels returns a snapshot of channel names with member counts.
func (m *ChannelManager) Channels() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.members))
	for channel, ids := range m.members {
		out[channel] = len(ids)
	}
	return out
}

func (m *ChannelManager) removeLocked(connID string) {
	channel, ok := m.byConn[connID]
	if !ok {
		return
	}
	delete(m.byConn, connID)
	ids := m.members[channel]
	for i, id := range ids {
		if id == connID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(m.members, channel)
		return
	}
	m.members[channel] = ids
}
