package bridge

import (
	"sync"
	"time"
)

const defaultWriteTimeout = 10 * time.Second

// wire is the write half of one plugin socket. *websocket.Conn satisfies
// it; tests substitute an in-memory fake.
type wire interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one live plugin connection. Writes are serialized through the
// connection's own lock so the read loop, the correlator, and control
// acks never interleave frames.
type Conn struct {
	id         string
	remoteAddr string

	mu     sync.Mutex
	sock   wire
	closed bool

	writeTimeout time.Duration
}

func newConn(id, remoteAddr string, sock wire, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Conn{
		id:           id,
		remoteAddr:   remoteAddr,
		sock:         sock,
		writeTimeout: writeTimeout,
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Alive reports whether the connection is still writable.
func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// WriteEnvelope sends one JSON message under the write deadline.
func (c *Conn) WriteEnvelope(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.sock.WriteJSON(v)
}

// Close marks the connection dead and closes the socket. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
