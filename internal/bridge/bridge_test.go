package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"easel/internal/protocol"
)

// fakeSock is an in-memory stand-in for a plugin websocket.
type fakeSock struct {
	mu      sync.Mutex
	sent    []any
	failAll bool
	closed  bool

	inbound chan []byte
}

func newFakeSock() *fakeSock {
	return &fakeSock{inbound: make(chan []byte, 16)}
}

func (f *fakeSock) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("fake: write refused")
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeSock) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSock) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeSock) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("fake: closed")
	}
	return 1, data, nil
}

func (f *fakeSock) SetReadLimit(int64) {}

func (f *fakeSock) sentCommands() []protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Command
	for _, v := range f.sent {
		if cmd, ok := v.(protocol.Command); ok {
			out = append(out, cmd)
		}
	}
	return out
}

func (f *fakeSock) sentAcks() []protocol.ControlAck {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.ControlAck
	for _, v := range f.sent {
		if ack, ok := v.(protocol.ControlAck); ok {
			out = append(out, ack)
		}
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testConn(id string) (*Conn, *fakeSock) {
	sock := newFakeSock()
	return newConn(id, "127.0.0.1:1", sock, time.Second), sock
}
