package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"easel/internal/protocol"
	"easel/internal/testutil/testlog"
)

func dispatcherFixture(t *testing.T) (*Registry, *ChannelManager, *Correlator, *Dispatcher) {
	t.Helper()
	r := NewRegistry()
	m := NewChannelManager(r)
	c := NewCorrelator()
	r.OnUnregister(func(connID string) { c.FailConnection(connID) })
	r.OnUnregister(m.Leave)
	d := NewDispatcher(m, c, "default", time.Second)
	return r, m, c, d
}

func TestExecuteCommandRoundTrip(t *testing.T) {
	testlog.Start(t)
	r, m, c, d := dispatcherFixture(t)

	conn, sock := testConn("conn.a")
	r.Register(conn)
	if err := m.Join("conn.a", "default"); err != nil {
		t.Fatalf("join: %v", err)
	}

	type result struct {
		out json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := d.ExecuteCommand(context.Background(), "get_selection", json.RawMessage(`{}`))
		done <- result{out, err}
	}()

	waitFor(t, func() bool { return len(sock.sentCommands()) == 1 }, "command envelope")
	c.Resolve(protocol.Reply{ID: sock.sentCommands()[0].ID, Result: json.RawMessage(`["node:1"]`)})

	got := <-done
	if got.err != nil {
		t.Fatalf("execute: %v", got.err)
	}
	if string(got.out) != `["node:1"]` {
		t.Fatalf("unexpected result: %s", got.out)
	}
}

func TestExecuteCommandNoChannelCarriesContext(t *testing.T) {
	testlog.Start(t)
	_, _, _, d := dispatcherFixture(t)

	_, err := d.ExecuteCommand(context.Background(), "get_selection", json.RawMessage(`{"page":"p1"}`))
	if !errors.Is(err, ErrNoActiveChannel) {
		t.Fatalf("expected ErrNoActiveChannel, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "get_selection") || !strings.Contains(msg, `{"page":"p1"}`) {
		t.Fatalf("failure missing diagnostic context: %s", msg)
	}
}

func TestExecuteCommandInPinsChannel(t *testing.T) {
	testlog.Start(t)
	r, m, c, d := dispatcherFixture(t)

	connA, sockA := testConn("conn.a")
	connB, sockB := testConn("conn.b")
	r.Register(connA)
	r.Register(connB)
	if err := m.Join("conn.a", "session-1"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if err := m.Join("conn.b", "session-2"); err != nil {
		t.Fatalf("join b: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.ExecuteCommandIn(context.Background(), "session-2", "ping", nil)
		done <- err
	}()
	waitFor(t, func() bool { return len(sockB.sentCommands()) == 1 }, "command on session-2")
	if len(sockA.sentCommands()) != 0 {
		t.Fatalf("command leaked to the wrong session")
	}
	c.Resolve(protocol.Reply{ID: sockB.sentCommands()[0].ID, Result: json.RawMessage(`"pong"`)})
	if err := <-done; err != nil {
		t.Fatalf("execute in session-2: %v", err)
	}
}

func TestSummarizeParamsTruncates(t *testing.T) {
	testlog.Start(t)
	if got := summarizeParams(nil); got != "{}" {
		t.Fatalf("empty params summary: %q", got)
	}
	long := json.RawMessage(`{"text":"` + strings.Repeat("a", 600) + `"}`)
	summary := summarizeParams(long)
	if len(summary) > maxParamsSummaryBytes+len("...(truncated)") {
		t.Fatalf("summary too long: %d bytes", len(summary))
	}
	if !strings.HasSuffix(summary, "...(truncated)") {
		t.Fatalf("summary missing truncation marker: %q", summary)
	}
}
