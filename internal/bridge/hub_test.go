package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"easel/internal/protocol"
	"easel/internal/testutil/testlog"
)

func TestHubJoinCommandReplyFlow(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("default", time.Second)
	sock := newFakeSock()

	served := make(chan struct{})
	go func() {
		hub.ServeConn(sock, "127.0.0.1:5000")
		close(served)
	}()

	sock.inbound <- []byte(`{"type":"join","channel":"default"}`)
	waitFor(t, func() bool { return len(sock.sentAcks()) == 1 }, "join ack")
	ack := sock.sentAcks()[0]
	if ack.Type != protocol.ControlTypeJoinAck || ack.Status != protocol.AckStatusOK {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	done := make(chan error, 1)
	go func() {
		result, err := hub.Dispatcher.ExecuteCommand(context.Background(), "create_rectangle", json.RawMessage(`{"width":10}`))
		if err == nil && string(result) != `{"node":"rect:1"}` {
			err = errors.New("unexpected result " + string(result))
		}
		done <- err
	}()

	waitFor(t, func() bool { return len(sock.sentCommands()) == 1 }, "command envelope")
	cmd := sock.sentCommands()[0]
	sock.inbound <- []byte(`{"id":"` + cmd.ID + `","result":{"node":"rect:1"}}`)
	if err := <-done; err != nil {
		t.Fatalf("round trip: %v", err)
	}

	// Disconnect: read loop exits, registry drains, channel empties.
	_ = sock.Close()
	<-served
	if hub.Registry.IsConnected() {
		t.Fatalf("registry still connected after socket close")
	}
	if _, err := hub.Channels.CurrentConnection("default"); !errors.Is(err, ErrNoActiveChannel) {
		t.Fatalf("channel survived disconnect: %v", err)
	}
}

func TestHubDisconnectFailsPendingRequests(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("default", time.Minute)
	sock := newFakeSock()

	served := make(chan struct{})
	go func() {
		hub.ServeConn(sock, "127.0.0.1:5001")
		close(served)
	}()
	sock.inbound <- []byte(`{"type":"join","channel":"default"}`)
	waitFor(t, func() bool { return len(sock.sentAcks()) == 1 }, "join ack")

	done := make(chan error, 1)
	go func() {
		_, err := hub.Dispatcher.ExecuteCommand(context.Background(), "get_document_info", nil)
		done <- err
	}()
	waitFor(t, func() bool { return hub.Correlator.PendingCount() == 1 }, "request pending")

	_ = sock.Close()
	if err := <-done; !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	<-served
	if hub.Correlator.PendingCount() != 0 {
		t.Fatalf("pending table not drained after disconnect")
	}
}

func TestHubRejectsInvalidJoin(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("default", time.Second)
	sock := newFakeSock()

	go hub.ServeConn(sock, "127.0.0.1:5002")

	// Malformed channel names never reach the channel table; the decode
	// path rejects them before control handling.
	sock.inbound <- []byte(`{"type":"join","channel":""}`)
	sock.inbound <- []byte(`{"type":"frobnicate"}`)
	sock.inbound <- []byte(`{"not":"a valid message"}`)
	sock.inbound <- []byte(`{"type":"join","channel":"ok"}`)

	waitFor(t, func() bool { return len(sock.sentAcks()) == 1 }, "join ack")
	if counts := hub.Channels.Channels(); counts["ok"] != 1 || len(counts) != 1 {
		t.Fatalf("unexpected channel state: %v", counts)
	}
	_ = sock.Close()
}

func TestHubStatusSnapshot(t *testing.T) {
	testlog.Start(t)
	hub := NewHub("default", time.Second)
	sock := newFakeSock()

	go hub.ServeConn(sock, "127.0.0.1:5003")
	sock.inbound <- []byte(`{"type":"join","channel":"design-session"}`)
	waitFor(t, func() bool { return len(sock.sentAcks()) == 1 }, "join ack")

	status := hub.Status()
	if status.Connections != 1 {
		t.Fatalf("unexpected connections: %d", status.Connections)
	}
	if status.Channels["design-session"] != 1 {
		t.Fatalf("unexpected channels: %v", status.Channels)
	}
	if status.PendingRequests != 0 {
		t.Fatalf("unexpected pending: %d", status.PendingRequests)
	}
	_ = sock.Close()
}
