package bridge

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"easel/internal/observability"
	"easel/internal/protocol"
)

// socket is the full plugin transport surface the hub drives.
// *websocket.Conn satisfies it.
type socket interface {
	wire
	ReadMessage() (messageType int, p []byte, err error)
	SetReadLimit(limit int64)
}

// Hub owns the bridge service objects and their lifecycle. Everything is
// explicitly constructed here and passed by reference; there are no
// package-level registries.
type Hub struct {
	Registry   *Registry
	Channels   *ChannelManager
	Correlator *Correlator
	Dispatcher *Dispatcher
}

// NewHub wires the registry, channel table, correlator, and dispatcher.
// Connection death propagates through the unregister hooks: pending
// requests fail with ErrConnectionLost and channel membership is
// dropped, in that order.
func NewHub(defaultChannel string, requestTimeout time.Duration) *Hub {
	registry := NewRegistry()
	channels := NewChannelManager(registry)
	correlator := NewCorrelator()

	registry.OnUnregister(func(connID string) {
		correlator.FailConnection(connID)
	})
	registry.OnUnregister(channels.Leave)
	registry.OnUnregister(func(string) {
		observability.SetActiveConnections(registry.Len())
	})

	return &Hub{
		Registry:   registry,
		Channels:   channels,
		Correlator: correlator,
		Dispatcher: NewDispatcher(channels, correlator, defaultChannel, requestTimeout),
	}
}

// ServeConn runs the read loop for one plugin socket until it drops.
// It blocks; the caller owns the goroutine (the websocket handler).
func (h *Hub) ServeConn(sock socket, remoteAddr string) {
	conn := newConn(uuid.NewString(), remoteAddr, sock, defaultWriteTimeout)
	h.Registry.Register(conn)
	observability.SetActiveConnections(h.Registry.Len())
	log.Info().
		Str("conn_id", conn.ID()).
		Str("remote_addr", remoteAddr).
		Msg("plugin_connected")

	defer func() {
		h.Registry.Unregister(conn.ID())
		log.Info().
			Str("conn_id", conn.ID()).
			Msg("plugin_disconnected")
	}()

	sock.SetReadLimit(protocol.MaxMessageBytes)
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			log.Warn().
				Str("conn_id", conn.ID()).
				Err(err).
				Msg("inbound_rejected")
			continue
		}
		if msg.IsControl() {
			h.handleControl(conn, msg)
			continue
		}
		h.Correlator.Resolve(msg.Reply())
	}
}

func (h *Hub) handleControl(conn *Conn, msg protocol.Inbound) {
	switch msg.Type {
	case protocol.ControlTypeJoin:
		ack := protocol.ControlAck{
			Type:    protocol.ControlTypeJoinAck,
			Status:  protocol.AckStatusOK,
			Channel: msg.Channel,
		}
		if err := h.Channels.Join(conn.ID(), msg.Channel); err != nil {
			ack.Status = protocol.AckStatusRejected
			ack.Message = err.Error()
		} else {
			log.Info().
				Str("conn_id", conn.ID()).
				Str("channel", msg.Channel).
				Msg("channel_joined")
		}
		if err := conn.WriteEnvelope(ack); err != nil {
			log.Warn().
				Str("conn_id", conn.ID()).
				Err(err).
				Msg("ack_write_failed")
		}
	case protocol.ControlTypeLeave:
		h.Channels.Leave(conn.ID())
		log.Info().
			Str("conn_id", conn.ID()).
			Msg("channel_left")
		if err := conn.WriteEnvelope(protocol.ControlAck{
			Type:   protocol.ControlTypeLeaveAck,
			Status: protocol.AckStatusOK,
		}); err != nil {
			log.Warn().
				Str("conn_id", conn.ID()).
				Err(err).
				Msg("ack_write_failed")
		}
	}
}

// Status is a read-only snapshot of bridge state for the REST surface.
type Status struct {
	Connections     int            `json:"connections"`
	Channels        map[string]int `json:"channels"`
	PendingRequests int            `json:"pending_requests"`
}

func (h *Hub) Status() Status {
	return Status{
		Connections:     h.Registry.Len(),
		Channels:        h.Channels.Channels(),
		PendingRequests: h.Correlator.PendingCount(),
	}
}
