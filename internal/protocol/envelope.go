package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	ControlTypeJoin     = "join"
	ControlTypeJoinAck  = "join.ack"
	ControlTypeLeave    = "leave"
	ControlTypeLeaveAck = "leave.ack"

	AckStatusOK       = "ok"
	AckStatusRejected = "rejected"

	// MaxChannelNameBytes bounds channel names accepted from plugins.
	MaxChannelNameBytes = 128

	// MaxMessageBytes bounds one inbound websocket message.
	MaxMessageBytes = 8 * 1024 * 1024
)

var (
	ErrInvalidCommand     = errors.New("protocol: invalid command envelope")
	ErrInvalidReply       = errors.New("protocol: invalid reply envelope")
	ErrInvalidControl     = errors.New("protocol: invalid control message")
	ErrInvalidChannelName = errors.New("protocol: invalid channel name")
)

// Command is the server->plugin request shape.
type Command struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (c Command) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCommand)
	}
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("%w: missing command", ErrInvalidCommand)
	}
	return nil
}

// Reply is the plugin->server response shape. Exactly one of Result or
// Error carries the outcome; ID echoes the command it answers.
type Reply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (r Reply) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidReply)
	}
	return nil
}

// ControlAck answers a join/leave control message.
type ControlAck struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
}

// Inbound is the decoded union of everything a plugin may send. Type is
// set for control messages; ID for replies. A message carrying neither is
// malformed.
type Inbound struct {
	Type    string          `json:"type,omitempty"`
	Channel string          `json:"channel,omitempty"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (m Inbound) IsControl() bool {
	return strings.TrimSpace(m.Type) != ""
}

func (m Inbound) IsReply() bool {
	return !m.IsControl() && strings.TrimSpace(m.ID) != ""
}

// Reply projects the inbound message into a Reply envelope.
func (m Inbound) Reply() Reply {
	return Reply{ID: m.ID, Result: m.Result, Error: m.Error}
}

// DecodeInbound parses one websocket text message from a plugin.
func DecodeInbound(data []byte) (Inbound, error) {
	if len(data) > MaxMessageBytes {
		return Inbound{}, fmt.Errorf("%w: message too large (%d bytes)", ErrInvalidReply, len(data))
	}
	var m Inbound
	if err := json.Unmarshal(data, &m); err != nil {
		return Inbound{}, fmt.Errorf("protocol: decode inbound: %w", err)
	}
	if m.IsControl() {
		switch m.Type {
		case ControlTypeJoin:
			if err := ValidateChannelName(m.Channel); err != nil {
				return Inbound{}, err
			}
		case ControlTypeLeave:
		default:
			return Inbound{}, fmt.Errorf("%w: unknown type %q", ErrInvalidControl, m.Type)
		}
		return m, nil
	}
	if !m.IsReply() {
		return Inbound{}, fmt.Errorf("%w: missing id", ErrInvalidReply)
	}
	return m, nil
}

// ValidateChannelName enforces the channel naming contract shared by the
// join control path and server-side channel bookkeeping.
func ValidateChannelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidChannelName)
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("%w: leading or trailing space", ErrInvalidChannelName)
	}
	if len(name) > MaxChannelNameBytes {
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidChannelName, MaxChannelNameBytes)
	}
	return nil
}
