package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"easel/internal/observability"
)

// DefaultChannel is the routing scope used when a caller does not pin
// one explicitly.
const DefaultChannel = "default"

const maxParamsSummaryBytes = 256

// CommandExecutor is the single call surface the rest of the repository
// depends on to reach the plugin.
type CommandExecutor interface {
	ExecuteCommand(ctx context.Context, command string, params json.RawMessage) (json.RawMessage, error)
}

// Dispatcher resolves destinations and delegates to the correlator. It
// carries no command-specific validation; that belongs to the tool
// layer above.
type Dispatcher struct {
	channels   *ChannelManager
	correlator *Correlator

	defaultChannel string
	timeout        time.Duration
}

func NewDispatcher(channels *ChannelManager, correlator *Correlator, defaultChannel string, timeout time.Duration) *Dispatcher {
	if defaultChannel == "" {
		defaultChannel = DefaultChannel
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Dispatcher{
		channels:       channels,
		correlator:     correlator,
		defaultChannel: defaultChannel,
		timeout:        timeout,
	}
}

// ExecuteCommand dispatches to the default channel's current connection.
func (d *Dispatcher) ExecuteCommand(ctx context.Context, command string, params json.RawMessage) (json.RawMessage, error) {
	return d.ExecuteCommandIn(ctx, d.defaultChannel, command, params)
}

// ExecuteCommandIn dispatches to an explicitly pinned channel. Callers
// running independent plugin sessions pin one channel per session and
// avoid the last-joined-wins ambiguity of the default path.
func (d *Dispatcher) ExecuteCommandIn(ctx context.Context, channel, command string, params json.RawMessage) (json.RawMessage, error) {
	start := time.Now()

	conn, err := d.channels.CurrentConnection(channel)
	if err != nil {
		observability.RecordCommand(command, "no_channel", time.Since(start))
		return nil, d.wrap(command, params, err)
	}

	result, err := d.correlator.Send(ctx, conn, command, params, d.timeout)
	if err != nil {
		observability.RecordCommand(command, outcomeLabel(err), time.Since(start))
		return nil, d.wrap(command, params, err)
	}

	observability.RecordCommand(command, "ok", time.Since(start))
	log.Debug().
		Str("command", command).
		Str("channel", channel).
		Str("conn_id", conn.ID()).
		Dur("duration", time.Since(start)).
		Msg("command_dispatched")
	return result, nil
}

// wrap attaches the command name and a params summary so operators can
// correlate logs with outcomes.
func (d *Dispatcher) wrap(command string, params json.RawMessage, err error) error {
	return fmt.Errorf("execute %q (params %s): %w", command, summarizeParams(params), err)
}

func summarizeParams(params json.RawMessage) string {
	if len(params) == 0 {
		return "{}"
	}
	if len(params) <= maxParamsSummaryBytes {
		return string(params)
	}
	return string(params[:maxParamsSummaryBytes]) + "...(truncated)"
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionLost):
		return "connection_lost"
	default:
		var remote *RemoteError
		if errors.As(err, &remote) {
			return "remote_error"
		}
		return "error"
	}
}
