package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionLost marks requests whose owning connection dropped
	// before a reply arrived. Never retried here; callers decide.
	ErrConnectionLost = errors.New("bridge: connection lost")

	// ErrTimeout marks requests that saw no reply within their budget.
	ErrTimeout = errors.New("bridge: request timed out")

	// ErrNoActiveChannel marks dispatch attempts against a channel with
	// no live member connection.
	ErrNoActiveChannel = errors.New("bridge: no active channel")

	ErrInvalidChannelName = errors.New("bridge: invalid channel name")
	ErrConnectionClosed   = errors.New("bridge: connection closed")
	ErrUnknownConnection  = errors.New("bridge: unknown connection")
)

// RemoteError surfaces an error payload returned by the plugin verbatim.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: remote error for %q: %s", e.Command, e.Message)
}
