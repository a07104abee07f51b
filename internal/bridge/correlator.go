package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"easel/internal/protocol"
)

// DefaultRequestTimeout bounds one outstanding command when the caller
// does not supply a budget.
const DefaultRequestTimeout = 30 * time.Second

type outcome struct {
	result json.RawMessage
	err    error
}

// pendingRequest correlates one outstanding command envelope.
type pendingRequest struct {
	id        string
	command   string
	connID    string
	createdAt time.Time
	done      chan outcome
}

// Correlator assigns request ids, tracks pending requests, and matches
// inbound replies to their callers. The pending table has a single
// writer discipline: every mutation happens under mu, so no two pending
// entries ever share an id.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	seq     atomic.Uint64
}

func NewCorrelator() *Correlator {
	return &Correlator{
		pending: make(map[string]*pendingRequest),
	}
}

// Send transmits one command envelope over conn and blocks until the
// matching reply arrives, the timeout fires, the owning connection dies,
// or ctx is canceled. Every request reaches exactly one terminal state.
func (c *Correlator) Send(ctx context.Context, conn *Conn, command string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	req := &pendingRequest{
		id:        strconv.FormatUint(c.seq.Add(1), 10),
		command:   command,
		connID:    conn.ID(),
		createdAt: time.Now(),
		done:      make(chan outcome, 1),
	}
	env := protocol.Command{ID: req.id, Command: command, Params: params}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pending[req.id] = req
	c.mu.Unlock()

	if err := conn.WriteEnvelope(env); err != nil {
		c.take(req.id)
		return nil, fmt.Errorf("bridge: send %q: %w", command, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-req.done:
		return out.result, out.err
	case <-timer.C:
		if c.take(req.id) == nil {
			// A resolution raced the timer; it already owns the outcome.
			out := <-req.done
			return out.result, out.err
		}
		return nil, fmt.Errorf("%w: %q after %s", ErrTimeout, command, timeout)
	case <-ctx.Done():
		if c.take(req.id) == nil {
			out := <-req.done
			return out.result, out.err
		}
		return nil, fmt.Errorf("bridge: send %q: %w", command, ctx.Err())
	}
}

// Resolve matches an inbound reply to its pending request. Replies with
// no matching entry are stale (late after timeout, or unsolicited) and
// are logged then dropped.
func (c *Correlator) Resolve(reply protocol.Reply) bool {
	req := c.take(reply.ID)
	if req == nil {
		log.Debug().
			Str("request_id", reply.ID).
			Msg("stale_reply_discarded")
		return false
	}
	if reply.Error != "" {
		req.done <- outcome{err: &RemoteError{Command: req.command, Message: reply.Error}}
		return true
	}
	req.done <- outcome{result: reply.Result}
	return true
}

// FailConnection terminates every pending request bound to connID with
// ErrConnectionLost and returns how many were failed.
func (c *Correlator) FailConnection(connID string) int {
	c.mu.Lock()
	var victims []*pendingRequest
	for id, req := range c.pending {
		if req.connID == connID {
			victims = append(victims, req)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, req := range victims {
		req.done <- outcome{err: fmt.Errorf("%w: %q on connection %s", ErrConnectionLost, req.command, connID)}
	}
	if len(victims) > 0 {
		log.Warn().
			Str("conn_id", connID).
			Int("failed", len(victims)).
			Msg("pending_requests_failed")
	}
	return len(victims)
}

// PendingCount reports outstanding requests across all connections.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// take removes and returns the pending entry for id, or nil if some
// other path already owns its terminal transition.
func (c *Correlator) take(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return req
}
