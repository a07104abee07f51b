package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"easel/internal/auth"
	"easel/internal/batch"
	"easel/internal/bridge"
	"easel/internal/observability"
	"easel/internal/retry"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.startedAt).String(),
			"service": s.cfg.Name,
			"version": "0.1.0",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   s.hub.Registry.IsConnected(),
			"uptime":  time.Since(s.startedAt).String(),
			"service": s.cfg.Name,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.hub.Status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ws", s.handlePluginSocket)

	commands := s.router.Group("/commands", s.requireToken)
	commands.POST("/:name", s.handleCommand)
	commands.POST("/:name/batch", s.handleCommandBatch)
}

// requireToken rejects command callers that do not present the shared
// token. No-op when authentication is disabled.
func (s *Server) requireToken(c *gin.Context) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Validate(auth.TokenFromRequest(c.Request)); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

// handlePluginSocket upgrades a plugin runtime onto the bridge. The
// token check runs before the upgrade so rejected runtimes get a plain
// 401 instead of a half-open socket.
func (s *Server) handlePluginSocket(c *gin.Context) {
	if s.tokens != nil {
		if err := s.tokens.Validate(auth.TokenFromRequest(c.Request)); err != nil {
			log.Warn().
				Str("remote_addr", c.Request.RemoteAddr).
				Msg("websocket_auth_rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}
	sock, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().
			Str("remote_addr", c.Request.RemoteAddr).
			Err(err).
			Msg("websocket_upgrade_failed")
		return
	}
	s.hub.ServeConn(sock, c.Request.RemoteAddr)
}

// handleCommand dispatches one command to the current channel. The body
// is the raw params object; channel may be pinned via ?channel=.
func (s *Server) handleCommand(c *gin.Context) {
	name := c.Param("name")
	params, ok := readParams(c)
	if !ok {
		return
	}

	policy := s.cfg.RetryPolicy()
	policy.RetryIf = transientFailure

	result, err := retry.Do(c.Request.Context(), policy, func(ctx context.Context) (json.RawMessage, error) {
		return s.execute(ctx, c.Query("channel"), name, params)
	})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// handleCommandBatch dispatches the same command once per params object
// in the body array, through the batch processor.
func (s *Server) handleCommandBatch(c *gin.Context) {
	name := c.Param("name")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON array of params objects"})
		return
	}

	opts := s.cfg.BatchOptions()
	total := len(items)
	opts.OnProgress = func(processed, _ int) {
		log.Info().
			Str("command", name).
			Int("processed", processed).
			Int("total", total).
			Msg("batch_progress")
	}

	outcomes := batch.Process(c.Request.Context(), items, func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return s.execute(ctx, c.Query("channel"), name, params)
	}, opts)

	type itemOutcome struct {
		Params json.RawMessage `json:"params"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	}
	results := make([]itemOutcome, 0, len(outcomes))
	failed := 0
	for _, out := range outcomes {
		entry := itemOutcome{Params: out.Item, Result: out.Result}
		if out.Err != nil {
			entry.Error = out.Err.Error()
			failed++
		}
		observability.RecordBatchItem(out.Err != nil)
		results = append(results, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"command":  name,
		"total":    total,
		"failed":   failed,
		"outcomes": results,
	})
}

func (s *Server) execute(ctx context.Context, channel, name string, params json.RawMessage) (json.RawMessage, error) {
	if channel != "" {
		return s.hub.Dispatcher.ExecuteCommandIn(ctx, channel, name, params)
	}
	return s.hub.Dispatcher.ExecuteCommand(ctx, name, params)
}

func readParams(c *gin.Context) (json.RawMessage, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return nil, false
	}
	if len(body) == 0 {
		return json.RawMessage(`{}`), true
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "params must be valid JSON"})
		return nil, false
	}
	return json.RawMessage(body), true
}

// transientFailure retries only routing-window failures: a plugin that
// has not joined yet, or one that dropped mid-flight.
func transientFailure(err error) bool {
	return errors.Is(err, bridge.ErrNoActiveChannel) || errors.Is(err, bridge.ErrConnectionLost)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, bridge.ErrNoActiveChannel):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, bridge.ErrConnectionLost):
		return http.StatusBadGateway
	default:
		var remote *bridge.RemoteError
		if errors.As(err, &remote) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
