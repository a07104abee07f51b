package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const shutdownGrace = 5 * time.Second

// Run serves until SIGINT/SIGTERM, then drains with a grace period.
// Open plugin sockets are closed by the HTTP server teardown; their
// read loops unregister and fail any pending requests on the way out.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", s.cfg.Addr).
			Str("service", s.cfg.Name).
			Msg("server_listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return httpServer.Close()
	}
	return nil
}
