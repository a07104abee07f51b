package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"easel/internal/auth"
	"easel/internal/bridge"
	"easel/internal/config"
	"easel/internal/observability"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
)

// Server owns the HTTP surface: the plugin websocket endpoint and the
// REST command surface consumed by tool code.
type Server struct {
	cfg      config.ServerConfig
	hub      *bridge.Hub
	router   *gin.Engine
	upgrader websocket.Upgrader

	// tokens is nil when auth_token is empty, disabling authentication.
	tokens auth.Validator

	startedAt time.Time
}

func New(cfg config.ServerConfig, hub *bridge.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(log.Logger))
	router.Use(observability.RequestMetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsOrigins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Easel-Token"},
		MaxAge:       12 * time.Hour,
	}))

	s := &Server{
		cfg:    cfg,
		hub:    hub,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsReadBufferSize,
			WriteBufferSize: wsWriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r, cfg.CorsOrigins)
			},
		},
		startedAt: time.Now(),
	}
	if cfg.AuthToken != "" {
		s.tokens = auth.StaticToken{Token: cfg.AuthToken}
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router for http.Server and httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
