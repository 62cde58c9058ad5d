// Package server exposes the gateway over HTTP: one execute endpoint for
// backend features and two operator endpoints for health and usage stats.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quotewise/aigate/gateway"
)

// Server wraps the gin engine and the underlying http.Server.
type Server struct {
	gw     *gateway.Gateway
	engine *gin.Engine
	http   *http.Server
	logger zerolog.Logger
}

// New creates the HTTP server around a gateway.
func New(gw *gateway.Gateway, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		gw:     gw,
		engine: gin.New(),
		logger: logger.With().Str("component", "server").Logger(),
	}

	s.engine.Use(requestLogger(s.logger))
	s.engine.Use(gin.Recovery())

	s.engine.POST("/v1/chat", s.handleChat)
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/stats", s.handleStats)

	return s
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the listener and blocks until the server stops.
func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
