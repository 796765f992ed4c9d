// Package server wraps the HTTP server lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"enrichment-service/internal/common/logging"
)

// Server is the API HTTP server.
type Server struct {
	srv *http.Server
}

// New creates a server listening on the given port.
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start begins serving in the background. Listen errors other than a clean
// shutdown are fatal.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server failed", err)
			panic(err)
		}
	}()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
