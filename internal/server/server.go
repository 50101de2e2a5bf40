package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
)

// Server is the admin HTTP server.
type Server struct {
	srv    *http.Server
	logger logging.Logger
	addr   net.Addr
}

// New creates a new server instance
func New(handler http.Handler, port string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger.WithFields(logging.Field{Key: "component", Value: "admin_server"}),
	}
}

// Start binds the listener and serves in the background. Bind failures are
// returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.ConnectionError("failed to listen on "+s.srv.Addr, err)
	}
	s.addr = ln.Addr()

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Admin server stopped", err)
		}
	}()

	s.logger.Info("Admin server listening", logging.String("address", s.addr.String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
