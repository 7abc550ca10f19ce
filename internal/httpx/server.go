package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server runs a Handler on a local listener.
type Server struct {
	handler http.Handler
	server  *http.Server
	addr    net.Addr
}

// NewServer wraps h's router.
func NewServer(h *Handler) *Server {
	return &Server{handler: h.Router()}
}

// Start binds address and serves in the background. Bind failures are
// returned directly; errors while serving arrive on the channel, which is
// closed once the server stops.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.addr = listener.Addr()

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Shutdown drains in-flight requests and falls back to Close when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
