package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Server is the ops HTTP listener for the voice command router.
type Server struct {
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	served   chan struct{}
}

// NewServer wraps handler in an http.Server bound to addr on Start.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start binds the listen address and serves in the background.
// Bind errors are returned so a busy port fails startup.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("ops server already started")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("ops server listen %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.served = make(chan struct{})

	log.Info().Str("addr", ln.Addr().String()).Msg("Ops HTTP server listening")
	go func() {
		defer close(s.served)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Ops HTTP server error")
		}
	}()
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	served := s.served
	s.mu.Unlock()

	log.Info().Msg("Shutting down ops HTTP server")
	err := s.server.Shutdown(ctx)
	if served != nil {
		select {
		case <-served:
		case <-ctx.Done():
		}
	}
	return err
}
