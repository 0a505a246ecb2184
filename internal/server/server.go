// Package server runs the blocking HTTP listener the web application is
// served on.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/soyeahso/orchestrator/internal/hooks"
	"github.com/soyeahso/orchestrator/internal/logging"
)

// DefaultShutdownTimeout bounds how long in-flight requests may run after
// the context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds listener settings.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Addr is the host:port the server binds.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server serves one handler until its context ends.
type Server struct {
	cfg     Config
	handler http.Handler
	log     *logging.Logger
	hooks   *hooks.Manager

	mu    sync.Mutex
	addr  string
	ready chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithHooks emits server_start and server_stop through hm.
func WithHooks(hm *hooks.Manager) Option {
	return func(s *Server) { s.hooks = hm }
}

// New creates a server for handler.
func New(cfg Config, handler http.Handler, log *logging.Logger, opts ...Option) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		log:     log.Sub("server"),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or "" before Run has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the base URL for the bound listener.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	_, port, _ := net.SplitHostPort(addr)
	return "http://" + net.JoinHostPort(s.cfg.Host, port)
}

// Run listens and serves until ctx is cancelled or the listener fails. A
// failure to bind is returned; a clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// No write timeout: /run_sse and /run_live stream for as long as the
	// agent runs.
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          newErrorLog(s.log),
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready)

	s.log.Info().Msgf("Orchestrator Agent server starting at %s", s.URL())
	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{"addr": s.Addr()})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("graceful shutdown incomplete")
			srv.Close()
		}
	}()

	err = srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done

	if s.hooks != nil {
		s.hooks.Emit(context.Background(), hooks.EventServerStop, map[string]any{"addr": s.Addr()})
	}
	s.log.Info().Msg("server stopped")
	return nil
}
