// Package server wires the gate's HTTP surface: routing, middleware, and
// lifecycle.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/pagehost/pagehost/internal/errors"
	"github.com/pagehost/pagehost/internal/observability"
	"github.com/pagehost/pagehost/internal/server/handlers"
	"github.com/pagehost/pagehost/internal/server/middleware"
	"github.com/pagehost/pagehost/pkg/provider"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Server is the gate HTTP server. Construct it with New; the router is
// ready before Start is called, so tests can drive Handler directly.
type Server struct {
	host            string
	portMu          sync.RWMutex
	port            int
	store           provider.Provider
	logger          *zap.Logger
	telemetry       *observability.Telemetry
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	router          chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the object store pages are served from. Without a store
// the gate only exposes its operational endpoints.
func WithStore(store provider.Provider) Option {
	return func(s *Server) { s.store = store }
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTelemetry enables request metrics and the /metrics endpoint.
func WithTelemetry(tel *observability.Telemetry) Option {
	return func(s *Server) { s.telemetry = tel }
}

// WithTimeouts overrides the HTTP server timeouts. Zero values keep the
// defaults.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// WithShutdownTimeout overrides how long Start waits for in-flight
// requests during graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a gate server listening on host:port.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:            host,
		port:            port,
		logger:          zap.NewNop(),
		readTimeout:     defaultReadTimeout,
		writeTimeout:    defaultWriteTimeout,
		idleTimeout:     defaultIdleTimeout,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port. After Start binds port 0, it returns
// the port actually bound.
func (s *Server) Port() int {
	s.portMu.RLock()
	defer s.portMu.RUnlock()
	return s.port
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger(s.logger))
	if s.telemetry != nil {
		r.Use(middleware.Metrics(s.telemetry))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteJSONError(w, http.StatusNotFound, apperrors.CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteJSONError(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/healthz", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)

	if s.telemetry != nil {
		r.Method(http.MethodGet, "/metrics", s.telemetry.Handler())
	}

	if s.store != nil {
		// Wildcard, not {key}: keys published under a prefix span path
		// segments. Static routes above still win.
		page := handlers.NewPageHandler(s.store, s.logger)
		r.Get("/*", page.ServePage)
		r.Head("/*", page.ServePage)
	}

	return r
}

// Start serves until ctx is canceled, then drains in-flight requests for
// up to the shutdown timeout. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.Port()))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.portMu.Lock()
		s.port = tcp.Port
		s.portMu.Unlock()
	}

	httpSrv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	s.logger.Info("gate listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("metrics", s.telemetry != nil),
	)

	select {
	case serveErr := <-errCh:
		return fmt.Errorf("serve: %w", serveErr)
	case <-ctx.Done():
	}

	s.logger.Info("gate shutting down", zap.Duration("grace", s.shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
