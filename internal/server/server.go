package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackzampolin/wenshape/internal/config"
	"github.com/jackzampolin/wenshape/internal/gateway"
	"github.com/jackzampolin/wenshape/internal/trace"
)

// Config configures a Server, mirroring the teacher's server.Config shape
// (Host/Port/Logger) generalized with wenshape's data directory and rate
// limit.
type Config struct {
	Host      string
	Port      string
	DataDir   string
	RateLimit int // requests/minute per IP; 0 uses DefaultRateLimit

	ConfigManager *config.Manager
	Gateway       *gateway.Gateway
	AgentsFactory AgentsFactory

	Logger *slog.Logger
}

// Server is wenshape's HTTP+WebSocket process: one http.Server, one
// ProjectManager, and the two trace/progress buses §4.10 and §6.3
// describe as process-wide singletons.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	projects    *ProjectManager
	trace       *trace.Collector
	progress    *trace.ProgressBus
	rateLimiter *ipRateLimiter
	gw          *gateway.Gateway

	log *slog.Logger
}

// New constructs a Server with its full route table registered but not
// yet listening.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("server: DataDir is required")
	}

	traceCollector := trace.NewCollector()
	progressBus := trace.NewProgressBus()

	projects := NewProjectManager(cfg.DataDir, cfg.ConfigManager, cfg.Gateway, cfg.AgentsFactory, traceCollector, progressBus, logger)

	s := &Server{
		projects:    projects,
		trace:       traceCollector,
		progress:    progressBus,
		rateLimiter: newIPRateLimiter(cfg.RateLimit),
		gw:          cfg.Gateway,
		log:         logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withRateLimit(s.rateLimiter, withLogging(logger, mux)),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0, // streaming draft/WS responses must not be cut off
	}
	return s, nil
}

// Addr returns the bound listener address once Start has begun listening,
// useful when Port is "0" (WENSHAPE_AUTO_PORT, spec.md §6.5).
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Trace exposes the process-wide Global Trace collector, e.g. for the
// /ws/trace handler and for agents to record against (wired by
// cmd/wenshape at startup).
func (s *Server) Trace() *trace.Collector { return s.trace }

// Progress exposes the per-project progress bus.
func (s *Server) Progress() *trace.ProgressBus { return s.progress }

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully, the same blocking-then-graceful-shutdown shape as the
// teacher's Server.Start.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// withLogging logs method/path/status/duration for every request, the
// same statusWriter-capture idiom as the teacher's internal/server.
func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Info("http request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}
