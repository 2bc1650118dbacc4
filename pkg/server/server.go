// Package server exposes the relay over HTTP: buffered runs, a chunked
// streaming endpoint, a WebSocket streaming variant, and batch execution.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/config"
	apperrors "github.com/odvcencio/promptgate/pkg/errors"
	"github.com/odvcencio/promptgate/pkg/logging"
	"github.com/odvcencio/promptgate/pkg/relay"
)

// PromptRunner is the orchestration capability the server fronts.
// Satisfied by *relay.Orchestrator.
type PromptRunner interface {
	Run(ctx context.Context, req backend.Request) (*relay.ExecutionResult, *apperrors.Error)
	Stream(ctx context.Context, req backend.Request, sink io.Writer) *apperrors.Error
	RunBatch(ctx context.Context, items []relay.BatchItem, common backend.Request) (*relay.BatchResult, *apperrors.Error)
	Registry() *backend.Registry
}

// Server is the promptgate HTTP server.
type Server struct {
	cfg        config.ServerConfig
	runner     PromptRunner
	logger     *logging.Logger
	httpServer *http.Server
}

// NewServer creates the HTTP server around an orchestrator.
func NewServer(cfg config.ServerConfig, runner PromptRunner, logger *logging.Logger) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = config.DefaultListenAddr
	}
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Server{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 35 * time.Minute, // streaming responses outlive any backend timeout
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the router. Exposed so tests can drive the handler stack
// without a listener.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.securityHeadersMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/run", s.handleRun)
		r.Post("/stream", s.handleStream)
		r.Get("/ws", s.handleWebSocket)
		r.Post("/batch", s.handleBatch)
		r.Get("/backends", s.handleBackends)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info(logging.CategoryServer, "listening", s.cfg.ListenAddr, nil)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
