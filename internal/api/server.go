package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillon/quill/internal/credential"
	"github.com/quillon/quill/internal/modelreg"
	"github.com/quillon/quill/internal/retrieval"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Registry     *modelreg.Registry      // Required
	Resolver     *credential.Resolver    // Required
	Orchestrator *retrieval.Orchestrator // Required
	Generator    retrieval.Generator     // Required: direct path when native tools apply
	Pool         *pgxpool.Pool           // Optional: nil disables pool stats in /ready
	BasePrompt   string                  // System prompt before augmentation
	TrustProxy   bool                    // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RatePerSec   float64                 // Token refill rate per client (0 = default 1)
	RateBurst    int                     // Token bucket size per client (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("model registry is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("credential resolver is required")
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("retrieval orchestrator is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		registry:     cfg.Registry,
		resolver:     cfg.Resolver,
		orchestrator: cfg.Orchestrator,
		generator:    cfg.Generator,
		basePrompt:   cfg.BasePrompt,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}

	// Stack, outermost first: Recovery -> RequestID -> AccessLog ->
	// Throttle -> Routes. RequestID sits above AccessLog so request_id
	// is available in log attributes.
	var handler http.Handler = newThrottle(mux, perSec, burst, cfg.TrustProxy, logger)
	handler = withAccessLog(logger, handler)
	handler = withRequestID(handler)
	handler = withRecovery(logger, handler)

	// Health probes bypass the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
