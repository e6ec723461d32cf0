// Package api serves spin verification and bounded simulations over HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/games"
	"github.com/MJE43/stake-roulette-sim/internal/metrics"
	"github.com/MJE43/stake-roulette-sim/internal/store"
)

const (
	DefaultMaxRounds      = 1_000_000
	DefaultRequestTimeout = 60 * time.Second
)

// Config wires the server's collaborators. Store is optional; without it
// persisted simulations and the session routes are unavailable.
type Config struct {
	Logger         *zap.Logger
	Store          *store.Store
	Registry       *prometheus.Registry
	Defaults       betting.Config
	MaxRounds      int
	RequestTimeout time.Duration
}

// Server handles HTTP requests
type Server struct {
	log       *zap.Logger
	store     *store.Store
	registry  *prometheus.Registry
	metrics   *metrics.Collectors
	game      *games.RouletteGame
	defaults  betting.Config
	maxRounds int
	timeout   time.Duration
	startTime time.Time
}

// NewServer creates a new API server and registers its collectors.
func NewServer(cfg Config) (*Server, error) {
	s := &Server{
		log:       cfg.Logger,
		store:     cfg.Store,
		registry:  cfg.Registry,
		game:      &games.RouletteGame{},
		defaults:  cfg.Defaults,
		maxRounds: cfg.MaxRounds,
		timeout:   cfg.RequestTimeout,
		startTime: time.Now(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.maxRounds <= 0 {
		s.maxRounds = DefaultMaxRounds
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	if s.defaults.LossMultiplier.IsZero() {
		s.defaults.LossMultiplier = betting.DefaultLossMultiplier
	}

	c, err := metrics.NewCollectors(s.registry)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	s.metrics = c
	return s, nil
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Post("/simulate", s.handleSimulate)
		r.Post("/seed/hash", s.handleSeedHash)

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/rounds", s.handleGetRounds)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
	})

	return r
}
