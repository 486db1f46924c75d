// Package worker provides the HTTP service for campus drift.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/campus-drift/internal/assistant"
	"github.com/thebtf/campus-drift/internal/config"
	gormstore "github.com/thebtf/campus-drift/internal/db/gorm"
	"github.com/thebtf/campus-drift/internal/drift"
	"github.com/thebtf/campus-drift/internal/nudge"
	"github.com/thebtf/campus-drift/internal/scoring"
	"github.com/thebtf/campus-drift/internal/watcher"
	"github.com/thebtf/campus-drift/internal/worker/sse"
	"github.com/thebtf/campus-drift/pkg/models"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxRequestBodyBytes caps JSON request bodies.
	MaxRequestBodyBytes = 1 << 20
)

var registerDBStats sync.Once

// Service is the main HTTP service orchestrator.
type Service struct {
	initError error

	version string

	// Configuration
	config *config.Config

	// Database
	store *gormstore.Store

	// Domain services
	drift          *drift.Service
	assistant      *assistant.Assistant
	sseBroadcaster *sse.Broadcaster

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	limiter   *PerClientRateLimiter
	cors      *CORS
	startTime time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	configWatcher *watcher.Watcher
	wg            sync.WaitGroup
	initWG        sync.WaitGroup
	initMu        sync.RWMutex

	// Initialization state (for deferred init)
	ready atomic.Bool
}

// NewService creates the service with deferred initialization.
// The health endpoint answers immediately while the database opens in the
// background.
func NewService(version string) (*Service, error) {
	if err := config.EnsureAll(); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}

	svc := newService(version, config.Get())
	svc.startInit()
	return svc, nil
}

// newService wires the router without touching the database.
func newService(version string, cfg *config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        version,
		config:         cfg,
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		limiter:        NewPerClientRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		cors:           NewCORS(cfg.CORSOrigins),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// startInit runs initializeAsync in the background. Shutdown waits for it.
func (s *Service) startInit() {
	s.initWG.Add(1)
	go func() {
		defer s.initWG.Done()
		s.initializeAsync()
	}()
}

// initializeAsync performs initialization in the background.
func (s *Service) initializeAsync() {
	if err := s.initialize(s.ctx); err != nil {
		s.setInitError(err)
		return
	}
	s.startWatchers()
}

// initialize opens the store, seeds the demo campus and builds the domain
// services. The service is ready when it returns nil.
func (s *Service) initialize(ctx context.Context) error {
	store, err := gormstore.NewStore(gormstore.Config{
		Driver:   s.config.DBDriver,
		DSN:      s.config.DBDSN,
		MaxConns: s.config.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.initMu.Lock()
	s.store = store
	s.initMu.Unlock()

	registerDBStats.Do(func() {
		if err := prometheus.Register(collectors.NewDBStatsCollector(store.GetRawDB(), store.Driver())); err != nil {
			log.Warn().Err(err).Msg("Failed to register database stats collector")
		}
	})

	templates := nudge.DefaultTemplates()
	if s.config.TemplatesPath != "" {
		loaded, err := nudge.LoadTemplatesFile(s.config.TemplatesPath)
		if err != nil {
			log.Warn().Err(err).Str("path", s.config.TemplatesPath).Msg("Failed to load templates, using built-in catalog")
		} else {
			templates = loaded
		}
	}

	seed := s.config.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	scoringConfig := models.DefaultScoringConfig()
	scoringConfig.Epsilon = s.config.Epsilon

	engine := nudge.NewEngine(scoringConfig, templates, scoring.NewRand(seed))
	s.drift = drift.NewService(store.Repository(), engine, scoringConfig)
	s.drift.SetBroadcastFunc(func(event map[string]any) {
		s.sseBroadcaster.Broadcast(event)
	})

	if s.config.SeedDemo {
		seeded, err := s.drift.SeedDemo(ctx)
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		if seeded {
			log.Info().Str("student", drift.DemoStudentID).Msg("Demo campus seeded")
		}
	}

	s.assistant = assistant.New(assistant.Config{
		Endpoint: s.config.AssistantEndpoint,
		APIKey:   s.config.AssistantAPIKey,
		Models:   s.config.AssistantModels,
		Timeout:  time.Duration(s.config.AssistantTimeoutSeconds) * time.Second,
	})

	s.ready.Store(true)
	log.Info().
		Str("driver", store.Driver()).
		Int("templates", len(templates)).
		Float64("epsilon", scoringConfig.Epsilon).
		Msg("Drift service ready")
	return nil
}

// startWatchers starts the settings file watcher.
func (s *Service) startWatchers() {
	if s.ctx.Err() != nil {
		return
	}
	configPath := config.SettingsPath()
	configWatcher, err := watcher.New(configPath, func() {
		log.Info().Str("path", configPath).Msg("Config file changed, reloading...")
		s.reloadConfig()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return
	}
	if err := configWatcher.Start(s.ctx); err != nil {
		configWatcher.Stop()
		log.Warn().Err(err).Msg("Failed to start config watcher")
		return
	}
	s.initMu.Lock()
	s.configWatcher = configWatcher
	s.initMu.Unlock()
	log.Info().Str("path", configPath).Msg("Config file watcher started")
}

// reloadConfig applies the settings that can change at runtime: rate
// limits and CORS origins. Everything else needs a restart.
func (s *Service) reloadConfig() {
	cfg, err := config.Reload()
	if err != nil {
		log.Warn().Err(err).Msg("Config reload failed, keeping current settings")
		return
	}
	s.applyRuntimeConfig(cfg)

	s.sseBroadcaster.Broadcast(map[string]any{
		"type":    "config_reloaded",
		"message": "Rate limits and CORS origins updated",
	})
}

func (s *Service) applyRuntimeConfig(cfg *config.Config) {
	s.limiter.SetRate(cfg.RateLimitRPS, cfg.RateLimitBurst)
	s.cors.SetOrigins(cfg.CORSOrigins)
	log.Info().
		Float64("rate_limit_rps", cfg.RateLimitRPS).
		Int("rate_limit_burst", cfg.RateLimitBurst).
		Strs("cors_origins", cfg.CORSOrigins).
		Msg("Runtime config applied")
}

// setInitError records an initialization error.
func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
	log.Error().Err(err).Msg("Async initialization failed")
}

// GetInitError returns any initialization error.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(Metrics)
	s.router.Use(SecurityHeaders)
	s.router.Use(s.cors.Middleware)
	s.router.Use(PerClientRateLimitMiddleware(s.limiter))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Health check (always available, even during init)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/ready", s.handleReady)

	s.router.Handle("/metrics", promhttp.Handler())

	// SSE endpoint (no timeout, the stream is long-lived)
	s.router.Get("/api/events/stream", s.sseBroadcaster.HandleSSE)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Use(middleware.Timeout(DefaultHTTPTimeout))
		r.Use(MaxBodySize(MaxRequestBodyBytes))
		r.Use(RequireJSONContentType)

		// Profiles
		r.Post("/api/profile/create", s.handleCreateProfile)
		r.Get("/api/profile/{studentID}", s.handleGetProfile)
		r.Patch("/api/profile/{studentID}", s.handleUpdateProfile)

		// Exploration and bubble
		r.Get("/api/exploration/{studentID}", s.handleGetExploration)
		r.Post("/api/exploration/{studentID}", s.handleRecordExploration)
		r.Get("/api/bubble/{studentID}", s.handleBubble)
		r.Get("/api/bubble/{studentID}/unexplored", s.handleUnexplored)
		r.Post("/api/collision", s.handleCollision)

		// Drift lifecycle
		r.Post("/api/drift/generate", s.handleGenerateDrift)
		r.Post("/api/drift/{driftID}/accept", s.handleAcceptDrift)
		r.Post("/api/drift/{driftID}/skip", s.handleSkipDrift)
		r.Post("/api/drift/{driftID}/outcome", s.handleDriftOutcome)
		r.Get("/api/drift/history/{studentID}", s.handleDriftHistory)
		r.Get("/api/fingerprint/{studentID}", s.handleFingerprint)

		// Campus catalog
		r.Get("/api/events", s.handleListEvents)
		r.Get("/api/discovery-slots/active", s.handleListDiscoverySlots)
		r.Post("/api/discovery-slots/create", s.handleCreateDiscoverySlot)

		// Assistant
		r.Post("/api/chat/ask", s.handleChatAsk)
	})
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
// The server starts immediately; database initialization happens async.
func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Int("port", s.config.Port).
		Int("pid", os.Getpid()).
		Msg("Drift HTTP server started (initialization in progress)")

	return nil
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	s.initWG.Wait()

	s.initMu.RLock()
	configWatcher, store := s.configWatcher, s.store
	s.initMu.RUnlock()

	if configWatcher != nil {
		configWatcher.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	s.sseBroadcaster.Close()

	if store != nil {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Database close error")
		}
	}

	s.wg.Wait()

	log.Info().Msg("Drift service shutdown complete")
	return nil
}
