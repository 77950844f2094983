package registry

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/monitoring"
)

// ServiceConfig holds the HTTP service configuration
type ServiceConfig struct {
	Port         string
	JWTSecret    string
	JWTIssuer    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    int
	RatePeriod   time.Duration
}

// Service is the registry HTTP service: routing, auth middleware,
// metrics and the underlying server lifecycle.
type Service struct {
	router    *mux.Router
	server    *http.Server
	handlers  *Handlers
	validator *TokenValidator
	health    *monitoring.HealthManager
	metrics   *monitoring.MetricsCollector
	limiter   *RateLimiter
	logger    *logger.Logger
}

// NewService creates the registry HTTP service
func NewService(cfg *ServiceConfig, handlers *Handlers, health *monitoring.HealthManager, metrics *monitoring.MetricsCollector, log *logger.Logger) *Service {
	limit, period := cfg.RateLimit, cfg.RatePeriod
	if limit <= 0 {
		limit = 300
	}
	if period <= 0 {
		period = time.Minute
	}

	s := &Service{
		router:    mux.NewRouter(),
		handlers:  handlers,
		validator: NewTokenValidator(cfg.JWTSecret, cfg.JWTIssuer),
		health:    health,
		metrics:   metrics,
		limiter:   NewRateLimiter(limit, period),
		logger:    log,
	}
	s.limiter.StartCleanup(time.Hour)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Service) setupRoutes() {
	// Unauthenticated operational endpoints
	s.router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.metrics.HTTPMiddleware)
	api.Use(AuthMiddleware(s.validator, s.logger))
	api.Use(RateLimitMiddleware(s.limiter, s.logger))
	s.handlers.RegisterRoutes(api)
}

// TokenValidator exposes the validator for token issuance at bootstrap
func (s *Service) TokenValidator() *TokenValidator {
	return s.validator
}

// Router exposes the configured router, mainly for tests
func (s *Service) Router() *mux.Router {
	return s.router
}

// Start runs the HTTP server until it is shut down
func (s *Service) Start() error {
	s.logger.WithComponent("registry").WithField("addr", s.server.Addr).Info("Registry service listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.WithComponent("registry").Info("Shutting down registry service")
	return s.server.Shutdown(ctx)
}
