package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheenhq/workspace-gateway/internal/access"
	gatewayhttp "github.com/sheenhq/workspace-gateway/internal/api/http"
	"github.com/sheenhq/workspace-gateway/internal/api/middleware"
	"github.com/sheenhq/workspace-gateway/internal/artifact"
	"github.com/sheenhq/workspace-gateway/internal/guard"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/config"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/logging"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/monitoring"
	"github.com/sheenhq/workspace-gateway/internal/infrastructure/resilience"
	"github.com/sheenhq/workspace-gateway/internal/probe"
	"github.com/sheenhq/workspace-gateway/internal/ratelimit"
)

// Server wraps the HTTP server and gateway components.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	router   *gin.Engine
	httpSrv  *http.Server
	limiter  *ratelimit.Limiter
	cache    *artifact.Cache
	metrics  *monitoring.Metrics
	cancelBG context.CancelFunc
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	metrics := monitoring.NewMetrics()

	policy, err := config.LoadPatternPolicy(cfg.Guard.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern policy: %w", err)
	}
	pathGuard := guard.New(policy.Blocked, policy.Allowed)

	limiter := ratelimit.New(ratelimit.Config{
		Capacity:        cfg.RateLimit.Capacity,
		RefillPerSecond: cfg.RateLimit.RefillPerSecond,
		IdleTimeout:     cfg.RateLimit.IdleTimeout,
		Costs:           ratelimit.DefaultCosts(),
	})

	cache, err := buildArtifactCache(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	service := access.NewService(
		pathGuard,
		probe.New(),
		limiter,
		cache,
		access.Config{MaxFileSize: cfg.Guard.MaxFileSize},
		logger,
	).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := gatewayhttp.NewHandlers(service, limiter, cfg.Guard.WorkspacesRoot, logger)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	workspace := router.Group("/workspace")
	if cfg.Auth.Enabled && cfg.Auth.SharedSecret != "" {
		workspace.Use(middleware.HMACAuth(cfg.Auth.SharedSecret))
	}
	workspace.GET("/:project/file", handlers.ReadFile)
	workspace.GET("/:project/dir", handlers.ListDirectory)

	admin := router.Group("/admin")
	if cfg.Auth.Enabled && cfg.Auth.SharedSecret != "" {
		admin.Use(middleware.HMACAuth(cfg.Auth.SharedSecret))
	}
	admin.GET("/rate-limits/:caller", handlers.RateLimitSnapshot)
	admin.DELETE("/rate-limits/:caller", handlers.RateLimitReset)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		router:  router,
		limiter: limiter,
		cache:   cache,
		metrics: metrics,
	}, nil
}

// buildArtifactCache wires registry, object storage and extractor into the
// cache. Without a registry URL the artifact fallback is disabled entirely.
func buildArtifactCache(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*artifact.Cache, error) {
	if cfg.Registry.BaseURL == "" {
		logger.Info("artifact fallback disabled: no registry configured")
		return nil, nil
	}

	registry := artifact.NewRegistryClient(artifact.RegistryConfig{
		BaseURL:    cfg.Registry.BaseURL,
		Timeout:    cfg.Registry.Timeout,
		MaxRetries: cfg.Registry.MaxRetries,
	})
	resolver := artifact.NewBreakerResolver(registry, resilience.Settings{
		OnStateChange: func(from, to resilience.State) {
			logger.Warn("registry circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	fetcher, err := artifact.NewS3Fetcher(context.Background(), artifact.S3Config{
		Bucket:         cfg.Storage.Bucket,
		Region:         cfg.Storage.Region,
		Endpoint:       cfg.Storage.Endpoint,
		ForcePathStyle: cfg.Storage.ForcePathStyle,
		MaxSize:        cfg.Artifact.MaxArchiveSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	extractor := artifact.NewTreeExtractor(artifact.ExtractLimits{
		MaxEntries:   cfg.Artifact.MaxEntries,
		MaxEntrySize: cfg.Artifact.MaxEntrySize,
	})

	cache := artifact.NewCache(resolver, fetcher, extractor, artifact.Config{
		ScratchDir:        cfg.Artifact.ScratchDir,
		MaxArchiveSize:    cfg.Artifact.MaxArchiveSize,
		MaxEntries:        cfg.Artifact.MaxEntries,
		MaxEntrySize:      cfg.Artifact.MaxEntrySize,
		ExtractionTimeout: cfg.Artifact.ExtractionTimeout,
		CacheTTL:          cfg.Artifact.CacheTTL,
	}, logger).WithMetrics(metrics)

	return cache, nil
}

// Run starts background sweepers and serves HTTP until the listener fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBG = cancel

	go s.limiter.Run(ctx, s.cfg.RateLimit.IdleTimeout/4)
	if s.cache != nil {
		go s.cache.Run(ctx, s.cfg.Artifact.SweepInterval)
	}
	go s.reportGauges(ctx, 30*time.Second)

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting workspace gateway", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// reportGauges keeps slow-moving gauges current.
func (s *Server) reportGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.BucketsActive.Set(float64(s.limiter.Len()))
		}
	}
}

// Close stops the HTTP listener, background loops, and evicts all cached
// extractions so scratch directories do not outlive the process.
func (s *Server) Close() error {
	if s.cancelBG != nil {
		s.cancelBG()
	}

	var err error
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = s.httpSrv.Shutdown(ctx)
	}

	if s.cache != nil {
		s.cache.EvictAll()
	}
	return err
}
