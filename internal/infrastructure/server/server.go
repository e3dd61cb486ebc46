// Package server assembles the HTTP service: router, middleware, and
// the component graph behind the proxy, extractor, and share endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/gridstream/multiview/backend/internal/api/http"
	"github.com/gridstream/multiview/backend/internal/api/middleware"
	"github.com/gridstream/multiview/backend/internal/extract"
	"github.com/gridstream/multiview/backend/internal/fetch"
	"github.com/gridstream/multiview/backend/internal/infrastructure/config"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
	"github.com/gridstream/multiview/backend/internal/infrastructure/monitoring"
	"github.com/gridstream/multiview/backend/internal/infrastructure/tracing"
	"github.com/gridstream/multiview/backend/internal/share"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router    *gin.Engine
	http      *http.Server
	shares    *share.Store
	sweepStop context.CancelFunc
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// New builds the full component graph from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing multiview backend",
		zap.String("port", cfg.Server.Port),
		zap.String("share_dir", cfg.Share.Dir),
	)

	metrics := monitoring.NewMetrics()

	client := fetch.NewClient(cfg.Upstream, logger)

	registry := extract.NewRegistry()
	overrides, err := config.LoadFamilyOverrides(cfg.Extract.FamiliesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load family overrides: %w", err)
	}
	registry.ApplyOverrides(overrides)
	extractor := extract.New(client, registry, cfg.Extract.Timeout, logger)
	logger.Info("Extraction families registered",
		zap.Strings("families", registry.Names()),
	)

	shares, err := share.NewStore(cfg.Share, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to open share store: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	tracer := tracing.New("multiview-backend", logger.Logger)

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(client, extractor, shares, metrics, logger)
	registerRoutes(router, handlers)

	sweepCtx, sweepStop := context.WithCancel(context.Background())
	go shares.RunSweeper(sweepCtx)

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		shares:    shares,
		sweepStop: sweepStop,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

func registerRoutes(router *gin.Engine, handlers *apihttp.Handlers) {
	router.GET("/health", handlers.Health)

	// Embedding proxy
	router.GET("/proxy", handlers.Proxy)
	router.OPTIONS("/proxy", handlers.ProxyPreflight)

	// Stream extraction
	router.GET("/extract/:family", handlers.Extract)

	// Share links
	router.POST("/share", handlers.CreateShare)
	router.GET("/share/:id", handlers.GetShare)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Router exposes the gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.sweepStop()

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
	}

	_ = s.logger.Sync()
	return nil
}
