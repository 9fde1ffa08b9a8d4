package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/adlink-service/internal/config"
	"github.com/prperemyshlev/adlink-service/internal/handler"
	"github.com/prperemyshlev/adlink-service/internal/provider"
	"github.com/prperemyshlev/adlink-service/internal/repository"
	"github.com/prperemyshlev/adlink-service/internal/service"
	"github.com/prperemyshlev/adlink-service/internal/utils"
	"github.com/prperemyshlev/adlink-service/migrations"
	"github.com/prperemyshlev/adlink-service/pkg/database"
	"github.com/prperemyshlev/adlink-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
	// consumed states are remembered for a while after their TTL to tell replays from typos
	replayMemory = 24 * time.Hour
)

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	janitor *service.FlowStateJanitor
	auditor *service.Auditor
}

// Option customizes application wiring
type Option func(*options)

type options struct {
	adapters service.AdapterSource
}

// WithAdapters replaces the production provider registry
func WithAdapters(adapters service.AdapterSource) Option {
	return func(o *options) {
		o.adapters = adapters
	}
}

func NewApp(infra Infrastructure, cfg *config.Config, opts ...Option) (*App, error) {
	logger := infra.Logger()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if err := database.Migrate(infra.Postgres().DB, migrations.FS); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := repository.NewRepositories(infra.Postgres())
	if cfg.OAuth.FlowStateBackend == config.FlowStateBackendRedis {
		repos.WithRedisFlowState(infra.Redis())
	}

	cipher, err := utils.NewTokenCipher(cfg.Security.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token cipher: %w", err)
	}

	metrics, err := observability.NewLinkMetrics(infra.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize link metrics: %w", err)
	}

	adapters := o.adapters
	if adapters == nil {
		httpClient := &http.Client{Timeout: cfg.OAuth.HTTPTimeout.Duration}
		adapters = provider.NewDefaultRegistry(httpClient, cfg.Platforms.Microsoft.Tenant)
	}

	for _, missing := range cfg.Platforms.Unconfigured() {
		logger.Warn("Platform integration is not configured",
			zap.String("platform", missing.Platform.String()),
			zap.Strings("missing", missing.Missing),
		)
	}

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret)
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra, cfg.Platforms)

	auditor := service.NewAuditor(repos.Audit, infra.AuditPublisher(), logger)

	linkService := service.NewLinkService(service.Dependencies{
		FlowStates:  repos.FlowState,
		Connections: repos.Connection,
		Adapters:    adapters,
		Credentials: cfg.Platforms,
		Sealer:      cipher,
		Auditor:     auditor,
		AuditLog:    repos.Audit,
		ReplayGuard: service.NewReplayGuard(infra.Redis(), replayMemory),
		Metrics:     metrics,
		Logger:      logger,
	})

	linkHandler := handler.NewLinkHandler(linkService, logger)

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, linkHandler, jwtManager, rateLimiter, healthChecker, infra.MetricsHandler(), logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		janitor: service.NewFlowStateJanitor(repos.FlowState, cfg.OAuth.PurgeInterval.Duration, logger),
		auditor: auditor,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	linkHandler *handler.LinkHandler,
	tokens handler.TokenValidator,
	rateLimiter handler.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
	logger *zap.Logger,
) {
	router.GET("/metrics", gin.WrapH(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	limit := handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.UserBasedKey, logger)

	api := router.Group("/api/v1")
	{
		links := api.Group("/links", handler.AuthMiddleware(tokens))
		{
			links.POST("/auth-url", limit, linkHandler.GetAuthURL)
			links.POST("/exchange", limit, linkHandler.ExchangeToken)
			links.GET("", linkHandler.ListConnections)
			links.GET("/audit", linkHandler.ListAuditEvents)
			links.GET("/:platform/status", linkHandler.GetConnectionStatus)
			links.DELETE("/:platform", linkHandler.Disconnect)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go a.janitor.Run(janitorCtx)

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}
	stopJanitor()

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Audit events still queued are written before their sinks close.
	serverErr := a.server.Shutdown(ctx)
	auditErr := a.auditor.Close(ctx)
	infraErr := a.infra.Shutdown(ctx)

	err := errors.Join(serverErr, auditErr, infraErr)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
