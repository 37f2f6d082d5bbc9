package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tavola-kitchen/api/internal/di"
	"github.com/tavola-kitchen/api/internal/handlers"
	"github.com/tavola-kitchen/api/internal/platform/config"
	"github.com/tavola-kitchen/api/internal/platform/idempotency"
	"github.com/tavola-kitchen/api/internal/platform/observability"
	"github.com/tavola-kitchen/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	cfg, err := config.Load(ctx, config.WithEnvFile(".env"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	container, err := di.NewContainer(ctx, cfg, logger, di.WithBuildInfo(buildInfoFromEnv(cfg, startedAt)))
	if err != nil {
		logger.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("dependency close error", zap.Error(err))
		}
	}()

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		runIdempotencyCleanup(cleanupCtx, container.Idempotency, cfg.Idempotency, logger.Named("idempotency"))
	}()

	router := handlers.NewRouter(routerOptions(cfg, container, logger)...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("tavola api listening",
			zap.String("cart_store", cfg.Cart.Store),
			zap.String("catalog_source", cfg.Catalog.Source),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func routerOptions(cfg config.Config, container *di.Container, logger *zap.Logger) []handlers.Option {
	httpLogger := logger.Named("http")
	svc := container.Services

	idemOpts := []idempotency.MiddlewareOption{
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	}
	cartIdempotency := idempotency.Middleware(container.Idempotency, append(idemOpts, idempotency.WithKeyOptional())...)
	submitIdempotency := idempotency.Middleware(container.Idempotency, idemOpts...)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(container.Build),
		handlers.WithHealthSystemService(svc.System),
	)
	cartHandlers := handlers.NewCartHandlers(svc.Cart, cfg.Cart.Currency)
	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog)
	checkoutHandlers := handlers.NewCheckoutHandlers(svc.Checkout, cfg.Idempotency.Header,
		handlers.WithSubmitMiddlewares(submitIdempotency),
	)

	session := handlers.SessionMiddleware(handlers.SessionConfig{
		Header:       cfg.Cart.SessionHeader,
		Cookie:       cfg.Cart.SessionCookie,
		CookieTTL:    cfg.Cart.SessionCookieTTL,
		SecureCookie: cfg.Server.Environment != "local",
	}, func() string { return ulid.Make().String() })

	return []handlers.Option{
		handlers.WithTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.InjectLoggerMiddleware(httpLogger),
			observability.RecoveryMiddleware(httpLogger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAPIMiddlewares(session, observability.RequestLoggerMiddleware()),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithCartMiddlewares(cartIdempotency),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
	}
}

// runIdempotencyCleanup removes expired records on every tick until ctx is cancelled.
func runIdempotencyCleanup(ctx context.Context, store idempotency.Store, cfg config.IdempotencyConfig, logger *zap.Logger) {
	if store == nil || cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, time.Minute)
			removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
			cancel()
			if err != nil {
				logger.Error("idempotency cleanup error", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Server.Environment,
		StartedAt:   started,
	}
}
