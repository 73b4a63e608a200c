package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/auth"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/cache"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/config"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/ecommerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/event"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/logger"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/mailer"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/persistence"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/scheduler"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/storage"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/handler"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/middleware"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting commerce sync service",
		zap.String("app", cfg.App.Name),
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics("")
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.DBName = cfg.Database.DBName
		if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	if metrics != nil {
		if sqlDB, err := db.SQLDB(); err == nil {
			if err := metrics.RegisterDBStats(sqlDB, cfg.Database.DBName); err != nil {
				log.Warn("Failed to register database pool metrics", zap.Error(err))
			}
		}
	}

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	mappingRepo := persistence.NewGormProductMappingRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	assetRepo := persistence.NewGormDigitalAssetRepository(db.DB)

	// Outbound integrations
	gateway, err := ecommerce.NewClient(ecommerce.AdminAPIConfig{
		ShopDomain:  cfg.Commerce.ShopDomain,
		AccessToken: cfg.Commerce.AccessToken,
		APIVersion:  cfg.Commerce.APIVersion,
		Timeout:     cfg.Commerce.Timeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create commerce API client", zap.Error(err))
	}

	signer, err := storage.NewS3Signer(ctx, &cfg.Storage,
		storage.WithLogger(log),
		storage.WithDefaultTTL(cfg.Downloads.URLTTL),
	)
	if err != nil {
		log.Fatal("Failed to create storage signer", zap.Error(err))
	}

	orderMailer, err := mailer.New(cfg.Mailer, log)
	if err != nil {
		log.Fatal("Failed to create mailer", zap.Error(err))
	}

	dedupe, err := cache.NewIdempotencyStore(cfg.Redis, cfg.App.IsProduction() && cfg.Redis.Host != "", log)
	if err != nil {
		log.Fatal("Failed to create webhook idempotency store", zap.Error(err))
	}
	defer func() {
		_ = dedupe.Close()
	}()

	// Event bus and subscribers
	bus := event.NewInMemoryEventBus(log)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Application services
	assetService := appcommerce.NewDigitalAssetService(assetRepo, signer, log,
		appcommerce.WithDefaultExpiryDays(cfg.Downloads.DefaultExpiryDays),
		appcommerce.WithURLTTL(cfg.Downloads.URLTTL),
	)
	bus.Subscribe(appcommerce.NewNotificationTrigger(orderRepo, orderMailer, log))

	// Fulfillment runs inside every reconcile of a paid order rather than on the
	// bus, so a failed issue surfaces as a retryable webhook error
	fulfiller := appcommerce.NewDigitalFulfiller(mappingRepo, assetService, log)
	reconciler := appcommerce.NewOrderReconciler(orderRepo, bus, log, appcommerce.WithFulfiller(fulfiller))
	orderQuery := appcommerce.NewOrderQueryService(orderRepo)
	backfill := appcommerce.NewOrderBackfillService(gateway, reconciler, log)
	productSync := appcommerce.NewProductSyncService(mappingRepo, syncLogRepo, gateway, log)
	webhooks := appcommerce.NewWebhookService(appcommerce.WebhookConfig{
		Secret:          cfg.Webhook.Secret,
		AllowUnverified: cfg.Webhook.AllowUnverified,
		DedupeTTL:       cfg.Webhook.DedupeTTL,
	}, reconciler, productSync, dedupe, log)

	// The scheduler also backs the manual reconcile route, so it always exists
	schedulerConfig := scheduler.DefaultProductReconcileSchedulerConfig()
	if cfg.Scheduler.ReconcileInterval > 0 {
		schedulerConfig.Interval = cfg.Scheduler.ReconcileInterval
	}
	if cfg.Scheduler.JobTimeout > 0 {
		schedulerConfig.JobTimeout = cfg.Scheduler.JobTimeout
	}
	reconcileScheduler, err := scheduler.NewProductReconcileScheduler(schedulerConfig, productSync, metrics, log)
	if err != nil {
		log.Fatal("Failed to create product reconcile scheduler", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := reconcileScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start product reconcile scheduler", zap.Error(err))
		}
		log.Info("Product reconcile scheduler started",
			zap.Duration("interval", schedulerConfig.Interval),
			zap.Duration("job_timeout", schedulerConfig.JobTimeout),
		)
	} else {
		log.Info("Product reconcile scheduler disabled, manual runs only")
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	metricsPath := cfg.Metrics.Path
	skipPaths := []string{"/health", metricsPath}

	tracingConfig := middleware.DefaultTracingConfig()
	tracingConfig.ServiceName = cfg.Telemetry.ServiceName
	tracingConfig.Enabled = tracerProvider.IsEnabled()
	tracingConfig.SkipPaths = skipPaths

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log, skipPaths...),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.TracingWithConfig(tracingConfig),
		middleware.SpanAttributes(),
		middleware.HTTPMetrics(metrics, skipPaths...),
	)

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
	defer limiter.Stop()

	jwtService := auth.NewJWTService(cfg.Admin)

	handlers := router.Handlers{
		System:       handler.NewSystemHandler(cfg.App.Name, version, db),
		Webhook:      handler.NewWebhookHandler(webhooks, metrics, cfg.Webhook.MaxBodyBytes),
		Download:     handler.NewDownloadHandler(assetService, metrics),
		Order:        handler.NewOrderHandler(orderQuery, backfill, metrics),
		Product:      handler.NewProductHandler(productSync, reconcileScheduler, metrics),
		DigitalAsset: handler.NewDigitalAssetHandler(assetService, cfg.Downloads.PublicBaseURL),
	}
	guards := router.Guards{
		AdminAuth: middleware.AdminAuth(middleware.AdminAuthConfig{
			Validator: jwtService,
			Logger:    log,
		}),
		PublicRateLimit: middleware.RateLimit(limiter),
	}

	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithAPIMiddleware(middleware.BodyLimit(cfg.HTTP.MaxBodySize)),
	)
	r.RegisterRoot(router.ProbeRoutes(handlers.System, metricsPath, metricsHandler)).
		RegisterRoot(router.WebhookRoutes(handlers.Webhook)).
		Register(router.PublicRoutes(handlers, guards)).
		Register(router.AdminRoutes(handlers, guards))
	r.Setup()
	log.Debug("Routes registered", zap.Strings("routes", r.Routes()))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if reconcileScheduler.IsRunning() {
		if err := reconcileScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping product reconcile scheduler", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// issueToken prints an admin bearer token: server token -subject ops -ttl 24h
func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "operator", "Token subject, recorded on admin requests")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, expiresAt, err := auth.NewJWTService(cfg.Admin).IssueAdminToken(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("issue admin token: %w", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
