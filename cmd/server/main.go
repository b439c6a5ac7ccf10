package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	conflictapp "github.com/synchub/backend/internal/application/conflict"
	connectionapp "github.com/synchub/backend/internal/application/connection"
	mappingapp "github.com/synchub/backend/internal/application/mapping"
	retentionapp "github.com/synchub/backend/internal/application/retention"
	syncapp "github.com/synchub/backend/internal/application/sync"
	webhookapp "github.com/synchub/backend/internal/application/webhook"
	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/infrastructure/archive"
	"github.com/synchub/backend/internal/infrastructure/auth"
	"github.com/synchub/backend/internal/infrastructure/cache"
	"github.com/synchub/backend/internal/infrastructure/config"
	"github.com/synchub/backend/internal/infrastructure/connectors/local"
	"github.com/synchub/backend/internal/infrastructure/connectors/odoo"
	"github.com/synchub/backend/internal/infrastructure/delivery"
	"github.com/synchub/backend/internal/infrastructure/event"
	"github.com/synchub/backend/internal/infrastructure/logger"
	"github.com/synchub/backend/internal/infrastructure/persistence"
	"github.com/synchub/backend/internal/infrastructure/ratelimit"
	"github.com/synchub/backend/internal/infrastructure/scheduler"
	secretstore "github.com/synchub/backend/internal/infrastructure/secrets"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
	"github.com/synchub/backend/internal/interfaces/http/handler"
	"github.com/synchub/backend/internal/interfaces/http/middleware"
	"github.com/synchub/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/synchub/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			SyncHub API
//	@version		1.0
//	@description	Integration synchronization engine - connections, mappings, scheduled syncs, conflicts and webhooks

//	@contact.name	API Support
//	@contact.url	https://github.com/synchub/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
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

	log.Info("Starting SyncHub",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Connect Redis for connector rate limiting and webhook dedup.
	// When Redis is unreachable both fall back to in-process stores, which
	// is fine for a single instance but loses cross-instance coordination.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var (
		connectorLimiter ratelimit.Limiter
		tokenBlacklist   auth.TokenBlacklist
	)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, using in-memory connector rate limiter and token blacklist", zap.Error(err))
		connectorLimiter = ratelimit.NewMemoryLimiter()
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		connectorLimiter = ratelimit.NewRedisLimiter(redisClient, "synchub:ratelimit:")
		tokenBlacklist = auth.NewRedisTokenBlacklistWithClient(redisClient)
		log.Info("Redis connected successfully")
	}
	cancelPing()

	dedupFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	dedupStore, err := dedupFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create webhook dedup store", zap.Error(err))
	}

	// Initialize OpenTelemetry providers. Both return no-op implementations
	// when telemetry is disabled, so downstream wiring is unconditional.
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Warn("Failed to initialize log export, keeping stdout only", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := logsProvider.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down logger provider", zap.Error(err))
			}
		}()
		if logsProvider.IsEnabled() {
			// Everything wired from here on logs to stdout and the
			// collector; the bootstrap lines above stay stdout-only.
			log = telemetry.AttachOTELCore(log, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
				ServiceName:    cfg.Telemetry.ServiceName,
				LoggerProvider: logsProvider,
				Level:          zapcore.InfoLevel,
			}))
		}
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilerEnabled,
		ServerAddress:     cfg.Telemetry.ProfilerEndpoint,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// With both the profiler and tracing up, label CPU profiles by span.
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			WithoutVariables: true,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Store-level metrics: statement counters and pool gauges
	storeMetrics, err := telemetry.RegisterStoreMetrics(db.DB, meterProvider,
		telemetry.DefaultStoreMetricsConfig(), log)
	if err != nil {
		log.Warn("Failed to register store metrics", zap.Error(err))
	} else if storeMetrics != nil {
		storeMetrics.StartPoolStatsCollection(context.Background())
		defer storeMetrics.Stop()
	}

	// Engine-level metrics: execution/record/conflict/webhook counters plus
	// periodically collected backlog gauges
	engineMetrics, err := telemetry.NewEngineMetrics(telemetry.EngineMetricsConfig{
		Meter:          meterProvider.Meter("synchub/engine"),
		Logger:         log,
		EngineProvider: telemetry.NewGormEngineMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize engine metrics", zap.Error(err))
	}
	if cfg.Telemetry.Enabled {
		engineMetrics.StartPeriodicCollection(context.Background(),
			telemetry.NewGormTenantProvider(db.DB), time.Minute)
		defer engineMetrics.Stop()
	}

	// Initialize encrypted secret store for connection credentials
	secrets, err := secretstore.NewEncryptedStore(db.DB, cfg.Secrets.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize secret store", zap.Error(err))
	}

	// Initialize connector registry with builtin definitions and adapters
	registry, err := connector.NewRegistryWithBuiltins()
	if err != nil {
		log.Fatal("Failed to initialize connector registry", zap.Error(err))
	}
	odooAdapter := odoo.NewAdapter(60 * time.Second)
	if err := registry.RegisterAdapter(odooAdapter); err != nil {
		log.Fatal("Failed to register odoo adapter", zap.Error(err))
	}
	hubStore := local.NewStore(db.DB)

	// Initialize repositories
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	mappingRepo := persistence.NewGormDataMappingRepository(db.DB)
	configRepo := persistence.NewGormSyncConfigRepository(db.DB)
	executionRepo := persistence.NewGormSyncExecutionRepository(db.DB)
	execLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	conflictRepo := persistence.NewGormConflictRepository(db.DB)
	webhookRepo := persistence.NewGormWebhookRepository(db.DB)
	deliveryLogRepo := persistence.NewGormWebhookDeliveryLogRepository(db.DB)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)

	// Initialize outbound webhook dispatcher and subscribe it to engine events
	dispatcher := delivery.NewDispatcher(delivery.Config{
		Workers:   cfg.Webhook.Workers,
		QueueSize: cfg.Webhook.QueueSize,
	}, webhookRepo, deliveryLogRepo, secrets, log)
	dispatcher.SetObserver(engineMetrics)
	eventBus.Subscribe(dispatcher, dispatcher.EventTypes()...)

	metricsRecorder := telemetry.NewEventMetricsRecorder(engineMetrics, log)
	eventBus.Subscribe(metricsRecorder, metricsRecorder.EventTypes()...)

	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal("Failed to start webhook dispatcher", zap.Error(err))
	}
	defer func() {
		if err := dispatcher.Stop(context.Background()); err != nil {
			log.Error("Error stopping webhook dispatcher", zap.Error(err))
		}
	}()

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize the sync execution engine
	executor := scheduler.NewExecutor(scheduler.ExecutorConfig{
		DefaultTimeout:      cfg.Engine.DefaultTimeout,
		LockTTL:             cfg.Engine.LockTTL,
		FailureAbortRatio:   cfg.Engine.FailureAbortRatio,
		FailureAbortMinimum: cfg.Engine.FailureAbortMinimum,
		RateLimitBackoff:    cfg.Engine.RateLimitBackoff,
	}, configRepo, executionRepo, execLogRepo, connectionRepo, conflictRepo,
		secrets, registry, hubStore, connectorLimiter, eventBus, log)

	// The scheduler runs even with polling disabled: its worker pool still
	// serves manually triggered and webhook-triggered runs
	sched, err := scheduler.NewScheduler(scheduler.Config{
		Enabled:       cfg.Scheduler.Enabled,
		PollInterval:  cfg.Scheduler.PollInterval,
		Workers:       cfg.Scheduler.Workers,
		QueueSize:     cfg.Scheduler.QueueSize,
		HistorySize:   cfg.Scheduler.HistorySize,
		DueBatchLimit: cfg.Scheduler.DueBatchLimit,
	}, configRepo, mappingRepo, connectionRepo, executor, log)
	if err != nil {
		log.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	if err := sched.Start(context.Background()); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer func() {
		if err := sched.Stop(context.Background()); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}()
	log.Info("Scheduler started",
		zap.Bool("polling_enabled", cfg.Scheduler.Enabled),
		zap.Int("workers", cfg.Scheduler.Workers),
		zap.Duration("poll_interval", cfg.Scheduler.PollInterval),
	)

	// Initialize application services
	connectionService := connectionapp.NewConnectionService(connectionRepo, secrets, registry, eventBus)
	mappingService := mappingapp.NewMappingService(mappingRepo, connectionRepo, configRepo, registry)
	syncService := syncapp.NewSyncService(configRepo, executionRepo, execLogRepo,
		mappingRepo, connectionRepo, executor, sched)
	conflictService := conflictapp.NewConflictService(conflictRepo, executionRepo,
		connectionRepo, secrets, registry, hubStore, eventBus)
	webhookService := webhookapp.NewWebhookService(webhookRepo, deliveryLogRepo, secrets,
		connectionRepo, mappingRepo, executor, sched, dedupStore, cfg.Webhook.DedupTTL, eventBus, log)

	// Start the retention sweep (if archival is enabled)
	var retentionCron *cron.Cron
	if cfg.Archive.Enabled {
		archiveStore, err := archive.NewS3Store(&cfg.Archive, log)
		if err != nil {
			log.Fatal("Failed to initialize archive store", zap.Error(err))
		}
		retentionService := retentionapp.NewRetentionService(retentionapp.Config{
			RetentionDays: cfg.Archive.RetentionDays,
		}, executionRepo, execLogRepo, deliveryLogRepo, archiveStore, log)

		retentionCron = cron.New()
		if _, err := retentionCron.AddFunc(cfg.Archive.Schedule, func() {
			report, err := retentionService.Run(context.Background())
			if err != nil {
				log.Error("Retention sweep failed", zap.Error(err))
				return
			}
			log.Info("Retention sweep completed",
				zap.Int("executions_archived", report.ExecutionsArchived),
				zap.Int("deliveries_archived", report.DeliveriesArchived),
			)
		}); err != nil {
			log.Fatal("Invalid retention schedule", zap.String("schedule", cfg.Archive.Schedule), zap.Error(err))
		}
		retentionCron.Start()
		defer retentionCron.Stop()
		log.Info("Retention job scheduled",
			zap.String("schedule", cfg.Archive.Schedule),
			zap.Int("retention_days", cfg.Archive.RetentionDays),
		)
	}

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWT)

	// Initialize HTTP handlers
	connectionHandler := handler.NewConnectionHandler(connectionService)
	mappingHandler := handler.NewMappingHandler(mappingService)
	syncHandler := handler.NewSyncHandler(syncService)
	executionHandler := handler.NewExecutionHandler(syncService)
	conflictHandler := handler.NewConflictHandler(conflictService)
	webhookHandler := handler.NewWebhookHandler(webhookService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Telemetry middleware (no-op when disabled)
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("synchub/http"), cfg.Telemetry.Enabled))
	if profiler.IsEnabled() {
		engine.Use(middleware.Profiling())
	}

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Swagger documentation endpoint. SwaggerProtection answers 404 when
	// disabled and enforces the IP whitelist / auth requirement otherwise.
	swaggerGuard := middleware.SwaggerProtection(middleware.SwaggerConfig{
		Enabled:     cfg.Swagger.Enabled,
		RequireAuth: cfg.Swagger.RequireAuth,
		AllowedIPs:  cfg.Swagger.AllowedIPs,
	}, middleware.JWTAuthMiddleware(jwtService))
	engine.GET("/swagger/*any", swaggerGuard, ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Inbound webhook ingestion (no authentication required)
	// Remote systems call this endpoint directly; requests are validated by
	// HMAC signature against the channel's signing secret
	inboundGroup := engine.Group("/api/v1/webhooks/inbound")
	inboundGroup.POST("/:id", webhookHandler.Ingest)

	// Apply JWT authentication middleware to everything registered below.
	// Tokens are issued by an external identity provider sharing the
	// configured secret; the middleware only validates them.
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/health",
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		SkipPathPrefixes: []string{
			"/swagger",
			"/api/v1/webhooks/inbound",
		},
		Logger: log,
	}
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))
	// Tenant and user claims only exist after authentication, so re-enrich
	// the request span here.
	engine.Use(middleware.TracingAttributeInjector())

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Register domain route groups

	// Connection domain (connector catalog, connection lifecycle)
	connectionRoutes := router.NewDomainGroup("connection", "/connections")
	connectionRoutes.GET("/connectors", connectionHandler.Connectors)
	connectionRoutes.POST("", connectionHandler.Create)
	connectionRoutes.GET("", connectionHandler.List)
	connectionRoutes.GET("/:id", connectionHandler.GetByID)
	connectionRoutes.PUT("/:id", connectionHandler.Update)
	connectionRoutes.DELETE("/:id", connectionHandler.Deactivate)
	connectionRoutes.POST("/:id/test", connectionHandler.Test)
	connectionRoutes.POST("/:id/reauthorize", connectionHandler.Reauthorize)
	connectionRoutes.POST("/:id/maintenance", connectionHandler.EnterMaintenance)
	connectionRoutes.DELETE("/:id/maintenance", connectionHandler.EndMaintenance)

	// Mapping domain (field mappings, transforms, previews)
	mappingRoutes := router.NewDomainGroup("mapping", "/mappings")
	mappingRoutes.GET("/transforms", mappingHandler.Transforms)
	mappingRoutes.POST("", mappingHandler.Create)
	mappingRoutes.GET("", mappingHandler.List)
	mappingRoutes.GET("/:id", mappingHandler.GetByID)
	mappingRoutes.PUT("/:id", mappingHandler.Update)
	mappingRoutes.DELETE("/:id", mappingHandler.Delete)
	mappingRoutes.POST("/:id/preview", mappingHandler.Preview)
	mappingRoutes.POST("/:id/trigger", syncHandler.TriggerMapping)

	// Sync domain (configurations, scheduler, executions)
	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/configs", syncHandler.CreateConfig)
	syncRoutes.GET("/configs", syncHandler.ListConfigs)
	syncRoutes.GET("/configs/:id", syncHandler.GetConfig)
	syncRoutes.PUT("/configs/:id", syncHandler.UpdateConfig)
	syncRoutes.DELETE("/configs/:id", syncHandler.DeleteConfig)
	syncRoutes.POST("/configs/:id/pause", syncHandler.PauseConfig)
	syncRoutes.POST("/configs/:id/resume", syncHandler.ResumeConfig)
	syncRoutes.GET("/configs/:id/next-runs", syncHandler.NextRuns)
	syncRoutes.POST("/configs/:id/trigger", syncHandler.TriggerConfig)
	syncRoutes.GET("/scheduler/status", syncHandler.SchedulerStatus)
	// Execution history and control
	syncRoutes.GET("/executions", executionHandler.List)
	syncRoutes.GET("/executions/:id", executionHandler.GetByID)
	syncRoutes.GET("/executions/:id/progress", executionHandler.Progress)
	syncRoutes.POST("/executions/:id/cancel", executionHandler.Cancel)
	syncRoutes.POST("/executions/:id/retry", executionHandler.Retry)
	syncRoutes.GET("/executions/:id/logs", executionHandler.Logs)

	// Conflict domain (review queue, resolution)
	conflictRoutes := router.NewDomainGroup("conflict", "/conflicts")
	conflictRoutes.GET("", conflictHandler.List)
	conflictRoutes.GET("/summary", conflictHandler.Summary)
	conflictRoutes.GET("/:id", conflictHandler.GetByID)
	conflictRoutes.POST("/:id/resolve", conflictHandler.Resolve)
	conflictRoutes.POST("/:id/ignore", conflictHandler.Ignore)

	// Webhook domain (channel management, delivery logs)
	webhookRoutes := router.NewDomainGroup("webhook", "/webhooks")
	webhookRoutes.POST("", webhookHandler.Create)
	webhookRoutes.GET("", webhookHandler.List)
	webhookRoutes.GET("/:id", webhookHandler.GetByID)
	webhookRoutes.PUT("/:id", webhookHandler.Update)
	webhookRoutes.DELETE("/:id", webhookHandler.Deactivate)
	webhookRoutes.POST("/:id/pause", webhookHandler.Pause)
	webhookRoutes.POST("/:id/resume", webhookHandler.Resume)
	webhookRoutes.GET("/:id/deliveries", webhookHandler.Deliveries)

	// Register all domain groups
	r.Register(connectionRoutes).
		Register(mappingRoutes).
		Register(syncRoutes).
		Register(conflictRoutes).
		Register(webhookRoutes)

	// Register system routes with swagger-documented handlers
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
