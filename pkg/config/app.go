// Package config hosts the embeddable server. Construct an App from a loaded
// configuration or a builder, then Run it; Run blocks until shutdown.
package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/api"
	"github.com/orangecat-xyz/autorouter/internal/config"
	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/apikey"
	"github.com/orangecat-xyz/autorouter/internal/services/budget"
	"github.com/orangecat-xyz/autorouter/internal/services/database"
	"github.com/orangecat-xyz/autorouter/internal/services/middleware"
	"github.com/orangecat-xyz/autorouter/internal/services/pricefeed"
	"github.com/orangecat-xyz/autorouter/internal/services/router"
	"github.com/orangecat-xyz/autorouter/internal/services/scheduler"
	"github.com/orangecat-xyz/autorouter/internal/services/select_model"
	"github.com/orangecat-xyz/autorouter/internal/services/usage"
	"github.com/orangecat-xyz/autorouter/pkg/builder"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/redis/go-redis/v9"
)

const (
	decisionWorkerPool   = 4
	decisionWorkerBuffer = 1024
	budgetResetInterval  = 1 * time.Hour
)

// App represents an autorouter server instance.
type App struct {
	config  *config.Config
	app     *fiber.App
	redis   *redis.Client
	db      *database.DB
	builder *builder.Builder
}

// appServices bundles the database-backed services. Nil when the deployment
// runs without persistence.
type appServices struct {
	apiKeyService  *apikey.Service
	budgetService  *budget.Service
	creditsService *usage.CreditsService
	usageService   *usage.Service
	worker         *usage.Worker
	scheduler      *scheduler.BudgetResetScheduler
}

type appInfrastructure struct {
	redis *redis.Client
	db    *database.DB
}

// NewApp creates a new App instance with the given configuration.
// The cfg parameter is required and must not be nil.
// For middleware control, use NewAppWithBuilder.
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the builder to create one")
	}

	return &App{config: cfg}
}

// NewAppWithBuilder creates a new App instance from a configuration builder.
func NewAppWithBuilder(b *builder.Builder) *App {
	return &App{
		config:  b.Build(),
		builder: b,
	}
}

// Run starts the server and blocks until shutdown.
func (a *App) Run() error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(a.config)

	port := a.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	a.app = createFiberApp(a.config)

	// === Infrastructure ===
	infra, err := initializeInfrastructure(a.config)
	if err != nil {
		return err
	}
	a.redis = infra.redis
	a.db = infra.db

	if a.redis != nil {
		defer func() {
			if err := a.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}
	if a.db != nil {
		defer func() {
			if err := a.db.Close(); err != nil {
				fiberlog.Errorf("Failed to close database connection: %v", err)
			}
		}()
	}

	// === Routing engine ===
	routerSvc, err := router.NewService(a.config)
	if err != nil {
		return fmt.Errorf("router initialization failed: %w", err)
	}
	defer func() {
		if err := routerSvc.Close(); err != nil {
			fiberlog.Errorf("Failed to close router: %v", err)
		}
	}()

	// === Price feed ===
	// The routing engine's estimator is the sink; every feed update lands
	// there immediately.
	feed := pricefeed.NewService(a.config.MergePriceFeedConfig(nil), routerSvc, a.redis)
	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()
	feed.Start(feedCtx)
	defer feed.Stop()

	// === Database-backed services ===
	services := initializeServices(a.db)
	if services != nil {
		schedCtx, cancelScheduler := context.WithCancel(context.Background())
		defer cancelScheduler()
		go services.scheduler.Start(schedCtx)

		// Stop drains queued decision writes before the deferred db close
		// runs.
		defer services.worker.Stop()
	}

	// === Middleware & routes ===
	setupMiddleware(a.app, a.config, a.builder)
	a.setupRoutes(routerSvc, feed, services)
	a.app.Get("/", welcomeHandler(routerSvc))

	fmt.Printf("OrangeCat autorouter starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", a.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	// Graceful shutdown handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := a.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	fiberlog.Info("Server shutting down gracefully...")
	if err := a.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

func (a *App) setupRoutes(routerSvc *router.Service, feed *pricefeed.Service, services *appServices) {
	healthHandler := api.NewHealthHandler(a.redis, a.db, feed)
	a.app.Get("/health", healthHandler.HealthCheck)

	var worker *usage.Worker
	if services != nil {
		worker = services.worker
	}

	selectModelHandler := api.NewSelectModelHandler(
		select_model.NewRequestService(),
		select_model.NewService(routerSvc, worker),
		select_model.NewResponseService(),
	)
	modelsHandler := api.NewModelsHandler(routerSvc)
	priceHandler := api.NewPriceHandler(feed, routerSvc)

	v1 := a.app.Group("/api/v1")

	// API key auth needs the key store; without a database every request is
	// anonymous.
	if services != nil {
		keyMW := middleware.NewAPIKeyMiddleware(
			services.apiKeyService,
			services.budgetService,
			services.creditsService,
			a.config.Server.APIKeys,
		)
		v1.Use(keyMW.Authenticate())
	}

	v1.Post("/select-model", selectModelHandler.SelectModel)
	v1.Get("/models", modelsHandler.ListModels)
	v1.Get("/price", priceHandler.GetPrice)

	adminAuth := middleware.NewAdminAuth(&a.config.Auth)
	adminGroup := v1.Group("/admin", adminAuth.RequireAdmin())

	if services != nil {
		usageHandler := api.NewUsageHandler(services.usageService)
		usageHandler.RegisterRoutes(v1, "/usage")

		creditsHandler := api.NewCreditsHandler(services.creditsService)
		creditsHandler.RegisterRoutes(v1, "/credits")

		adminHandler := api.NewAdminHandler(feed, routerSvc, services.creditsService)
		adminGroup.Put("/price", adminHandler.OverridePrice)
		adminGroup.Post("/credits/add", adminHandler.AddCredits)

		apiKeyHandler := api.NewAPIKeyHandler(services.apiKeyService)
		apiKeyHandler.RegisterRoutes(adminGroup, "/api-keys")
	} else {
		adminHandler := api.NewAdminHandler(feed, routerSvc, nil)
		adminGroup.Put("/price", adminHandler.OverridePrice)
	}
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "OrangeCat autorouter v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		Prefork:              false,
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "autorouter",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config, b *builder.Builder) {
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	// Global rate limiter; per-key RPM limits live in the API key middleware
	defaultKeyFunc := func(c *fiber.Ctx) string {
		if apiKey, ok := c.Locals("api_key_raw").(string); ok && apiKey != "" {
			return apiKey
		}
		return c.IP()
	}

	if b != nil && b.GetRateLimitConfig() != nil {
		rlCfg := b.GetRateLimitConfig()
		keyFunc := rlCfg.KeyFunc
		if keyFunc == nil {
			keyFunc = defaultKeyFunc
		}
		app.Use(limiter.New(limiter.Config{
			Max:               rlCfg.Max,
			Expiration:        rlCfg.Expiration,
			LimiterMiddleware: limiter.SlidingWindow{},
			KeyGenerator:      keyFunc,
			LimitReached: func(c *fiber.Ctx) error {
				return fmt.Errorf("%d requests per %v", rlCfg.Max, rlCfg.Expiration)
			},
		}))
	} else {
		app.Use(limiter.New(limiter.Config{
			Max:               1000,
			Expiration:        1 * time.Minute,
			LimiterMiddleware: limiter.SlidingWindow{},
			KeyGenerator:      defaultKeyFunc,
			LimitReached: func(c *fiber.Ctx) error {
				return fmt.Errorf("1000 requests per minute")
			},
		}))
	}

	// Request timeout middleware
	if b != nil && b.GetTimeoutConfig() != nil {
		timeoutDuration := b.GetTimeoutConfig().Timeout
		app.Use(func(c *fiber.Ctx) error {
			handler := func(c *fiber.Ctx) error {
				return c.Next()
			}
			return timeout.NewWithContext(handler, timeoutDuration)(c)
		})
	} else {
		app.Use(func(c *fiber.Ctx) error {
			const (
				defaultTimeout = 30 * time.Second
				maxTimeout     = 2 * time.Minute
			)

			timeout := defaultTimeout
			if customTimeout := c.Get("X-Request-Timeout"); customTimeout != "" {
				if d, err := time.ParseDuration(customTimeout); err == nil && d > 0 {
					timeout = min(d, maxTimeout)
				}
			}

			ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
			defer cancel()
			c.SetUserContext(ctx)

			return c.Next()
		})
	}

	// Compression
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Logging
	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	// CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent, X-API-Key, X-Request-ID, X-Request-Timeout",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	// Custom middlewares from builder
	if b != nil {
		for _, mw := range b.GetMiddlewares() {
			app.Use(mw)
		}
	}

	// Profiler (dev only)
	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	redisURL := ""
	if cfg.Redis != nil && cfg.Redis.URL != "" {
		redisURL = cfg.Redis.URL
	} else if cfg.Router != nil && cfg.Router.Cache != nil && cfg.Router.Cache.RedisURL != "" {
		redisURL = cfg.Router.Cache.RedisURL
	}

	if redisURL == "" {
		fiberlog.Info("Redis not configured - circuit breaker and price snapshots disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	fiberlog.Debugf("Redis client configuration: PoolSize=%d, MinIdle=%d, MaxRetries=%d",
		opt.PoolSize, opt.MinIdleConns, opt.MaxRetries)

	client := redis.NewClient(opt)

	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			stats := client.PoolStats()
			fiberlog.Debugf("Redis pool initialized: Hits=%d, Misses=%d, Timeouts=%d, TotalConns=%d, IdleConns=%d",
				stats.Hits, stats.Misses, stats.Timeouts, stats.TotalConns, stats.IdleConns)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

func welcomeHandler(routerSvc *router.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":       "OrangeCat autorouter",
			"version":       "1.0.0",
			"go_version":    runtime.Version(),
			"status":        "running",
			"default_model": routerSvc.DefaultModelID(),
			"endpoints": fiber.Map{
				"select_model": "/api/v1/select-model",
				"models":       "/api/v1/models",
				"price":        "/api/v1/price",
				"health":       "/health",
			},
		})
	}
}

func runDatabaseMigrations(db *database.DB) error {
	// GORM's AutoMigrate is unreliable against ClickHouse; that driver gets
	// ordered SQL migrations instead.
	if db.DriverName() == string(models.ClickHouse) {
		if err := database.RunClickHouseMigrations(db.DB); err != nil {
			return fmt.Errorf("failed to run clickhouse migrations: %w", err)
		}
		return nil
	}

	if err := apikey.NewService(db.DB).AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate api_keys table: %w", err)
	}

	creditsSvc := usage.NewCreditsService(db.DB)
	if err := creditsSvc.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate credits tables: %w", err)
	}

	usageSvc := usage.NewService(db.DB, creditsSvc, budget.NewService(db.DB))
	if err := usageSvc.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate routing_decisions table: %w", err)
	}

	return nil
}

func initializeServices(db *database.DB) *appServices {
	if db == nil {
		return nil
	}

	apiKeySvc := apikey.NewService(db.DB)
	budgetSvc := budget.NewService(db.DB)
	creditsSvc := usage.NewCreditsService(db.DB)
	usageSvc := usage.NewService(db.DB, creditsSvc, budgetSvc)

	return &appServices{
		apiKeyService:  apiKeySvc,
		budgetService:  budgetSvc,
		creditsService: creditsSvc,
		usageService:   usageSvc,
		worker:         usage.NewWorker(usageSvc, decisionWorkerPool, decisionWorkerBuffer),
		scheduler:      scheduler.NewBudgetResetScheduler(budgetSvc, budgetResetInterval),
	}
}

func initializeInfrastructure(cfg *config.Config) (*appInfrastructure, error) {
	infra := &appInfrastructure{}

	redisClient, err := createRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}
	infra.redis = redisClient

	if redisClient != nil {
		fiberlog.Info("Redis client initialized successfully")
	}

	if cfg.Database != nil {
		db, err := database.New(*cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection: %w", err)
		}
		infra.db = db

		fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

		if err := runDatabaseMigrations(db); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		fiberlog.Info("Database migrations completed successfully")
	} else {
		fiberlog.Info("Database not configured - decisions will not be recorded")
	}

	return infra, nil
}
