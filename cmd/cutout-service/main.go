package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mibrahim/cutout/internal/api/handler"
	"github.com/mibrahim/cutout/internal/api/router"
	"github.com/mibrahim/cutout/internal/config"
	"github.com/mibrahim/cutout/internal/janitor"
	"github.com/mibrahim/cutout/internal/job"
	"github.com/mibrahim/cutout/internal/notify"
	"github.com/mibrahim/cutout/internal/removal"
	"github.com/mibrahim/cutout/internal/storage"
	"github.com/mibrahim/cutout/internal/worker"
	"github.com/mibrahim/cutout/shared/logger"
	"github.com/mibrahim/cutout/shared/redisclient"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("CUTOUT_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/cutout-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting cutout service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize Redis client (record store + rate limiter)
	redisClient, err := redisclient.NewClient(&redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize storage backends. The local variant is always available;
	// s3 is added when configured. The active variant receives new
	// artifacts, the rest stay resolvable for download and sweeping.
	backends, err := initBackends(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	active := backends[cfg.Storage.Variant]

	appLogger.Info("Storage configured",
		slog.String("variant", cfg.Storage.Variant),
	)

	// Long-lived collaborators shared by all workers
	store := job.NewRecordStore(redisClient, appLogger.Logger)
	engine := removal.NewHTTPEngine(&removal.HTTPEngineConfig{
		Endpoint: cfg.Engine.Endpoint,
		Timeout:  cfg.Engine.Timeout,
	}, appLogger.Logger)
	mailer := notify.NewMailer(&notify.MailerConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, cfg.Jobs.TTL, appLogger.Logger)

	processor := worker.NewProcessor(&worker.ProcessorConfig{
		Logger:   appLogger.Logger,
		Store:    store,
		Backend:  active,
		Engine:   engine,
		Notifier: mailer,
		TTL:      cfg.Jobs.TTL,
		Timeout:  cfg.Jobs.ProcessTimeout,
		BaseURL:  cfg.Server.BaseURL,
	})

	pool := worker.NewPool(&worker.PoolConfig{
		Logger:      appLogger.Logger,
		Runner:      processor,
		Concurrency: cfg.Jobs.Concurrency,
		QueueSize:   cfg.Jobs.QueueSize,
	})

	orchestrator := job.NewOrchestrator(store, pool, job.Limits{
		MaxUploadBytes:    cfg.Jobs.MaxUploadBytes,
		AllowedModels:     cfg.Jobs.AllowedModels,
		AllowedFormats:    cfg.Jobs.AllowedFormats,
		AllowedExtensions: []string{"png", "jpg", "jpeg", "webp"},
	}, cfg.Jobs.TTL, appLogger.Logger)

	sweeper := janitor.New(&janitor.Config{
		Logger:     appLogger.Logger,
		Store:      store,
		Backends:   backends,
		TTL:        cfg.Jobs.TTL,
		Interval:   cfg.Cleanup.Interval,
		StartDelay: cfg.Cleanup.StartDelay,
	})

	// Create context governing the background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	sweeper.Start(ctx)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, orchestrator, store, backends, redisClient)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Cutout service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	// Stop background work, then release shared clients
	cancel()
	sweeper.Stop()
	pool.Stop()
	engine.Close()
	if err := redisClient.Close(); err != nil {
		appLogger.Error("Failed to close Redis client",
			slog.Any("error", err),
		)
	}

	appLogger.Info("Shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initBackends builds the storage backend registry
func initBackends(cfg *config.Config, logger *slog.Logger) (map[string]storage.Backend, error) {
	backends := make(map[string]storage.Backend)

	local, err := storage.NewLocal(cfg.Storage.Local.Dir, logger)
	if err != nil {
		return nil, err
	}
	backends[storage.VariantLocal] = local

	if cfg.Storage.Variant == storage.VariantS3 || cfg.Storage.S3.Endpoint != "" {
		s3, err := storage.NewS3(&storage.S3Config{
			Endpoint:      cfg.Storage.S3.Endpoint,
			Bucket:        cfg.Storage.S3.Bucket,
			AccessKey:     cfg.Storage.S3.AccessKey,
			SecretKey:     cfg.Storage.S3.SecretKey,
			UseSSL:        cfg.Storage.S3.UseSSL,
			PresignExpiry: cfg.Storage.S3.PresignExpiry,
		}, logger)
		if err != nil {
			return nil, err
		}
		backends[storage.VariantS3] = s3
	}

	if _, ok := backends[cfg.Storage.Variant]; !ok {
		return nil, fmt.Errorf("storage variant %q is not configured", cfg.Storage.Variant)
	}

	return backends, nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(
	cfg *config.Config,
	logger *slog.Logger,
	orchestrator *job.Orchestrator,
	store *job.RecordStore,
	backends map[string]storage.Backend,
	redisClient *redis.Client,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:         logger,
		Orchestrator:   orchestrator,
		Store:          store,
		Backends:       backends,
		BaseURL:        cfg.Server.BaseURL,
		MaxUploadBytes: cfg.Jobs.MaxUploadBytes,
	}

	return router.Setup(deps, redisClient, router.RateLimits{
		BurstLimit:      cfg.RateLimit.BurstLimit,
		BurstWindow:     cfg.RateLimit.BurstWindow,
		SustainedLimit:  cfg.RateLimit.SustainedLimit,
		SustainedWindow: cfg.RateLimit.SustainedWindow,
		DownloadLimit:   cfg.RateLimit.DownloadLimit,
		DownloadWindow:  cfg.RateLimit.DownloadWindow,
	})
}
