package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/leaftrace/anomalyd/internal/config"
	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/handlers"
	"github.com/leaftrace/anomalyd/internal/jobs"
	"github.com/leaftrace/anomalyd/internal/logging"
	"github.com/leaftrace/anomalyd/internal/middleware"
	"github.com/leaftrace/anomalyd/internal/realtime"
	"github.com/leaftrace/anomalyd/internal/services"
	slackutil "github.com/leaftrace/anomalyd/internal/slack"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := logging.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Sync()

	for _, w := range cfg.Warnings {
		logging.Warnf("Configuration: %s", w)
	}
	if envErr != nil {
		logging.Infof("No .env file loaded (fine when using environment variables): %v", envErr)
	}

	if err := run(cfg); err != nil {
		logging.Errorf("anomalyd exited: %v", err)
		logging.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logging.Infof("Starting anomalyd %s", handlers.Version)

	if cfg.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is not set")
	}

	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
		},
		QueryTokenPaths: []string{"/ws/*"},
	})
	logging.Infof("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Database
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(cfg.MigrateSourceTables); err != nil {
		return fmt.Errorf("run database migrations: %w", err)
	}
	if err := database.InitializeDefaults(); err != nil {
		return fmt.Errorf("initialize database defaults: %w", err)
	}

	db := database.GetDB()

	if cfg.FixturesFile != "" {
		if err := database.LoadFixturesFile(db, cfg.FixturesFile, time.Now().UTC()); err != nil {
			return fmt.Errorf("load fixtures: %w", err)
		}
		logging.Infof("Loaded source fixtures from %s", cfg.FixturesFile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Live event fan-out: websocket hub and Slack locally, Redis across replicas
	hub := realtime.NewHub()
	go hub.Run(ctx)

	local := events.Multi{hub}
	if cfg.Slack.Enabled() {
		notifier := slackutil.NewNotifier(slackutil.New(cfg.Slack.BotToken), cfg.Slack.Channel, func() bool {
			settings, err := database.GetOrCreateDetectionSettings(db)
			return err == nil && settings.NotifyCritical
		})
		defer notifier.Wait()
		local = append(local, notifier)
		logging.Infof("Slack notifications enabled for channel %s", cfg.Slack.Channel)
	}

	publisher := events.Multi{local}
	if cfg.Redis.Enabled() {
		redisPublisher, err := events.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			logging.Warnf("Redis fan-out disabled: %v", err)
		} else {
			defer redisPublisher.Close()
			publisher = append(publisher, redisPublisher)
			// Remote events only reach live consumers; each replica notifies Slack for its own work.
			go func() {
				if err := redisPublisher.Relay(ctx, hub); err != nil && ctx.Err() == nil {
					logging.Errorf("Redis relay stopped: %v", err)
				}
			}()
			logging.Infof("Redis fan-out enabled on channel %s (origin %s)", cfg.Redis.Channel, redisPublisher.Origin())
		}
	}

	// Root-cause enrichment
	var generator services.RootCauseGenerator
	if cfg.LLM.Enabled() {
		generator = services.NewLLMRootCauseGenerator(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model,
			time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
		logging.Infof("Root-cause enrichment enabled with model %s", cfg.LLM.Model)
	} else {
		logging.Infof("Root-cause enrichment disabled (LLM_API_KEY not set)")
	}

	enrichment := services.NewEnrichmentQueue(db, generator, publisher, cfg.Enrichment.Workers, cfg.Enrichment.QueueSize)
	enrichment.Start()

	// Services
	detector := services.NewDetectorService(db, enrichment, publisher)
	resolution := services.NewResolutionService(db, publisher)
	anomalies := services.NewAnomalyService(db)

	stopJobs := make(chan struct{})
	go jobs.NewScheduledScanner(db, detector).Start(stopJobs)

	// HTTP
	mux := http.NewServeMux()
	handlers.NewHTTPHandler(db, hub).SetupRoutes(mux)
	handlers.NewAPIHandler(detector, resolution, anomalies, enrichment).SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuthMiddleware).SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...)
	handler := middleware.RequestIDMiddleware(
		middleware.AccessLogMiddleware(
			corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)),
		),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Infof("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logging.Infof("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	logging.Infof("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	select {
	case <-ctx.Done():
		logging.Infof("Received shutdown signal, cleaning up...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	close(stopJobs)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warnf("Error shutting down HTTP server: %v", err)
	}
	if err := enrichment.Stop(shutdownCtx); err != nil {
		logging.Warnf("Enrichment queue did not drain: %v", err)
	}

	logging.Infof("Shutdown complete")
	return nil
}
