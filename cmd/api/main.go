package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zmang24/si-opportunity-manager/docs"
	"github.com/zmang24/si-opportunity-manager/internal/app"
	"github.com/zmang24/si-opportunity-manager/internal/auth"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/http/handler"
	"github.com/zmang24/si-opportunity-manager/internal/http/middleware"
	"github.com/zmang24/si-opportunity-manager/internal/http/router"
	"github.com/zmang24/si-opportunity-manager/internal/jobs"
	"github.com/zmang24/si-opportunity-manager/internal/logger"
	"github.com/zmang24/si-opportunity-manager/internal/pushbus"
	"go.uber.org/zap"
)

//go:generate swag init -g cmd/api/main.go -o docs --parseInternal

// @title SI Opportunity Manager API
// @version 1.0
// @description Ticket lifecycle and notification API for service information documentation opportunities

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(app.ExitCode(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return app.ConfigError(fmt.Errorf("failed to load config: %w", err))
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return app.ConfigError(fmt.Errorf("failed to create logger: %w", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" || basicCfg.App.Environment == "local" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := app.LoadConfig(ctx, log)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Error closing resources", zap.Error(err))
		}
	}()

	relayDone := startRelay(ctx, cfg, a.Bus, log)

	// Background sweeps
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterSweeps(scheduler, a.Maintenance, jobs.Schedules{
			Retention: cfg.Jobs.RetentionSchedule,
			Orphans:   cfg.Jobs.OrphanSchedule,
			GC:        cfg.Jobs.GCSchedule,
		}, log); err != nil {
			return app.ConfigError(fmt.Errorf("failed to register sweeps: %w", err))
		}
		scheduler.Start()
		log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))
	} else {
		log.Info("Background sweeps disabled")
	}

	authMiddleware := auth.NewMiddleware(a.Tokens, a.Core.Users, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	var blobHandler *handler.BlobHandler
	if a.Signer != nil {
		blobHandler = handler.NewBlobHandler(a.Blobs, a.Signer, a.Clock, log)
	}

	rt := router.NewRouter(
		cfg,
		log,
		a.DB,
		authMiddleware,
		rateLimiter,
		handler.NewTicketHandler(a.Tickets, a.Lifecycle, log),
		handler.NewAttachmentHandler(a.Attachments, cfg.Storage.MaxUploadBytes(), log),
		handler.NewNotificationHandler(a.Notifications, log),
		handler.NewEventsHandler(a.Bus, cfg.CORS.AllowedOrigins, log),
		handler.NewVehicleHandler(a.Vehicles, log),
		handler.NewAuthHandler(a.Users, log),
		blobHandler,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
		log.Info("Scheduler stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// WebSocket sessions are hijacked and not tracked by Shutdown
	a.Bus.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown gracefully", zap.Error(err))
		return err
	}
	stop()
	<-relayDone

	log.Info("Server stopped gracefully")
	return nil
}

// startRelay connects the push bus to Redis when configured, so events
// reach sessions held by other instances. Without Redis each instance only
// pushes to its own sessions.
func startRelay(ctx context.Context, cfg *config.Config, bus *pushbus.Bus, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if cfg.PushBus.RedisURL == "" {
		close(done)
		return done
	}

	client, err := pushbus.NewRedisClient(ctx, cfg.PushBus.RedisURL)
	if err != nil {
		log.Warn("Redis relay unavailable, pushing to local sessions only", zap.Error(err))
		close(done)
		return done
	}

	relay := pushbus.NewRedisRelay(client, bus, cfg.PushBus.Buffer, log)
	go func() {
		defer close(done)
		defer client.Close()
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Redis relay stopped", zap.Error(err))
		}
	}()
	log.Info("Redis relay started")
	return done
}
