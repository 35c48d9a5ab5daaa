// Package app assembles the service graph shared by the API server and the
// operator CLI.
package app

import (
	"context"
	"errors"

	"github.com/zmang24/si-opportunity-manager/internal/auth"
	"github.com/zmang24/si-opportunity-manager/internal/clock"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/database"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/notify"
	"github.com/zmang24/si-opportunity-manager/internal/pushbus"
	"github.com/zmang24/si-opportunity-manager/internal/service"
	"github.com/zmang24/si-opportunity-manager/internal/storage"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired services
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Clock  clock.Clock

	DB     *gorm.DB
	Store  *store.Store
	Blobs  storage.Storage
	Signer *storage.Signer
	Bus    *pushbus.Bus
	Core   *service.Core
	Tokens *auth.TokenService

	Tickets       *service.TicketService
	Lifecycle     *service.LifecycleService
	Attachments   *service.AttachmentService
	Notifications *service.NotificationService
	Vehicles      *service.VehicleService
	Users         *service.UserService
	Maintenance   *service.MaintenanceService
}

// LoadConfig reads and validates configuration, resolving vault secrets
// where enabled.
func LoadConfig(ctx context.Context, logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.LoadWithSecrets(ctx, logger)
	if err != nil {
		return nil, ConfigError(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, ConfigError(err)
	}
	return cfg, nil
}

// New connects the store and blob store and builds every service
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDatabase(ctx, &cfg.Database)
	if err != nil {
		if errors.Is(err, domain.ErrExternalUnavailable) {
			return nil, err
		}
		return nil, ConfigError(err)
	}
	logger.Info("Database connected",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns))

	// The SQL migrations target PostgreSQL; SQLite stores are built from the models
	if cfg.Database.Driver == "sqlite" {
		if err := database.BootstrapSQLite(ctx, db); err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}

	blobs, err := storage.NewStorage(&cfg.Storage, logger)
	if err != nil {
		_ = database.Close(db)
		if errors.Is(err, domain.ErrBlobUnavailable) {
			return nil, err
		}
		return nil, ConfigError(err)
	}
	logger.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	a, err := Assemble(cfg, logger, clock.System{}, db, blobs)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return a, nil
}

// Assemble builds the services over an open database and blob store
func Assemble(cfg *config.Config, logger *zap.Logger, clk clock.Clock, db *gorm.DB, blobs storage.Storage) (*App, error) {
	scope, err := notify.ParseScope(cfg.Notifications.Scope)
	if err != nil {
		return nil, ConfigError(err)
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, ConfigError(err)
	}

	st := store.New(db, logger, store.WithTxTimeout(cfg.Database.AcquireTimeoutDuration()))
	bus := pushbus.New(cfg.PushBus.Buffer, logger)
	core := service.NewCore(st, db, clk, notify.NewFanOut(scope), notify.LedgerConfig{
		Retention:      cfg.Notifications.Retention(),
		CollapseWindow: cfg.Notifications.CollapseWindowDuration(),
	}, bus, logger)

	urlTTL := cfg.Storage.SignedURLTTLDuration()
	a := &App{
		Config: cfg,
		Logger: logger,
		Clock:  clk,
		DB:     db,
		Store:  st,
		Blobs:  blobs,
		Bus:    bus,
		Core:   core,
		Tokens: tokens,

		Tickets:       service.NewTicketService(core, blobs, urlTTL, logger),
		Lifecycle:     service.NewLifecycleService(core, logger),
		Attachments:   service.NewAttachmentService(core, blobs, cfg.Storage.MaxUploadBytes(), urlTTL, logger),
		Notifications: service.NewNotificationService(core.Ledger, logger),
		Vehicles:      service.NewVehicleService(core, logger),
		Users:         service.NewUserService(core, tokens, logger),
		Maintenance:   service.NewMaintenanceService(core, blobs, cfg.Jobs.OrphanAge(), logger),
	}
	if local, ok := blobs.(*storage.LocalStorage); ok {
		a.Signer = local.Signer()
	}
	return a, nil
}

// Close releases the bus and the database pool
func (a *App) Close() error {
	a.Bus.Close()
	return database.Close(a.DB)
}
