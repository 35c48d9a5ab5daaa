package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrator applies the embedded goose migrations. SQLite stores are built
// from the models instead, since the SQL targets PostgreSQL.
type Migrator struct {
	cfg    *config.DatabaseConfig
	logger *zap.Logger
}

// NewMigrator creates a Migrator for cfg
func NewMigrator(cfg *config.DatabaseConfig, logger *zap.Logger) *Migrator {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	return &Migrator{cfg: cfg, logger: logger}
}

// openSQL opens a plain database/sql handle through lib/pq
func (m *Migrator) openSQL(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", m.cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", domain.ErrExternalUnavailable, err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return db, nil
}

// Up applies all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	if m.cfg.Driver == "sqlite" {
		return m.upSQLite(ctx)
	}
	db, err := m.openSQL(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	from, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	to, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get final version: %w", err)
	}

	m.logger.Info("Migrations applied",
		zap.Int64("from_version", from),
		zap.Int64("to_version", to))
	return nil
}

// Down rolls back steps migrations
func (m *Migrator) Down(ctx context.Context, steps int) error {
	if m.cfg.Driver == "sqlite" {
		return fmt.Errorf("down migrations are not supported for sqlite")
	}
	db, err := m.openSQL(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
	}
	m.logger.Info("Migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version returns the applied schema version
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if m.cfg.Driver == "sqlite" {
		return 0, fmt.Errorf("sqlite schemas are not versioned")
	}
	db, err := m.openSQL(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return goose.GetDBVersionContext(ctx, db)
}

// Status lists applied and pending migrations
func (m *Migrator) Status(ctx context.Context) error {
	if m.cfg.Driver == "sqlite" {
		return fmt.Errorf("sqlite schemas are not versioned")
	}
	db, err := m.openSQL(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	goose.SetLogger(zap.NewStdLog(m.logger))
	defer goose.SetLogger(goose.NopLogger())
	return goose.StatusContext(ctx, db, migrationsDir)
}

func (m *Migrator) upSQLite(ctx context.Context) error {
	db, err := NewDatabase(ctx, m.cfg)
	if err != nil {
		return err
	}
	defer Close(db)
	return BootstrapSQLite(ctx, db)
}

// BootstrapSQLite builds the schema from the models and seeds reference data
func BootstrapSQLite(ctx context.Context, db *gorm.DB) error {
	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return SeedAdasSystems(ctx, db)
}
