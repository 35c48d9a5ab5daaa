// Package testutil builds isolated stores and fully wired services for tests.
// Every store is a private in-memory SQLite database, so tests run without a
// PostgreSQL server and may run in parallel.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/app"
	"github.com/zmang24/si-opportunity-manager/internal/auth"
	"github.com/zmang24/si-opportunity-manager/internal/clock"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/database"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Epoch is the fake clock's starting instant
var Epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// Test secrets
const (
	JWTSecret     = "test-jwt-secret-0123456789abcdef"
	URLSigningKey = "test-url-signing-key-0123"
	PublicBaseURL = "http://localhost:8080/api/v1"
)

// SQLiteDSN returns a DSN for a fresh named in-memory database
func SQLiteDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

// NewDB opens a private in-memory store with the schema and seed data
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), &config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    SQLiteDSN(),
	})
	require.NoError(t, err, "failed to open sqlite test database")
	require.NoError(t, database.BootstrapSQLite(context.Background(), db))
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// NewConfig returns a valid configuration for a local store under t.TempDir
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{Name: "SI Opportunity Manager", Environment: "test", Port: 8080},
		Database: config.DatabaseConfig{
			Driver:         "sqlite",
			DSN:            SQLiteDSN(),
			AcquireTimeout: 5,
		},
		Auth: config.AuthConfig{JWTSecret: JWTSecret, Issuer: "si-opportunity-manager", TokenTTL: 60},
		Storage: config.StorageConfig{
			Mode:            "local",
			LocalBasePath:   t.TempDir(),
			URLSigningKey:   URLSigningKey,
			PublicBaseURL:   PublicBaseURL,
			CloudContainer:  "attachments",
			MaxUploadSizeMB: 1,
			SignedURLTTL:    900,
		},
		Notifications: config.NotificationsConfig{RetentionDays: 30, Scope: "all", CollapseWindow: 0},
		Jobs:          config.JobsConfig{OrphanAgeHours: 24},
		PushBus:       config.PushBusConfig{Buffer: 32},
		Server:        config.ServerConfig{ReadTimeout: 30, WriteTimeout: 30, RequestTimeout: 30},
		RateLimit:     config.RateLimitConfig{Enabled: false},
	}
}

// Env is a wired application over an in-memory store and a fake clock
type Env struct {
	*app.App
	Clock *clock.Fake
	Local *storage.LocalStorage
}

// NewEnv assembles every service over a fresh store. Tune cfg before the
// services are built by passing mutators.
func NewEnv(t *testing.T, mutators ...func(*config.Config)) *Env {
	t.Helper()
	return NewEnvWithBlobs(t, nil, mutators...)
}

// NewEnvWithBlobs is NewEnv with the services' blob store wrapped by wrap,
// for tests that intercept storage calls. Env.Local stays the bare store.
func NewEnvWithBlobs(t *testing.T, wrap func(storage.Storage) storage.Storage, mutators ...func(*config.Config)) *Env {
	t.Helper()
	cfg := NewConfig(t)
	for _, m := range mutators {
		m(cfg)
	}

	db := NewDB(t)
	signer, err := storage.NewSigner(cfg.Storage.URLSigningKey, cfg.Storage.PublicBaseURL)
	require.NoError(t, err)
	local, err := storage.NewLocalStorage(cfg.Storage.LocalBasePath, signer, zap.NewNop())
	require.NoError(t, err)

	clk := clock.NewFake(Epoch)
	var blobs storage.Storage = local
	if wrap != nil {
		blobs = wrap(local)
	}
	a, err := app.Assemble(cfg, zap.NewNop(), clk, db, blobs)
	require.NoError(t, err)
	if a.Signer == nil {
		a.Signer = local.Signer()
	}
	t.Cleanup(a.Bus.Close)

	return &Env{App: a, Clock: clk, Local: local}
}

// CreateUser inserts an active user with the given role and team
func CreateUser(t *testing.T, db *gorm.DB, username string, role domain.Role, team string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: displayName(username),
		Role:        role,
		Team:        team,
		Active:      true,
	}
	user.CreatedAt = Epoch
	user.UpdatedAt = Epoch
	require.NoError(t, db.Create(user).Error)
	return user
}

func displayName(username string) string {
	if username == "" {
		return "User"
	}
	return strings.ToUpper(username[:1]) + username[1:]
}

// As returns a context authenticated as user
func As(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), auth.NewUserContext(user))
}

// TicketRequest returns a valid create request for a catalogue vehicle
func TicketRequest(description string) *domain.CreateTicketRequest {
	return &domain.CreateTicketRequest{
		Vehicle: &domain.VehicleInput{Year: 2024, Make: "Toyota", Model: "Camry"},
		Systems: []domain.TicketSystemInput{
			{Code: "ACC", AffectedPortions: []string{"Calibration Procedure"}},
		},
		Description: description,
	}
}

// CreateTicket submits a ticket as creator and returns it
func (e *Env) CreateTicket(t *testing.T, creator *domain.User, description string) *domain.TicketDTO {
	t.Helper()
	ticket, err := e.Tickets.Create(As(creator), TicketRequest(description))
	require.NoError(t, err)
	return ticket
}

// Transition moves the ticket as actor and requires success
func (e *Env) Transition(t *testing.T, actor *domain.User, id uuid.UUID, to domain.TicketStatus, comment string) *domain.TicketDTO {
	t.Helper()
	ticket, err := e.Lifecycle.Transition(As(actor), id, &domain.TransitionRequest{To: string(to), Comment: comment})
	require.NoError(t, err)
	return ticket
}
