package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/clock"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/repository"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
)

// Default ledger limits
const (
	DefaultRetention      = 30 * 24 * time.Hour
	DefaultCollapseWindow = 60 * time.Second
	DefaultListLimit      = 50
	MaxListLimit          = 200
)

// Ledger is the per-user notification store. It is the source of truth for
// unread counts; pushes are only hints.
type Ledger struct {
	store          *store.Store
	repo           *repository.NotificationRepository
	clock          clock.Clock
	retention      time.Duration
	collapseWindow time.Duration
	logger         *zap.Logger
}

// LedgerConfig tunes retention and collapsing
type LedgerConfig struct {
	Retention      time.Duration
	CollapseWindow time.Duration
}

// NewLedger creates a Ledger
func NewLedger(st *store.Store, repo *repository.NotificationRepository, clk clock.Clock, cfg LedgerConfig, logger *zap.Logger) *Ledger {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.CollapseWindow < 0 {
		cfg.CollapseWindow = 0
	}
	return &Ledger{
		store:          st,
		repo:           repo,
		clock:          clk,
		retention:      cfg.Retention,
		collapseWindow: cfg.CollapseWindow,
		logger:         logger,
	}
}

// Horizon returns the oldest creation time still retained
func (l *Ledger) Horizon() time.Time {
	return l.clock.Now().Add(-l.retention)
}

// Append writes one row per recipient inside tx. A row of the same kind for
// the same recipient and ticket within the collapse window is refreshed
// instead of duplicated. The returned rows are the ones to push.
func (l *Ledger) Append(ctx context.Context, tx *store.Tx, recipients []uuid.UUID, ticketID *uuid.UUID, kind domain.NotificationKind, message string, now time.Time) ([]domain.Notification, error) {
	repo := l.repo.WithTx(tx.DB())
	out := make([]domain.Notification, 0, len(recipients))

	for _, userID := range recipients {
		if l.collapseWindow > 0 {
			existing, err := repo.FindCollapsible(ctx, userID, ticketID, kind, now.Add(-l.collapseWindow))
			if err != nil {
				return nil, fmt.Errorf("failed to look up collapsible notification: %w", err)
			}
			if existing != nil {
				if err := repo.Refresh(ctx, existing.ID, message, now); err != nil {
					return nil, fmt.Errorf("failed to refresh notification: %w", err)
				}
				existing.Message = message
				existing.CreatedAt = now
				existing.Read = false
				existing.ReadAt = nil
				out = append(out, *existing)
				continue
			}
		}

		n := domain.Notification{
			UserID:    userID,
			TicketID:  ticketID,
			Kind:      kind,
			Message:   message,
			CreatedAt: now,
		}
		if err := repo.Create(ctx, &n); err != nil {
			return nil, fmt.Errorf("failed to append notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// UnreadCount counts unread rows newer than the retention horizon
func (l *Ledger) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := l.store.Retry(ctx, func(ctx context.Context) error {
		var err error
		count, err = l.repo.CountUnread(ctx, userID, l.Horizon())
		return store.Classify(err)
	})
	return count, err
}

// List returns up to limit rows newest first. Reconnecting clients pass
// their last seen timestamp as since and get the oldest page at or after it;
// they advance since to the newest row until a page comes back short.
func (l *Ledger) List(ctx context.Context, userID uuid.UUID, since *time.Time, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	var rows []domain.Notification
	err := l.store.Retry(ctx, func(ctx context.Context) error {
		var err error
		rows, err = l.repo.ListByUser(ctx, userID, l.Horizon(), since, limit)
		return store.Classify(err)
	})
	return rows, err
}

// MarkRead flips the caller's listed rows to read. Idempotent; ids of other
// users' rows are ignored.
func (l *Ledger) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var updated int64
	err := l.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		updated, err = l.repo.WithTx(tx.DB()).MarkAsRead(ctx, userID, ids, l.clock.Now())
		return err
	})
	return updated, err
}

// MarkAllRead flips every unread row of the caller to read. Idempotent.
func (l *Ledger) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var updated int64
	err := l.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		updated, err = l.repo.WithTx(tx.DB()).MarkAllAsRead(ctx, userID, l.clock.Now())
		return err
	})
	return updated, err
}

// Sweep deletes rows older than the retention horizon
func (l *Ledger) Sweep(ctx context.Context) (int64, error) {
	horizon := l.Horizon()
	var deleted int64
	err := l.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		deleted, err = l.repo.WithTx(tx.DB()).DeleteOlderThan(ctx, horizon)
		return err
	})
	if err != nil {
		return 0, err
	}
	l.logger.Info("Notification sweep finished",
		zap.Time("horizon", horizon),
		zap.Int64("deleted", deleted))
	return deleted, nil
}
