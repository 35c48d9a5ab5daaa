package service

import (
	"context"
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/mapper"
	"github.com/zmang24/si-opportunity-manager/internal/notify"
	"go.uber.org/zap"
)

// NotificationService exposes the caller's notification ledger
type NotificationService struct {
	ledger *notify.Ledger
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService instance
func NewNotificationService(ledger *notify.Ledger, logger *zap.Logger) *NotificationService {
	return &NotificationService{ledger: ledger, logger: logger}
}

// List returns the caller's notifications newest first
func (s *NotificationService) List(ctx context.Context, since *time.Time, limit int) ([]domain.NotificationDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.ledger.List(ctx, userCtx.UserID, since, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]domain.NotificationDTO, len(rows))
	for i := range rows {
		dtos[i] = mapper.ToNotificationDTO(&rows[i])
	}
	return dtos, nil
}

// UnreadCount returns the caller's unread count within retention
func (s *NotificationService) UnreadCount(ctx context.Context) (*domain.UnreadCountDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	count, err := s.ledger.UnreadCount(ctx, userCtx.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.UnreadCountDTO{Count: count}, nil
}

// MarkRead marks the listed notifications, or all of them, as read
func (s *NotificationService) MarkRead(ctx context.Context, req *domain.MarkReadRequest) (*domain.MarkReadResultDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var updated int64
	switch {
	case req.All:
		updated, err = s.ledger.MarkAllRead(ctx, userCtx.UserID)
	case len(req.IDs) > 0:
		updated, err = s.ledger.MarkRead(ctx, userCtx.UserID, req.IDs)
	default:
		return nil, ErrNothingToMark
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Notifications marked as read",
		zap.String("user_id", userCtx.UserID.String()),
		zap.Bool("all", req.All),
		zap.Int64("updated", updated))
	return &domain.MarkReadResultDTO{Updated: updated}, nil
}
