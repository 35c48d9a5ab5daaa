package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle
func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var notification domain.Notification
	err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

// FindCollapsible returns the earliest row of the same kind for the same
// recipient and ticket created at or after since, if any.
func (r *NotificationRepository) FindCollapsible(ctx context.Context, userID uuid.UUID, ticketID *uuid.UUID, kind domain.NotificationKind, since time.Time) (*domain.Notification, error) {
	var notification domain.Notification
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND created_at >= ?", userID, kind, since)
	if ticketID != nil {
		query = query.Where("ticket_id = ?", *ticketID)
	} else {
		query = query.Where("ticket_id IS NULL")
	}
	err := query.Order("created_at ASC").Limit(1).Take(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

// Refresh rewrites a collapsed row with the later event's message and time
// and marks it unread again.
func (r *NotificationRepository) Refresh(ctx context.Context, id uuid.UUID, message string, createdAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"message":    message,
			"created_at": createdAt,
			"read":       false,
			"read_at":    nil,
		}).Error
}

// ListByUser returns up to limit rows newer than horizon, newest first.
// With since set it returns the oldest limit rows created at or after since,
// so a reader paging forward from its last seen instant misses nothing.
// Rows sharing the since instant are returned again; readers dedupe by id.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, horizon time.Time, since *time.Time, limit int) ([]domain.Notification, error) {
	var notifications []domain.Notification

	query := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, horizon)
	if since == nil {
		err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&notifications).Error
		return notifications, err
	}

	err := query.Where("created_at >= ?", *since).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(notifications)-1; i < j; i, j = i+1, j-1 {
		notifications[i], notifications[j] = notifications[j], notifications[i]
	}
	return notifications, nil
}

// MarkAsRead flips the given rows owned by userID to read. Rows of other
// users are ignored.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND id IN ? AND read = ?", userID, ids, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": now,
		})
	return result.RowsAffected, result.Error
}

// CountUnread counts unread rows newer than the retention horizon
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID, horizon time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read = ? AND created_at > ?", userID, false, horizon).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan removes rows created at or before horizon
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at <= ?", horizon).Delete(&domain.Notification{})
	return result.RowsAffected, result.Error
}

// DeleteByTicket removes every notification about a ticket
func (r *NotificationRepository) DeleteByTicket(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&domain.Notification{})
	return result.RowsAffected, result.Error
}
