package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityRepository appends to the activity log.
//
// Index recommendations for optimal query performance:
// - CREATE INDEX idx_activity_log_ticket_id ON activity_log(ticket_id) WHERE ticket_id IS NOT NULL;
// - CREATE INDEX idx_activity_log_action ON activity_log(action);
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle
func (r *ActivityRepository) WithTx(tx *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: tx}
}

// Append writes one activity entry with details encoded as JSON
func (r *ActivityRepository) Append(ctx context.Context, userID uuid.UUID, ticketID *uuid.UUID, action domain.ActivityAction, details map[string]interface{}, now time.Time) (*domain.ActivityLog, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode activity details: %w", err)
	}
	entry := &domain.ActivityLog{
		UserID:    userID,
		TicketID:  ticketID,
		Action:    action,
		Details:   datatypes.JSON(raw),
		CreatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to write activity log: %w", err)
	}
	return entry, nil
}

// ListByTicket returns a ticket's activity, oldest first
func (r *ActivityRepository) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]domain.ActivityLog, error) {
	var entries []domain.ActivityLog
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// ListByAction returns entries with the given action, newest first
func (r *ActivityRepository) ListByAction(ctx context.Context, action domain.ActivityAction, limit int) ([]domain.ActivityLog, error) {
	var entries []domain.ActivityLog
	err := r.db.WithContext(ctx).
		Where("action = ?", action).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// DeleteByTicket removes a ticket's prior activity. Only the admin delete
// cascade calls this, before appending its own "deleted" entry.
func (r *ActivityRepository) DeleteByTicket(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&domain.ActivityLog{})
	return result.RowsAffected, result.Error
}
