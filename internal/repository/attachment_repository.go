package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/gorm"
)

// AttachmentRepository handles attachment metadata
type AttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository
func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle
func (r *AttachmentRepository) WithTx(tx *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: tx}
}

// Create inserts attachment metadata. The blob must already be stored.
func (r *AttachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// GetByID returns an attachment, deleted or not
func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	var attachment domain.Attachment
	err := r.db.WithContext(ctx).First(&attachment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &attachment, nil
}

// ListByTicket returns live attachments of a ticket
func (r *AttachmentRepository) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("ticket_id = ? AND deleted = ?", ticketID, false).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}

// MarkDeleted soft-deletes an attachment. Idempotent.
func (r *AttachmentRepository) MarkDeleted(ctx context.Context, id uuid.UUID, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{
			"deleted":    true,
			"deleted_at": now,
		})
	return result.Error
}

// MarkDeletedByTicket soft-deletes every live attachment of a ticket
func (r *AttachmentRepository) MarkDeletedByTicket(ctx context.Context, ticketID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("ticket_id = ? AND deleted = ?", ticketID, false).
		Updates(map[string]interface{}{
			"deleted":    true,
			"deleted_at": now,
		})
	return result.RowsAffected, result.Error
}

// PurgeCandidates returns storage keys whose attachments are all deleted and
// not yet purged, limited to limit keys.
func (r *AttachmentRepository) PurgeCandidates(ctx context.Context, limit int) ([]string, error) {
	var keys []string
	live := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Select("content_hash").
		Where("deleted = ?", false)
	err := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Distinct("storage_key").
		Where("deleted = ? AND purged_at IS NULL", true).
		Where("content_hash NOT IN (?)", live).
		Limit(limit).
		Pluck("storage_key", &keys).Error
	return keys, err
}

// MarkPurged records that the blob behind storageKey was removed
func (r *AttachmentRepository) MarkPurged(ctx context.Context, storageKey string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("storage_key = ? AND deleted = ? AND purged_at IS NULL", storageKey, true).
		Update("purged_at", now)
	return result.RowsAffected, result.Error
}

// CountLiveByHash returns the number of live attachments sharing a hash
func (r *AttachmentRepository) CountLiveByHash(ctx context.Context, contentHash string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("content_hash = ? AND deleted = ?", contentHash, false).
		Count(&count).Error
	return count, err
}

// ReferencedKeys returns the subset of keys that any attachment row,
// deleted or not, still references.
func (r *AttachmentRepository) ReferencedKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	referenced := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return referenced, nil
	}
	var found []string
	err := r.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Distinct("storage_key").
		Where("storage_key IN ?", keys).
		Where("purged_at IS NULL").
		Pluck("storage_key", &found).Error
	if err != nil {
		return nil, err
	}
	for _, k := range found {
		referenced[k] = true
	}
	return referenced, nil
}
