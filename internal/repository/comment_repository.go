package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/gorm"
)

// CommentRepository appends to and reads a ticket's comment log
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle
func (r *CommentRepository) WithTx(tx *gorm.DB) *CommentRepository {
	return &CommentRepository{db: tx}
}

// Append assigns the next sequence number and inserts the comment. The caller
// must hold the ticket lock. A timestamp older than the last comment is refused.
func (r *CommentRepository) Append(ctx context.Context, comment *domain.Comment) error {
	db := r.db.WithContext(ctx)

	var last domain.Comment
	err := db.Where("ticket_id = ?", comment.TicketID).Order("seq DESC").Limit(1).Take(&last).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		comment.Seq = 1
	case err != nil:
		return fmt.Errorf("failed to read last comment: %w", err)
	default:
		if comment.CreatedAt.Before(last.CreatedAt) {
			return domain.ErrCommentOutOfOrder
		}
		comment.Seq = last.Seq + 1
	}

	if err := db.Create(comment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConcurrentUpdate
		}
		return fmt.Errorf("failed to append comment: %w", err)
	}
	return nil
}

// ListByTicket returns the comment log in append order
func (r *CommentRepository) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("seq ASC").Find(&comments).Error
	return comments, err
}

// DeleteByTicket removes every comment of a ticket. Only the admin delete
// cascade calls this.
func (r *CommentRepository) DeleteByTicket(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&domain.Comment{})
	return result.RowsAffected, result.Error
}
