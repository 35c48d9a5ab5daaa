package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketRepository handles database operations for tickets and their systems.
//
// Writes are expected to run on a transaction handle obtained through WithTx;
// the ticket row lock taken by GetForUpdate serializes writers on one ticket.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle
func (r *TicketRepository) WithTx(tx *gorm.DB) *TicketRepository {
	return &TicketRepository{db: tx}
}

// MaxSequence returns the highest sequence allocated in year, or 0
func (r *TicketRepository) MaxSequence(ctx context.Context, year int) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Select("COALESCE(MAX(number_seq), 0)").
		Where("number_year = ?", year).
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read ticket sequence: %w", err)
	}
	return max, nil
}

// Create inserts the ticket row followed by its systems in position order.
// A duplicate ticket number surfaces as ErrTicketNumberTaken.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", domain.ErrTicketNumberTaken, ticket.TicketNumber)
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	for i := range ticket.Systems {
		ticket.Systems[i].TicketID = ticket.ID
		ticket.Systems[i].Position = i
	}
	if len(ticket.Systems) > 0 {
		if err := db.Create(&ticket.Systems).Error; err != nil {
			return fmt.Errorf("failed to create ticket systems: %w", err)
		}
	}
	return nil
}

// GetByID loads a ticket with its systems, comments and live attachments
func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.WithContext(ctx).
		Preload("Systems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Where("deleted = ?", false).Order("created_at ASC")
		}).
		First(&ticket, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// GetByNumber loads a ticket by its human-readable number
func (r *TicketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.WithContext(ctx).
		Preload("Systems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&ticket, "ticket_number = ?", number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// GetForUpdate loads the ticket row and locks it until the transaction ends.
// SQLite ignores the locking clause; its single writer gives the same effect.
func (r *TicketRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ticket, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// Update writes the mutable ticket fields if the stored version still equals
// ticket.Version, then bumps the version. A lost race returns ErrConcurrentUpdate.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ? AND version = ?", ticket.ID, ticket.Version).
		Updates(map[string]interface{}{
			"acceptor_id":      ticket.AcceptorID,
			"status":           ticket.Status,
			"updated_at":       ticket.UpdatedAt,
			"started_at":       ticket.StartedAt,
			"completed_at":     ticket.CompletedAt,
			"response_time_ms": ticket.ResponseTimeMs,
			"work_time_ms":     ticket.WorkTimeMs,
			"version":          ticket.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	ticket.Version++
	return nil
}

// Touch bumps updated_at and the version without other changes
func (r *TicketRepository) Touch(ctx context.Context, ticket *domain.Ticket) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("id = ? AND version = ?", ticket.ID, ticket.Version).
		Updates(map[string]interface{}{
			"updated_at": ticket.UpdatedAt,
			"version":    ticket.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to touch ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	ticket.Version++
	return nil
}

// Delete hard-deletes the ticket row and its systems
func (r *TicketRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("ticket_id = ?", id).Delete(&domain.TicketSystem{}).Error; err != nil {
		return fmt.Errorf("failed to delete ticket systems: %w", err)
	}
	result := db.Delete(&domain.Ticket{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

// CountByVehicle returns how many tickets reference the vehicle
func (r *TicketRepository) CountByVehicle(ctx context.Context, vehicleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Ticket{}).
		Where("vehicle_id = ?", vehicleID).
		Count(&count).Error
	return count, err
}
