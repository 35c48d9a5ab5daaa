package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"gorm.io/gorm"
)

// TicketFlag narrows a query relative to the viewer
type TicketFlag string

const (
	FlagNone         TicketFlag = ""
	FlagAssignedToMe TicketFlag = "assigned_to_me"
	FlagCreatedByMe  TicketFlag = "created_by_me"
	FlagUnassigned   TicketFlag = "unassigned"
)

// IsValid checks if the TicketFlag is a valid enum value
func (f TicketFlag) IsValid() bool {
	switch f {
	case FlagNone, FlagAssignedToMe, FlagCreatedByMe, FlagUnassigned:
		return true
	}
	return false
}

// TicketFilter holds the optional query filters
type TicketFilter struct {
	Statuses    []domain.TicketStatus
	CreatorID   *uuid.UUID
	AcceptorID  *uuid.UUID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Flag        TicketFlag
}

// IsEmpty reports whether no filter was given, which selects the dashboard view
func (f TicketFilter) IsEmpty() bool {
	return len(f.Statuses) == 0 &&
		f.CreatorID == nil &&
		f.AcceptorID == nil &&
		f.CreatedFrom == nil &&
		f.CreatedTo == nil &&
		f.Flag == FlagNone
}

// Query returns a page of tickets ordered newest first. With an empty filter
// it returns the dashboard view: new tickets created by someone else.
func (r *TicketRepository) Query(ctx context.Context, filter TicketFilter, viewer uuid.UUID, page, pageSize int) ([]domain.Ticket, int64, error) {
	var tickets []domain.Ticket
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Ticket{})
	query = applyTicketFilter(query, filter, viewer)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Systems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Order("ticket_number DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&tickets).Error

	return tickets, total, err
}

func applyTicketFilter(query *gorm.DB, filter TicketFilter, viewer uuid.UUID) *gorm.DB {
	if filter.IsEmpty() {
		return query.Where("status = ? AND creator_id <> ?", domain.StatusNew, viewer)
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.CreatorID != nil {
		query = query.Where("creator_id = ?", *filter.CreatorID)
	}
	if filter.AcceptorID != nil {
		query = query.Where("acceptor_id = ?", *filter.AcceptorID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at < ?", *filter.CreatedTo)
	}

	switch filter.Flag {
	case FlagAssignedToMe:
		query = query.Where("acceptor_id = ?", viewer)
	case FlagCreatedByMe:
		query = query.Where("creator_id = ?", viewer)
	case FlagUnassigned:
		query = query.Where("acceptor_id IS NULL")
	}
	return query
}
