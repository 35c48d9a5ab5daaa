package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/logger"
	"github.com/zmang24/si-opportunity-manager/internal/mapper"
	"github.com/zmang24/si-opportunity-manager/internal/notify"
	"github.com/zmang24/si-opportunity-manager/internal/repository"
	"github.com/zmang24/si-opportunity-manager/internal/storage"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
)

// MaxNumberAttempts bounds the retries of a ticket number allocation race
const MaxNumberAttempts = 5

// Page size limits for ticket queries
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// TicketService creates, reads, reassigns and deletes tickets
type TicketService struct {
	core   *Core
	blobs  storage.Storage
	urlTTL time.Duration
	logger *zap.Logger
}

// NewTicketService creates a new TicketService instance
func NewTicketService(core *Core, blobs storage.Storage, urlTTL time.Duration, logger *zap.Logger) *TicketService {
	return &TicketService{core: core, blobs: blobs, urlTTL: urlTTL, logger: logger}
}

// Create allocates the next ticket number of the current year and stores
// the ticket in state New. A lost number race retries the whole transaction.
func (s *TicketService) Create(ctx context.Context, req *domain.CreateTicketRequest) (*domain.TicketDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	actor := userCtx.Actor()

	description := sanitizeText(req.Description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	var vin *string
	if req.VIN != nil && strings.TrimSpace(*req.VIN) != "" {
		v := strings.ToUpper(strings.TrimSpace(*req.VIN))
		vin = &v
	}
	if req.VehicleID == nil && req.Vehicle == nil {
		return nil, ErrVehicleRequired
	}
	systems, err := s.buildSystems(ctx, req.Systems)
	if err != nil {
		return nil, err
	}

	var ticket *domain.Ticket
	for attempt := 1; attempt <= MaxNumberAttempts; attempt++ {
		err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
			var txErr error
			ticket, txErr = s.createInTx(ctx, tx, actor, userCtx.Team, req, systems, description, vin)
			return txErr
		})
		if !errors.Is(err, domain.ErrTicketNumberTaken) {
			break
		}
		s.logger.Warn("Ticket number taken, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	if errors.Is(err, domain.ErrTicketNumberTaken) {
		return nil, domain.ErrTicketNumberExhausted
	}
	if err != nil {
		return nil, err
	}

	logger.WithTicket(s.logger, ticket.ID, ticket.TicketNumber).Info("Ticket created",
		zap.String("creator_id", actor.ID.String()))

	dto := mapper.ToTicketDTO(ticket)
	return &dto, nil
}

func (s *TicketService) createInTx(ctx context.Context, tx *store.Tx, actor domain.Actor, team string, req *domain.CreateTicketRequest, systems []domain.TicketSystem, description string, vin *string) (*domain.Ticket, error) {
	now := s.core.Clock.Now()

	vehicle, err := s.resolveVehicle(ctx, tx, actor, req, now)
	if err != nil {
		return nil, err
	}

	tickets := s.core.Tickets.WithTx(tx.DB())
	year := now.Year()
	seq, err := tickets.MaxSequence(ctx, year)
	if err != nil {
		return nil, err
	}
	seq++
	if seq > domain.MaxTicketSeq {
		return nil, fmt.Errorf("%w: year %d is full", domain.ErrTicketNumberExhausted, year)
	}

	vehicleID := vehicle.ID
	ticket := &domain.Ticket{
		TicketNumber: domain.FormatTicketNumber(year, seq),
		NumberYear:   year,
		NumberSeq:    seq,
		CreatorID:    actor.ID,
		VehicleID:    &vehicleID,
		VehicleYear:  vehicle.Year,
		VehicleMake:  vehicle.Make,
		VehicleModel: vehicle.Model,
		VIN:          vin,
		Description:  description,
		Status:       domain.StatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
		Systems:      append([]domain.TicketSystem(nil), systems...),
	}
	if err := tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if err := s.core.audit(ctx, tx, actor.ID, &ticket.ID, domain.ActionCreated, map[string]interface{}{
		"ticket_number": ticket.TicketNumber,
		"vehicle":       ticket.VehicleLabel(),
	}, now); err != nil {
		return nil, err
	}

	if err := s.core.emit(ctx, tx, notify.Event{
		Kind:        domain.EventTicketCreated,
		Ticket:      ticket,
		Actor:       actor,
		CreatorTeam: team,
	}, now); err != nil {
		return nil, err
	}
	return ticket, nil
}

// resolveVehicle returns the referenced vehicle, or finds or adds the custom
// vehicle described inline.
func (s *TicketService) resolveVehicle(ctx context.Context, tx *store.Tx, actor domain.Actor, req *domain.CreateTicketRequest, now time.Time) (*domain.Vehicle, error) {
	vehicles := s.core.Vehicles.WithTx(tx.DB())
	if req.VehicleID != nil {
		return vehicles.GetByID(ctx, *req.VehicleID)
	}

	in := req.Vehicle
	vehicleMake, model := strings.TrimSpace(in.Make), strings.TrimSpace(in.Model)
	existing, err := vehicles.List(ctx, in.Year, vehicleMake)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if strings.EqualFold(existing[i].Model, model) {
			return &existing[i], nil
		}
	}

	creator := actor.ID
	vehicle := &domain.Vehicle{Year: in.Year, Make: vehicleMake, Model: model, IsCustom: true, CreatedBy: &creator}
	if err := vehicles.Create(ctx, vehicle); err != nil {
		return nil, err
	}
	if err := s.core.audit(ctx, tx, actor.ID, nil, domain.ActionVehicleCreated, map[string]interface{}{
		"vehicle_id": vehicle.ID.String(),
		"vehicle":    domain.VehicleLabel(vehicle.Year, vehicle.Make, vehicle.Model),
	}, now); err != nil {
		return nil, err
	}
	return vehicle, nil
}

// buildSystems validates system codes against reference data and
// canonicalizes the affected portions, keeping submission order.
func (s *TicketService) buildSystems(ctx context.Context, inputs []domain.TicketSystemInput) ([]domain.TicketSystem, error) {
	if len(inputs) == 0 {
		return nil, domain.NewValidationError("systems", "At least one ADAS system is required")
	}
	codes := make([]string, 0, len(inputs))
	for _, in := range inputs {
		codes = append(codes, strings.TrimSpace(in.Code))
	}
	known, err := s.core.AdasSystems.KnownCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to check adas systems: %w", err)
	}

	systems := make([]domain.TicketSystem, 0, len(inputs))
	for i, in := range inputs {
		code := codes[i]
		if !known[code] {
			return nil, domain.NewValidationError(fmt.Sprintf("systems[%d].code", i), fmt.Sprintf("Unknown ADAS system %q", code))
		}
		portions := make([]string, 0, len(in.AffectedPortions))
		seen := make(map[domain.AffectedPortion]bool)
		for _, raw := range in.AffectedPortions {
			p, err := domain.ParseAffectedPortion(raw)
			if err != nil {
				return nil, domain.NewValidationError(fmt.Sprintf("systems[%d].affectedPortions", i), err.Error())
			}
			if !seen[p] {
				seen[p] = true
				portions = append(portions, string(p))
			}
		}
		systems = append(systems, domain.TicketSystem{SystemCode: code, AffectedPortions: portions})
	}
	return systems, nil
}

// GetByID returns the ticket with systems, comments and live attachments
func (s *TicketService) GetByID(ctx context.Context, id uuid.UUID) (*domain.TicketDTO, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	err := s.core.Store.Retry(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.core.Tickets.GetByID(ctx, id)
		return store.Classify(err)
	})
	if err != nil {
		return nil, err
	}
	dto := mapper.ToTicketDTO(ticket)
	s.signAttachments(ctx, dto.Attachments)
	return &dto, nil
}

// Query returns a page of tickets. An empty filter yields the dashboard
// view of new tickets created by others.
func (s *TicketService) Query(ctx context.Context, filter repository.TicketFilter, page, pageSize int) (*domain.PaginatedResponse, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !filter.Flag.IsValid() {
		return nil, domain.NewValidationError("flag", fmt.Sprintf("Unknown flag %q", filter.Flag))
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var tickets []domain.Ticket
	var total int64
	err = s.core.Store.Retry(ctx, func(ctx context.Context) error {
		var err error
		tickets, total, err = s.core.Tickets.Query(ctx, filter, userCtx.UserID, page, pageSize)
		return store.Classify(err)
	})
	if err != nil {
		return nil, err
	}

	dtos := make([]domain.TicketDTO, len(tickets))
	for i := range tickets {
		dtos[i] = mapper.ToTicketSummaryDTO(&tickets[i])
	}
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: mapper.TotalPages(total, pageSize),
	}, nil
}

// Reassign moves an accepted ticket to another active user. Admin only.
func (s *TicketService) Reassign(ctx context.Context, id uuid.UUID, req *domain.ReassignRequest) (*domain.TicketDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	actor := userCtx.Actor()
	if !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	reason := sanitizeText(req.Reason)

	var ticket *domain.Ticket
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		locked, _, err := s.core.lockTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		acceptor, err := s.core.Users.WithTx(tx.DB()).GetByID(ctx, req.AcceptorID)
		if err != nil {
			return err
		}
		if !acceptor.Active {
			return ErrInactiveAcceptor
		}

		now := s.core.Clock.Now()
		res, err := domain.Reassign(locked, domain.ReassignInput{Actor: actor, Acceptor: acceptor.ID, Reason: reason, Now: now})
		if err != nil {
			return err
		}
		if err := s.core.Tickets.WithTx(tx.DB()).Update(ctx, locked); err != nil {
			return err
		}
		if _, err := s.core.appendComment(ctx, tx, locked.ID, actor, res.Comment.Kind, res.Comment.Text, now); err != nil {
			return err
		}
		if err := s.core.audit(ctx, tx, actor.ID, &locked.ID, domain.ActionReassigned, map[string]interface{}{
			"from":   res.Previous.String(),
			"to":     acceptor.ID.String(),
			"reason": reason,
		}, now); err != nil {
			return err
		}
		if err := s.core.emit(ctx, tx, notify.Event{
			Kind:             domain.EventReassigned,
			Ticket:           locked,
			Actor:            actor,
			PreviousAcceptor: res.Previous,
		}, now); err != nil {
			return err
		}

		ticket, err = s.core.Tickets.WithTx(tx.DB()).GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToTicketDTO(ticket)
	s.signAttachments(ctx, dto.Attachments)
	return &dto, nil
}

// Delete hard-deletes a ticket with its systems, comments, notifications and
// activity rows, soft-deletes its attachments, and records one deleted
// activity row. Admin only.
func (s *TicketService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if !userCtx.IsAdmin() {
		return ErrAdminRequired
	}

	var number string
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		ticket, err := s.core.Tickets.WithTx(tx.DB()).GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		number = ticket.TicketNumber
		now := s.core.Clock.Now()

		if _, err := s.core.Comments.WithTx(tx.DB()).DeleteByTicket(ctx, id); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		if _, err := s.core.Notifications.WithTx(tx.DB()).DeleteByTicket(ctx, id); err != nil {
			return fmt.Errorf("failed to delete notifications: %w", err)
		}
		if _, err := s.core.Activity.WithTx(tx.DB()).DeleteByTicket(ctx, id); err != nil {
			return fmt.Errorf("failed to delete activity: %w", err)
		}
		removed, err := s.core.Attachments.WithTx(tx.DB()).MarkDeletedByTicket(ctx, id, now)
		if err != nil {
			return fmt.Errorf("failed to delete attachments: %w", err)
		}
		if err := s.core.Tickets.WithTx(tx.DB()).Delete(ctx, id); err != nil {
			return err
		}
		if err := s.core.audit(ctx, tx, userCtx.UserID, &id, domain.ActionDeleted, map[string]interface{}{
			"ticket_number": ticket.TicketNumber,
			"attachments":   removed,
		}, now); err != nil {
			return err
		}
		s.core.changed(tx, id)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Ticket deleted",
		zap.String("ticket_id", id.String()),
		zap.String("ticket_number", number),
		zap.String("deleted_by", userCtx.UserID.String()))
	return nil
}

// signAttachments fills in short-lived download links. A blob store that
// cannot sign leaves the link empty rather than failing the read.
func (s *TicketService) signAttachments(ctx context.Context, attachments []domain.AttachmentDTO) {
	for i := range attachments {
		url, expires, err := s.blobs.URL(ctx, attachments[i].StorageKey, s.urlTTL)
		if err != nil {
			s.logger.Warn("Failed to sign attachment url",
				zap.String("attachment_id", attachments[i].ID.String()),
				zap.Error(err))
			continue
		}
		attachments[i].URL = url
		attachments[i].URLExpiresAt = mapper.FormatTime(expires)
	}
}
