package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/logger"
	"github.com/zmang24/si-opportunity-manager/internal/mapper"
	"github.com/zmang24/si-opportunity-manager/internal/notify"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
)

// LifecycleService moves tickets through their states and appends comments
type LifecycleService struct {
	core   *Core
	logger *zap.Logger
}

// NewLifecycleService creates a new LifecycleService instance
func NewLifecycleService(core *Core, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{core: core, logger: logger}
}

// Transition applies a status change under the ticket lock. The clock is
// read once and that instant is used for the row, the comment and the
// derived durations.
func (s *LifecycleService) Transition(ctx context.Context, id uuid.UUID, req *domain.TransitionRequest) (*domain.TicketDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseTicketStatus(req.To)
	if err != nil {
		return nil, err
	}
	actor := userCtx.Actor()
	text := sanitizeText(req.Comment)

	var ticket *domain.Ticket
	var result *domain.TransitionResult
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		locked, scope, err := s.core.lockTicket(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.core.Clock.Now()
		result, err = domain.Transition(locked, domain.TransitionInput{
			Actor: actor,
			To:    to,
			Text:  text,
			Scope: scope,
			Now:   now,
		})
		if err != nil {
			return err
		}
		if err := domain.CheckInvariants(locked); err != nil {
			return err
		}

		if err := s.core.Tickets.WithTx(tx.DB()).Update(ctx, locked); err != nil {
			return err
		}

		detail := ""
		if result.Comment != nil {
			if _, err := s.core.appendComment(ctx, tx, locked.ID, actor, result.Comment.Kind, result.Comment.Text, now); err != nil {
				return err
			}
			detail = result.Comment.Text
		}

		for _, action := range result.Actions {
			details := map[string]interface{}{
				"from": string(result.From),
				"to":   string(result.To),
			}
			if action == domain.ActionAdminOverride {
				details["reason"] = result.Reason
			}
			if err := s.core.audit(ctx, tx, actor.ID, &locked.ID, action, details, now); err != nil {
				return err
			}
		}

		if err := s.core.emit(ctx, tx, notify.Event{
			Kind:   result.Event,
			Ticket: locked,
			Actor:  actor,
			Detail: detail,
		}, now); err != nil {
			return err
		}

		ticket, err = s.core.Tickets.WithTx(tx.DB()).GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithTicket(s.logger, ticket.ID, ticket.TicketNumber).Info("Ticket transitioned",
		zap.String("from", string(result.From)),
		zap.String("to", string(result.To)),
		zap.Bool("override", result.Override),
		zap.String("actor_id", actor.ID.String()))

	dto := mapper.ToTicketDTO(ticket)
	return &dto, nil
}

// AddComment appends a note to the ticket's log. Participants, admins and
// the manager of the creator's team may comment.
func (s *LifecycleService) AddComment(ctx context.Context, id uuid.UUID, req *domain.AddCommentRequest) (*domain.CommentDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	text := sanitizeText(req.Text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	actor := userCtx.Actor()

	var comment *domain.Comment
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		ticket, scope, err := s.core.lockTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		if !domain.CanComment(ticket, actor, scope) {
			return fmt.Errorf("%w: only participants may comment on %s", domain.ErrPermissionDenied, ticket.TicketNumber)
		}

		now := s.core.Clock.Now()
		comment, err = s.core.appendComment(ctx, tx, ticket.ID, actor, domain.CommentKindNote, text, now)
		if err != nil {
			return err
		}
		ticket.UpdatedAt = now
		if err := s.core.Tickets.WithTx(tx.DB()).Touch(ctx, ticket); err != nil {
			return err
		}
		if err := s.core.audit(ctx, tx, actor.ID, &ticket.ID, domain.ActionCommented, map[string]interface{}{
			"seq": comment.Seq,
		}, now); err != nil {
			return err
		}
		return s.core.emit(ctx, tx, notify.Event{
			Kind:   domain.EventCommentAdded,
			Ticket: ticket,
			Actor:  actor,
			Detail: text,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToCommentDTO(comment)
	return &dto, nil
}
