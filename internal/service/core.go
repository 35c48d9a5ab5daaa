package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/auth"
	"github.com/zmang24/si-opportunity-manager/internal/clock"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/mapper"
	"github.com/zmang24/si-opportunity-manager/internal/notify"
	"github.com/zmang24/si-opportunity-manager/internal/pushbus"
	"github.com/zmang24/si-opportunity-manager/internal/repository"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Core bundles the collaborators shared by the ticket services
type Core struct {
	Store         *store.Store
	Clock         clock.Clock
	Tickets       *repository.TicketRepository
	Comments      *repository.CommentRepository
	Attachments   *repository.AttachmentRepository
	Notifications *repository.NotificationRepository
	Activity      *repository.ActivityRepository
	Users         *repository.UserRepository
	Vehicles      *repository.VehicleRepository
	AdasSystems   *repository.AdasSystemRepository
	FanOut        *notify.FanOut
	Ledger        *notify.Ledger
	Bus           *pushbus.Bus
	Logger        *zap.Logger
}

// NewCore wires repositories over db
func NewCore(st *store.Store, db *gorm.DB, clk clock.Clock, fanOut *notify.FanOut, ledgerCfg notify.LedgerConfig, bus *pushbus.Bus, logger *zap.Logger) *Core {
	notifications := repository.NewNotificationRepository(db)
	return &Core{
		Store:         st,
		Clock:         clk,
		Tickets:       repository.NewTicketRepository(db),
		Comments:      repository.NewCommentRepository(db),
		Attachments:   repository.NewAttachmentRepository(db),
		Notifications: notifications,
		Activity:      repository.NewActivityRepository(db),
		Users:         repository.NewUserRepository(db),
		Vehicles:      repository.NewVehicleRepository(db),
		AdasSystems:   repository.NewAdasSystemRepository(db),
		FanOut:        fanOut,
		Ledger:        notify.NewLedger(st, notifications, clk, ledgerCfg, logger),
		Bus:           bus,
		Logger:        logger,
	}
}

func currentUser(ctx context.Context) (*auth.UserContext, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	return userCtx, nil
}

// lockTicket loads and row-locks the ticket together with the policy scope
// the lifecycle rules need.
func (c *Core) lockTicket(ctx context.Context, tx *store.Tx, id uuid.UUID) (*domain.Ticket, domain.TicketScope, error) {
	ticket, err := c.Tickets.WithTx(tx.DB()).GetForUpdate(ctx, id)
	if err != nil {
		return nil, domain.TicketScope{}, err
	}
	scope, err := c.scopeOf(ctx, c.Users.WithTx(tx.DB()), ticket)
	if err != nil {
		return nil, domain.TicketScope{}, err
	}
	return ticket, scope, nil
}

func (c *Core) scopeOf(ctx context.Context, users *repository.UserRepository, ticket *domain.Ticket) (domain.TicketScope, error) {
	creator, err := users.GetByID(ctx, ticket.CreatorID)
	if err != nil {
		return domain.TicketScope{}, fmt.Errorf("failed to load ticket creator: %w", err)
	}
	others, err := c.otherCandidates(ctx, users, creator)
	if err != nil {
		return domain.TicketScope{}, fmt.Errorf("failed to count candidates: %w", err)
	}
	return domain.TicketScope{CreatorTeam: creator.Team, OtherCandidates: others > 0}, nil
}

// otherCandidates counts the active users besides creator who were notified
// of the ticket. Under team scope only the creator's team was.
func (c *Core) otherCandidates(ctx context.Context, users *repository.UserRepository, creator *domain.User) (int, error) {
	if c.FanOut.Scope() != notify.ScopeTeam {
		count, err := users.CountActiveExcept(ctx, creator.ID)
		return int(count), err
	}
	ids, err := users.ListActiveIDs(ctx, creator.Team)
	if err != nil {
		return 0, err
	}
	others := 0
	for _, id := range ids {
		if id != creator.ID {
			others++
		}
	}
	return others, nil
}

// audit appends one ActivityLog row inside tx
func (c *Core) audit(ctx context.Context, tx *store.Tx, actor uuid.UUID, ticketID *uuid.UUID, action domain.ActivityAction, details map[string]interface{}, now time.Time) error {
	if _, err := c.Activity.WithTx(tx.DB()).Append(ctx, actor, ticketID, action, details, now); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}

// emit fans ev out to the ledger inside tx and schedules the pushes for
// after the commit. Pushes are hints; the ledger rows are authoritative.
func (c *Core) emit(ctx context.Context, tx *store.Tx, ev notify.Event, now time.Time) error {
	recipients, err := c.FanOut.Recipients(ctx, c.Users.WithTx(tx.DB()), ev)
	if err != nil {
		return err
	}
	ticketID := ev.Ticket.ID
	rows, err := c.Ledger.Append(ctx, tx, recipients, &ticketID, ev.Kind.NotificationKind(), notify.Message(ev), now)
	if err != nil {
		return err
	}

	tx.AfterCommit(func() {
		for i := range rows {
			dto := mapper.ToNotificationDTO(&rows[i])
			c.Bus.Publish(rows[i].UserID, pushbus.Event{Type: domain.FrameNotification, Payload: &dto})
		}
	})
	c.changed(tx, ticketID)

	c.Logger.Debug("Ticket event fanned out",
		zap.String("event", string(ev.Kind)),
		zap.String("ticket_id", ticketID.String()),
		zap.Int("recipients", len(rows)))
	return nil
}

// changed schedules a ticket_changed broadcast for after the commit
func (c *Core) changed(tx *store.Tx, ticketID uuid.UUID) {
	tx.AfterCommit(func() {
		id := ticketID
		c.Bus.Broadcast(pushbus.Event{Type: domain.FrameTicketChanged, ID: &id})
	})
}

// appendComment writes a comment authored by actor at now
func (c *Core) appendComment(ctx context.Context, tx *store.Tx, ticketID uuid.UUID, actor domain.Actor, kind domain.CommentKind, text string, now time.Time) (*domain.Comment, error) {
	comment := &domain.Comment{
		TicketID:      ticketID,
		AuthorID:      actor.ID,
		AuthorDisplay: actor.DisplayName,
		Text:          text,
		Kind:          kind,
		CreatedAt:     now,
	}
	if err := c.Comments.WithTx(tx.DB()).Append(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}
