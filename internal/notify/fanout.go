// Package notify computes who hears about a ticket event and maintains each
// user's notification ledger.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

// Scope bounds the audience of new-ticket announcements
type Scope string

const (
	ScopeAll  Scope = "all"
	ScopeTeam Scope = "team"
)

// ParseScope accepts "all" or "team"; anything empty means all
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeTeam:
		return ScopeTeam, nil
	}
	return "", fmt.Errorf("%w: unknown notification scope %q", domain.ErrValidation, raw)
}

// Directory lists candidate recipients
type Directory interface {
	ListActiveIDs(ctx context.Context, team string) ([]uuid.UUID, error)
}

// Event is one ticket change that may notify users
type Event struct {
	Kind   domain.EventKind
	Ticket *domain.Ticket
	Actor  domain.Actor
	// CreatorTeam scopes TicketCreated when the policy is ScopeTeam
	CreatorTeam string
	// PreviousAcceptor is set for reassignments
	PreviousAcceptor *uuid.UUID
	// Detail is event specific text: the info request, a file name, a status
	Detail string
}

// FanOut computes recipient sets. The actor is never a recipient.
type FanOut struct {
	scope Scope
}

// NewFanOut creates a FanOut with the given new-ticket scope
func NewFanOut(scope Scope) *FanOut {
	if scope == "" {
		scope = ScopeAll
	}
	return &FanOut{scope: scope}
}

// Scope returns the configured scope
func (f *FanOut) Scope() Scope {
	return f.scope
}

// Recipients returns the deduplicated recipients of ev in a stable order
func (f *FanOut) Recipients(ctx context.Context, dir Directory, ev Event) ([]uuid.UUID, error) {
	t := ev.Ticket
	var candidates []uuid.UUID

	switch ev.Kind {
	case domain.EventTicketCreated:
		team := ""
		if f.scope == ScopeTeam {
			team = ev.CreatorTeam
		}
		ids, err := dir.ListActiveIDs(ctx, team)
		if err != nil {
			return nil, fmt.Errorf("failed to list recipients: %w", err)
		}
		candidates = ids

	case domain.EventAssigned, domain.EventNeedsInfoRequested:
		candidates = []uuid.UUID{t.CreatorID}

	case domain.EventStatusChanged, domain.EventCommentAdded, domain.EventAttachmentAdded:
		candidates = participants(t)

	case domain.EventReassigned:
		candidates = participants(t)
		if ev.PreviousAcceptor != nil {
			candidates = append(candidates, *ev.PreviousAcceptor)
		}

	default:
		return nil, fmt.Errorf("%w: unknown event kind %q", domain.ErrInternal, ev.Kind)
	}

	return without(candidates, ev.Actor.ID), nil
}

func participants(t *domain.Ticket) []uuid.UUID {
	ids := []uuid.UUID{t.CreatorID}
	if t.AcceptorID != nil {
		ids = append(ids, *t.AcceptorID)
	}
	return ids
}

func without(ids []uuid.UUID, actor uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == actor || id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Message renders the notification text for ev
func Message(ev Event) string {
	t := ev.Ticket
	who := ev.Actor.DisplayName
	if who == "" {
		who = "Someone"
	}

	switch ev.Kind {
	case domain.EventTicketCreated:
		return fmt.Sprintf("New opportunity %s: %s", t.TicketNumber, t.VehicleLabel())
	case domain.EventAssigned:
		return fmt.Sprintf("%s accepted %s", who, t.TicketNumber)
	case domain.EventNeedsInfoRequested:
		return truncate(fmt.Sprintf("%s needs info on %s: %s", who, t.TicketNumber, ev.Detail))
	case domain.EventCommentAdded:
		return truncate(fmt.Sprintf("%s commented on %s: %s", who, t.TicketNumber, ev.Detail))
	case domain.EventAttachmentAdded:
		return truncate(fmt.Sprintf("%s attached %s to %s", who, ev.Detail, t.TicketNumber))
	case domain.EventReassigned:
		return fmt.Sprintf("%s reassigned %s", who, t.TicketNumber)
	default:
		return fmt.Sprintf("%s moved %s to %s", who, t.TicketNumber, t.Status)
	}
}

const maxMessageLen = 500

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLen {
		return s
	}
	return string(r[:maxMessageLen-3]) + "..."
}
