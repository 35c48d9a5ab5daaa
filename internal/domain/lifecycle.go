package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default comment texts for transitions that always leave a trace
const (
	AcceptedCommentText = "Accepted"
	ReopenedCommentText = "Reopened"
)

// Actor is the user performing a command
type Actor struct {
	ID          uuid.UUID
	DisplayName string
	Role        Role
	Team        string
}

// ActorFromUser builds an Actor from a stored user
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, DisplayName: u.DisplayName, Role: u.Role, Team: u.Team}
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ManagesTeam reports whether the actor is the manager of the given team
func (a Actor) ManagesTeam(team string) bool {
	return a.Role == RoleManager && a.Team != "" && a.Team == team
}

// TicketScope is what policy needs to know about a ticket beyond its own row
type TicketScope struct {
	CreatorTeam string
	// OtherCandidates is true when an active user other than the creator
	// could accept the ticket.
	OtherCandidates bool
}

// CanSteward reports whether the actor may drive an accepted ticket:
// its acceptor, an admin, or the manager of the creator's team.
func CanSteward(t *Ticket, actor Actor, scope TicketScope) bool {
	return t.AcceptedBy(actor.ID) || actor.IsAdmin() || actor.ManagesTeam(scope.CreatorTeam)
}

// CanComment reports whether the actor may comment on the ticket
func CanComment(t *Ticket, actor Actor, scope TicketScope) bool {
	return t.IsParticipant(actor.ID) || actor.IsAdmin() || actor.ManagesTeam(scope.CreatorTeam)
}

// CanRemoveAttachment reports whether the actor may soft-delete the attachment
func CanRemoveAttachment(a *Attachment, actor Actor, scope TicketScope) bool {
	return a.UploaderID == actor.ID || actor.IsAdmin() || actor.ManagesTeam(scope.CreatorTeam)
}

// CommentDraft is a comment a transition asks to append
type CommentDraft struct {
	Kind CommentKind
	Text string
}

// TransitionInput describes a requested status change
type TransitionInput struct {
	Actor Actor
	To    TicketStatus
	Text  string
	Scope TicketScope
	Now   time.Time
}

// TransitionResult describes what an applied transition requires of the caller
type TransitionResult struct {
	From     TicketStatus
	To       TicketStatus
	Event    EventKind
	Comment  *CommentDraft
	Actions  []ActivityAction
	Override bool
	Reason   string
}

// Transition validates a status change against the lifecycle rules and, on
// success, applies it to t. On error t is left untouched.
func Transition(t *Ticket, in TransitionInput) (*TransitionResult, error) {
	if !in.To.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.To)
	}
	from, to := t.Status, in.To
	if from == to {
		return nil, fmt.Errorf("%w: ticket %s is already %s", ErrIllegalTransition, t.TicketNumber, to)
	}

	text := strings.TrimSpace(in.Text)
	actor := in.Actor
	isCreator := t.CreatorID == actor.ID
	res := &TransitionResult{From: from, To: to, Event: EventStatusChanged, Actions: []ActivityAction{ActionTransitioned}}

	switch {
	case from == StatusNew && to == StatusInProgress:
		if isCreator && in.Scope.OtherCandidates && !actor.IsAdmin() {
			return nil, fmt.Errorf("%w: creator may only accept when no other user is available", ErrPermissionDenied)
		}
		res.Event = EventAssigned
		res.Comment = &CommentDraft{Kind: CommentKindStatusChange, Text: orDefault(text, AcceptedCommentText)}
		if isCreator {
			res.Actions = append(res.Actions, ActionSelfAccepted)
		}

	case to == StatusNeedsInfo:
		if from != StatusInProgress {
			return nil, fmt.Errorf("%w: %s -> %s, needs info is only reachable from in progress", ErrIllegalTransition, from, to)
		}
		if !CanSteward(t, actor, in.Scope) {
			return nil, ErrPermissionDenied
		}
		if text == "" {
			return nil, ErrMissingInfoRequestText
		}
		res.Event = EventNeedsInfoRequested
		res.Comment = &CommentDraft{Kind: CommentKindInfoRequest, Text: text}

	case from == StatusInProgress && to == StatusCompleted:
		if !CanSteward(t, actor, in.Scope) {
			return nil, ErrPermissionDenied
		}
		if text != "" {
			res.Comment = &CommentDraft{Kind: CommentKindNote, Text: text}
		}

	case from == StatusNeedsInfo && to == StatusInProgress:
		if !isCreator && !CanSteward(t, actor, in.Scope) {
			return nil, ErrPermissionDenied
		}
		if text != "" {
			res.Comment = &CommentDraft{Kind: CommentKindNote, Text: text}
		}

	case from == StatusCompleted && to == StatusInProgress:
		if !actor.IsAdmin() {
			return nil, fmt.Errorf("%w: only an admin may reopen a completed ticket", ErrIllegalTransition)
		}
		res.Comment = &CommentDraft{Kind: CommentKindStatusChange, Text: orDefault(text, ReopenedCommentText)}
		res.Actions = append(res.Actions, ActionReopened)

	default:
		if !actor.IsAdmin() {
			return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
		}
		if text == "" {
			return nil, ErrMissingOverrideReason
		}
		res.Override = true
		res.Reason = text
		res.Comment = &CommentDraft{Kind: CommentKindStatusChange, Text: text}
		res.Actions = append(res.Actions, ActionAdminOverride)
	}

	next, err := applyStatus(*t, actor, to, in.Now)
	if err != nil {
		return nil, err
	}
	*t = next
	return res, nil
}

// applyStatus sets the timing and assignment fields so that the invariants
// tying status to acceptor/started_at/completed_at hold for the new status.
func applyStatus(t Ticket, actor Actor, to TicketStatus, now time.Time) (Ticket, error) {
	if now.Before(t.CreatedAt) {
		return t, fmt.Errorf("%w: now %s precedes creation %s", ErrClockRegression, now.Format(time.RFC3339Nano), t.CreatedAt.Format(time.RFC3339Nano))
	}

	switch to {
	case StatusNew:
		t.AcceptorID = nil
		t.StartedAt = nil
		t.CompletedAt = nil
		t.ResponseTimeMs = nil
		t.WorkTimeMs = nil

	case StatusInProgress, StatusNeedsInfo:
		if t.AcceptorID == nil {
			id := actor.ID
			t.AcceptorID = &id
		}
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
		t.CompletedAt = nil
		t.ResponseTimeMs = nil
		t.WorkTimeMs = nil

	case StatusCompleted:
		if t.AcceptorID == nil {
			id := actor.ID
			t.AcceptorID = &id
		}
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
		response := DurationMs(t.CreatedAt, now)
		work := DurationMs(*t.StartedAt, now)
		if response < 0 || work < 0 {
			return t, fmt.Errorf("%w: negative duration (response %dms, work %dms)", ErrClockRegression, response, work)
		}
		completed := now
		t.CompletedAt = &completed
		t.ResponseTimeMs = &response
		t.WorkTimeMs = &work
	}

	t.Status = to
	t.UpdatedAt = now
	return t, nil
}

// ReassignInput describes an admin reassignment of an accepted ticket
type ReassignInput struct {
	Actor    Actor
	Acceptor uuid.UUID
	Reason   string
	Now      time.Time
}

// ReassignResult carries the displaced acceptor
type ReassignResult struct {
	Previous *uuid.UUID
	Comment  CommentDraft
}

// Reassign moves an accepted ticket to a different acceptor. Admin only.
func Reassign(t *Ticket, in ReassignInput) (*ReassignResult, error) {
	if !in.Actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrMissingOverrideReason
	}
	if t.Status == StatusNew || t.AcceptorID == nil {
		return nil, fmt.Errorf("%w: ticket %s has not been accepted", ErrIllegalTransition, t.TicketNumber)
	}
	if *t.AcceptorID == in.Acceptor {
		return nil, ErrSameAcceptor
	}
	if in.Now.Before(t.UpdatedAt) {
		return nil, fmt.Errorf("%w: now precedes last update", ErrClockRegression)
	}

	prev := *t.AcceptorID
	next := in.Acceptor
	t.AcceptorID = &next
	t.UpdatedAt = in.Now
	return &ReassignResult{Previous: &prev, Comment: CommentDraft{Kind: CommentKindStatusChange, Text: reason}}, nil
}

// DurationMs returns to-from in signed whole milliseconds
func DurationMs(from, to time.Time) int64 {
	return to.Sub(from).Milliseconds()
}

// CheckInvariants reports the first status invariant the ticket violates.
// Used by tests and by the admin override path as a final guard.
func CheckInvariants(t *Ticket) error {
	switch t.Status {
	case StatusNew:
		if t.AcceptorID != nil || t.StartedAt != nil || t.CompletedAt != nil {
			return fmt.Errorf("%w: new ticket %s carries assignment or timing", ErrInternal, t.TicketNumber)
		}
	case StatusInProgress, StatusNeedsInfo:
		if t.AcceptorID == nil || t.StartedAt == nil || t.CompletedAt != nil {
			return fmt.Errorf("%w: %s ticket %s has inconsistent assignment or timing", ErrInternal, t.Status, t.TicketNumber)
		}
	case StatusCompleted:
		if t.AcceptorID == nil || t.StartedAt == nil || t.CompletedAt == nil || t.ResponseTimeMs == nil || t.WorkTimeMs == nil {
			return fmt.Errorf("%w: completed ticket %s is missing timing", ErrInternal, t.TicketNumber)
		}
		if *t.ResponseTimeMs < 0 || *t.WorkTimeMs < 0 {
			return fmt.Errorf("%w: completed ticket %s has negative durations", ErrInternal, t.TicketNumber)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInternal, t.Status)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
