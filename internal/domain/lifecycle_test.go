package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

var t0 = time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)

func actor(role domain.Role, team string) domain.Actor {
	return domain.Actor{ID: uuid.New(), DisplayName: "Actor", Role: role, Team: team}
}

func newTicket(creator uuid.UUID) *domain.Ticket {
	return &domain.Ticket{
		ID:           uuid.New(),
		TicketNumber: "SI-2026-00001",
		CreatorID:    creator,
		Status:       domain.StatusNew,
		CreatedAt:    t0,
		UpdatedAt:    t0,
		Version:      1,
	}
}

func accepted(t *testing.T, creator uuid.UUID, acceptor domain.Actor, at time.Time) *domain.Ticket {
	t.Helper()
	ticket := newTicket(creator)
	_, err := domain.Transition(ticket, domain.TransitionInput{
		Actor: acceptor,
		To:    domain.StatusInProgress,
		Scope: domain.TicketScope{OtherCandidates: true},
		Now:   at,
	})
	require.NoError(t, err)
	return ticket
}

func TestTransition_Accept(t *testing.T) {
	creator := uuid.New()
	acceptor := actor(domain.RoleUser, "")

	ticket := newTicket(creator)
	now := t0.Add(90 * time.Minute)
	res, err := domain.Transition(ticket, domain.TransitionInput{
		Actor: acceptor,
		To:    domain.StatusInProgress,
		Scope: domain.TicketScope{OtherCandidates: true},
		Now:   now,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, ticket.Status)
	assert.Equal(t, acceptor.ID, *ticket.AcceptorID)
	assert.Equal(t, now, *ticket.StartedAt)
	assert.Nil(t, ticket.CompletedAt)
	assert.Equal(t, now, ticket.UpdatedAt)
	assert.Equal(t, domain.EventAssigned, res.Event)
	require.NotNil(t, res.Comment)
	assert.Equal(t, domain.CommentKindStatusChange, res.Comment.Kind)
	assert.Equal(t, domain.AcceptedCommentText, res.Comment.Text)
	assert.NoError(t, domain.CheckInvariants(ticket))
}

func TestTransition_CreatorSelfAccept(t *testing.T) {
	creator := actor(domain.RoleUser, "")

	t.Run("refused while other users exist", func(t *testing.T) {
		ticket := newTicket(creator.ID)
		_, err := domain.Transition(ticket, domain.TransitionInput{
			Actor: creator,
			To:    domain.StatusInProgress,
			Scope: domain.TicketScope{OtherCandidates: true},
			Now:   t0.Add(time.Minute),
		})
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
		assert.Equal(t, domain.StatusNew, ticket.Status)
		assert.Nil(t, ticket.AcceptorID)
	})

	t.Run("allowed as the only user", func(t *testing.T) {
		ticket := newTicket(creator.ID)
		res, err := domain.Transition(ticket, domain.TransitionInput{
			Actor: creator,
			To:    domain.StatusInProgress,
			Now:   t0.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, creator.ID, *ticket.AcceptorID)
		assert.Contains(t, res.Actions, domain.ActionSelfAccepted)
	})
}

func TestTransition_Complete(t *testing.T) {
	creator := uuid.New()
	acceptor := actor(domain.RoleUser, "")
	ticket := accepted(t, creator, acceptor, t0.Add(time.Hour))

	done := t0.Add(3 * time.Hour)
	res, err := domain.Transition(ticket, domain.TransitionInput{
		Actor: acceptor,
		To:    domain.StatusCompleted,
		Now:   done,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, ticket.Status)
	assert.Equal(t, done, *ticket.CompletedAt)
	assert.Equal(t, int64(3*time.Hour/time.Millisecond), *ticket.ResponseTimeMs)
	assert.Equal(t, int64(2*time.Hour/time.Millisecond), *ticket.WorkTimeMs)
	assert.Nil(t, res.Comment)
	assert.Equal(t, domain.EventStatusChanged, res.Event)
	assert.NoError(t, domain.CheckInvariants(ticket))
}

func TestTransition_CompleteRequiresSteward(t *testing.T) {
	creator := uuid.New()
	ticket := accepted(t, creator, actor(domain.RoleUser, ""), t0.Add(time.Hour))

	_, err := domain.Transition(ticket, domain.TransitionInput{
		Actor: actor(domain.RoleUser, ""),
		To:    domain.StatusCompleted,
		Now:   t0.Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, domain.StatusInProgress, ticket.Status)

	t.Run("manager of creator team may complete", func(t *testing.T) {
		_, err := domain.Transition(ticket, domain.TransitionInput{
			Actor: actor(domain.RoleManager, "calibration"),
			To:    domain.StatusCompleted,
			Scope: domain.TicketScope{CreatorTeam: "calibration"},
			Now:   t0.Add(2 * time.Hour),
		})
		assert.NoError(t, err)
	})
}

func TestTransition_NeedsInfo(t *testing.T) {
	creator := actor(domain.RoleUser, "")
	acceptor := actor(domain.RoleUser, "")

	t.Run("requires text", func(t *testing.T) {
		ticket := accepted(t, creator.ID, acceptor, t0.Add(time.Hour))
		_, err := domain.Transition(ticket, domain.TransitionInput{
			Actor: acceptor,
			To:    domain.StatusNeedsInfo,
			Text:  "   ",
			Now:   t0.Add(2 * time.Hour),
		})
		assert.ErrorIs(t, err, domain.ErrMissingInfoRequestText)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("round trip keeps acceptor and start", func(t *testing.T) {
		ticket := accepted(t, creator.ID, acceptor, t0.Add(time.Hour))
		res, err := domain.Transition(ticket, domain.TransitionInput{
			Actor: acceptor,
			To:    domain.StatusNeedsInfo,
			Text:  "Which trim level?",
			Now:   t0.Add(2 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.EventNeedsInfoRequested, res.Event)
		assert.Equal(t, domain.CommentKindInfoRequest, res.Comment.Kind)
		assert.Equal(t, "Which trim level?", res.Comment.Text)

		_, err = domain.Transition(ticket, domain.TransitionInput{
			Actor: creator,
			To:    domain.StatusInProgress,
			Text:  "XLE trim",
			Now:   t0.Add(3 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, acceptor.ID, *ticket.AcceptorID)
		assert.Equal(t, t0.Add(time.Hour), *ticket.StartedAt)
	})

	t.Run("not reachable from new", func(t *testing.T) {
		ticket := newTicket(creator.ID)
		_, err := domain.Transition(ticket, domain.TransitionInput{
			Actor: acceptor,
			To:    domain.StatusNeedsInfo,
			Text:  "question",
			Now:   t0.Add(time.Hour),
		})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})
}

func TestTransition_Reopen(t *testing.T) {
	creator := uuid.New()
	acceptor := actor(domain.RoleUser, "")
	complete := func(t *testing.T) *domain.Ticket {
		ticket := accepted(t, creator, acceptor, t0.Add(time.Hour))
		_, err := domain.Transition(ticket, domain.TransitionInput{Actor: acceptor, To: domain.StatusCompleted, Now: t0.Add(2 * time.Hour)})
		require.NoError(t, err)
		return ticket
	}

	t.Run("acceptor cannot reopen", func(t *testing.T) {
		ticket := complete(t)
		_, err := domain.Transition(ticket, domain.TransitionInput{Actor: acceptor, To: domain.StatusInProgress, Now: t0.Add(3 * time.Hour)})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
		assert.Equal(t, domain.StatusCompleted, ticket.Status)
	})

	t.Run("admin reopen clears completion", func(t *testing.T) {
		ticket := complete(t)
		res, err := domain.Transition(ticket, domain.TransitionInput{Actor: actor(domain.RoleAdmin, ""), To: domain.StatusInProgress, Now: t0.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Nil(t, ticket.CompletedAt)
		assert.Nil(t, ticket.ResponseTimeMs)
		assert.Nil(t, ticket.WorkTimeMs)
		assert.Equal(t, acceptor.ID, *ticket.AcceptorID)
		assert.Equal(t, domain.ReopenedCommentText, res.Comment.Text)
		assert.Contains(t, res.Actions, domain.ActionReopened)
		assert.NoError(t, domain.CheckInvariants(ticket))
	})
}

func TestTransition_AdminOverride(t *testing.T) {
	creator := uuid.New()
	admin := actor(domain.RoleAdmin, "")

	t.Run("requires a reason", func(t *testing.T) {
		ticket := accepted(t, creator, actor(domain.RoleUser, ""), t0.Add(time.Hour))
		_, err := domain.Transition(ticket, domain.TransitionInput{Actor: admin, To: domain.StatusNew, Now: t0.Add(2 * time.Hour)})
		assert.ErrorIs(t, err, domain.ErrMissingOverrideReason)
	})

	t.Run("back to new clears assignment", func(t *testing.T) {
		ticket := accepted(t, creator, actor(domain.RoleUser, ""), t0.Add(time.Hour))
		res, err := domain.Transition(ticket, domain.TransitionInput{Actor: admin, To: domain.StatusNew, Text: "Wrong vehicle", Now: t0.Add(2 * time.Hour)})
		require.NoError(t, err)
		assert.True(t, res.Override)
		assert.Equal(t, "Wrong vehicle", res.Reason)
		assert.Nil(t, ticket.AcceptorID)
		assert.Nil(t, ticket.StartedAt)
		assert.NoError(t, domain.CheckInvariants(ticket))
	})

	t.Run("new straight to completed assigns the admin", func(t *testing.T) {
		ticket := newTicket(creator)
		now := t0.Add(time.Hour)
		_, err := domain.Transition(ticket, domain.TransitionInput{Actor: admin, To: domain.StatusCompleted, Text: "Duplicate", Now: now})
		require.NoError(t, err)
		assert.Equal(t, admin.ID, *ticket.AcceptorID)
		assert.Equal(t, int64(0), *ticket.WorkTimeMs)
		assert.NoError(t, domain.CheckInvariants(ticket))
	})

	t.Run("non admin gets illegal transition", func(t *testing.T) {
		ticket := newTicket(creator)
		_, err := domain.Transition(ticket, domain.TransitionInput{Actor: actor(domain.RoleUser, ""), To: domain.StatusCompleted, Text: "x", Now: t0.Add(time.Hour)})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})
}

func TestTransition_Rejections(t *testing.T) {
	creator := uuid.New()

	t.Run("same status", func(t *testing.T) {
		_, err := domain.Transition(newTicket(creator), domain.TransitionInput{Actor: actor(domain.RoleAdmin, ""), To: domain.StatusNew, Text: "x", Now: t0})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := domain.Transition(newTicket(creator), domain.TransitionInput{Actor: actor(domain.RoleAdmin, ""), To: "archived", Now: t0})
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("clock before creation", func(t *testing.T) {
		ticket := newTicket(creator)
		_, err := domain.Transition(ticket, domain.TransitionInput{Actor: actor(domain.RoleUser, ""), To: domain.StatusInProgress, Now: t0.Add(-time.Second)})
		assert.ErrorIs(t, err, domain.ErrClockRegression)
		assert.Equal(t, domain.StatusNew, ticket.Status)
		assert.Nil(t, ticket.AcceptorID)
	})
}

func TestReassign(t *testing.T) {
	creator := uuid.New()
	first := actor(domain.RoleUser, "")
	second := uuid.New()
	admin := actor(domain.RoleAdmin, "")

	t.Run("moves acceptor", func(t *testing.T) {
		ticket := accepted(t, creator, first, t0.Add(time.Hour))
		res, err := domain.Reassign(ticket, domain.ReassignInput{Actor: admin, Acceptor: second, Reason: "Vacation", Now: t0.Add(2 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, first.ID, *res.Previous)
		assert.Equal(t, second, *ticket.AcceptorID)
		assert.Equal(t, "Vacation", res.Comment.Text)
	})

	t.Run("admin only", func(t *testing.T) {
		ticket := accepted(t, creator, first, t0.Add(time.Hour))
		_, err := domain.Reassign(ticket, domain.ReassignInput{Actor: first, Acceptor: second, Reason: "x", Now: t0.Add(2 * time.Hour)})
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("same acceptor", func(t *testing.T) {
		ticket := accepted(t, creator, first, t0.Add(time.Hour))
		_, err := domain.Reassign(ticket, domain.ReassignInput{Actor: admin, Acceptor: first.ID, Reason: "x", Now: t0.Add(2 * time.Hour)})
		assert.ErrorIs(t, err, domain.ErrSameAcceptor)
	})

	t.Run("unaccepted ticket", func(t *testing.T) {
		_, err := domain.Reassign(newTicket(creator), domain.ReassignInput{Actor: admin, Acceptor: second, Reason: "x", Now: t0.Add(time.Hour)})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})
}

func TestPermissions(t *testing.T) {
	creator := uuid.New()
	acceptor := actor(domain.RoleUser, "")
	ticket := accepted(t, creator, acceptor, t0.Add(time.Hour))
	scope := domain.TicketScope{CreatorTeam: "north"}

	assert.True(t, domain.CanComment(ticket, domain.Actor{ID: creator}, scope))
	assert.True(t, domain.CanComment(ticket, acceptor, scope))
	assert.True(t, domain.CanComment(ticket, actor(domain.RoleAdmin, ""), scope))
	assert.True(t, domain.CanComment(ticket, actor(domain.RoleManager, "north"), scope))
	assert.False(t, domain.CanComment(ticket, actor(domain.RoleManager, "south"), scope))
	assert.False(t, domain.CanComment(ticket, actor(domain.RoleUser, "north"), scope))

	attachment := &domain.Attachment{UploaderID: acceptor.ID}
	assert.True(t, domain.CanRemoveAttachment(attachment, acceptor, scope))
	assert.False(t, domain.CanRemoveAttachment(attachment, domain.Actor{ID: creator}, scope))
}
