package notify_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/clock"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/notify"
	"github.com/zmang24/si-opportunity-manager/internal/repository"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"github.com/zmang24/si-opportunity-manager/internal/testutil"
	"go.uber.org/zap"
)

type ledgerFixture struct {
	ledger *notify.Ledger
	store  *store.Store
	clock  *clock.Fake
	user   uuid.UUID
}

func newLedger(t *testing.T, cfg notify.LedgerConfig) *ledgerFixture {
	t.Helper()
	db := testutil.NewDB(t)
	st := store.New(db, zap.NewNop())
	clk := clock.NewFake(testutil.Epoch)
	user := testutil.CreateUser(t, db, "reader", domain.RoleUser, "")
	return &ledgerFixture{
		ledger: notify.NewLedger(st, repository.NewNotificationRepository(db), clk, cfg, zap.NewNop()),
		store:  st,
		clock:  clk,
		user:   user.ID,
	}
}

func (f *ledgerFixture) append(t *testing.T, ticketID *uuid.UUID, kind domain.NotificationKind, msg string) []domain.Notification {
	t.Helper()
	var out []domain.Notification
	err := f.store.InTx(context.Background(), func(tx *store.Tx) error {
		var err error
		out, err = f.ledger.Append(context.Background(), tx, []uuid.UUID{f.user}, ticketID, kind, msg, f.clock.Now())
		return err
	})
	require.NoError(t, err)
	return out
}

func TestLedger_AppendListAndRead(t *testing.T) {
	f := newLedger(t, notify.LedgerConfig{})
	ctx := context.Background()
	ticketID := uuid.New()

	first := f.append(t, &ticketID, domain.NotificationNewOpportunity, "first")
	f.clock.Advance(time.Second)
	f.append(t, &ticketID, domain.NotificationCommentAdded, "second")

	rows, err := f.ledger.List(ctx, f.user, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0].Message)
	assert.Equal(t, "first", rows[1].Message)

	count, err := f.ledger.UnreadCount(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	since := first[0].CreatedAt.Add(time.Millisecond)
	rows, err = f.ledger.List(ctx, f.user, &since, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0].Message)

	updated, err := f.ledger.MarkRead(ctx, f.user, []uuid.UUID{first[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	t.Run("mark read is idempotent", func(t *testing.T) {
		updated, err := f.ledger.MarkRead(ctx, f.user, []uuid.UUID{first[0].ID})
		require.NoError(t, err)
		assert.Zero(t, updated)
	})

	t.Run("other users cannot mark rows", func(t *testing.T) {
		updated, err := f.ledger.MarkRead(ctx, uuid.New(), []uuid.UUID{rows[0].ID})
		require.NoError(t, err)
		assert.Zero(t, updated)
	})

	updated, err = f.ledger.MarkAllRead(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	count, err = f.ledger.UnreadCount(ctx, f.user)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLedger_ListSince(t *testing.T) {
	ctx := context.Background()

	t.Run("rows sharing the since instant are kept", func(t *testing.T) {
		f := newLedger(t, notify.LedgerConfig{})
		seen := f.append(t, nil, domain.NotificationCommentAdded, "seen")
		late := f.append(t, nil, domain.NotificationCommentAdded, "late")

		since := seen[0].CreatedAt
		rows, err := f.ledger.List(ctx, f.user, &since, 0)
		require.NoError(t, err)
		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		assert.Contains(t, ids, late[0].ID)
	})

	t.Run("a backlog pages forward without gaps", func(t *testing.T) {
		f := newLedger(t, notify.LedgerConfig{})
		start := f.clock.Now()
		var want []string
		for i := 0; i < 7; i++ {
			f.clock.Advance(time.Second)
			msg := fmt.Sprintf("event %d", i)
			f.append(t, nil, domain.NotificationStatusChanged, msg)
			want = append(want, msg)
		}

		got := map[string]bool{}
		since := start
		for pages := 0; pages < 10; pages++ {
			rows, err := f.ledger.List(ctx, f.user, &since, 3)
			require.NoError(t, err)
			for i := 1; i < len(rows); i++ {
				assert.False(t, rows[i].CreatedAt.After(rows[i-1].CreatedAt), "page is newest first")
			}
			for _, r := range rows {
				got[r.Message] = true
			}
			if len(rows) < 3 {
				break
			}
			since = rows[0].CreatedAt
		}
		for _, msg := range want {
			assert.True(t, got[msg], "missing %s", msg)
		}
	})

	t.Run("without since the newest page is returned", func(t *testing.T) {
		f := newLedger(t, notify.LedgerConfig{})
		for i := 0; i < 4; i++ {
			f.clock.Advance(time.Second)
			f.append(t, nil, domain.NotificationStatusChanged, fmt.Sprintf("event %d", i))
		}
		rows, err := f.ledger.List(ctx, f.user, nil, 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "event 3", rows[0].Message)
		assert.Equal(t, "event 2", rows[1].Message)
	})
}

func TestLedger_Collapse(t *testing.T) {
	f := newLedger(t, notify.LedgerConfig{CollapseWindow: time.Minute})
	ctx := context.Background()
	ticketID := uuid.New()

	first := f.append(t, &ticketID, domain.NotificationCommentAdded, "one")
	_, err := f.ledger.MarkAllRead(ctx, f.user)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	second := f.append(t, &ticketID, domain.NotificationCommentAdded, "two")
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.False(t, second[0].Read)

	rows, err := f.ledger.List(ctx, f.user, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "two", rows[0].Message)
	assert.True(t, f.clock.Now().Equal(rows[0].CreatedAt))
	assert.False(t, rows[0].Read)

	t.Run("different kind is not collapsed", func(t *testing.T) {
		f.append(t, &ticketID, domain.NotificationStatusChanged, "moved")
		rows, err := f.ledger.List(ctx, f.user, nil, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("outside the window is not collapsed", func(t *testing.T) {
		f.clock.Advance(2 * time.Minute)
		f.append(t, &ticketID, domain.NotificationCommentAdded, "three")
		rows, err := f.ledger.List(ctx, f.user, nil, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})
}

func TestLedger_RetentionHorizon(t *testing.T) {
	f := newLedger(t, notify.LedgerConfig{Retention: 48 * time.Hour})
	ctx := context.Background()

	f.append(t, nil, domain.NotificationStatusChanged, "old")
	f.clock.Advance(47 * time.Hour)
	f.append(t, nil, domain.NotificationStatusChanged, "recent")

	count, err := f.ledger.UnreadCount(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	f.clock.Advance(2 * time.Hour)
	count, err = f.ledger.UnreadCount(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "rows past the horizon no longer count")

	rows, err := f.ledger.List(ctx, f.user, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "recent", rows[0].Message)

	deleted, err := f.ledger.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = f.ledger.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestLedger_ListLimit(t *testing.T) {
	f := newLedger(t, notify.LedgerConfig{})
	for i := 0; i < 3; i++ {
		f.append(t, nil, domain.NotificationStatusChanged, "row")
		f.clock.Advance(time.Millisecond)
	}

	rows, err := f.ledger.List(context.Background(), f.user, nil, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
