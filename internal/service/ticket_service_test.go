package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/repository"
	"github.com/zmang24/si-opportunity-manager/internal/service"
	"github.com/zmang24/si-opportunity-manager/internal/testutil"
)

// notificationKinds returns the kinds in user's ledger
func notificationKinds(t *testing.T, env *testutil.Env, user *domain.User) []domain.NotificationKind {
	t.Helper()
	rows, err := env.Notifications.List(testutil.As(user), nil, 0)
	require.NoError(t, err)
	kinds := make([]domain.NotificationKind, len(rows))
	for i := range rows {
		kinds[i] = rows[i].Kind
	}
	return kinds
}

func ticketsOf(t *testing.T, res *domain.PaginatedResponse) []domain.TicketDTO {
	t.Helper()
	data, ok := res.Data.([]domain.TicketDTO)
	require.True(t, ok, "unexpected page payload %T", res.Data)
	return data
}

func TestTicketService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "north")
	other := testutil.CreateUser(t, env.DB, "bob", domain.RoleUser, "south")

	t.Run("allocates sequential numbers per year", func(t *testing.T) {
		first := env.CreateTicket(t, creator, "Camry ACC calibration missing")
		second := env.CreateTicket(t, creator, "Camry ACC target distance")

		assert.Equal(t, "SI-2026-00001", first.TicketNumber)
		assert.Equal(t, "SI-2026-00002", second.TicketNumber)
		assert.Equal(t, domain.StatusNew, first.Status)
		assert.Nil(t, first.AcceptorID)
		assert.Nil(t, first.StartedAt)
		assert.Equal(t, int64(1), first.Version)
	})

	t.Run("reuses the custom vehicle it created", func(t *testing.T) {
		a := env.CreateTicket(t, creator, "first")
		req := testutil.TicketRequest("second")
		req.Vehicle.Make = "TOYOTA"
		req.Vehicle.Model = "camry"
		b, err := env.Tickets.Create(testutil.As(creator), req)
		require.NoError(t, err)

		require.NotNil(t, a.Vehicle.ID)
		require.NotNil(t, b.Vehicle.ID)
		assert.Equal(t, *a.Vehicle.ID, *b.Vehicle.ID)
		assert.Equal(t, "Toyota", b.Vehicle.Make)

		vehicles, err := env.Vehicles.List(testutil.As(creator), 2024, "toyota")
		require.NoError(t, err)
		require.Len(t, vehicles, 1)
		assert.True(t, vehicles[0].IsCustom)
	})

	t.Run("snapshots systems in submission order", func(t *testing.T) {
		req := testutil.TicketRequest("two systems")
		req.Systems = []domain.TicketSystemInput{
			{Code: "LKA", AffectedPortions: []string{"R&I", "Justification", "r&i"}},
			{Code: "ACC"},
		}
		vin := "1hgcm82633a004352"
		req.VIN = &vin

		ticket, err := env.Tickets.Create(testutil.As(creator), req)
		require.NoError(t, err)
		require.Len(t, ticket.Systems, 2)
		assert.Equal(t, "LKA", ticket.Systems[0].Code)
		assert.Equal(t, []string{"R&I", "Justification"}, ticket.Systems[0].AffectedPortions)
		assert.Equal(t, "ACC", ticket.Systems[1].Code)
		require.NotNil(t, ticket.VIN)
		assert.Equal(t, "1HGCM82633A004352", *ticket.VIN)
	})

	t.Run("strips markup from the description", func(t *testing.T) {
		ticket := env.CreateTicket(t, creator, "<script>alert(1)</script><b>Torque</b> &amp; angle")
		assert.Equal(t, "Torque & angle", ticket.Description)
	})

	t.Run("notifies everyone but the creator", func(t *testing.T) {
		assert.Empty(t, notificationKinds(t, env, creator))
		kinds := notificationKinds(t, env, other)
		require.NotEmpty(t, kinds)
		for _, k := range kinds {
			assert.Equal(t, domain.NotificationNewOpportunity, k)
		}
	})
}

func TestTicketService_Create_TeamScope(t *testing.T) {
	env := testutil.NewEnv(t, func(c *config.Config) { c.Notifications.Scope = "team" })
	creator := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "north")
	mate := testutil.CreateUser(t, env.DB, "carol", domain.RoleUser, "north")
	outsider := testutil.CreateUser(t, env.DB, "bob", domain.RoleUser, "south")

	env.CreateTicket(t, creator, "team scoped")

	assert.Equal(t, []domain.NotificationKind{domain.NotificationNewOpportunity}, notificationKinds(t, env, mate))
	assert.Empty(t, notificationKinds(t, env, outsider))
}

func TestTicketService_Create_Rejections(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "")
	ctx := testutil.As(creator)

	tests := []struct {
		name   string
		mutate func(*domain.CreateTicketRequest)
		want   error
	}{
		{
			name:   "empty description after sanitizing",
			mutate: func(r *domain.CreateTicketRequest) { r.Description = "<p>  </p>" },
			want:   service.ErrEmptyDescription,
		},
		{
			name:   "no vehicle",
			mutate: func(r *domain.CreateTicketRequest) { r.Vehicle = nil },
			want:   service.ErrVehicleRequired,
		},
		{
			name:   "no systems",
			mutate: func(r *domain.CreateTicketRequest) { r.Systems = nil },
			want:   domain.ErrValidation,
		},
		{
			name: "unknown system",
			mutate: func(r *domain.CreateTicketRequest) {
				r.Systems = []domain.TicketSystemInput{{Code: "XYZ"}}
			},
			want: domain.ErrValidation,
		},
		{
			name: "unknown affected portion",
			mutate: func(r *domain.CreateTicketRequest) {
				r.Systems[0].AffectedPortions = []string{"Wiring"}
			},
			want: domain.ErrValidation,
		},
		{
			name: "missing vehicle id",
			mutate: func(r *domain.CreateTicketRequest) {
				id := uuid.New()
				r.Vehicle = nil
				r.VehicleID = &id
			},
			want: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.TicketRequest("valid")
			tt.mutate(req)
			_, err := env.Tickets.Create(ctx, req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("nothing was written", func(t *testing.T) {
		ticket := env.CreateTicket(t, creator, "after rejections")
		assert.Equal(t, "SI-2026-00001", ticket.TicketNumber)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, err := env.Tickets.Create(context.Background(), testutil.TicketRequest("anonymous"))
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestTicketService_Create_NumberRollsOverWithYear(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "")

	env.CreateTicket(t, creator, "this year")
	env.Clock.Set(time.Date(2027, time.January, 1, 0, 0, 1, 0, time.UTC))
	next := env.CreateTicket(t, creator, "next year")

	assert.Equal(t, "SI-2027-00001", next.TicketNumber)
}

func TestTicketService_Create_ConcurrentNumbersStayDense(t *testing.T) {
	env := testutil.NewEnv(t)
	creators := []*domain.User{
		testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, ""),
		testutil.CreateUser(t, env.DB, "bob", domain.RoleUser, ""),
	}

	const n = 8
	numbers := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ticket, err := env.Tickets.Create(testutil.As(creators[i%len(creators)]), testutil.TicketRequest(fmt.Sprintf("ticket %d", i)))
			errs[i] = err
			if err == nil {
				numbers[i] = ticket.TicketNumber
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i], "create %d", i)
	}
	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("SI-2026-%05d", i+1)
	}
	assert.ElementsMatch(t, want, numbers)
}

func TestTicketService_GetByID(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "")
	acceptor := testutil.CreateUser(t, env.DB, "bob", domain.RoleUser, "")

	created := env.CreateTicket(t, creator, "needs torque specs")
	env.Clock.Advance(time.Minute)
	env.Transition(t, acceptor, created.ID, domain.StatusInProgress, "")

	ticket, err := env.Tickets.GetByID(testutil.As(creator), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.TicketNumber, ticket.TicketNumber)
	require.Len(t, ticket.Comments, 1)
	assert.Equal(t, 1, ticket.Comments[0].Seq)
	assert.Equal(t, domain.AcceptedCommentText, ticket.Comments[0].Text)
	assert.Equal(t, "Bob", ticket.Comments[0].AuthorDisplay)

	_, err = env.Tickets.GetByID(testutil.As(creator), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTicketService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "")
	bob := testutil.CreateUser(t, env.DB, "bob", domain.RoleUser, "")

	mine := env.CreateTicket(t, alice, "alice one")
	env.Clock.Advance(time.Minute)
	taken := env.CreateTicket(t, alice, "alice two")
	env.Clock.Advance(time.Minute)
	theirs := env.CreateTicket(t, bob, "bob one")
	env.Clock.Advance(time.Minute)
	env.Transition(t, bob, taken.ID, domain.StatusInProgress, "")

	t.Run("dashboard shows new tickets of others", func(t *testing.T) {
		res, err := env.Tickets.Query(testutil.As(alice), repository.TicketFilter{}, 1, 0)
		require.NoError(t, err)
		got := ticketsOf(t, res)
		require.Len(t, got, 1)
		assert.Equal(t, theirs.ID, got[0].ID)

		res, err = env.Tickets.Query(testutil.As(bob), repository.TicketFilter{}, 1, 0)
		require.NoError(t, err)
		got = ticketsOf(t, res)
		require.Len(t, got, 1)
		assert.Equal(t, mine.ID, got[0].ID)
	})

	t.Run("created by me newest first", func(t *testing.T) {
		res, err := env.Tickets.Query(testutil.As(alice), repository.TicketFilter{Flag: repository.FlagCreatedByMe}, 1, 10)
		require.NoError(t, err)
		got := ticketsOf(t, res)
		require.Len(t, got, 2)
		assert.Equal(t, taken.ID, got[0].ID)
		assert.Equal(t, mine.ID, got[1].ID)
		assert.Empty(t, got[0].Comments, "summaries omit the comment log")
	})

	t.Run("assigned to me", func(t *testing.T) {
		res, err := env.Tickets.Query(testutil.As(bob), repository.TicketFilter{Flag: repository.FlagAssignedToMe}, 1, 10)
		require.NoError(t, err)
		got := ticketsOf(t, res)
		require.Len(t, got, 1)
		assert.Equal(t, taken.ID, got[0].ID)
	})

	t.Run("unassigned", func(t *testing.T) {
		res, err := env.Tickets.Query(testutil.As(bob), repository.TicketFilter{Flag: repository.FlagUnassigned}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Total)
	})

	t.Run("status filter", func(t *testing.T) {
		res, err := env.Tickets.Query(testutil.As(bob), repository.TicketFilter{
			Statuses: []domain.TicketStatus{domain.StatusInProgress},
		}, 1, 10)
		require.NoError(t, err)
		got := ticketsOf(t, res)
		require.Len(t, got, 1)
		assert.Equal(t, taken.ID, got[0].ID)
	})

	t.Run("creator and date range", func(t *testing.T) {
		from := testutil.Epoch.Add(30 * time.Second)
		res, err := env.Tickets.Query(testutil.As(bob), repository.TicketFilter{
			CreatorID:   &alice.ID,
			CreatedFrom: &from,
		}, 1, 10)
		require.NoError(t, err)
		got := ticketsOf(t, res)
		require.Len(t, got, 1)
		assert.Equal(t, taken.ID, got[0].ID)
	})

	t.Run("paging", func(t *testing.T) {
		res, err := env.Tickets.Query(testutil.As(bob), repository.TicketFilter{
			Statuses: []domain.TicketStatus{domain.StatusNew, domain.StatusInProgress},
		}, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Total)
		assert.Equal(t, 2, res.TotalPages)
		got := ticketsOf(t, res)
		require.Len(t, got, 1)
		assert.Equal(t, mine.ID, got[0].ID)
	})

	t.Run("page size is capped", func(t *testing.T) {
		res, err := env.Tickets.Query(testutil.As(bob), repository.TicketFilter{Flag: repository.FlagUnassigned}, 0, 10_000)
		require.NoError(t, err)
		assert.Equal(t, service.MaxPageSize, res.PageSize)
		assert.Equal(t, 1, res.Page)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := env.Tickets.Query(testutil.As(bob), repository.TicketFilter{Flag: "mine"}, 1, 10)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestTicketService_Reassign(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "")
	first := testutil.CreateUser(t, env.DB, "bob", domain.RoleUser, "")
	second := testutil.CreateUser(t, env.DB, "carol", domain.RoleUser, "")
	admin := testutil.CreateUser(t, env.DB, "root", domain.RoleAdmin, "")

	ticket := env.CreateTicket(t, creator, "reassign me")
	env.Clock.Advance(time.Minute)
	env.Transition(t, first, ticket.ID, domain.StatusInProgress, "")
	env.Clock.Advance(time.Minute)

	t.Run("admin only", func(t *testing.T) {
		_, err := env.Tickets.Reassign(testutil.As(first), ticket.ID, &domain.ReassignRequest{AcceptorID: second.ID, Reason: "vacation"})
		assert.ErrorIs(t, err, service.ErrAdminRequired)
	})

	t.Run("reason required", func(t *testing.T) {
		_, err := env.Tickets.Reassign(testutil.As(admin), ticket.ID, &domain.ReassignRequest{AcceptorID: second.ID, Reason: "<br>"})
		assert.ErrorIs(t, err, domain.ErrMissingOverrideReason)
	})

	t.Run("same acceptor", func(t *testing.T) {
		_, err := env.Tickets.Reassign(testutil.As(admin), ticket.ID, &domain.ReassignRequest{AcceptorID: first.ID, Reason: "noop"})
		assert.ErrorIs(t, err, domain.ErrSameAcceptor)
	})

	t.Run("moves the ticket", func(t *testing.T) {
		before := notificationKinds(t, env, first)

		got, err := env.Tickets.Reassign(testutil.As(admin), ticket.ID, &domain.ReassignRequest{AcceptorID: second.ID, Reason: "Bob is on leave"})
		require.NoError(t, err)
		require.NotNil(t, got.AcceptorID)
		assert.Equal(t, second.ID, *got.AcceptorID)
		assert.Equal(t, domain.StatusInProgress, got.Status)
		require.NotEmpty(t, got.Comments)
		assert.Equal(t, "Bob is on leave", got.Comments[len(got.Comments)-1].Text)

		assert.Contains(t, notificationKinds(t, env, second), domain.NotificationAssigned)
		assert.Len(t, notificationKinds(t, env, first), len(before)+1, "previous acceptor is told")
		assert.Empty(t, notificationKinds(t, env, admin))
	})

	t.Run("inactive acceptor", func(t *testing.T) {
		require.NoError(t, env.Users.SetActive(context.Background(), "bob", false))
		_, err := env.Tickets.Reassign(testutil.As(admin), ticket.ID, &domain.ReassignRequest{AcceptorID: first.ID, Reason: "back"})
		assert.ErrorIs(t, err, service.ErrInactiveAcceptor)
	})

	t.Run("unaccepted ticket", func(t *testing.T) {
		fresh := env.CreateTicket(t, creator, "still new")
		_, err := env.Tickets.Reassign(testutil.As(admin), fresh.ID, &domain.ReassignRequest{AcceptorID: second.ID, Reason: "early"})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})
}

func TestTicketService_Delete(t *testing.T) {
	env := testutil.NewEnv(t)
	creator := testutil.CreateUser(t, env.DB, "alice", domain.RoleUser, "")
	other := testutil.CreateUser(t, env.DB, "bob", domain.RoleUser, "")
	admin := testutil.CreateUser(t, env.DB, "root", domain.RoleAdmin, "")

	ticket := env.CreateTicket(t, creator, "delete me")
	env.Transition(t, other, ticket.ID, domain.StatusInProgress, "")
	_, err := env.Attachments.Upload(testutil.As(other), ticket.ID, "photo.png", "image/png", []byte("png bytes"))
	require.NoError(t, err)

	t.Run("admin only", func(t *testing.T) {
		err := env.Tickets.Delete(testutil.As(creator), ticket.ID)
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("removes the ticket and its trail", func(t *testing.T) {
		require.NotEmpty(t, notificationKinds(t, env, creator))

		require.NoError(t, env.Tickets.Delete(testutil.As(admin), ticket.ID))

		_, err := env.Tickets.GetByID(testutil.As(admin), ticket.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, notificationKinds(t, env, creator))

		var comments int64
		require.NoError(t, env.DB.Model(&domain.Comment{}).Where("ticket_id = ?", ticket.ID).Count(&comments).Error)
		assert.Zero(t, comments)

		var live int64
		require.NoError(t, env.DB.Model(&domain.Attachment{}).Where("ticket_id = ? AND deleted = ?", ticket.ID, false).Count(&live).Error)
		assert.Zero(t, live)

		var activity []domain.ActivityLog
		require.NoError(t, env.DB.Where("ticket_id = ?", ticket.ID).Find(&activity).Error)
		require.Len(t, activity, 1)
		assert.Equal(t, domain.ActionDeleted, activity[0].Action)
	})

	t.Run("missing ticket", func(t *testing.T) {
		err := env.Tickets.Delete(testutil.As(admin), uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
