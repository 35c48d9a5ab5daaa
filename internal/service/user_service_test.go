package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/testutil"
)

func TestUserService(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		user, err := env.Users.Create(ctx, &domain.CreateUserRequest{
			Username:    " jdoe ",
			Email:       "JDoe@Example.com",
			DisplayName: "Jane Doe",
			Role:        "Manager",
			Team:        "north",
		})
		require.NoError(t, err)
		assert.Equal(t, "jdoe", user.Username)
		assert.Equal(t, "jdoe@example.com", user.Email)
		assert.Equal(t, domain.RoleManager, user.Role)
		assert.True(t, user.Active)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := env.Users.Create(ctx, &domain.CreateUserRequest{
			Username: "jdoe", Email: "other@example.com", DisplayName: "Other", Role: "user",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := env.Users.Create(ctx, &domain.CreateUserRequest{
			Username: "x", Email: "x@example.com", DisplayName: "X", Role: "superuser",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("issue token", func(t *testing.T) {
		token, err := env.Users.IssueToken(ctx, "jdoe", time.Hour)
		require.NoError(t, err)
		assert.NotEmpty(t, token.Token)

		userID, err := env.Tokens.Identify(token.Token)
		require.NoError(t, err)
		users, err := env.Users.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, users[0].ID, userID)
	})

	t.Run("deactivated users get no token", func(t *testing.T) {
		require.NoError(t, env.Users.SetActive(ctx, "jdoe", false))
		_, err := env.Users.IssueToken(ctx, "jdoe", time.Hour)
		assert.ErrorIs(t, err, domain.ErrUserInactive)

		require.NoError(t, env.Users.SetActive(ctx, "jdoe", true))
		_, err = env.Users.IssueToken(ctx, "jdoe", time.Hour)
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.Users.IssueToken(ctx, "nobody", time.Hour)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = env.Users.SetActive(ctx, "nobody", false)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
