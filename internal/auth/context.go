package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	Username    string
	DisplayName string
	Email       string
	Role        domain.Role
	Team        string
}

type contextKey string

const userContextKey contextKey = "userContext"

// NewUserContext builds the request identity from a stored user
func NewUserContext(u *domain.User) *UserContext {
	return &UserContext{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		Team:        u.Team,
	}
}

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// Actor converts the identity into the lifecycle's actor
func (u *UserContext) Actor() domain.Actor {
	return domain.Actor{ID: u.UserID, DisplayName: u.DisplayName, Role: u.Role, Team: u.Team}
}

// HasRole checks if user has one of the given roles
func (u *UserContext) HasRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin checks if user is an admin
func (u *UserContext) IsAdmin() bool {
	return u.Role == domain.RoleAdmin
}
