package service

import (
	"context"
	"strings"
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/auth"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/mapper"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
)

// UserService provisions users and their tokens for operators
type UserService struct {
	core   *Core
	tokens *auth.TokenService
	logger *zap.Logger
}

// NewUserService creates a new UserService instance
func NewUserService(core *Core, tokens *auth.TokenService, logger *zap.Logger) *UserService {
	return &UserService{core: core, tokens: tokens, logger: logger}
}

// Create adds an active user
func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserDTO, error) {
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:    strings.TrimSpace(req.Username),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        role,
		Team:        strings.TrimSpace(req.Team),
		Active:      true,
	}
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		return s.core.Users.WithTx(tx.DB()).Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))
	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// List returns every user
func (s *UserService) List(ctx context.Context) ([]domain.UserDTO, error) {
	users, err := s.core.Users.List(ctx)
	if err != nil {
		return nil, store.Classify(err)
	}
	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = mapper.ToUserDTO(&users[i])
	}
	return dtos, nil
}

// SetActive activates or deactivates a user by username. Deactivated users
// keep their tickets but can no longer authenticate.
func (s *UserService) SetActive(ctx context.Context, username string, active bool) error {
	return s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		users := s.core.Users.WithTx(tx.DB())
		user, err := users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		return users.SetActive(ctx, user.ID, active)
	})
}

// IssueToken mints a bearer token for an active user
func (s *UserService) IssueToken(ctx context.Context, username string, ttl time.Duration) (*domain.TokenDTO, error) {
	user, err := s.core.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, store.Classify(err)
	}
	if !user.Active {
		return nil, domain.ErrUserInactive
	}
	token, expires, err := s.tokens.Issue(user.ID, ttl)
	if err != nil {
		return nil, err
	}
	return &domain.TokenDTO{Token: token, ExpiresAt: mapper.FormatTime(expires)}, nil
}
