package handler

import (
	"net/http"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/service"
	"go.uber.org/zap"
)

// AuthHandler exposes the authenticated user and the user directory
type AuthHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(users *service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

// Me godoc
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := requireUser(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, domain.UserDTO{
		ID:          userCtx.UserID,
		Username:    userCtx.Username,
		Email:       userCtx.Email,
		DisplayName: userCtx.DisplayName,
		Role:        userCtx.Role,
		Team:        userCtx.Team,
		Active:      true,
	})
}

// ListUsers godoc
// @Summary List users
// @Description Directory used to pick acceptors when reassigning
// @Tags Auth
// @Produce json
// @Success 200 {array} domain.UserDTO
// @Security BearerAuth
// @Router /users [get]
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}
