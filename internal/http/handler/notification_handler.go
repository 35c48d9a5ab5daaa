package handler

import (
	"net/http"
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/service"
	"go.uber.org/zap"
)

// DefaultNotificationLimit bounds a list call without an explicit limit
const DefaultNotificationLimit = 50

// NotificationHandler handles HTTP requests for notifications
type NotificationHandler struct {
	notificationService *service.NotificationService
	logger              *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler instance
func NewNotificationHandler(notificationService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// List godoc
// @Summary List notifications
// @Description Notifications for the current user inside the retention window, newest first. Pass since to reconcile after a reconnect; the page then holds the oldest rows at or after since.
// @Tags Notifications
// @Produce json
// @Param since query string false "Only notifications created at or after this instant (RFC 3339)"
// @Param limit query int false "Maximum rows (max 200)" default(50)
// @Success 200 {array} domain.NotificationDTO
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			respondValidationError(w, domain.NewValidationError("since", "Must be an RFC 3339 timestamp"))
			return
		}
		t = t.UTC()
		since = &t
	}

	limit := queryInt(r, "limit", DefaultNotificationLimit)
	if limit < 1 {
		limit = DefaultNotificationLimit
	}
	if limit > 200 {
		limit = 200
	}

	notifications, err := h.notificationService.List(r.Context(), since, limit)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list notifications")
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

// GetUnreadCount godoc
// @Summary Get unread notification count
// @Description Get the count of unread notifications for the current user
// @Tags Notifications
// @Produce json
// @Success 200 {object} domain.UnreadCountDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /notifications/count [get]
func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notificationService.UnreadCount(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to get unread count")
		return
	}
	respondJSON(w, http.StatusOK, count)
}

// MarkRead godoc
// @Summary Mark notifications as read
// @Description Mark the given notifications, or all of them, as read. Ids belonging to other users are ignored.
// @Tags Notifications
// @Accept json
// @Produce json
// @Param request body domain.MarkReadRequest true "Ids or all"
// @Success 200 {object} domain.MarkReadResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /notifications/mark_read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req domain.MarkReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.notificationService.MarkRead(r.Context(), &req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to mark notifications as read")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
