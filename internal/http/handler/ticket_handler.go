package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/repository"
	"github.com/zmang24/si-opportunity-manager/internal/service"
	"go.uber.org/zap"
)

// TicketHandler handles HTTP requests for tickets and their lifecycle
type TicketHandler struct {
	tickets   *service.TicketService
	lifecycle *service.LifecycleService
	logger    *zap.Logger
}

// NewTicketHandler creates a new TicketHandler instance
func NewTicketHandler(tickets *service.TicketService, lifecycle *service.LifecycleService, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{
		tickets:   tickets,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Create godoc
// @Summary Create ticket
// @Description Submit a new documentation opportunity. The vehicle is given by id or by year/make/model; unknown vehicles are created as custom entries.
// @Tags Tickets
// @Accept json
// @Produce json
// @Param request body domain.CreateTicketRequest true "Ticket data"
// @Success 201 {object} domain.TicketDTO
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets [post]
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTicketRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.tickets.Create(r.Context(), &req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to create ticket")
		return
	}

	w.Header().Set("Location", "/api/v1/tickets/"+ticket.ID.String())
	respondJSON(w, http.StatusCreated, ticket)
}

// List godoc
// @Summary List tickets
// @Description Query tickets newest first. Without filters returns the dashboard view of new tickets created by other users.
// @Tags Tickets
// @Produce json
// @Param status query string false "Comma separated statuses" example(new,in_progress)
// @Param creatorId query string false "Creator user ID" format(uuid)
// @Param acceptorId query string false "Acceptor user ID" format(uuid)
// @Param createdFrom query string false "Created at or after (RFC 3339 or YYYY-MM-DD)"
// @Param createdTo query string false "Created before (RFC 3339 or YYYY-MM-DD)"
// @Param flag query string false "Viewer relative filter" Enums(assigned_to_me, created_by_me, unassigned)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.TicketDTO}
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets [get]
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTicketFilter(r)
	if err != nil {
		respondValidationError(w, err)
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", service.DefaultPageSize)

	result, err := h.tickets.Query(r.Context(), filter, page, pageSize)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list tickets")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get ticket
// @Description Ticket with its systems, comment log and live attachments
// @Tags Tickets
// @Produce json
// @Param id path string true "Ticket ID" format(uuid)
// @Success 200 {object} domain.TicketDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id} [get]
func (h *TicketHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	ticket, err := h.tickets.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to get ticket")
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

// Transition godoc
// @Summary Change ticket status
// @Description Apply a lifecycle transition. needs_info requires a comment; admin overrides require a reason.
// @Tags Tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID" format(uuid)
// @Param request body domain.TransitionRequest true "Target status and optional comment"
// @Success 200 {object} domain.TicketDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id}/transition [post]
func (h *TicketHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.lifecycle.Transition(r.Context(), id, &req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to transition ticket")
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

// AddComment godoc
// @Summary Comment on ticket
// @Tags Tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID" format(uuid)
// @Param request body domain.AddCommentRequest true "Comment"
// @Success 201 {object} domain.CommentDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id}/comments [post]
func (h *TicketHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.AddCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.lifecycle.AddComment(r.Context(), id, &req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to add comment")
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// Reassign godoc
// @Summary Reassign ticket
// @Description Move an accepted ticket to another active user. Admin only.
// @Tags Tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID" format(uuid)
// @Param request body domain.ReassignRequest true "New acceptor and reason"
// @Success 200 {object} domain.TicketDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id}/reassign [post]
func (h *TicketHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.ReassignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.tickets.Reassign(r.Context(), id, &req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to reassign ticket")
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

// Delete godoc
// @Summary Delete ticket
// @Description Remove a ticket with its comments and notifications. Attachment blobs are collected later. Admin only.
// @Tags Tickets
// @Param id path string true "Ticket ID" format(uuid)
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id} [delete]
func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.tickets.Delete(r.Context(), id); err != nil {
		respondError(w, h.logger, err, "Failed to delete ticket")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTicketFilter(r *http.Request) (repository.TicketFilter, error) {
	q := r.URL.Query()
	var filter repository.TicketFilter

	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := domain.ParseTicketStatus(part)
			if err != nil {
				return filter, domain.NewValidationError("status", err.Error())
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{
		{"creatorId", &filter.CreatorID},
		{"acceptorId", &filter.AcceptorID},
	} {
		if v := q.Get(p.name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return filter, domain.NewValidationError(p.name, "Must be a valid UUID")
			}
			*p.dst = &id
		}
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"createdFrom", &filter.CreatedFrom},
		{"createdTo", &filter.CreatedTo},
	} {
		if v := q.Get(p.name); v != "" {
			t, err := parseTimeParam(v)
			if err != nil {
				return filter, domain.NewValidationError(p.name, "Must be an RFC 3339 timestamp or YYYY-MM-DD date")
			}
			*p.dst = &t
		}
	}

	filter.Flag = repository.TicketFlag(q.Get("flag"))
	return filter, nil
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
