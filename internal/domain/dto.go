package domain

import (
	"github.com/google/uuid"
)

// DTOs for API responses

type VehicleRefDTO struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Year  int        `json:"year"`
	Make  string     `json:"make"`
	Model string     `json:"model"`
}

type TicketSystemDTO struct {
	Code             string   `json:"code"`
	AffectedPortions []string `json:"affectedPortions"`
}

type CommentDTO struct {
	ID            uuid.UUID   `json:"id"`
	Seq           int         `json:"seq"`
	AuthorID      uuid.UUID   `json:"authorId"`
	AuthorDisplay string      `json:"authorDisplay"`
	Text          string      `json:"text"`
	Kind          CommentKind `json:"kind"`
	CreatedAt     string      `json:"createdAt"` // ISO 8601
}

type AttachmentDTO struct {
	ID           uuid.UUID `json:"id"`
	TicketID     uuid.UUID `json:"ticketId"`
	UploaderID   uuid.UUID `json:"uploaderId"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	Mime         string    `json:"mime"`
	ContentHash  string    `json:"contentHash"`
	StorageKey   string    `json:"-"`
	CreatedAt    string    `json:"createdAt"` // ISO 8601
	Deleted      bool      `json:"deleted"`
	URL          string    `json:"url,omitempty"`
	URLExpiresAt string    `json:"urlExpiresAt,omitempty"` // ISO 8601
}

type TicketDTO struct {
	ID             uuid.UUID         `json:"id"`
	TicketNumber   string            `json:"ticketNumber"`
	CreatorID      uuid.UUID         `json:"creatorId"`
	AcceptorID     *uuid.UUID        `json:"acceptorId,omitempty"`
	Vehicle        VehicleRefDTO     `json:"vehicle"`
	VIN            *string           `json:"vin,omitempty"`
	Systems        []TicketSystemDTO `json:"systems"`
	Description    string            `json:"description"`
	Status         TicketStatus      `json:"status"`
	CreatedAt      string            `json:"createdAt"` // ISO 8601
	UpdatedAt      string            `json:"updatedAt"` // ISO 8601
	StartedAt      *string           `json:"startedAt,omitempty"`
	CompletedAt    *string           `json:"completedAt,omitempty"`
	ResponseTimeMs *int64            `json:"responseTimeMs,omitempty"`
	WorkTimeMs     *int64            `json:"workTimeMs,omitempty"`
	Version        int64             `json:"version"`
	Comments       []CommentDTO      `json:"comments,omitempty"`
	Attachments    []AttachmentDTO   `json:"attachments,omitempty"`
}

type NotificationDTO struct {
	ID        uuid.UUID        `json:"id"`
	TicketID  *uuid.UUID       `json:"ticketId,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt string           `json:"createdAt"` // ISO 8601
}

// UnreadCountDTO represents the count of unread notifications
type UnreadCountDTO struct {
	Count int64 `json:"count"`
}

// MarkReadResultDTO reports how many rows flipped to read
type MarkReadResultDTO struct {
	Updated int64 `json:"updated"`
}

type VehicleDTO struct {
	ID        uuid.UUID  `json:"id"`
	Year      int        `json:"year"`
	Make      string     `json:"make"`
	Model     string     `json:"model"`
	IsCustom  bool       `json:"isCustom"`
	CreatedBy *uuid.UUID `json:"createdBy,omitempty"`
}

type AdasSystemDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	Team        string    `json:"team,omitempty"`
	Active      bool      `json:"active"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// EventFrame is one message on the /events channel
type EventFrame struct {
	Type    string           `json:"type"`
	Payload *NotificationDTO `json:"payload,omitempty"`
	ID      *uuid.UUID       `json:"id,omitempty"`
}

// Event frame types
const (
	FrameNotification  = "notification"
	FrameTicketChanged = "ticket_changed"
)

// Request DTOs

type VehicleInput struct {
	Year  int    `json:"year" validate:"required,gte=1900,lte=2100"`
	Make  string `json:"make" validate:"required,max=100"`
	Model string `json:"model" validate:"required,max=100"`
}

type TicketSystemInput struct {
	Code             string   `json:"code" validate:"required,max=50"`
	AffectedPortions []string `json:"affectedPortions" validate:"max=6"`
}

type CreateTicketRequest struct {
	VehicleID   *uuid.UUID          `json:"vehicleId,omitempty"`
	Vehicle     *VehicleInput       `json:"vehicle,omitempty" validate:"omitempty"`
	VIN         *string             `json:"vin,omitempty" validate:"omitempty,len=17,alphanum"`
	Systems     []TicketSystemInput `json:"systems" validate:"required,min=1,dive"`
	Description string              `json:"description" validate:"required,max=10000"`
}

type TransitionRequest struct {
	To      string `json:"to" validate:"required"`
	Comment string `json:"comment,omitempty" validate:"max=10000"`
}

type ReassignRequest struct {
	AcceptorID uuid.UUID `json:"acceptorId" validate:"required"`
	Reason     string    `json:"reason" validate:"required,max=10000"`
}

type AddCommentRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

type MarkReadRequest struct {
	IDs []uuid.UUID `json:"ids,omitempty"`
	All bool        `json:"all,omitempty"`
}

type CreateVehicleRequest struct {
	Year  int    `json:"year" validate:"required,gte=1900,lte=2100"`
	Make  string `json:"make" validate:"required,max=100"`
	Model string `json:"model" validate:"required,max=100"`
}

type UpdateVehicleRequest struct {
	Year  int    `json:"year" validate:"required,gte=1900,lte=2100"`
	Make  string `json:"make" validate:"required,max=100"`
	Model string `json:"model" validate:"required,max=100"`
}

type CreateUserRequest struct {
	Username    string `json:"username" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	DisplayName string `json:"displayName" validate:"required,max=200"`
	Role        string `json:"role" validate:"required,oneof=user manager admin"`
	Team        string `json:"team" validate:"max=100"`
}

// TokenDTO is a minted bearer token
type TokenDTO struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"` // ISO 8601
}
