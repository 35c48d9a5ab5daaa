package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced by the core wraps exactly one of these,
// so callers can switch on the kind with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrCancelled           = errors.New("cancelled")
	ErrExternalUnavailable = errors.New("external service unavailable")
	ErrInternal            = errors.New("internal error")
)

// Lifecycle errors
var (
	ErrIllegalTransition      = fmt.Errorf("%w: illegal transition", ErrConflict)
	ErrClockRegression        = fmt.Errorf("%w: clock regression", ErrConflict)
	ErrMissingInfoRequestText = fmt.Errorf("%w: needs info requires a non-empty info request", ErrValidation)
	ErrMissingOverrideReason  = fmt.Errorf("%w: admin override requires a reason", ErrValidation)
	ErrInvalidStatus          = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrSameAcceptor           = fmt.Errorf("%w: ticket is already assigned to that user", ErrConflict)
)

// Repository errors
var (
	ErrTicketNotFound        = fmt.Errorf("ticket %w", ErrNotFound)
	ErrUserNotFound          = fmt.Errorf("user %w", ErrNotFound)
	ErrAttachmentNotFound    = fmt.Errorf("attachment %w", ErrNotFound)
	ErrNotificationNotFound  = fmt.Errorf("notification %w", ErrNotFound)
	ErrVehicleNotFound       = fmt.Errorf("vehicle %w", ErrNotFound)
	ErrAdasSystemNotFound    = fmt.Errorf("adas system %w", ErrNotFound)
	ErrTicketNumberTaken     = fmt.Errorf("%w: ticket number already allocated", ErrConflict)
	ErrTicketNumberExhausted = fmt.Errorf("%w: could not allocate a ticket number", ErrConflict)
	ErrConcurrentUpdate      = fmt.Errorf("%w: ticket was modified concurrently", ErrConflict)
	ErrCommentOutOfOrder     = fmt.Errorf("%w: comment older than the ticket's last comment", ErrConflict)
	ErrVehicleExists         = fmt.Errorf("%w: vehicle already exists", ErrConflict)
	ErrVehicleInUse          = fmt.Errorf("%w: vehicle is referenced by tickets", ErrConflict)
)

// Auth errors
var (
	ErrUserInactive    = fmt.Errorf("%w: user is inactive", ErrPermissionDenied)
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrPermissionDenied)
	ErrBlobUnavailable = fmt.Errorf("%w: blob store", ErrExternalUnavailable)
)

var kinds = []error{
	ErrValidation,
	ErrPermissionDenied,
	ErrNotFound,
	ErrConflict,
	ErrCancelled,
	ErrExternalUnavailable,
	ErrInternal,
}

// KindOf returns the kind sentinel wrapped by err, or ErrInternal when err
// carries none.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// ValidationError carries per-field messages
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d invalid field(s)", ErrValidation.Error(), len(e.Fields))
}

// Unwrap makes errors.Is(err, ErrValidation) hold
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a single-field validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// APIError represents a standardized API error with HTTP status code
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// ValidationMessages provides human-readable validation error messages
// These map validator tags to user-friendly messages
var ValidationMessages = map[string]string{
	"required": "This field is required",
	"email":    "Must be a valid email address",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
	"gte":      "Must be greater than or equal to minimum value",
	"lte":      "Must be less than or equal to maximum value",
	"uuid":     "Must be a valid UUID",
	"oneof":    "Must be one of the allowed values",
	"len":      "Must be exactly the specified length",
	"alphanum": "Must contain only alphanumeric characters",
	"dive":     "Contains an invalid element",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}

// Common error types for RFC 7807 Problem Details
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeBadRequest   = "bad_request"
	ErrorTypeConflict     = "conflict"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeTimeout      = "timeout"
	ErrorTypeUnavailable  = "service_unavailable"
	ErrorTypeInternal     = "internal_error"
)
