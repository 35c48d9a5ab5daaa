package service

import (
	"fmt"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

// Common service errors
var (
	// ErrUnauthorized is returned when no user context is available
	ErrUnauthorized = fmt.Errorf("%w: user context required", domain.ErrPermissionDenied)

	// ErrAdminRequired is returned for admin-only commands
	ErrAdminRequired = fmt.Errorf("%w: admin role required", domain.ErrPermissionDenied)

	ErrVehicleRequired    = domain.NewValidationError("vehicle", "Either vehicleId or vehicle is required")
	ErrEmptyDescription   = domain.NewValidationError("description", "This field is required")
	ErrEmptyComment       = domain.NewValidationError("text", "This field is required")
	ErrEmptyAttachment    = domain.NewValidationError("file", "File is empty")
	ErrAttachmentTooLarge = domain.NewValidationError("file", "File exceeds the upload limit")
	ErrNothingToMark      = domain.NewValidationError("ids", "Provide ids or set all")
	ErrInactiveAcceptor   = domain.NewValidationError("acceptorId", "User is not active")
)
