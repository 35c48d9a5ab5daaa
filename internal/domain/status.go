package domain

import (
	"fmt"
	"strings"
)

// TicketStatus is the canonical lifecycle state of a ticket
type TicketStatus string

const (
	StatusNew        TicketStatus = "new"
	StatusInProgress TicketStatus = "in_progress"
	StatusCompleted  TicketStatus = "completed"
	StatusNeedsInfo  TicketStatus = "needs_info"
)

// IsValid checks if the TicketStatus is a valid enum value
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusNeedsInfo:
		return true
	}
	return false
}

// ParseTicketStatus canonicalizes external forms such as "In Progress",
// "needs-info" or "COMPLETED".
func ParseTicketStatus(raw string) (TicketStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	status := TicketStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// Role is a user's authorization level
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// IsValid checks if the Role is a valid enum value
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// ParseRole canonicalizes a role name
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, raw)
	}
	return r, nil
}

// CommentKind classifies a comment
type CommentKind string

const (
	CommentKindNote         CommentKind = "note"
	CommentKindStatusChange CommentKind = "status_change"
	CommentKindInfoRequest  CommentKind = "info_request"
)

// NotificationKind lets clients surface notifications distinctly
type NotificationKind string

const (
	NotificationNewOpportunity  NotificationKind = "new_opportunity"
	NotificationAssigned        NotificationKind = "assigned"
	NotificationStatusChanged   NotificationKind = "status_changed"
	NotificationCommentAdded    NotificationKind = "comment_added"
	NotificationInfoRequest     NotificationKind = "info_request"
	NotificationAttachmentAdded NotificationKind = "attachment_added"
)

// EventKind is a ticket event that may produce notifications
type EventKind string

const (
	EventTicketCreated      EventKind = "ticket_created"
	EventAssigned           EventKind = "assigned"
	EventStatusChanged      EventKind = "status_changed"
	EventNeedsInfoRequested EventKind = "needs_info_requested"
	EventCommentAdded       EventKind = "comment_added"
	EventAttachmentAdded    EventKind = "attachment_added"
	EventReassigned         EventKind = "reassigned"
)

// NotificationKind maps the event onto the ledger kind
func (e EventKind) NotificationKind() NotificationKind {
	switch e {
	case EventTicketCreated:
		return NotificationNewOpportunity
	case EventAssigned, EventReassigned:
		return NotificationAssigned
	case EventNeedsInfoRequested:
		return NotificationInfoRequest
	case EventCommentAdded:
		return NotificationCommentAdded
	case EventAttachmentAdded:
		return NotificationAttachmentAdded
	default:
		return NotificationStatusChanged
	}
}

// ActivityAction names an ActivityLog entry
type ActivityAction string

const (
	ActionCreated           ActivityAction = "created"
	ActionTransitioned      ActivityAction = "transitioned"
	ActionSelfAccepted      ActivityAction = "self_accepted"
	ActionAdminOverride     ActivityAction = "admin_override"
	ActionReopened          ActivityAction = "reopened"
	ActionReassigned        ActivityAction = "reassigned"
	ActionCommented         ActivityAction = "commented"
	ActionAttachmentAdded   ActivityAction = "attachment_added"
	ActionAttachmentDeleted ActivityAction = "attachment_deleted"
	ActionDeleted           ActivityAction = "deleted"
	ActionVehicleCreated    ActivityAction = "vehicle_created"
	ActionVehicleUpdated    ActivityAction = "vehicle_updated"
	ActionVehicleDeleted    ActivityAction = "vehicle_deleted"
)

// AffectedPortion is one documentation part an ADAS system entry can flag
type AffectedPortion string

const (
	PortionRemoveInstall     AffectedPortion = "R&I"
	PortionCalibration       AffectedPortion = "Calibration Procedure"
	PortionJustification     AffectedPortion = "Justification"
	PortionFullDocMissing    AffectedPortion = "Full Document Missing"
	PortionHighlightingIssue AffectedPortion = "Highlighting Issue"
	PortionNamingIssue       AffectedPortion = "Naming Issue"
)

var affectedPortions = map[string]AffectedPortion{
	strings.ToLower(string(PortionRemoveInstall)):     PortionRemoveInstall,
	strings.ToLower(string(PortionCalibration)):       PortionCalibration,
	strings.ToLower(string(PortionJustification)):     PortionJustification,
	strings.ToLower(string(PortionFullDocMissing)):    PortionFullDocMissing,
	strings.ToLower(string(PortionHighlightingIssue)): PortionHighlightingIssue,
	strings.ToLower(string(PortionNamingIssue)):       PortionNamingIssue,
}

// ParseAffectedPortion canonicalizes a portion name case-insensitively
func ParseAffectedPortion(raw string) (AffectedPortion, error) {
	if p, ok := affectedPortions[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown affected portion %q", ErrValidation, raw)
}

// VehicleLabel renders "year make model"
func VehicleLabel(year int, vehicleMake, model string) string {
	return fmt.Sprintf("%d %s %s", year, vehicleMake, model)
}
