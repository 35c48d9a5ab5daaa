package mapper

import (
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

// TimeFormat is ISO 8601 in UTC with millisecond precision
const TimeFormat = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeFormat
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

// ToTicketDTO converts Ticket to TicketDTO. Deleted attachments are left out.
func ToTicketDTO(ticket *domain.Ticket) domain.TicketDTO {
	dto := domain.TicketDTO{
		ID:           ticket.ID,
		TicketNumber: ticket.TicketNumber,
		CreatorID:    ticket.CreatorID,
		AcceptorID:   ticket.AcceptorID,
		Vehicle: domain.VehicleRefDTO{
			ID:    ticket.VehicleID,
			Year:  ticket.VehicleYear,
			Make:  ticket.VehicleMake,
			Model: ticket.VehicleModel,
		},
		VIN:            ticket.VIN,
		Systems:        make([]domain.TicketSystemDTO, 0, len(ticket.Systems)),
		Description:    ticket.Description,
		Status:         ticket.Status,
		CreatedAt:      FormatTime(ticket.CreatedAt),
		UpdatedAt:      FormatTime(ticket.UpdatedAt),
		StartedAt:      formatTimePtr(ticket.StartedAt),
		CompletedAt:    formatTimePtr(ticket.CompletedAt),
		ResponseTimeMs: ticket.ResponseTimeMs,
		WorkTimeMs:     ticket.WorkTimeMs,
		Version:        ticket.Version,
	}
	for _, s := range ticket.Systems {
		dto.Systems = append(dto.Systems, ToTicketSystemDTO(&s))
	}
	for _, c := range ticket.Comments {
		dto.Comments = append(dto.Comments, ToCommentDTO(&c))
	}
	for _, a := range ticket.Attachments {
		if a.Deleted {
			continue
		}
		dto.Attachments = append(dto.Attachments, ToAttachmentDTO(&a))
	}
	return dto
}

// ToTicketSummaryDTO converts Ticket to TicketDTO without comments or attachments
func ToTicketSummaryDTO(ticket *domain.Ticket) domain.TicketDTO {
	dto := ToTicketDTO(ticket)
	dto.Comments = nil
	dto.Attachments = nil
	return dto
}

// ToTicketSystemDTO converts TicketSystem to TicketSystemDTO
func ToTicketSystemDTO(system *domain.TicketSystem) domain.TicketSystemDTO {
	portions := []string(system.AffectedPortions)
	if portions == nil {
		portions = []string{}
	}
	return domain.TicketSystemDTO{
		Code:             system.SystemCode,
		AffectedPortions: portions,
	}
}

// ToCommentDTO converts Comment to CommentDTO
func ToCommentDTO(comment *domain.Comment) domain.CommentDTO {
	return domain.CommentDTO{
		ID:            comment.ID,
		Seq:           comment.Seq,
		AuthorID:      comment.AuthorID,
		AuthorDisplay: comment.AuthorDisplay,
		Text:          comment.Text,
		Kind:          comment.Kind,
		CreatedAt:     FormatTime(comment.CreatedAt),
	}
}

// ToAttachmentDTO converts Attachment to AttachmentDTO
func ToAttachmentDTO(attachment *domain.Attachment) domain.AttachmentDTO {
	return domain.AttachmentDTO{
		ID:           attachment.ID,
		TicketID:     attachment.TicketID,
		UploaderID:   attachment.UploaderID,
		OriginalName: attachment.OriginalName,
		Size:         attachment.Size,
		Mime:         attachment.Mime,
		ContentHash:  attachment.ContentHash,
		StorageKey:   attachment.StorageKey,
		CreatedAt:    FormatTime(attachment.CreatedAt),
		Deleted:      attachment.Deleted,
	}
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:        notification.ID,
		TicketID:  notification.TicketID,
		Kind:      notification.Kind,
		Message:   notification.Message,
		Read:      notification.Read,
		CreatedAt: FormatTime(notification.CreatedAt),
	}
}

// ToVehicleDTO converts Vehicle to VehicleDTO
func ToVehicleDTO(vehicle *domain.Vehicle) domain.VehicleDTO {
	return domain.VehicleDTO{
		ID:        vehicle.ID,
		Year:      vehicle.Year,
		Make:      vehicle.Make,
		Model:     vehicle.Model,
		IsCustom:  vehicle.IsCustom,
		CreatedBy: vehicle.CreatedBy,
	}
}

// ToAdasSystemDTO converts AdasSystem to AdasSystemDTO
func ToAdasSystemDTO(system *domain.AdasSystem) domain.AdasSystemDTO {
	return domain.AdasSystemDTO{
		Code:        system.Code,
		Name:        system.Name,
		Description: system.Description,
	}
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Team:        user.Team,
		Active:      user.Active,
	}
}

// TotalPages computes the page count for a paginated response
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
