package service

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/mapper"
	"github.com/zmang24/si-opportunity-manager/internal/notify"
	"github.com/zmang24/si-opportunity-manager/internal/storage"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
)

// AttachmentService stores files for tickets. Bytes go to the blob store
// before any transaction opens; the metadata row is written only after the
// blob is durable.
type AttachmentService struct {
	core     *Core
	blobs    storage.Storage
	maxBytes int64
	urlTTL   time.Duration
	logger   *zap.Logger
}

// NewAttachmentService creates a new AttachmentService instance
func NewAttachmentService(core *Core, blobs storage.Storage, maxBytes int64, urlTTL time.Duration, logger *zap.Logger) *AttachmentService {
	return &AttachmentService{core: core, blobs: blobs, maxBytes: maxBytes, urlTTL: urlTTL, logger: logger}
}

// Upload stores data as an attachment of the ticket
func (s *AttachmentService) Upload(ctx context.Context, ticketID uuid.UUID, filename, contentType string, data []byte) (*domain.AttachmentDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	actor := userCtx.Actor()

	if len(data) == 0 {
		return nil, ErrEmptyAttachment
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrAttachmentTooLarge
	}
	filename = cleanFilename(filename)
	contentType = detectContentType(filename, contentType, data)

	// Fail fast before writing bytes nobody may reference
	if err := s.checkParticipant(ctx, ticketID, actor); err != nil {
		return nil, err
	}

	// Held until the row commits, so no sweep deletes the blob in between
	hash := storage.ContentKey(data)
	unlock, err := s.core.Store.LockKey(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer unlock()

	key, err := s.blobs.Put(ctx, data, contentType)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
		}
		return nil, err
	}

	var attachment *domain.Attachment
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		ticket, scope, err := s.core.lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if !domain.CanComment(ticket, actor, scope) {
			return domain.ErrPermissionDenied
		}

		now := s.core.Clock.Now()
		attachment = &domain.Attachment{
			TicketID:     ticket.ID,
			UploaderID:   actor.ID,
			OriginalName: filename,
			Size:         int64(len(data)),
			Mime:         contentType,
			ContentHash:  hash,
			StorageKey:   key,
			CreatedAt:    now,
		}
		if err := s.core.Attachments.WithTx(tx.DB()).Create(ctx, attachment); err != nil {
			return fmt.Errorf("failed to create attachment: %w", err)
		}
		ticket.UpdatedAt = now
		if err := s.core.Tickets.WithTx(tx.DB()).Touch(ctx, ticket); err != nil {
			return err
		}
		if err := s.core.audit(ctx, tx, actor.ID, &ticket.ID, domain.ActionAttachmentAdded, map[string]interface{}{
			"attachment_id": attachment.ID.String(),
			"name":          filename,
			"size":          attachment.Size,
		}, now); err != nil {
			return err
		}
		return s.core.emit(ctx, tx, notify.Event{
			Kind:   domain.EventAttachmentAdded,
			Ticket: ticket,
			Actor:  actor,
			Detail: filename,
		}, now)
	})
	if err != nil {
		// The blob stays; the orphan reap removes it if nothing references it.
		return nil, err
	}

	s.logger.Info("Attachment uploaded",
		zap.String("attachment_id", attachment.ID.String()),
		zap.String("ticket_id", ticketID.String()),
		zap.String("storage_key", key),
		zap.Int64("size", attachment.Size))

	return s.toDTO(ctx, attachment), nil
}

// Get returns attachment metadata with a fresh download link
func (s *AttachmentService) Get(ctx context.Context, ticketID, attachmentID uuid.UUID) (*domain.AttachmentDTO, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	var attachment *domain.Attachment
	err := s.core.Store.Retry(ctx, func(ctx context.Context) error {
		var err error
		attachment, err = s.core.Attachments.GetByID(ctx, attachmentID)
		return store.Classify(err)
	})
	if err != nil {
		return nil, err
	}
	if attachment.TicketID != ticketID || attachment.Deleted {
		return nil, domain.ErrAttachmentNotFound
	}
	return s.toDTO(ctx, attachment), nil
}

// Remove soft-deletes an attachment. The blob is collected later once no
// live attachment shares its content.
func (s *AttachmentService) Remove(ctx context.Context, ticketID, attachmentID uuid.UUID) error {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return err
	}
	actor := userCtx.Actor()

	return s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		ticket, scope, err := s.core.lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		attachments := s.core.Attachments.WithTx(tx.DB())
		attachment, err := attachments.GetByID(ctx, attachmentID)
		if err != nil {
			return err
		}
		if attachment.TicketID != ticket.ID || attachment.Deleted {
			return domain.ErrAttachmentNotFound
		}
		if !domain.CanRemoveAttachment(attachment, actor, scope) {
			return domain.ErrPermissionDenied
		}

		now := s.core.Clock.Now()
		if err := attachments.MarkDeleted(ctx, attachment.ID, now); err != nil {
			return fmt.Errorf("failed to delete attachment: %w", err)
		}
		ticket.UpdatedAt = now
		if err := s.core.Tickets.WithTx(tx.DB()).Touch(ctx, ticket); err != nil {
			return err
		}
		if err := s.core.audit(ctx, tx, actor.ID, &ticket.ID, domain.ActionAttachmentDeleted, map[string]interface{}{
			"attachment_id": attachment.ID.String(),
			"name":          attachment.OriginalName,
		}, now); err != nil {
			return err
		}
		s.core.changed(tx, ticket.ID)
		return nil
	})
}

func (s *AttachmentService) checkParticipant(ctx context.Context, ticketID uuid.UUID, actor domain.Actor) error {
	return s.core.Store.Retry(ctx, func(ctx context.Context) error {
		ticket, err := s.core.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return store.Classify(err)
		}
		scope, err := s.core.scopeOf(ctx, s.core.Users, ticket)
		if err != nil {
			return store.Classify(err)
		}
		if !domain.CanComment(ticket, actor, scope) {
			return domain.ErrPermissionDenied
		}
		return nil
	})
}

func (s *AttachmentService) toDTO(ctx context.Context, attachment *domain.Attachment) *domain.AttachmentDTO {
	dto := mapper.ToAttachmentDTO(attachment)
	url, expires, err := s.blobs.URL(ctx, attachment.StorageKey, s.urlTTL)
	if err != nil {
		s.logger.Warn("Failed to sign attachment url",
			zap.String("attachment_id", attachment.ID.String()),
			zap.Error(err))
		return &dto
	}
	dto.URL = url
	dto.URLExpiresAt = mapper.FormatTime(expires)
	return &dto
}

// cleanFilename drops any client path and control characters
func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

// detectContentType trusts the declared type, then the extension, then the bytes
func detectContentType(filename, declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return http.DetectContentType(data)
}
