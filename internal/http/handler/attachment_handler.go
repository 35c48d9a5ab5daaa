package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/zmang24/si-opportunity-manager/internal/service"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the file limit for form framing
const multipartOverhead = 1 << 20

// AttachmentHandler handles HTTP requests for ticket attachments
type AttachmentHandler struct {
	attachments *service.AttachmentService
	maxBytes    int64
	logger      *zap.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler instance
func NewAttachmentHandler(attachments *service.AttachmentService, maxBytes int64, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: attachments,
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

// Upload godoc
// @Summary Upload attachment
// @Description Attach a file to a ticket. Identical content is stored once.
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Ticket ID" format(uuid)
// @Param file formData file true "File to upload"
// @Success 201 {object} domain.AttachmentDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id}/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes + multipartOverhead); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %d bytes", h.maxBytes))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the service to reject it
	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	attachment, err := h.attachments.Upload(r.Context(), ticketID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(w, h.logger, err, "Failed to upload attachment")
		return
	}
	respondJSON(w, http.StatusCreated, attachment)
}

// GetByID godoc
// @Summary Get attachment
// @Description Attachment metadata with a short-lived download link
// @Tags Attachments
// @Produce json
// @Param id path string true "Ticket ID" format(uuid)
// @Param attachmentId path string true "Attachment ID" format(uuid)
// @Success 200 {object} domain.AttachmentDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id}/attachments/{attachmentId} [get]
func (h *AttachmentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	attachmentID, ok := uuidParam(w, r, "attachmentId")
	if !ok {
		return
	}

	attachment, err := h.attachments.Get(r.Context(), ticketID, attachmentID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to get attachment")
		return
	}
	respondJSON(w, http.StatusOK, attachment)
}

// Delete godoc
// @Summary Remove attachment
// @Description Soft-delete an attachment. Uploader, admin or the creator team's manager.
// @Tags Attachments
// @Param id path string true "Ticket ID" format(uuid)
// @Param attachmentId path string true "Attachment ID" format(uuid)
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /tickets/{id}/attachments/{attachmentId} [delete]
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	attachmentID, ok := uuidParam(w, r, "attachmentId")
	if !ok {
		return
	}

	if err := h.attachments.Remove(r.Context(), ticketID, attachmentID); err != nil {
		respondError(w, h.logger, err, "Failed to remove attachment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
