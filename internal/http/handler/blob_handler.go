package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zmang24/si-opportunity-manager/internal/clock"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/storage"
	"go.uber.org/zap"
)

// BlobHandler serves locally stored blobs behind signed links
type BlobHandler struct {
	blobs  storage.Storage
	signer *storage.Signer
	clock  clock.Clock
	logger *zap.Logger
}

// NewBlobHandler creates a new BlobHandler instance
func NewBlobHandler(blobs storage.Storage, signer *storage.Signer, clk clock.Clock, logger *zap.Logger) *BlobHandler {
	return &BlobHandler{
		blobs:  blobs,
		signer: signer,
		clock:  clk,
		logger: logger,
	}
}

// Download godoc
// @Summary Download blob
// @Description Stream blob content. The link must carry a valid, unexpired signature.
// @Tags Attachments
// @Produce octet-stream
// @Param key path string true "Content key"
// @Param exp query int true "Expiry (unix seconds)"
// @Param sig query string true "Signature"
// @Success 200 {file} binary
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /blobs/{key} [get]
func (h *BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !storage.ValidKey(key) {
		respondWithError(w, http.StatusNotFound, "Blob not found")
		return
	}
	q := r.URL.Query()
	if err := h.signer.Verify(key, q.Get("exp"), q.Get("sig"), h.clock.Now()); err != nil {
		respondWithError(w, http.StatusForbidden, "Invalid or expired link")
		return
	}

	info, err := h.blobs.Stat(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Blob not found")
			return
		}
		respondError(w, h.logger, err, "Failed to read blob")
		return
	}

	reader, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		respondError(w, h.logger, err, "Failed to read blob")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("ETag", `"`+key+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Debug("blob stream interrupted", zap.String("key", key), zap.Error(err))
	}
}
