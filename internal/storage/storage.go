package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"go.uber.org/zap"
)

// ErrBlobNotFound is returned when a key has no blob behind it
var ErrBlobNotFound = fmt.Errorf("blob %w", domain.ErrNotFound)

// BlobInfo describes a stored blob for the orphan sweep
type BlobInfo struct {
	Key      string
	Size     int64
	Modified time.Time
}

// Storage is a content-addressed blob store. Keys are the lowercase hex
// SHA-256 of the content, so putting the same bytes twice yields one blob.
type Storage interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (BlobInfo, error)
	URL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]BlobInfo, error)
}

// NewStorage creates a new storage instance based on configuration.
// For local mode, files are stored on the local filesystem.
// For cloud/azure mode, files are stored in Azure Blob Storage.
func NewStorage(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "local":
		signer, err := NewSigner(cfg.URLSigningKey, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return NewLocalStorage(cfg.LocalBasePath, signer, logger)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// ContentKey returns the storage key for data
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidKey reports whether key has the shape of a content key
func ValidKey(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}
	for _, c := range key {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrBlobUnavailable, op, err)
}
