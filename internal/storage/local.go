package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// LocalStorage implements Storage on the local filesystem. Blobs live at
// <base>/<k[0:2]>/<k[2:4]>/<k>; writes go through a temp file and rename.
type LocalStorage struct {
	basePath string
	signer   *Signer
	logger   *zap.Logger
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string, signer *Signer, logger *zap.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "tmp"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		basePath: basePath,
		signer:   signer,
		logger:   logger,
	}, nil
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.basePath, key[:2], key[2:4], key)
}

// Put writes data under its content key. Existing blobs are kept and their
// modification time refreshed, so the orphan sweep treats them as new.
func (s *LocalStorage) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := ContentKey(data)
	fullPath := s.path(key)

	if _, err := os.Stat(fullPath); err == nil {
		now := time.Now()
		if err := os.Chtimes(fullPath, now, now); err != nil {
			return "", unavailable("touch", err)
		}
		return key, nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", unavailable("mkdir", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(s.basePath, "tmp"), key+"-*")
	if err != nil {
		return "", unavailable("create", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", unavailable("write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", unavailable("close", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", unavailable("rename", err)
	}

	s.logger.Debug("Blob stored",
		zap.String("key", key),
		zap.String("contentType", contentType),
		zap.Int("size", len(data)))
	return key, nil
}

// Get opens the blob for reading
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if !ValidKey(key) {
		return nil, ErrBlobNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, unavailable("open", err)
	}
	return file, nil
}

// Exists reports whether the blob is stored
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, nil
	}
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, unavailable("stat", err)
}

// Stat returns size and modification time of a blob
func (s *LocalStorage) Stat(ctx context.Context, key string) (BlobInfo, error) {
	if !ValidKey(key) {
		return BlobInfo{}, ErrBlobNotFound
	}
	info, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return BlobInfo{}, ErrBlobNotFound
		}
		return BlobInfo{}, unavailable("stat", err)
	}
	return BlobInfo{Key: key, Size: info.Size(), Modified: info.ModTime().UTC()}, nil
}

// URL returns an HMAC-signed link served by the blob handler
func (s *LocalStorage) URL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl).UTC()
	return s.signer.SignedURL(key, expires), expires, nil
}

// Signer exposes the URL signer so the blob handler can verify requests
func (s *LocalStorage) Signer() *Signer {
	return s.signer
}

// Delete deletes a blob. Missing blobs are not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return nil
	}
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return unavailable("delete", err)
	}
	s.logger.Info("Blob deleted", zap.String("key", key))
	return nil
}

// List walks the store and returns every blob
func (s *LocalStorage) List(ctx context.Context) ([]BlobInfo, error) {
	var blobs []BlobInfo
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if !ValidKey(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, BlobInfo{Key: d.Name(), Size: info.Size(), Modified: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, unavailable("list", err)
	}
	return blobs, nil
}
