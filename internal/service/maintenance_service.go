package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/storage"
	"github.com/zmang24/si-opportunity-manager/internal/store"
	"go.uber.org/zap"
)

// gcBatchSize bounds the storage keys handled per collection run
const gcBatchSize = 500

// MaintenanceService runs the background sweeps
type MaintenanceService struct {
	core      *Core
	blobs     storage.Storage
	orphanAge time.Duration
	logger    *zap.Logger
}

// NewMaintenanceService creates a new MaintenanceService instance
func NewMaintenanceService(core *Core, blobs storage.Storage, orphanAge time.Duration, logger *zap.Logger) *MaintenanceService {
	if orphanAge <= 0 {
		orphanAge = 24 * time.Hour
	}
	return &MaintenanceService{core: core, blobs: blobs, orphanAge: orphanAge, logger: logger}
}

// SweepNotifications deletes notifications past the retention horizon
func (s *MaintenanceService) SweepNotifications(ctx context.Context) (int64, error) {
	return s.core.Ledger.Sweep(ctx)
}

// ReapOrphans deletes blobs older than the orphan age that no attachment row
// references. These are left behind by uploads whose metadata transaction
// failed.
func (s *MaintenanceService) ReapOrphans(ctx context.Context) (int, error) {
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.core.Clock.Now().Add(-s.orphanAge)

	var keys []string
	for _, b := range blobs {
		if b.Modified.Before(cutoff) {
			keys = append(keys, b.Key)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var referenced map[string]bool
	err = s.core.Store.Retry(ctx, func(ctx context.Context) error {
		var err error
		referenced, err = s.core.Attachments.ReferencedKeys(ctx, keys)
		return store.Classify(err)
	})
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, key := range keys {
		if referenced[key] {
			continue
		}
		ok, err := s.reap(ctx, key, cutoff)
		if err != nil {
			if ctx.Err() != nil {
				return reaped, err
			}
			s.logger.Warn("Failed to reap orphan blob", zap.String("key", key), zap.Error(err))
			continue
		}
		if ok {
			reaped++
		}
	}

	s.logger.Info("Orphan blob reap finished",
		zap.Int("candidates", len(keys)),
		zap.Int("reaped", reaped))
	return reaped, nil
}

// CollectAttachments removes blobs whose attachments are all deleted and
// whose content no live attachment shares. A blob written within the orphan
// age is skipped since an upload of the same content may be in flight.
func (s *MaintenanceService) CollectAttachments(ctx context.Context) (int, error) {
	var keys []string
	err := s.core.Store.Retry(ctx, func(ctx context.Context) error {
		var err error
		keys, err = s.core.Attachments.PurgeCandidates(ctx, gcBatchSize)
		return store.Classify(err)
	})
	if err != nil {
		return 0, err
	}

	cutoff := s.core.Clock.Now().Add(-s.orphanAge)
	collected := 0
	for _, key := range keys {
		ok, err := s.collect(ctx, key, cutoff)
		if err != nil {
			if ctx.Err() != nil {
				return collected, err
			}
			s.logger.Warn("Failed to collect attachment blob", zap.String("key", key), zap.Error(err))
			continue
		}
		if ok {
			collected++
		}
	}

	s.logger.Info("Attachment collection finished",
		zap.Int("candidates", len(keys)),
		zap.Int("collected", collected))
	return collected, nil
}

// reap deletes one orphan candidate. The listing is stale by now, so the
// reference and age checks are repeated under the key lock.
func (s *MaintenanceService) reap(ctx context.Context, key string, cutoff time.Time) (bool, error) {
	unlock, err := s.core.Store.LockKey(ctx, key)
	if err != nil {
		return false, err
	}
	defer unlock()

	info, err := s.blobs.Stat(ctx, key)
	switch {
	case errors.Is(err, storage.ErrBlobNotFound):
		return false, nil
	case err != nil:
		return false, err
	case info.Modified.After(cutoff):
		return false, nil
	}

	referenced, err := s.core.Attachments.ReferencedKeys(ctx, []string{key})
	if err != nil {
		return false, store.Classify(err)
	}
	if referenced[key] {
		return false, nil
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// collect purges one candidate. Uploads of the same content wait on the key
// lock, so no row can start referencing the blob between the live check and
// the delete.
func (s *MaintenanceService) collect(ctx context.Context, key string, cutoff time.Time) (bool, error) {
	unlock, err := s.core.Store.LockKey(ctx, key)
	if err != nil {
		return false, err
	}
	defer unlock()

	info, err := s.blobs.Stat(ctx, key)
	switch {
	case errors.Is(err, storage.ErrBlobNotFound):
		// Already gone; only the rows need marking
	case err != nil:
		return false, err
	case info.Modified.After(cutoff):
		return false, nil
	}

	purge := false
	err = s.core.Store.InTx(ctx, func(tx *store.Tx) error {
		attachments := s.core.Attachments.WithTx(tx.DB())
		live, err := attachments.CountLiveByHash(ctx, key)
		if err != nil {
			return err
		}
		if live > 0 {
			return nil
		}
		if _, err := attachments.MarkPurged(ctx, key, s.core.Clock.Now()); err != nil {
			return fmt.Errorf("failed to mark purged: %w", err)
		}
		purge = true
		return nil
	})
	if err != nil || !purge {
		return false, err
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}
