package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job names
const (
	NotificationRetentionJobName = "notification_retention"
	OrphanReapJobName            = "orphan_blob_reap"
	AttachmentGCJobName          = "attachment_gc"
)

// DefaultSweepTimeout bounds a single sweep run
const DefaultSweepTimeout = 10 * time.Minute

// Maintenance is the set of sweeps the scheduler drives
type Maintenance interface {
	SweepNotifications(ctx context.Context) (int64, error)
	ReapOrphans(ctx context.Context) (int, error)
	CollectAttachments(ctx context.Context) (int, error)
}

// Schedules holds the cron expression of each sweep; empty disables it
type Schedules struct {
	Retention string
	Orphans   string
	GC        string
}

// SweepJob runs one sweep with a timeout and logs its outcome
type SweepJob struct {
	name    string
	run     func(ctx context.Context) (int64, error)
	timeout time.Duration
	logger  *zap.Logger
}

// Run executes the sweep
func (j *SweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	affected, err := j.run(ctx)
	if err != nil {
		j.logger.Error("sweep failed",
			zap.String("job_name", j.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	j.logger.Info("sweep completed",
		zap.String("job_name", j.name),
		zap.Int64("affected", affected),
		zap.Duration("duration", time.Since(start)))
}

// NewSweepJobs builds the three sweeps over m
func NewSweepJobs(m Maintenance, timeout time.Duration, logger *zap.Logger) map[string]*SweepJob {
	if timeout <= 0 {
		timeout = DefaultSweepTimeout
	}
	return map[string]*SweepJob{
		NotificationRetentionJobName: {
			name:    NotificationRetentionJobName,
			run:     m.SweepNotifications,
			timeout: timeout,
			logger:  logger,
		},
		OrphanReapJobName: {
			name: OrphanReapJobName,
			run: func(ctx context.Context) (int64, error) {
				n, err := m.ReapOrphans(ctx)
				return int64(n), err
			},
			timeout: timeout,
			logger:  logger,
		},
		AttachmentGCJobName: {
			name: AttachmentGCJobName,
			run: func(ctx context.Context) (int64, error) {
				n, err := m.CollectAttachments(ctx)
				return int64(n), err
			},
			timeout: timeout,
			logger:  logger,
		},
	}
}

// RegisterSweeps adds every sweep with a non-empty schedule to s
func RegisterSweeps(s *Scheduler, m Maintenance, schedules Schedules, logger *zap.Logger) error {
	sweeps := NewSweepJobs(m, DefaultSweepTimeout, logger)
	for name, expr := range map[string]string{
		NotificationRetentionJobName: schedules.Retention,
		OrphanReapJobName:            schedules.Orphans,
		AttachmentGCJobName:          schedules.GC,
	} {
		if expr == "" {
			continue
		}
		if err := s.AddJob(name, expr, sweeps[name].Run); err != nil {
			return err
		}
	}
	return nil
}
