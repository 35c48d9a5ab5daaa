package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zmang24/si-opportunity-manager/internal/app"
	"github.com/zmang24/si-opportunity-manager/internal/jobs"
)

func newSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a background sweep once",
		Long:  `Run one of the scheduled sweeps immediately, outside the API server's scheduler.`,
	}

	for _, s := range []struct {
		use, short, job string
		run             func(ctx context.Context, m jobs.Maintenance) (int64, error)
	}{
		{
			use:   "retention",
			short: "Delete notifications past the retention period",
			job:   jobs.NotificationRetentionJobName,
			run: func(ctx context.Context, m jobs.Maintenance) (int64, error) {
				return m.SweepNotifications(ctx)
			},
		},
		{
			use:   "orphans",
			short: "Delete stored blobs no attachment refers to",
			job:   jobs.OrphanReapJobName,
			run: func(ctx context.Context, m jobs.Maintenance) (int64, error) {
				n, err := m.ReapOrphans(ctx)
				return int64(n), err
			},
		},
		{
			use:   "gc",
			short: "Collect blobs of deleted attachments",
			job:   jobs.AttachmentGCJobName,
			run: func(ctx context.Context, m jobs.Maintenance) (int64, error) {
				n, err := m.CollectAttachments(ctx)
				return int64(n), err
			},
		},
	} {
		s := s
		cmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), func(a *app.App) error {
					ctx, cancel := context.WithTimeout(cmd.Context(), jobs.DefaultSweepTimeout)
					defer cancel()
					n, err := s.run(ctx, a.Maintenance)
					if err != nil {
						return fmt.Errorf("%s: %w", s.job, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d affected\n", s.job, n)
					return nil
				})
			},
		})
	}
	return cmd
}
