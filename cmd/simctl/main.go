// Command simctl is the operator CLI: migrations, sweeps, users and tokens,
// and reference data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zmang24/si-opportunity-manager/internal/app"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/logger"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(app.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "simctl",
		Short:         "SI Opportunity Manager operator tools",
		Long:          `Operate an SI Opportunity Manager deployment: apply migrations, run sweeps, provision users and tokens, and maintain ADAS reference data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return app.UsageError("%v", err)
	})

	root.AddCommand(
		newMigrateCommand(),
		newSweepCommand(),
		newTokenCommand(),
		newUserCommand(),
		newAdasCommand(),
	)
	return root
}

// exactArgs reports wrong argument counts as usage errors
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return app.UsageError("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// loadConfig builds the logger from the basic configuration, then resolves
// the full configuration including vault secrets.
func loadConfig(ctx context.Context) (*config.Config, *zap.Logger, error) {
	basicCfg, err := config.Load()
	if err != nil {
		return nil, nil, app.ConfigError(fmt.Errorf("failed to load config: %w", err))
	}
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return nil, nil, app.ConfigError(fmt.Errorf("failed to create logger: %w", err))
	}
	cfg, err := app.LoadConfig(ctx, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return cfg, log, nil
}

// withApp runs fn against a fully assembled application
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}
