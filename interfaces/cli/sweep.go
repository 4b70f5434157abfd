package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hitl-go/application/approval"
	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
)

// sweepOptions holds options for the sweep command.
type sweepOptions struct {
	configPath string
	dryRun     bool
}

// newSweepCmd creates the sweep command.
func (a *App) newSweepCmd() *cobra.Command {
	opts := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the expiry and retention sweeps once",
		Long: `Time out tickets that have been pending longer than the configured TTL
and delete terminal tickets older than the retention window, then exit.

Useful when the store is operated from cron instead of a long-running
server, or to clean up after changing the retention settings.

Examples:
  hitl sweep -c config.yaml

  # Report what would be swept without changing anything
  hitl sweep -c config.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sweep(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Report without modifying the store")

	return cmd
}

func (a *App) sweep(cmd *cobra.Command, opts *sweepOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open ticket store: %w", err)
	}
	defer store.Close()

	svc, err := approval.NewService(store,
		approval.WithConfig(approval.Config{
			PendingTTL: cfg.Sweep.PendingTTL.Duration(),
			Retention:  cfg.Sweep.Retention.Duration(),
		}),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()

	if opts.dryRun {
		pending, err := svc.ListPending(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%d pending tickets, TTL %s, retention %s (dry run, nothing changed)\n",
			len(pending), cfg.Sweep.PendingTTL.Duration(), cfg.Sweep.Retention.Duration())
		return nil
	}

	expired, err := svc.ExpirePending(ctx)
	if err != nil {
		return fmt.Errorf("expiry sweep failed: %w", err)
	}
	purged, err := svc.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("retention sweep failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "expired %d pending tickets, purged %d terminal tickets\n", expired, purged)
	return nil
}
