package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hitl-go/application/approval"
	"github.com/felixgeelhaar/hitl-go/infrastructure/config"
	"github.com/felixgeelhaar/hitl-go/infrastructure/dispatch"
	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
	"github.com/felixgeelhaar/hitl-go/infrastructure/notification"
	"github.com/felixgeelhaar/hitl-go/infrastructure/telemetry"
	"github.com/felixgeelhaar/hitl-go/interfaces/api"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	configPath string
	addr       string
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the approval callback server",
		Long: `Start the approval service: the HTTP callback gateway together with
the background expiry and retention sweeps.

Examples:
  # Run with defaults (badger store in ./data/tickets, port 8086)
  hitl serve

  # Run with a configuration file
  hitl serve -c config.yaml

  # Override the listen address
  hitl serve -c config.yaml --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address override")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
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

	metrics := telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())
	if err := metrics.Error(); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	mailer := notification.NewMailer(notification.MailerConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if mailer.DemoMode() {
		logging.Warn().Msg("no SMTP password configured, mailer in demo mode")
	}
	notifier := notification.NewApprovalNotifier(mailer, cfg.Server.BaseURL)

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		BaseURL:      cfg.Runtime.BaseURL,
		AppName:      cfg.Runtime.AppName,
		FunctionName: cfg.Runtime.FunctionName,
		Timeout:      cfg.Runtime.Timeout.Duration(),
	})

	svc, err := approval.NewService(store,
		approval.WithDispatcher(dispatcher),
		approval.WithNotifier(notifier),
		approval.WithMetrics(metrics),
		approval.WithConfig(approval.Config{
			PendingTTL:      cfg.Sweep.PendingTTL.Duration(),
			Retention:       cfg.Sweep.Retention.Duration(),
			SweepInterval:   cfg.Sweep.Interval.Duration(),
			DispatchTimeout: cfg.Runtime.Timeout.Duration(),
			AwaitTimeout:    approval.DefaultConfig().AwaitTimeout,
		}),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := api.New(api.Config{
		Service:      svc,
		Links:        notifier,
		Address:      cfg.Server.Addr,
		EnableCORS:   cfg.Server.EnableCORS,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	})

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go func() {
		if err := svc.Run(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().
				Add(logging.ErrorField(err)).
				Msg("sweeper stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintln(a.stdout, "shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadConfig loads the configuration file, or defaults when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.NewLoader().LoadFile(path)
}
