package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hitl-go/application/approval"
	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
)

// pendingOptions holds options for the pending command.
type pendingOptions struct {
	configPath string
	asJSON     bool
}

// newPendingCmd creates the pending command.
func (a *App) newPendingCmd() *cobra.Command {
	opts := &pendingOptions{}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List tickets awaiting a decision",
		Long: `List all approval tickets currently in the pending state.

Examples:
  hitl pending -c config.yaml

  # Machine-readable output
  hitl pending -c config.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listPending(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output as JSON")

	return cmd
}

func (a *App) listPending(cmd *cobra.Command, opts *pendingOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  "error",
		Format: cfg.Logging.Format,
	})

	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open ticket store: %w", err)
	}
	defer store.Close()

	svc, err := approval.NewService(store)
	if err != nil {
		return err
	}
	defer svc.Close()

	pending, err := svc.ListPending(cmd.Context())
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pending)
	}

	if len(pending) == 0 {
		fmt.Fprintln(a.stdout, "no pending approvals")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKET\tSUBJECT\tCONTACT\tKIND\tCREATED")
	for _, t := range pending {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.SubjectID, t.RequesterContact, t.Kind, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
