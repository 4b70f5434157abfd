package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hitl-go/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	configPath string
	strict     bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a service configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Store backend selection and its required settings
  - Server, runtime and sweep settings
  - Environment variable references (in strict mode)

Examples:
  hitl validate -c config.yaml

  # Strict validation (fail on missing env vars)
  hitl validate -c config.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	loader := config.NewLoaderWithOptions(
		config.WithStrictEnv(opts.strict),
	)

	cfg, err := loader.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "%s is valid\n", opts.configPath)
	fmt.Fprintf(a.stdout, "  store backend: %s\n", cfg.Store.Backend)
	fmt.Fprintf(a.stdout, "  listen address: %s\n", cfg.Server.Addr)
	fmt.Fprintf(a.stdout, "  runtime: %s\n", cfg.Runtime.BaseURL)
	return nil
}
