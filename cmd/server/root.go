package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/graphgen-api/internal/config"
	"github.com/phrazzld/graphgen-api/internal/platform/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "graphgen",
		Short: "GraphGen job server",
		Long: `graphgen runs GraphGen synthetic-data pipelines as background jobs.

Jobs are submitted over the HTTP API (graphgen serve) or run once from the
command line (graphgen run). Settings come from graphgen.yaml and GRAPHGEN_*
environment variables.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config-file", "f", "",
		"server settings file (default ./graphgen.yaml or ./config/graphgen.yaml)")

	cmd.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newMigrateCommand(opts),
		newTokenCommand(opts),
	)
	return cmd
}

// load reads the settings and sets up the process logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}
