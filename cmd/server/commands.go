package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/phrazzld/graphgen-api/internal/job"
	"github.com/phrazzld/graphgen-api/internal/platform/postgres"
	"github.com/phrazzld/graphgen-api/internal/service/auth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP job server",
		Long: `Start the HTTP job server.

The server stops on SIGINT or SIGTERM. Running jobs are given
server.shutdown_timeout_seconds to finish before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if migrate {
				if !cfg.Database.AuditEnabled() {
					return errors.New("--migrate requires database.url")
				}
				if err := runMigration(ctx, cfg.Database.URL, "up", logger); err != nil {
					return err
				}
			}

			app, err := newApplication(ctx, cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			return app.startHTTPServer(ctx, app.setupRouter())
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending database migrations before serving")
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		configPath string
		outputDir  string
		sets       []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pipeline job and wait for it",
		Long: `Run one pipeline job through the job manager and wait for it to finish.

The final job record is printed as JSON. The command fails when the job fails.

Examples:
  graphgen run --config graphgen/configs/atomic_config.yaml
  graphgen run --config atomic_config.yaml --set generate.mode=multi_hop --set read.input_file=docs.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			app, err := newApplication(ctx, cfg, logger, appOptions{})
			if err != nil {
				return err
			}

			resp, runErr := runJob(ctx, app, job.CreateRequest{
				ConfigPath: configPath,
				OutputDir:  outputDir,
				Overrides:  overrides,
			})
			shutdownErr := app.shutdown(context.WithoutCancel(ctx))

			if resp != nil {
				out, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode job: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return errors.Join(runErr, shutdownErr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "pipeline YAML configuration (required)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory run directories are created under")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a configuration value, e.g. generate.mode=cot (repeatable)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// runJob submits req, waits for every execution to finish and returns the
// job's final state. A failed job is returned together with an error.
func runJob(ctx context.Context, app *application, req job.CreateRequest) (*job.Response, error) {
	submitted, err := app.jobs.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}
	if err := app.jobs.Wait(ctx); err != nil {
		return nil, fmt.Errorf("interrupted while waiting for job %s: %w", submitted.ID, err)
	}

	final, err := app.jobs.Get(submitted.ID)
	if err != nil {
		return nil, err
	}
	resp := final.Response()
	if final.Status == job.StatusFailed {
		return &resp, fmt.Errorf("job %s failed: %s", final.ID, final.Error)
	}
	return &resp, nil
}

// parseOverrides turns key.path=value pairs into a nested override map.
// Values are decoded as YAML scalars, so numbers and booleans keep their type.
func parseOverrides(pairs []string) (map[string]any, error) {
	overrides := map[string]any{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key.path=value", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", pair, err)
		}

		parts := strings.Split(key, ".")
		node := overrides
		for _, part := range parts[:len(parts)-1] {
			if part == "" {
				return nil, fmt.Errorf("invalid --set %q: empty key segment", pair)
			}
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		last := parts[len(parts)-1]
		if last == "" {
			return nil, fmt.Errorf("invalid --set %q: empty key segment", pair)
		}
		node[last] = value
	}
	return overrides, nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate " + strings.Join(postgres.MigrationCommands, "|"),
		Short:     "Manage the job event audit schema",
		Long:      "Run a goose migration command against database.url.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.Database.AuditEnabled() {
				return errors.New("database.url is not set")
			}
			return runMigration(cmd.Context(), cfg.Database.URL, args[0], logger)
		},
	}
}

// runMigration opens the database at url and runs one goose command on it.
func runMigration(ctx context.Context, url, command string, logger *slog.Logger) error {
	if !slices.Contains(postgres.MigrationCommands, command) {
		return fmt.Errorf("unknown migration command %q", command)
	}

	db, err := postgres.Open(ctx, url, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connection", "error", err)
		}
	}()

	if err := postgres.Migrate(ctx, db, command, logger); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.Auth.AuthEnabled() {
				return errors.New("auth.jwt_secret is not set")
			}

			svc, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "token subject, e.g. a user or service name (required)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
