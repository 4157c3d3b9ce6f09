package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-insights/internal/repo"
	"github.com/platformbuilds/mirador-insights/internal/storage/sqlstore"
)

type migrateStatus struct {
	Driver  string `json:"driver"`
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var target int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply dataset store schema migrations",
		Long: `Migrates the sql dataset store schema. Without --version the newest
migration is applied; --version 0 rolls every migration back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, client *sqlstore.Client) error {
				if err := repo.Migrate(client, target, opts.newLogger()); err != nil {
					return err
				}
				return printStatus(cmd, opts, client)
			})
		},
	}
	cmd.Flags().IntVar(&target, "version", repo.LatestVersion, "Target schema version (-1 for latest)")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, client *sqlstore.Client) error {
				return printStatus(cmd, opts, client)
			})
		},
	})
	return cmd
}

// withStore opens only the dataset store; data sources are not needed to
// migrate.
func withStore(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, client *sqlstore.Client) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatasetStore.Backend != "sql" {
		return fmt.Errorf("dataset_store.backend is %q; migrations only apply to the sql backend", cfg.DatasetStore.Backend)
	}

	ctx, cancel := commandContext(cmd, opts)
	defer cancel()

	client, err := sqlstore.Open(ctx, cfg.DatasetStore.SQL)
	if err != nil {
		return fmt.Errorf("failed to open dataset store: %w", err)
	}
	defer client.Close()
	return fn(ctx, client)
}

func printStatus(cmd *cobra.Command, opts *rootOptions, client *sqlstore.Client) error {
	v, dirty, err := repo.SchemaVersion(client)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	status := migrateStatus{Driver: client.Driver, Version: v, Dirty: dirty}

	w := cmd.OutOrStdout()
	if opts.output == outputJSON {
		return writeJSON(w, status)
	}
	return renderTable(w, []string{"Driver", "Version", "Dirty"}, [][]string{
		{status.Driver, fmt.Sprint(status.Version), fmt.Sprint(status.Dirty)},
	})
}
