package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-insights/internal/bootstrap"
	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/repo"
)

func newDatasetsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Manage dataset configurations",
	}
	cmd.AddCommand(
		newDatasetsListCommand(opts),
		newDatasetsImportCommand(opts),
		newDatasetsDeleteCommand(opts),
	)
	return cmd
}

// withApp builds the pipeline for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx, cancel := commandContext(cmd, opts)
	defer cancel()

	app, err := opts.buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func requireSQLStore(app *bootstrap.App) (*repo.DatasetRepo, error) {
	if app.DatasetRepo == nil {
		return nil, fmt.Errorf("dataset_store.backend is %q; datasets can only be changed in the sql backend (edit the catalog file instead)",
			app.Config.DatasetStore.Backend)
	}
	return app.DatasetRepo, nil
}

func newDatasetsListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets known to the configured dataset store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				var (
					datasets []models.DatasetConfig
					err      error
				)
				if app.DatasetRepo != nil {
					datasets, err = app.DatasetRepo.List(ctx)
					if err != nil {
						return err
					}
				} else {
					datasets = app.Catalog.Datasets()
				}

				w := cmd.OutOrStdout()
				if opts.output == outputJSON {
					if datasets == nil {
						datasets = []models.DatasetConfig{}
					}
					return writeJSON(w, datasets)
				}
				return writeDatasetsTable(w, datasets)
			})
		},
	}
}

func newDatasetsImportCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert the datasets of a catalog file into the sql dataset store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			catalog, err := repo.ParseCatalog(data)
			if err != nil {
				return err
			}
			if len(catalog.Datasets) == 0 {
				return fmt.Errorf("%s contains no datasets", file)
			}
			for i := range catalog.Datasets {
				if err := catalog.Datasets[i].Validate(); err != nil {
					return err
				}
			}

			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				store, err := requireSQLStore(app)
				if err != nil {
					return err
				}
				for i := range catalog.Datasets {
					if err := store.Upsert(ctx, &catalog.Datasets[i]); err != nil {
						return err
					}
					if cached, ok := app.Datasets.(*repo.CachedDatasetStore); ok {
						_ = cached.Invalidate(ctx, catalog.Datasets[i].Name)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d datasets from %s\n", len(catalog.Datasets), file)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Catalog YAML file whose datasets section is imported")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDatasetsDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a dataset from the sql dataset store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				store, err := requireSQLStore(app)
				if err != nil {
					return err
				}
				if err := store.Delete(ctx, args[0]); err != nil {
					return err
				}
				if cached, ok := app.Datasets.(*repo.CachedDatasetStore); ok {
					_ = cached.Invalidate(ctx, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted dataset %s\n", args[0])
				return nil
			})
		},
	}
}
