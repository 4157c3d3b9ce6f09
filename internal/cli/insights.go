package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/utils/timeutil"
)

func newInsightsCommand(opts *rootOptions) *cobra.Command {
	var alertID, alertFile string

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Resolve dataset boundaries and the default window for an alert",
		Long: `Renders the alert's template, queries the dataset's data source for its
first and last event, and computes the default chart window. The alert is
either looked up in the catalog (--alert-id) or read from a YAML or JSON
file (--alert-file).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (alertID == "") == (alertFile == "") {
				return fmt.Errorf("exactly one of --alert-id or --alert-file is required")
			}

			ctx, cancel := commandContext(cmd, opts)
			defer cancel()

			app, err := opts.buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			var insights *models.AlertInsights
			if alertID != "" {
				insights, err = app.Provider.GetInsightsForAlert(ctx, alertID)
			} else {
				var alert *models.AlertSpec
				alert, err = readAlertFile(alertFile)
				if err != nil {
					return err
				}
				insights, err = app.Provider.GetInsights(ctx, alert)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.output == outputJSON {
				return writeJSON(w, insights)
			}

			loc, err := app.Config.DefaultLocation()
			if err != nil {
				return err
			}
			if t := insights.TemplateWithProperties; t != nil && t.Metadata.Timezone != "" {
				if tz, err := timeutil.ResolveLocation(t.Metadata.Timezone, loc); err == nil {
					loc = tz
				}
			}
			return writeInsightsTable(w, insights, loc, newPalette(opts.noColor))
		},
	}

	cmd.Flags().StringVar(&alertID, "alert-id", "", "ID of an alert saved in the catalog")
	cmd.Flags().StringVarP(&alertFile, "alert-file", "f", "", "YAML or JSON file holding an alert definition")
	return cmd
}

func readAlertFile(path string) (*models.AlertSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alert file: %w", err)
	}
	var alert models.AlertSpec
	if err := yaml.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("failed to parse alert file %s: %w", path, err)
	}
	return &alert, nil
}
