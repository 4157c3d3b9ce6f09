package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-insights/internal/services"
	"github.com/platformbuilds/mirador-insights/internal/utils/timeutil"
)

func newWindowCommand(opts *rootOptions) *cobra.Command {
	var start, end, granularity, timezone string

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Compute the default chart window for a dataset range",
		Long: `Computes the default chart window for a dataset whose data spans
[--start, --end]. Both bounds accept epoch milliseconds or RFC 3339.`,
		Example: `  insightsctl window --start 2024-01-01T00:00:00Z --end 1706659199999 --granularity P1D`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startMs, err := timeutil.ParseInstant(start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			endMs, err := timeutil.ParseInstant(end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			if startMs > endMs {
				return fmt.Errorf("--start must not be after --end")
			}
			period, err := timeutil.ParsePeriod(granularity)
			if err != nil {
				return fmt.Errorf("invalid --granularity: %w", err)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.DefaultLocation()
			if err != nil {
				return err
			}

			window, err := services.NewDefaultWindowCalculator(loc).Compute(startMs, endMs, timezone, period)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.output == outputJSON {
				return writeJSON(w, window)
			}
			display, err := timeutil.ResolveLocation(window.Timezone, loc)
			if err != nil {
				display = time.UTC
			}
			return writeWindowTable(w, window, display)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First event time of the dataset (epoch millis or RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "Last event time of the dataset (epoch millis or RFC 3339)")
	cmd.Flags().StringVar(&granularity, "granularity", "", "Alert granularity as an ISO-8601 period, e.g. PT1H or P1D")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for bucket alignment (defaults to insights.default_timezone)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("granularity")
	return cmd
}
