// Package cli implements insightsctl, the operator tool for inspecting
// dataset boundaries and default chart windows without going through the
// HTTP API.
package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-insights/internal/bootstrap"
	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/internal/version"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// defaultCommandTimeout leaves room for bootstrap plus a full default fetch
// timeout on the boundary queries.
const defaultCommandTimeout = 2 * time.Minute

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	output     string
	logLevel   string
	noColor    bool
	timeout    time.Duration
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configFile != "" {
		return config.LoadFromFile(o.configFile)
	}
	return config.Load()
}

func (o *rootOptions) newLogger() logger.Logger {
	if o.logLevel == "" {
		return logger.NewNop()
	}
	return logger.NewWithOptions(logger.Options{Level: o.logLevel, Format: logger.FormatConsole})
}

// buildApp loads configuration and wires the insights pipeline. The caller
// must Close the returned App.
func (o *rootOptions) buildApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.Build(ctx, cfg, o.newLogger(), bootstrap.Options{})
}

func (o *rootOptions) validate() error {
	switch o.output {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want %s or %s)", o.output, outputTable, outputJSON)
	}
}

// NewRootCommand builds the insightsctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "insightsctl",
		Short:         "Inspect alert insights, dataset boundaries and default chart windows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to configuration file (defaults to ./configs/config.yaml)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table or json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log to stderr at this level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultCommandTimeout, "Overall timeout for the command (keep above insights.fetch_timeout)")

	root.AddCommand(
		newWindowCommand(opts),
		newInsightsCommand(opts),
		newDatasetsCommand(opts),
		newMigrateCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "insightsctl\n")
			fmt.Fprintf(w, "  Version:    %s\n", version.Version)
			fmt.Fprintf(w, "  Commit:     %s\n", version.Commit)
			fmt.Fprintf(w, "  Built:      %s\n", version.BuildTime)
			fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command, opts *rootOptions) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.timeout)
}
