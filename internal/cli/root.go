package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/config"
	"github.com/roach88/cyclelog/internal/telemetry"
)

// RootOptions holds global flags for all commands, and the configuration
// and shared components resolved from them before a command runs.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	Database    string
	MetricsFile string

	Config  config.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cyclelog CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cyclelog",
		Short: "cyclelog - append-only event log for simulation cycles",
		Long: `An append-only, per-partition event log for simulation cycles.

Events are appended with gapless sequence numbers, completed partitions are
aggregated into immutable snapshots, and legacy match rows can be backfilled
into day partitions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(NewAppendCommand(opts))
	cmd.AddCommand(NewAppendBatchCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewLegacyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd, opts
}

// Execute runs the CLI with args and returns the process exit code.
// Command errors are reported on the configured output before returning.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRoot()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if ferr := opts.flushMetrics(); ferr != nil && err == nil {
		err = WrapExitError(ExitCommandError, "failed to write metrics", ferr)
	}

	code := GetExitCode(err)
	switch {
	case err == nil:
	case code == ExitFailure:
		// The command already reported its result.
		if opts.Format != "json" {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
	default:
		f := opts.formatter(stdout, stderr)
		_ = f.Error(ErrorCode(err), err.Error(), nil)
	}
	return code
}

// resolve validates global flags and loads configuration:
// defaults, then the config file, then CYCLELOG_* env, then flags.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.Database = o.Database
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = o.MetricsFile
	}
	o.Config = cfg

	level, _ := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
	}
	o.Logger = slog.New(handler)
	o.Metrics = telemetry.New(prometheus.NewRegistry())
	return nil
}

func (o *RootOptions) flushMetrics() error {
	if o.Metrics == nil || o.Config.MetricsFile == "" {
		return nil
	}
	return o.Metrics.WriteTextfile(o.Config.MetricsFile)
}

func (o *RootOptions) formatter(stdout, stderr io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    stdout,
		ErrWriter: stderr,
		Verbose:   o.Verbose,
	}
}

// output returns the formatter for a running command.
func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return o.formatter(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
