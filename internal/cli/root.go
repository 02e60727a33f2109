package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/conteo/internal/config"
	"github.com/roach88/conteo/internal/ir"
)

// RootOptions holds global flags for all commands.
//
// The flag fields are only the raw flag values; commands read the resolved
// settings from Config, which also folds in CONTEO_* variables and the
// config file.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	DB          string
	RedisAddr   string
	ConfigFile  string
	MetricsFile string

	Config config.Config
}

// NewRootCommand creates the root command for the conteo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "conteo",
		Short:   "conteo - stock count reconciliation",
		Version: ir.EngineVersion,
		Long: `Reconcile physical stock counts against an expected list.

Any number of counters scan items into an open count. Progress and
per-user totals are available at any time; finalizing freezes the
list of missing, over-counted and unexpected items.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "conteo.db", "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis-addr", "", "Redis address for the cross-process finalize lock")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./conteo.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus counters to this file on exit")

	// Add subcommands
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewAdjustCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewProgressCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewFinalizeCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve merges flags, environment and config file into opts.Config and
// installs the process logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.Root()); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Config = cfg
	o.Format = cfg.Format
	o.Verbose = cfg.Verbose

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Verbose))
	return nil
}

// newLogger writes text logs to w. Only warnings and errors are shown
// unless verbose is set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
