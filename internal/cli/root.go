package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hfmnet/wuhistory/internal/config"
	"github.com/hfmnet/wuhistory/internal/protein"
	"github.com/hfmnet/wuhistory/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	NoColor    bool

	// ProteinService overrides the configured metadata service (for testing).
	ProteinService protein.Service

	config *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the wuhistory CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wuhistory",
		Short: "Work unit history database",
		Long: `Inspect and maintain the work unit history database: the record of every
completed and failed work unit reported by monitored clients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.NoColor {
				color.NoColor = true
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.config = cfg
			opts.logger = newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to history database (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewRefreshCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// Execute runs the CLI with the process arguments and returns the exit code.
// Failures are reported on stderr, or as a JSON error response on stdout
// when --format json is in effect.
func Execute() int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	return execute(opts, cmd)
}

func execute(opts *RootOptions, cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		_ = f.Error(errorCode(err), err.Error(), nil)
	} else {
		f := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr(), Verbose: opts.Verbose}
		_ = f.Error(errorCode(err), err.Error(), nil)
	}
	return GetExitCode(err)
}

// errorCode classifies err for error responses.
func errorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrNotConnected), store.IsUpgradeError(err):
		return CodeUnavailable
	case GetExitCode(err) == ExitCommandError:
		return CodeInvalidArgument
	default:
		return CodeOperation
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
