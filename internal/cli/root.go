package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rgraph/internal/config"
	"github.com/roach88/rgraph/internal/telemetry"
)

// RootOptions holds global flags for all commands and the state loaded
// from them before a command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config is the loaded configuration file, or config.Default().
	Config *config.Config

	// Logger writes to stderr at the configured level, or debug with
	// --verbose.
	Logger *slog.Logger

	providers *telemetry.Providers
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Execute runs the rgraph CLI with the process arguments. Telemetry is shut
// down whether or not the command succeeds.
func Execute(ctx context.Context) error {
	opts := &RootOptions{}
	return executeRoot(ctx, opts, newRootCommand(opts))
}

// executeRoot runs cmd and then releases what setup started. cobra skips
// PersistentPostRunE when RunE fails.
func executeRoot(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if shutdownErr := opts.shutdown(ctx); shutdownErr != nil {
		return errors.Join(err, WrapExitError(ExitCommandError, "failed to shut down telemetry", shutdownErr))
	}
	return err
}

// NewRootCommand creates the root command for the rgraph CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rgraph",
		Short: "rgraph - reactive property graphs",
		Long: `A runtime for reactive graphs: entities with observable properties,
connectors propagating writes between them and gates computing results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.shutdown(cmd.Context())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML configuration file")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// setup loads the configuration, builds the logger and starts telemetry
// when the configuration enables it.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	o.Config = config.Default()
	if o.ConfigPath != "" {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			return o.formatter(cmd).fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
		}
		o.Config = cfg
	}

	level := o.Config.Log.Level.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if o.Config.Telemetry.Enabled {
		p, err := telemetry.InitProvider(telemetry.ProviderConfig{
			ServiceName: o.Config.Telemetry.ServiceName,
			SetGlobal:   true,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start telemetry", err)
		}
		o.providers = p
		o.Logger.Debug("telemetry enabled", "service", o.Config.Telemetry.ServiceName)
	}
	return nil
}

func (o *RootOptions) shutdown(ctx context.Context) error {
	if o.providers == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := o.providers.Shutdown(ctx)
	o.providers = nil
	return err
}

// formatter returns the output formatter of cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
