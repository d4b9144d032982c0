// Package cmd provides the CLI commands for minirag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/config"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/logging"
	"github.com/Aman-CERP/minirag/internal/profiling"
	"github.com/Aman-CERP/minirag/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dir      string
	debug    bool
	noDaemon bool
	profile  profiling.Options

	profiler       *profiling.Session
	logger         *slog.Logger
	loggingCleanup func()
}

// NewRootCmd creates the root command for the minirag CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "minirag",
		Short: "Local document chunking and keyword retrieval",
		Long: `minirag stores plain text, Markdown, PDF and DOCX documents, splits
them into overlapping chunks, and answers keyword queries with the most
relevant chunks.

Commands talk to a running daemon when there is one, and open the data
directory directly otherwise.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.startLogging(cmd); err != nil {
				return err
			}
			return opts.startProfiling()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			defer opts.stopLogging()
			return opts.stopProfiling()
		},
	}

	cmd.SetVersionTemplate("minirag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "Directory holding .minirag.yaml and .env")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.minirag/logs/")
	cmd.PersistentFlags().BoolVar(&opts.noDaemon, "no-daemon", false, "Open the data directory directly even if a daemon is running")

	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newAddCmd(opts))
	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newRebuildCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newDaemonCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, printing structured errors to stderr.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(os.Stderr, formatError(err))
	}
	return err
}

// formatError renders engine errors with their code and hint; everything
// else, such as cobra's usage errors, is printed as is.
func formatError(err error) string {
	if _, ok := raerrors.As(err); ok {
		return raerrors.FormatForCLI(err)
	}
	return fmt.Sprintf("Error: %s\n", err)
}

// startLogging sends warnings to stderr, or everything to the log file and
// stderr with --debug. Long-running commands replace this with file-only
// logging so stdout stays clean.
func (o *globalOptions) startLogging(_ *cobra.Command) error {
	cfg := logging.Config{Level: "warn", WriteToStderr: true}
	if o.debug {
		cfg = logging.DebugConfig()
	}
	return o.setLogging(cfg)
}

func (o *globalOptions) setLogging(cfg logging.Config) error {
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.stopLogging()
	o.logger = logger
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	if o.debug {
		logger.Debug("debug_logging_enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

// useServerLogging switches to file-only logging at the configured level,
// or debug with --debug.
func (o *globalOptions) useServerLogging(level string) error {
	if o.debug {
		level = "debug"
	}
	return o.setLogging(logging.ServerConfig(level))
}

func (o *globalOptions) stopLogging() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

func (o *globalOptions) startProfiling() error {
	if !o.profile.Enabled() {
		return nil
	}
	s, err := profiling.Start(o.profile)
	if err != nil {
		return err
	}
	o.profiler = s
	return nil
}

func (o *globalOptions) stopProfiling() error {
	s := o.profiler
	o.profiler = nil
	if err := s.Stop(); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// loadConfig resolves the effective configuration for --dir.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.dir)
}

// log returns the active logger.
func (o *globalOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}
