package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/minirag/internal/config"
	"github.com/Aman-CERP/minirag/internal/daemon"
	"github.com/Aman-CERP/minirag/internal/logging"
	"github.com/Aman-CERP/minirag/internal/output"
)

func newDaemonCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon",
		Long: `The daemon keeps the document store and keyword index open so that
concurrent CLI commands share one engine instead of each loading the store.

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status

Examples:
  minirag daemon start      # Start daemon in background
  minirag daemon start -f   # Run in foreground (for debugging)
  minirag daemon status     # Check if daemon is running
  minirag daemon stop       # Stop the daemon`,
	}

	cmd.AddCommand(newDaemonStartCmd(opts))
	cmd.AddCommand(newDaemonStopCmd(opts))
	cmd.AddCommand(newDaemonStatusCmd(opts))

	return cmd
}

func newDaemonStartCmd(opts *globalOptions) *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		Long: `Start the daemon in the background.

Use --foreground for debugging or to see logs in real-time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if foreground {
				return runDaemonForeground(cmd.Context(), cmd, opts, cfg)
			}
			return runDaemonBackground(cmd, opts, cfg)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func runDaemonForeground(ctx context.Context, cmd *cobra.Command, opts *globalOptions, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout())
	dcfg := daemon.ConfigFrom(cfg)

	if daemon.NewClient(dcfg).IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	level := cfg.Server.LogLevel
	if opts.debug {
		level = "debug"
	}
	logCfg := logging.ServerConfig(level)
	logCfg.WriteToStderr = true
	if err := opts.setLogging(logCfg); err != nil {
		return err
	}

	out.Status("", "Starting daemon in foreground...")
	out.Status("", fmt.Sprintf("Socket: %s", dcfg.SocketPath))
	out.Status("", fmt.Sprintf("Data:   %s", cfg.Storage.DataDir))
	out.Status("", fmt.Sprintf("Logs:   %s", logCfg.FilePath))
	out.Status("", "Press Ctrl+C to stop")
	out.Newline()

	e, err := opts.openEngine(ctx, cfg)
	if err != nil {
		opts.log().Error("engine_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			opts.log().Warn("engine_close_failed", slog.String("error", err.Error()))
		}
	}()

	d, err := daemon.NewDaemon(dcfg, daemon.NewEngineHandler(e),
		daemon.WithLogger(opts.log()),
		daemon.WithMaintenance(e.Store, e.Metrics))
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonBackground(cmd *cobra.Command, opts *globalOptions, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout())
	client := daemon.NewClient(daemon.ConfigFrom(cfg))
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return fmt.Errorf("resolve --dir: %w", err)
	}

	args := []string{"--dir", dir, "daemon", "start", "--foreground"}
	if opts.debug {
		args = append([]string{"--debug"}, args...)
	}
	bg := exec.Command(execPath, args...)
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bg.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice if it dies before serving.
	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w (see %s)", err, logging.DefaultLogPath())
			}
			return fmt.Errorf("daemon process exited unexpectedly (see %s)", logging.DefaultLogPath())
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Successf("Daemon started (pid: %d)", bg.Process.Pid)
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start within timeout")
}

func newDaemonStopCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running daemon.

Sends SIGTERM for a graceful shutdown, then SIGKILL if it does not exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runDaemonStop(cmd, daemon.ConfigFrom(cfg))
		},
	}
}

func runDaemonStop(cmd *cobra.Command, dcfg daemon.Config) error {
	out := output.New(cmd.OutOrStdout())
	pidFile := daemon.NewPIDFile(dcfg.PIDPath)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	deadline := time.Now().Add(dcfg.ShutdownGracePeriod)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	// A killed daemon cannot clean up after itself.
	_ = pidFile.Remove()
	_ = os.Remove(dcfg.SocketPath)

	out.Success("Daemon killed")
	return nil
}

func newDaemonStatusCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runDaemonStatus(cmd.Context(), cmd, daemon.ConfigFrom(cfg), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, dcfg daemon.Config, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	client := daemon.NewClient(dcfg)

	if !client.IsRunning() {
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), daemon.StatusResult{Running: false})
		}
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'minirag daemon start' to start it")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), status)
	}

	out.Success("Daemon is running")
	out.KeyValue(
		"PID", fmt.Sprintf("%d", status.PID),
		"Uptime", status.Uptime,
		"Version", status.Version,
		"Backend", status.Backend,
		"Data dir", status.DataDir,
		"Documents", fmt.Sprintf("%d", status.Documents),
		"Socket", dcfg.SocketPath,
	)
	return nil
}
