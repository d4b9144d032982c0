package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Daemon runs the socket server, the PID file and idle maintenance.
type Daemon struct {
	config      Config
	handler     RequestHandler
	server      *Server
	pidFile     *PIDFile
	maintenance *MaintenanceManager
	logger      *slog.Logger

	maintTarget  MaintenanceTarget
	maintMetrics Flusher
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the daemon's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMaintenance enables idle maintenance over target. metrics may be nil.
func WithMaintenance(target MaintenanceTarget, metrics Flusher) Option {
	return func(d *Daemon) {
		d.maintTarget = target
		d.maintMetrics = metrics
	}
}

// NewDaemon creates a daemon serving handler.
func NewDaemon(cfg Config, handler RequestHandler, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if handler == nil {
		return nil, errors.New("request handler is required")
	}

	d := &Daemon{
		config:  cfg,
		handler: handler,
		pidFile: NewPIDFile(cfg.PIDPath),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.maintTarget != nil {
		d.maintenance = NewMaintenanceManager(d.maintTarget, d.maintMetrics, cfg, d.logger)
	}

	d.server = NewServer(cfg.SocketPath, handler)
	d.server.SetLogger(d.logger)
	d.server.SetTimeout(cfg.Timeout)
	if d.maintenance != nil {
		d.server.OnRequest(func(string) { d.maintenance.OnActivity() })
	}
	return d, nil
}

// Start serves until ctx is cancelled. It refuses to start while another
// live daemon owns the PID file.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.config.EnsureDir(); err != nil {
		return err
	}

	if err := d.pidFile.Claim(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Release(); err != nil {
			d.logger.Warn("pid_file_remove_failed", slog.String("error", err.Error()))
		}
	}()

	if d.maintenance != nil {
		d.maintenance.Start(ctx)
		defer d.maintenance.Stop()
	}

	d.logger.Info("daemon_started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", d.config.SocketPath))

	err := d.server.ListenAndServe(ctx)

	d.logger.Info("daemon_stopped")
	return err
}
