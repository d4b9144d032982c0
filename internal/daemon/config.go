// Package daemon provides a background service shared by CLI invocations.
// The daemon holds the data directory lock and the in-memory index, so CLI
// commands talk to it over a Unix socket instead of reloading the store
// on every invocation.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/minirag/internal/config"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.minirag/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.minirag/daemon.pid
	PIDPath string

	// Timeout is the maximum duration for client-daemon communication.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration

	// IdleTimeout is how long without requests before idle maintenance runs.
	// Default: 30s
	IdleTimeout time.Duration

	// MaintenanceCooldown is the minimum time between maintenance runs.
	// Default: 5m
	MaintenanceCooldown time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	dir := config.HomeDir()
	return Config{
		SocketPath:          filepath.Join(dir, "daemon.sock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
		IdleTimeout:         30 * time.Second,
		MaintenanceCooldown: 5 * time.Minute,
	}
}

// ConfigFrom applies server.socket_path from cfg to the defaults. The PID
// file sits next to the socket.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg != nil && cfg.Server.SocketPath != "" {
		c.SocketPath = cfg.Server.SocketPath
		c.PIDPath = filepath.Join(filepath.Dir(cfg.Server.SocketPath), "daemon.pid")
	}
	return c
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	return nil
}

// EnsureDir creates the directory for socket and PID files if it doesn't exist.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
