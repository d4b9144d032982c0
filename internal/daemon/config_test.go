package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/minirag/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, filepath.Join(config.HomeDir(), "daemon.sock"), cfg.SocketPath)
	assert.Equal(t, filepath.Join(config.HomeDir(), "daemon.pid"), cfg.PIDPath)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFrom_SocketPath(t *testing.T) {
	// Given: a configured socket path
	cfg := config.NewConfig()
	cfg.Server.SocketPath = "/run/minirag/custom.sock"

	// When: the daemon config is derived
	dc := ConfigFrom(cfg)

	// Then: the PID file sits next to the socket
	assert.Equal(t, "/run/minirag/custom.sock", dc.SocketPath)
	assert.Equal(t, "/run/minirag/daemon.pid", dc.PIDPath)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty socket", func(c *Config) { c.SocketPath = "" }},
		{"empty pid", func(c *Config) { c.PIDPath = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"negative grace", func(c *Config) { c.ShutdownGracePeriod = -time.Second }},
		{"zero idle", func(c *Config) { c.IdleTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_EnsureDir(t *testing.T) {
	// Given: socket and PID paths in separate missing directories
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.SocketPath = filepath.Join(base, "sock", "daemon.sock")
	cfg.PIDPath = filepath.Join(base, "pid", "daemon.pid")

	// When
	require.NoError(t, cfg.EnsureDir())

	// Then: both directories exist
	for _, dir := range []string{filepath.Join(base, "sock"), filepath.Join(base, "pid")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
