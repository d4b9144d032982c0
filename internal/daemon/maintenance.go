package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/minirag/internal/index"
)

// MaintenanceTarget is the store side of idle maintenance.
type MaintenanceTarget interface {
	Generation() uint64
	EnsureConsistent(ctx context.Context) (*index.CheckResult, error)
	Checkpoint() error
}

// Flusher persists buffered telemetry.
type Flusher interface {
	Flush() error
}

// MaintenanceManager runs housekeeping when the daemon goes idle:
//  1. verify the index against the stored chunks, rebuilding on divergence
//  2. write the index snapshot so a crash does not force a rebuild
//  3. flush query telemetry
//
// It runs only after IdleTimeout without requests, only when the store
// changed since the last run, and at most once per cooldown. Any request
// interrupts a run in progress.
type MaintenanceManager struct {
	target   MaintenanceTarget
	metrics  Flusher
	idle     time.Duration
	cooldown time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	idleTimer  *time.Timer
	lastRun    time.Time
	lastGen    uint64
	ran        bool
	running    bool
	cancelFunc context.CancelFunc

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMaintenanceManager creates a manager. metrics may be nil.
func NewMaintenanceManager(target MaintenanceTarget, metrics Flusher, cfg Config, logger *slog.Logger) *MaintenanceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceManager{
		target:   target,
		metrics:  metrics,
		idle:     cfg.IdleTimeout,
		cooldown: cfg.MaintenanceCooldown,
		logger:   logger,
	}
}

// Start arms the idle timer.
func (m *MaintenanceManager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.OnActivity()
}

// Stop cancels any run in progress and waits for it.
func (m *MaintenanceManager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Lock()
		if m.idleTimer != nil {
			m.idleTimer.Stop()
		}
		if m.cancelFunc != nil {
			m.cancelFunc()
		}
		m.mu.Unlock()
		m.wg.Wait()
	})
}

// OnActivity restarts the idle timer and interrupts a run in progress.
func (m *MaintenanceManager) OnActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil || m.ctx.Err() != nil {
		return
	}
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(m.idle, m.onIdle)
}

func (m *MaintenanceManager) onIdle() {
	if !m.shouldRun() {
		return
	}

	m.mu.Lock()
	if m.running || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelFunc = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			m.running = false
			m.cancelFunc = nil
			m.mu.Unlock()
			cancel()
		}()
		_ = m.Run(ctx)
	}()
}

// shouldRun applies the change and cooldown checks.
func (m *MaintenanceManager) shouldRun() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ran && m.target.Generation() == m.lastGen {
		m.logger.Debug("maintenance_skipped", slog.String("reason", "unchanged"))
		return false
	}
	if m.ran && time.Since(m.lastRun) < m.cooldown {
		m.logger.Debug("maintenance_skipped",
			slog.String("reason", "cooldown"),
			slog.Duration("remaining", m.cooldown-time.Since(m.lastRun)))
		return false
	}
	return true
}

// Run performs one maintenance pass. It stops early when ctx is cancelled.
func (m *MaintenanceManager) Run(ctx context.Context) error {
	start := time.Now()
	gen := m.target.Generation()

	result, err := m.target.EnsureConsistent(ctx)
	if err != nil {
		m.logger.Warn("maintenance_consistency_failed", slog.String("error", err.Error()))
		return err
	}
	if ctx.Err() != nil {
		m.logger.Debug("maintenance_interrupted")
		return ctx.Err()
	}

	if err := m.target.Checkpoint(); err != nil {
		m.logger.Warn("maintenance_checkpoint_failed", slog.String("error", err.Error()))
		return err
	}
	if m.metrics != nil {
		if err := m.metrics.Flush(); err != nil {
			m.logger.Warn("maintenance_flush_failed", slog.String("error", err.Error()))
		}
	}

	m.mu.Lock()
	m.ran = true
	m.lastRun = time.Now()
	m.lastGen = gen
	m.mu.Unlock()

	m.logger.Info("maintenance_complete",
		slog.Int("checked", result.Checked),
		slog.Int("inconsistencies", len(result.Inconsistencies)),
		slog.Duration("duration", time.Since(start)))
	return nil
}
