package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelsync/internal/catalog"
	"reelsync/internal/config"
	"reelsync/internal/logging"
	"reelsync/internal/pipeline"
)

// ErrAlreadyRunning is returned when another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another reelsync daemon instance is already running")

// Daemon owns the pipeline lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *catalog.Store
	pipeline *pipeline.Pipeline

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Pipeline     pipeline.StatusSummary
	Catalog      catalog.Stats
	CatalogPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, p *pipeline.Pipeline) (*Daemon, error) {
	if cfg == nil || store == nil || p == nil {
		return nil, errors.New("daemon requires config, catalog store and pipeline")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: p,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the pipeline.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pipeline.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start pipeline: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("reelsync daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the pipeline and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pipeline.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("reelsync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.pipeline.Close()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read catalog stats", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		Pipeline:     d.pipeline.Status(),
		Catalog:      stats,
		CatalogPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// LockHeld reports whether some process currently holds the daemon lock at
// cfg's lock path. The probe lock is released before returning.
func LockHeld(cfg *config.Config) (bool, error) {
	probe := flock.New(cfg.LockPath())
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	return false, probe.Unlock()
}

// AcquireLock takes the daemon lock for a one-shot command such as a scan
// so it never runs alongside a daemon. The returned func releases it.
func AcquireLock(cfg *config.Config) (func() error, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock.Unlock, nil
}
