// Package daemon owns the shadowplayd lifecycle: the single-instance lock,
// the reconciliation loop goroutine, and the operations the IPC surface
// exposes to the CLI.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shadowplay/internal/config"
	"shadowplay/internal/identity"
	"shadowplay/internal/logging"
	"shadowplay/internal/notifications"
	"shadowplay/internal/panel"
)

// Runner is the long-running reconciliation loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Daemon coordinates the mirror loop and exposes control operations.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *identity.Store
	runner   Runner
	hub      *panel.Hub
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	LockPath       string
	IdentityDBPath string
	Snapshot       panel.Snapshot
	CacheTotal     int64
	CacheResolved  int64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *identity.Store, runner Runner, hub *panel.Hub, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil || hub == nil {
		return nil, errors.New("daemon requires config, store, runner, and hub")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		runner:   runner,
		hub:      hub,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock and launches the mirror loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("mirroring already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shadowplay daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("mirror loop exited", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("mirroring started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the mirror loop and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mirroring stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	snapshot, _ := d.hub.Current()
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockPath:       d.lockPath,
		IdentityDBPath: d.cfg.IdentityDBPath(),
		Snapshot:       snapshot,
	}
	total, resolved, err := d.store.Count(ctx)
	if err != nil {
		d.logger.Warn("identity count failed", logging.Error(err))
	} else {
		status.CacheTotal = total
		status.CacheResolved = resolved
	}
	return status
}

// ListIdentities returns every cached folder identity.
func (d *Daemon) ListIdentities(ctx context.Context) ([]identity.Record, error) {
	return d.store.List(ctx)
}

// InvalidateIdentity removes one folder's cached identity.
func (d *Daemon) InvalidateIdentity(ctx context.Context, folderPath string) (bool, error) {
	removed, err := d.store.Invalidate(ctx, folderPath)
	if err == nil && removed {
		d.logger.Info("identity invalidated", logging.String(logging.FieldFolder, folderPath))
	}
	return removed, err
}

// ClearIdentities drops the whole identity cache.
func (d *Daemon) ClearIdentities(ctx context.Context) (int64, error) {
	removed, err := d.store.Clear(ctx)
	if err == nil {
		d.logger.Info("identity cache cleared", logging.Int64("removed", removed))
	}
	return removed, err
}

// TestNotification sends a test push through the notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, err.Error(), nil
	}
	return true, "notification sent", nil
}
