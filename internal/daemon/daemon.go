package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"papercast/internal/config"
	"papercast/internal/fileutil"
	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/notifications"
)

// Uploads older than this at startup are left over from a crashed server.
const orphanedUploadAge = time.Hour

// Daemon owns the server lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *Pipeline
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	fatalMu  sync.Mutex
	fatalErr error
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	APIAddress     string
	LockFilePath   string
	MetadataDriver string
	Jobs           map[jobs.Status]int
}

// New constructs a daemon around an assembled pipeline.
func New(cfg *config.Config, p *Pipeline, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || p == nil || logger == nil {
		return nil, errors.New("daemon requires config, pipeline, and logger")
	}
	api, err := newAPIServer(cfg, p, logger)
	if err != nil {
		return nil, err
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		pipeline: p,
		api:      api,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	p.Service.OnFatal(d.fail)
	return d, nil
}

// Start acquires the daemon lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another papercast server instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	removed := logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "*.log*",
		Exclude: []string{d.cfg.LogPath()},
	})
	orphans := d.removeOrphanedUploads()

	d.running.Store(true)
	d.logger.Info("papercast server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.Int("logs_pruned", removed),
		logging.Int("orphaned_uploads_removed", orphans),
	)
	return nil
}

// removeOrphanedUploads deletes uploads left by a previous process. Jobs do
// not survive a restart, so nothing will ever read them.
func (d *Daemon) removeOrphanedUploads() int {
	dir := strings.TrimSpace(d.cfg.Paths.UploadDir)
	if dir == "" {
		return 0
	}
	removed, err := fileutil.RemoveOlderThan(dir, "", time.Now().Add(-orphanedUploadAge), nil)
	if err != nil {
		logging.WarnWithContext(d.logger, "orphaned upload cleanup incomplete", "upload_cleanup_failed",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on "+dir),
			logging.String(logging.FieldImpact, "stale uploads remain on disk"),
		)
	}
	for _, path := range removed {
		d.logger.Debug("orphaned upload removed", logging.String("path", path), logging.String(logging.FieldEventType, "upload_pruned"))
	}
	return len(removed)
}

// Done is closed when the daemon is stopping, including after a fatal error.
func (d *Daemon) Done() <-chan struct{} {
	if d.ctx == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return d.ctx.Done()
}

// Err returns the fatal pipeline error that stopped the daemon, if any.
func (d *Daemon) Err() error {
	d.fatalMu.Lock()
	defer d.fatalMu.Unlock()
	return d.fatalErr
}

func (d *Daemon) fail(err error) {
	d.fatalMu.Lock()
	if d.fatalErr == nil {
		d.fatalErr = err
	}
	d.fatalMu.Unlock()
	logging.ErrorWithContext(d.logger, "fatal pipeline error; shutting down", "daemon_fatal",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that paths.podcast_dir is writable and has free space"),
	)
	if d.cancel != nil {
		d.cancel()
	}
}

// Stop stops serving, waits for in-flight jobs, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
	}
	d.api.stop()
	d.pipeline.Service.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("papercast server stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.pipeline.Close()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running.Load(),
		APIAddress:     d.api.addr(),
		LockFilePath:   d.lockPath,
		MetadataDriver: d.pipeline.Metadata.Driver(),
		Jobs:           d.pipeline.Jobs.Counts(),
	}
}
