package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"transmirror/internal/classify"
	"transmirror/internal/config"
	"transmirror/internal/executor"
	"transmirror/internal/logging"
	"transmirror/internal/notifications"
	"transmirror/internal/pathmap"
	"transmirror/internal/preflight"
	"transmirror/internal/probecache"
	"transmirror/internal/reconcile"
	"transmirror/internal/scan"
	"transmirror/internal/services"
	"transmirror/internal/services/encoder"
	"transmirror/internal/watch"
)

// Daemon owns the watcher, engine, executor, and scan ticker, and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	sessionID string

	mapper   *pathmap.Mapper
	engine   *reconcile.Engine
	exec     *executor.Executor
	walker   *scan.Walker
	watcher  *watch.Watcher
	cache    *probecache.Store
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	sessionID := uuid.NewString()
	logger = logger.With(logging.String(logging.FieldSession, sessionID))

	ignore, err := scan.CompileIgnore(cfg.Scan.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	mapper := pathmap.New(cfg.Paths.SourceDir, cfg.Paths.DestDir, cfg.Links.Prefix, cfg.Links.Suffix)

	cache, err := probecache.Open(cfg)
	if err != nil {
		return nil, err
	}
	classifier := classify.NewProber(cfg.FFprobeBinary(), cfg.Encoding.MaxHeight)

	var client encoder.Client
	switch cfg.Encoding.Engine {
	case "drapto":
		client = encoder.NewDrapto()
	default:
		client = encoder.NewFFmpeg(cfg.FFmpegBinary(), cfg.FFprobeBinary(), encoder.Params{
			HardwareAccel: cfg.Encoding.HardwareAccel,
			Hardware:      cfg.Encoding.Hardware,
			Codec:         cfg.Encoding.Codec,
			Quality:       cfg.Encoding.Quality,
			MaxHeight:     cfg.Encoding.MaxHeight,
		})
	}

	engine := reconcile.New(mapper, classifier, cache, logger)
	exec := executor.New(mapper, client, executor.Config{
		StagingDir:      cfg.Paths.StagingDir,
		Workers:         cfg.Encoding.Workers,
		RetryAttempts:   cfg.Encoding.RetryAttempts,
		RetryDelay:      time.Duration(cfg.Encoding.RetryDelay) * time.Second,
		MinEncodedBytes: cfg.Encoding.MinEncodedBytes,
		LinksEnabled:    cfg.Links.Enabled,
	}, logger)

	settle := watch.Settle{
		Interval: time.Duration(cfg.Scan.SettleSeconds) * time.Second,
		Checks:   cfg.Scan.SettleChecks,
		Timeout:  time.Duration(cfg.Scan.SettleTimeout) * time.Second,
	}
	watcher, err := watch.New(cfg.Paths.SourceDir, cfg.Paths.DestDir, settle, ignore, logger)
	if err != nil {
		cache.Close()
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "transmirrord.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		sessionID: sessionID,
		mapper:    mapper,
		engine:    engine,
		exec:      exec,
		walker:    &scan.Walker{Mapper: mapper, Ignore: ignore},
		watcher:   watcher,
		cache:     cache,
		notifier:  notifications.NewService(cfg),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start runs preflight, acquires the daemon lock, and launches the pipeline.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	results := preflight.RunAll(ctx, d.cfg)
	if !preflight.Passed(results) {
		var failed []string
		for _, result := range results {
			if !result.Passed {
				failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
			}
		}
		return services.Wrap(services.ErrConfiguration, "daemon", "preflight", strings.Join(failed, "; "), nil)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.watcher.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.wg.Add(3)
	go func() {
		defer d.wg.Done()
		_ = d.engine.Run(runCtx, d.watcher.Events())
	}()
	go func() {
		defer d.wg.Done()
		resolver := &notifyingResolver{engine: d.engine, notifier: d.notifier, logger: d.logger}
		_ = d.exec.Run(runCtx, d.engine.Actions(), resolver)
	}()
	go func() {
		defer d.wg.Done()
		d.scanLoop(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("source", d.cfg.Paths.SourceDir),
		logging.String("dest", d.cfg.Paths.DestDir),
		logging.String("engine", d.cfg.Encoding.Engine))
	if entries, err := d.cache.Count(runCtx); err == nil {
		d.logger.Info("classification cache ready", logging.Int("entries", entries))
	}
	if err := d.notifier.NotifyDaemonStarted(runCtx, d.sessionID); err != nil {
		d.logger.Warn("startup notification", logging.Error(err))
	}
	return nil
}

// Stop shuts the pipeline down: the watcher first so no new work arrives,
// then the engine and executor drain on context cancellation.
func (d *Daemon) Stop() error {
	if !d.running.Load() {
		return nil
	}
	if d.cancel != nil {
		d.cancel()
	}
	err := d.watcher.Close()
	d.wg.Wait()
	if unlockErr := d.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	if closeErr := d.cache.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
	return err
}

// scanLoop runs the corrective full scan at startup and on the configured
// interval thereafter.
func (d *Daemon) scanLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Scan.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	d.runScan(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runScan(ctx)
		}
	}
}

func (d *Daemon) runScan(ctx context.Context) {
	// The sequence floor is read before walking so the merge can recognize
	// items whose live state postdates this walk.
	startSeq := d.engine.SeqNow()
	snap, err := d.walker.Snapshot(ctx)
	if err != nil {
		d.logger.Error("full scan failed", logging.Error(err))
		if notifyErr := d.notifier.NotifyError(ctx, err, "full scan"); notifyErr != nil {
			d.logger.Warn("scan notification", logging.Error(notifyErr))
		}
		return
	}
	d.logger.Info("full scan complete",
		logging.Int("source_files", len(snap.Source)),
		logging.Int("dest_files", len(snap.Dest)))
	d.engine.SubmitSnapshot(ctx, snap, startSeq)

	stats := d.engine.Stats()
	if err := d.notifier.NotifyScanCompleted(ctx, stats.Items, stats.Encoded, stats.Deleted, stats.Failed); err != nil {
		d.logger.Warn("scan notification", logging.Error(err))
	}
	for _, failure := range d.engine.Failures() {
		d.logger.Warn("identity needs operator attention",
			logging.String(logging.FieldIdentity, failure.Identity),
			logging.String("reason", failure.Message))
	}
}

// notifyingResolver forwards outcomes to the engine after publishing
// encode-level notifications.
type notifyingResolver struct {
	engine   *reconcile.Engine
	notifier notifications.Service
	logger   *slog.Logger
}

func (r *notifyingResolver) ResolveOutcome(ctx context.Context, out reconcile.Outcome) {
	if out.Kind == reconcile.ActionEncode {
		var err error
		if out.Err != nil {
			err = r.notifier.NotifyEncodeFailed(ctx, out.Identity, out.Err)
		} else {
			var size int64
			if info, statErr := os.Stat(out.DestPath); statErr == nil {
				size = info.Size()
			}
			err = r.notifier.NotifyEncodeCompleted(ctx, out.Identity, size)
		}
		if err != nil {
			r.logger.Warn("encode notification", logging.Error(err))
		}
	}
	r.engine.ResolveOutcome(ctx, out)
}
