package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"transmirror/internal/fileutil"
	"transmirror/internal/logging"
	"transmirror/internal/pathmap"
	"transmirror/internal/reconcile"
	"transmirror/internal/services"
	"transmirror/internal/services/encoder"
)

// Config tunes executor behaviour.
type Config struct {
	StagingDir      string
	Workers         int
	RetryAttempts   int
	RetryDelay      time.Duration
	MinEncodedBytes int64
	LinksEnabled    bool
}

// Resolver receives action outcomes; the reconciliation engine implements it.
type Resolver interface {
	ResolveOutcome(ctx context.Context, out reconcile.Outcome)
}

// Executor carries out engine actions. Encodes run on a bounded worker pool;
// skips acknowledge immediately so classification-only items never occupy a
// worker.
type Executor struct {
	mapper *pathmap.Mapper
	client encoder.Client
	cfg    Config
	logger *slog.Logger
}

// New constructs an executor.
func New(mapper *pathmap.Mapper, client encoder.Client, cfg Config, logger *slog.Logger) *Executor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{mapper: mapper, client: client, cfg: cfg, logger: logger}
}

// Run consumes actions until the context ends or the channel closes. Every
// accepted action produces exactly one outcome.
func (x *Executor) Run(ctx context.Context, actions <-chan reconcile.Action, resolver Resolver) error {
	sem := make(chan struct{}, x.cfg.Workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action, ok := <-actions:
			if !ok {
				return nil
			}
			if action.Kind == reconcile.ActionSkip {
				resolver.ResolveOutcome(ctx, reconcile.Outcome{Identity: action.Identity, Attempt: action.Attempt, Kind: action.Kind})
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			wg.Add(1)
			go func(action reconcile.Action) {
				defer wg.Done()
				defer func() { <-sem }()
				resolver.ResolveOutcome(ctx, x.perform(ctx, action))
			}(action)
		}
	}
}

func (x *Executor) perform(ctx context.Context, action reconcile.Action) reconcile.Outcome {
	out := reconcile.Outcome{Identity: action.Identity, Attempt: action.Attempt, Kind: action.Kind}
	switch action.Kind {
	case reconcile.ActionEncode:
		destPath, destMod, err := x.encode(ctx, action)
		out.DestPath = destPath
		out.DestModTime = destMod
		out.Err = err
	case reconcile.ActionDelete:
		out.Err = x.delete(action)
	}
	return out
}

// encode transcodes into a per-action staging directory and publishes the
// result with a move, so the destination tree never holds a partial file.
func (x *Executor) encode(ctx context.Context, action reconcile.Action) (string, time.Time, error) {
	session := filepath.Join(x.cfg.StagingDir, action.ID)
	if err := os.MkdirAll(session, 0o755); err != nil {
		return "", time.Time{}, services.Wrap(services.ErrFilesystem, "executor", "create staging dir", session, err)
	}
	defer os.RemoveAll(session)

	produced, err := x.encodeWithRetry(ctx, action, session)
	if err != nil {
		return "", time.Time{}, err
	}

	info, err := os.Stat(produced)
	if err != nil {
		return "", time.Time{}, services.Wrap(services.ErrEncode, "executor", "stat output", produced, err)
	}
	if info.Size() < x.cfg.MinEncodedBytes {
		return "", time.Time{}, services.Wrap(services.ErrEncode, "executor", "validate output",
			fmt.Sprintf("%s is %d bytes, below the %d byte minimum", produced, info.Size(), x.cfg.MinEncodedBytes), nil)
	}

	if err := os.MkdirAll(filepath.Dir(action.DestPath), 0o755); err != nil {
		return "", time.Time{}, services.Wrap(services.ErrFilesystem, "executor", "create destination dir", action.DestPath, err)
	}
	if err := fileutil.MoveFile(produced, action.DestPath); err != nil {
		return "", time.Time{}, services.Wrap(services.ErrFilesystem, "executor", "publish output", action.DestPath, err)
	}

	destInfo, err := os.Stat(action.DestPath)
	if err != nil {
		return "", time.Time{}, services.Wrap(services.ErrFilesystem, "executor", "stat destination", action.DestPath, err)
	}

	if x.cfg.LinksEnabled {
		x.link(action.DestPath)
	}
	return action.DestPath, destInfo.ModTime(), nil
}

func (x *Executor) encodeWithRetry(ctx context.Context, action reconcile.Action, session string) (string, error) {
	attempts := x.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for try := 1; try <= attempts; try++ {
		produced, err := x.client.Encode(ctx, action.SourcePath, session, x.progressLogger(action))
		if err == nil {
			return produced, nil
		}
		lastErr = err
		if !services.IsTransient(err) || ctx.Err() != nil {
			break
		}
		x.logger.Warn("encode attempt failed, retrying",
			logging.String(logging.FieldIdentity, action.Identity),
			logging.Int("try", try),
			logging.Error(err))
		select {
		case <-time.After(x.cfg.RetryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// progressLogger logs encode progress in ten percent increments.
func (x *Executor) progressLogger(action reconcile.Action) func(encoder.ProgressUpdate) {
	var lastLogged float64 = -10
	return func(update encoder.ProgressUpdate) {
		if update.Percent < lastLogged+10 {
			return
		}
		lastLogged = update.Percent
		x.logger.Info("encode progress",
			logging.String(logging.FieldIdentity, action.Identity),
			logging.String("stage", update.Stage),
			logging.Float64("percent", update.Percent))
	}
}

// link places the version symlink next to the encoded file, replacing any
// previous one. Link failures never fail the encode.
func (x *Executor) link(destPath string) {
	linkPath := x.mapper.LinkPath(destPath)
	if err := os.Remove(linkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		x.logger.Warn("remove stale version link", logging.String(logging.FieldPath, linkPath), logging.Error(err))
		return
	}
	// Relative target keeps the link valid when the tree is remounted.
	if err := os.Symlink(filepath.Base(destPath), linkPath); err != nil {
		x.logger.Warn("create version link", logging.String(logging.FieldPath, linkPath), logging.Error(err))
	}
}

// delete removes the orphaned file and its version link, then prunes any
// directories left empty. A file already gone counts as success.
func (x *Executor) delete(action reconcile.Action) error {
	if err := os.Remove(action.DestPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrFilesystem, "executor", "delete orphan", action.DestPath, err)
	}
	linkPath := x.mapper.LinkPath(action.DestPath)
	if err := os.Remove(linkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		x.logger.Warn("remove version link", logging.String(logging.FieldPath, linkPath), logging.Error(err))
	}
	x.pruneEmptyDirs(filepath.Dir(action.DestPath))
	return nil
}

func (x *Executor) pruneEmptyDirs(dir string) {
	root := x.mapper.DestRoot
	for dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
