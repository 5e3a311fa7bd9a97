package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"transmirror/internal/logging"
	"transmirror/internal/pathmap"
	"transmirror/internal/scan"
	"transmirror/internal/services"
)

// Op is the kind of tree membership change observed.
type Op int

const (
	Added Op = iota
	Removed
)

// Tree identifies which root an event belongs to.
type Tree int

const (
	Source Tree = iota
	Dest
)

// Event is one observed membership change. Size and ModTime are populated for
// Added events only. Delivery is best effort: events may be dropped under
// load, and the periodic full scan corrects any divergence.
type Event struct {
	Op      Op
	Tree    Tree
	Path    string
	Size    int64
	ModTime time.Time
}

// Settle describes the size-stability wait applied to new source files so a
// file still being copied in is not encoded half-written.
type Settle struct {
	Interval time.Duration
	Checks   int
	Timeout  time.Duration
}

// Watcher subscribes to both tree roots and emits a serialized event stream.
type Watcher struct {
	sourceRoot string
	destRoot   string
	settle     Settle
	ignore     []*regexp.Regexp
	logger     *slog.Logger

	fsw    *fsnotify.Watcher
	events chan Event

	mu      sync.Mutex
	pending map[string]struct{}
	wg      sync.WaitGroup
}

// New constructs a watcher over the two roots. Start must be called before
// events flow.
func New(sourceRoot, destRoot string, settle Settle, ignore []*regexp.Regexp, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "watch", "create watcher", "", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		sourceRoot: filepath.Clean(sourceRoot),
		destRoot:   filepath.Clean(destRoot),
		settle:     settle,
		ignore:     ignore,
		logger:     logger,
		fsw:        fsw,
		events:     make(chan Event, 256),
		pending:    make(map[string]struct{}),
	}, nil
}

// Events returns the serialized event stream.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start registers watches on both trees and begins dispatching events until
// the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range []string{w.sourceRoot, w.destRoot} {
		if err := w.addRecursive(root); err != nil {
			return err
		}
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Close stops the underlying notifier and waits for in-flight settling to finish.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	tree, ok := w.treeOf(path)
	if !ok {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Lstat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.logger.Warn("watch new directory", logging.String(logging.FieldPath, path), logging.Error(err))
			}
			w.emitExisting(ctx, path, tree)
			return
		}
		w.maybeAdd(ctx, path, tree, info)
	case event.Op&fsnotify.Write != 0:
		info, err := os.Lstat(path)
		if err != nil || info.IsDir() {
			return
		}
		w.maybeAdd(ctx, path, tree, info)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if !w.eligibleName(path) {
			return
		}
		w.send(ctx, Event{Op: Removed, Tree: tree, Path: path})
	}
}

// emitExisting re-announces files already inside a newly created directory.
// Batch copies often create the directory before the notifier watches it, so
// the first files inside would otherwise be missed until the next full scan.
func (w *Watcher) emitExisting(ctx context.Context, dir string, tree Tree) {
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}
		w.maybeAdd(ctx, path, tree, info)
		return nil
	})
}

func (w *Watcher) maybeAdd(ctx context.Context, path string, tree Tree, info fs.FileInfo) {
	if info.Mode()&fs.ModeSymlink != 0 {
		return
	}
	if !w.eligibleName(path) {
		return
	}
	if tree == Dest {
		w.send(ctx, Event{Op: Added, Tree: tree, Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return
	}

	// Source files settle first: wait until the size is stable so half-copied
	// files are not announced.
	w.mu.Lock()
	if _, busy := w.pending[path]; busy {
		w.mu.Unlock()
		return
	}
	w.pending[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()
		settled, err := WaitForSettle(ctx, path, w.settle)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Warn("file never settled", logging.String(logging.FieldPath, path), logging.Error(err))
			}
			return
		}
		w.send(ctx, Event{Op: Added, Tree: tree, Path: path, Size: settled.Size(), ModTime: settled.ModTime()})
	}()
}

func (w *Watcher) eligibleName(path string) bool {
	if !pathmap.IsVideoPath(path) {
		return false
	}
	return !scan.Ignored(filepath.Base(path), w.ignore)
}

func (w *Watcher) treeOf(path string) (Tree, bool) {
	switch {
	case within(w.sourceRoot, path):
		return Source, true
	case within(w.destRoot, path):
		return Dest, true
	default:
		return Source, false
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, "../")
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return services.Wrap(services.ErrFilesystem, "watch", "add watch", path, addErr)
		}
		return nil
	})
}

func (w *Watcher) send(ctx context.Context, event Event) {
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}
