package scan

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"time"

	"transmirror/internal/pathmap"
	"transmirror/internal/services"
)

// defaultIgnorePatterns filters resource forks, temp files, and partial
// downloads out of both trees.
var defaultIgnorePatterns = []string{
	`^\._`,
	`\.tmp$`,
	`\.part$`,
	`\.!qB$`,
	`^\.DS_Store$`,
	`^Thumbs\.db$`,
}

// CompileIgnore builds the ignore matcher from the defaults plus any
// user-configured additions. Patterns match case-insensitively against the
// base filename.
func CompileIgnore(extra []string) ([]*regexp.Regexp, error) {
	patterns := append(append([]string{}, defaultIgnorePatterns...), extra...)
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "scan", "compile ignore pattern", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Ignored reports whether the base filename matches any ignore pattern.
func Ignored(name string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// FileInfo describes one video file observed during a tree walk.
type FileInfo struct {
	Path    string
	Rel     string
	Size    int64
	ModTime time.Time
}

// Snapshot is the membership of both trees at one point in time, keyed by
// identity. When two source files share an identity (same stem, different
// extension) the walk-order last one wins, mirroring destination behaviour
// where both would collapse into a single encode.
type Snapshot struct {
	Source  map[string]FileInfo
	Dest    map[string]FileInfo
	TakenAt time.Time
}

// Walker enumerates both trees into snapshots.
type Walker struct {
	Mapper *pathmap.Mapper
	Ignore []*regexp.Regexp
}

// Snapshot walks the source and destination trees. Missing roots yield empty
// maps rather than errors; preflight is responsible for rejecting absent
// roots at startup, and the comparator warns instead.
func (w *Walker) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: time.Now()}

	source, err := w.walkTree(ctx, w.Mapper.SourceRoot)
	if err != nil {
		return Snapshot{}, err
	}
	dest, err := w.walkTree(ctx, w.Mapper.DestRoot)
	if err != nil {
		return Snapshot{}, err
	}

	snap.Source = source
	snap.Dest = dest
	return snap, nil
}

func (w *Walker) walkTree(ctx context.Context, root string) (map[string]FileInfo, error) {
	files := make(map[string]FileInfo)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root && errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			// Unreadable subtrees are skipped; the next scan retries them.
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		// Version symlinks in the destination tree are a naming side effect
		// of their encode, not items of their own.
		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !pathmap.IsVideoPath(path) {
			return nil
		}
		if Ignored(filepath.Base(path), w.Ignore) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}
		files[pathmap.Identity(rel)] = FileInfo{
			Path:    path,
			Rel:     rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "scan", "walk", root, err)
	}
	return files, nil
}
