package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"transmirror/internal/pathmap"
	"transmirror/internal/scan"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newWalker(t *testing.T, src, dst string, extra []string) *scan.Walker {
	t.Helper()
	ignore, err := scan.CompileIgnore(extra)
	if err != nil {
		t.Fatalf("CompileIgnore: %v", err)
	}
	return &scan.Walker{Mapper: pathmap.New(src, dst, "", " - 720p"), Ignore: ignore}
}

func TestSnapshotFiltersAndKeys(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	writeFile(t, filepath.Join(src, "movies", "Alien.mp4"))
	writeFile(t, filepath.Join(src, "movies", "notes.txt"))
	writeFile(t, filepath.Join(src, "movies", "._Alien.mp4"))
	writeFile(t, filepath.Join(src, "movies", "Partial.mkv.part"))
	writeFile(t, filepath.Join(dst, "movies", "Alien.mkv"))

	snap, err := newWalker(t, src, dst, nil).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Source) != 1 {
		t.Fatalf("source entries = %d, want 1 (%v)", len(snap.Source), snap.Source)
	}
	if len(snap.Dest) != 1 {
		t.Fatalf("dest entries = %d, want 1", len(snap.Dest))
	}
	if _, ok := snap.Source["movies/alien"]; !ok {
		t.Fatalf("missing identity movies/alien in %v", snap.Source)
	}
	if _, ok := snap.Dest["movies/alien"]; !ok {
		t.Fatalf("missing identity movies/alien in %v", snap.Dest)
	}
}

func TestSnapshotSkipsDestSymlinks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	writeFile(t, filepath.Join(dst, "Alien.mkv"))
	if err := os.Symlink(filepath.Join(dst, "Alien.mkv"), filepath.Join(dst, "Alien - 720p.mkv")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	snap, err := newWalker(t, src, dst, nil).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Dest) != 1 {
		t.Fatalf("dest entries = %d, want 1 (symlink should be skipped)", len(snap.Dest))
	}
}

func TestSnapshotMissingRootsYieldEmpty(t *testing.T) {
	dir := t.TempDir()
	snap, err := newWalker(t, filepath.Join(dir, "nope"), filepath.Join(dir, "also-nope"), nil).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Source) != 0 || len(snap.Dest) != 0 {
		t.Fatalf("expected empty snapshot, got %d/%d", len(snap.Source), len(snap.Dest))
	}
}

func TestExtraIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "Sample.trailer.mkv"))
	writeFile(t, filepath.Join(src, "Feature.mkv"))

	snap, err := newWalker(t, src, filepath.Join(dir, "dst"), []string{`trailer`}).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Source) != 1 {
		t.Fatalf("source entries = %d, want 1", len(snap.Source))
	}
	if _, ok := snap.Source["feature"]; !ok {
		t.Fatalf("expected feature to survive, got %v", snap.Source)
	}
}
