package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyAcrossPublishesWithRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("across"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := copyAcross(src, dst); err != nil {
		t.Fatalf("copyAcross: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "across" {
		t.Fatalf("destination contents wrong: %q, %v", data, err)
	}
	if _, err := os.Stat(dst + ".part"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind after publish")
	}
}

func TestCopyAcrossFailureLeavesNoPartialDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.bin")

	if err := copyAcross(filepath.Join(dir, "absent"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("destination must not exist after failed copy")
	}
	if _, err := os.Stat(dst + ".part"); !os.IsNotExist(err) {
		t.Fatal("temp file must be cleaned up after failed copy")
	}
}

func TestCopyAcrossRenameFailureCleansTemp(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "occupied")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// A non-empty directory at dst makes the final rename fail.
	if err := os.MkdirAll(filepath.Join(dst, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := copyAcross(src, dst); err == nil {
		t.Fatal("expected rename failure onto directory")
	}
	if _, err := os.Stat(dst + ".part"); !os.IsNotExist(err) {
		t.Fatal("temp file must be cleaned up after failed rename")
	}
}
