package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"transmirror/internal/watch"
)

func TestWaitForSettleStableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mkv")
	if err := os.WriteFile(path, []byte("complete"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	info, err := watch.WaitForSettle(context.Background(), path, watch.Settle{
		Interval: 5 * time.Millisecond,
		Checks:   3,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("WaitForSettle failed: %v", err)
	}
	if info.Size() != int64(len("complete")) {
		t.Fatalf("unexpected size %d", info.Size())
	}
}

func TestWaitForSettleGrowingFileTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growing.mkv")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return
			}
			_, _ = f.WriteString("more data")
			_ = f.Close()
			time.Sleep(2 * time.Millisecond)
		}
	}()

	_, err := watch.WaitForSettle(context.Background(), path, watch.Settle{
		Interval: 5 * time.Millisecond,
		Checks:   50,
		Timeout:  50 * time.Millisecond,
	})
	<-done
	if err == nil {
		t.Fatal("expected timeout error for growing file")
	}
}

func TestWaitForSettleVanishedFile(t *testing.T) {
	dir := t.TempDir()
	_, err := watch.WaitForSettle(context.Background(), filepath.Join(dir, "gone.mkv"), watch.Settle{
		Interval: time.Millisecond,
		Checks:   1,
	})
	if !errors.Is(err, watch.ErrVanished) {
		t.Fatalf("expected ErrVanished, got %v", err)
	}
}

func TestWaitForSettleCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mkv")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := watch.WaitForSettle(ctx, path, watch.Settle{
		Interval: 10 * time.Millisecond,
		Checks:   100,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
