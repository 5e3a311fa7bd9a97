package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"transmirror/internal/services"
)

// ErrVanished reports that a file disappeared while settling. Callers treat it
// as "nothing to announce": the corresponding Remove event covers it.
var ErrVanished = errors.New("file removed while settling")

// WaitForSettle polls the file size until it has been stable for the
// configured number of checks, then returns the final FileInfo. It gives up
// after the configured timeout.
func WaitForSettle(ctx context.Context, path string, settle Settle) (fs.FileInfo, error) {
	interval := settle.Interval
	if interval <= 0 {
		interval = time.Second
	}
	checks := settle.Checks
	if checks <= 0 {
		checks = 1
	}

	var (
		lastSize int64 = -1
		stable   int
		deadline time.Time
		hasLimit bool
	)
	if settle.Timeout > 0 {
		deadline = time.Now().Add(settle.Timeout)
		hasLimit = true
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := os.Lstat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrVanished
			}
			return nil, services.Wrap(services.ErrFilesystem, "watch", "settle stat", path, err)
		}

		if info.Size() == lastSize {
			stable++
		} else {
			stable = 0
		}
		if stable >= checks {
			return info, nil
		}
		lastSize = info.Size()

		if hasLimit && time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrTransient, "watch", "settle", "timeout waiting for "+path, nil)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
