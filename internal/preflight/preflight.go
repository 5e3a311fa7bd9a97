package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"transmirror/internal/config"
	"transmirror/internal/deps"
	"transmirror/internal/notifications"
)

// minFreeBytes is the floor for usable space on the staging and destination
// filesystems. Encodes routinely stage multi-gigabyte intermediates.
const minFreeBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckDirectoryAccess verifies that the directory exists and carries the
// requested access bits.
func CheckDirectoryAccess(name, path string, mode uint32) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (access ok)", path)}
}

// CheckFreeSpace verifies the filesystem behind path has room to encode into.
func CheckFreeSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := int64(stat.Bavail) * stat.Bsize
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (only %d bytes free)", path, free)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d GiB free)", path, free>>30)}
}

// RunAll executes every preflight check for the given config. The source tree
// only needs read access; everything the daemon writes needs read/write.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Source directory", cfg.Paths.SourceDir, unix.R_OK|unix.X_OK),
		CheckDirectoryAccess("Destination directory", cfg.Paths.DestDir, unix.R_OK|unix.W_OK|unix.X_OK),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir, unix.R_OK|unix.W_OK|unix.X_OK),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir),
		CheckFreeSpace("Destination free space", cfg.Paths.DestDir),
	}

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		result := Result{Name: status.Name, Passed: status.Available}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNotifyEndpoint(ctx, cfg))
	}

	return results
}

// CheckNotifyEndpoint verifies the configured ntfy server answers at all, so a
// typo in the topic URL surfaces at startup rather than after the first encode.
func CheckNotifyEndpoint(ctx context.Context, cfg *config.Config) Result {
	endpoint := notifications.TopicURL(cfg.Notifications.NtfyTopic)

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: "Notification endpoint", Detail: fmt.Sprintf("%s (error: %v)", endpoint, err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: "Notification endpoint", Detail: fmt.Sprintf("%s (error: unreachable: %v)", endpoint, err)}
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return Result{Name: "Notification endpoint", Detail: fmt.Sprintf("%s (error: HTTP %d)", endpoint, resp.StatusCode)}
	}
	return Result{Name: "Notification endpoint", Passed: true, Detail: endpoint}
}

// Passed reports whether every result succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
