package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transmirror/internal/config"
)

func TestLoadDefaultsAndEnvOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SOURCE_FOLDER", filepath.Join(tempHome, "movies"))
	t.Setenv("DEST_FOLDER", filepath.Join(tempHome, "movies-720p"))
	t.Setenv("ENABLE_HW_ACCEL", "false")
	t.Setenv("ENCODING_QUALITY", "high")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.SourceDir != filepath.Join(tempHome, "movies") {
		t.Fatalf("unexpected source dir: %q", cfg.Paths.SourceDir)
	}
	if cfg.Paths.DestDir != filepath.Join(tempHome, "movies-720p") {
		t.Fatalf("unexpected dest dir: %q", cfg.Paths.DestDir)
	}
	if cfg.Encoding.HardwareAccel {
		t.Fatal("expected ENABLE_HW_ACCEL=false to disable hardware accel")
	}
	if cfg.Encoding.Quality != "HIGH" {
		t.Fatalf("expected quality HIGH from env, got %q", cfg.Encoding.Quality)
	}
	if cfg.Encoding.Engine != "ffmpeg" {
		t.Fatalf("unexpected default engine: %q", cfg.Encoding.Engine)
	}
	if cfg.Encoding.MaxHeight != 720 {
		t.Fatalf("unexpected default max height: %d", cfg.Encoding.MaxHeight)
	}
	if cfg.Scan.IntervalHours != 6 {
		t.Fatalf("unexpected default scan interval: %d", cfg.Scan.IntervalHours)
	}
	if cfg.Links.Suffix != " - 720p" {
		t.Fatalf("unexpected default link suffix: %q", cfg.Links.Suffix)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
source_dir = "` + filepath.Join(dir, "src") + `"
dest_dir = "` + filepath.Join(dir, "dst") + `"

[encoding]
engine = "drapto"
quality = "low"
codec = "av1"
workers = 2
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Encoding.Engine != "drapto" {
		t.Fatalf("unexpected engine: %q", cfg.Encoding.Engine)
	}
	if cfg.Encoding.Quality != "LOW" {
		t.Fatalf("expected quality normalized to LOW, got %q", cfg.Encoding.Quality)
	}
	if cfg.Encoding.Codec != "av1" {
		t.Fatalf("unexpected codec: %q", cfg.Encoding.Codec)
	}
	if cfg.Encoding.Workers != 2 {
		t.Fatalf("unexpected workers: %d", cfg.Encoding.Workers)
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"hardware", func(c *config.Config) { c.Encoding.Hardware = "amd" }, "encoding.hardware"},
		{"quality", func(c *config.Config) { c.Encoding.Quality = "ULTRA" }, "encoding.quality"},
		{"codec", func(c *config.Config) { c.Encoding.Codec = "vp9" }, "encoding.codec"},
		{"engine", func(c *config.Config) { c.Encoding.Engine = "handbrake" }, "encoding.engine"},
		{"same roots", func(c *config.Config) { c.Paths.DestDir = c.Paths.SourceDir }, "must differ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateRejectsBadIgnorePattern(t *testing.T) {
	cfg := config.Default()
	cfg.Scan.IgnorePatterns = []string{"[unclosed"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid regex")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(raw), "[encoding]") {
		t.Fatal("sample config missing [encoding] section")
	}
}
