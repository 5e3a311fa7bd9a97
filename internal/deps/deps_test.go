package deps

import (
	"os"
	"path/filepath"
	"testing"

	"transmirror/internal/config"
)

func TestRequirementsFollowEngine(t *testing.T) {
	cfg := config.Default()

	cfg.Encoding.Engine = "ffmpeg"
	reqs := Requirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("ffmpeg engine requirements = %d, want 2", len(reqs))
	}

	cfg.Encoding.Engine = "drapto"
	reqs = Requirements(&cfg)
	if len(reqs) != 1 || reqs[0].Name != "FFprobe" {
		t.Fatalf("drapto engine requirements = %+v", reqs)
	}
}

func TestCheckBinaries(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fakeprobe")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	statuses := CheckBinaries([]Requirement{
		{Name: "Present", Command: bin},
		{Name: "Absent", Command: filepath.Join(dir, "nope")},
		{Name: "Blank", Command: "  "},
	})
	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("existing binary unavailable: %s", statuses[0].Detail)
	}
	if statuses[1].Available {
		t.Fatal("missing binary reported available")
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("blank command status = %+v", statuses[2])
	}
}
