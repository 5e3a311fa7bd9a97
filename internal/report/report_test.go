package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"transmirror/internal/reconcile"
	"transmirror/internal/report"
	"transmirror/internal/scan"
)

func sampleReport() report.Report {
	snap := scan.Snapshot{
		Source: map[string]scan.FileInfo{
			"a": {}, "b": {}, "c": {},
		},
		Dest: map[string]scan.FileInfo{
			"a": {}, "z": {},
		},
		TakenAt: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	buckets := reconcile.Buckets{
		Matched:  []reconcile.Entry{{Identity: "a", Path: "/src/a.mkv", Size: 100}},
		Missing:  []reconcile.Entry{{Identity: "b", Path: "/src/b.mkv", Size: 9000}},
		Orphaned: []reconcile.Entry{{Identity: "z", Path: "/dst/z.mkv", Size: 50}},
		Skipped:  []reconcile.Entry{{Identity: "c", Path: "/src/c.avi", Size: 700}},
	}
	return report.Build(snap, buckets)
}

func TestBuildSummaryCounts(t *testing.T) {
	r := sampleReport()
	want := report.Summary{TotalSource: 3, TotalDest: 2, Matched: 1, Missing: 1, Orphaned: 1, Skipped: 1}
	if r.Summary != want {
		t.Fatalf("summary = %+v, want %+v", r.Summary, want)
	}
	if !r.HasIssues() {
		t.Fatal("missing and orphaned files are issues")
	}
}

func TestHasIssuesIgnoresSkipped(t *testing.T) {
	snap := scan.Snapshot{Source: map[string]scan.FileInfo{"c": {}}, Dest: map[string]scan.FileInfo{}}
	buckets := reconcile.Buckets{Skipped: []reconcile.Entry{{Identity: "c", Path: "/src/c.avi", Size: 700}}}
	if report.Build(snap, buckets).HasIssues() {
		t.Fatal("skipped-only trees are healthy")
	}
}

func TestWriteJSONSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded struct {
		Summary map[string]int `json:"summary"`
		Buckets struct {
			Missing []struct {
				Path string `json:"path"`
				Size int64  `json:"size"`
			} `json:"missing"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"totalSource", "totalDest", "matched", "missing", "orphaned", "skipped"} {
		if _, ok := decoded.Summary[key]; !ok {
			t.Fatalf("summary missing key %q in %s", key, buf.String())
		}
	}
	if len(decoded.Buckets.Missing) != 1 || decoded.Buckets.Missing[0].Path != "/src/b.mkv" || decoded.Buckets.Missing[0].Size != 9000 {
		t.Fatalf("missing bucket = %+v", decoded.Buckets.Missing)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "bucket,path,size" {
		t.Fatalf("header = %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("expected 3 data rows, got %d: %v", len(lines)-1, lines)
	}
	if lines[1] != "missing,/src/b.mkv,9000" {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
		3<<30 + 512<<20: "3.5 GiB",
	}
	for size, want := range cases {
		if got := report.FormatSize(size); got != want {
			t.Fatalf("FormatSize(%d) = %q, want %q", size, got, want)
		}
	}
}
