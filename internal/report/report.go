package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"transmirror/internal/reconcile"
	"transmirror/internal/scan"
)

// Item is one file entry in a report bucket.
type Item struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Summary carries the per-bucket counts.
type Summary struct {
	TotalSource int `json:"totalSource"`
	TotalDest   int `json:"totalDest"`
	Matched     int `json:"matched"`
	Missing     int `json:"missing"`
	Orphaned    int `json:"orphaned"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Buckets lists the files behind each non-matched count. Matched files are
// counted but not listed; on a healthy tree that list is the whole library.
type Buckets struct {
	Missing  []Item `json:"missing"`
	Orphaned []Item `json:"orphaned"`
	Skipped  []Item `json:"skipped"`
	Failed   []Item `json:"failed,omitempty"`
}

// Report is the comparison result in its serializable form.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Summary     Summary   `json:"summary"`
	Buckets     Buckets   `json:"buckets"`
}

// Build assembles a report from a tree snapshot and its classified buckets.
// Bucket ordering (descending size) is preserved from classification.
func Build(snap scan.Snapshot, buckets reconcile.Buckets) Report {
	return Report{
		GeneratedAt: snap.TakenAt,
		Summary: Summary{
			TotalSource: len(snap.Source),
			TotalDest:   len(snap.Dest),
			Matched:     len(buckets.Matched),
			Missing:     len(buckets.Missing),
			Orphaned:    len(buckets.Orphaned),
			Skipped:     len(buckets.Skipped),
			Failed:      len(buckets.Failed),
		},
		Buckets: Buckets{
			Missing:  items(buckets.Missing),
			Orphaned: items(buckets.Orphaned),
			Skipped:  items(buckets.Skipped),
			Failed:   items(buckets.Failed),
		},
	}
}

func items(entries []reconcile.Entry) []Item {
	out := make([]Item, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Item{Path: entry.Path, Size: entry.Size})
	}
	return out
}

// HasIssues reports whether the trees diverge in a way that needs action.
// Skipped files are an expected steady state and do not count.
func (r Report) HasIssues() bool {
	return r.Summary.Missing > 0 || r.Summary.Orphaned > 0 || r.Summary.Failed > 0
}

// WriteJSON emits the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV emits one row per bucketed file: bucket, path, size.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bucket", "path", "size"}); err != nil {
		return err
	}
	for _, group := range []struct {
		name  string
		items []Item
	}{
		{"missing", r.Buckets.Missing},
		{"orphaned", r.Buckets.Orphaned},
		{"skipped", r.Buckets.Skipped},
		{"failed", r.Buckets.Failed},
	} {
		for _, item := range group.items {
			if err := cw.Write([]string{group.name, item.Path, strconv.FormatInt(item.Size, 10)}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatSize renders a byte count for the text report.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
