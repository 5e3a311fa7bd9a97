package reconcile

import (
	"context"
	"testing"
	"time"

	"transmirror/internal/classify"
	"transmirror/internal/scan"
)

func TestClassifySnapshotBuckets(t *testing.T) {
	mod := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	snap := scan.Snapshot{
		Source: map[string]scan.FileInfo{
			"new/big":  {Path: "/src/new/big.mkv", Rel: "new/big.mkv", Size: 9000, ModTime: mod},
			"low/old":  {Path: "/src/low/old.avi", Rel: "low/old.avi", Size: 500, ModTime: mod},
			"pair/ok":  {Path: "/src/pair/ok.mp4", Rel: "pair/ok.mp4", Size: 3000, ModTime: mod},
			"bad/file": {Path: "/src/bad/file.mkv", Rel: "bad/file.mkv", Size: 10, ModTime: mod},
		},
		Dest: map[string]scan.FileInfo{
			"pair/ok": {Path: "/dst/pair/ok.mkv", Rel: "pair/ok.mkv", Size: 1000, ModTime: mod.Add(time.Hour)},
			"gone":    {Path: "/dst/gone.mkv", Rel: "gone.mkv", Size: 77, ModTime: mod},
		},
	}
	classifier := &stubClassifier{
		verdicts: map[string]classify.Classification{
			"/src/new/big.mkv": classify.NeedsEncode,
			"/src/low/old.avi": classify.AlreadyLowRes,
		},
		failing: map[string]bool{"/src/bad/file.mkv": true},
	}

	buckets, err := ClassifySnapshot(context.Background(), snap, classifier)
	if err != nil {
		t.Fatalf("ClassifySnapshot failed: %v", err)
	}

	expect := func(name string, got []Entry, identity string) {
		t.Helper()
		if len(got) != 1 || got[0].Identity != identity {
			t.Fatalf("%s bucket = %+v, want single entry %q", name, got, identity)
		}
	}
	expect("missing", buckets.Missing, "new/big")
	expect("skipped", buckets.Skipped, "low/old")
	expect("matched", buckets.Matched, "pair/ok")
	expect("orphaned", buckets.Orphaned, "gone")
	expect("failed", buckets.Failed, "bad/file")

	if buckets.Orphaned[0].Path != "/dst/gone.mkv" {
		t.Fatalf("orphan entry should carry the destination path, got %q", buckets.Orphaned[0].Path)
	}
}

// Any bucketed snapshot must agree with what the live engine would do for the
// same trees.
func TestClassifySnapshotMatchesEngine(t *testing.T) {
	ctx := context.Background()
	mod := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	snap := scan.Snapshot{
		Source: map[string]scan.FileInfo{
			"a": {Path: "/src/a.mp4", Rel: "a.mp4", Size: 100, ModTime: mod},
			"b": {Path: "/src/b.avi", Rel: "b.avi", Size: 200, ModTime: mod},
		},
		Dest: map[string]scan.FileInfo{
			"c": {Path: "/dst/c.mkv", Rel: "c.mkv", Size: 50, ModTime: mod},
		},
	}
	verdicts := map[string]classify.Classification{
		"/src/a.mp4": classify.NeedsEncode,
		"/src/b.avi": classify.AlreadyLowRes,
	}

	buckets, err := ClassifySnapshot(ctx, snap, &stubClassifier{verdicts: verdicts})
	if err != nil {
		t.Fatalf("ClassifySnapshot failed: %v", err)
	}

	e := newTestEngine(&stubClassifier{verdicts: verdicts})
	e.mergeSnapshot(ctx, snapshotUpdate{snap: snap, startSeq: e.SeqNow()})
	actions := drainActions(t, e)

	kinds := make(map[string]ActionKind, len(actions))
	for _, action := range actions {
		kinds[action.Identity] = action.Kind
	}
	if len(buckets.Missing) != 1 || kinds[buckets.Missing[0].Identity] != ActionEncode {
		t.Fatalf("missing bucket and engine disagree: %+v vs %+v", buckets.Missing, kinds)
	}
	if len(buckets.Skipped) != 1 || kinds[buckets.Skipped[0].Identity] != ActionSkip {
		t.Fatalf("skipped bucket and engine disagree: %+v vs %+v", buckets.Skipped, kinds)
	}
	if len(buckets.Orphaned) != 1 || kinds[buckets.Orphaned[0].Identity] != ActionDelete {
		t.Fatalf("orphaned bucket and engine disagree: %+v vs %+v", buckets.Orphaned, kinds)
	}
}
