package reconcile

import (
	"testing"
	"time"

	"transmirror/internal/classify"
)

func TestDecideTransitionTable(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	cases := []struct {
		name     string
		presence Presence
		class    classify.Classification
		want     ActionKind
	}{
		{"source only needs encode", Presence{Source: true}, classify.NeedsEncode, ActionEncode},
		{"source only already low res", Presence{Source: true}, classify.AlreadyLowRes, ActionSkip},
		{"source only probe failed", Presence{Source: true}, classify.ProbeFailed, ActionNoop},
		{"source only unclassified", Presence{Source: true}, classify.Unclassified, ActionNoop},
		{"both fresh", Presence{Source: true, Dest: true, SourceModTime: t1, DestModTime: t2}, classify.Unclassified, ActionNoop},
		{"both equal mtime", Presence{Source: true, Dest: true, SourceModTime: t1, DestModTime: t1}, classify.Unclassified, ActionNoop},
		{"both stale dest", Presence{Source: true, Dest: true, SourceModTime: t2, DestModTime: t1}, classify.Unclassified, ActionEncode},
		{"dest only", Presence{Dest: true}, classify.Unclassified, ActionDelete},
		{"neither", Presence{}, classify.Unclassified, ActionNoop},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.presence, tc.class); got != tc.want {
				t.Fatalf("Decide(%+v, %s) = %s, want %s", tc.presence, tc.class, got, tc.want)
			}
		})
	}
}

func TestStaleEqualTimestampsNotStale(t *testing.T) {
	now := time.Now()
	p := Presence{Source: true, Dest: true, SourceModTime: now, DestModTime: now}
	if p.Stale() {
		t.Fatal("equal timestamps must not be stale")
	}
}
