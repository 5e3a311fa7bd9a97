package reconcile

import (
	"context"
	"sort"

	"transmirror/internal/classify"
	"transmirror/internal/scan"
)

// Entry is one file in a comparison bucket.
type Entry struct {
	Identity string
	Path     string
	Size     int64
}

// Buckets is the offline comparison result. Each identity from either tree
// lands in exactly one bucket.
type Buckets struct {
	Matched  []Entry
	Missing  []Entry
	Orphaned []Entry
	Skipped  []Entry
	Failed   []Entry
}

// ClassifySnapshot buckets a tree snapshot through the same transition table
// the live engine uses. Encode maps to Missing, Delete to Orphaned, Skip to
// Skipped; a Noop is Matched unless the file could not be classified at all,
// which lands in Failed.
func ClassifySnapshot(ctx context.Context, snap scan.Snapshot, classifier classify.Classifier) (Buckets, error) {
	union := make(map[string]struct{}, len(snap.Source)+len(snap.Dest))
	for identity := range snap.Source {
		union[identity] = struct{}{}
	}
	for identity := range snap.Dest {
		union[identity] = struct{}{}
	}

	var buckets Buckets
	for identity := range union {
		if err := ctx.Err(); err != nil {
			return Buckets{}, err
		}
		source, hasSource := snap.Source[identity]
		dest, hasDest := snap.Dest[identity]

		presence := Presence{Source: hasSource, Dest: hasDest}
		entry := Entry{Identity: identity}
		if hasSource {
			presence.SourceModTime = source.ModTime
			entry.Path = source.Path
			entry.Size = source.Size
		} else {
			entry.Path = dest.Path
			entry.Size = dest.Size
		}
		if hasDest {
			presence.DestModTime = dest.ModTime
		}

		verdict := classify.Unclassified
		if hasSource && !hasDest {
			v, err := classifier.Classify(ctx, source.Path)
			if err != nil {
				buckets.Failed = append(buckets.Failed, entry)
				continue
			}
			verdict = v
		}

		switch Decide(presence, verdict) {
		case ActionEncode:
			buckets.Missing = append(buckets.Missing, entry)
		case ActionDelete:
			buckets.Orphaned = append(buckets.Orphaned, entry)
		case ActionSkip:
			buckets.Skipped = append(buckets.Skipped, entry)
		default:
			buckets.Matched = append(buckets.Matched, entry)
		}
	}

	for _, bucket := range []*[]Entry{&buckets.Matched, &buckets.Missing, &buckets.Orphaned, &buckets.Skipped, &buckets.Failed} {
		sortEntries(*bucket)
	}
	return buckets, nil
}

// sortEntries orders a bucket largest first so the costliest gaps lead the
// report, with path as the tiebreak for stable output.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Size != entries[j].Size {
			return entries[i].Size > entries[j].Size
		}
		return entries[i].Path < entries[j].Path
	})
}
