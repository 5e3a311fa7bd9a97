package reconcile

import (
	"time"

	"transmirror/internal/classify"
)

// Presence is the observed membership of one identity in both trees.
type Presence struct {
	Source        bool
	Dest          bool
	SourceModTime time.Time
	DestModTime   time.Time
}

// Stale reports whether the destination predates the source content. Equal
// timestamps are not stale: renames preserve content mtime and must not
// trigger a re-encode.
func (p Presence) Stale() bool {
	return p.Source && p.Dest && p.DestModTime.Before(p.SourceModTime)
}

// Decide is the reconciliation transition table. Both the live engine and the
// offline comparator derive actions exclusively through it so the two can
// never drift.
//
//	source  dest   classification   action
//	  Y      N     NeedsEncode      Encode
//	  Y      N     AlreadyLowRes    Skip
//	  Y      N     ProbeFailed      Noop (reported)
//	  Y      Y     (stale)          Encode
//	  Y      Y                      Noop
//	  N      Y                      Delete
//	  N      N                      Noop (caller garbage-collects)
func Decide(p Presence, c classify.Classification) ActionKind {
	switch {
	case p.Source && !p.Dest:
		switch c {
		case classify.NeedsEncode:
			return ActionEncode
		case classify.AlreadyLowRes:
			return ActionSkip
		default:
			return ActionNoop
		}
	case p.Source && p.Dest:
		if p.Stale() {
			return ActionEncode
		}
		return ActionNoop
	case !p.Source && p.Dest:
		return ActionDelete
	default:
		return ActionNoop
	}
}
