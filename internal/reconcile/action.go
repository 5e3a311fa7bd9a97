package reconcile

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind instructs the executor what to do for one identity.
type ActionKind string

const (
	ActionEncode ActionKind = "encode"
	ActionDelete ActionKind = "delete"
	ActionSkip   ActionKind = "skip"
	ActionNoop   ActionKind = "noop"
)

// Action is one instruction emitted by the engine. Attempt increases
// monotonically per identity and only after the previous action for that
// identity resolved, so the executor never holds two concurrent actions for
// the same identity.
type Action struct {
	ID         string
	Identity   string
	Kind       ActionKind
	Attempt    uint64
	SourcePath string
	DestPath   string
	SourceSize int64
}

func newAction(identity string, kind ActionKind, attempt uint64) Action {
	return Action{
		ID:       uuid.NewString(),
		Identity: identity,
		Kind:     kind,
		Attempt:  attempt,
	}
}

// Outcome reports how an action resolved. DestPath and DestModTime are set on
// successful encodes.
type Outcome struct {
	Identity    string
	Attempt     uint64
	Kind        ActionKind
	DestPath    string
	DestModTime time.Time
	Err         error
}
