package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"transmirror/internal/classify"
	"transmirror/internal/logging"
	"transmirror/internal/pathmap"
	"transmirror/internal/probecache"
	"transmirror/internal/scan"
	"transmirror/internal/watch"
)

// item is the in-memory reconciliation state for one identity. All fields are
// owned by the engine goroutine.
type item struct {
	identity   string
	sourcePath string
	destPath   string
	sourceMod  time.Time
	sourceSize int64
	destMod    time.Time
	class      classify.Classification
	classMod   time.Time
	attempt    uint64
	inflight   bool
	failed     bool
	doneKind   ActionKind
	doneMod    time.Time
	seq        uint64
}

// Failure is a per-identity error surfaced through the status path.
type Failure struct {
	Identity string
	Message  string
}

// Stats aggregates engine activity counters.
type Stats struct {
	Items     int
	InFlight  int
	Encoded   int
	Skipped   int
	Deleted   int
	Failed    int
	ScanCount int
}

type snapshotUpdate struct {
	snap     scan.Snapshot
	startSeq uint64
}

// Engine is the reconciliation state machine. It is the only mutator of the
// item index; events, scan snapshots, and executor outcomes all funnel into
// one goroutine so a transition is never computed from a half-updated view.
type Engine struct {
	mapper     *pathmap.Mapper
	classifier classify.Classifier
	cache      *probecache.Store
	logger     *slog.Logger

	items     map[string]*item
	tombs     map[string]uint64
	seq       atomic.Uint64
	actions   chan Action
	outcomes  chan Outcome
	snapshots chan snapshotUpdate

	mu       sync.Mutex
	failures map[string]string
	stats    Stats
}

// New constructs an engine. The cache may be nil, in which case every
// derivation that needs a classification probes.
func New(mapper *pathmap.Mapper, classifier classify.Classifier, cache *probecache.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		mapper:     mapper,
		classifier: classifier,
		cache:      cache,
		logger:     logger,
		items:      make(map[string]*item),
		tombs:      make(map[string]uint64),
		actions:    make(chan Action, 128),
		outcomes:   make(chan Outcome, 128),
		snapshots:  make(chan snapshotUpdate, 1),
		failures:   make(map[string]string),
	}
}

// Actions returns the stream of instructions for the executor.
func (e *Engine) Actions() <-chan Action {
	return e.actions
}

// ResolveOutcome reports an executor result back to the engine.
func (e *Engine) ResolveOutcome(ctx context.Context, out Outcome) {
	select {
	case e.outcomes <- out:
	case <-ctx.Done():
	}
}

// SeqNow returns the current observation sequence number. Callers snapshot the
// trees after reading it so the merge can tell which in-memory items carry
// fresher live updates than the walk.
func (e *Engine) SeqNow() uint64 {
	return e.seq.Load()
}

// SubmitSnapshot hands a completed tree walk to the engine for merging.
func (e *Engine) SubmitSnapshot(ctx context.Context, snap scan.Snapshot, startSeq uint64) {
	select {
	case e.snapshots <- snapshotUpdate{snap: snap, startSeq: startSeq}:
	case <-ctx.Done():
	}
}

// Failures returns a copy of the currently failed identities.
func (e *Engine) Failures() []Failure {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Failure, 0, len(e.failures))
	for identity, message := range e.failures {
		out = append(out, Failure{Identity: identity, Message: message})
	}
	return out
}

// Snapshot of activity counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Run processes observations until the context is cancelled.
func (e *Engine) Run(ctx context.Context, events <-chan watch.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			e.handleEvent(ctx, event)
		case update := <-e.snapshots:
			e.mergeSnapshot(ctx, update)
		case out := <-e.outcomes:
			e.handleOutcome(ctx, out)
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, event watch.Event) {
	var (
		identity string
		ok       bool
	)
	switch event.Tree {
	case watch.Source:
		identity, ok = e.mapper.SourceIdentity(event.Path)
	case watch.Dest:
		identity, ok = e.mapper.DestIdentity(event.Path)
	}
	if !ok {
		return
	}

	it := e.ensure(identity)
	switch {
	case event.Tree == watch.Source && event.Op == watch.Added:
		it.sourcePath = event.Path
		if !event.ModTime.Equal(it.sourceMod) {
			// Content changed; any cached verdict or failure is void.
			it.class = classify.Unclassified
			it.failed = false
			e.clearFailure(identity)
		}
		it.sourceMod = event.ModTime
		it.sourceSize = event.Size
	case event.Tree == watch.Source && event.Op == watch.Removed:
		it.sourcePath = ""
		it.class = classify.Unclassified
	case event.Tree == watch.Dest && event.Op == watch.Added:
		it.destPath = event.Path
		it.destMod = event.ModTime
	case event.Tree == watch.Dest && event.Op == watch.Removed:
		it.destPath = ""
	}
	it.seq = e.seq.Add(1)
	e.derive(ctx, it)
}

func (e *Engine) handleOutcome(ctx context.Context, out Outcome) {
	it, ok := e.items[out.Identity]
	if !ok {
		return
	}
	if out.Attempt != it.attempt {
		// Superseded result; the action it belongs to was already abandoned.
		return
	}
	it.inflight = false
	it.seq = e.seq.Add(1)

	if out.Err != nil {
		it.failed = true
		e.recordFailure(out.Identity, out.Err)
		e.logger.Warn("action failed",
			logging.String(logging.FieldIdentity, out.Identity),
			logging.String(logging.FieldAction, string(out.Kind)),
			logging.Uint64(logging.FieldAttempt, out.Attempt),
			logging.Error(out.Err))
		return
	}

	e.clearFailure(out.Identity)
	it.doneKind = out.Kind
	it.doneMod = it.sourceMod
	switch out.Kind {
	case ActionEncode:
		it.destPath = out.DestPath
		it.destMod = out.DestModTime
		e.count(func(s *Stats) { s.Encoded++ })
	case ActionDelete:
		it.destPath = ""
		e.count(func(s *Stats) { s.Deleted++ })
	case ActionSkip:
		e.count(func(s *Stats) { s.Skipped++ })
	}
	e.derive(ctx, it)
}

func (e *Engine) mergeSnapshot(ctx context.Context, update snapshotUpdate) {
	union := make(map[string]struct{}, len(update.snap.Source)+len(update.snap.Dest))
	for identity := range update.snap.Source {
		union[identity] = struct{}{}
	}
	for identity := range update.snap.Dest {
		union[identity] = struct{}{}
	}

	for identity := range union {
		if tomb, ok := e.tombs[identity]; ok && tomb > update.startSeq {
			continue
		}
		it := e.ensure(identity)
		if it.seq > update.startSeq {
			// A live observation landed after the walk began; the walk's view
			// of this item may be older than what we already hold.
			continue
		}
		if source, ok := update.snap.Source[identity]; ok {
			it.sourcePath = source.Path
			if !source.ModTime.Equal(it.classMod) && !source.ModTime.Equal(it.sourceMod) {
				it.class = classify.Unclassified
			}
			it.sourceMod = source.ModTime
			it.sourceSize = source.Size
		} else {
			it.sourcePath = ""
			it.class = classify.Unclassified
		}
		if dest, ok := update.snap.Dest[identity]; ok {
			it.destPath = dest.Path
			it.destMod = dest.ModTime
		} else {
			it.destPath = ""
		}
		// The corrective scan is the retry point for failed items.
		it.failed = false
		e.clearFailure(identity)
		if it.class == classify.ProbeFailed {
			it.class = classify.Unclassified
		}
		it.seq = e.seq.Add(1)
		e.derive(ctx, it)
	}

	for identity, it := range e.items {
		if _, present := union[identity]; present {
			continue
		}
		if it.seq > update.startSeq || it.inflight {
			continue
		}
		it.sourcePath = ""
		it.destPath = ""
		it.seq = e.seq.Add(1)
		e.derive(ctx, it)
	}

	// Scans are serialized by the daemon, so tombstones older than this walk
	// have served their purpose.
	for identity, tomb := range e.tombs {
		if tomb <= update.startSeq {
			delete(e.tombs, identity)
		}
	}

	e.count(func(s *Stats) {
		s.ScanCount++
		s.Items = len(e.items)
	})
}

// derive re-evaluates one item against the transition table, classifying
// first when required, and issues at most one action.
func (e *Engine) derive(ctx context.Context, it *item) {
	if it.inflight {
		return
	}
	if it.sourcePath == "" && it.destPath == "" {
		delete(e.items, it.identity)
		// Tombstone so a scan that began before the removal cannot
		// resurrect the item from its stale view.
		e.tombs[it.identity] = it.seq
		if e.cache != nil {
			if err := e.cache.Delete(ctx, it.identity); err != nil {
				e.logger.Warn("drop cached classification", logging.String(logging.FieldIdentity, it.identity), logging.Error(err))
			}
		}
		e.clearFailure(it.identity)
		return
	}
	if it.failed {
		// Pending until the next scan clears it.
		return
	}

	if it.sourcePath != "" && it.destPath == "" && it.class == classify.Unclassified {
		e.classify(ctx, it)
		if it.failed {
			return
		}
	}

	kind := Decide(e.presence(it), it.class)
	if kind == ActionNoop {
		return
	}
	if kind == ActionSkip && it.doneKind == ActionSkip && it.doneMod.Equal(it.sourceMod) {
		return
	}

	it.attempt++
	it.inflight = true
	action := newAction(it.identity, kind, it.attempt)
	action.SourcePath = it.sourcePath
	action.SourceSize = it.sourceSize
	switch kind {
	case ActionEncode:
		action.DestPath = e.mapper.ToDestination(it.sourcePath)
	case ActionDelete:
		action.DestPath = it.destPath
	}

	e.logger.Info("action issued",
		logging.String(logging.FieldIdentity, it.identity),
		logging.String(logging.FieldAction, string(kind)),
		logging.Uint64(logging.FieldAttempt, it.attempt))

	e.send(ctx, it, action)
}

// send delivers an action to the executor. While the action channel is full it
// keeps consuming outcome reports: the executor resolves outcomes on its
// consume loop, so a bulk merge that only waited on the send would deadlock
// against an executor waiting on its outcome being accepted. No outcome for
// the action being sent can arrive here, because the executor has not
// received it yet.
func (e *Engine) send(ctx context.Context, it *item, action Action) {
	for {
		select {
		case e.actions <- action:
			return
		case out := <-e.outcomes:
			e.handleOutcome(ctx, out)
		case <-ctx.Done():
			// Shutting down; roll the issue back so a restart re-derives cleanly.
			it.attempt--
			it.inflight = false
			return
		}
	}
}

func (e *Engine) classify(ctx context.Context, it *item) {
	mtime := it.sourceMod.Unix()
	if e.cache != nil {
		if cached, ok, err := e.cache.Get(ctx, it.identity, mtime); err != nil {
			e.logger.Warn("read cached classification", logging.String(logging.FieldIdentity, it.identity), logging.Error(err))
		} else if ok {
			it.class = cached
			it.classMod = it.sourceMod
			return
		}
	}

	verdict, err := e.classifier.Classify(ctx, it.sourcePath)
	it.class = verdict
	it.classMod = it.sourceMod
	if err != nil {
		it.failed = true
		e.recordFailure(it.identity, err)
		e.logger.Warn("probe failed",
			logging.String(logging.FieldIdentity, it.identity),
			logging.String(logging.FieldPath, it.sourcePath),
			logging.Error(err))
		return
	}
	if e.cache != nil {
		if err := e.cache.Put(ctx, it.identity, mtime, verdict); err != nil {
			e.logger.Warn("cache classification", logging.String(logging.FieldIdentity, it.identity), logging.Error(err))
		}
	}
}

func (e *Engine) presence(it *item) Presence {
	return Presence{
		Source:        it.sourcePath != "",
		Dest:          it.destPath != "",
		SourceModTime: it.sourceMod,
		DestModTime:   it.destMod,
	}
}

func (e *Engine) ensure(identity string) *item {
	if it, ok := e.items[identity]; ok {
		return it
	}
	it := &item{identity: identity}
	e.items[identity] = it
	return it
}

func (e *Engine) recordFailure(identity string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, known := e.failures[identity]; !known {
		e.stats.Failed++
	}
	e.failures[identity] = err.Error()
}

func (e *Engine) clearFailure(identity string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, known := e.failures[identity]; known {
		e.stats.Failed--
		delete(e.failures, identity)
	}
}

func (e *Engine) count(mutate func(*Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(&e.stats)
	inflight := 0
	for _, it := range e.items {
		if it.inflight {
			inflight++
		}
	}
	e.stats.InFlight = inflight
	e.stats.Items = len(e.items)
}
