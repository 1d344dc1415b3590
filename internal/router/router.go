// Package router implements PerSourceState (C3) and the SampleRouter (C4):
// the per-publisher reorder buffer and the dispatch that decides, for each
// arriving sample, whether to deliver, buffer, or flag a recovery query.
//
// Grounded on internal/events/stream.go's subscriber-state map, generalised
// from an ack-windowed event log keyed by subscriber id to a
// reorder-windowed reassembly state keyed by source_id, and checked line by
// line against zenoh-ext's handle_sample in
// original_source/zenoh-ext/src/nbftreliable_subscriber.rs.
package router

import (
	"sort"
	"sync"

	"github.com/dspacecore/nbft/internal/sample"
)

// State is the per-source reorder window (spec.md §3 PerSourceState).
type State struct {
	LastDelivered  *uint64
	PendingQueries uint32
	Pending        map[uint64]sample.Sample
}

// FlushResult summarises a drain of a source's pending samples, whether
// triggered by query termination (internal/recovery) or a window-overflow
// loss (this package).
type FlushResult struct {
	SourceID  string
	First     uint64
	Last      uint64
	Delivered int
	Drained   bool
}

// Effect reports what HandleSample learned about the affected source so the
// caller can act on it outside the global lock (spec.md §5: "the mutex must
// not be held while issuing a recovery query").
type Effect struct {
	// SourceID is empty when the sample carried no source_sn (spec.md §4.3
	// step 1) — "no state affected".
	SourceID string
	// NewSource reports whether this is the first sample ever observed from
	// SourceID; callers use it to start a periodic probe.
	NewSource bool
	// NeedsQuery reports that a reactive recovery query should be launched:
	// a gap is buffered and no query is already in flight for this source.
	NeedsQuery bool
	// FirstMissing is the first sequence number the reactive query should
	// request, valid only when NeedsQuery is true.
	FirstMissing uint64
	// WindowOverflow is non-nil when the per-source pending window exceeded
	// its configured bound; the oldest-as-lost policy already ran (the
	// pending set has been drained and delivered by the time Effect is
	// returned) and the caller should log the loss.
	WindowOverflow *FlushResult
}

// Global is the shared, mutex-serialised source-state map plus the
// history-bootstrap wait flag (spec.md §3 GlobalState). A single coarse
// mutex covers the whole map: the router frequently inserts new keys and
// must coordinate with periodic-timer registration, and per-source locking
// would not simplify that coordination (spec.md §9).
type Global struct {
	mu         sync.Mutex
	wait       bool
	sources    map[string]*State
	maxPending int
}

// NewGlobal constructs a Global. maxPending bounds the per-source pending
// window; 0 means unbounded (spec.md §9 "Open question — window bound": a
// bound is not prescribed, so this repo exposes one and documents the
// trigger in DESIGN.md).
func NewGlobal(maxPending int) *Global {
	return &Global{sources: make(map[string]*State), maxPending: maxPending}
}

// SetWait sets or clears the history-bootstrap wait flag.
func (g *Global) SetWait(wait bool) {
	g.mu.Lock()
	g.wait = wait
	g.mu.Unlock()
}

// Wait reports the current bootstrap wait flag.
func (g *Global) Wait() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wait
}

// IncPendingQueries increments the pending-query counter for sourceID,
// creating its state if necessary. Callers hold no lock; this method takes
// the lock itself.
func (g *Global) IncPendingQueries(sourceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stateLocked(sourceID)
	g.sources[sourceID].PendingQueries++
}

// DecPendingQueries decrements the pending-query counter for sourceID. It is
// a no-op if sourceID is unknown or already at zero.
func (g *Global) DecPendingQueries(sourceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.sources[sourceID]
	if !ok || state.PendingQueries == 0 {
		return
	}
	state.PendingQueries--
}

// PendingLen reports how many samples are currently buffered for sourceID.
func (g *Global) PendingLen(sourceID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.sources[sourceID]
	if !ok {
		return 0
	}
	return len(state.Pending)
}

// HandleSample implements spec.md §4.3's dispatch. deliver is invoked with
// the global mutex held — by design (spec.md §5): consumers needing
// unbounded processing must hand off to their own queue.
func (g *Global) HandleSample(s sample.Sample, deliver func(sample.Sample)) Effect {
	if !s.Source.HasSN() {
		//1.- Publishers that opt out of reliability (or internal samples)
		// bypass per-source state entirely.
		g.mu.Lock()
		deliver(s)
		g.mu.Unlock()
		return Effect{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	sourceID := s.Source.ID
	sourceSN := *s.Source.SN
	state, existed := g.sources[sourceID]
	if !existed {
		state = &State{Pending: make(map[uint64]sample.Sample)}
		g.sources[sourceID] = state
	}

	effect := Effect{SourceID: sourceID, NewSource: !existed}

	if g.wait {
		state.Pending[sourceSN] = s.Clone()
		return effect
	}

	switch {
	case state.LastDelivered != nil && sourceSN != *state.LastDelivered+1:
		if sourceSN > *state.LastDelivered {
			state.Pending[sourceSN] = s.Clone()
			if overflow := g.enforceWindowLocked(sourceID, state, deliver); overflow != nil {
				effect.WindowOverflow = overflow
			}
		}
		// else: duplicate or out-of-window, dropped silently.
	default:
		deliver(s)
		last := sourceSN
		state.LastDelivered = &last
		//2.- Drain consecutive successors already buffered for this source.
		for {
			next, ok := state.Pending[last+1]
			if !ok {
				break
			}
			delete(state.Pending, last+1)
			deliver(next)
			last++
			state.LastDelivered = &last
		}
	}

	if state.PendingQueries == 0 && len(state.Pending) > 0 {
		effect.NeedsQuery = true
		first := uint64(0)
		if state.LastDelivered != nil {
			first = *state.LastDelivered + 1
		}
		effect.FirstMissing = first
	}

	return effect
}

// enforceWindowLocked drains the whole pending set, as if the in-flight
// query for this source had just terminated with an unrecoverable gap
// (spec.md §4.4, §9): the oldest buffered sample is unrecoverable, and
// letting it block every newer sample behind it is worse than reporting a
// measurable loss.
func (g *Global) enforceWindowLocked(sourceID string, state *State, deliver func(sample.Sample)) *FlushResult {
	if g.maxPending <= 0 || len(state.Pending) <= g.maxPending {
		return nil
	}
	result := g.drainLocked(sourceID, state, deliver)
	return &result
}

// FlushSource drains sourceID's pending samples in ascending order,
// delivering each and advancing LastDelivered to the highest drained
// sequence number. Used by internal/recovery on query termination
// (spec.md §4.4) and returns Drained=false when there was nothing to flush
// or the bootstrap wait flag is set (the bootstrap flush drains it then).
func (g *Global) FlushSource(sourceID string, deliver func(sample.Sample)) FlushResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.sources[sourceID]
	if !ok || len(state.Pending) == 0 || g.wait {
		return FlushResult{SourceID: sourceID}
	}
	return g.drainLocked(sourceID, state, deliver)
}

// FlushAll drains every known source's pending samples in ascending
// per-source order (spec.md §4.6 step 4, history bootstrap completion).
// Cross-source order is the deterministic source-id lexical order; spec.md
// does not constrain it ("across sources: no ordering guarantee").
func (g *Global) FlushAll(deliver func(sample.Sample)) map[string]FlushResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make(map[string]FlushResult)
	for _, id := range g.sortedSourceIDsLocked() {
		state := g.sources[id]
		if len(state.Pending) == 0 {
			continue
		}
		results[id] = g.drainLocked(id, state, deliver)
	}
	return results
}

// FlushAllAndClearWait drains every known source (as FlushAll does),
// invokes onSourceReady for every source seen — whether or not it had
// anything pending — and only then clears the wait flag, all inside a
// single critical section (spec.md §4.6 step 4: drain, then start
// per-source probing, then clear wait; mirrors
// InitialRepliesHandler::drop in original_source, which flushes and flips
// *wait = false atomically). Doing this under one lock closes the window
// a separate FlushAll-then-SetWait(false) pair leaves open: a live sample
// arriving between the two calls would see wait already false, take the
// ordinary dispatch path, and get delivered ahead of the still-buffered
// backlog — then the deferred flush would regress LastDelivered back
// below it.
func (g *Global) FlushAllAndClearWait(deliver func(sample.Sample), onSourceReady func(sourceID string)) map[string]FlushResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make(map[string]FlushResult)
	for _, id := range g.sortedSourceIDsLocked() {
		state := g.sources[id]
		if len(state.Pending) > 0 {
			results[id] = g.drainLocked(id, state, deliver)
		}
		if onSourceReady != nil {
			onSourceReady(id)
		}
	}
	g.wait = false
	return results
}

// LastDelivered reports the highest sequence number delivered for sourceID
// and whether anything has been delivered yet. internal/probe uses this to
// scope its periodic catch-up query; an unknown or never-delivered source
// reports ok=false rather than panicking (original_source's PeriodicQuery
// unwraps this unconditionally and can panic on a source with no prior
// delivery — this repo guards the case instead).
func (g *Global) LastDelivered(sourceID string) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.sources[sourceID]
	if !ok || state.LastDelivered == nil {
		return 0, false
	}
	return *state.LastDelivered, true
}

// SourceIDs returns every source_id observed so far, in a deterministic
// order.
func (g *Global) SourceIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sortedSourceIDsLocked()
}

func (g *Global) sortedSourceIDsLocked() []string {
	ids := make([]string, 0, len(g.sources))
	for id := range g.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Global) stateLocked(sourceID string) *State {
	state, ok := g.sources[sourceID]
	if !ok {
		state = &State{Pending: make(map[uint64]sample.Sample)}
		g.sources[sourceID] = state
	}
	return state
}

func (g *Global) drainLocked(sourceID string, state *State, deliver func(sample.Sample)) FlushResult {
	keys := make([]uint64, 0, len(state.Pending))
	for k := range state.Pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	first, last := keys[0], keys[len(keys)-1]
	for _, k := range keys {
		s := state.Pending[k]
		delete(state.Pending, k)
		deliver(s)
		v := k
		state.LastDelivered = &v
	}
	return FlushResult{SourceID: sourceID, First: first, Last: last, Delivered: len(keys), Drained: true}
}
