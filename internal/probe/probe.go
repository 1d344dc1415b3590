// Package probe implements PeriodicProbe (C6): a per-source ticker that
// issues a catch-up recovery query on a fixed cadence, so a source that stops
// publishing mid-gap (no further samples to trigger a reactive query) is
// still eventually recovered.
//
// Grounded on internal/timesync/service.go's StreamTimeSync ticker loop,
// generalised from a single client-scoped stream to one goroutine per
// observed source, and checked against original_source's PeriodicQuery.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/dspacecore/nbft/internal/recovery"
	"github.com/dspacecore/nbft/internal/router"
	"github.com/dspacecore/nbft/internal/sample"
)

// Prober runs one ticker goroutine per source, each issuing a recovery query
// scoped to "everything after the last delivered sequence number" on every
// tick. A period of zero or less disables probing entirely (spec.md §6,
// Period is optional).
type Prober struct {
	mu       sync.Mutex
	global   *router.Global
	launcher *recovery.Launcher
	period   time.Duration
	deliver  func(sample.Sample)
	running  map[string]context.CancelFunc
}

// New constructs a Prober. deliver is the same delivery callback the router
// and recovery launcher use, so probe-driven replies re-enter the same
// ordering and dedup path as every other sample.
func New(global *router.Global, launcher *recovery.Launcher, period time.Duration, deliver func(sample.Sample)) *Prober {
	return &Prober{
		global:   global,
		launcher: launcher,
		period:   period,
		deliver:  deliver,
		running:  make(map[string]context.CancelFunc),
	}
}

// Start begins probing sourceID, unless probing is disabled (period <= 0) or
// already running for this source (spec.md §4.5: idempotent per-source
// start, typically invoked once per NewSource Effect).
func (p *Prober) Start(ctx context.Context, sourceID string) {
	if p == nil || p.period <= 0 {
		return
	}
	p.mu.Lock()
	if _, ok := p.running[sourceID]; ok {
		p.mu.Unlock()
		return
	}
	probeCtx, cancel := context.WithCancel(ctx)
	p.running[sourceID] = cancel
	p.mu.Unlock()

	go p.run(probeCtx, sourceID)
}

// Stop cancels sourceID's probe, if one is running.
func (p *Prober) Stop(sourceID string) {
	p.mu.Lock()
	cancel, ok := p.running[sourceID]
	if ok {
		delete(p.running, sourceID)
	}
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every running probe.
func (p *Prober) StopAll() {
	p.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(p.running))
	for id, cancel := range p.running {
		cancels = append(cancels, cancel)
		delete(p.running, id)
	}
	p.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (p *Prober) run(ctx context.Context, sourceID string) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			//1.- A source with nothing delivered yet has no catch-up point;
			// wait for either a live sample or the reactive path to seed one
			// rather than unwrapping a nil LastDelivered.
			last, ok := p.global.LastDelivered(sourceID)
			if !ok {
				continue
			}
			p.launcher.Launch(ctx, sourceID, last+1, p.deliver)
		}
	}
}
