// Package bootstrap implements HistoryBootstrap (C7): the one-shot
// wildcard query issued at subscriber startup to backfill history, gating
// live delivery behind the GlobalState wait flag until it resolves.
//
// Grounded on tools/replay_catalog/catalog.go's enumerate-then-sort shape
// (generalised from walking a replay directory to draining a query's
// replies) and checked against original_source's
// InitialRepliesHandler::drop, which clears the wait flag and flushes
// buffered samples unconditionally once the bootstrap query terminates,
// success or not.
package bootstrap

import (
	"context"
	"time"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/probe"
	"github.com/dspacecore/nbft/internal/recovery"
	"github.com/dspacecore/nbft/internal/router"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/dspacecore/nbft/internal/selector"
)

// Bootstrap runs the one-shot startup sequence: optionally query history,
// then release buffered live samples and start per-source periodic probing.
type Bootstrap struct {
	global              *router.Global
	querier             recovery.Querier
	prober              *probe.Prober
	logger              *logging.Logger
	subscriptionKeyExpr string
	target              config.QueryTarget
	timeout             time.Duration
	historyEnabled      bool
}

// New constructs a Bootstrap. prober may be nil, in which case Run starts no
// periodic probes (matches a zero Period — spec.md §6).
func New(global *router.Global, querier recovery.Querier, prober *probe.Prober, logger *logging.Logger, subscriptionKeyExpr string, target config.QueryTarget, timeout time.Duration, historyEnabled bool) *Bootstrap {
	if logger == nil {
		logger = logging.L()
	}
	return &Bootstrap{
		global:              global,
		querier:             querier,
		prober:              prober,
		logger:              logger,
		subscriptionKeyExpr: subscriptionKeyExpr,
		target:              target,
		timeout:             timeout,
		historyEnabled:      historyEnabled,
	}
}

// Run executes the bootstrap sequence. Callers must have already set the
// wait flag (spec.md §4.6 step 1, typically done by the builder before the
// live subscription is even opened) so that samples arriving concurrently
// with this call are buffered rather than delivered out of history order.
// Run always flushes and clears the wait flag on return, whether or not a
// history query was issued or it succeeded (spec.md §4.6 step 4,
// InitialRepliesHandler::drop's unconditional flush). The flush, the
// per-source probe start, and the wait-flag clear all happen inside
// Global.FlushAllAndClearWait's single critical section: clearing wait
// before the buffered backlog is drained would let a live sample that
// arrives in that gap jump the queue and be delivered ahead of older,
// still-buffered samples (spec.md §8's ascending per-source order).
func (b *Bootstrap) Run(ctx context.Context, deliver func(sample.Sample)) {
	if b == nil || b.global == nil {
		return
	}
	defer func() {
		b.global.FlushAllAndClearWait(deliver, func(sourceID string) {
			if b.prober != nil {
				b.prober.Start(ctx, sourceID)
			}
		})
	}()

	if !b.historyEnabled || b.querier == nil {
		return
	}

	sel := selector.History(b.subscriptionKeyExpr)
	onReply := func(s sample.Sample) {
		// spec.md §4.4: a reply that does not intersect the subscription's
		// key expression is dropped, not routed — accept_replies = Any
		// (spec.md §6) can legally return samples under a broader key
		// expression than the subscription itself.
		if !sample.Intersects(b.subscriptionKeyExpr, s.KeyExpr) {
			return
		}
		b.global.HandleSample(s, deliver)
	}

	queryCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.querier.Query(queryCtx, sel, b.target, b.timeout, onReply); err != nil {
		b.logger.Warn("history bootstrap query did not complete cleanly", logging.Error(err))
	}
}
