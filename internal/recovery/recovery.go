// Package recovery implements the RecoveryQuerier (C5): issuing the
// range-scoped recovery query a reactive gap or a periodic probe requests,
// and applying the termination policy that turns an exhausted or failed
// query into either a delivered backfill or a logged, permanent loss.
//
// Grounded on internal/events/stream.go's replay-on-gap retry path,
// generalised from a fixed replay-log lookup to an external live query, and
// checked against original_source/zenoh-ext/src/nbftreliable_subscriber.rs's
// RepliesHandler::drop (the reactive path) and InitialRepliesHandler::drop
// (the bootstrap path, mirrored in internal/bootstrap instead).
package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/router"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/dspacecore/nbft/internal/selector"
)

// ErrQueryTimeout is returned by a Querier when no reply arrived within the
// requested timeout (spec.md §7 error taxonomy: recovered internally, never
// surfaced to the consumer).
var ErrQueryTimeout = errors.New("recovery: query timed out")

// ErrQueryTransportFailure is returned by a Querier when the underlying
// transport could not complete the query (spec.md §7: recovered internally).
var ErrQueryTransportFailure = errors.New("recovery: query transport failure")

// Querier is the external collaborator that actually issues a selector query
// against the pub/sub session and invokes onReply once per received sample,
// in whatever order the transport delivers them. Implementations live under
// internal/transport.
type Querier interface {
	Query(ctx context.Context, sel string, target config.QueryTarget, timeout time.Duration, onReply func(sample.Sample)) error
}

// Selector renders the recovery-query selector requesting every sample from
// sourceID starting at firstMissing (spec.md §6 "Recovery query selector").
func Selector(sourceKeyExpr, subscriptionKeyExpr, sourceID string, firstMissing uint64) string {
	return selector.Recovery(sourceKeyExpr+"/"+sourceID, subscriptionKeyExpr, selector.OpenEnded(firstMissing))
}

// Launcher is bound to one subscriber's shared state and config at
// construction; Launch is called once per recovery need (reactive gap or
// periodic probe) and is safe to call concurrently for distinct sources.
type Launcher struct {
	global              *router.Global
	querier             Querier
	logger              *logging.Logger
	subscriptionKeyExpr string
	sourceKeyExprPrefix string
	target              config.QueryTarget
	timeout             time.Duration
}

// NewLauncher constructs a Launcher. sourceKeyExprPrefix is the key-expression
// segment identifying the publisher-id axis (e.g. "src"), so that the
// rendered selector is "<prefix>/<sourceID>/<subscriptionKeyExpr>?_sn=...".
func NewLauncher(global *router.Global, querier Querier, logger *logging.Logger, sourceKeyExprPrefix, subscriptionKeyExpr string, target config.QueryTarget, timeout time.Duration) *Launcher {
	if logger == nil {
		logger = logging.L()
	}
	return &Launcher{
		global:              global,
		querier:             querier,
		logger:              logger,
		subscriptionKeyExpr: subscriptionKeyExpr,
		sourceKeyExprPrefix: sourceKeyExprPrefix,
		target:              target,
		timeout:             timeout,
	}
}

// Launch issues a recovery query for sourceID starting at firstMissing,
// routes every reply through deliver (the router's HandleSample, so replies
// re-enter ordering/dedup the same as live samples), and applies the
// termination policy: on success, error, or timeout the in-flight counter is
// decremented and, unless the bootstrap wait flag is set, any samples still
// buffered past the query are drained and logged as PermanentLoss
// (spec.md §4.4, §7). The caller must not hold the
// router's mutex when calling Launch (spec.md §5).
func (l *Launcher) Launch(ctx context.Context, sourceID string, firstMissing uint64, deliver func(sample.Sample)) {
	if l == nil || l.global == nil || l.querier == nil {
		return
	}

	sel := Selector(l.sourceKeyExprPrefix, l.subscriptionKeyExpr, sourceID, firstMissing)
	l.global.IncPendingQueries(sourceID)

	queryCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	onReply := func(s sample.Sample) {
		// spec.md §4.4: a reply that does not intersect the subscription's
		// key expression is dropped, not routed — accept_replies = Any
		// (spec.md §6) can legally return samples under a broader key
		// expression than the subscription itself.
		if !sample.Intersects(l.subscriptionKeyExpr, s.KeyExpr) {
			return
		}
		l.global.HandleSample(s, deliver)
	}

	err := l.querier.Query(queryCtx, sel, l.target, l.timeout, onReply)
	l.global.DecPendingQueries(sourceID)

	result := l.global.FlushSource(sourceID, deliver)
	if !result.Drained {
		return
	}

	//1.- Anything still pending once the query has terminated could not be
	// recovered; flushing it unblocks the window but the gap is permanent.
	fields := []logging.Field{
		logging.String("source_id", sourceID),
		logging.Int64("first", int64(result.First)),
		logging.Int64("last", int64(result.Last)),
		logging.Int("delivered", result.Delivered),
	}
	switch {
	case err == nil:
		l.logger.Warn("recovery query terminated with unrecovered gap", fields...)
	case errors.Is(err, ErrQueryTimeout):
		l.logger.Warn("recovery query timed out, permanent loss", fields...)
	default:
		l.logger.Warn("recovery query failed, permanent loss", append(fields, logging.Error(err))...)
	}
}
