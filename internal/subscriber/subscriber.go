// Package subscriber implements the SubscriberBuilder (C8): a thin
// configuration carrier with no behavior contracts of its own, whose
// Build wires PerSourceState/SampleRouter, RecoveryQuerier, PeriodicProbe,
// and HistoryBootstrap into one running Subscriber.
//
// Grounded on internal/config's flat-struct-plus-validation shape for the
// builder fields, and on main.go / internal/events's
// context-cancellation-is-the-single-shutdown-signal idiom for
// Subscriber.Close, sync.Once-guarded like events.Subscription.Close.
package subscriber

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dspacecore/nbft/internal/bootstrap"
	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/probe"
	"github.com/dspacecore/nbft/internal/recovery"
	"github.com/dspacecore/nbft/internal/router"
	"github.com/dspacecore/nbft/internal/sample"
)

// ErrKeyExprRequired is returned by Build when no subscription key
// expression was configured.
var ErrKeyExprRequired = errors.New("subscriber: key expression must be set")

// ErrLiveSubscriberRequired is returned by Build when Deps carries no live
// subscription collaborator.
var ErrLiveSubscriberRequired = errors.New("subscriber: deps.LiveSubscriber must be set")

// ErrQuerierRequired is returned by Build when Deps carries no recovery
// query collaborator.
var ErrQuerierRequired = errors.New("subscriber: deps.Querier must be set")

// Subscription is the handle a LiveSubscriber returns for an active
// declaration (external collaborator, spec.md §1). It is an alias so that
// adapters returning a plain interface{ Close() error } satisfy
// LiveSubscriber without importing this package.
type Subscription = interface {
	Close() error
}

// LiveSubscriber declares a live subscription against the pub/sub session,
// invoking callback for every sample that matches keyExpr under the given
// reliability and origin filters (external collaborator, spec.md §1, §6).
type LiveSubscriber interface {
	Declare(ctx context.Context, keyExpr string, reliability config.Reliability, origin config.Origin, callback func(sample.Sample)) (Subscription, error)
}

// Deps collects every external collaborator and identifier Build needs.
type Deps struct {
	LiveSubscriber LiveSubscriber
	Querier        recovery.Querier
	Logger         *logging.Logger

	// SubscriptionKeyExpr is the key expression the live subscription
	// declares and every query (recovery, probe, history) scopes itself to.
	SubscriptionKeyExpr string
	// SourceKeyExprPrefix identifies the publisher-id axis for recovery and
	// probe selectors (spec.md §6, e.g. "src").
	SourceKeyExprPrefix string
	// Consumer receives every sample once it is in order (spec.md §4.3);
	// invoked with the router's mutex held, by design (spec.md §5).
	Consumer func(sample.Sample)
}

// Builder is a flat configuration carrier only — it has no behavior of its
// own beyond recording fields for Build (spec.md §2).
type Builder struct {
	reliability  config.Reliability
	origin       config.Origin
	queryTarget  config.QueryTarget
	queryTimeout time.Duration
	period       time.Duration
	history      bool
	maxPending   int
}

// NewBuilder returns a Builder seeded with spec.md §6's documented defaults.
func NewBuilder() Builder {
	return Builder{
		reliability:  config.DefaultReliability,
		origin:       config.DefaultOrigin,
		queryTarget:  config.DefaultQueryTarget,
		queryTimeout: config.DefaultQueryTimeout,
		maxPending:   config.DefaultMaxPending,
	}
}

// FromConfig seeds a Builder from a loaded Config.
func FromConfig(cfg config.Config) Builder {
	return Builder{
		reliability:  cfg.Reliability,
		origin:       cfg.Origin,
		queryTarget:  cfg.QueryTarget,
		queryTimeout: cfg.QueryTimeout,
		period:       cfg.Period,
		history:      cfg.History,
		maxPending:   cfg.MaxPending,
	}
}

// WithReliability returns a copy of b with Reliability set.
func (b Builder) WithReliability(r config.Reliability) Builder { b.reliability = r; return b }

// WithOrigin returns a copy of b with Origin set.
func (b Builder) WithOrigin(o config.Origin) Builder { b.origin = o; return b }

// WithQueryTarget returns a copy of b with QueryTarget set.
func (b Builder) WithQueryTarget(t config.QueryTarget) Builder { b.queryTarget = t; return b }

// WithQueryTimeout returns a copy of b with QueryTimeout set.
func (b Builder) WithQueryTimeout(d time.Duration) Builder { b.queryTimeout = d; return b }

// WithPeriod returns a copy of b with Period set; zero disables probing.
func (b Builder) WithPeriod(d time.Duration) Builder { b.period = d; return b }

// WithHistory returns a copy of b with History set.
func (b Builder) WithHistory(enabled bool) Builder { b.history = enabled; return b }

// WithMaxPending returns a copy of b with MaxPending set; zero is unbounded.
func (b Builder) WithMaxPending(n int) Builder { b.maxPending = n; return b }

// Subscriber is the running, wired-together reliable subscription.
type Subscriber struct {
	global    *router.Global
	prober    *probe.Prober
	launcher  *recovery.Launcher
	liveSub   Subscription
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Build wires PerSourceState/SampleRouter (C3/C4), RecoveryQuerier (C5),
// PeriodicProbe (C6), and HistoryBootstrap (C7) into a running Subscriber
// (spec.md §4.6 step 1 onward): the wait flag is set before the live
// subscription opens, so concurrent bootstrap replies and live traffic both
// buffer until bootstrap completes.
func (b Builder) Build(ctx context.Context, deps Deps) (*Subscriber, error) {
	if deps.SubscriptionKeyExpr == "" {
		return nil, ErrKeyExprRequired
	}
	if deps.LiveSubscriber == nil {
		return nil, ErrLiveSubscriberRequired
	}
	if deps.Querier == nil {
		return nil, ErrQuerierRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.L()
	}

	subCtx, cancel := context.WithCancel(ctx)

	deliver := deps.Consumer
	if deliver == nil {
		deliver = func(sample.Sample) {}
	}

	global := router.NewGlobal(b.maxPending)
	launcher := recovery.NewLauncher(global, deps.Querier, logger, deps.SourceKeyExprPrefix, deps.SubscriptionKeyExpr, b.queryTarget, b.queryTimeout)
	prober := probe.New(global, launcher, b.period, deliver)

	onSample := func(s sample.Sample) {
		effect := global.HandleSample(s, deliver)
		if effect.SourceID == "" {
			return
		}
		if effect.NewSource {
			prober.Start(subCtx, effect.SourceID)
		}
		if effect.NeedsQuery {
			go launcher.Launch(subCtx, effect.SourceID, effect.FirstMissing, deliver)
		}
	}

	global.SetWait(true)
	liveSub, err := deps.LiveSubscriber.Declare(subCtx, deps.SubscriptionKeyExpr, b.reliability, b.origin, onSample)
	if err != nil {
		cancel()
		return nil, err
	}

	bootstrapper := bootstrap.New(global, deps.Querier, prober, logger, deps.SubscriptionKeyExpr, b.queryTarget, b.queryTimeout, b.history)
	go bootstrapper.Run(subCtx, deliver)

	return &Subscriber{
		global:   global,
		prober:   prober,
		launcher: launcher,
		liveSub:  liveSub,
		cancel:   cancel,
	}, nil
}

// Close cancels the subscriber's context — the single cancellation point
// for every outstanding recovery query, the bootstrap query, and periodic
// probe tickers (spec.md §5 Cancellation) — and undeclares the live
// subscription. Idempotent, matching events.Subscription.Close's sync.Once
// guard.
func (s *Subscriber) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.prober != nil {
			s.prober.StopAll()
		}
		if s.liveSub != nil {
			err = s.liveSub.Close()
		}
	})
	return err
}

// Global exposes the underlying router state for diagnostics/tests.
func (s *Subscriber) Global() *router.Global { return s.global }
