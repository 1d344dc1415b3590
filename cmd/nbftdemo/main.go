// Command nbftdemo wires a reliable subscriber against a websocket-framed
// live feed and recovery endpoint, printing every in-order sample until
// interrupted.
//
// Grounded on the teacher's main.go shutdown plumbing: load config, build a
// logger, wire dependent services, then block until the process is asked to
// stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/dspacecore/nbft/internal/subscriber"
	"github.com/dspacecore/nbft/internal/transport/wslive"
	"github.com/dspacecore/nbft/internal/transport/wsquery"
)

func main() {
	liveAddr := flag.String("live", "ws://127.0.0.1:7447/live", "websocket address of the live sample feed")
	queryAddr := flag.String("query", "ws://127.0.0.1:7447/query", "websocket address of the recovery/history query endpoint")
	keyExpr := flag.String("key", "telemetry/**", "subscription key expression")
	sourcePrefix := flag.String("source-prefix", "src", "key-expression prefix identifying the source id axis")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live := wslive.New(*liveAddr, logger)
	querier := wsquery.New(*queryAddr)
	querier.Logger = logger

	deliverLogger := logger.With(logging.String("component", "consumer"))
	deliver := func(s sample.Sample) {
		deliverLogger.Info("sample delivered",
			logging.String("key_expr", s.KeyExpr),
			logging.String("source_id", s.Source.ID),
			logging.Int("payload_bytes", len(s.Payload)),
		)
	}

	builder := subscriber.FromConfig(*cfg)
	sub, err := builder.Build(ctx, subscriber.Deps{
		LiveSubscriber:      live,
		Querier:             querier,
		Logger:              logger,
		SubscriptionKeyExpr: *keyExpr,
		SourceKeyExprPrefix: *sourcePrefix,
		Consumer:            deliver,
	})
	if err != nil {
		logger.Fatal("failed to build subscriber", logging.Error(err))
	}
	defer sub.Close()

	logger.Info("subscriber running", logging.String("key_expr", *keyExpr))
	<-ctx.Done()
	logger.Info("shutting down")
}
