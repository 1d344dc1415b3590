// Package wsquery implements recovery.Querier over a gorilla/websocket
// connection: one physical dial per query, a single query frame sent, and
// binary reply frames read until the end sentinel or connection close.
//
// Grounded on internal/websockettest/dial.go's dialer usage and the
// teacher's main.go websocket upgrade/dial conventions, adapted from a
// long-lived game-state connection to a short-lived, one-shot query
// round-trip.
package wsquery

import (
	"context"
	"fmt"
	"time"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/dspacecore/nbft/internal/transport/wire"
	"github.com/gorilla/websocket"
)

// Querier dials addr fresh for every query. addr is a ws:// or wss:// URL
// pointing at a recovery-query endpoint; the wire protocol is
// internal/transport/wire's frames, not HTTP semantics, so any endpoint
// capable of relaying those frames works.
type Querier struct {
	Addr   string
	Dialer *websocket.Dialer
	Logger *logging.Logger
}

// New constructs a Querier dialing addr with the default websocket dialer.
func New(addr string) *Querier {
	return &Querier{Addr: addr, Dialer: websocket.DefaultDialer, Logger: logging.L()}
}

// Query implements recovery.Querier. Every call is stamped with a fresh
// trace ID (spec.md §5: queries cross a transport boundary, the one place
// in this module where correlating a request with its eventual replies
// across logs is actually useful) so the dial, the query frame, and every
// decoded reply can be tied back to the same recovery or bootstrap attempt.
func (q *Querier) Query(ctx context.Context, selector string, target config.QueryTarget, timeout time.Duration, onReply func(sample.Sample)) error {
	ctx, logger, _ := logging.WithTrace(ctx, q.Logger, "")
	logger.Debug("wsquery: issuing query", logging.String("selector", selector), logging.String("target", string(target)))

	dialer := q.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, q.Addr, nil)
	if err != nil {
		logger.Warn("wsquery: dial failed", logging.Error(err))
		return fmt.Errorf("wsquery: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	queryFrame, err := wire.CompressFrame(wire.EncodeQuery(selector, string(target), timeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("wsquery: compress query: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, queryFrame); err != nil {
		return fmt.Errorf("wsquery: write query: %w", err)
	}

	for {
		msgType, compressed, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("wsquery: read reply: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		raw, err := wire.DecompressFrame(compressed)
		if err != nil {
			return fmt.Errorf("wsquery: decompress reply: %w", err)
		}
		if wire.IsEnd(raw) {
			return nil
		}
		s, err := wire.DecodeReply(raw)
		if err != nil {
			return fmt.Errorf("wsquery: decode reply: %w", err)
		}
		logging.LoggerFromContext(ctx).Debug("wsquery: reply received", logging.String("key_expr", s.KeyExpr))
		onReply(s)
	}
}
