// Package wslive implements subscriber.LiveSubscriber over a long-lived
// gorilla/websocket connection: one dial per Declare call, reading sample
// frames (internal/transport/wire's reply framing, reused verbatim since a
// pushed live sample and a query reply share the same shape) until the
// connection closes or the subscription's context is cancelled.
//
// Grounded on the teacher's Broker.serveWS read loop (main.go) — a
// connection-scoped goroutine looping on ReadMessage until error or
// shutdown — adapted from broadcasting inbound client messages to decoding
// and dispatching reassembled samples.
package wslive

import (
	"context"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/dspacecore/nbft/internal/transport/wire"
	"github.com/gorilla/websocket"
)

// LiveSubscriber dials addr once per Declare call and funnels every decoded
// sample frame to the declared callback. The server on the other end is
// expected to apply reliability/origin filtering itself (external
// collaborator concern); this adapter only frames and transports.
type LiveSubscriber struct {
	Addr   string
	Dialer *websocket.Dialer
	Logger *logging.Logger
}

// New constructs a LiveSubscriber dialing addr with the default dialer.
func New(addr string, logger *logging.Logger) *LiveSubscriber {
	if logger == nil {
		logger = logging.L()
	}
	return &LiveSubscriber{Addr: addr, Logger: logger}
}

type subscription struct {
	conn *websocket.Conn
}

func (s *subscription) Close() error {
	return s.conn.Close()
}

// Declare implements subscriber.LiveSubscriber.
func (l *LiveSubscriber) Declare(ctx context.Context, keyExpr string, reliability config.Reliability, origin config.Origin, callback func(sample.Sample)) (interface{ Close() error }, error) {
	dialer := l.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, l.Addr, nil)
	if err != nil {
		return nil, err
	}

	sub := &subscription{conn: conn}
	go l.readLoop(ctx, conn, keyExpr, callback)
	return sub, nil
}

func (l *LiveSubscriber) readLoop(ctx context.Context, conn *websocket.Conn, keyExpr string, callback func(sample.Sample)) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			l.Logger.Debug("live subscription read loop terminated", logging.String("key_expr", keyExpr), logging.Error(err))
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		decompressed, err := wire.DecompressFrame(raw)
		if err != nil {
			l.Logger.Warn("dropping unreadable live sample frame", logging.String("key_expr", keyExpr), logging.Error(err))
			continue
		}
		s, err := wire.DecodeReply(decompressed)
		if err != nil {
			l.Logger.Warn("dropping malformed live sample frame", logging.String("key_expr", keyExpr), logging.Error(err))
			continue
		}
		if !sample.Intersects(keyExpr, s.KeyExpr) {
			continue
		}
		callback(s)
	}
}
