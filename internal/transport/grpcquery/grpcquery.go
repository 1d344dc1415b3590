// Package grpcquery implements recovery.Querier over a generic,
// codegen-free gRPC server-streaming call: a hand-built method descriptor
// whose wire messages are raw, already-framed bytes (see codec.go and
// internal/transport/wire), registered without any .proto-generated service
// stubs.
//
// Grounded in the teacher's internal/grpc/service.go streaming-service shape
// (Option, per-call context, a single server-streaming method) and
// internal/timesync/service.go's periodic server-streaming send loop,
// adapted away from the teacher's generated brokerpb types — absent from
// the retrieval pack — to the hand-framed byte protocol in
// internal/transport/wire.
package grpcquery

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/dspacecore/nbft/internal/transport/wire"
	"google.golang.org/grpc"
)

// ServiceName and MethodName name the fully codegen-free RPC this package
// calls: "/nbft.recovery.Recovery/Recover".
const (
	ServiceName = "nbft.recovery.Recovery"
	MethodName  = "Recover"
	fullMethod  = "/" + ServiceName + "/" + MethodName
)

// StreamDesc describes the single server-streaming method this package
// calls, for use by a server registering the matching handler with
// grpc.Server.RegisterService.
var StreamDesc = grpc.StreamDesc{
	StreamName:    MethodName,
	ServerStreams: true,
	ClientStreams: false,
}

// Querier issues recovery/history queries over one gRPC ClientConn, using
// the raw byte codec instead of generated request/response types.
type Querier struct {
	Conn   *grpc.ClientConn
	Logger *logging.Logger
}

// New constructs a Querier bound to an already-dialled connection; dialling
// and connection lifecycle are the caller's responsibility (spec.md §1:
// transport dial/auth is an external concern).
func New(conn *grpc.ClientConn) *Querier {
	return &Querier{Conn: conn, Logger: logging.L()}
}

// Query implements recovery.Querier. As with wsquery, every call is stamped
// with a fresh trace ID (spec.md §5) so a query, its gRPC stream, and every
// reply it decodes can be correlated in logs.
func (q *Querier) Query(ctx context.Context, selector string, target config.QueryTarget, timeout time.Duration, onReply func(sample.Sample)) error {
	if q == nil || q.Conn == nil {
		return fmt.Errorf("grpcquery: no connection configured")
	}
	ctx, logger, _ := logging.WithTrace(ctx, q.Logger, "")
	logger.Debug("grpcquery: issuing query", logging.String("selector", selector), logging.String("target", string(target)))

	stream, err := q.Conn.NewStream(ctx, &StreamDesc, fullMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		logger.Warn("grpcquery: open stream failed", logging.Error(err))
		return fmt.Errorf("grpcquery: open stream: %w", err)
	}

	compressedQuery, err := wire.CompressFrame(wire.EncodeQuery(selector, string(target), timeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("grpcquery: compress query: %w", err)
	}
	if err := stream.SendMsg(rawMessage(compressedQuery)); err != nil {
		return fmt.Errorf("grpcquery: send query: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("grpcquery: close send: %w", err)
	}

	for {
		var compressed rawMessage
		err := stream.RecvMsg(&compressed)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("grpcquery: recv reply: %w", err)
		}
		reply, err := wire.DecompressFrame(compressed)
		if err != nil {
			return fmt.Errorf("grpcquery: decompress reply: %w", err)
		}
		if wire.IsEnd(reply) {
			return nil
		}
		s, err := wire.DecodeReply(reply)
		if err != nil {
			return fmt.Errorf("grpcquery: decode reply: %w", err)
		}
		logging.LoggerFromContext(ctx).Debug("grpcquery: reply received", logging.String("key_expr", s.KeyExpr))
		onReply(s)
	}
}
