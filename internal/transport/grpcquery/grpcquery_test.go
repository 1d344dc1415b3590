package grpcquery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/dspacecore/nbft/internal/transport/wire"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func sn(v uint64) *uint64 { return &v }

func recoverHandler(_ any, stream grpc.ServerStream) error {
	var compressed rawMessage
	if err := stream.RecvMsg(&compressed); err != nil {
		return err
	}
	req, err := wire.DecompressFrame(compressed)
	if err != nil {
		return err
	}
	q, err := wire.DecodeQuery(req)
	if err != nil {
		return err
	}
	if q.Selector != "src/p1/a/b?_sn=3.." {
		return nil
	}
	for _, v := range []uint64{3, 4} {
		reply := sample.Sample{KeyExpr: "a/b", Payload: []byte("x"), Source: sample.SourceInfo{ID: "p1", SN: sn(v)}}
		frame, err := wire.CompressFrame(wire.EncodeReply(reply))
		if err != nil {
			return err
		}
		if err := stream.SendMsg(rawMessage(frame)); err != nil {
			return err
		}
	}
	endFrame, err := wire.CompressFrame(wire.EncodeEnd())
	if err != nil {
		return err
	}
	return stream.SendMsg(rawMessage(endFrame))
}

var testServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: MethodName, Handler: recoverHandler, ServerStreams: true},
	},
}

func TestQueryReceivesFramedRepliesOverGRPC(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	server.RegisterService(&testServiceDesc, nil)
	go server.Serve(lis)
	defer server.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	q := New(conn)
	var received []uint64
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = q.Query(ctx, "src/p1/a/b?_sn=3..", config.QueryTargetAll, time.Second, func(s sample.Sample) {
		received = append(received, *s.Source.SN)
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 4}, received)
}
