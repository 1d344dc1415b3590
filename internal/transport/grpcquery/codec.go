package grpcquery

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package and selected per-call
// via grpc.CallContentSubtype, mirroring the teacher's Compressor plug-in
// pattern (internal/grpc.Option/WithCompressor) but for wire codecs instead
// of payload compression.
const codecName = "nbft-raw"

// rawCodec passes already-framed bytes straight through: Marshal/Unmarshal
// do no protobuf reflection at all, since every message on the wire is
// already a protowire-framed internal/transport/wire frame. This is what
// lets this package use google.golang.org/grpc's streaming machinery without
// any .proto-generated service stubs.
type rawCodec struct{}

func (rawCodec) Name() string { return codecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	raw, ok := v.(rawMessage)
	if !ok {
		return nil, fmt.Errorf("grpcquery: codec requires rawMessage, got %T", v)
	}
	return []byte(raw), nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	dst, ok := v.(*rawMessage)
	if !ok {
		return fmt.Errorf("grpcquery: codec requires *rawMessage, got %T", v)
	}
	*dst = append(rawMessage(nil), data...)
	return nil
}

// rawMessage is the only type ever (un)marshalled through rawCodec.
type rawMessage []byte

func init() {
	encoding.RegisterCodec(rawCodec{})
}
