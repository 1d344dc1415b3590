// Package codec implements the reliability-parameterised message decoders
// DefragBuffer hands the reassembled fragment stream to. Framing uses the
// low-level varint/length-delimited primitives from
// google.golang.org/protobuf/encoding/protowire directly — no .proto code
// generation is involved, matching the pack's only available protobuf
// surface once the teacher's generated service types were excluded from the
// retrieval (see DESIGN.md).
package codec

import (
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedFrame is returned when the accumulated bytes cannot be decoded
// as a single length-framed message — a truncated, over-long, or absent
// varint prefix.
var ErrMalformedFrame = errors.New("codec: malformed message frame")

// Codec reads a whole message from the bytes DefragBuffer has reassembled.
// Implementations either succeed with the message body, or fail — they
// never partially decode.
type Codec interface {
	Decode(r io.Reader) ([]byte, error)
}

// Encode frames payload as a single varint-length-prefixed message, the
// inverse of the framing every Codec in this package expects to Decode.
// Exported for transport adapters (internal/transport/...) that need to
// produce frames wire-compatible with these codecs, and for tests.
func Encode(payload []byte) []byte {
	return protowire.AppendBytes(nil, payload)
}

// decodeFramed consumes a single length-delimited field (protowire's "bytes"
// wire format: a varint length followed by that many bytes) and requires the
// reader to be fully consumed by it — any trailing or missing bytes is a
// malformed frame.
func decodeFramed(raw []byte) ([]byte, error) {
	payload, n := protowire.ConsumeBytes(raw)
	if n < 0 || n != len(raw) {
		return nil, ErrMalformedFrame
	}
	return payload, nil
}
