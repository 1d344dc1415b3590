package codec

import (
	"io"

	"github.com/golang/snappy"
)

// Reliable decodes a snappy-compressed, length-framed message. DefragBuffer
// selects this codec for the reliable profile: reliable links are expected
// to carry larger, longer-lived messages where the teacher's
// internal/replay event-stream pairing of snappy with a length-framed
// payload (internal/replay/writer.go) is worth its CPU cost.
type Reliable struct{}

// Decode implements Codec.
func (Reliable) Decode(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(snappy.NewReader(r))
	if err != nil {
		return nil, err
	}
	return decodeFramed(raw)
}

// EncodeReliable compresses and frames payload the way Reliable.Decode
// expects to consume it. Exported for transport adapters and tests that need
// to produce reliable-profile fragments.
func EncodeReliable(payload []byte) []byte {
	framed := Encode(payload)
	var buf []byte
	w := snappy.NewBufferedWriter(sliceWriter{&buf})
	if _, err := w.Write(framed); err != nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return nil
	}
	return buf
}

type sliceWriter struct{ buf *[]byte }

func (s sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}
