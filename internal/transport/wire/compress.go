package wire

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressFrame zstd-compresses a wire frame before it goes out over a
// transport adapter's connection. The teacher pairs snappy with one stream
// and zstd with another in internal/replay/writer.go (event log vs. frame
// log); this repo follows the same two-compressor split — snappy for the
// Reliable defragmentation codec's payload (internal/defrag/codec), zstd for
// the transport layer's on-the-wire query/reply frames.
func CompressFrame(frame []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(frame); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressFrame reverses CompressFrame.
func DecompressFrame(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
