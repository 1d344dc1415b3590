package codec

import "io"

// BestEffort decodes an uncompressed, length-framed message. It is the
// lowest-overhead codec in this package and is the one DefragBuffer selects
// for the best-effort reliability profile, where minimising per-fragment
// work matters more than payload size.
type BestEffort struct{}

// Decode implements Codec.
func (BestEffort) Decode(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeFramed(raw)
}
