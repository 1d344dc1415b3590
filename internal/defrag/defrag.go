// Package defrag implements the per-link fragment reassembly buffer (C2).
// A DefragBuffer is exclusively owned by a single transport reader task; it
// performs no internal synchronisation (spec.md §5, "Transport reader
// domain").
package defrag

import (
	"errors"
	"io"

	"github.com/dspacecore/nbft/internal/defrag/codec"
	"github.com/dspacecore/nbft/internal/seqnum"
)

// Reliability selects which codec Defragment uses to decode the reassembled
// bytes. It parameterises decoding only — push/overflow/out-of-sequence
// behaviour is identical for both profiles (checked against
// zenoh-transport's defragmentation.rs: the reliability profile is threaded
// only into the codec, never into push's control flow).
type Reliability int

const (
	// BestEffort selects the uncompressed, length-framed codec.
	BestEffort Reliability = iota
	// Reliable selects the snappy-compressed, length-framed codec.
	Reliable
)

// ErrOutOfSequence is returned by Push when the supplied SeqNum does not
// match the expected next value. The buffer is cleared; the expected SeqNum
// is not changed by the failure and is not rewound to the value assigned via
// New or Sync.
var ErrOutOfSequence = errors.New("defrag: fragment out of sequence")

// ErrOverflow is returned by Push when accepting the fragment would exceed
// the configured capacity. The buffer is cleared.
var ErrOverflow = errors.New("defrag: capacity exceeded")

// ErrNoMessage is returned by Defragment when the codec could not decode a
// message from the reassembled bytes. The buffer is cleared regardless.
var ErrNoMessage = errors.New("defrag: no message available")

// DefragBuffer accumulates ordered fragment slices for one (peer, channel,
// reliability) triple and reassembles them into a whole message.
type DefragBuffer struct {
	reliability Reliability
	codec       codec.Codec
	expected    seqnum.SeqNum
	capacity    int
	length      int
	fragments   [][]byte
}

// New constructs a DefragBuffer. expected is the SeqNum the first Push must
// carry; capacity bounds the total bytes the buffer may hold while
// non-empty. c selects the terminal decode codec; when nil, a codec matching
// reliability is chosen (BestEffort{} or Reliable{}).
func New(reliability Reliability, expected seqnum.SeqNum, capacity int, c codec.Codec) *DefragBuffer {
	if c == nil {
		if reliability == Reliable {
			c = codec.Reliable{}
		} else {
			c = codec.BestEffort{}
		}
	}
	return &DefragBuffer{
		reliability: reliability,
		codec:       c,
		expected:    expected,
		capacity:    capacity,
	}
}

// Push appends slice if sn matches the expected SeqNum and the resulting
// accumulated length does not exceed capacity. An empty slice is legal and
// still advances the expected SeqNum. On any failure the buffer is cleared.
func (d *DefragBuffer) Push(sn seqnum.SeqNum, slice []byte) error {
	if sn.Get() != d.expected.Get() {
		d.Clear()
		return ErrOutOfSequence
	}

	nextLength := d.length + len(slice)
	if nextLength > d.capacity {
		d.Clear()
		return ErrOverflow
	}

	//1.- Fragments are held as non-owning references; callers must keep the
	// backing buffer pool slice alive for as long as the DefragBuffer does.
	d.fragments = append(d.fragments, slice)
	d.length = nextLength
	d.expected.Increment()
	return nil
}

// Defragment attempts to decode a whole message from the currently held
// fragments. It always clears the buffer: the terminal fragment's arrival
// defines the decode point, and a failed decode leaves nothing worth
// retaining.
func (d *DefragBuffer) Defragment() ([]byte, error) {
	readers := make([]io.Reader, 0, len(d.fragments))
	for _, frag := range d.fragments {
		readers = append(readers, bytesReader(frag))
	}
	msg, err := d.codec.Decode(io.MultiReader(readers...))
	d.Clear()
	if err != nil {
		return nil, ErrNoMessage
	}
	return msg, nil
}

// Sync forcibly resets the expected SeqNum, used when the link signals a
// resync. It does not clear already-accumulated fragments.
func (d *DefragBuffer) Sync(sn seqnum.SeqNum) {
	d.expected = sn
}

// Clear drops all accumulated state.
func (d *DefragBuffer) Clear() {
	d.fragments = nil
	d.length = 0
}

// Len reports the number of bytes currently accumulated.
func (d *DefragBuffer) Len() int { return d.length }

// Empty reports whether the buffer currently holds no fragments.
func (d *DefragBuffer) Empty() bool { return len(d.fragments) == 0 }

func bytesReader(b []byte) io.Reader { return &sliceReader{b: b} }

// sliceReader is a minimal io.Reader over a byte slice, avoiding a
// bytes.Reader allocation's extra bookkeeping for the common single-read
// case inside io.MultiReader.
type sliceReader struct {
	b   []byte
	off int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}
