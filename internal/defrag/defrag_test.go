package defrag

import (
	"testing"

	"github.com/dspacecore/nbft/internal/defrag/codec"
	"github.com/dspacecore/nbft/internal/seqnum"
	"github.com/stretchr/testify/require"
)

func sn(v uint64) seqnum.SeqNum {
	s, err := seqnum.New(v, 1<<20)
	if err != nil {
		panic(err)
	}
	return s
}

func TestPushAndDefragmentRoundTrip(t *testing.T) {
	framed := codec.Encode([]byte("hello reliable core"))
	buf := New(BestEffort, sn(0), 1024, nil)

	require.NoError(t, buf.Push(sn(0), framed[:5]))
	require.NoError(t, buf.Push(sn(1), framed[5:10]))
	require.NoError(t, buf.Push(sn(2), framed[10:]))

	msg, err := buf.Defragment()
	require.NoError(t, err)
	require.Equal(t, "hello reliable core", string(msg))
	require.True(t, buf.Empty())
}

func TestPushOutOfSequenceClearsAndResets(t *testing.T) {
	buf := New(BestEffort, sn(0), 1024, nil)
	require.NoError(t, buf.Push(sn(0), []byte("ab")))

	err := buf.Push(sn(5), []byte("cd"))
	require.ErrorIs(t, err, ErrOutOfSequence)
	require.True(t, buf.Empty())
	require.Equal(t, 0, buf.Len())
}

func TestPushOverflow(t *testing.T) {
	buf := New(BestEffort, sn(0), 100, nil)
	require.NoError(t, buf.Push(sn(0), make([]byte, 40)))
	require.NoError(t, buf.Push(sn(1), make([]byte, 40)))

	err := buf.Push(sn(2), make([]byte, 30))
	require.ErrorIs(t, err, ErrOverflow)
	require.True(t, buf.Empty())

	msg, err := buf.Defragment()
	require.ErrorIs(t, err, ErrNoMessage)
	require.Nil(t, msg)
}

func TestEmptySliceIsLegalAndAdvances(t *testing.T) {
	buf := New(BestEffort, sn(0), 10, nil)
	require.NoError(t, buf.Push(sn(0), nil))
	require.Equal(t, uint64(1), buf.expected.Get())
}

func TestExactCapacityFillSucceeds(t *testing.T) {
	buf := New(BestEffort, sn(0), 10, nil)
	require.NoError(t, buf.Push(sn(0), make([]byte, 10)))
	require.Equal(t, 10, buf.Len())

	err := buf.Push(sn(1), make([]byte, 1))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestReliableProfileUsesSnappyCodec(t *testing.T) {
	framed := codec.EncodeReliable([]byte("compressed payload"))
	buf := New(Reliable, sn(0), 4096, nil)

	require.NoError(t, buf.Push(sn(0), framed))
	msg, err := buf.Defragment()
	require.NoError(t, err)
	require.Equal(t, "compressed payload", string(msg))
}

func TestSyncResetsExpectedWithoutClearingFragments(t *testing.T) {
	buf := New(BestEffort, sn(0), 1024, nil)
	require.NoError(t, buf.Push(sn(0), []byte("x")))

	buf.Sync(sn(10))
	require.False(t, buf.Empty())
	require.NoError(t, buf.Push(sn(10), []byte("y")))
}

func TestDecodeFailureClearsBuffer(t *testing.T) {
	buf := New(BestEffort, sn(0), 1024, nil)
	require.NoError(t, buf.Push(sn(0), []byte{0xff, 0xff, 0xff}))

	msg, err := buf.Defragment()
	require.ErrorIs(t, err, ErrNoMessage)
	require.Nil(t, msg)
	require.True(t, buf.Empty())
}
