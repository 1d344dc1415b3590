package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/dspacecore/nbft/internal/config"
	"github.com/dspacecore/nbft/internal/logging"
	"github.com/dspacecore/nbft/internal/router"
	"github.com/dspacecore/nbft/internal/sample"
	"github.com/stretchr/testify/require"
)

func sn(v uint64) *uint64 { return &v }

func mkSample(source string, v uint64) sample.Sample {
	return sample.Sample{KeyExpr: "a/b", Payload: []byte("x"), Source: sample.SourceInfo{ID: source, SN: sn(v)}}
}

type fakeQuerier struct {
	replies []sample.Sample
	err     error
}

func (f *fakeQuerier) Query(_ context.Context, _ string, _ config.QueryTarget, _ time.Duration, onReply func(sample.Sample)) error {
	for _, s := range f.replies {
		onReply(s)
	}
	return f.err
}

func TestSelectorRendersSourceScopedRange(t *testing.T) {
	got := Selector("src", "telemetry/a", "p1", 3)
	require.Equal(t, "src/p1/telemetry/a?_sn=3..", got)
}

func TestLaunchSuccessfulReplyDrainsBufferedGap(t *testing.T) {
	g := router.NewGlobal(0)
	var delivered []uint64
	deliver := func(s sample.Sample) { delivered = append(delivered, *s.Source.SN) }

	g.HandleSample(mkSample("p1", 1), deliver)
	g.HandleSample(mkSample("p1", 2), deliver)
	eff := g.HandleSample(mkSample("p1", 4), deliver)
	require.True(t, eff.NeedsQuery)

	q := &fakeQuerier{replies: []sample.Sample{mkSample("p1", 3)}}
	l := NewLauncher(g, q, logging.NewTestLogger(), "src", "a/b", config.QueryTargetBestMatching, time.Second)
	l.Launch(context.Background(), "p1", eff.FirstMissing, deliver)

	require.Equal(t, []uint64{1, 2, 3, 4}, delivered)
	require.Equal(t, 0, g.PendingLen("p1"))
}

func TestLaunchTimeoutFlushesPermanentLoss(t *testing.T) {
	g := router.NewGlobal(0)
	var delivered []uint64
	deliver := func(s sample.Sample) { delivered = append(delivered, *s.Source.SN) }

	g.HandleSample(mkSample("p1", 1), deliver)
	g.HandleSample(mkSample("p1", 2), deliver)
	eff := g.HandleSample(mkSample("p1", 4), deliver)
	require.True(t, eff.NeedsQuery)
	require.Equal(t, uint64(3), eff.FirstMissing)

	q := &fakeQuerier{err: ErrQueryTimeout}
	l := NewLauncher(g, q, logging.NewTestLogger(), "src", "a/b", config.QueryTargetBestMatching, time.Second)
	l.Launch(context.Background(), "p1", eff.FirstMissing, deliver)

	require.Equal(t, []uint64{1, 2, 4}, delivered)
	require.Equal(t, 0, g.PendingLen("p1"))
}

func TestLaunchTransportFailureStillFlushesAndUnblocksFutureQueries(t *testing.T) {
	g := router.NewGlobal(0)
	deliver := func(sample.Sample) {}
	g.HandleSample(mkSample("p1", 1), deliver)
	g.HandleSample(mkSample("p1", 5), deliver)
	require.Equal(t, 1, g.PendingLen("p1"))

	q := &fakeQuerier{err: ErrQueryTransportFailure}
	l := NewLauncher(g, q, logging.NewTestLogger(), "src", "a/b", config.QueryTargetAll, time.Second)
	l.Launch(context.Background(), "p1", 1, deliver)

	require.Equal(t, 0, g.PendingLen("p1"))
	// A second launch must not be refused by a stuck pending-query counter.
	l.Launch(context.Background(), "p1", 1, deliver)
}
