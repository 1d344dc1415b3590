package selector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestFormatRangeAllFourCombinations(t *testing.T) {
	cases := []struct {
		name string
		r    Range
		want string
	}{
		{"both", Range{Start: u64(3), End: u64(9)}, "3..9"},
		{"start only", Range{Start: u64(3)}, "3.."},
		{"end only", Range{End: u64(9)}, "..9"},
		{"neither", Range{}, ".."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, FormatRange(tc.r))
		})
	}
}

func TestParseRangeRoundTripsWithFormat(t *testing.T) {
	cases := []Range{
		{Start: u64(3), End: u64(9)},
		{Start: u64(3)},
		{End: u64(9)},
		{},
	}
	for _, want := range cases {
		raw := FormatRange(want)
		got, err := ParseRange(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestParseRangeRejectsMalformedInput(t *testing.T) {
	_, err := ParseRange("not-a-range")
	require.ErrorIs(t, err, ErrInvalidSeqNumRange)

	_, err = ParseRange("x..9")
	require.ErrorIs(t, err, ErrInvalidSeqNumRange)
}

func TestRecoverySelector(t *testing.T) {
	got := Recovery("src/p1", "telemetry/a", OpenEnded(5))
	require.Equal(t, "src/p1/telemetry/a?_sn=5..", got)
}

func TestHistorySelectorIsWildcardFromZero(t *testing.T) {
	got := History("telemetry/a")
	require.Equal(t, "*/telemetry/a?_sn=0..", got)
}
