package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithAccumulatesFieldsWithoutMutatingParent(t *testing.T) {
	base := NewTestLogger()
	child := base.With(String("source_id", "p1"))

	require.Empty(t, base.fields)
	require.Contains(t, child.fields, "source_id")
	require.NotContains(t, base.fields, "source_id")
}

func TestLevelStringRoundTrip(t *testing.T) {
	cases := map[Level]string{
		DebugLevel: "debug",
		InfoLevel:  "info",
		WarnLevel:  "warn",
		ErrorLevel: "error",
		FatalLevel: "fatal",
	}
	for level, want := range cases {
		require.Equal(t, want, level.String())
		parsed, err := parseLevel(want)
		require.NoError(t, err)
		require.Equal(t, level, parsed)
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := parseLevel("deafening")
	require.Error(t, err)
}
