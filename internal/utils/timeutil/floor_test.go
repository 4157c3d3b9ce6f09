package timeutil

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloorByPeriod(t *testing.T) {
	ts := time.Date(2024, time.May, 17, 13, 45, 30, 123_000_000, time.UTC)

	tests := []struct {
		period string
		want   time.Time
	}{
		{"P1Y", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"P5Y", time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"P1M", time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{"P3M", time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{"P1W", time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC)},
		{"P2W", time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC)},
		{"P1D", time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC)},
		{"P7D", time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)},
		{"PT1H", time.Date(2024, time.May, 17, 13, 0, 0, 0, time.UTC)},
		{"PT6H", time.Date(2024, time.May, 17, 12, 0, 0, 0, time.UTC)},
		{"PT15M", time.Date(2024, time.May, 17, 13, 45, 0, 0, time.UTC)},
		{"PT10S", time.Date(2024, time.May, 17, 13, 45, 30, 0, time.UTC)},
		{"PT0.1S", time.Date(2024, time.May, 17, 13, 45, 30, 100_000_000, time.UTC)},
		// mixed periods align on their leading field only
		{"PT1H30M", time.Date(2024, time.May, 17, 13, 0, 0, 0, time.UTC)},
		{"P1DT12H", time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC)},
		{"P1M15D", time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := FloorByPeriod(ts, MustParsePeriod(tt.period))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestFloorByPeriod_Idempotent(t *testing.T) {
	ts := time.Date(2023, time.November, 3, 7, 8, 9, 0, time.UTC)
	for _, s := range []string{"P1Y", "P1M", "P1W", "P1D", "PT1H", "PT5M"} {
		p := MustParsePeriod(s)
		once, err := FloorByPeriod(ts, p)
		require.NoError(t, err)
		twice, err := FloorByPeriod(once, p)
		require.NoError(t, err)
		assert.True(t, once.Equal(twice), s)
		assert.False(t, once.After(ts), s)
	}
}

func TestFloorByPeriod_UsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:30Z on May 17 is still May 16 in New York.
	ts := time.Date(2024, time.May, 17, 2, 30, 0, 0, time.UTC).In(ny)
	got, err := FloorByPeriod(ts, Days(1))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 16, 4, 0, 0, 0, time.UTC), got.UTC())
}

func TestFloorByPeriod_ZeroPeriod(t *testing.T) {
	_, err := FloorByPeriod(time.Now(), Period{})
	assert.Error(t, err)
}

func TestResolveLocation(t *testing.T) {
	loc, err := ResolveLocation("", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	paris, err := ResolveLocation("Europe/Paris", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", paris.String())

	fallback, err := ResolveLocation("", paris)
	require.NoError(t, err)
	assert.Equal(t, paris, fallback)

	_, err = ResolveLocation("Mars/Olympus_Mons", nil)
	assert.Error(t, err)
}

func TestFromEpochMillis(t *testing.T) {
	got := FromEpochMillis(1704067200000, time.UTC)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParseInstant(t *testing.T) {
	ms, err := ParseInstant("1706659199999")
	require.NoError(t, err)
	assert.Equal(t, int64(1706659199999), ms)

	ms, err = ParseInstant(" 2024-01-01T00:00:00Z ")
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200000), ms)

	ms, err = ParseInstant("2024-01-01T01:00:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200000), ms)

	for _, bad := range []string{"", "yesterday", "2024-01-01"} {
		_, err := ParseInstant(bad)
		assert.Error(t, err, bad)
	}
}
