package weeks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday midnight", time.Date(2025, 4, 28, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 28, 0, 0, 0, 0, time.UTC)},
		{"midweek", time.Date(2025, 5, 1, 13, 45, 0, 0, time.UTC), time.Date(2025, 4, 28, 0, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2025, 5, 4, 23, 59, 59, 0, time.UTC), time.Date(2025, 4, 28, 0, 0, 0, 0, time.UTC)},
		{"non-utc input", time.Date(2025, 5, 5, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)), time.Date(2025, 4, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekStart(tt.now))
		})
	}
}

func TestDayIndex(t *testing.T) {
	now := time.Date(2025, 5, 7, 10, 0, 0, 0, time.UTC)
	start := SeriesStart(now)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), start)

	idx, ok := DayIndex(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = DayIndex(time.Date(2025, 5, 7, 23, 59, 0, 0, time.UTC), start)
	assert.True(t, ok)
	assert.Equal(t, 6, idx)

	_, ok = DayIndex(time.Date(2025, 4, 30, 23, 59, 0, 0, time.UTC), start)
	assert.False(t, ok)

	_, ok = DayIndex(time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC), start)
	assert.False(t, ok)
}

func TestISOWeekID(t *testing.T) {
	assert.Equal(t, "2025-18", ISOWeekID(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-01", ISOWeekID(time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)))
}

func TestCanonicalWeekID(t *testing.T) {
	for _, id := range []string{"2025-18", "202518", "2025-W18", "2025W18"} {
		got, ok := CanonicalWeekID(id)
		assert.True(t, ok, id)
		assert.Equal(t, "2025-18", got, id)
	}
	got, ok := CanonicalWeekID("2020-53")
	assert.True(t, ok)
	assert.Equal(t, "2020-53", got)

	for _, id := range []string{"", "2025", "2025-180", "week18", "2025/18", "2025-00", "2025-99", "2025-53"} {
		_, ok := CanonicalWeekID(id)
		assert.False(t, ok, id)
	}
}

func TestWeeksInYear(t *testing.T) {
	assert.Equal(t, 53, WeeksInYear(2020))
	assert.Equal(t, 52, WeeksInYear(2025))
	assert.Equal(t, 53, WeeksInYear(2026))
}

func TestNextWeekly(t *testing.T) {
	// Thursday
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 4, 23, 59, 0, 0, time.UTC), NextWeekly(now, time.Sunday, 23, 59))

	// exactly at the fire time moves to next week
	at := time.Date(2025, 5, 4, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 11, 23, 59, 0, 0, time.UTC), NextWeekly(at, time.Sunday, 23, 59))

	// same day, earlier hour
	morning := time.Date(2025, 5, 4, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 4, 23, 59, 0, 0, time.UTC), NextWeekly(morning, time.Sunday, 23, 59))
}
