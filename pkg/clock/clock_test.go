package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func berlin(t *testing.T) *time.Location {
	loc, err := LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func TestParseTime(t *testing.T) {
	loc := berlin(t)

	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"with offset", "2025-09-28T20:58:00+02:00", time.Date(2025, 9, 28, 20, 58, 0, 0, loc), true},
		{"utc", "2025-09-28T18:58:00Z", time.Date(2025, 9, 28, 20, 58, 0, 0, loc), true},
		{"no offset is local", "2025-09-28T20:58:00", time.Date(2025, 9, 28, 20, 58, 0, 0, loc), true},
		{"minutes only", "2025-09-28T20:58", time.Date(2025, 9, 28, 20, 58, 0, 0, loc), true},
		{"space separated", "2025-09-28 20:58:00", time.Date(2025, 9, 28, 20, 58, 0, 0, loc), true},
		{"empty", "", time.Time{}, false},
		{"garbage", "tomorrow-ish", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in, loc)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
				assert.Equal(t, loc, got.Location())
			}
		})
	}
}

func TestDeltaFromNow(t *testing.T) {
	now := time.Date(2025, 9, 28, 12, 0, 0, 0, time.UTC)

	d := DeltaFromNow(now.Add(90*time.Minute+15*time.Second), now)
	assert.Equal(t, Delta{Hours: 1, Minutes: 30, Seconds: 15}, d)
	assert.Equal(t, 90, d.TotalMinutes())

	d = DeltaFromNow(now.Add(-5*time.Minute-30*time.Second), now)
	assert.Equal(t, Delta{Hours: 0, Minutes: -5, Seconds: -30}, d)
	assert.Equal(t, -5, d.TotalMinutes())

	d = DeltaFromNow(now.Add(40*time.Second), now)
	assert.Equal(t, 0, d.TotalMinutes())
}

func TestStartOfNextDay(t *testing.T) {
	loc := berlin(t)
	got := StartOfNextDay(time.Date(2025, 12, 31, 23, 10, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, loc), got)
}

func TestFixed(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, at, Fixed(at).Now())
}
