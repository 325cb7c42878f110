package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSendWindowHours(t *testing.T) {
	// 2026-08-03 is a Monday.
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		hour    int
		allowed bool
	}{
		{"before opening", 8, false},
		{"at opening", 9, true},
		{"midday", 14, true},
		{"last allowed hour", 19, true},
		{"at closing", 20, false},
		{"late night", 23, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := NewSendWindow(9, 20, nil).WithClock(fixedClock(monday.Add(time.Duration(tt.hour) * time.Hour)))

			ok, reason := window.Allows()
			assert.Equal(t, tt.allowed, ok)
			if !tt.allowed {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestSendWindowDefaultsToWeekdays(t *testing.T) {
	// 2026-08-08 is a Saturday, 2026-08-09 a Sunday.
	saturday := time.Date(2026, 8, 8, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 8, 9, 12, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 8, 7, 12, 0, 0, 0, time.UTC)

	window := NewSendWindow(9, 20, nil)

	ok, reason := window.WithClock(fixedClock(saturday)).Allows()
	assert.False(t, ok)
	assert.Equal(t, "sending not allowed today", reason)

	ok, _ = window.WithClock(fixedClock(sunday)).Allows()
	assert.False(t, ok)

	ok, _ = window.WithClock(fixedClock(friday)).Allows()
	assert.True(t, ok)
}

func TestSendWindowCustomDays(t *testing.T) {
	saturday := time.Date(2026, 8, 8, 12, 0, 0, 0, time.UTC)

	// Saturday is day 5 with Monday=0.
	window := NewSendWindow(9, 20, []int{5}).WithClock(fixedClock(saturday))

	ok, _ := window.Allows()
	assert.True(t, ok)
}

func TestSendWindowInvalidBoundsFallBack(t *testing.T) {
	monday := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	window := NewSendWindow(20, 9, nil).WithClock(fixedClock(monday))

	assert.True(t, window.WithinSendingHours())
}
