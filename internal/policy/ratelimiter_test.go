package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBudgets(t *testing.T) {
	limiter := NewRateLimiter(2, 5)

	ok, reason := limiter.CanSend()
	assert.True(t, ok)
	assert.Empty(t, reason)

	limiter.RecordSend()
	limiter.RecordSend()

	ok, reason = limiter.CanSend()
	assert.False(t, ok)
	assert.Equal(t, "hourly limit reached (2)", reason)
}

func TestRateLimiterDailyBudget(t *testing.T) {
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(5, 3).WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		limiter.RecordSend()
	}

	ok, reason := limiter.CanSend()
	assert.False(t, ok)
	assert.Equal(t, "daily limit reached (3)", reason)
}

func TestRateLimiterHourRollover(t *testing.T) {
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, 10).WithClock(func() time.Time { return now })

	limiter.RecordSend()
	limiter.RecordSend()

	ok, _ := limiter.CanSend()
	assert.False(t, ok)

	// Next hour: hourly budget resets, daily budget keeps accumulating.
	now = now.Add(time.Hour)

	ok, _ = limiter.CanSend()
	assert.True(t, ok)

	stats := limiter.GetStats()
	assert.Equal(t, 0, stats.HourlyCount)
	assert.Equal(t, 2, stats.DailyCount)
}

func TestRateLimiterDayRollover(t *testing.T) {
	now := time.Date(2026, 8, 3, 23, 30, 0, 0, time.UTC)
	limiter := NewRateLimiter(10, 2).WithClock(func() time.Time { return now })

	limiter.RecordSend()
	limiter.RecordSend()

	ok, _ := limiter.CanSend()
	assert.False(t, ok)

	now = now.Add(time.Hour)

	ok, _ = limiter.CanSend()
	assert.True(t, ok)

	stats := limiter.GetStats()
	assert.Equal(t, 0, stats.DailyCount)
}

func TestRateLimiterStats(t *testing.T) {
	limiter := NewRateLimiter(30, 200)
	limiter.RecordSend()

	stats := limiter.GetStats()

	assert.Equal(t, 1, stats.HourlyCount)
	assert.Equal(t, 30, stats.HourlyLimit)
	assert.Equal(t, 29, stats.HourlyRemaining)
	assert.Equal(t, 1, stats.DailyCount)
	assert.Equal(t, 200, stats.DailyLimit)
	assert.Equal(t, 199, stats.DailyRemaining)
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := NewRateLimiter(0, 0)

	stats := limiter.GetStats()
	assert.Equal(t, 30, stats.HourlyLimit)
	assert.Equal(t, 200, stats.DailyLimit)
}
