// Package policy holds the send admission rules: hourly/daily rate budgets,
// humanized pacing delays, and the allowed sending window.
package policy

import (
	"fmt"
	"sync"
	"time"

	"payreminder/internal/constants"
)

// RateLimiter tracks per-hour and per-day send counts against configured
// maxima. Counters are process-local and reset lazily on wall-clock
// rollover; restarts reset budgets, which is a conservative gap rather than
// a correctness violation.
type RateLimiter struct {
	mu sync.Mutex

	maxPerHour int
	maxPerDay  int

	hourlyCount int
	dailyCount  int
	currentHour int
	currentDay  int

	now func() time.Time
}

// Stats is a point-in-time snapshot of the limiter counters.
type Stats struct {
	HourlyCount     int `json:"hourly_count"`
	HourlyLimit     int `json:"hourly_limit"`
	HourlyRemaining int `json:"hourly_remaining"`
	DailyCount      int `json:"daily_count"`
	DailyLimit      int `json:"daily_limit"`
	DailyRemaining  int `json:"daily_remaining"`
}

func NewRateLimiter(maxPerHour, maxPerDay int) *RateLimiter {
	if maxPerHour <= 0 {
		maxPerHour = constants.DefaultMaxPerHour
	}
	if maxPerDay <= 0 {
		maxPerDay = constants.DefaultMaxPerDay
	}

	now := time.Now
	return &RateLimiter{
		maxPerHour:  maxPerHour,
		maxPerDay:   maxPerDay,
		currentHour: now().Hour(),
		currentDay:  now().Day(),
		now:         now,
	}
}

// WithClock replaces the limiter's time source and re-anchors the rollover
// markers. Tests use it to pin and advance "now".
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now = now
	r.currentHour = now().Hour()
	r.currentDay = now().Day()
	return r
}

// rollover zeroes the hourly counter on hour change and the daily counter on
// day change. Both markers are checked independently on every call. Callers
// must hold the mutex.
func (r *RateLimiter) rollover() {
	now := r.now()

	if now.Hour() != r.currentHour {
		r.hourlyCount = 0
		r.currentHour = now.Hour()
	}

	if now.Day() != r.currentDay {
		r.dailyCount = 0
		r.currentDay = now.Day()
	}
}

// CanSend reports whether another send fits the current budgets, with an
// explanatory reason when it does not.
func (r *RateLimiter) CanSend() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollover()

	if r.hourlyCount >= r.maxPerHour {
		return false, fmt.Sprintf("hourly limit reached (%d)", r.maxPerHour)
	}

	if r.dailyCount >= r.maxPerDay {
		return false, fmt.Sprintf("daily limit reached (%d)", r.maxPerDay)
	}

	return true, ""
}

// RecordSend consumes one slot from both budgets. It does not enforce a
// prior CanSend; admission ordering is caller discipline.
func (r *RateLimiter) RecordSend() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollover()
	r.hourlyCount++
	r.dailyCount++
}

func (r *RateLimiter) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollover()

	return Stats{
		HourlyCount:     r.hourlyCount,
		HourlyLimit:     r.maxPerHour,
		HourlyRemaining: r.maxPerHour - r.hourlyCount,
		DailyCount:      r.dailyCount,
		DailyLimit:      r.maxPerDay,
		DailyRemaining:  r.maxPerDay - r.dailyCount,
	}
}
