package policy

import (
	"fmt"
	"time"

	"payreminder/internal/constants"
)

// SendWindow decides whether "now" falls within the allowed sending hours
// and weekdays for unattended runs. Days use Monday=0 .. Sunday=6.
type SendWindow struct {
	startHour   int
	endHour     int
	allowedDays map[int]bool

	now func() time.Time
}

// NewSendWindow builds a window from configured bounds. An empty day list
// means Monday through Friday.
func NewSendWindow(startHour, endHour int, allowedDays []int) *SendWindow {
	if endHour <= startHour {
		startHour = constants.DefaultSendStartHour
		endHour = constants.DefaultSendEndHour
	}

	days := make(map[int]bool, len(allowedDays))
	for _, d := range allowedDays {
		days[d] = true
	}
	if len(days) == 0 {
		for d := 0; d < 5; d++ {
			days[d] = true
		}
	}

	return &SendWindow{
		startHour:   startHour,
		endHour:     endHour,
		allowedDays: days,
		now:         time.Now,
	}
}

// WithClock replaces the window's time source. Tests use it to pin "now".
func (w *SendWindow) WithClock(now func() time.Time) *SendWindow {
	w.now = now
	return w
}

// WithinSendingHours reports whether the current hour is inside
// [startHour, endHour).
func (w *SendWindow) WithinSendingHours() bool {
	hour := w.now().Hour()
	return w.startHour <= hour && hour < w.endHour
}

// IsAllowedDay reports whether today is one of the allowed weekdays.
func (w *SendWindow) IsAllowedDay() bool {
	// time.Weekday has Sunday=0; shift to Monday=0.
	weekday := (int(w.now().Weekday()) + 6) % 7
	return w.allowedDays[weekday]
}

// Allows combines both checks with an explanatory reason when closed.
func (w *SendWindow) Allows() (bool, string) {
	if !w.IsAllowedDay() {
		return false, "sending not allowed today"
	}
	if !w.WithinSendingHours() {
		return false, fmt.Sprintf("outside sending hours (%02d:00-%02d:00)", w.startHour, w.endHour)
	}
	return true, ""
}
