package types

import (
	"strings"
	"time"
)

// DayHours is one weekday's opening window in local "HH:MM" form.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// OperatingHours maps lowercase English weekday names to their window.
type OperatingHours map[string]DayHours

// IsOpenAt reports whether t (already in the tenant's local zone) falls inside
// the window for its weekday. Boundaries are inclusive; a missing day is closed.
func (h OperatingHours) IsOpenAt(t time.Time) bool {
	day, ok := h[strings.ToLower(t.Weekday().String())]
	if !ok || day.Closed {
		return false
	}
	open, okOpen := parseClock(day.Open)
	closing, okClose := parseClock(day.Close)
	if !okOpen || !okClose {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if closing < open {
		// window crosses midnight
		return now >= open || now <= closing
	}
	return now >= open && now <= closing
}

func parseClock(value string) (int, bool) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return parsed.Hour()*60 + parsed.Minute(), true
}
