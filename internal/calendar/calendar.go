package calendar

import "time"

// lastNightHour is inclusive: 06:59:59 still counts as night.
const lastNightHour = 6

// Extract derives the weekend and night flags of a timestamp in its own location.
func Extract(ts time.Time) (weekend, night bool) {
	return IsWeekend(ts), IsNight(ts)
}

// IsWeekend reports whether ts falls on a Saturday or Sunday.
func IsWeekend(ts time.Time) bool {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// IsNight reports whether ts falls between midnight and the end of hour 6.
func IsNight(ts time.Time) bool {
	return ts.Hour() <= lastNightHour
}
