package billing

import (
	"time"

	"autoseo/internal/models"
)

// CycleTag returns the YYYY-MM billing tag for an instant
func CycleTag(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextBoundary computes the end of a cycle starting at t. Monthly cycles
// advance one month with the day-of-month clamped to the target month's last
// valid day; yearly cycles advance one year with the same clamp.
func NextBoundary(t time.Time, cycleKind string) time.Time {
	t = t.UTC()
	year, month, day := t.Year(), t.Month(), t.Day()

	if cycleKind == models.CycleYearly {
		year++
	} else {
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}

	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysLeft reports whole days remaining until end, never negative
func daysLeft(now, end time.Time) int {
	d := int(end.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
