package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the single source of "now" for batch jobs.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return SystemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

// Today returns the civil date of t in loc, expressed as midnight UTC.
func Today(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Date(local.Year(), local.Month(), local.Day())
}

// Date builds a civil date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfMonth returns the first day of the month containing d.
func StartOfMonth(d time.Time) time.Time {
	return Date(d.Year(), d.Month(), 1)
}

// AddMonths moves a first-of-month date by n months.
func AddMonths(firstOfMonth time.Time, n int) time.Time {
	return Date(firstOfMonth.Year(), firstOfMonth.Month()+time.Month(n), 1)
}

// DaysIn returns the number of days in the month, leap years included.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
