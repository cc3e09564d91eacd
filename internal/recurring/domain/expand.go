package domain

import (
	"errors"
	"time"

	"github.com/smallbiznis/dairy/internal/clock"
)

var (
	ErrInvalidHorizon  = errors.New("invalid_horizon")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)

type ExpandRequest struct {
	// Start is the first candidate date. Later months start on day 1.
	Start        time.Time
	Months       int
	BaseQuantity int64
	Cadence      Cadence
	// Today is frozen for the whole run; only dates after it are emitted.
	Today time.Time
}

type Entry struct {
	Date     time.Time
	Quantity int64
}

// Expand turns a recurring template into dated quantities from Start through
// the end of the last month in the horizon. The day index used by the
// cadence restarts at every month boundary.
func Expand(req ExpandRequest) ([]Entry, error) {
	if req.Months < 1 {
		return nil, ErrInvalidHorizon
	}
	if req.BaseQuantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !req.Cadence.Valid() {
		return nil, ErrUnsupportedCadence
	}

	start := clock.Date(req.Start.Year(), req.Start.Month(), req.Start.Day())
	today := clock.Date(req.Today.Year(), req.Today.Month(), req.Today.Day())
	first := clock.StartOfMonth(start)

	var entries []Entry
	for offset := 0; offset < req.Months; offset++ {
		month := clock.AddMonths(first, offset)
		startDay := 1
		if offset == 0 {
			startDay = start.Day()
		}
		lastDay := clock.DaysIn(month.Year(), month.Month())

		for day := startDay; day <= lastDay; day++ {
			date := clock.Date(month.Year(), month.Month(), day)
			if !date.After(today) {
				continue
			}
			qty, ok := req.Cadence.quantityFor(day-1, req.BaseQuantity)
			if !ok {
				continue
			}
			entries = append(entries, Entry{Date: date, Quantity: qty})
		}
	}
	return entries, nil
}
