package domain

import (
	"errors"
	"strings"
)

// Cadence decides which days of a month receive an order and how much.
type Cadence string

const (
	CadenceEveryDay     Cadence = "every_day"
	CadenceAlternateDay Cadence = "alternate_day"
	CadenceOneTwoCycle  Cadence = "one_two_cycle"
)

var ErrUnsupportedCadence = errors.New("unsupported_cadence")

func ParseCadence(raw string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", ErrUnsupportedCadence
	}
	return c, nil
}

func (c Cadence) Valid() bool {
	switch c {
	case CadenceEveryDay, CadenceAlternateDay, CadenceOneTwoCycle:
		return true
	}
	return false
}

// quantityFor returns the quantity for a zero-based day index within its
// month. ok is false when the day gets no order.
func (c Cadence) quantityFor(idx int, base int64) (qty int64, ok bool) {
	switch c {
	case CadenceEveryDay:
		return base, true
	case CadenceAlternateDay:
		if idx%2 == 0 {
			return base, true
		}
		return 0, false
	case CadenceOneTwoCycle:
		if idx%2 == 0 {
			return 1, true
		}
		return 2, true
	}
	return 0, false
}
