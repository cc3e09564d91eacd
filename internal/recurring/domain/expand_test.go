package domain

import (
	"testing"
	"time"

	"github.com/smallbiznis/dairy/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandAlternateDaySingleMonth(t *testing.T) {
	entries, err := Expand(ExpandRequest{
		Start:        clock.Date(2025, 3, 1),
		Months:       1,
		BaseQuantity: 2,
		Cadence:      CadenceAlternateDay,
		Today:        clock.Date(2025, 2, 28),
	})
	require.NoError(t, err)

	require.Len(t, entries, 16)
	for i, e := range entries {
		assert.Equal(t, 2*i+1, e.Date.Day())
		assert.Equal(t, int64(2), e.Quantity)
	}
	assert.Equal(t, clock.Date(2025, 3, 31), entries[len(entries)-1].Date)
}

func TestExpandOneTwoCycleNeverSkips(t *testing.T) {
	entries, err := Expand(ExpandRequest{
		Start:        clock.Date(2025, 4, 1),
		Months:       1,
		BaseQuantity: 5,
		Cadence:      CadenceOneTwoCycle,
		Today:        clock.Date(2025, 3, 20),
	})
	require.NoError(t, err)

	require.Len(t, entries, 30)
	var total int64
	for _, e := range entries {
		if e.Date.Day()%2 == 1 {
			assert.Equal(t, int64(1), e.Quantity, e.Date)
		} else {
			assert.Equal(t, int64(2), e.Quantity, e.Date)
		}
		total += e.Quantity
	}
	assert.Equal(t, int64(45), total)
}

func TestExpandCadenceIndexResetsEachMonth(t *testing.T) {
	entries, err := Expand(ExpandRequest{
		Start:        clock.Date(2025, 1, 1),
		Months:       2,
		BaseQuantity: 1,
		Cadence:      CadenceAlternateDay,
		Today:        clock.Date(2024, 12, 31),
	})
	require.NoError(t, err)

	// January has 31 days so the 31st and February 1st are both even indices.
	dates := make(map[time.Time]bool, len(entries))
	for _, e := range entries {
		dates[e.Date] = true
	}
	assert.True(t, dates[clock.Date(2025, 1, 31)])
	assert.True(t, dates[clock.Date(2025, 2, 1)])
	assert.False(t, dates[clock.Date(2025, 2, 2)])
	assert.Len(t, entries, 16+14)
}

func TestExpandSpansYearBoundary(t *testing.T) {
	entries, err := Expand(ExpandRequest{
		Start:        clock.Date(2025, 12, 15),
		Months:       3,
		BaseQuantity: 1,
		Cadence:      CadenceEveryDay,
		Today:        clock.Date(2025, 12, 1),
	})
	require.NoError(t, err)

	assert.Len(t, entries, 17+31+28)
	assert.Equal(t, clock.Date(2025, 12, 15), entries[0].Date)
	assert.Equal(t, clock.Date(2026, 2, 28), entries[len(entries)-1].Date)
}

func TestExpandLeapFebruary(t *testing.T) {
	entries, err := Expand(ExpandRequest{
		Start:        clock.Date(2028, 2, 1),
		Months:       1,
		BaseQuantity: 3,
		Cadence:      CadenceEveryDay,
		Today:        clock.Date(2028, 1, 31),
	})
	require.NoError(t, err)

	assert.Len(t, entries, 29)
	assert.Equal(t, clock.Date(2028, 2, 29), entries[28].Date)
}

func TestExpandSkipsTodayAndPast(t *testing.T) {
	entries, err := Expand(ExpandRequest{
		Start:        clock.Date(2025, 6, 1),
		Months:       1,
		BaseQuantity: 1,
		Cadence:      CadenceEveryDay,
		Today:        clock.Date(2025, 6, 10),
	})
	require.NoError(t, err)

	require.Len(t, entries, 20)
	assert.Equal(t, clock.Date(2025, 6, 11), entries[0].Date)
}

func TestExpandWindowEntirelyInPast(t *testing.T) {
	entries, err := Expand(ExpandRequest{
		Start:        clock.Date(2025, 1, 1),
		Months:       1,
		BaseQuantity: 1,
		Cadence:      CadenceEveryDay,
		Today:        clock.Date(2025, 3, 1),
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExpandRejectsBadInput(t *testing.T) {
	base := ExpandRequest{
		Start:        clock.Date(2025, 3, 1),
		Months:       1,
		BaseQuantity: 1,
		Cadence:      CadenceEveryDay,
		Today:        clock.Date(2025, 2, 1),
	}

	bad := base
	bad.Cadence = "weekly"
	_, err := Expand(bad)
	assert.ErrorIs(t, err, ErrUnsupportedCadence)

	bad = base
	bad.Months = 0
	_, err = Expand(bad)
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	bad = base
	bad.BaseQuantity = 0
	_, err = Expand(bad)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestParseCadence(t *testing.T) {
	c, err := ParseCadence(" Alternate_Day ")
	require.NoError(t, err)
	assert.Equal(t, CadenceAlternateDay, c)

	_, err = ParseCadence("fortnightly")
	assert.ErrorIs(t, err, ErrUnsupportedCadence)
}
