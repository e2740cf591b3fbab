package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCutoffCalculatorTable(t *testing.T) {
	calc := NewCutoffCalculator(time.UTC)

	cases := []struct {
		name    string
		session time.Time
		want    time.Time
	}{
		{"wednesday", time.Date(2024, 6, 19, 18, 0, 0, 0, time.UTC), time.Date(2024, 6, 13, 23, 59, 59, 0, time.UTC)},
		{"monday", time.Date(2024, 6, 17, 6, 0, 0, 0, time.UTC), time.Date(2024, 6, 13, 23, 59, 59, 0, time.UTC)},
		{"sunday closes the week", time.Date(2024, 6, 23, 10, 0, 0, 0, time.UTC), time.Date(2024, 6, 13, 23, 59, 59, 0, time.UTC)},
		{"next monday rolls over", time.Date(2024, 6, 24, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 20, 23, 59, 59, 0, time.UTC)},
		{"thursday itself", time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC), time.Date(2024, 6, 6, 23, 59, 59, 0, time.UTC)},
		{"across month", time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC), time.Date(2024, 6, 27, 23, 59, 59, 0, time.UTC)},
		{"across year", time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 12, 26, 23, 59, 59, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, calc.Cutoff(tc.session))
		})
	}
}

func TestCutoffCalculatorIsAfterCutoffExactSecond(t *testing.T) {
	calc := NewCutoffCalculator(time.UTC)
	session := time.Date(2024, 6, 19, 18, 0, 0, 0, time.UTC)

	assert.False(t, calc.IsAfterCutoff(session, time.Date(2024, 6, 13, 23, 59, 59, 0, time.UTC)))
	assert.True(t, calc.IsAfterCutoff(session, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.True(t, calc.IsAfterCutoff(session, time.Date(2024, 6, 13, 23, 59, 59, int(time.Millisecond), time.UTC)))
}

func TestCutoffCalculatorUsesBookingTimezone(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	calc := NewCutoffCalculator(loc)

	// Sunday 23 June 20:00 UTC is already Monday 24 June in AEST.
	session := time.Date(2024, 6, 23, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 20, 23, 59, 59, 0, loc), calc.Cutoff(session))
}

func TestCutoffCalculatorWeekStart(t *testing.T) {
	calc := NewCutoffCalculator(nil)
	assert.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), calc.WeekStart(time.Date(2024, 6, 23, 22, 0, 0, 0, time.UTC)))
}
