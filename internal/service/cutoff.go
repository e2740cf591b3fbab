package service

import "time"

// CutoffCalculator computes the last moment a non-admin may submit or edit a
// session. The deadline is 23:59:59 on the Thursday of the week before the
// Monday-start week containing the session date.
type CutoffCalculator struct {
	loc *time.Location
}

// NewCutoffCalculator evaluates dates in loc, defaulting to UTC.
func NewCutoffCalculator(loc *time.Location) *CutoffCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &CutoffCalculator{loc: loc}
}

// Location returns the timezone the calculator works in.
func (c *CutoffCalculator) Location() *time.Location {
	return c.loc
}

// Cutoff returns the submission deadline for the session starting at date.
func (c *CutoffCalculator) Cutoff(date time.Time) time.Time {
	local := date.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	sinceMonday := (int(day.Weekday()) + 6) % 7
	weekStart := day.AddDate(0, 0, -sinceMonday)
	thursday := weekStart.AddDate(0, 0, -7+3)
	return time.Date(thursday.Year(), thursday.Month(), thursday.Day(), 23, 59, 59, 0, c.loc)
}

// IsAfterCutoff reports whether now is past the deadline for date.
func (c *CutoffCalculator) IsAfterCutoff(date, now time.Time) bool {
	return now.After(c.Cutoff(date))
}

// WeekStart returns midnight of the Monday starting the week containing date.
func (c *CutoffCalculator) WeekStart(date time.Time) time.Time {
	local := date.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}
