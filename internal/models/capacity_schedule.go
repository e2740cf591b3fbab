package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// PeriodType names a capacity regime.
type PeriodType string

const (
	PeriodPerformance PeriodType = "Performance"
	PeriodGeneralUser PeriodType = "General User"
	PeriodClosed      PeriodType = "Closed"
)

// IsClosed reports whether the period type blocks all occupancy.
func (p PeriodType) IsClosed() bool {
	return strings.EqualFold(string(p), string(PeriodClosed))
}

// CapacitySchedule limits the athlete count on a side during a time window.
// StartTime and EndTime are "HH:MM" in the booking timezone. DayOfWeek uses
// time.Weekday numbering (0 = Sunday).
type CapacitySchedule struct {
	ID            string         `db:"id" json:"id"`
	SideID        string         `db:"side_id" json:"side_id"`
	DayOfWeek     *int           `db:"day_of_week" json:"day_of_week,omitempty"`
	StartDate     *time.Time     `db:"start_date" json:"start_date,omitempty"`
	EndDate       *time.Time     `db:"end_date" json:"end_date,omitempty"`
	StartTime     string         `db:"start_time" json:"start_time"`
	EndTime       string         `db:"end_time" json:"end_time"`
	PeriodType    PeriodType     `db:"period_type" json:"period_type"`
	Capacity      int            `db:"capacity" json:"capacity"`
	Platforms     pq.Int64Array  `db:"platforms" json:"platforms"`
	ExcludedDates pq.StringArray `db:"excluded_dates" json:"excluded_dates"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// HasExplicitPlatforms reports whether the schedule carries its own allow-list.
// A non-nil empty list means no racks are available.
func (c CapacitySchedule) HasExplicitPlatforms() bool {
	return c.Platforms != nil
}

// PeriodDefaultRacks is the fallback allow-list for a period type on a side.
type PeriodDefaultRacks struct {
	SideID     string        `db:"side_id" json:"side_id"`
	PeriodType PeriodType    `db:"period_type" json:"period_type"`
	Racks      pq.Int64Array `db:"racks" json:"racks"`
}
