package dto

// CapacityScheduleRequest creates or replaces one capacity rule of a side.
// A null platforms list means "use the period default"; an empty list means no racks.
type CapacityScheduleRequest struct {
	ID            string   `json:"id"`
	DayOfWeek     *int     `json:"dayOfWeek" validate:"omitempty,min=0,max=6"`
	StartDate     *string  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate       *string  `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	StartTime     string   `json:"startTime" validate:"required"`
	EndTime       string   `json:"endTime" validate:"required"`
	PeriodType    string   `json:"periodType" validate:"required,max=64"`
	Capacity      int      `json:"capacity" validate:"gte=0"`
	Platforms     []int64  `json:"platforms" validate:"omitempty,dive,gt=0"`
	ExcludedDates []string `json:"excludedDates" validate:"omitempty,dive,datetime=2006-01-02"`
}

// UpsertSchedulesRequest replaces or adds schedules for a side.
type UpsertSchedulesRequest struct {
	Schedules []CapacityScheduleRequest `json:"schedules" validate:"required,min=1,dive"`
}

// WeeklySheetQuery selects the week and format of a rack sheet export.
type WeeklySheetQuery struct {
	Week   string `form:"week" validate:"omitempty,datetime=2006-01-02"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
