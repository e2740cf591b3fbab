package service

import (
	"math"
	"time"

	"github.com/noah-isme/rackbook-api/internal/models"
)

// InferWeekOffset returns the recurrence step in weeks from the gap between
// the two earliest instances. A single instance, or a gap under one week,
// falls back to one week.
func InferWeekOffset(instances []models.Instance) int {
	if len(instances) < 2 {
		return 1
	}
	sorted := append([]models.Instance(nil), instances...)
	models.SortInstances(sorted)

	first, second := sorted[0].Start, sorted[1].Start
	days := civilDaysBetween(first, second)
	weeks := int(math.Round(float64(days) / 7))
	if weeks < 1 {
		return 1
	}
	return weeks
}

// GenerateWeekly continues the pattern of last with count more instances,
// each weekOffset weeks after the previous. Dates step by calendar days in
// loc so the wall-clock time survives daylight-saving changes.
func GenerateWeekly(last models.Instance, weekOffset, count int, loc *time.Location) []models.InstanceDescriptor {
	if count <= 0 {
		return nil
	}
	if weekOffset < 1 {
		weekOffset = 1
	}
	if loc == nil {
		loc = time.UTC
	}

	start := last.Start.In(loc)
	end := last.End.In(loc)
	out := make([]models.InstanceDescriptor, 0, count)
	for k := 1; k <= count; k++ {
		shift := k * weekOffset * 7
		out = append(out, models.InstanceDescriptor{
			BookingID: last.BookingID,
			SideID:    last.SideID,
			Start:     start.AddDate(0, 0, shift),
			End:       end.AddDate(0, 0, shift),
			Racks:     append([]int64(nil), last.Racks...),
			Areas:     append([]string(nil), last.Areas...),
			Capacity:  last.Capacity,
		})
	}
	return out
}

func civilDaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
