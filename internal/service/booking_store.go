package service

import (
	"context"
	"time"

	"github.com/noah-isme/rackbook-api/internal/models"
)

// InstanceStore reads booking instances from the row store.
type InstanceStore interface {
	// FetchOverlapping returns instances on sideID whose [start,end) overlaps
	// the interval, skipping instances of excludeBookingID when it is set.
	FetchOverlapping(ctx context.Context, sideID string, start, end time.Time, excludeBookingID string) ([]models.BookedInstance, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Instance, error)
	ListBySide(ctx context.Context, sideID string, from, to time.Time) ([]models.BookedInstance, error)
}

// CapacityScheduleStore reads capacity rules.
type CapacityScheduleStore interface {
	FetchCapacitySchedules(ctx context.Context, sideID string, from, to time.Time) ([]models.CapacitySchedule, error)
	FetchDefaultRacksForPeriodType(ctx context.Context, sideID string, periodType models.PeriodType) ([]int64, error)
}

// BookingStore reads booking rows.
type BookingStore interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
}

// ChangePersister writes one accepted mutation atomically.
type ChangePersister interface {
	PersistInstanceChanges(ctx context.Context, changes models.InstanceChangeSet) error
}
