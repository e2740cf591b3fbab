package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/rackbook-api/internal/models"
)

const bookedInstanceColumns = `i.id, i.booking_id, i.side_id, i.start_time, i.end_time, i.racks, i.areas, i.capacity, i.is_locked,
       i.created_at, i.updated_at, b.title AS booking_title`

// InstanceRepository reads and writes booking instances.
type InstanceRepository struct {
	db *sqlx.DB
}

// NewInstanceRepository constructs the repository.
func NewInstanceRepository(db *sqlx.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// FetchOverlapping returns live instances on the side whose interval overlaps [start,end).
func (r *InstanceRepository) FetchOverlapping(ctx context.Context, sideID string, start, end time.Time, excludeBookingID string) ([]models.BookedInstance, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + bookedInstanceColumns + `
	FROM booking_instances i
	JOIN bookings b ON b.id = i.booking_id
	WHERE i.side_id = $1 AND i.start_time < $3 AND i.end_time > $2 AND b.status <> $4`)
	args := []interface{}{sideID, start, end, models.BookingStatusCancelled}
	if excludeBookingID != "" {
		args = append(args, excludeBookingID)
		builder.WriteString(fmt.Sprintf(" AND i.booking_id <> $%d", len(args)))
	}
	builder.WriteString(" ORDER BY i.start_time, i.id")

	var instances []models.BookedInstance
	if err := r.db.SelectContext(ctx, &instances, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("fetch overlapping instances: %w", err)
	}
	return instances, nil
}

// ListByBooking returns every instance of a booking ordered by start.
func (r *InstanceRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.Instance, error) {
	const query = `SELECT id, booking_id, side_id, start_time, end_time, racks, areas, capacity, is_locked, created_at, updated_at
	FROM booking_instances WHERE booking_id = $1 ORDER BY start_time, id`
	var instances []models.Instance
	if err := r.db.SelectContext(ctx, &instances, query, bookingID); err != nil {
		return nil, fmt.Errorf("list booking instances: %w", err)
	}
	return instances, nil
}

// ListBySide returns instances of live bookings on the side within [from,to).
func (r *InstanceRepository) ListBySide(ctx context.Context, sideID string, from, to time.Time) ([]models.BookedInstance, error) {
	query := `SELECT ` + bookedInstanceColumns + `
	FROM booking_instances i
	JOIN bookings b ON b.id = i.booking_id
	WHERE i.side_id = $1 AND i.start_time < $3 AND i.end_time > $2 AND b.status <> $4
	ORDER BY i.start_time, b.title, i.id`
	var instances []models.BookedInstance
	if err := r.db.SelectContext(ctx, &instances, query, sideID, from, to, models.BookingStatusCancelled); err != nil {
		return nil, fmt.Errorf("list side instances: %w", err)
	}
	return instances, nil
}

// PersistInstanceChanges writes one accepted mutation in a single transaction.
func (r *InstanceRepository) PersistInstanceChanges(ctx context.Context, changes models.InstanceChangeSet) (err error) {
	if changes.Empty() {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin instance changes: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if changes.Booking != nil {
		const insertBooking = `INSERT INTO bookings (id, title, side_id, created_by, color, is_locked, status, last_edited_by, last_edited_at, last_minute, created_at, updated_at)
VALUES (:id, :title, :side_id, :created_by, :color, :is_locked, :status, :last_edited_by, :last_edited_at, :last_minute, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, insertBooking, changes.Booking); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
	}

	const insertInstance = `INSERT INTO booking_instances (id, booking_id, side_id, start_time, end_time, racks, areas, capacity, is_locked, created_at, updated_at)
VALUES (:id, :booking_id, :side_id, :start_time, :end_time, :racks, :areas, :capacity, :is_locked, :created_at, :updated_at)`
	for i := range changes.Create {
		if _, err = tx.NamedExecContext(ctx, insertInstance, changes.Create[i]); err != nil {
			return fmt.Errorf("insert booking instance: %w", err)
		}
	}

	const updateInstance = `UPDATE booking_instances
SET start_time = :start_time, end_time = :end_time, racks = :racks, areas = :areas, capacity = :capacity, updated_at = :updated_at
WHERE id = :id`
	for i := range changes.Update {
		if _, err = tx.NamedExecContext(ctx, updateInstance, changes.Update[i]); err != nil {
			return fmt.Errorf("update booking instance: %w", err)
		}
	}

	if len(changes.Delete) > 0 {
		const deleteInstances = `DELETE FROM booking_instances WHERE id = ANY($1)`
		if _, err = tx.ExecContext(ctx, deleteInstances, pq.Array(changes.Delete)); err != nil {
			return fmt.Errorf("delete booking instances: %w", err)
		}
	}

	if u := changes.BookingStatus; u != nil {
		const updateStatus = `UPDATE bookings SET status = $2, last_edited_by = $3, last_edited_at = $4, last_minute = $5, updated_at = NOW() WHERE id = $1`
		if _, err = tx.ExecContext(ctx, updateStatus, u.BookingID, u.Status, u.LastEditedBy, u.LastEditedAt, u.LastMinute); err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit instance changes: %w", err)
	}
	return nil
}
