package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/rackbook-api/internal/models"
)

const capacityScheduleColumns = `id, side_id, day_of_week, start_date, end_date, start_time, end_time, period_type, capacity,
       platforms, excluded_dates, created_at, updated_at`

// CapacityScheduleRepository persists capacity rules and per-period rack defaults.
type CapacityScheduleRepository struct {
	db *sqlx.DB
}

// NewCapacityScheduleRepository constructs the repository.
func NewCapacityScheduleRepository(db *sqlx.DB) *CapacityScheduleRepository {
	return &CapacityScheduleRepository{db: db}
}

// ListBySide returns every schedule configured for the side.
func (r *CapacityScheduleRepository) ListBySide(ctx context.Context, sideID string) ([]models.CapacitySchedule, error) {
	query := `SELECT ` + capacityScheduleColumns + ` FROM capacity_schedules WHERE side_id = $1 ORDER BY day_of_week NULLS FIRST, start_time, id`
	var schedules []models.CapacitySchedule
	if err := r.db.SelectContext(ctx, &schedules, query, sideID); err != nil {
		return nil, fmt.Errorf("list capacity schedules: %w", err)
	}
	return schedules, nil
}

// FetchDefaultRacksForPeriodType returns the fallback allow-list, or nil when none is configured.
func (r *CapacityScheduleRepository) FetchDefaultRacksForPeriodType(ctx context.Context, sideID string, periodType models.PeriodType) ([]int64, error) {
	const query = `SELECT racks FROM period_default_racks WHERE side_id = $1 AND period_type = $2`
	var racks pq.Int64Array
	if err := r.db.GetContext(ctx, &racks, query, sideID, periodType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch default racks: %w", err)
	}
	if racks == nil {
		racks = pq.Int64Array{}
	}
	return []int64(racks), nil
}

// Upsert inserts or replaces a schedule.
func (r *CapacityScheduleRepository) Upsert(ctx context.Context, schedule *models.CapacitySchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	if schedule.ExcludedDates == nil {
		schedule.ExcludedDates = pq.StringArray{}
	}
	const query = `INSERT INTO capacity_schedules (id, side_id, day_of_week, start_date, end_date, start_time, end_time, period_type, capacity, platforms, excluded_dates, created_at, updated_at)
VALUES (:id, :side_id, :day_of_week, :start_date, :end_date, :start_time, :end_time, :period_type, :capacity, :platforms, :excluded_dates, :created_at, :updated_at)
ON CONFLICT (id)
DO UPDATE SET day_of_week = EXCLUDED.day_of_week, start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
              start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, period_type = EXCLUDED.period_type,
              capacity = EXCLUDED.capacity, platforms = EXCLUDED.platforms, excluded_dates = EXCLUDED.excluded_dates,
              updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("upsert capacity schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule and returns the side it belonged to.
func (r *CapacityScheduleRepository) Delete(ctx context.Context, id string) (string, error) {
	const query = `DELETE FROM capacity_schedules WHERE id = $1 RETURNING side_id`
	var sideID string
	if err := r.db.GetContext(ctx, &sideID, query, id); err != nil {
		return "", err
	}
	return sideID, nil
}
