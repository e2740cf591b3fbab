package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rackbook-api/internal/models"
)

// BookingRepository reads booking rows.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID fetches a booking; sql.ErrNoRows is returned untouched.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, title, side_id, created_by, color, is_locked, status, last_edited_by, last_edited_at, last_minute, created_at, updated_at
	FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}
