package models

import "time"

// BookingStatus tracks the approval lifecycle of a booking series.
type BookingStatus string

const (
	BookingStatusDraft               BookingStatus = "draft"
	BookingStatusPending             BookingStatus = "pending"
	BookingStatusProcessed           BookingStatus = "processed"
	BookingStatusConfirmed           BookingStatus = "confirmed"
	BookingStatusCompleted           BookingStatus = "completed"
	BookingStatusCancelled           BookingStatus = "cancelled"
	BookingStatusPendingCancellation BookingStatus = "pending_cancellation"
)

// Booking is a named recurring reservation owned by one side.
type Booking struct {
	ID           string        `db:"id" json:"id"`
	Title        string        `db:"title" json:"title"`
	SideID       string        `db:"side_id" json:"side_id"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	Color        string        `db:"color" json:"color"`
	IsLocked     bool          `db:"is_locked" json:"is_locked"`
	Status       BookingStatus `db:"status" json:"status"`
	LastEditedBy *string       `db:"last_edited_by" json:"last_edited_by,omitempty"`
	LastEditedAt *time.Time    `db:"last_edited_at" json:"last_edited_at,omitempty"`
	LastMinute   bool          `db:"last_minute" json:"last_minute"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingStatusUpdate describes a status/edit-stamp change on a booking row.
type BookingStatusUpdate struct {
	BookingID    string
	Status       BookingStatus
	LastEditedBy *string
	LastEditedAt *time.Time
	LastMinute   bool
}
