package models

import "time"

// BookingEventType names a committed booking change.
type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "booking.created"
	EventBookingExtended  BookingEventType = "booking.extended"
	EventBookingEdited    BookingEventType = "booking.edited"
	EventBookingCancelled BookingEventType = "booking.cancelled"
	EventBookingProcessed BookingEventType = "booking.processed"
)

// BookingEvent is handed to the external notification function after commit.
type BookingEvent struct {
	ID          string           `json:"id"`
	Type        BookingEventType `json:"type"`
	BookingID   string           `json:"booking_id"`
	Title       string           `json:"title"`
	SideID      string           `json:"side_id"`
	ActorID     string           `json:"actor_id"`
	InstanceIDs []string         `json:"instance_ids,omitempty"`
	LastMinute  bool             `json:"last_minute"`
	OccurredAt  time.Time        `json:"occurred_at"`
}
