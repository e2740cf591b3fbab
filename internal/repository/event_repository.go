package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/rackbook-api/internal/models"
)

// EventRepository appends booking events to a Redis list drained by the
// notification worker outside this service.
type EventRepository struct {
	client redis.UniversalClient
	list   string
}

// NewEventRepository constructs the repository.
func NewEventRepository(client redis.UniversalClient, list string) *EventRepository {
	if list == "" {
		list = "booking_events"
	}
	return &EventRepository{client: client, list: list}
}

// Publish pushes the JSON encoded event onto the list head.
func (r *EventRepository) Publish(ctx context.Context, event models.BookingEvent) error {
	if r.client == nil {
		return fmt.Errorf("publish booking event: redis client not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}
	if err := r.client.LPush(ctx, r.list, payload).Err(); err != nil {
		return fmt.Errorf("push booking event: %w", err)
	}
	return nil
}
