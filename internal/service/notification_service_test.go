package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rackbook-api/internal/models"
)

type publisherStub struct {
	mu        sync.Mutex
	failFirst int
	events    []models.BookingEvent
}

func (p *publisherStub) Publish(ctx context.Context, event models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFirst > 0 {
		p.failFirst--
		return errors.New("redis unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) published() []models.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.BookingEvent(nil), p.events...)
}

func TestNotificationServiceRetriesDelivery(t *testing.T) {
	publisher := &publisherStub{failFirst: 1}
	metrics := NewMetricsService()
	svc := NewNotificationService(publisher, metrics, nil, NotificationConfig{Backend: "redis", Workers: 1, Retries: 3, RetryDelay: time.Millisecond})
	svc.Start(context.Background())
	defer svc.Stop()

	require.NoError(t, svc.Notify(context.Background(), models.BookingEvent{ID: "e-1", Type: models.EventBookingCreated, BookingID: "b-1"}))

	delivered := metrics.eventsPublished.WithLabelValues("redis", "ok")
	require.Eventually(t, func() bool { return testutil.ToFloat64(delivered) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Len(t, publisher.published(), 1)
	assert.Equal(t, "b-1", publisher.published()[0].BookingID)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.eventsPublished.WithLabelValues("redis", "error")))
}

type brokerStub struct {
	ids []string
}

func (b *brokerStub) PublishJSON(ctx context.Context, messageID string, payload interface{}) error {
	b.ids = append(b.ids, messageID)
	return nil
}

func TestBrokerEventPublisherUsesEventID(t *testing.T) {
	broker := &brokerStub{}
	require.NoError(t, NewBrokerEventPublisher(broker).Publish(context.Background(), models.BookingEvent{ID: "e-9"}))
	assert.Equal(t, []string{"e-9"}, broker.ids)
}

func TestMetricsServiceRecordsBookingMutations(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordBookingMutation(OperationExtend, OutcomeBlocked)
	metrics.RecordBookingMutation(OperationExtend, OutcomeBlocked)
	metrics.RecordBookingMutation(OperationCancel, OutcomeAccepted)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.bookingMutations.WithLabelValues(OperationExtend, OutcomeBlocked)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.bookingMutations.WithLabelValues(OperationCancel, OutcomeAccepted)))

	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))
}
