package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rackbook-api/internal/models"
	"github.com/noah-isme/rackbook-api/pkg/jobs"
)

// BookingEventPublisher delivers one event to the notification backend.
type BookingEventPublisher interface {
	Publish(ctx context.Context, event models.BookingEvent) error
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, messageID string, payload interface{}) error
}

type brokerEventPublisher struct {
	broker jsonPublisher
}

// NewBrokerEventPublisher adapts a JSON message broker to BookingEventPublisher.
func NewBrokerEventPublisher(broker jsonPublisher) BookingEventPublisher {
	return brokerEventPublisher{broker: broker}
}

func (p brokerEventPublisher) Publish(ctx context.Context, event models.BookingEvent) error {
	return p.broker.PublishJSON(ctx, event.ID, event)
}

// NotificationConfig tunes the delivery queue.
type NotificationConfig struct {
	Backend    string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// NotificationService hands committed booking events to the external
// notification function. Delivery runs on a background queue so a slow or
// failing backend never fails the mutation that produced the event.
type NotificationService struct {
	queue     *jobs.Queue[models.BookingEvent]
	publisher BookingEventPublisher
	metrics   *MetricsService
	backend   string
	logger    *zap.Logger
}

// NewNotificationService constructs the service; call Start before Notify.
func NewNotificationService(publisher BookingEventPublisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{publisher: publisher, metrics: metrics, backend: cfg.Backend, logger: logger}
	svc.queue = jobs.NewQueue[models.BookingEvent]("booking-events", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	svc.queue.OnDeadLetter(func(job jobs.Job[models.BookingEvent], err error) {
		logger.Error("booking event dropped",
			zap.String("event_id", job.Payload.ID),
			zap.String("booking_id", job.Payload.BookingID),
			zap.String("type", string(job.Payload.Type)),
			zap.Error(err),
		)
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending events and stops the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues the event for delivery.
func (s *NotificationService) Notify(ctx context.Context, event models.BookingEvent) error {
	return s.queue.Enqueue(ctx, jobs.Job[models.BookingEvent]{
		ID:      event.ID,
		Type:    string(event.Type),
		Payload: event,
	})
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job[models.BookingEvent]) error {
	err := s.publisher.Publish(ctx, job.Payload)
	s.metrics.RecordEventPublish(s.backend, err)
	if err == nil {
		s.logger.Debug("booking event published", zap.String("event_id", job.Payload.ID), zap.String("type", job.Type))
	}
	return err
}
