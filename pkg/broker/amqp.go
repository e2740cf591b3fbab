package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel to the broker and returns a closer for the connection.
type Dialer func(url string) (Channel, func() error, error)

// DialAMQP connects with amqp091-go.
func DialAMQP(url string) (Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn.Close, nil
}

// AMQPPublisher publishes persistent JSON messages to one durable queue. The
// connection is opened lazily and reopened after a failed publish.
type AMQPPublisher struct {
	url    string
	queue  string
	dial   Dialer
	logger *zap.Logger

	mu        sync.Mutex
	channel   Channel
	closeConn func() error
}

// NewAMQPPublisher constructs a publisher; dial defaults to DialAMQP.
func NewAMQPPublisher(url, queue string, dial Dialer, logger *zap.Logger) *AMQPPublisher {
	if dial == nil {
		dial = DialAMQP
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{url: url, queue: queue, dial: dial, logger: logger}
}

// PublishJSON marshals payload and publishes it to the queue.
func (p *AMQPPublisher) PublishJSON(ctx context.Context, messageID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func (p *AMQPPublisher) ensureChannel() (Channel, error) {
	if p.channel != nil {
		return p.channel, nil
	}
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closeConn != nil {
			_ = closeConn()
		}
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.channel = ch
	p.closeConn = closeConn
	p.logger.Info("broker channel opened", zap.String("queue", p.queue))
	return ch, nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.channel = nil
	p.closeConn = nil
}
