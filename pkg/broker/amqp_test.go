package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherReusesChannel(t *testing.T) {
	ch := &fakeChannel{}
	dials := 0
	pub := NewAMQPPublisher("amqp://test", "booking.events", func(url string) (Channel, func() error, error) {
		dials++
		return ch, nil, nil
	}, nil)

	require.NoError(t, pub.PublishJSON(context.Background(), "m-1", map[string]string{"type": "booking.created"}))
	require.NoError(t, pub.PublishJSON(context.Background(), "m-2", map[string]string{"type": "booking.edited"}))

	assert.Equal(t, 1, dials)
	assert.Equal(t, []string{"booking.events"}, ch.declared)
	require.Len(t, ch.published, 2)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, "m-2", ch.published[1].MessageId)

	var body map[string]string
	require.NoError(t, json.Unmarshal(ch.published[1].Body, &body))
	assert.Equal(t, "booking.edited", body["type"])
}

func TestAMQPPublisherRedialsAfterFailure(t *testing.T) {
	broken := &fakeChannel{publishErr: errors.New("channel closed")}
	healthy := &fakeChannel{}
	channels := []*fakeChannel{broken, healthy}
	pub := NewAMQPPublisher("amqp://test", "booking.events", func(url string) (Channel, func() error, error) {
		next := channels[0]
		channels = channels[1:]
		return next, nil, nil
	}, nil)

	err := pub.PublishJSON(context.Background(), "m-1", "x")
	require.Error(t, err)
	assert.True(t, broken.closed)

	require.NoError(t, pub.PublishJSON(context.Background(), "m-1", "x"))
	assert.Len(t, healthy.published, 1)
}

func TestAMQPPublisherDialError(t *testing.T) {
	pub := NewAMQPPublisher("amqp://test", "q", func(url string) (Channel, func() error, error) {
		return nil, nil, errors.New("refused")
	}, nil)
	assert.Error(t, pub.PublishJSON(context.Background(), "m", 1))
}
