package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/velmie/streambox"
)

type publishCall struct {
	exchange  string
	key       string
	mandatory bool
	msg       amqp.Publishing
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (p *fakePublisher) PublishWithDeferredConfirmWithContext(
	_ context.Context,
	exchange, key string,
	mandatory, _ bool,
	msg amqp.Publishing,
) (*amqp.DeferredConfirmation, error) {
	p.calls = append(p.calls, publishCall{exchange: exchange, key: key, mandatory: mandatory, msg: msg})

	return nil, p.err
}

func outgoing(t *testing.T) streambox.Outgoing {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	return streambox.Outgoing{
		Record: streambox.Record{ID: id, Type: "OrderCreated", Status: streambox.StatusPending},
		Body:   []byte(`{"type":"OrderCreated"}`),
	}
}

func TestNewSenderValidation(t *testing.T) {
	_, err := NewSender(nil, SenderConfig{Exchange: "events"})
	require.ErrorIs(t, err, ErrPublisherRequired)

	_, err = NewSender(&fakePublisher{}, SenderConfig{})
	require.ErrorIs(t, err, ErrDestinationRequired)
}

func TestSenderPublishesRecord(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	publisher := &fakePublisher{}
	sender, err := NewSender(publisher, SenderConfig{
		Exchange:   "events",
		RoutingKey: "orders",
		AppID:      "billing",
		Mandatory:  true,
		Clock:      streambox.ClockFunc(func() time.Time { return now }),
	})
	require.NoError(t, err)

	msg := outgoing(t)
	require.NoError(t, sender.Send(context.Background(), msg))

	require.Len(t, publisher.calls, 1)
	call := publisher.calls[0]
	require.Equal(t, "events", call.exchange)
	require.Equal(t, "orders", call.key)
	require.True(t, call.mandatory)
	require.Equal(t, msg.Body, call.msg.Body)
	require.Equal(t, msg.Record.ID.String(), call.msg.MessageId)
	require.Equal(t, "OrderCreated", call.msg.Type)
	require.Equal(t, "application/json", call.msg.ContentType)
	require.Equal(t, amqp.Persistent, call.msg.DeliveryMode)
	require.Equal(t, "billing", call.msg.AppId)
	require.Equal(t, now, call.msg.Timestamp)
}

func TestSenderRoutingKeyFunc(t *testing.T) {
	publisher := &fakePublisher{}
	sender, err := NewSender(publisher, SenderConfig{
		Exchange:       "events",
		RoutingKeyFunc: func(record streambox.Record) string { return "evt." + record.Type },
	})
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), outgoing(t)))
	require.Equal(t, "evt.OrderCreated", publisher.calls[0].key)
}

func TestSenderPublishError(t *testing.T) {
	boom := errors.New("channel closed")
	sender, err := NewSender(&fakePublisher{err: boom}, SenderConfig{RoutingKey: "orders"})
	require.NoError(t, err)

	err = sender.Send(context.Background(), outgoing(t))
	require.ErrorIs(t, err, boom)
}
