package rabbitmq

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/velmie/streambox"
)

// Ingestor stages raw inbound bodies. *streambox.Inbox implements it.
type Ingestor interface {
	AddFromConsumer(ctx context.Context, raw []byte) (streambox.Record, error)
}

// Consumer feeds deliveries into an Ingestor and settles them.
type Consumer struct {
	ingestor Ingestor
	logger   streambox.Logger
}

// NewConsumer constructs a Consumer. A nil logger discards output.
func NewConsumer(ingestor Ingestor, logger streambox.Logger) (*Consumer, error) {
	if ingestor == nil {
		return nil, ErrIngestorRequired
	}
	if logger == nil {
		logger = streambox.NopLogger{}
	}

	return &Consumer{ingestor: ingestor, logger: logger}, nil
}

// Handle stages one delivery. It acks on success, rejects without requeue when the body
// is malformed and requeues on any other error. The returned error is the ingest error,
// or the settle error when ingest succeeded.
func (c *Consumer) Handle(ctx context.Context, delivery amqp.Delivery) error {
	_, err := c.ingestor.AddFromConsumer(ctx, delivery.Body)

	var deserialization *streambox.DeserializationError
	switch {
	case err == nil:
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("rabbitmq ack failed", "tag", delivery.DeliveryTag, "err", ackErr)

			return ackErr
		}

		return nil
	case errors.As(err, &deserialization):
		c.logger.Warn("rabbitmq rejecting malformed delivery", "tag", delivery.DeliveryTag, "messageId", delivery.MessageId, "err", err)
		if rejectErr := delivery.Reject(false); rejectErr != nil {
			c.logger.Error("rabbitmq reject failed", "tag", delivery.DeliveryTag, "err", rejectErr)
		}
	default:
		c.logger.Warn("rabbitmq requeueing delivery", "tag", delivery.DeliveryTag, "messageId", delivery.MessageId, "err", err)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("rabbitmq nack failed", "tag", delivery.DeliveryTag, "err", nackErr)
		}
	}

	return err
}

// Run handles deliveries one at a time until ctx is done or the channel closes.
// A closed channel returns ErrConnectionClosed.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return ErrConnectionClosed
			}
			_ = c.Handle(ctx, delivery)
		}
	}
}
