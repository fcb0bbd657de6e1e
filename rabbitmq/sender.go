package rabbitmq

import (
	"context"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/velmie/streambox"
)

const contentTypeJSON = "application/json"

// Publisher is the subset of *amqp.Channel used by Sender.
type Publisher interface {
	PublishWithDeferredConfirmWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) (*amqp.DeferredConfirmation, error)
}

// SenderConfig configures a Sender.
type SenderConfig struct {
	// Exchange receives every publishing. Empty uses the default exchange.
	Exchange string
	// RoutingKey is used when RoutingKeyFunc is nil.
	RoutingKey string
	// RoutingKeyFunc derives the routing key from the record, e.g. from its type.
	RoutingKeyFunc func(record streambox.Record) string
	// AppID is stamped on every publishing.
	AppID string
	// Mandatory asks the broker to return unroutable publishings.
	Mandatory bool
	Clock     streambox.Clock
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.Clock == nil {
		c.Clock = streambox.SystemClock{}
	}

	return c
}

// Sender publishes outbox records. It implements streambox.Sender.
//
// When the channel is in confirm mode Send blocks until the broker confirms the
// publishing, so a record is only finished once the broker owns it.
type Sender struct {
	publisher Publisher
	cfg       SenderConfig
}

// NewSender constructs a Sender over publisher, typically a confirm-mode *amqp.Channel.
func NewSender(publisher Publisher, cfg SenderConfig) (*Sender, error) {
	if publisher == nil {
		return nil, ErrPublisherRequired
	}
	if cfg.Exchange == "" && cfg.RoutingKey == "" && cfg.RoutingKeyFunc == nil {
		return nil, ErrDestinationRequired
	}

	return &Sender{publisher: publisher, cfg: cfg.withDefaults()}, nil
}

// Send implements streambox.Sender.
func (s *Sender) Send(ctx context.Context, msg streambox.Outgoing) error {
	key := s.cfg.RoutingKey
	if s.cfg.RoutingKeyFunc != nil {
		key = s.cfg.RoutingKeyFunc(msg.Record)
	}

	confirmation, err := s.publisher.PublishWithDeferredConfirmWithContext(
		ctx,
		s.cfg.Exchange,
		key,
		s.cfg.Mandatory,
		false,
		amqp.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.Record.ID.String(),
			Type:         msg.Record.Type,
			Timestamp:    s.cfg.Clock.Now(),
			AppId:        s.cfg.AppID,
			Body:         msg.Body,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "rabbitmq: publish %s", msg.Record.ID)
	}
	if confirmation == nil {
		return nil
	}

	ok, err := confirmation.WaitContext(ctx)
	if err != nil {
		return errors.Wrapf(err, "rabbitmq: confirm %s", msg.Record.ID)
	}
	if !ok {
		return errors.Wrapf(ErrPublishNacked, "rabbitmq: record %s", msg.Record.ID)
	}

	return nil
}
