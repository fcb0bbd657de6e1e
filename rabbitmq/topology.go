package rabbitmq

import (
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeConfig describes an exchange to declare.
type ExchangeConfig struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Args       amqp.Table
}

// QueueConfig describes a queue to declare.
type QueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

// BindConfig binds a queue to an exchange under each routing key.
type BindConfig struct {
	QueueName    string
	ExchangeName string
	RoutingKeys  []string
	NoWait       bool
	Args         amqp.Table
}

// Topology groups the broker objects a pipeline relies on. Zero-valued parts are skipped.
type Topology struct {
	Exchange *ExchangeConfig
	Queue    *QueueConfig
	Bind     *BindConfig
}

// Declarer is the subset of *amqp.Channel used to declare a Topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare creates the exchange, the queue and the bindings in that order.
func Declare(ch Declarer, t Topology) error {
	if t.Exchange != nil && t.Exchange.Name != "" {
		kind := t.Exchange.Kind
		if kind == "" {
			kind = amqp.ExchangeTopic
		}
		err := ch.ExchangeDeclare(
			t.Exchange.Name,
			kind,
			t.Exchange.Durable,
			t.Exchange.AutoDelete,
			t.Exchange.Internal,
			t.Exchange.NoWait,
			t.Exchange.Args,
		)
		if err != nil {
			return errors.Wrapf(err, "rabbitmq: declare exchange %q", t.Exchange.Name)
		}
	}

	if t.Queue != nil && t.Queue.Name != "" {
		_, err := ch.QueueDeclare(
			t.Queue.Name,
			t.Queue.Durable,
			t.Queue.AutoDelete,
			t.Queue.Exclusive,
			t.Queue.NoWait,
			t.Queue.Args,
		)
		if err != nil {
			return errors.Wrapf(err, "rabbitmq: declare queue %q", t.Queue.Name)
		}
	}

	if t.Bind != nil {
		for _, key := range t.Bind.RoutingKeys {
			if err := ch.QueueBind(t.Bind.QueueName, key, t.Bind.ExchangeName, t.Bind.NoWait, t.Bind.Args); err != nil {
				return errors.Wrapf(err, "rabbitmq: bind %q to %q with %q", t.Bind.QueueName, t.Bind.ExchangeName, key)
			}
		}
	}

	return nil
}
