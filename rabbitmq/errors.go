package rabbitmq

import "errors"

var (
	// ErrPublisherRequired indicates a nil Publisher was supplied.
	ErrPublisherRequired = errors.New("rabbitmq: publisher is required")
	// ErrIngestorRequired indicates a nil Ingestor was supplied.
	ErrIngestorRequired = errors.New("rabbitmq: ingestor is required")
	// ErrURLRequired indicates an empty broker URL.
	ErrURLRequired = errors.New("rabbitmq: url is required")
	// ErrQueueRequired indicates an empty queue name.
	ErrQueueRequired = errors.New("rabbitmq: queue is required")
	// ErrDestinationRequired indicates neither an exchange nor a routing key was configured.
	ErrDestinationRequired = errors.New("rabbitmq: exchange or routing key is required")
	// ErrPublishNacked indicates the broker negatively acknowledged a publishing.
	ErrPublishNacked = errors.New("rabbitmq: publish not confirmed")
	// ErrConnectionClosed indicates the connection was closed after dialing.
	ErrConnectionClosed = errors.New("rabbitmq: connection is closed")
)
