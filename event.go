package streambox

import (
	"context"

	"github.com/google/uuid"
)

// Event is a domain event carried by an Outbox. EventType is the discriminator stored
// in Record.Type and resolved by the consuming side's Registry.
type Event interface {
	EventType() string
}

// Envelope wraps an event with its id and discriminator. It is the shape stored in
// Record.Payload.
type Envelope[E any] struct {
	ID      uuid.UUID `json:"id"`
	Type    string    `json:"type"`
	Payload E         `json:"payload"`
}

// Message is a decoded inbound event handed to a Projection.
type Message struct {
	ID   uuid.UUID
	Type string
	// Payload holds the typed value registered for Type.
	Payload any
	// Record is the inbox record the message was decoded from.
	Record Record
}

// Projection applies a decoded inbound event to local state.
type Projection interface {
	Project(ctx context.Context, msg Message) error
}

// ProjectionFunc adapts a function to Projection.
type ProjectionFunc func(ctx context.Context, msg Message) error

// Project implements Projection.
func (fn ProjectionFunc) Project(ctx context.Context, msg Message) error {
	return fn(ctx, msg)
}

// Outgoing is what an Outbox hands to its Sender.
type Outgoing struct {
	Record Record
	// Body is the record's serialized wire envelope.
	Body []byte
}

// Sender publishes outbox records to the messaging system.
type Sender interface {
	Send(ctx context.Context, msg Outgoing) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Outgoing) error

// Send implements Sender.
func (fn SenderFunc) Send(ctx context.Context, msg Outgoing) error {
	return fn(ctx, msg)
}
