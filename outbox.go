package streambox

import (
	"context"
	"fmt"
)

// Outbox stages domain events in the caller's transaction and later hands them to a Sender.
type Outbox[E Event] struct {
	box *Box
	cfg Config
}

// NewOutbox constructs an Outbox whose box strategy publishes each record with sender.
func NewOutbox[E Event](name string, store Store, sender Sender, opts ...Option) *Outbox[E] {
	return &Outbox[E]{
		box: NewRelayBox(name, store, sender, opts...),
		cfg: newConfig(opts),
	}
}

// NewRelayBox builds the outbox pipeline without the typed staging side. Processes that
// only publish records staged by another service use it directly.
func NewRelayBox(name string, store Store, sender Sender, opts ...Option) *Box {
	if sender == nil {
		panic("streambox: nil Sender")
	}
	cfg := newConfig(opts)

	return NewBox(name, KindOutbox, store, HandlerFunc(func(ctx context.Context, record Record) error {
		return send(ctx, name, cfg.Codec, sender, record)
	}), opts...)
}

// Box returns the underlying pipeline.
func (o *Outbox[E]) Box() *Box {
	return o.box
}

// AddEvent wraps event in an Envelope and stores it as a pending record. Pass a context
// carrying the business transaction so the record commits together with it.
func (o *Outbox[E]) AddEvent(ctx context.Context, event E) (Record, error) {
	id, err := o.cfg.IDs.New()
	if err != nil {
		return Record{}, fmt.Errorf("streambox %s: generate id: %w", o.box.Name(), err)
	}
	env := Envelope[E]{ID: id, Type: event.EventType(), Payload: event}
	body, err := o.cfg.Codec.Marshal(env)
	if err != nil {
		return Record{}, fmt.Errorf("streambox %s: encode event: %w", o.box.Name(), err)
	}

	return o.box.AddToBox(ctx, Record{ID: id, Type: env.Type, Payload: string(body)})
}

// HandleEvent sends a single record and finishes it atomically.
func (o *Outbox[E]) HandleEvent(ctx context.Context, record Record) error {
	return o.box.HandleStreamBox(ctx, record)
}

func send(ctx context.Context, box string, codec Codec, sender Sender, record Record) error {
	body, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("streambox %s: encode record: %w", box, err)
	}
	if err := sender.Send(ctx, Outgoing{Record: record, Body: body}); err != nil {
		return &HandlerError{Box: box, RecordID: record.ID, Err: err}
	}

	return nil
}
