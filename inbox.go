package streambox

import (
	"context"
	"errors"
)

// Inbox stages inbound messages and projects them into local state.
type Inbox struct {
	box        *Box
	registry   *Registry
	projection Projection
	cfg        Config
}

// NewInbox constructs an Inbox whose box strategy resolves each record through registry
// and applies it with projection.
func NewInbox(name string, store Store, registry *Registry, projection Projection, opts ...Option) *Inbox {
	if registry == nil {
		panic("streambox: nil Registry")
	}
	if projection == nil {
		panic("streambox: nil Projection")
	}

	in := &Inbox{
		registry:   registry,
		projection: projection,
		cfg:        newConfig(opts),
	}
	in.box = NewBox(name, KindInbox, store, HandlerFunc(in.project), opts...)

	return in
}

// Box returns the underlying pipeline.
func (in *Inbox) Box() *Box {
	return in.box
}

// AddFromConsumer decodes a raw record envelope received from the broker and stages it
// as pending. Malformed input yields a *DeserializationError and nothing is stored.
// A redelivered id is ignored and reported as success. Either way the returned record
// is the normalized PENDING form of the input.
func (in *Inbox) AddFromConsumer(ctx context.Context, raw []byte) (Record, error) {
	var decoded Record
	if err := in.cfg.Codec.Unmarshal(raw, &decoded); err != nil {
		return Record{}, &DeserializationError{Err: err}
	}
	if decoded.Type == "" {
		return Record{}, &DeserializationError{Err: ErrTypeRequired}
	}

	record, err := in.box.prepare(decoded)
	if err != nil {
		return Record{}, err
	}
	if err := in.box.save(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			in.cfg.Logger.Debug("streambox inbox duplicate ignored", "box", in.box.Name(), "id", record.ID)

			return record, nil
		}

		return Record{}, err
	}

	return record, nil
}

// HandleEvent projects a single record and finishes it atomically.
func (in *Inbox) HandleEvent(ctx context.Context, record Record) error {
	return in.box.HandleStreamBox(ctx, record)
}

func (in *Inbox) project(ctx context.Context, record Record) error {
	shape, ok := in.registry.Resolve(record.Type)
	if !ok {
		return &UnknownEventTypeError{Type: record.Type}
	}
	msg, err := shape.Decode(in.cfg.Codec, record.Payload)
	if err != nil {
		return &PayloadDeserializationError{Type: record.Type, Err: err}
	}
	if msg.Type == "" {
		msg.Type = record.Type
	}
	msg.Record = record

	if err := in.projection.Project(ctx, msg); err != nil {
		return &HandlerError{Box: in.box.Name(), RecordID: record.ID, Err: err}
	}

	return nil
}
