package streambox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Box kinds used as the per-type configuration layer key.
const (
	KindInbox   = "inbox"
	KindOutbox  = "outbox"
	KindDefault = "default"
)

// Box is the generic pipeline shared by inboxes and outboxes: a named record store plus
// the strategy applied to each claimed record.
type Box struct {
	name    string
	kind    string
	store   Store
	handler Handler
	cfg     Config
}

// NewBox constructs a Box. An empty kind means KindDefault.
func NewBox(name, kind string, store Store, handler Handler, opts ...Option) *Box {
	if store == nil {
		panic("streambox: nil Store")
	}
	if handler == nil {
		panic("streambox: nil Handler")
	}
	if kind == "" {
		kind = KindDefault
	}

	return &Box{
		name:    name,
		kind:    kind,
		store:   store,
		handler: handler,
		cfg:     newConfig(opts),
	}
}

// Name returns the box instance name.
func (b *Box) Name() string {
	return b.name
}

// Kind returns the box kind.
func (b *Box) Kind() string {
	return b.kind
}

// Store returns the underlying store.
func (b *Box) Store() Store {
	return b.store
}

// Box returns b, so a *Box can be passed wherever a Pipeline is expected.
func (b *Box) Box() *Box {
	return b
}

// AddToBox persists a new pending record. A missing id is generated and the creation
// time is taken from the clock; any status on the input is replaced with PENDING.
func (b *Box) AddToBox(ctx context.Context, record Record) (Record, error) {
	record, err := b.prepare(record)
	if err != nil {
		return Record{}, err
	}
	if err := b.save(ctx, record); err != nil {
		return Record{}, err
	}

	return record, nil
}

// prepare normalizes a record for insertion without touching the store.
func (b *Box) prepare(record Record) (Record, error) {
	if record.ID == uuid.Nil {
		id, err := b.cfg.IDs.New()
		if err != nil {
			return Record{}, fmt.Errorf("streambox %s: generate id: %w", b.name, err)
		}
		record.ID = id
	}
	record.Status = StatusPending
	record.CreatedAt = b.cfg.Clock.Now()
	if err := record.Validate(); err != nil {
		return Record{}, err
	}

	return record, nil
}

func (b *Box) save(ctx context.Context, record Record) error {
	if err := b.store.Save(ctx, record); err != nil {
		return fmt.Errorf("streambox %s: save record: %w", b.name, err)
	}

	return nil
}

// LockNextBatch claims up to limit pending records.
func (b *Box) LockNextBatch(ctx context.Context, limit int) (Batch, error) {
	if limit <= 0 {
		return nil, ErrInvalidBatchSize
	}
	batch, err := b.store.LockNextBatch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("streambox %s: lock batch: %w", b.name, err)
	}
	if batch == nil {
		return nil, ErrNilBatch
	}

	return batch, nil
}

// Finish marks the record FINISHED. It is idempotent.
func (b *Box) Finish(ctx context.Context, record Record) error {
	if err := b.store.Finish(ctx, record); err != nil {
		return fmt.Errorf("streambox %s: finish record %s: %w", b.name, record.ID, err)
	}

	return nil
}

// HandleStreamBox runs the box strategy and the finish transition as one atomic unit.
// On any error the record stays pending. A record that is already finished is skipped.
func (b *Box) HandleStreamBox(ctx context.Context, record Record) error {
	if record.Status == StatusFinished {
		return nil
	}

	return b.store.Atomic(ctx, func(ctx context.Context) error {
		if err := b.handler.Handle(ctx, record); err != nil {
			return err
		}

		return b.Finish(ctx, record)
	})
}
