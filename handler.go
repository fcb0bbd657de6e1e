package streambox

import "context"

// Handler is the per-record strategy of a Box. It runs inside the Store.Atomic scope
// opened by Box.HandleStreamBox, before the record is finished.
type Handler interface {
	Handle(ctx context.Context, record Record) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, record Record) error

// Handle implements Handler.
func (fn HandlerFunc) Handle(ctx context.Context, record Record) error {
	return fn(ctx, record)
}
