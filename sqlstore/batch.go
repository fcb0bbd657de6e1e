package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/velmie/streambox"
)

var _ streambox.Batch = (*batch)(nil)

type batch struct {
	tx      *sqlx.Tx
	state   *txState
	records []streambox.Record

	mu   sync.Mutex
	done bool
}

// Records returns the records claimed by this batch.
func (b *batch) Records() []streambox.Record {
	return b.records
}

// Scope binds the batch transaction to ctx.
func (b *batch) Scope(ctx context.Context) context.Context {
	if b.state == nil {
		return ctx
	}

	return context.WithValue(ctx, txKey{}, b.state)
}

// Commit finalizes the batch transaction.
func (b *batch) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}
	b.done = true

	return b.tx.Commit()
}

// Rollback releases locks without applying any changes.
func (b *batch) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}
	b.done = true

	err := b.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}

	return err
}
