package memstore

import (
	"context"
	"sync"

	"github.com/velmie/streambox"
)

var _ streambox.Batch = (*batch)(nil)

type batch struct {
	store   *Store
	records []streambox.Record
	scope   *scope

	mu   sync.Mutex
	done bool
}

func (b *batch) Records() []streambox.Record {
	return b.records
}

func (b *batch) Scope(ctx context.Context) context.Context {
	return withScope(ctx, b.scope)
}

func (b *batch) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}
	b.done = true
	defer b.store.release(b.records)

	return b.store.apply(b.scope)
}

func (b *batch) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}
	b.done = true
	b.store.release(b.records)

	return nil
}
