package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/velmie/streambox"
)

type scopeKey struct{}

// scope stages writes until its owner commits.
type scope struct {
	mu       sync.Mutex
	saves    []streambox.Record
	finishes []uuid.UUID
}

func withScope(ctx context.Context, sc *scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, sc)
}

func scopeFrom(ctx context.Context) *scope {
	sc, _ := ctx.Value(scopeKey{}).(*scope)

	return sc
}

func (sc *scope) stageSave(record streambox.Record) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.saves = append(sc.saves, record)
}

func (sc *scope) stageFinish(id uuid.UUID) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.finishes = append(sc.finishes, id)
}

func (sc *scope) saved(id uuid.UUID) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for _, record := range sc.saves {
		if record.ID == id {
			return true
		}
	}

	return false
}

func (sc *scope) merge(child *scope) {
	saves, finishes := child.ops()

	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.saves = append(sc.saves, saves...)
	sc.finishes = append(sc.finishes, finishes...)
}

func (sc *scope) ops() ([]streambox.Record, []uuid.UUID) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return append([]streambox.Record(nil), sc.saves...), append([]uuid.UUID(nil), sc.finishes...)
}
