package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Executor is the subset of *sql.DB, *sql.Tx, *sqlx.DB and *sqlx.Tx the store needs.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	exec Executor

	mu         sync.Mutex
	savepoints int
}

func (s *txState) nextSavepoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.savepoints++

	return fmt.Sprintf("streambox_sp_%d", s.savepoints)
}

// WithTx returns a context carrying tx. Store operations given this context run
// inside tx, so records are saved or finished atomically with the caller's writes.
func WithTx(ctx context.Context, tx Executor) context.Context {
	return context.WithValue(ctx, txKey{}, &txState{exec: tx})
}

func txFrom(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey{}).(*txState)

	return state
}
