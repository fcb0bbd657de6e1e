package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/velmie/streambox"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, "sqlite3", ":memory:", append([]Option{WithTable("orders")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))

	return store
}

func newRecord(t *testing.T, createdAt time.Time) streambox.Record {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	return streambox.Record{
		ID:        id,
		Status:    streambox.StatusPending,
		CreatedAt: createdAt,
		Type:      "OrderCreated",
		Payload:   `{"orderId":"A1"}`,
	}
}

func statusOf(t *testing.T, store *Store, id uuid.UUID) streambox.Status {
	t.Helper()

	var status string
	require.NoError(t, store.DB().QueryRowContext(context.Background(), "SELECT status FROM orders WHERE id = ?", id.String()).Scan(&status))

	return streambox.Status(status)
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(nil)
	require.ErrorIs(t, err, ErrDBRequired)

	store := newTestStore(t)
	_, err = NewStore(store.DB(), WithTable("orders;drop"))
	require.ErrorIs(t, err, ErrInvalidTableName)

	_, err = NewStore(store.DB(), WithDialect("oracle"))
	require.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestDialectFor(t *testing.T) {
	cases := map[string]Dialect{"mysql": MySQL, "pgx": Postgres, "postgres": Postgres, "sqlite3": SQLite}
	for driver, want := range cases {
		got, err := DialectFor(driver)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := DialectFor("mssql")
	require.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestQueriesPerDialect(t *testing.T) {
	my := newQueries(MySQL, "orders")
	require.Contains(t, my.claim, "FOR UPDATE SKIP LOCKED")
	require.Contains(t, my.claim, "LIMIT ?")

	pg := newQueries(Postgres, "orders")
	require.Contains(t, pg.claim, "status = $1")
	require.Contains(t, pg.claim, "LIMIT $2 FOR UPDATE SKIP LOCKED")
	require.Contains(t, pg.cleanup, "LIMIT $3)")

	lite := newQueries(SQLite, "orders")
	require.NotContains(t, lite.claim, "FOR UPDATE")
}

func TestStoreSaveAndDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	record := newRecord(t, time.Now())

	require.NoError(t, store.Save(ctx, record))
	err := store.Save(ctx, record)
	require.ErrorIs(t, err, streambox.ErrDuplicateRecord)

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStoreLockNextBatchOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	third := newRecord(t, base.Add(2*time.Second))
	first := newRecord(t, base)
	second := newRecord(t, base.Add(time.Second))
	for _, r := range []streambox.Record{third, first, second} {
		require.NoError(t, store.Save(ctx, r))
	}

	batch, err := store.LockNextBatch(ctx, 2)
	require.NoError(t, err)
	records := batch.Records()
	require.Len(t, records, 2)
	require.Equal(t, first.ID, records[0].ID)
	require.Equal(t, second.ID, records[1].ID)
	require.True(t, records[0].CreatedAt.Equal(base))
	require.Equal(t, first.Payload, records[0].Payload)
	require.Equal(t, streambox.StatusPending, records[0].Status)
	require.NoError(t, batch.Rollback())
}

func TestStoreLockNextBatchEmptyAndInvalid(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.LockNextBatch(ctx, 0)
	require.ErrorIs(t, err, streambox.ErrInvalidBatchSize)

	batch, err := store.LockNextBatch(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, batch.Records())
	require.NoError(t, batch.Rollback())
	require.NoError(t, batch.Commit())
}

func TestStoreFinishIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	record := newRecord(t, time.Now())
	require.NoError(t, store.Save(ctx, record))

	require.NoError(t, store.Finish(ctx, record))
	require.NoError(t, store.Finish(ctx, record))
	require.Equal(t, streambox.StatusFinished, statusOf(t, store, record.ID))

	err := store.Finish(ctx, newRecord(t, time.Now()))
	require.ErrorIs(t, err, streambox.ErrRecordNotFound)
}

func TestStoreFinishInBatchScope(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	committed := newRecord(t, time.Now())
	rolled := newRecord(t, time.Now().Add(time.Second))
	require.NoError(t, store.Save(ctx, committed))
	require.NoError(t, store.Save(ctx, rolled))

	batch, err := store.LockNextBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, store.Finish(batch.Scope(ctx), committed))
	require.NoError(t, batch.Commit())
	require.NoError(t, batch.Rollback())
	require.Equal(t, streambox.StatusFinished, statusOf(t, store, committed.ID))

	batch, err = store.LockNextBatch(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, rolled.ID, batch.Records()[0].ID)
	require.NoError(t, store.Finish(batch.Scope(ctx), rolled))
	require.NoError(t, batch.Rollback())
	require.Equal(t, streambox.StatusPending, statusOf(t, store, rolled.ID))
}

func TestStoreAtomicSavepoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	failing := newRecord(t, time.Now())
	passing := newRecord(t, time.Now().Add(time.Second))
	require.NoError(t, store.Save(ctx, failing))
	require.NoError(t, store.Save(ctx, passing))
	extra := newRecord(t, time.Now())

	batch, err := store.LockNextBatch(ctx, 10)
	require.NoError(t, err)
	scope := batch.Scope(ctx)

	boom := errors.New("boom")
	err = store.Atomic(scope, func(ctx context.Context) error {
		require.NoError(t, store.Save(ctx, extra))
		require.NoError(t, store.Finish(ctx, failing))

		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.Atomic(scope, func(ctx context.Context) error {
		return store.Finish(ctx, passing)
	})
	require.NoError(t, err)
	require.NoError(t, batch.Commit())

	require.Equal(t, streambox.StatusPending, statusOf(t, store, failing.ID))
	require.Equal(t, streambox.StatusFinished, statusOf(t, store, passing.ID))
	var count int
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE id = ?", extra.ID.String()).Scan(&count))
	require.Zero(t, count)
}

func TestStoreAtomicSavepointPanic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	record := newRecord(t, time.Now())
	require.NoError(t, store.Save(ctx, record))

	batch, err := store.LockNextBatch(ctx, 10)
	require.NoError(t, err)
	scope := batch.Scope(ctx)

	require.Panics(t, func() {
		_ = store.Atomic(scope, func(ctx context.Context) error {
			require.NoError(t, store.Finish(ctx, record))
			panic("kaboom")
		})
	})
	require.NoError(t, batch.Commit())
	require.Equal(t, streambox.StatusPending, statusOf(t, store, record.ID))
}

func TestStoreAtomicOwnTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	kept := newRecord(t, time.Now())
	dropped := newRecord(t, time.Now())

	require.NoError(t, store.Atomic(ctx, func(ctx context.Context) error {
		return store.Save(ctx, kept)
	}))
	err := store.Atomic(ctx, func(ctx context.Context) error {
		if err := store.Save(ctx, dropped); err != nil {
			return err
		}

		return errors.New("abort")
	})
	require.Error(t, err)

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStoreSaveJoinsApplicationTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	record := newRecord(t, time.Now())

	tx, err := store.DB().BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(WithTx(ctx, tx), record))
	require.NoError(t, tx.Rollback())

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	tx, err = store.DB().BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(WithTx(ctx, tx), record))
	require.NoError(t, tx.Commit())

	count, err = store.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStoreWithTableSharesPool(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	payments, err := store.WithTable("payments")
	require.NoError(t, err)
	require.NoError(t, payments.EnsureSchema(ctx))

	require.NoError(t, payments.Save(ctx, newRecord(t, time.Now())))

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	count, err = payments.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestSQLiteDSNTakesWriteLockAtBegin(t *testing.T) {
	require.Equal(t, ":memory:?_txlock=immediate", sqliteDSN(":memory:"))
	require.Equal(t, "file:x.db?cache=shared&_txlock=immediate", sqliteDSN("file:x.db?cache=shared"))
	require.Equal(t, "x.db?_txlock=exclusive", sqliteDSN("x.db?_txlock=exclusive"))
}

func TestSQLiteClaimsAreDisjointAcrossStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "streambox.db")

	first, err := Open(ctx, "sqlite3", path, WithTable("orders"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	require.NoError(t, first.EnsureSchema(ctx))

	second, err := Open(ctx, "sqlite3", path, WithTable("orders"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, first.Save(ctx, newRecord(t, base.Add(time.Duration(i)*time.Second))))
	}

	batchA, err := first.LockNextBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batchA.Records(), 2)

	type claim struct {
		batch streambox.Batch
		err   error
	}
	claimed := make(chan claim, 1)
	go func() {
		batch, err := second.LockNextBatch(ctx, 10)
		claimed <- claim{batch: batch, err: err}
	}()

	select {
	case c := <-claimed:
		t.Fatalf("second store claimed while the first batch was open: %v", c.err)
	case <-time.After(100 * time.Millisecond):
	}

	scope := batchA.Scope(ctx)
	for _, record := range batchA.Records() {
		require.NoError(t, first.Finish(scope, record))
	}
	require.NoError(t, batchA.Commit())

	c := <-claimed
	require.NoError(t, c.err)
	require.Len(t, c.batch.Records(), 1)
	for _, record := range batchA.Records() {
		require.NotEqual(t, record.ID, c.batch.Records()[0].ID)
	}
	require.NoError(t, c.batch.Rollback())
}
