//go:build integration

package sqlstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/velmie/streambox"
	"github.com/velmie/streambox/sqlstore"
)

func TestMySQLClaimFinishIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	store := startMySQLStore(t, ctx)

	saveRecords(t, ctx, store, 3)

	batch1, err := store.LockNextBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch1.Records(), 2)
	scoped := batch1.Scope(ctx)
	for _, record := range batch1.Records() {
		require.NoError(t, store.Finish(scoped, record))
	}
	require.NoError(t, batch1.Commit())

	batch2, err := store.LockNextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch2.Records(), 1)
	require.NoError(t, store.Finish(batch2.Scope(ctx), batch2.Records()[0]))
	require.NoError(t, batch2.Commit())

	batch3, err := store.LockNextBatch(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, batch3.Records())
	require.NoError(t, batch3.Commit())

	pending, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestMySQLSkipLockedIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	store := startMySQLStore(t, ctx)

	saveRecords(t, ctx, store, 2)

	batch1, err := store.LockNextBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch1.Records(), 1)

	batch2, err := store.LockNextBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch2.Records(), 1)

	require.NotEqual(t, batch1.Records()[0].ID, batch2.Records()[0].ID)

	require.NoError(t, batch1.Rollback())
	require.NoError(t, batch2.Rollback())

	pending, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pending)
}

func TestMySQLAtomicRollbackIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	store := startMySQLStore(t, ctx)

	saveRecords(t, ctx, store, 1)

	batch, err := store.LockNextBatch(ctx, 1)
	require.NoError(t, err)
	record := batch.Records()[0]
	scoped := batch.Scope(ctx)

	err = store.Atomic(scoped, func(ctx context.Context) error {
		require.NoError(t, store.Finish(ctx, record))

		return fmt.Errorf("handler failed")
	})
	require.Error(t, err)
	require.NoError(t, batch.Commit())

	pending, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pending)
}

func TestMySQLCleanupIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	store := startMySQLStore(t, ctx)

	saveRecords(t, ctx, store, 3)

	batch, err := store.LockNextBatch(ctx, 2)
	require.NoError(t, err)
	for _, record := range batch.Records() {
		require.NoError(t, store.Finish(batch.Scope(ctx), record))
	}
	require.NoError(t, batch.Commit())

	res, err := store.Cleanup(ctx, sqlstore.CleanupOptions{Before: time.Now().Add(time.Minute), Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Finished)

	pending, err := store.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pending)
}

func saveRecords(t *testing.T, ctx context.Context, store *sqlstore.Store, n int) {
	t.Helper()

	tx, err := store.DB().BeginTxx(ctx, nil)
	require.NoError(t, err)
	base := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	for i := 0; i < n; i++ {
		id, err := uuid.NewV7()
		require.NoError(t, err)
		record := streambox.Record{
			ID:        id,
			Status:    streambox.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Type:      "OrderCreated",
			Payload:   fmt.Sprintf(`{"orderId":"A%d"}`, i),
		}
		require.NoError(t, store.Save(sqlstore.WithTx(ctx, tx), record))
	}
	require.NoError(t, tx.Commit())
}

func startMySQLStore(t *testing.T, ctx context.Context) *sqlstore.Store {
	t.Helper()
	port := nat.Port("3306/tcp")
	dsnFor := func(host string, port nat.Port) string {
		return fmt.Sprintf("root:secret@tcp(%s:%s)/streambox?parseTime=true&multiStatements=true", host, port.Port())
	}
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0.36",
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_DATABASE":      "streambox",
		},
		WaitingFor: wait.ForSQL(port, "mysql", dsnFor).WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	db, err := sqlx.Open("mysql", dsnFor(host, mappedPort))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := sqlstore.NewStore(db, sqlstore.WithTable("order_outbox"))
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	return store
}
