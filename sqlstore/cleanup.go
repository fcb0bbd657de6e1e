package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/velmie/streambox"
)

const (
	defaultCleanupLimit      = 10000
	defaultCleanupEvery      = time.Hour
	defaultCleanupLockPrefix = "streambox:cleanup:"
)

// CleanupOptions defines which finished records to delete.
type CleanupOptions struct {
	// Before removes rows finished at or before this timestamp (required).
	Before time.Time
	// Limit caps the number of rows deleted per call (0 uses the default).
	Limit int
}

// CleanupResult reports how many rows were removed.
type CleanupResult struct {
	Finished int64
}

// CleanupMaintainerConfig controls periodic retention of finished rows.
type CleanupMaintainerConfig struct {
	// Retention removes rows finished before now-retention (required).
	Retention time.Duration
	// CheckEvery is the interval between cleanup runs.
	CheckEvery time.Duration
	// Limit caps the number of rows deleted per run (0 uses the default).
	Limit int
	// LockName is the advisory lock name. Defaults to streambox:cleanup:<table>.
	// Locks are taken on MySQL and PostgreSQL only.
	LockName string
	Clock    streambox.Clock
	Logger   streambox.Logger
}

// CleanupMaintainer periodically deletes finished rows past their retention. Only one
// maintainer per table does work at a time when the dialect supports advisory locks.
type CleanupMaintainer struct {
	store *Store
	cfg   CleanupMaintainerConfig
}

// Cleanup removes finished rows older than opts.Before. Pending rows are never touched.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupResult, error) {
	if opts.Before.IsZero() {
		return CleanupResult{}, ErrCleanupBeforeRequired
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultCleanupLimit
	}
	if limit < 0 {
		return CleanupResult{}, ErrCleanupLimitInvalid
	}

	res, err := s.db.ExecContext(ctx, s.queries.cleanup, string(streambox.StatusFinished), opts.Before.UTC(), limit)
	if err != nil {
		return CleanupResult{}, errors.Wrap(err, "sqlstore: cleanup delete")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, errors.Wrap(err, "sqlstore: cleanup rows")
	}

	return CleanupResult{Finished: affected}, nil
}

// NewCleanupMaintainer creates a maintainer for the store's table with defaults applied.
func NewCleanupMaintainer(store *Store, cfg CleanupMaintainerConfig) (*CleanupMaintainer, error) {
	if store == nil {
		return nil, ErrDBRequired
	}
	if cfg.Retention <= 0 {
		return nil, ErrCleanupRetentionInvalid
	}
	if cfg.Clock == nil {
		cfg.Clock = streambox.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = streambox.NopLogger{}
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultCleanupEvery
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultCleanupLimit
	}
	if cfg.Limit < 0 {
		return nil, ErrCleanupLimitInvalid
	}
	if cfg.LockName == "" {
		cfg.LockName = defaultCleanupLockPrefix + store.table
	}

	return &CleanupMaintainer{store: store, cfg: cfg}, nil
}

// Run periodically deletes old finished rows until the context is canceled.
func (m *CleanupMaintainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckEvery)
	defer ticker.Stop()

	m.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *CleanupMaintainer) runOnce(ctx context.Context) {
	res, err := m.Ensure(ctx)
	if err != nil {
		m.cfg.Logger.Warn("streambox cleanup failed", "table", m.store.table, "err", err)

		return
	}
	if res.Finished > 0 {
		m.cfg.Logger.Info("streambox cleanup removed finished records", "table", m.store.table, "count", res.Finished)
	}
}

// Ensure executes a single cleanup pass.
func (m *CleanupMaintainer) Ensure(ctx context.Context) (CleanupResult, error) {
	before := m.cfg.Clock.Now().Add(-m.cfg.Retention)
	opts := CleanupOptions{Before: before, Limit: m.cfg.Limit}

	lock, unlock := m.lockQueries()
	if lock == "" {
		return m.store.Cleanup(ctx, opts)
	}

	conn, err := m.store.db.Conn(ctx)
	if err != nil {
		return CleanupResult{}, errors.Wrap(err, "sqlstore: cleanup conn")
	}
	defer conn.Close()

	var got sql.NullBool
	if err := conn.QueryRowContext(ctx, lock, m.cfg.LockName).Scan(&got); err != nil {
		return CleanupResult{}, errors.Wrap(err, "sqlstore: acquire cleanup lock")
	}
	if !got.Valid || !got.Bool {
		m.cfg.Logger.Debug("streambox cleanup lock held by another session", "lock", m.cfg.LockName)

		return CleanupResult{}, nil
	}
	defer func() {
		var released sql.NullBool
		if err := conn.QueryRowContext(context.WithoutCancel(ctx), unlock, m.cfg.LockName).Scan(&released); err != nil {
			m.cfg.Logger.Warn("streambox cleanup release lock failed", "err", err)
		}
	}()

	return m.store.Cleanup(ctx, opts)
}

func (m *CleanupMaintainer) lockQueries() (lock, unlock string) {
	switch m.store.cfg.Dialect {
	case MySQL:
		return "SELECT GET_LOCK(?, 0) = 1", "SELECT RELEASE_LOCK(?) = 1"
	case Postgres:
		return "SELECT pg_try_advisory_lock(hashtext($1))", "SELECT pg_advisory_unlock(hashtext($1))"
	default:
		return "", ""
	}
}
