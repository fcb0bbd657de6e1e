package sqlstore

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	"github.com/pkg/errors"

	"github.com/velmie/streambox"
)

const sqliteTxLockParam = "_txlock"

// Store implements streambox.Store on a SQL table.
type Store struct {
	db      *sqlx.DB
	cfg     Config
	queries queries
	table   string
}

var _ streambox.Store = (*Store)(nil)
var _ streambox.PendingCounter = (*Store)(nil)

type recordRow struct {
	ID        string    `db:"id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	Type      string    `db:"type"`
	Payload   string    `db:"payload"`
}

// NewStore constructs a store with validated configuration. The dialect is derived
// from db.DriverName() unless WithDialect is given.
func NewStore(db *sqlx.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	if cfg.Dialect == "" {
		dialect, err := DialectFor(db.DriverName())
		if err != nil {
			return nil, err
		}
		cfg.Dialect = dialect
	}
	if !cfg.Dialect.valid() {
		return nil, errors.Wrapf(ErrUnsupportedDialect, "%q", cfg.Dialect)
	}

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:      db,
		cfg:     cfg,
		queries: newQueries(cfg.Dialect, table),
		table:   table,
	}, nil
}

// MustNewStore constructs a store or panics on error.
func MustNewStore(db *sqlx.DB, opts ...Option) *Store {
	store, err := NewStore(db, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Open connects to the database and returns a store for it. SQLite pools are limited
// to one connection and their transactions take the write lock at BEGIN.
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driverName)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore: open")
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "sqlstore: ping")
	}

	store, err := NewStore(db, append([]Option{WithDialect(dialect)}, opts...)...)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

// sqliteDSN makes transactions begin with BEGIN IMMEDIATE unless the DSN already
// chooses a lock mode.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, sqliteTxLockParam+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + sqliteTxLockParam + "=immediate"
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Table returns the sanitized table name.
func (s *Store) Table() string {
	return s.table
}

// Dialect returns the store dialect.
func (s *Store) Dialect() Dialect {
	return s.cfg.Dialect
}

// WithTable returns a store over another table sharing the same connection pool.
func (s *Store) WithTable(table string) (*Store, error) {
	return NewStore(s.db, WithTable(table), WithDialect(s.cfg.Dialect), WithClock(s.cfg.Clock))
}

// EnsureSchema creates the table and its index if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements, err := Schema(s.cfg.Dialect, s.table)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "sqlstore: create schema for %s", s.table)
		}
	}

	return nil
}

// Save implements streambox.Store. It joins the transaction carried by ctx, if any.
func (s *Store) Save(ctx context.Context, record streambox.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	_, err := s.executor(ctx).ExecContext(
		ctx,
		s.queries.insert,
		record.ID.String(),
		string(record.Status),
		record.CreatedAt.UTC(),
		record.Type,
		record.Payload,
	)
	if err != nil {
		if isDuplicate(err) {
			return errors.Wrapf(streambox.ErrDuplicateRecord, "sqlstore: save %s", record.ID)
		}

		return errors.Wrap(err, "sqlstore: insert")
	}

	return nil
}

// LockNextBatch implements streambox.Store. The returned batch owns a transaction
// holding row locks on the claimed records until it is committed or rolled back.
func (s *Store) LockNextBatch(ctx context.Context, limit int) (streambox.Batch, error) {
	if limit <= 0 {
		return nil, streambox.ErrInvalidBatchSize
	}

	tx, err := s.db.BeginTxx(ctx, s.cfg.Dialect.txOptions())
	if err != nil {
		return nil, errors.Wrap(err, "sqlstore: begin tx")
	}

	var rows []recordRow
	if err := tx.SelectContext(ctx, &rows, s.queries.claim, string(streambox.StatusPending), limit); err != nil {
		rollbackErr := tx.Rollback()

		return nil, stderrors.Join(errors.Wrap(err, "sqlstore: claim"), rollbackErr)
	}
	if len(rows) == 0 {
		_ = tx.Rollback()

		return &batch{done: true}, nil
	}

	records := make([]streambox.Record, 0, len(rows))
	for _, row := range rows {
		record, err := row.record()
		if err != nil {
			_ = tx.Rollback()

			return nil, err
		}
		records = append(records, record)
	}

	return &batch{tx: tx, state: &txState{exec: tx}, records: records}, nil
}

// Finish implements streambox.Store. Finishing an already finished record is a no-op.
func (s *Store) Finish(ctx context.Context, record streambox.Record) error {
	exec := s.executor(ctx)
	res, err := exec.ExecContext(
		ctx,
		s.queries.finish,
		string(streambox.StatusFinished),
		s.cfg.Clock.Now().UTC(),
		record.ID.String(),
		string(streambox.StatusPending),
	)
	if err != nil {
		return errors.Wrap(err, "sqlstore: finish")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "sqlstore: finish rows")
	}
	if affected > 0 {
		return nil
	}

	var count int
	if err := exec.QueryRowContext(ctx, s.queries.exists, record.ID.String()).Scan(&count); err != nil {
		return errors.Wrap(err, "sqlstore: finish lookup")
	}
	if count == 0 {
		return errors.Wrapf(streambox.ErrRecordNotFound, "sqlstore: finish %s", record.ID)
	}

	return nil
}

// Atomic implements streambox.Store. Inside a transaction carried by ctx it runs fn
// between SAVEPOINT and RELEASE, rolling back to the savepoint on error or panic.
// Otherwise it runs fn in a new transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if state := txFrom(ctx); state != nil {
		return s.atomicSavepoint(ctx, state, fn)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlstore: begin tx")
	}
	defer func() {
		if rec := recover(); rec != nil {
			_ = tx.Rollback()
			panic(rec)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, &txState{exec: tx})); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return stderrors.Join(err, errors.Wrap(rollbackErr, "sqlstore: rollback"))
		}

		return err
	}

	return errors.Wrap(tx.Commit(), "sqlstore: commit")
}

func (s *Store) atomicSavepoint(ctx context.Context, state *txState, fn func(ctx context.Context) error) error {
	name := state.nextSavepoint()
	if _, err := state.exec.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return errors.Wrap(err, "sqlstore: savepoint")
	}

	// Undo must run even after a handler deadline expired.
	undo := func() error {
		_, err := state.exec.ExecContext(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+name)

		return errors.Wrap(err, "sqlstore: rollback to savepoint")
	}
	defer func() {
		if rec := recover(); rec != nil {
			_ = undo()
			panic(rec)
		}
	}()

	if err := fn(ctx); err != nil {
		return stderrors.Join(err, undo())
	}
	if _, err := state.exec.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return stderrors.Join(errors.Wrap(err, "sqlstore: release savepoint"), undo())
	}

	return nil
}

// PendingCount returns the number of pending rows.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.queries.countPending, string(streambox.StatusPending)).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "sqlstore: pending count")
	}

	return count, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) executor(ctx context.Context) Executor {
	if state := txFrom(ctx); state != nil {
		return state.exec
	}

	return s.db
}

func (r recordRow) record() (streambox.Record, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return streambox.Record{}, errors.Wrapf(err, "sqlstore: record id %q", r.ID)
	}

	return streambox.Record{
		ID:        id,
		Status:    streambox.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		Type:      r.Type,
		Payload:   r.Payload,
	}, nil
}
