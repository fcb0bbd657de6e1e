package sqlstore

import "errors"

var (
	// ErrDBRequired is returned when a nil database handle is provided.
	ErrDBRequired = errors.New("sqlstore: db is required")
	// ErrTableNameRequired is returned when the table name is empty.
	ErrTableNameRequired = errors.New("sqlstore: table name is required")
	// ErrInvalidTableName is returned when the table name has disallowed characters.
	ErrInvalidTableName = errors.New("sqlstore: invalid table name")
	// ErrUnsupportedDialect is returned for a driver without a known dialect.
	ErrUnsupportedDialect = errors.New("sqlstore: unsupported dialect")
	// ErrCleanupBeforeRequired is returned when cleanup cutoff is missing.
	ErrCleanupBeforeRequired = errors.New("sqlstore: cleanup before time is required")
	// ErrCleanupLimitInvalid is returned when cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("sqlstore: cleanup limit must be non-negative")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("sqlstore: cleanup retention must be positive")
)
