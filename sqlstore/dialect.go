package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Dialect selects the SQL flavor used by a Store.
type Dialect string

const (
	// MySQL is MySQL 8.0+ through github.com/go-sql-driver/mysql.
	MySQL Dialect = "mysql"
	// Postgres is PostgreSQL through github.com/jackc/pgx/v5/stdlib.
	Postgres Dialect = "postgres"
	// SQLite is SQLite through github.com/mattn/go-sqlite3.
	SQLite Dialect = "sqlite3"
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "mysql":
		return MySQL, nil
	case "pgx", "postgres":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, driverName)
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	default:
		return string(d)
	}
}

func (d Dialect) bindType() int {
	switch d {
	case Postgres:
		return sqlx.DOLLAR
	default:
		return sqlx.QUESTION
	}
}

// lockClause is appended to the claim query.
func (d Dialect) lockClause() string {
	switch d {
	case MySQL, Postgres:
		return " FOR UPDATE SKIP LOCKED"
	default:
		return ""
	}
}

func (d Dialect) txOptions() *sql.TxOptions {
	switch d {
	case MySQL, Postgres:
		// READ COMMITTED avoids gap locks on the claim range.
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	default:
		return nil
	}
}

func (d Dialect) valid() bool {
	switch d {
	case MySQL, Postgres, SQLite:
		return true
	default:
		return false
	}
}
