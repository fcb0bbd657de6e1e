package sqlstore

import (
	"fmt"
	"strings"
)

const mysqlSchema = `CREATE TABLE IF NOT EXISTS %s (
	id CHAR(36) NOT NULL,
	status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMP(6) NOT NULL,
	type VARCHAR(255) NOT NULL,
	payload LONGTEXT NOT NULL,
	finished_at TIMESTAMP(6) NULL,
	PRIMARY KEY (id),
	INDEX idx_status_created (status, created_at)
)`

const postgresSchema = `CREATE TABLE IF NOT EXISTS %s (
	id UUID NOT NULL PRIMARY KEY,
	status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMPTZ NOT NULL,
	type VARCHAR(255) NOT NULL,
	payload TEXT NOT NULL,
	finished_at TIMESTAMPTZ NULL
)`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMP NOT NULL,
	type TEXT NOT NULL,
	payload TEXT NOT NULL,
	finished_at TIMESTAMP NULL
)`

const indexTemplate = `CREATE INDEX IF NOT EXISTS %s ON %s (status, created_at)`

// Schema returns the DDL statements creating a box table for the dialect.
func Schema(dialect Dialect, table string) ([]string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case MySQL:
		return []string{fmt.Sprintf(mysqlSchema, name)}, nil
	case Postgres:
		return []string{
			fmt.Sprintf(postgresSchema, name),
			fmt.Sprintf(indexTemplate, indexName(name, "status_created_idx"), name),
		}, nil
	case SQLite:
		return []string{
			fmt.Sprintf(sqliteSchema, name),
			fmt.Sprintf(indexTemplate, indexName(name, "status_created_idx"), name),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
}

// SchemaScript joins the statements returned by Schema into a single script.
func SchemaScript(dialect Dialect, table string) (string, error) {
	statements, err := Schema(dialect, table)
	if err != nil {
		return "", err
	}

	return strings.Join(statements, ";\n\n") + ";\n", nil
}
