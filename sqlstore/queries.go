package sqlstore

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const columns = "id, status, created_at, type, payload"

type queries struct {
	insert       string
	claim        string
	finish       string
	exists       string
	countPending string
	cleanup      string
}

func newQueries(dialect Dialect, table string) queries {
	q := queries{
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)", table, columns),
		claim: fmt.Sprintf(
			"SELECT %s FROM %s WHERE status = ? ORDER BY created_at ASC LIMIT ?%s",
			columns,
			table,
			dialect.lockClause(),
		),
		finish:       fmt.Sprintf("UPDATE %s SET status = ?, finished_at = ? WHERE id = ? AND status = ?", table),
		exists:       fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table),
		countPending: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = ?", table),
	}

	switch dialect {
	case MySQL:
		q.cleanup = fmt.Sprintf(
			"DELETE FROM %s WHERE status = ? AND finished_at IS NOT NULL AND finished_at <= ? ORDER BY finished_at LIMIT ?",
			table,
		)
	default:
		q.cleanup = fmt.Sprintf(
			"DELETE FROM %s WHERE id IN (SELECT id FROM %s WHERE status = ? AND finished_at IS NOT NULL AND finished_at <= ? ORDER BY finished_at LIMIT ?)",
			table,
			table,
		)
	}

	return q.rebind(dialect.bindType())
}

func (q queries) rebind(bindType int) queries {
	return queries{
		insert:       sqlx.Rebind(bindType, q.insert),
		claim:        sqlx.Rebind(bindType, q.claim),
		finish:       sqlx.Rebind(bindType, q.finish),
		exists:       sqlx.Rebind(bindType, q.exists),
		countPending: sqlx.Rebind(bindType, q.countPending),
		cleanup:      sqlx.Rebind(bindType, q.cleanup),
	}
}
