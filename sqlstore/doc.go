// Package sqlstore provides a streambox.Store over database/sql via sqlx.
//
// Supported dialects:
//   - MySQL 8.0+ (driver "mysql"): READ COMMITTED + SELECT ... FOR UPDATE SKIP LOCKED.
//     The DSN must set parseTime=true.
//   - PostgreSQL (driver "pgx"): SELECT ... FOR UPDATE SKIP LOCKED.
//   - SQLite (driver "sqlite3"): no row locks. Open adds _txlock=immediate to the DSN so
//     every transaction takes the database write lock at BEGIN, which serializes claims
//     across processes sharing the file, and limits the pool to a single connection.
//     Handles passed to NewStore must be opened the same way.
//
// A claimed batch holds one transaction. Batch.Scope puts it in the context, so
// Finish, Save and Atomic (which opens a SAVEPOINT) all run inside it. Application
// code joins its own transaction with WithTx before calling Outbox.AddEvent.
//
// See Schema for the table layout and CleanupMaintainer for retention of finished rows.
package sqlstore
