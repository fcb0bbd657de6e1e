package streambox

import "context"

// Store persists box records and hands out claimed batches.
//
// Implementations must be safe for concurrent use. Save and Finish join the
// transaction carried by ctx, if any, so that a record is written or finished
// together with the caller's own state change.
type Store interface {
	// Save inserts a new record. A duplicate id yields ErrDuplicateRecord.
	Save(ctx context.Context, record Record) error
	// LockNextBatch claims up to limit pending records, oldest first. Records claimed
	// by one caller are not returned to another until the batch is released.
	LockNextBatch(ctx context.Context, limit int) (Batch, error)
	// Finish moves the record to FINISHED. Finishing a finished record is a no-op.
	Finish(ctx context.Context, record Record) error
	// Atomic runs fn as one unit. When ctx carries a batch scope the unit is nested
	// in it; an error from fn discards everything fn wrote.
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// Batch is a set of records claimed by LockNextBatch.
type Batch interface {
	// Records returns the claimed records in claim order.
	Records() []Record
	// Scope binds the claim transaction to ctx.
	Scope(ctx context.Context) context.Context
	// Commit applies finished records and releases the claims.
	Commit() error
	// Rollback releases the claims without applying changes. It is a no-op after Commit.
	Rollback() error
}

// PendingCounter provides a total count of pending records.
type PendingCounter interface {
	// PendingCount returns the current number of pending records.
	PendingCount(ctx context.Context) (int, error)
}
