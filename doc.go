// Package streambox provides a transactional inbox/outbox engine with pluggable storage backends.
//
// A box is a durable staging table between a local state change and an external effect.
// Typical flow:
//  1. Within a business transaction, add an event to an Outbox (or, on the consuming side,
//     add an inbound message to an Inbox with AddFromConsumer).
//  2. A Scheduler bound to the box periodically claims a batch of pending records with
//     Store.LockNextBatch and runs each one through the box strategy.
//  3. The strategy (send to the broker, or project the decoded event) and the FINISHED
//     transition run in one Store.Atomic scope, so a failure leaves the record pending
//     for the next tick.
//
// Delivery is at-least-once. For the SQL implementation (MySQL and PostgreSQL with
// SKIP LOCKED, SQLite for single-process use) see the sqlstore package; memstore is an
// in-process implementation.
package streambox
