// Package memstore implements streambox.Store in process memory.
//
// Claims are exclusive across goroutines. Writes made inside a batch scope or an Atomic
// unit are staged and applied on commit, so a failed handler leaves its record pending
// exactly as the SQL store does. Nothing survives a restart.
package memstore
