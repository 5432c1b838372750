// Package store holds the two persistent vector stores: short-lived memory
// entries and long-lived knowledge documents.
//
// Invariants:
// - Per-store mutexes are held only around in-memory mutation and the file
//   write, never around an embedding call.
// - Every persist is a whole-file atomic rewrite (temp file plus rename), so
//   a crash leaves the previous complete state on disk.
// - Search snapshots the store under the lock and ranks outside it; ranking
//   is stable so equal scores keep insertion order.
// - Quarantined documents never enter the searchable index; the ledger is a
//   side file next to the store.
// - At most one embedding migration runs per store at any time.
package store
