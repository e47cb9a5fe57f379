// Package history persists conversation messages per session.
//
// Three backends implement the Store interface: an in-memory map, JSONL
// files and an embedded SQLite database. The backend is selected by
// configuration through Open.
//
// Invariants:
// - Message sequences are append-only and ordered by append sequence.
// - An Append is atomic: either all of its messages are durable or none.
// - Callers serialize appends within one session; appends across sessions
//   may run concurrently.
package history
