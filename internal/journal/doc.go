// Package journal implements the append-only poll attempt log.
//
// Backends:
//   - File: one JSON-lines segment per resource kind, fsync per append
//   - Postgres: one row per attempt, keyed by (kind, sequence)
//
// Every poll attempt, success or failure, is appended before the snapshot
// becomes visible anywhere else. Entries for one kind read back in strictly
// increasing sequence order. Appends never update or delete prior entries.
//
// A file segment may end with a torn line if the process died mid-write.
// Readback drops a trailing partial line and surfaces corruption anywhere
// else as an error.
package journal
