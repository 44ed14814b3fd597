// Package poller implements the Metadata Poller component.
//
// The Metadata Poller:
//   - Runs one fetch loop per resource kind on its own cadence
//   - Gates every fetch through the shared rate limiter budget
//   - Assigns a strictly increasing sequence to every completed attempt
//   - Journals every attempt before publishing it to the store
//   - Recovers sequences and last snapshots from the journal on start
//   - Accepts out-of-cycle refresh triggers, coalescing duplicates
//
// Rate-limited attempts (denied locally or throttled by the exchange) are
// rescheduled without consuming a sequence; only attempts that produced an
// observation, success or failure, are recorded.
package poller
