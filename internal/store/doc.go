// Package store implements the State Store component.
//
// The State Store:
//   - Holds the latest successful snapshot per resource kind
//   - Replaces a snapshot only on a strictly greater sequence number
//   - Serves concurrent readers (query handlers) against one writer (poller)
package store
