// Package service implements the read-only query interface.
//
// Endpoints:
//   - GET /exchange_info: latest exchange metadata snapshot
//   - GET /rate_limits: rate limit rules from the latest exchange info
//   - GET /symbols: symbols listed in the latest exchange info
//   - GET /symbols/{symbol}: trading rules for one symbol
//   - GET /account_info: latest account profile snapshot
//   - GET /exchange_status: latest system status snapshot
//   - GET /health: poll loop and store health
//
// Every response is served from the in-memory store and carries the
// snapshot's kind, sequence, and fetch timestamp. Kinds that have never
// been polled return 404; a request never waits on a poll.
package service
