// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Poll attempts and outcomes per resource kind
//   - Poll latencies per resource kind
//   - Rate limiter denials and reported bucket usage
//   - Journal append throughput and failures
//   - Store conflicts from out-of-order publishes
//   - Refresh triggers from the market stream
//
// Each registry instance is self-contained, so tests can create as many
// as they need without collector name collisions.
package metrics
