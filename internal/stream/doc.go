// Package stream implements the market stream watcher.
//
// The watcher holds one WebSocket connection to the exchange's combined
// ticker streams for a configured symbol list. A symbol reporting a halted
// trading status requests an early exchange info refresh from the poller,
// rate limited by a cooldown so a flapping symbol cannot stampede it.
// Connections are re-established with exponential backoff.
//
// The watcher only observes the exchange; it never publishes stream data
// to downstream consumers.
package stream
