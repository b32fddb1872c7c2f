// Package realtime implements the client connection manager for the
// club live-update feed.
//
// The Client:
//   - Owns a single WebSocket connection and its lifecycle
//   - Reconnects automatically with exponential backoff and jitter
//   - Queues outbound messages while disconnected (bounded, lossy when full)
//   - Measures round-trip latency with an application-level ping/pong heartbeat
//   - Correlates request/reply pairs over the fire-and-forget transport
//   - Re-joins subscribed channels after every reconnect
//   - Fans inbound events out to registered listeners
package realtime
