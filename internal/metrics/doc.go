// Package metrics exports client state as Prometheus metrics.
//
// Key metrics:
//   - Connection lifecycle state and reconnect counts
//   - Message send/receive/drop rates
//   - Outbound queue depth and pending request counts
//   - Heartbeat round-trip latency
package metrics
