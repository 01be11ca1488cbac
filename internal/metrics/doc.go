// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state and connect attempts
//   - Scheduled reconnects and retry exhaustion
//   - Heartbeats sent and pong acknowledgements filtered
//   - Inbound message and transport error counts
package metrics
