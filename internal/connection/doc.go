// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns exactly one underlying socket at a time
//   - Tracks a coarse state: CONNECTING, OPEN, CLOSING, CLOSED
//   - Reconnects after a drop with a fixed delay, up to MaxRetryCount times
//   - Sends a "ping" heartbeat every PingInterval while OPEN
//   - Drops inbound "pong" acknowledgements before the message handler
//
// The socket primitive is pluggable through Transport; WebSocketTransport
// is the gorilla/websocket implementation.
package connection
