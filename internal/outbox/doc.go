// Package outbox queues outgoing messages on the caller's side while the
// connection is not OPEN and flushes them, in order, once it is.
//
// connection.Manager never buffers sends; callers that want
// store-and-forward semantics wrap it with an Outbox.
package outbox
