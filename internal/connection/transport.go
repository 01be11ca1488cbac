package connection

// Transport is the socket primitive the Manager drives. It performs the
// actual network I/O; the Manager only reacts to its events.
type Transport interface {
	// Open starts connecting to url and returns the handle immediately.
	// Progress is reported through h. Open must not block and must not
	// invoke h before returning.
	Open(url string, h SocketHandler) Socket
}

// Socket is one underlying connection handle. Handles are never reused.
type Socket interface {
	// Send writes a text payload.
	Send(payload string) error

	// Close requests teardown. Completion is reported via OnClose.
	Close() error
}

// SocketHandler receives the events of a single Socket.
//
// Events of one socket are delivered sequentially. OnClose is the last
// event a socket reports and is reported exactly once, whether or not
// OnOpen was.
type SocketHandler interface {
	OnOpen()
	OnClose()
	OnMessage(payload string)
	OnError(err error)
}
