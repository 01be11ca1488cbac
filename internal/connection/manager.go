package connection

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Manager keeps one logical connection to a remote endpoint alive across
// transport failures.
//
// All state transitions happen under a single mutex. Handlers registered
// with On* are always invoked without the mutex held, so they may call
// back into the Manager.
type Manager struct {
	url     string
	opts    Options
	clock   clock.Clock
	logger  *slog.Logger
	metrics Recorder

	mu         sync.Mutex
	state      State
	retries    int
	attempts   int
	socket     *socketRef   // Current handle, nil while waiting to retry
	heartbeat  *heartbeat   // Non-nil iff state == StateOpen
	retryTimer *clock.Timer // Pending reconnect, if any
	retryGen   uint64
	userClosed bool // Close() was called; suppresses reconnect
	released   bool

	// Single-slot handlers (last registration wins)
	onMessage     func(string)
	onError       func(error)
	onClose       func()
	onStateChange func(from, to State)

	heartbeatsSent   atomic.Int64
	messagesReceived atomic.Int64
	pongsFiltered    atomic.Int64
}

// New creates a Manager and immediately starts connecting to url.
func New(url string, opts Options) (*Manager, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	m := &Manager{
		url:     url,
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger.With("url", url),
		metrics: opts.Metrics,
		state:   StateConnecting,
	}

	m.logger.Info("connection manager starting",
		"max_retry_count", opts.MaxRetryCount,
		"retry_delay", opts.RetryDelay,
		"ping_interval", opts.PingInterval,
	)

	m.mu.Lock()
	m.metrics.StateChanged(StateConnecting)
	fire := m.connect(nil)
	m.mu.Unlock()
	runAll(fire)

	return m, nil
}

// URL returns the target address.
func (m *Manager) URL() string {
	return m.url
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		State:            m.state,
		Attempts:         m.attempts,
		Retries:          m.retries,
		HeartbeatsSent:   m.heartbeatsSent.Load(),
		MessagesReceived: m.messagesReceived.Load(),
		PongsFiltered:    m.pongsFiltered.Load(),
	}
}

// Send hands message to the current socket verbatim. It fails with an
// *InvalidStateError unless the connection is OPEN. Nothing is queued.
func (m *Manager) Send(message string) error {
	m.mu.Lock()
	if m.state != StateOpen || m.socket == nil {
		state := m.state
		m.mu.Unlock()
		return &InvalidStateError{State: state}
	}
	ref := m.socket
	m.mu.Unlock()

	if err := ref.sock.Send(message); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// Close requests a graceful shutdown. It is a no-op unless the connection
// is OPEN. The resulting close event does not trigger a reconnect.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state != StateOpen {
		m.mu.Unlock()
		return
	}
	m.userClosed = true
	m.stopHeartbeat()
	fire := m.transition(StateClosing, nil)
	ref := m.socket
	m.mu.Unlock()

	runAll(fire)

	ref.logger.Info("closing connection")
	if err := ref.sock.Close(); err != nil {
		ref.logger.Debug("socket close failed", "error", err)
	}
}

// Release disposes of the Manager in any state: it cancels a pending
// reconnect, stops the heartbeat and detaches and closes the current
// socket. Events arriving afterwards are ignored. Release is idempotent.
func (m *Manager) Release() {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return
	}
	m.released = true
	m.userClosed = true
	m.cancelRetry()
	m.stopHeartbeat()
	ref := m.socket
	m.socket = nil
	fire := m.transition(StateClosed, nil)
	m.mu.Unlock()

	runAll(fire)

	m.logger.Info("connection manager released")
	if ref != nil {
		if err := ref.sock.Close(); err != nil {
			ref.logger.Debug("socket close failed", "error", err)
		}
	}
}

// OnMessage registers the inbound message handler. Heartbeat
// acknowledgements never reach it.
func (m *Manager) OnMessage(fn func(message string)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

// OnError registers the transport error handler.
func (m *Manager) OnError(fn func(err error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// OnClose registers the handler invoked each time the underlying socket
// closes, whether or not a reconnect follows.
func (m *Manager) OnClose(fn func()) {
	m.mu.Lock()
	m.onClose = fn
	m.mu.Unlock()
}

// OnStateChange registers a handler invoked after every state transition.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.mu.Lock()
	m.onStateChange = fn
	m.mu.Unlock()
}

// connect opens a fresh socket. Must be called with m.mu held.
func (m *Manager) connect(fire []func()) []func() {
	fire = m.transition(StateConnecting, fire)

	m.attempts++
	m.metrics.ConnectAttempt()

	id := uuid.NewString()
	ref := &socketRef{
		m:      m,
		id:     id,
		logger: m.logger.With("socket_id", id),
	}
	m.socket = ref

	ref.logger.Debug("opening socket", "attempt", m.attempts)
	ref.sock = m.opts.Transport.Open(m.url, ref)

	return fire
}

// transition moves to state to and queues the state change handler.
// Must be called with m.mu held.
func (m *Manager) transition(to State, fire []func()) []func() {
	from := m.state
	if from == to {
		return fire
	}
	m.state = to
	m.metrics.StateChanged(to)
	m.logger.Debug("state transition", "from", from, "to", to)

	if fn := m.onStateChange; fn != nil {
		fire = append(fire, func() { fn(from, to) })
	}
	return fire
}

func (m *Manager) handleOpen(ref *socketRef) {
	m.mu.Lock()
	if m.socket != ref || m.state != StateConnecting {
		m.mu.Unlock()
		ref.logger.Debug("ignoring open from detached socket")
		return
	}

	m.retries = 0
	fire := m.transition(StateOpen, nil)
	m.startHeartbeat(ref)
	m.mu.Unlock()

	ref.logger.Info("connection open")
	runAll(fire)
}

func (m *Manager) handleClose(ref *socketRef) {
	m.mu.Lock()
	if m.socket != ref {
		m.mu.Unlock()
		ref.logger.Debug("ignoring close from detached socket")
		return
	}

	m.socket = nil
	m.stopHeartbeat()
	fire := m.transition(StateClosed, nil)
	if fn := m.onClose; fn != nil {
		fire = append(fire, fn)
	}
	m.scheduleReconnect()
	m.mu.Unlock()

	ref.logger.Info("connection closed")
	runAll(fire)
}

func (m *Manager) handleMessage(ref *socketRef, payload string) {
	m.mu.Lock()
	if m.socket != ref {
		m.mu.Unlock()
		return
	}
	if payload == PongPayload {
		m.mu.Unlock()
		m.pongsFiltered.Add(1)
		m.metrics.PongFiltered()
		return
	}
	fn := m.onMessage
	m.mu.Unlock()

	m.messagesReceived.Add(1)
	m.metrics.MessageReceived()
	if fn != nil {
		fn(payload)
	}
}

func (m *Manager) handleError(ref *socketRef, err error) {
	m.mu.Lock()
	if m.socket != ref {
		m.mu.Unlock()
		return
	}
	fn := m.onError
	m.mu.Unlock()

	var te *TransportError
	if !errors.As(err, &te) {
		err = &TransportError{Op: "socket", Err: err}
	}

	m.metrics.TransportError()
	ref.logger.Warn("transport error", "error", err)
	if fn != nil {
		fn(err)
	}
}

// socketRef binds one Socket to the Manager. Once it is no longer the
// Manager's current socket its events are dropped.
type socketRef struct {
	m      *Manager
	id     string
	sock   Socket
	logger *slog.Logger
}

func (r *socketRef) OnOpen()                  { r.m.handleOpen(r) }
func (r *socketRef) OnClose()                 { r.m.handleClose(r) }
func (r *socketRef) OnMessage(payload string) { r.m.handleMessage(r, payload) }
func (r *socketRef) OnError(err error)        { r.m.handleError(r, err) }

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
