package connection

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Errors
var (
	ErrInvalidState  = errors.New("connection not in open state")
	ErrEmptyURL      = errors.New("url is required")
	ErrInvalidOption = errors.New("invalid option")
	ErrSocketClosed  = errors.New("socket closed")
)

// Wire-level heartbeat payloads.
const (
	PingPayload = "ping"
	PongPayload = "pong"
)

// State is the coarse state of the managed connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InvalidStateError is returned by Send when the connection is not OPEN.
type InvalidStateError struct {
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("connection not in open state, current state: %s", e.State)
}

// Is reports whether target is ErrInvalidState.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// TransportError wraps any failure reported by the underlying socket.
type TransportError struct {
	Op  string // "dial", "read", "send"
	Err error
}

func (e *TransportError) Error() string {
	return "transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Default tuning values.
const (
	DefaultMaxRetryCount = 5
	DefaultRetryDelay    = 1 * time.Second
	DefaultPingInterval  = 30 * time.Second
)

// Options configures a Manager.
type Options struct {
	MaxRetryCount int           // Reconnect attempts allowed after a disconnect (0 = never reconnect)
	RetryDelay    time.Duration // Fixed wait between a disconnect and the next attempt
	PingInterval  time.Duration // Heartbeat period while OPEN

	Transport Transport    // Socket primitive (nil = WebSocketTransport with defaults)
	Clock     clock.Clock  // Time source for retry and heartbeat timers (nil = real clock)
	Logger    *slog.Logger // nil = slog.Default()
	Metrics   Recorder     // nil = no-op
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetryCount: DefaultMaxRetryCount,
		RetryDelay:    DefaultRetryDelay,
		PingInterval:  DefaultPingInterval,
	}
}

func (o *Options) validate() error {
	if o.MaxRetryCount < 0 {
		return fmt.Errorf("%w: max retry count must be >= 0, got %d", ErrInvalidOption, o.MaxRetryCount)
	}
	if o.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must be >= 0, got %v", ErrInvalidOption, o.RetryDelay)
	}
	if o.PingInterval < 0 {
		return fmt.Errorf("%w: ping interval must be >= 0, got %v", ErrInvalidOption, o.PingInterval)
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.PingInterval == 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.Transport == nil {
		o.Transport = NewWebSocketTransport(DefaultWebSocketConfig())
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = nopRecorder{}
	}
}

// Stats is a point-in-time snapshot of a Manager.
type Stats struct {
	State            State
	Attempts         int // Sockets opened, including the initial one
	Retries          int // Current retry counter
	HeartbeatsSent   int64
	MessagesReceived int64
	PongsFiltered    int64
}

// Recorder receives manager events for metrics. Implementations must be
// safe for concurrent use.
type Recorder interface {
	StateChanged(to State)
	ConnectAttempt()
	ReconnectScheduled()
	RetriesExhausted()
	HeartbeatSent()
	MessageReceived()
	PongFiltered()
	TransportError()
}

type nopRecorder struct{}

func (nopRecorder) StateChanged(State)  {}
func (nopRecorder) ConnectAttempt()     {}
func (nopRecorder) ReconnectScheduled() {}
func (nopRecorder) RetriesExhausted()   {}
func (nopRecorder) HeartbeatSent()      {}
func (nopRecorder) MessageReceived()    {}
func (nopRecorder) PongFiltered()       {}
func (nopRecorder) TransportError()     {}
