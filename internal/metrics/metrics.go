package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rickgao/resilient-ws/internal/connection"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "wsclient").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Connection records connection.Manager events as Prometheus metrics.
type Connection struct {
	state            prometheus.Gauge
	connectAttempts  prometheus.Counter
	reconnectsTotal  prometheus.Counter
	retriesExhausted prometheus.Counter
	heartbeatsSent   prometheus.Counter
	messagesReceived prometheus.Counter
	pongsFiltered    prometheus.Counter
	transportErrors  prometheus.Counter
}

var _ connection.Recorder = (*Connection)(nil)

// NewConnection registers the connection collectors.
func NewConnection(cfg Config) *Connection {
	if cfg.Namespace == "" {
		cfg.Namespace = "wsclient"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}

	return &Connection{
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "state",
			Help:        "Connection state (0=CONNECTING, 1=OPEN, 2=CLOSING, 3=CLOSED)",
			ConstLabels: cfg.ConstLabels,
		}),
		connectAttempts:  counter("connect_attempts_total", "Total number of sockets opened"),
		reconnectsTotal:  counter("reconnects_scheduled_total", "Total number of reconnects scheduled after a disconnect"),
		retriesExhausted: counter("retries_exhausted_total", "Total number of disconnects left unrecovered because retries ran out"),
		heartbeatsSent:   counter("heartbeats_sent_total", "Total number of heartbeat pings sent"),
		messagesReceived: counter("messages_received_total", "Total number of inbound messages delivered"),
		pongsFiltered:    counter("pongs_filtered_total", "Total number of heartbeat acknowledgements dropped"),
		transportErrors:  counter("transport_errors_total", "Total number of transport errors reported"),
	}
}

// StateChanged sets the state gauge to the numeric value of to.
func (c *Connection) StateChanged(to connection.State) { c.state.Set(float64(to)) }

// ConnectAttempt counts a socket being opened.
func (c *Connection) ConnectAttempt() { c.connectAttempts.Inc() }

// ReconnectScheduled counts a retry armed after a disconnect.
func (c *Connection) ReconnectScheduled() { c.reconnectsTotal.Inc() }

// RetriesExhausted counts a disconnect that will not be retried.
func (c *Connection) RetriesExhausted() { c.retriesExhausted.Inc() }

// HeartbeatSent counts a ping written to the socket.
func (c *Connection) HeartbeatSent() { c.heartbeatsSent.Inc() }

// MessageReceived counts a message delivered to the message handler.
func (c *Connection) MessageReceived() { c.messagesReceived.Inc() }

// PongFiltered counts a heartbeat acknowledgement dropped before delivery.
func (c *Connection) PongFiltered() { c.pongsFiltered.Inc() }

// TransportError counts an error reported by the socket.
func (c *Connection) TransportError() { c.transportErrors.Inc() }
