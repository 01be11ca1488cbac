package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/resilient-ws/internal/connection"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	require.NotNil(t, m.Counter, "expected counter metric to have Counter field")
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	require.NotNil(t, m.Gauge, "expected gauge metric to have Gauge field")
	return m.GetGauge().GetValue()
}

func TestConnection_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewConnection(Config{Registry: reg})

	c.StateChanged(connection.StateOpen)
	c.ConnectAttempt()
	c.ConnectAttempt()
	c.ReconnectScheduled()
	c.RetriesExhausted()
	c.HeartbeatSent()
	c.HeartbeatSent()
	c.HeartbeatSent()
	c.MessageReceived()
	c.PongFiltered()
	c.TransportError()

	assert.Equal(t, float64(connection.StateOpen), metricGaugeValue(t, c.state))
	assert.Equal(t, 2.0, metricCounterValue(t, c.connectAttempts))
	assert.Equal(t, 1.0, metricCounterValue(t, c.reconnectsTotal))
	assert.Equal(t, 1.0, metricCounterValue(t, c.retriesExhausted))
	assert.Equal(t, 3.0, metricCounterValue(t, c.heartbeatsSent))
	assert.Equal(t, 1.0, metricCounterValue(t, c.messagesReceived))
	assert.Equal(t, 1.0, metricCounterValue(t, c.pongsFiltered))
	assert.Equal(t, 1.0, metricCounterValue(t, c.transportErrors))

	c.StateChanged(connection.StateClosed)
	assert.Equal(t, float64(connection.StateClosed), metricGaugeValue(t, c.state))
}

func TestConnection_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewConnection(Config{
		Namespace:   "test",
		Registry:    reg,
		ConstLabels: prometheus.Labels{"endpoint": "primary"},
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	// Counters with no observations are still exported.
	for _, want := range []string{
		"test_state",
		"test_connect_attempts_total",
		"test_reconnects_scheduled_total",
		"test_retries_exhausted_total",
		"test_heartbeats_sent_total",
		"test_messages_received_total",
		"test_pongs_filtered_total",
		"test_transport_errors_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}

	// Registering twice on the same registry panics.
	assert.Panics(t, func() { NewConnection(Config{Namespace: "test", Registry: reg}) })
}
