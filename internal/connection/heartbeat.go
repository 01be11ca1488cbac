package connection

import "github.com/benbjohnson/clock"

// heartbeat is the keep-alive ticker of one OPEN period.
type heartbeat struct {
	ticker *clock.Ticker
	done   chan struct{}
}

// startHeartbeat replaces any running heartbeat with a new one bound to
// ref. Must be called with m.mu held.
func (m *Manager) startHeartbeat(ref *socketRef) {
	m.stopHeartbeat()

	hb := &heartbeat{
		ticker: m.clock.Ticker(m.opts.PingInterval),
		done:   make(chan struct{}),
	}
	m.heartbeat = hb
	go m.heartbeatLoop(hb, ref)
}

// stopHeartbeat must be called with m.mu held.
func (m *Manager) stopHeartbeat() {
	if m.heartbeat == nil {
		return
	}
	m.heartbeat.ticker.Stop()
	close(m.heartbeat.done)
	m.heartbeat = nil
}

func (m *Manager) heartbeatLoop(hb *heartbeat, ref *socketRef) {
	for {
		select {
		case <-hb.done:
			return
		case <-hb.ticker.C:
			m.sendHeartbeat(hb, ref)
		}
	}
}

func (m *Manager) sendHeartbeat(hb *heartbeat, ref *socketRef) {
	m.mu.Lock()
	live := m.heartbeat == hb && m.state == StateOpen && m.socket == ref
	m.mu.Unlock()
	if !live {
		return
	}

	if err := ref.sock.Send(PingPayload); err != nil {
		ref.logger.Debug("failed to send heartbeat", "error", err)
		return
	}
	m.heartbeatsSent.Add(1)
	m.metrics.HeartbeatSent()
}

// heartbeatActive reports whether a heartbeat ticker is running.
func (m *Manager) heartbeatActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeat != nil
}
