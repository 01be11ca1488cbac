package connection

// scheduleReconnect arms the fixed-delay retry timer after a close, unless
// the close was requested by the caller or retries are exhausted. Must be
// called with m.mu held.
func (m *Manager) scheduleReconnect() {
	switch {
	case m.released:
		return
	case m.userClosed:
		m.logger.Debug("closed by caller, not reconnecting")
		return
	case m.retries >= m.opts.MaxRetryCount:
		m.logger.Warn("retries exhausted, staying closed",
			"retries", m.retries,
			"max_retry_count", m.opts.MaxRetryCount,
		)
		m.metrics.RetriesExhausted()
		return
	}

	m.retries++
	m.metrics.ReconnectScheduled()
	m.logger.Info("scheduling reconnect",
		"retry", m.retries,
		"max_retry_count", m.opts.MaxRetryCount,
		"delay", m.opts.RetryDelay,
	)

	m.cancelRetry()
	m.retryGen++
	gen := m.retryGen
	m.retryTimer = m.clock.AfterFunc(m.opts.RetryDelay, func() {
		m.retry(gen)
	})
}

// retry runs when the retry timer fires.
func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if m.released || gen != m.retryGen || m.retryTimer == nil {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil

	m.logger.Info("attempting reconnection", "retry", m.retries)
	fire := m.connect(nil)
	m.mu.Unlock()

	runAll(fire)
}

// cancelRetry stops a pending retry timer. Must be called with m.mu held.
func (m *Manager) cancelRetry() {
	if m.retryTimer == nil {
		return
	}
	m.retryTimer.Stop()
	m.retryTimer = nil
}

// retryPending reports whether a reconnect is scheduled.
func (m *Manager) retryPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryTimer != nil
}
