package reconnect

import (
	"context"
	"sync"
	"time"

	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Manager tracks consecutive failures of a connection-like resource and
// produces exponential backoff delays between retries. After too many
// consecutive failures the circuit opens and Wait refuses to proceed until
// the reset period elapses.
type Manager struct {
	minBackoff        time.Duration
	maxBackoff        time.Duration
	multiplier        float64
	maxFailures       int
	circuitResetAfter time.Duration

	mu                  sync.Mutex
	currentBackoff      time.Duration
	consecutiveFailures int
	totalRecoveries     int
	circuitOpen         bool
	circuitOpenedAt     time.Time

	log *logger.Logger
}

// Config configures a Manager. Zero values get sensible defaults.
type Config struct {
	MinBackoff        time.Duration // initial delay, default 1s
	MaxBackoff        time.Duration // cap, default 1min
	Multiplier        float64       // growth factor, default 2.0
	MaxFailures       int           // failures before the circuit opens, default 10
	CircuitResetAfter time.Duration // how long an open circuit blocks, default 5min
}

func NewManager(cfg Config, log *logger.Logger) *Manager {
	if cfg.MinBackoff == 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = time.Minute
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 10
	}
	if cfg.CircuitResetAfter == 0 {
		cfg.CircuitResetAfter = 5 * time.Minute
	}

	return &Manager{
		minBackoff:        cfg.MinBackoff,
		maxBackoff:        cfg.MaxBackoff,
		multiplier:        cfg.Multiplier,
		maxFailures:       cfg.MaxFailures,
		circuitResetAfter: cfg.CircuitResetAfter,
		currentBackoff:    cfg.MinBackoff,
		log:               log,
	}
}

// RecordFailure bumps the failure counter and grows the backoff. Once the
// counter reaches MaxFailures the circuit opens.
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++

	next := time.Duration(float64(m.currentBackoff) * m.multiplier)
	if next > m.maxBackoff {
		next = m.maxBackoff
	}
	m.currentBackoff = next

	if !m.circuitOpen && m.consecutiveFailures >= m.maxFailures {
		m.circuitOpen = true
		m.circuitOpenedAt = time.Now()
		m.log.Errorw("Circuit opened after repeated failures",
			"consecutive_failures", m.consecutiveFailures,
			"reset_after", m.circuitResetAfter,
		)
	}
}

// RecordSuccess resets the failure counter, the backoff and the circuit.
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consecutiveFailures == 0 && !m.circuitOpen {
		return
	}

	if m.circuitOpen {
		m.log.Infow("Circuit closed, connection recovered",
			"total_recoveries", m.totalRecoveries+1)
	}

	m.consecutiveFailures = 0
	m.currentBackoff = m.minBackoff
	m.circuitOpen = false
	m.circuitOpenedAt = time.Time{}
	m.totalRecoveries++
}

// Backoff returns the delay the next Wait call would sleep for.
func (m *Manager) Backoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBackoff
}

// Wait sleeps for the current backoff. It returns ErrUnavailable while the
// circuit is open and the reset period has not elapsed, and the context
// error if the context is cancelled during the sleep.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	if m.circuitOpen {
		if time.Since(m.circuitOpenedAt) < m.circuitResetAfter {
			m.mu.Unlock()
			return errors.Wrap(errors.ErrUnavailable, "circuit open")
		}
		// Reset period elapsed: allow a probe attempt
		m.circuitOpen = false
		m.consecutiveFailures = 0
		m.currentBackoff = m.minBackoff
	}
	backoff := m.currentBackoff
	m.mu.Unlock()

	select {
	case <-time.After(backoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time snapshot for health endpoints and logs.
type Stats struct {
	ConsecutiveFailures int
	TotalRecoveries     int
	CurrentBackoff      time.Duration
	CircuitOpen         bool
}

func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		ConsecutiveFailures: m.consecutiveFailures,
		TotalRecoveries:     m.totalRecoveries,
		CurrentBackoff:      m.currentBackoff,
		CircuitOpen:         m.circuitOpen,
	}
}
