// Package connection manages the lifecycle of one worker's backing store
// connection: lazy open, periodic liveness probing and a single reconnect
// attempt when a probe fails.
package connection

import (
	"context"
	"time"

	"kvstore-api/internal/apperrors"
	"kvstore-api/internal/metrics"

	"go.uber.org/zap"
)

// DefaultHealthCheckInterval is how long a connection may sit unchecked
// before the next Acquire probes it.
const DefaultHealthCheckInterval = 5 * time.Second

// Conn is a backing store connection as seen by the lifecycle manager and
// the orchestration service.
type Conn interface {
	// Ping issues a minimal no-op query.
	Ping(ctx context.Context) error
	// Upsert inserts or overwrites the value stored under key.
	Upsert(ctx context.Context, key int64, value string) error
	// Get returns the stored value or an error matching apperrors.ErrNotFound.
	Get(ctx context.Context, key int64) (string, error)
	// Delete removes key and reports the number of rows affected.
	Delete(ctx context.Context, key int64) (int64, error)
	// Close releases the connection.
	Close() error
}

// Dialer opens a new connection.
type Dialer func(ctx context.Context) (Conn, error)

// Status is the manager's view of its connection.
type Status int

const (
	// StatusUnchecked means no connection has been opened yet, or it was closed.
	StatusUnchecked Status = iota
	// StatusOpen means the connection opened or passed its last probe.
	StatusOpen
	// StatusDead means the last open or reconnect attempt failed.
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusDead:
		return "dead"
	default:
		return "unchecked"
	}
}

// Options configures a Manager.
type Options struct {
	// HealthCheckInterval defaults to DefaultHealthCheckInterval.
	HealthCheckInterval time.Duration
	Logger              *zap.Logger
	Metrics             *metrics.Collector
	// WorkerID is attached to log lines.
	WorkerID int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager owns exactly one connection for one worker. It is not safe for
// concurrent use; the owning worker is its only caller.
type Manager struct {
	dial     Dialer
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Collector
	now      func() time.Time

	conn        Conn
	lastChecked time.Time
	status      Status
}

// NewManager returns a manager that has not connected yet. The first
// Acquire opens the connection.
func NewManager(dial Dialer, opts Options) *Manager {
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		dial:     dial,
		interval: opts.HealthCheckInterval,
		logger:   opts.Logger.With(zap.Int("worker", opts.WorkerID)),
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
}

// Acquire returns a usable connection.
//
// An unconnected or dead manager opens a new connection. A connected manager
// whose last check is at least one health-check interval old probes the
// connection first; if the probe fails the connection is closed and exactly
// one reconnect is attempted. Every failure to produce a connection matches
// apperrors.ErrUnavailable and is not retried here.
func (m *Manager) Acquire(ctx context.Context) (Conn, error) {
	if m.conn == nil || m.status != StatusOpen {
		if err := m.open(ctx); err != nil {
			return nil, err
		}
		return m.conn, nil
	}

	now := m.now()
	if now.Sub(m.lastChecked) < m.interval {
		return m.conn, nil
	}

	err := m.conn.Ping(ctx)
	m.metrics.RecordProbe(err)
	if err == nil {
		m.lastChecked = now
		return m.conn, nil
	}

	m.logger.Warn("liveness probe failed, reconnecting", zap.Error(err))
	m.release()
	err = m.open(ctx)
	m.metrics.RecordReconnect(err)
	if err != nil {
		return nil, err
	}
	return m.conn, nil
}

// Status reports the manager's connection status.
func (m *Manager) Status() Status {
	return m.status
}

// LastChecked returns when the connection was last opened or probed.
func (m *Manager) LastChecked() time.Time {
	return m.lastChecked
}

// Close releases the connection if one is held. The next Acquire reopens.
func (m *Manager) Close() error {
	if m.conn == nil {
		m.status = StatusUnchecked
		return nil
	}
	conn := m.conn
	m.conn = nil
	m.status = StatusUnchecked
	return conn.Close()
}

// open dials a fresh connection. Any previous connection must already be
// released.
func (m *Manager) open(ctx context.Context) error {
	m.release()

	conn, err := m.dial(ctx)
	m.metrics.RecordDial(err)
	if err != nil {
		m.status = StatusDead
		m.logger.Error("store connection failed", zap.Error(err))
		return apperrors.Wrap(apperrors.CodeUnavailable, "open store connection", err)
	}
	m.conn = conn
	m.status = StatusOpen
	m.lastChecked = m.now()
	m.logger.Debug("store connection opened")
	return nil
}

// release closes the held connection, if any, without touching status.
func (m *Manager) release() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		m.logger.Warn("close store connection", zap.Error(err))
	}
	m.conn = nil
}
