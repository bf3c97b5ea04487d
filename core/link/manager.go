// Package link manages TCP session lifecycle to a primary/backup endpoint
// pair: pooling, heartbeats, reconnection, and failover. The manager owns the
// sockets; request/response correlation lives in the dispatcher, which
// receives inbound frames through the manager's frame handler.
package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/finswitch/finswitch/adapters/metrics"
	"github.com/finswitch/finswitch/core/events"
	"github.com/finswitch/finswitch/ports"
	"github.com/rs/zerolog"
)

// State is the link-level connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed" // terminal until the link is restarted
)

func (s State) gauge() float64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateReconnecting:
		return 3
	case StateFailed:
		return 4
	default:
		return 0
	}
}

// Role identifies which endpoint a connection belongs to.
type Role string

const (
	RolePrimary Role = "primary"
	RoleBackup  Role = "backup"
)

// Endpoint is one peer address.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Config is the connection manager's configuration surface.
type Config struct {
	Name          string
	InstitutionID string

	Primary Endpoint
	Backup  Endpoint // zero Host means no backup configured

	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	HeartbeatInterval time.Duration

	MaxRetryAttempts   int
	RetryDelay         time.Duration
	AutoReconnect      bool
	UseBackupOnFailure bool

	PoolMinSize int
	PoolMaxSize int
	PoolMaxWait time.Duration
}

// Validate rejects configurations the pool cannot run with.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("link missing name")
	}
	if c.Primary.Host == "" || c.Primary.Port <= 0 {
		return fmt.Errorf("link %s: missing primary endpoint", c.Name)
	}
	if c.PoolMinSize < 1 || c.PoolMaxSize < c.PoolMinSize {
		return fmt.Errorf("link %s: pool sizes min=%d max=%d invalid", c.Name, c.PoolMinSize, c.PoolMaxSize)
	}
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("link %s: max retry attempts must be at least 1", c.Name)
	}
	return nil
}

func (c Config) hasBackup() bool {
	return c.Backup.Host != ""
}

func (c Config) endpoint(role Role) Endpoint {
	if role == RoleBackup {
		return c.Backup
	}
	return c.Primary
}

// FrameHandler receives every inbound frame in arrival order per connection.
type FrameHandler func(conn *Conn, frame []byte)

// Manager runs the per-link connection state machine.
type Manager struct {
	cfg       Config
	dialer    ports.Dialer
	clock     ports.Clock
	bus       *events.Bus
	collector *metrics.Collector
	logger    zerolog.Logger

	handler   FrameHandler
	heartbeat func() ([]byte, error)

	mu        sync.Mutex
	state     State
	active    Role
	conns     map[string]*Conn
	idleCh    chan *Conn
	busyCount int
	repairing bool
	closed    bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a connection manager for one link.
func NewManager(cfg Config, dialer ports.Dialer, clk ports.Clock, bus *events.Bus,
	collector *metrics.Collector, logger zerolog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       cfg,
		dialer:    dialer,
		clock:     clk,
		bus:       bus,
		collector: collector,
		logger:    logger.With().Str("link", cfg.Name).Logger(),
		state:     StateDisconnected,
		active:    RolePrimary,
		conns:     make(map[string]*Conn),
		idleCh:    make(chan *Conn, cfg.PoolMaxSize),
		stopCh:    make(chan struct{}),
	}, nil
}

// SetFrameHandler registers the inbound frame sink. Must be called before
// Start.
func (m *Manager) SetFrameHandler(h FrameHandler) {
	m.handler = h
}

// SetHeartbeatFrame registers a factory building the echo frame sent on idle
// connections. Without one, liveness relies on peer traffic alone.
func (m *Manager) SetHeartbeatFrame(f func() ([]byte, error)) {
	m.heartbeat = f
}

// Start connects the link: primary first, backup on failure when configured,
// retrying per config before giving up with a LinkDownError.
func (m *Manager) Start(ctx context.Context) error {
	m.setState(StateConnecting)

	conn, role, err := m.connectWithRetry(ctx)
	if err != nil {
		m.setState(StateFailed)
		return err
	}

	m.mu.Lock()
	m.active = role
	m.mu.Unlock()
	m.setState(StateConnected)
	m.idleCh <- conn

	m.topUp(ctx, role)

	m.wg.Add(2)
	go m.heartbeatLoop()
	go m.reaperLoop()
	return nil
}

// connectWithRetry runs attempt rounds spaced by the retry delay. Each round
// tries the primary and then, when allowed, the backup.
func (m *Manager) connectWithRetry(ctx context.Context) (*Conn, Role, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxRetryAttempts; attempt++ {
		if attempt > 1 {
			m.collector.Reconnects.WithLabelValues(m.cfg.Name).Inc()
			select {
			case <-m.clock.After(m.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-m.stopCh:
				return nil, "", ErrClosed
			}
		}

		conn, err := m.dial(ctx, RolePrimary)
		if err == nil {
			return conn, RolePrimary, nil
		}
		lastErr = err
		m.logger.Warn().Err(err).Int("attempt", attempt).
			Str("endpoint", m.cfg.Primary.String()).Msg("primary connect failed")

		if m.cfg.UseBackupOnFailure && m.cfg.hasBackup() {
			conn, err = m.dial(ctx, RoleBackup)
			if err == nil {
				m.collector.Failovers.WithLabelValues(m.cfg.Name).Inc()
				m.bus.PublishAsync(context.Background(), events.Event{
					Name: events.LinkFailover,
					Link: m.cfg.Name,
					Data: map[string]any{"endpoint": m.cfg.Backup.String()},
				})
				m.logger.Info().Str("endpoint", m.cfg.Backup.String()).Msg("failed over to backup")
				return conn, RoleBackup, nil
			}
			lastErr = err
			m.logger.Warn().Err(err).Int("attempt", attempt).
				Str("endpoint", m.cfg.Backup.String()).Msg("backup connect failed")
		}
	}
	return nil, "", fmt.Errorf("%w: %v", &LinkDownError{Link: m.cfg.Name, State: StateFailed}, lastErr)
}

// dial opens one connection, registers it, and starts its read pump.
func (m *Manager) dial(ctx context.Context, role Role) (*Conn, error) {
	ep := m.cfg.endpoint(role)
	session, err := m.dialer.DialContext(ctx, ep.Host, ep.Port)
	if err != nil {
		m.collector.ConnFailures.WithLabelValues(m.cfg.Name, "dial").Inc()
		return nil, err
	}

	conn := newConn(session, role, m.clock.Now())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.close()
		return nil, ErrClosed
	}
	m.conns[conn.ID] = conn
	total := len(m.conns)
	m.mu.Unlock()

	m.collector.Connects.WithLabelValues(m.cfg.Name, string(role)).Inc()
	m.collector.PoolSize.WithLabelValues(m.cfg.Name).Set(float64(total))
	m.bus.PublishAsync(context.Background(), events.Event{
		Name: events.ConnOpened,
		Link: m.cfg.Name,
		Data: map[string]any{"conn": conn.ID, "endpoint": ep.String(), "role": string(role)},
	})
	m.logger.Info().Str("conn", conn.ID).Str("endpoint", ep.String()).Msg("connection established")

	m.wg.Add(1)
	go m.readLoop(conn)
	return conn, nil
}

// topUp grows the pool to its minimum size, best effort.
func (m *Manager) topUp(ctx context.Context, role Role) {
	for {
		m.mu.Lock()
		need := len(m.conns) < m.cfg.PoolMinSize && !m.closed
		m.mu.Unlock()
		if !need {
			return
		}
		conn, err := m.dial(ctx, role)
		if err != nil {
			m.logger.Warn().Err(err).Msg("pool top-up dial failed")
			return
		}
		m.idleCh <- conn
	}
}

// Checkout returns a free connection, dialing a new one while the pool is
// under its maximum, and otherwise waiting up to the pool wait bound.
func (m *Manager) Checkout(ctx context.Context) (*Conn, error) {
	start := m.clock.Now()
	wait := m.clock.After(m.cfg.PoolMaxWait)

	for {
		select {
		case conn := <-m.idleCh:
			if conn.closed.Load() {
				continue
			}
			if err := m.markBusy(conn); err != nil {
				return nil, err
			}
			m.collector.PoolWaitSeconds.WithLabelValues(m.cfg.Name).
				Observe(m.clock.Now().Sub(start).Seconds())
			return conn, nil
		default:
		}

		m.mu.Lock()
		switch {
		case m.closed:
			m.mu.Unlock()
			return nil, ErrClosed
		case m.state == StateFailed:
			m.mu.Unlock()
			return nil, &LinkDownError{Link: m.cfg.Name, State: StateFailed}
		case m.state == StateDisconnected:
			m.mu.Unlock()
			return nil, &LinkDownError{Link: m.cfg.Name, State: StateDisconnected}
		}
		canGrow := m.state == StateConnected && len(m.conns) < m.cfg.PoolMaxSize
		role := m.active
		m.mu.Unlock()

		if canGrow {
			conn, err := m.dial(ctx, role)
			if err == nil {
				if err := m.markBusy(conn); err != nil {
					return nil, err
				}
				m.collector.PoolWaitSeconds.WithLabelValues(m.cfg.Name).
					Observe(m.clock.Now().Sub(start).Seconds())
				return conn, nil
			}
			m.logger.Warn().Err(err).Msg("pool growth dial failed")
			m.repairAsync()
		}

		select {
		case conn := <-m.idleCh:
			if conn.closed.Load() {
				continue
			}
			if err := m.markBusy(conn); err != nil {
				return nil, err
			}
			m.collector.PoolWaitSeconds.WithLabelValues(m.cfg.Name).
				Observe(m.clock.Now().Sub(start).Seconds())
			return conn, nil
		case <-wait:
			m.collector.PoolExhausted.WithLabelValues(m.cfg.Name).Inc()
			return nil, &PoolExhaustedError{Link: m.cfg.Name, Wait: m.cfg.PoolMaxWait}
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.stopCh:
			return nil, ErrClosed
		}
	}
}

func (m *Manager) markBusy(conn *Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	conn.busy = true
	m.busyCount++
	conn.lastUsed.Store(m.clock.Now().UnixNano())
	m.collector.PoolBusy.WithLabelValues(m.cfg.Name).Set(float64(m.busyCount))
	return nil
}

// Checkin returns a connection to the pool. Unhealthy connections are
// destroyed and the pool repaired.
func (m *Manager) Checkin(conn *Conn, healthy bool) {
	m.mu.Lock()
	if conn.busy {
		conn.busy = false
		m.busyCount--
		m.collector.PoolBusy.WithLabelValues(m.cfg.Name).Set(float64(m.busyCount))
	}
	conn.lastUsed.Store(m.clock.Now().UnixNano())
	closed := m.closed
	m.mu.Unlock()

	if closed {
		conn.close()
		return
	}
	if !healthy || conn.closed.Load() {
		m.destroy(conn, "unhealthy")
		m.repairAsync()
		return
	}
	select {
	case m.idleCh <- conn:
	default:
		// Cannot happen while the channel capacity matches the pool bound.
		m.destroy(conn, "pool overflow")
	}
}

// readLoop pumps inbound frames to the handler. Read timeouts are tolerated
// while the peer has sent a frame recently; a connection with no inbound
// traffic past the heartbeat window is presumed dead even when writes still
// succeed.
func (m *Manager) readLoop(conn *Conn) {
	defer m.wg.Done()
	staleAfter := m.cfg.HeartbeatInterval + m.cfg.ReadTimeout

	for {
		frame, err := conn.session.ReadFrame()
		if err != nil {
			if conn.closed.Load() || m.isClosed() {
				return
			}
			if isTimeout(err) && conn.quietSince(m.clock.Now()) <= staleAfter {
				continue
			}
			reason := "read error"
			if isTimeout(err) {
				reason = "heartbeat missed"
			}
			m.logger.Warn().Err(err).Str("conn", conn.ID).Msg("connection lost")
			m.collector.ConnFailures.WithLabelValues(m.cfg.Name, reason).Inc()
			m.destroy(conn, reason)
			m.repairAsync()
			return
		}
		conn.touch(m.clock.Now())
		if m.handler != nil {
			m.handler(conn, frame)
		}
	}
}

// heartbeatLoop echoes idle connections at the configured interval.
func (m *Manager) heartbeatLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.clock.After(m.cfg.HeartbeatInterval):
		}
		if m.heartbeat == nil {
			continue
		}

		now := m.clock.Now()
		for _, conn := range m.idleConns() {
			if conn.idleSince(now) < m.cfg.HeartbeatInterval {
				continue
			}
			frame, err := m.heartbeat()
			if err != nil {
				m.logger.Error().Err(err).Msg("heartbeat frame build failed")
				continue
			}
			if err := conn.WriteFrame(frame); err != nil {
				m.logger.Warn().Err(err).Str("conn", conn.ID).Msg("heartbeat write failed")
				m.collector.ConnFailures.WithLabelValues(m.cfg.Name, "heartbeat write").Inc()
				m.destroy(conn, "heartbeat write")
				m.repairAsync()
				continue
			}
			m.collector.HeartbeatsSent.WithLabelValues(m.cfg.Name).Inc()
		}
	}
}

// reaperLoop destroys connections idle past the idle timeout, down to the
// pool minimum.
func (m *Manager) reaperLoop() {
	defer m.wg.Done()
	interval := m.cfg.IdleTimeout / 2
	if interval <= 0 {
		interval = m.cfg.IdleTimeout
	}
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.clock.After(interval):
		}
		now := m.clock.Now()
		for _, conn := range m.idleConns() {
			m.mu.Lock()
			excess := len(m.conns) > m.cfg.PoolMinSize
			m.mu.Unlock()
			if !excess {
				break
			}
			if conn.idleSince(now) > m.cfg.IdleTimeout {
				m.logger.Debug().Str("conn", conn.ID).Msg("reaping idle connection")
				m.destroy(conn, "idle")
			}
		}
	}
}

func (m *Manager) idleConns() []*Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Conn
	for _, c := range m.conns {
		if !c.busy && !c.closed.Load() {
			out = append(out, c)
		}
	}
	return out
}

// destroy removes a connection from the pool and closes it.
func (m *Manager) destroy(conn *Conn, reason string) {
	conn.close()

	m.mu.Lock()
	if _, ok := m.conns[conn.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, conn.ID)
	if conn.busy {
		conn.busy = false
		m.busyCount--
		m.collector.PoolBusy.WithLabelValues(m.cfg.Name).Set(float64(m.busyCount))
	}
	total := len(m.conns)
	m.mu.Unlock()

	m.collector.PoolSize.WithLabelValues(m.cfg.Name).Set(float64(total))
	m.bus.PublishAsync(context.Background(), events.Event{
		Name: events.ConnClosed,
		Link: m.cfg.Name,
		Data: map[string]any{"conn": conn.ID, "reason": reason},
	})
}

// repairAsync brings the pool back to minimum size in the background. At most
// one repair runs at a time; when reconnection is disabled the link degrades
// to Disconnected once the pool empties.
func (m *Manager) repairAsync() {
	m.mu.Lock()
	if m.closed || m.repairing || m.state == StateFailed {
		m.mu.Unlock()
		return
	}
	if !m.cfg.AutoReconnect {
		if len(m.conns) == 0 {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
		return
	}
	if len(m.conns) >= m.cfg.PoolMinSize {
		m.mu.Unlock()
		return
	}
	m.repairing = true
	m.setStateLocked(StateReconnecting)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.repair()
}

func (m *Manager) repair() {
	defer m.wg.Done()

	ctx := context.Background()
	conn, role, err := m.connectWithRetry(ctx)

	m.mu.Lock()
	m.repairing = false
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			conn.close()
		}
		return
	}
	if err != nil {
		m.setStateLocked(StateFailed)
		m.mu.Unlock()
		m.logger.Error().Err(err).Msg("link failed: retries exhausted on both endpoints")
		m.closeAll()
		return
	}
	m.active = role
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.idleCh <- conn
	m.topUp(ctx, role)
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status is a monitoring snapshot of the link.
type Status struct {
	Name       string `json:"name"`
	State      State  `json:"state"`
	ActiveRole Role   `json:"active_role"`
	PoolSize   int    `json:"pool_size"`
	Busy       int    `json:"busy"`
}

// Status returns a point-in-time snapshot for monitoring.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Name:       m.cfg.Name,
		State:      m.state,
		ActiveRole: m.active,
		PoolSize:   len(m.conns),
		Busy:       m.busyCount,
	}
}

// Stop closes every connection and halts background loops.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stopCh)
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	m.closeAll()
	m.wg.Wait()
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*Conn)
	m.busyCount = 0
	m.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	m.collector.PoolSize.WithLabelValues(m.cfg.Name).Set(0)
	m.collector.PoolBusy.WithLabelValues(m.cfg.Name).Set(0)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.setStateLocked(s)
	m.mu.Unlock()
}

// setStateLocked publishes a state transition. Caller holds mu.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	prev := m.state
	m.state = s
	m.collector.LinkState.WithLabelValues(m.cfg.Name).Set(s.gauge())
	m.logger.Info().Str("from", string(prev)).Str("to", string(s)).Msg("link state changed")
	m.bus.PublishAsync(context.Background(), events.Event{
		Name: events.LinkStateChanged,
		Link: m.cfg.Name,
		Data: map[string]any{"from": string(prev), "to": string(s)},
	})
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
