package doris

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"dorisgate.io/internal/ids"
	"dorisgate.io/internal/obs"
)

// ErrConnectionTimeout is returned when the pool is saturated and no slot
// frees up within the configured connection timeout.
var ErrConnectionTimeout = errors.New("doris: timed out waiting for a connection")

// ErrPoolClosed is returned from acquisition after Close.
var ErrPoolClosed = errors.New("doris: connection pool is closed")

const (
	defaultMaxConnections    = 10
	defaultConnectionTimeout = 30 * time.Second
	defaultHealthInterval    = 60 * time.Second
	defaultMaxConnectionAge  = 30 * time.Minute
)

// Manager is a bounded connection pool with per-session reuse. Idle
// connections stay bound to the session that used them last; when the pool
// is saturated an idle connection of another session is evicted before a
// caller is made to wait.
type Manager struct {
	cfg   Config
	db    *sql.DB
	slots chan struct{}
	now   func() time.Time

	mu     sync.Mutex
	idle   map[string][]*Connection
	inUse  map[string]*Connection
	closed bool

	stop chan struct{}
	done chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDB substitutes an already-open database handle, mainly for tests.
func WithDB(db *sql.DB) ManagerOption {
	return func(m *Manager) { m.db = db }
}

// WithPoolClock overrides the pool's time source.
func WithPoolClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager opens the Doris frontend and starts the health loop.
func NewManager(cfg Config, opts ...ManagerOption) (*Manager, error) {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = defaultConnectionTimeout
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}
	if cfg.MaxConnectionAge <= 0 {
		cfg.MaxConnectionAge = defaultMaxConnectionAge
	}

	m := &Manager{
		cfg:   cfg,
		slots: make(chan struct{}, cfg.MaxConnections),
		now:   time.Now,
		idle:  make(map[string][]*Connection),
		inUse: make(map[string]*Connection),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.db == nil {
		db, err := sql.Open("mysql", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("doris: opening frontend: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetConnMaxLifetime(cfg.MaxConnectionAge)
		m.db = db
	}
	go m.healthLoop()
	return m, nil
}

// GetConnection returns a connection bound to sessionID, reusing an idle one
// when available. When every slot is taken it evicts an idle connection of
// another session; only a pool where every connection is actively in use
// makes the caller wait, up to ConnectionTimeout.
func (m *Manager) GetConnection(ctx context.Context, sessionID string) (*Connection, error) {
	if sessionID == "" {
		sessionID = SessionQuery
	}
	for {
		conn := m.popIdle(sessionID)
		if conn == nil {
			break
		}
		if m.retireIfStale(ctx, conn) {
			continue
		}
		m.markInUse(conn)
		return conn, nil
	}

	if err := m.acquireSlot(ctx, sessionID); err != nil {
		return nil, err
	}
	conn, err := m.dial(ctx, sessionID)
	if err != nil {
		m.releaseSlot()
		return nil, err
	}
	m.markInUse(conn)
	return conn, nil
}

// ReleaseConnection puts a connection back on its session's idle list. It is
// safe to call more than once and with closed connections.
func (m *Manager) ReleaseConnection(conn *Connection) {
	if conn == nil {
		return
	}
	m.mu.Lock()
	if _, ok := m.inUse[conn.id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.inUse, conn.id)
	retire := conn.Closed() || m.closed
	if !retire {
		m.idle[conn.sessionID] = append(m.idle[conn.sessionID], conn)
	}
	m.mu.Unlock()
	if retire {
		conn.Close()
		m.releaseSlot()
	}
	m.updateGauges()
}

// Discard closes a connection and frees its slot without returning it to the
// idle list. Used after execution errors.
func (m *Manager) Discard(conn *Connection) {
	if conn == nil {
		return
	}
	m.mu.Lock()
	_, wasInUse := m.inUse[conn.id]
	delete(m.inUse, conn.id)
	m.mu.Unlock()
	conn.Close()
	if wasInUse {
		m.releaseSlot()
	}
	m.updateGauges()
}

// ExecuteQuery acquires a connection for sessionID, runs the statement and
// releases the connection.
func (m *Manager) ExecuteQuery(ctx context.Context, sessionID, query string, args ...any) (*QueryResult, error) {
	conn, err := m.GetConnection(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := conn.Execute(ctx, query, args...)
	if err != nil {
		m.Discard(conn)
		return nil, err
	}
	m.ReleaseConnection(conn)
	return res, nil
}

// Stats reports a point-in-time view of the pool.
type PoolStats struct {
	MaxConnections int `json:"max_connections"`
	InUse          int `json:"in_use"`
	Idle           int `json:"idle"`
}

func (m *Manager) Stats() PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PoolStats{
		MaxConnections: m.cfg.MaxConnections,
		InUse:          len(m.inUse),
		Idle:           m.idleCountLocked(),
	}
}

// Ping probes the frontend itself, independent of pooled connections.
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close stops the health loop and closes every pooled connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var conns []*Connection
	for session, list := range m.idle {
		conns = append(conns, list...)
		delete(m.idle, session)
	}
	m.mu.Unlock()

	close(m.stop)
	<-m.done

	for _, conn := range conns {
		conn.Close()
		m.releaseSlot()
	}
	m.updateGauges()
	return m.db.Close()
}

func (m *Manager) dial(ctx context.Context, sessionID string) (*Connection, error) {
	raw, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("doris: connecting to frontend: %w", err)
	}
	now := m.now()
	return &Connection{
		id:        ids.New(),
		sessionID: sessionID,
		conn:      raw,
		createdAt: now,
		lastUsed:  now,
	}, nil
}

func (m *Manager) acquireSlot(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}

	select {
	case m.slots <- struct{}{}:
		return nil
	default:
	}

	// Saturated. Reclaim an idle connection from any session first; the
	// evicted connection's slot carries over to the caller.
	if victim := m.popAnyIdle(sessionID); victim != nil {
		victim.Close()
		return nil
	}

	timer := time.NewTimer(m.cfg.ConnectionTimeout)
	defer timer.Stop()
	select {
	case m.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrPoolClosed
	case <-timer.C:
		return ErrConnectionTimeout
	}
}

func (m *Manager) releaseSlot() {
	select {
	case <-m.slots:
	default:
	}
}

func (m *Manager) popIdle(sessionID string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.idle[sessionID]
	if len(list) == 0 {
		return nil
	}
	conn := list[len(list)-1]
	m.idle[sessionID] = list[:len(list)-1]
	return conn
}

// popAnyIdle removes one idle connection, preferring sessions other than the
// one asking. The freed slot is not released here; the caller decides.
func (m *Manager) popAnyIdle(preferNot string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	for session, list := range m.idle {
		if session == preferNot || len(list) == 0 {
			continue
		}
		conn := list[len(list)-1]
		m.idle[session] = list[:len(list)-1]
		return conn
	}
	list := m.idle[preferNot]
	if len(list) == 0 {
		return nil
	}
	conn := list[len(list)-1]
	m.idle[preferNot] = list[:len(list)-1]
	return conn
}

func (m *Manager) markInUse(conn *Connection) {
	m.mu.Lock()
	m.inUse[conn.id] = conn
	m.mu.Unlock()
	m.updateGauges()
}

// retireIfStale closes a connection that outlived MaxConnectionAge or fails
// a ping, freeing its slot. Reports whether the connection was retired.
func (m *Manager) retireIfStale(ctx context.Context, conn *Connection) bool {
	if conn.Age(m.now()) > m.cfg.MaxConnectionAge || conn.Ping(ctx) != nil {
		conn.Close()
		m.releaseSlot()
		return true
	}
	return false
}

func (m *Manager) healthLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweepIdle()
		}
	}
}

// sweepIdle drains the idle lists, probes each connection outside the lock
// and puts healthy ones back.
func (m *Manager) sweepIdle() {
	m.mu.Lock()
	var conns []*Connection
	for session, list := range m.idle {
		conns = append(conns, list...)
		delete(m.idle, session)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	retired := 0
	for _, conn := range conns {
		if conn.Age(m.now()) > m.cfg.MaxConnectionAge || conn.Ping(ctx) != nil {
			conn.Close()
			m.releaseSlot()
			retired++
			continue
		}
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			conn.Close()
			m.releaseSlot()
			retired++
			continue
		}
		m.idle[conn.sessionID] = append(m.idle[conn.sessionID], conn)
		m.mu.Unlock()
	}
	if retired > 0 {
		obs.LogRequest(map[string]any{
			"component": "doris.pool",
			"event":     "health_sweep",
			"retired":   retired,
		})
	}
	m.updateGauges()
}

func (m *Manager) idleCountLocked() int {
	n := 0
	for _, list := range m.idle {
		n += len(list)
	}
	return n
}

func (m *Manager) updateGauges() {
	m.mu.Lock()
	inUse := len(m.inUse)
	idle := m.idleCountLocked()
	m.mu.Unlock()
	obs.SetPoolGauges(inUse, idle)
}
