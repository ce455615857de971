package doris

import "sync"

// Reserved session identifiers shared by gateway internals.
const (
	// SessionSystem is used for metadata and health statements.
	SessionSystem = "system"
	// SessionQuery is the shared session for callers that carry no
	// session of their own.
	SessionQuery = "query"
)

// ConnectionReleaser returns connections to their pool. *Manager satisfies
// it; tests substitute fakes.
type ConnectionReleaser interface {
	ReleaseConnection(conn *Connection)
}

// SessionCache pins one connection per session so consecutive statements of
// the same session hit the same backend connection. Reserved sessions are
// cached by default; per-user sessions are not, since holding a pool slot
// per idle user starves the pool.
type SessionCache struct {
	pool        ConnectionReleaser
	cacheSystem bool
	cacheUser   bool

	mu    sync.Mutex
	conns map[string]*Connection
}

// CacheOption configures a SessionCache.
type CacheOption func(*SessionCache)

// WithSystemCaching toggles caching for the reserved sessions.
func WithSystemCaching(enabled bool) CacheOption {
	return func(c *SessionCache) { c.cacheSystem = enabled }
}

// WithUserCaching toggles caching for per-user sessions.
func WithUserCaching(enabled bool) CacheOption {
	return func(c *SessionCache) { c.cacheUser = enabled }
}

// NewSessionCache returns a cache that releases replaced and cleared
// connections to pool.
func NewSessionCache(pool ConnectionReleaser, opts ...CacheOption) *SessionCache {
	c := &SessionCache{
		pool:        pool,
		cacheSystem: true,
		cacheUser:   false,
		conns:       make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached connection for sessionID, or nil. A closed
// connection is never returned; it is evicted and handed back to the pool so
// its slot is reclaimed.
func (c *SessionCache) Get(sessionID string) *Connection {
	c.mu.Lock()
	conn := c.conns[sessionID]
	var stale *Connection
	if conn != nil && conn.Closed() {
		delete(c.conns, sessionID)
		stale = conn
		conn = nil
	}
	c.mu.Unlock()
	if stale != nil {
		c.pool.ReleaseConnection(stale)
	}
	return conn
}

// Save caches the connection if the session's policy allows it and reports
// whether ownership was taken. When the policy rejects the session nothing
// happens and the caller keeps the connection. A previously cached
// connection for the same session is released on replace.
func (c *SessionCache) Save(sessionID string, conn *Connection) bool {
	if conn == nil || !c.shouldCache(sessionID) {
		return false
	}
	c.mu.Lock()
	prev := c.conns[sessionID]
	c.conns[sessionID] = conn
	c.mu.Unlock()
	if prev != nil && prev != conn {
		c.pool.ReleaseConnection(prev)
	}
	return true
}

// Remove evicts the session's cached connection without releasing it.
// Ownership transfers back to the caller, which decides whether to release
// or discard.
func (c *SessionCache) Remove(sessionID string) *Connection {
	c.mu.Lock()
	conn := c.conns[sessionID]
	delete(c.conns, sessionID)
	c.mu.Unlock()
	return conn
}

// Clear releases every cached connection.
func (c *SessionCache) Clear() {
	c.mu.Lock()
	conns := make([]*Connection, 0, len(c.conns))
	for id, conn := range c.conns {
		conns = append(conns, conn)
		delete(c.conns, id)
	}
	c.mu.Unlock()
	for _, conn := range conns {
		c.pool.ReleaseConnection(conn)
	}
}

// Len reports the number of cached connections.
func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

func (c *SessionCache) shouldCache(sessionID string) bool {
	switch sessionID {
	case SessionSystem, SessionQuery:
		return c.cacheSystem
	default:
		return c.cacheUser
	}
}
