package doris

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Connection is one pooled Doris connection bound to a logical session.
type Connection struct {
	id        string
	sessionID string
	conn      *sql.Conn
	createdAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

// ID returns the pool-unique connection identifier.
func (c *Connection) ID() string { return c.id }

// SessionID returns the logical session the connection is bound to.
func (c *Connection) SessionID() string { return c.sessionID }

// Age reports how long the connection has existed.
func (c *Connection) Age(now time.Time) time.Duration { return now.Sub(c.createdAt) }

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) touch(now time.Time) {
	c.mu.Lock()
	c.lastUsed = now
	c.mu.Unlock()
}

// Ping probes the underlying connection.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return sql.ErrConnDone
	}
	c.mu.Unlock()
	return c.conn.PingContext(ctx)
}

// Close releases the underlying connection back to the driver. It is safe to
// call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Execute runs one statement and materializes the full result set. MySQL
// byte-slice values are converted to strings so results serialize as text.
func (c *Connection) Execute(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, sql.ErrConnDone
	}
	c.mu.Unlock()

	start := time.Now()
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("doris: query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("doris: reading columns: %w", err)
	}

	var data []map[string]any
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("doris: scanning row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doris: iterating rows: %w", err)
	}

	c.touch(time.Now())
	return &QueryResult{
		Data:     data,
		RowCount: len(data),
		Columns:  columns,
		Duration: time.Since(start),
	}, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
