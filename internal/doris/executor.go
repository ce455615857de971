package doris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dorisgate.io/internal/obs"
)

// ConnectionProvider hands out and takes back pooled connections. *Manager
// satisfies it.
type ConnectionProvider interface {
	GetConnection(ctx context.Context, sessionID string) (*Connection, error)
	ReleaseConnection(conn *Connection)
	Discard(conn *Connection)
}

// Result is the client-facing outcome of one executed statement. It always
// serializes as a tagged envelope: successful results carry data, row count,
// columns and timing; failed ones carry the error message and a null data
// field.
type Result struct {
	Success       bool
	Data          []map[string]any
	RowCount      int
	Columns       []string
	ExecutionTime float64
	Err           string
}

func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
			Data    any    `json:"data"`
		}{Success: false, Error: r.Err, Data: nil})
	}
	data := r.Data
	if data == nil {
		data = []map[string]any{}
	}
	columns := r.Columns
	if columns == nil {
		columns = []string{}
	}
	return json.Marshal(struct {
		Success       bool             `json:"success"`
		Data          []map[string]any `json:"data"`
		RowCount      int              `json:"row_count"`
		ExecutionTime float64          `json:"execution_time"`
		Columns       []string         `json:"columns"`
	}{
		Success:       true,
		Data:          data,
		RowCount:      r.RowCount,
		ExecutionTime: r.ExecutionTime,
		Columns:       columns,
	})
}

// Failure builds an error-shaped Result.
func Failure(err error) Result {
	return Result{Success: false, Err: err.Error()}
}

// Executor runs statements against the pool, consulting the session cache
// before acquiring a fresh connection.
type Executor struct {
	pool  ConnectionProvider
	cache *SessionCache
}

// NewExecutor wires an executor over a pool and its session cache.
func NewExecutor(pool ConnectionProvider, cache *SessionCache) *Executor {
	return &Executor{pool: pool, cache: cache}
}

// Execute runs one statement for the given session. A non-positive limit
// means unlimited; otherwise the returned data is truncated to at most limit
// rows. Execution never panics out: driver misbehavior is converted into a
// failed Result.
func (e *Executor) Execute(ctx context.Context, sessionID, query string, limit int) (out Result) {
	defer func() {
		if r := recover(); r != nil {
			out = Failure(fmt.Errorf("query execution panicked: %v", r))
			obs.ObserveQuery("panic", 0)
		}
	}()

	if strings.TrimSpace(query) == "" {
		return Failure(errors.New("empty SQL statement"))
	}
	if sessionID == "" {
		sessionID = SessionQuery
	}

	conn, cached, err := e.connection(ctx, sessionID)
	if err != nil {
		obs.ObserveQuery("error", 0)
		return Failure(err)
	}

	res, err := conn.Execute(ctx, query)
	if err != nil {
		// Evict first so the failed connection is never handed out again,
		// then discard to close it and free its slot.
		if cached {
			e.cache.Remove(sessionID)
		}
		e.pool.Discard(conn)
		obs.ObserveQuery("error", 0)
		return Failure(err)
	}
	if !cached && !e.cache.Save(sessionID, conn) {
		e.pool.ReleaseConnection(conn)
	}

	data := res.Data
	if limit > 0 && len(data) > limit {
		data = data[:limit]
	}
	obs.ObserveQuery("ok", res.Duration)
	return Result{
		Success:       true,
		Data:          data,
		RowCount:      len(data),
		Columns:       res.Columns,
		ExecutionTime: res.Duration.Seconds(),
	}
}

// connection returns the session's cached connection when present, or
// acquires one from the pool. The cached flag tells Execute whether the
// connection's lifecycle is owned by the cache.
func (e *Executor) connection(ctx context.Context, sessionID string) (*Connection, bool, error) {
	if conn := e.cache.Get(sessionID); conn != nil {
		return conn, true, nil
	}
	conn, err := e.pool.GetConnection(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return conn, false, nil
}

var _ ConnectionProvider = (*Manager)(nil)
var _ ConnectionReleaser = (*Manager)(nil)
