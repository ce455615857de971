package doris

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = time.Hour
	}
	m, err := NewManager(cfg, WithDB(db))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, mock
}

func TestGetConnectionReusesIdle(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxConnections: 2})
	ctx := context.Background()

	conn, err := m.GetConnection(ctx, SessionQuery)
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	id := conn.ID()
	m.ReleaseConnection(conn)

	again, err := m.GetConnection(ctx, SessionQuery)
	if err != nil {
		t.Fatalf("second GetConnection: %v", err)
	}
	if again.ID() != id {
		t.Errorf("got a new connection %s, want reuse of %s", again.ID(), id)
	}
	m.ReleaseConnection(again)
}

func TestGetConnectionTimeoutWhenSaturated(t *testing.T) {
	m, _ := newTestManager(t, Config{
		MaxConnections:    1,
		ConnectionTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	conn, err := m.GetConnection(ctx, "user-a")
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	defer m.ReleaseConnection(conn)

	start := time.Now()
	_, err = m.GetConnection(ctx, "user-b")
	if !errors.Is(err, ErrConnectionTimeout) {
		t.Fatalf("err = %v, want ErrConnectionTimeout", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("timed out before the configured timeout")
	}
}

func TestGetConnectionEvictsIdleOfOtherSession(t *testing.T) {
	m, _ := newTestManager(t, Config{
		MaxConnections:    1,
		ConnectionTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	connA, err := m.GetConnection(ctx, "user-a")
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	m.ReleaseConnection(connA)

	// The pool is full but user-a's connection is only idle: user-b takes
	// over its slot instead of waiting.
	connB, err := m.GetConnection(ctx, "user-b")
	if err != nil {
		t.Fatalf("GetConnection for user-b: %v", err)
	}
	if connB.SessionID() != "user-b" {
		t.Errorf("SessionID = %q", connB.SessionID())
	}
	if !connA.Closed() {
		t.Error("evicted idle connection should be closed")
	}
	m.ReleaseConnection(connB)
}

func TestReleaseConnectionIdempotent(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxConnections: 1})
	ctx := context.Background()

	conn, err := m.GetConnection(ctx, SessionQuery)
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	m.ReleaseConnection(conn)
	m.ReleaseConnection(conn)
	m.ReleaseConnection(nil)

	stats := m.Stats()
	if stats.InUse != 0 || stats.Idle != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestReleaseClosedConnectionFreesSlot(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxConnections: 1})
	ctx := context.Background()

	conn, err := m.GetConnection(ctx, SessionQuery)
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	_ = conn.Close()
	m.ReleaseConnection(conn)

	// The slot must be free again for a fresh connection.
	again, err := m.GetConnection(ctx, SessionQuery)
	if err != nil {
		t.Fatalf("GetConnection after closed release: %v", err)
	}
	m.ReleaseConnection(again)
}

func TestExecuteQuery(t *testing.T) {
	m, mock := newTestManager(t, Config{MaxConnections: 2})

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "alice").
			AddRow(2, "bob"))

	res, err := m.ExecuteQuery(context.Background(), SessionQuery, "SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if res.RowCount != 2 {
		t.Errorf("RowCount = %d", res.RowCount)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "id" {
		t.Errorf("Columns = %v", res.Columns)
	}
	if res.Data[0]["name"] != "alice" {
		t.Errorf("Data[0] = %v", res.Data[0])
	}
}

func TestExecuteQueryErrorDiscardsConnection(t *testing.T) {
	m, mock := newTestManager(t, Config{MaxConnections: 1})

	mock.ExpectQuery("SELECT broken").WillReturnError(sql.ErrConnDone)

	if _, err := m.ExecuteQuery(context.Background(), SessionQuery, "SELECT broken"); err == nil {
		t.Fatal("expected error")
	}
	stats := m.Stats()
	if stats.InUse != 0 || stats.Idle != 0 {
		t.Errorf("stats after failure = %+v, want empty pool", stats)
	}
}

func TestConnectionCloseIdempotent(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxConnections: 1})

	conn, err := m.GetConnection(context.Background(), SessionQuery)
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	m.ReleaseConnection(conn)
}

func TestGetConnectionAfterClose(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxConnections: 1})
	_ = m.Close()

	if _, err := m.GetConnection(context.Background(), SessionQuery); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}
