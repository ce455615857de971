// Package doris manages MySQL-protocol connections to an Apache Doris
// frontend: a bounded pool with per-session reuse, a session-scoped
// connection cache, and a query executor that shapes results for clients.
package doris

import (
	"fmt"
	"time"
)

// QueryResult is the raw outcome of one statement execution.
type QueryResult struct {
	Data     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
	Columns  []string         `json:"columns"`
	Duration time.Duration    `json:"-"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// Config holds Doris frontend connectivity and pool sizing.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	MaxConnections    int
	ConnectionTimeout time.Duration
	HealthInterval    time.Duration
	MaxConnectionAge  time.Duration
}

// DSN renders the go-sql-driver/mysql connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&interpolateParams=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}
