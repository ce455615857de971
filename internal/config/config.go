// Package config reads gateway configuration from DORISGATE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dorisgate.io/internal/auth"
	"dorisgate.io/internal/doris"
)

// Config is the full runtime configuration of the gateway.
type Config struct {
	ListenAddr string
	Version    string

	Doris doris.Config

	// SQL validation
	BlockedKeywords []string
	SensitiveTables map[string]auth.SecurityLevel

	// Masking
	MaskingEnabled bool

	// Tokens
	TokenSecret        string // JWT signing secret; empty disables JWT verification
	TokenExpiryHours   int    // default expiry for managed tokens; zero means never
	TokenSweepInterval time.Duration
	PGDSN              string // Postgres token store; empty keeps tokens in memory

	// Session cache
	CacheSystemSession bool
	CacheUserSession   bool

	// HTTP
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxResultRows      int

	// DevCredentials installs the built-in development token and admin
	// account. Never enable this outside local development.
	DevCredentials bool
}

// FromEnv builds the configuration from the environment, applying defaults
// for anything unset.
func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr: envStr("DORISGATE_LISTEN", ":8080"),
		Doris: doris.Config{
			Host:              envStr("DORISGATE_DORIS_HOST", "127.0.0.1"),
			User:              envStr("DORISGATE_DORIS_USER", "root"),
			Password:          os.Getenv("DORISGATE_DORIS_PASSWORD"),
			Database:          envStr("DORISGATE_DORIS_DATABASE", "information_schema"),
			ConnectionTimeout: 30 * time.Second,
			HealthInterval:    60 * time.Second,
			MaxConnectionAge:  30 * time.Minute,
		},
		SensitiveTables:    map[string]auth.SecurityLevel{},
		MaskingEnabled:     envBool("DORISGATE_MASKING_ENABLED", true),
		TokenSecret:        os.Getenv("DORISGATE_TOKEN_SECRET"),
		TokenSweepInterval: time.Hour,
		PGDSN:              os.Getenv("DORISGATE_PG_DSN"),
		CacheSystemSession: envBool("DORISGATE_CACHE_SYSTEM_SESSION", true),
		CacheUserSession:   envBool("DORISGATE_CACHE_USER_SESSION", false),
		DevCredentials:     envBool("DORISGATE_DEV_CREDENTIALS", false),
	}

	var err error
	if cfg.Doris.Port, err = envInt("DORISGATE_DORIS_PORT", 9030); err != nil {
		return Config{}, err
	}
	if cfg.Doris.MaxConnections, err = envInt("DORISGATE_MAX_CONNECTIONS", 10); err != nil {
		return Config{}, err
	}
	if secs, err := envInt("DORISGATE_CONNECTION_TIMEOUT_SECONDS", 30); err != nil {
		return Config{}, err
	} else if secs > 0 {
		cfg.Doris.ConnectionTimeout = time.Duration(secs) * time.Second
	}
	if secs, err := envInt("DORISGATE_HEALTH_INTERVAL_SECONDS", 60); err != nil {
		return Config{}, err
	} else if secs > 0 {
		cfg.Doris.HealthInterval = time.Duration(secs) * time.Second
	}
	if cfg.TokenExpiryHours, err = envInt("DORISGATE_TOKEN_EXPIRY_HOURS", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerSecond, err = envInt("DORISGATE_RATE_LIMIT_PER_SECOND", 20); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = envInt("DORISGATE_RATE_LIMIT_BURST", 40); err != nil {
		return Config{}, err
	}
	if cfg.MaxResultRows, err = envInt("DORISGATE_MAX_RESULT_ROWS", 1000); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("DORISGATE_BLOCKED_KEYWORDS"); raw != "" {
		cfg.BlockedKeywords = splitCSV(raw)
	}
	if raw := os.Getenv("DORISGATE_SENSITIVE_TABLES"); raw != "" {
		tables, err := parseSensitiveTables(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.SensitiveTables = tables
	}

	return cfg, nil
}

// parseSensitiveTables reads "table:level" pairs separated by commas, e.g.
// "user_info:confidential,salary:secret".
func parseSensitiveTables(raw string) (map[string]auth.SecurityLevel, error) {
	out := map[string]auth.SecurityLevel{}
	for _, pair := range splitCSV(raw) {
		name, levelStr, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("config: sensitive table entry %q must be table:level", pair)
		}
		level, err := auth.ParseSecurityLevel(strings.TrimSpace(levelStr))
		if err != nil {
			return nil, fmt.Errorf("config: sensitive table %q: %w", pair, err)
		}
		out[strings.ToLower(strings.TrimSpace(name))] = level
	}
	return out, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return val, nil
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}
