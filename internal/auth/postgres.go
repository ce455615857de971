package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresTokenStore persists managed tokens in Postgres. Secrets are stored
// as SHA-256 digests; the plaintext value exists only in the creation
// response.
//
// Schema:
//
//	create table if not exists gateway_tokens (
//	    id             text primary key,
//	    secret_hash    text not null unique,
//	    user_id        text not null,
//	    roles          text not null default '',
//	    permissions    text not null default '',
//	    security_level text not null,
//	    created_at     timestamptz not null,
//	    expires_at     timestamptz,
//	    description    text not null default ''
//	);
type PostgresTokenStore struct {
	db *sql.DB
}

var _ TokenStore = (*PostgresTokenStore)(nil)

// OpenPostgresTokenStore opens a pgx-backed store with pool defaults sized
// for the low-volume admin workload.
func OpenPostgresTokenStore(dsn string) (*PostgresTokenStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	return &PostgresTokenStore{db: db}, nil
}

// NewPostgresTokenStore wraps an existing database handle.
func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

func (s *PostgresTokenStore) Close() error { return s.db.Close() }

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *PostgresTokenStore) Insert(ctx context.Context, tok *Token) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from gateway_tokens where id=$1)`, tok.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrTokenExists
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gateway_tokens(id, secret_hash, user_id, roles, permissions, security_level, created_at, expires_at, description)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, tok.ID, hashSecret(tok.Secret), tok.UserID,
		strings.Join(tok.Roles, ","), strings.Join(tok.Permissions, ","),
		tok.SecurityLevel.String(), tok.CreatedAt, tok.ExpiresAt, tok.Description)
	return err
}

func (s *PostgresTokenStore) FindBySecret(ctx context.Context, secret string) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, roles, permissions, security_level, created_at, expires_at, description
		from gateway_tokens where secret_hash=$1
	`, hashSecret(secret))
	tok, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tok, nil
}

func (s *PostgresTokenStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `delete from gateway_tokens where id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresTokenStore) List(ctx context.Context) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, roles, permissions, security_level, created_at, expires_at, description
		from gateway_tokens order by created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Token
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

func (s *PostgresTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from gateway_tokens where expires_at is not null and expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*Token, error) {
	var (
		tok         Token
		roles       string
		permissions string
		level       string
		expires     sql.NullTime
	)
	err := row.Scan(&tok.ID, &tok.UserID, &roles, &permissions, &level, &tok.CreatedAt, &expires, &tok.Description)
	if err != nil {
		return nil, err
	}
	tok.Roles = splitList(roles)
	tok.Permissions = splitList(permissions)
	if tok.SecurityLevel, err = ParseSecurityLevel(level); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		tok.ExpiresAt = &t
	}
	return &tok, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
