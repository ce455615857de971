package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dorisgate.io/internal/obs"
)

const defaultSweepInterval = time.Hour

// TokenManager owns the managed-credential lifecycle: creation, revocation,
// listing, statistics and expiry sweeping.
type TokenManager struct {
	store TokenStore
	now   func() time.Time

	defaultExpiry time.Duration // zero disables default expiry
	sweepInterval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// TokenManagerOption configures TokenManager behavior.
type TokenManagerOption func(*TokenManager)

// WithDefaultExpiry sets the expiry applied when a creation request leaves
// expires_hours unset. A zero duration means tokens never expire by default.
func WithDefaultExpiry(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if d >= 0 {
			m.defaultExpiry = d
		}
	}
}

// WithSweepInterval sets the background expiry sweep period.
func WithSweepInterval(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewTokenManager(store TokenStore, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		store:         store,
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m
}

// Close stops the background expiry sweep.
func (m *TokenManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *TokenManager) sweepLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := m.CleanupExpired(ctx)
			cancel()
			if err != nil {
				obs.LogRequest(map[string]any{"level": "error", "msg": "token sweep failed", "error": err.Error()})
				continue
			}
			if n > 0 {
				obs.LogRequest(map[string]any{"level": "info", "msg": "token sweep", "removed": n})
			}
		}
	}
}

// CreateTokenRequest carries the fields of a token creation.
type CreateTokenRequest struct {
	TokenID       string
	UserID        string
	Roles         []string
	Permissions   []string
	SecurityLevel SecurityLevel
	// ExpiresHours: nil uses the configured default; a pointer to zero means
	// the token never expires.
	ExpiresHours *int
	Description  string
	// CustomToken, when set, becomes the secret value verbatim.
	CustomToken string
}

// CreateToken stores a new token and returns its secret value. This is the
// only time the secret is ever exposed.
func (m *TokenManager) CreateToken(ctx context.Context, req CreateTokenRequest) (string, error) {
	id := strings.TrimSpace(req.TokenID)
	userID := strings.TrimSpace(req.UserID)
	if id == "" || userID == "" {
		return "", fmt.Errorf("%w: token_id and user_id are required", ErrInvalidInput)
	}

	secret := req.CustomToken
	if secret == "" {
		var err error
		if secret, err = generateSecret(); err != nil {
			return "", fmt.Errorf("generate token secret: %w", err)
		}
	}

	now := m.now().UTC()
	tok := &Token{
		ID:            id,
		Secret:        secret,
		UserID:        userID,
		Roles:         req.Roles,
		Permissions:   req.Permissions,
		SecurityLevel: req.SecurityLevel,
		CreatedAt:     now,
		Description:   strings.TrimSpace(req.Description),
	}

	expiry := m.defaultExpiry
	if req.ExpiresHours != nil {
		expiry = time.Duration(*req.ExpiresHours) * time.Hour
	}
	if expiry > 0 {
		at := now.Add(expiry)
		tok.ExpiresAt = &at
	}

	if err := m.store.Insert(ctx, tok); err != nil {
		return "", err
	}
	return secret, nil
}

// RevokeToken removes the token with the given id. It reports whether a token
// was found; revoking an unknown id is not an error.
func (m *TokenManager) RevokeToken(ctx context.Context, id string) (bool, error) {
	return m.store.Delete(ctx, strings.TrimSpace(id))
}

// ListTokens returns administrative summaries of every managed token, sorted
// by creation time. Summaries never include secret values.
func (m *TokenManager) ListTokens(ctx context.Context) ([]TokenSummary, error) {
	tokens, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := make([]TokenSummary, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, TokenSummary{
			ID:            tok.ID,
			UserID:        tok.UserID,
			Roles:         tok.Roles,
			Permissions:   tok.Permissions,
			SecurityLevel: tok.SecurityLevel,
			CreatedAt:     tok.CreatedAt,
			ExpiresAt:     tok.ExpiresAt,
			Expired:       tok.Expired(now),
			Description:   tok.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Stats summarizes the token population.
func (m *TokenManager) Stats(ctx context.Context) (TokenStats, error) {
	tokens, err := m.store.List(ctx)
	if err != nil {
		return TokenStats{}, err
	}
	now := m.now()
	stats := TokenStats{
		TotalTokens:        len(tokens),
		ExpiryEnabled:      m.defaultExpiry > 0,
		DefaultExpiryHours: int(m.defaultExpiry / time.Hour),
	}
	for _, tok := range tokens {
		if tok.Expired(now) {
			stats.ExpiredTokens++
		} else {
			stats.ActiveTokens++
		}
	}
	return stats, nil
}

// CleanupExpired sweeps and deletes all tokens past their expiry, returning
// the number removed. Calling it again with no new expirations returns zero.
func (m *TokenManager) CleanupExpired(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// Lookup resolves a secret value to its token, treating expired tokens as
// absent.
func (m *TokenManager) Lookup(ctx context.Context, secret string) (*Token, error) {
	tok, err := m.store.FindBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.Expired(m.now()) {
		return nil, nil
	}
	return tok, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "dg_" + base64.RawURLEncoding.EncodeToString(buf), nil
}
