package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, opts ...TokenManagerOption) *TokenManager {
	t.Helper()
	opts = append([]TokenManagerOption{WithSweepInterval(time.Hour)}, opts...)
	tm := NewTokenManager(NewMemoryTokenStore(), opts...)
	t.Cleanup(tm.Close)
	return tm
}

func TestCreateTokenGeneratesSecret(t *testing.T) {
	tm := newTestManager(t)

	secret, err := tm.CreateToken(context.Background(), CreateTokenRequest{
		TokenID: "reporting",
		UserID:  "svc_reporting",
	})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if !strings.HasPrefix(secret, "dg_") {
		t.Errorf("secret %q missing dg_ prefix", secret)
	}

	tok, err := tm.Lookup(context.Background(), secret)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if tok == nil || tok.UserID != "svc_reporting" {
		t.Fatalf("Lookup = %+v", tok)
	}
	if tok.ExpiresAt != nil {
		t.Error("expected no expiry by default")
	}
}

func TestCreateTokenCustomValue(t *testing.T) {
	tm := newTestManager(t)

	secret, err := tm.CreateToken(context.Background(), CreateTokenRequest{
		TokenID:     "legacy",
		UserID:      "svc_legacy",
		CustomToken: "legacy_token_value",
	})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if secret != "legacy_token_value" {
		t.Errorf("secret = %q, want the custom value verbatim", secret)
	}
}

func TestCreateTokenValidation(t *testing.T) {
	tm := newTestManager(t)

	if _, err := tm.CreateToken(context.Background(), CreateTokenRequest{UserID: "u"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing token_id err = %v, want ErrInvalidInput", err)
	}
	if _, err := tm.CreateToken(context.Background(), CreateTokenRequest{TokenID: "t"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing user_id err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateTokenDuplicateID(t *testing.T) {
	tm := newTestManager(t)
	req := CreateTokenRequest{TokenID: "dup", UserID: "u"}

	if _, err := tm.CreateToken(context.Background(), req); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := tm.CreateToken(context.Background(), req); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("second create err = %v, want ErrTokenExists", err)
	}
}

func TestTokenExpirySemantics(t *testing.T) {
	now := time.Now()
	tm := newTestManager(t,
		WithTokenClock(func() time.Time { return now }),
		WithDefaultExpiry(24*time.Hour),
	)

	// Unset expires_hours uses the default.
	secret, err := tm.CreateToken(context.Background(), CreateTokenRequest{TokenID: "a", UserID: "u"})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	tok, _ := tm.Lookup(context.Background(), secret)
	if tok == nil || tok.ExpiresAt == nil {
		t.Fatal("expected default expiry to apply")
	}
	if got := tok.ExpiresAt.Sub(now.UTC()); got != 24*time.Hour {
		t.Errorf("expiry horizon = %v, want 24h", got)
	}

	// Explicit zero disables expiry even with a default configured.
	zero := 0
	secret, err = tm.CreateToken(context.Background(), CreateTokenRequest{TokenID: "b", UserID: "u", ExpiresHours: &zero})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	tok, _ = tm.Lookup(context.Background(), secret)
	if tok == nil || tok.ExpiresAt != nil {
		t.Fatal("expected no expiry for explicit zero")
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	tm := newTestManager(t)
	if _, err := tm.CreateToken(context.Background(), CreateTokenRequest{TokenID: "gone", UserID: "u"}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	removed, err := tm.RevokeToken(context.Background(), "gone")
	if err != nil || !removed {
		t.Fatalf("RevokeToken = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = tm.RevokeToken(context.Background(), "gone")
	if err != nil || removed {
		t.Fatalf("second RevokeToken = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestListTokensSortedWithoutSecrets(t *testing.T) {
	now := time.Now()
	tm := newTestManager(t, WithTokenClock(func() time.Time { return now }))

	for _, id := range []string{"first", "second", "third"} {
		if _, err := tm.CreateToken(context.Background(), CreateTokenRequest{TokenID: id, UserID: "u"}); err != nil {
			t.Fatalf("CreateToken %s: %v", id, err)
		}
		now = now.Add(time.Minute)
	}

	list, err := tm.ListTokens(context.Background())
	if err != nil {
		t.Fatalf("ListTokens: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"first", "second", "third"} {
		if list[i].ID != want {
			t.Errorf("list[%d].ID = %q, want %q", i, list[i].ID, want)
		}
	}
}

func TestStatsAndCleanup(t *testing.T) {
	now := time.Now()
	tm := newTestManager(t, WithTokenClock(func() time.Time { return now }))

	hour := 1
	if _, err := tm.CreateToken(context.Background(), CreateTokenRequest{TokenID: "live", UserID: "u"}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := tm.CreateToken(context.Background(), CreateTokenRequest{TokenID: "dead", UserID: "u", ExpiresHours: &hour}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	now = now.Add(2 * time.Hour)

	stats, err := tm.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalTokens != 2 || stats.ActiveTokens != 1 || stats.ExpiredTokens != 1 {
		t.Errorf("stats = %+v", stats)
	}

	n, err := tm.CleanupExpired(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("CleanupExpired = (%d, %v), want (1, nil)", n, err)
	}
	n, err = tm.CleanupExpired(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("repeat CleanupExpired = (%d, %v), want (0, nil)", n, err)
	}
}
