package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func devStaticTokens() map[string]StaticToken {
	return map[string]StaticToken{
		"valid_token_123": {
			UserID:        "test_user",
			Roles:         []string{RoleDataAnalyst},
			Permissions:   []string{PermReadData},
			SecurityLevel: LevelInternal,
		},
	}
}

func TestAuthenticateStaticToken(t *testing.T) {
	a := NewAuthenticator(WithStaticTokens(devStaticTokens()))

	ctx, err := a.Authenticate(context.Background(), Credentials{
		Type:  CredentialToken,
		Token: "valid_token_123",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ctx.UserID != "test_user" {
		t.Errorf("UserID = %q, want test_user", ctx.UserID)
	}
	if !ctx.HasRole(RoleDataAnalyst) {
		t.Error("expected data_analyst role")
	}
	if !ctx.HasPermission(PermReadData) {
		t.Error("expected read_data permission")
	}
	if ctx.SecurityLevel != LevelInternal {
		t.Errorf("SecurityLevel = %v, want internal", ctx.SecurityLevel)
	}
	if ctx.SessionID == "" {
		t.Error("expected a session id")
	}
}

func TestAuthenticateUnknownToken(t *testing.T) {
	a := NewAuthenticator(WithStaticTokens(devStaticTokens()))

	_, err := a.Authenticate(context.Background(), Credentials{
		Type:  CredentialToken,
		Token: "invalid_token",
	})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

func TestAuthenticateBasic(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	a := NewAuthenticator(WithBasicUsers(map[string]BasicUser{
		"admin": {
			UserID:        "admin_user",
			PasswordHash:  hash,
			Roles:         []string{RoleDataAdmin},
			Permissions:   []string{PermAdmin},
			SecurityLevel: LevelSecret,
		},
	}))

	ctx, err := a.Authenticate(context.Background(), Credentials{
		Type:     CredentialBasic,
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ctx.UserID != "admin_user" {
		t.Errorf("UserID = %q, want admin_user", ctx.UserID)
	}
	if !ctx.IsAdmin() {
		t.Error("expected admin context")
	}
	if ctx.SecurityLevel != LevelSecret {
		t.Errorf("SecurityLevel = %v, want secret", ctx.SecurityLevel)
	}

	if _, err := a.Authenticate(context.Background(), Credentials{
		Type:     CredentialBasic,
		Username: "admin",
		Password: "wrong",
	}); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("bad password err = %v, want ErrAuthentication", err)
	}
}

func TestAuthenticateUnsupportedType(t *testing.T) {
	a := NewAuthenticator()
	_, err := a.Authenticate(context.Background(), Credentials{Type: "kerberos"})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

func TestAuthenticateManagedToken(t *testing.T) {
	tm := NewTokenManager(NewMemoryTokenStore(), WithSweepInterval(time.Hour))
	defer tm.Close()

	secret, err := tm.CreateToken(context.Background(), CreateTokenRequest{
		TokenID:       "analytics",
		UserID:        "svc_analytics",
		Roles:         []string{RoleDataAnalyst},
		Permissions:   []string{PermReadData},
		SecurityLevel: LevelConfidential,
	})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	a := NewAuthenticator(WithTokenManager(tm))
	ctx, err := a.Authenticate(context.Background(), Credentials{Type: CredentialToken, Token: secret})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ctx.UserID != "svc_analytics" {
		t.Errorf("UserID = %q", ctx.UserID)
	}
	if ctx.SecurityLevel != LevelConfidential {
		t.Errorf("SecurityLevel = %v", ctx.SecurityLevel)
	}
}

func TestAuthenticateExpiredManagedToken(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	tm := NewTokenManager(NewMemoryTokenStore(), WithTokenClock(clock), WithSweepInterval(time.Hour))
	defer tm.Close()

	hours := 1
	secret, err := tm.CreateToken(context.Background(), CreateTokenRequest{
		TokenID:      "shortlived",
		UserID:       "svc",
		ExpiresHours: &hours,
	})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	now = now.Add(2 * time.Hour)

	a := NewAuthenticator(WithTokenManager(tm))
	if _, err := a.Authenticate(context.Background(), Credentials{Type: CredentialToken, Token: secret}); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expired token err = %v, want ErrAuthentication", err)
	}
}

func TestAuthenticateSignedToken(t *testing.T) {
	signer, err := NewTokenSigner("test-secret", "dorisgate")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	token, err := signer.Issue("jwt_user", []string{RoleDataAnalyst}, []string{PermReadData}, LevelInternal, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	a := NewAuthenticator(WithTokenSigner(signer))
	ctx, err := a.Authenticate(context.Background(), Credentials{Type: CredentialToken, Token: token})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ctx.UserID != "jwt_user" {
		t.Errorf("UserID = %q", ctx.UserID)
	}
	if !ctx.HasPermission(PermReadData) {
		t.Error("expected read_data permission from claims")
	}
}
