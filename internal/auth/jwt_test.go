package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenSignerRoundTrip(t *testing.T) {
	signer, err := NewTokenSigner("test-secret", "dorisgate")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	token, err := signer.Issue("u1", []string{RoleDataAnalyst}, []string{PermReadData}, LevelConfidential, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.SecurityLevel != "confidential" {
		t.Errorf("SecurityLevel = %q", claims.SecurityLevel)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleDataAnalyst {
		t.Errorf("Roles = %v", claims.Roles)
	}
}

func TestTokenSignerRejectsBadTokens(t *testing.T) {
	signer, err := NewTokenSigner("test-secret", "dorisgate")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	other, err := NewTokenSigner("other-secret", "dorisgate")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	forged, err := other.Issue("u1", nil, nil, LevelPublic, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := signer.Verify(forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign signature err = %v, want ErrInvalidToken", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	signer.now = func() time.Time { return past }
	expired, err := signer.Issue("u1", nil, nil, LevelPublic, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	signer.now = time.Now
	if _, err := signer.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired err = %v, want ErrInvalidToken", err)
	}

	if _, err := signer.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage err = %v, want ErrInvalidToken", err)
	}
}

func TestNewTokenSignerRequiresSecret(t *testing.T) {
	if _, err := NewTokenSigner("", "dorisgate"); err == nil {
		t.Error("expected error for empty secret")
	}
}
