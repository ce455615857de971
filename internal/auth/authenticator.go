package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dorisgate.io/internal/ids"
)

// Credential types accepted by the authenticator. Anything else fails
// immediately as unsupported.
const (
	CredentialToken = "token"
	CredentialBasic = "basic"
)

// Credentials is the raw material of an authentication attempt.
type Credentials struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// StaticToken is a built-in, non-managed token mapping. It exists so a
// gateway can run without a token manager (or Postgres) behind it.
type StaticToken struct {
	UserID        string
	Roles         []string
	Permissions   []string
	SecurityLevel SecurityLevel
}

// BasicUser is a built-in username/password entry. PasswordHash is an
// argon2id encoded hash, never a plaintext password.
type BasicUser struct {
	UserID        string
	PasswordHash  string
	Roles         []string
	Permissions   []string
	SecurityLevel SecurityLevel
}

// Authenticator validates credentials and produces the AuthContext a request
// carries through the rest of the pipeline.
type Authenticator struct {
	staticTokens map[string]StaticToken
	basicUsers   map[string]BasicUser
	tokens       *TokenManager // optional
	signer       *TokenSigner  // optional
	now          func() time.Time
	newSessionID func() string
}

// AuthenticatorOption configures Authenticator behavior.
type AuthenticatorOption func(*Authenticator)

// WithStaticTokens installs the built-in token table.
func WithStaticTokens(tokens map[string]StaticToken) AuthenticatorOption {
	return func(a *Authenticator) { a.staticTokens = tokens }
}

// WithBasicUsers installs the built-in username/password table.
func WithBasicUsers(users map[string]BasicUser) AuthenticatorOption {
	return func(a *Authenticator) { a.basicUsers = users }
}

// WithTokenManager enables managed-token lookup.
func WithTokenManager(m *TokenManager) AuthenticatorOption {
	return func(a *Authenticator) { a.tokens = m }
}

// WithTokenSigner enables gateway-signed JWT verification as a token
// credential fallback.
func WithTokenSigner(s *TokenSigner) AuthenticatorOption {
	return func(a *Authenticator) { a.signer = s }
}

// WithSessionIDFunc overrides session id generation (useful for tests).
func WithSessionIDFunc(fn func() string) AuthenticatorOption {
	return func(a *Authenticator) {
		if fn != nil {
			a.newSessionID = fn
		}
	}
}

func NewAuthenticator(opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		staticTokens: map[string]StaticToken{},
		basicUsers:   map[string]BasicUser{},
		now:          time.Now,
		newSessionID: ids.Session,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TokenManager returns the managed-token lifecycle owner, or nil when token
// management is not enabled.
func (a *Authenticator) TokenManager() *TokenManager { return a.tokens }

// Authenticate validates the credentials and returns the caller's
// AuthContext. All failures wrap ErrAuthentication.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (AuthContext, error) {
	switch strings.ToLower(strings.TrimSpace(creds.Type)) {
	case CredentialToken:
		return a.authenticateToken(ctx, creds.Token)
	case CredentialBasic:
		return a.authenticateBasic(creds.Username, creds.Password)
	default:
		return AuthContext{}, fmt.Errorf("%w: unsupported credential type %q", ErrAuthentication, creds.Type)
	}
}

func (a *Authenticator) authenticateToken(ctx context.Context, secret string) (AuthContext, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return AuthContext{}, fmt.Errorf("%w: empty token", ErrAuthentication)
	}

	if entry, ok := a.staticTokens[secret]; ok {
		return AuthContext{
			UserID:        entry.UserID,
			Roles:         entry.Roles,
			Permissions:   entry.Permissions,
			SessionID:     a.newSessionID(),
			SecurityLevel: entry.SecurityLevel,
		}, nil
	}

	if a.tokens != nil {
		tok, err := a.tokens.Lookup(ctx, secret)
		if err != nil {
			return AuthContext{}, fmt.Errorf("token lookup: %w", err)
		}
		if tok != nil {
			return AuthContext{
				UserID:        tok.UserID,
				Roles:         tok.Roles,
				Permissions:   tok.Permissions,
				SessionID:     a.newSessionID(),
				SecurityLevel: tok.SecurityLevel,
			}, nil
		}
	}

	if a.signer != nil {
		if claims, err := a.signer.Verify(secret); err == nil {
			level, err := ParseSecurityLevel(claims.SecurityLevel)
			if err != nil {
				level = LevelInternal
			}
			return AuthContext{
				UserID:        claims.Subject,
				Roles:         claims.Roles,
				Permissions:   claims.Permissions,
				SessionID:     a.newSessionID(),
				SecurityLevel: level,
			}, nil
		}
	}

	return AuthContext{}, fmt.Errorf("%w: unknown token", ErrAuthentication)
}

func (a *Authenticator) authenticateBasic(username, password string) (AuthContext, error) {
	user, ok := a.basicUsers[strings.TrimSpace(username)]
	if !ok || !VerifyPassword(password, user.PasswordHash) {
		return AuthContext{}, fmt.Errorf("%w: bad username or password", ErrAuthentication)
	}
	return AuthContext{
		UserID:        user.UserID,
		Roles:         user.Roles,
		Permissions:   user.Permissions,
		SessionID:     a.newSessionID(),
		SecurityLevel: user.SecurityLevel,
	}, nil
}
