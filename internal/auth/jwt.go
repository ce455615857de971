package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenSigner issues and verifies gateway-signed HS256 bearer tokens. Signed
// tokens are a third form of the "token" credential, accepted after static
// and managed lookups fail; they carry their own roles and clearance so they
// need no store round trip.
type TokenSigner struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Claims are the JWT claims embedded in gateway-signed tokens.
type Claims struct {
	Roles         []string `json:"roles,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
	SecurityLevel string   `json:"security_level"`
	jwt.RegisteredClaims
}

func NewTokenSigner(secret, issuer string) (*TokenSigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "dorisgate"
	}
	return &TokenSigner{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for the given user. ttl must be positive; signed tokens
// always expire.
func (s *TokenSigner) Issue(userID string, roles, permissions []string, level SecurityLevel, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}
	now := s.now().UTC()
	claims := Claims{
		Roles:         roles,
		Permissions:   permissions,
		SecurityLevel: level.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and required claims and returns the parsed
// claims. Any failure maps to ErrInvalidToken.
func (s *TokenSigner) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.issuer || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || s.now().After(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
