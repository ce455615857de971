package auth

import "time"

// Token is a managed opaque credential issued through the token manager.
// The secret value is returned exactly once, at creation time.
type Token struct {
	ID            string
	Secret        string
	UserID        string
	Roles         []string
	Permissions   []string
	SecurityLevel SecurityLevel
	CreatedAt     time.Time
	ExpiresAt     *time.Time // nil means the token never expires
	Description   string
}

// Expired reports whether the token's expiry has passed at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// TokenSummary is the administrative view of a token. It never carries the
// secret value.
type TokenSummary struct {
	ID            string        `json:"token_id"`
	UserID        string        `json:"user_id"`
	Roles         []string      `json:"roles"`
	Permissions   []string      `json:"permissions"`
	SecurityLevel SecurityLevel `json:"security_level"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	Expired       bool          `json:"expired"`
	Description   string        `json:"description,omitempty"`
}

// TokenStats summarizes the managed token population.
type TokenStats struct {
	TotalTokens        int  `json:"total_tokens"`
	ActiveTokens       int  `json:"active_tokens"`
	ExpiredTokens      int  `json:"expired_tokens"`
	ExpiryEnabled      bool `json:"expiry_enabled"`
	DefaultExpiryHours int  `json:"default_expiry_hours"`
}
