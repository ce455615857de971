package auth

import (
	"context"
	"strings"
)

// Role and permission markers with special meaning to the pipeline. A caller
// holding RoleDataAdmin or PermAdmin bypasses level checks and masking.
const (
	RoleDataAdmin   = "data_admin"
	RoleDataAnalyst = "data_analyst"

	PermAdmin    = "admin"
	PermReadData = "read_data"
)

// AuthContext is the authenticated identity and clearance attached to a
// request for the remainder of its pipeline. It is created once per
// authenticated request and never mutated.
type AuthContext struct {
	UserID        string        `json:"user_id"`
	Roles         []string      `json:"roles"`
	Permissions   []string      `json:"permissions"`
	SessionID     string        `json:"session_id"`
	SecurityLevel SecurityLevel `json:"security_level"`
}

func (c AuthContext) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (c AuthContext) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if strings.EqualFold(p, perm) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller carries the admin override.
func (c AuthContext) IsAdmin() bool {
	return c.HasRole(RoleDataAdmin) || c.HasPermission(PermAdmin)
}

type authContextKey struct{}
type tokenContextKey struct{}

// ContextWithAuth attaches the authenticated caller to the context.
func ContextWithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, &ac)
}

// AuthFromContext extracts the authenticated caller from the context.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	v, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok || v == nil {
		return AuthContext{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer secret inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer secret if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
