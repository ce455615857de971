// Package security composes authentication, authorization, SQL validation,
// masking and execution into the gateway's single request pipeline.
package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dorisgate.io/internal/audit"
	"dorisgate.io/internal/auth"
	"dorisgate.io/internal/doris"
	"dorisgate.io/internal/masking"
	"dorisgate.io/internal/obs"
	"dorisgate.io/internal/sqlguard"
)

// Rejection stages reported to metrics.
const (
	StageAuthenticate = "authenticate"
	StageAuthorize    = "authorize"
	StageValidate     = "validate"
	StageExecute      = "execute"
)

// SQLExecutor runs validated statements. *doris.Executor satisfies it.
type SQLExecutor interface {
	Execute(ctx context.Context, sessionID, query string, limit int) doris.Result
}

// Manager fronts every security decision the gateway makes.
type Manager struct {
	authn     *auth.Authenticator
	authz     *auth.Authorizer
	validator *sqlguard.Validator
	masker    *masking.Engine
	executor  SQLExecutor
	tokens    *auth.TokenManager
	signer    *auth.TokenSigner
}

// Option configures a Manager.
type Option func(*Manager)

func WithAuthenticator(a *auth.Authenticator) Option {
	return func(m *Manager) { m.authn = a }
}

func WithAuthorizer(a *auth.Authorizer) Option {
	return func(m *Manager) { m.authz = a }
}

func WithValidator(v *sqlguard.Validator) Option {
	return func(m *Manager) { m.validator = v }
}

func WithMaskingEngine(e *masking.Engine) Option {
	return func(m *Manager) { m.masker = e }
}

func WithExecutor(e SQLExecutor) Option {
	return func(m *Manager) { m.executor = e }
}

// WithTokenManager enables the token administration surface.
func WithTokenManager(tm *auth.TokenManager) Option {
	return func(m *Manager) { m.tokens = tm }
}

// WithTokenSigner enables issuing short-lived signed bearer tokens.
func WithTokenSigner(s *auth.TokenSigner) Option {
	return func(m *Manager) { m.signer = s }
}

// NewManager builds a Manager with default components for anything not
// supplied via options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if m.authn == nil {
		m.authn = auth.NewAuthenticator()
	}
	if m.authz == nil {
		m.authz = auth.NewAuthorizer(nil)
	}
	if m.validator == nil {
		m.validator = sqlguard.NewValidator(sqlguard.Config{})
	}
	if m.masker == nil {
		m.masker = masking.NewEngine()
	}
	return m
}

// AuthenticateRequest resolves credentials to an authenticated context.
// Failures are audited.
func (m *Manager) AuthenticateRequest(ctx context.Context, creds auth.Credentials) (auth.AuthContext, error) {
	authCtx, err := m.authn.Authenticate(ctx, creds)
	if err != nil {
		obs.IncRejection(StageAuthenticate)
		audit.LogEvent(ctx, audit.EventAuthFailure, map[string]any{
			"credential_type": creds.Type,
			"reason":          err.Error(),
		})
		return auth.AuthContext{}, err
	}
	return authCtx, nil
}

// AuthorizeResourceAccess decides whether authCtx may perform action on the
// resource URI. Denials are audited.
func (m *Manager) AuthorizeResourceAccess(ctx context.Context, authCtx auth.AuthContext, resourceURI, action string) bool {
	allowed := m.authz.CheckPermission(authCtx, resourceURI, action)
	if !allowed {
		obs.IncRejection(StageAuthorize)
		audit.LogEvent(ctx, audit.EventAccessDenied, map[string]any{
			"resource": resourceURI,
			"action":   action,
		})
	}
	return allowed
}

// ValidateSQLSecurity checks one statement against the injection, blocklist
// and sensitive-table rules. Rejections are audited.
func (m *Manager) ValidateSQLSecurity(ctx context.Context, authCtx auth.AuthContext, query string) sqlguard.ValidationResult {
	result := m.validator.Validate(query, authCtx)
	if !result.IsValid {
		obs.IncRejection(StageValidate)
		audit.LogEvent(ctx, audit.EventSQLBlocked, map[string]any{
			"risk_level": string(result.RiskLevel),
			"reason":     result.ErrorMessage,
			"blocked":    result.BlockedOperations,
		})
	}
	return result
}

// ApplyDataMasking returns a masked copy of rows for the caller.
func (m *Manager) ApplyDataMasking(rows []map[string]any, authCtx auth.AuthContext) []map[string]any {
	return m.masker.Process(rows, authCtx)
}

// RunQuery is the full pipeline: validate the statement, authorize every
// referenced table, execute, then mask the result for the caller. All
// outcomes serialize as a doris.Result envelope.
func (m *Manager) RunQuery(ctx context.Context, authCtx auth.AuthContext, query string, limit int) doris.Result {
	if m.executor == nil {
		return doris.Failure(errors.New("query execution is not configured"))
	}

	if result := m.ValidateSQLSecurity(ctx, authCtx, query); !result.IsValid {
		return doris.Failure(errors.New(result.ErrorMessage))
	}

	for _, table := range sqlguard.ExtractTableNames(query) {
		uri := fmt.Sprintf("/api/table/%s", table)
		if !m.AuthorizeResourceAccess(ctx, authCtx, uri, auth.ActionRead) {
			return doris.Failure(fmt.Errorf("access denied to table %s", table))
		}
	}

	start := time.Now()
	result := m.executor.Execute(ctx, authCtx.SessionID, query, limit)
	if !result.Success {
		obs.IncRejection(StageExecute)
		return result
	}

	result.Data = m.ApplyDataMasking(result.Data, authCtx)
	audit.LogEvent(ctx, audit.EventQueryExecuted, map[string]any{
		"row_count":   result.RowCount,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result
}

// Token administration. Every method fails with auth.ErrNotEnabled when the
// gateway runs without a token manager.

// CreateToken returns the new token's secret value, the only time it is
// ever exposed.
func (m *Manager) CreateToken(ctx context.Context, req auth.CreateTokenRequest) (string, error) {
	if m.tokens == nil {
		return "", auth.ErrNotEnabled
	}
	secret, err := m.tokens.CreateToken(ctx, req)
	if err != nil {
		return "", err
	}
	audit.LogEvent(ctx, audit.EventTokenCreated, map[string]any{
		"token_id":       req.TokenID,
		"token_user_id":  req.UserID,
		"security_level": req.SecurityLevel.String(),
	})
	return secret, nil
}

func (m *Manager) RevokeToken(ctx context.Context, tokenID string) (bool, error) {
	if m.tokens == nil {
		return false, auth.ErrNotEnabled
	}
	removed, err := m.tokens.RevokeToken(ctx, tokenID)
	if err != nil {
		return false, err
	}
	if removed {
		audit.LogEvent(ctx, audit.EventTokenRevoked, map[string]any{
			"token_id": tokenID,
		})
	}
	return removed, nil
}

func (m *Manager) ListTokens(ctx context.Context) ([]auth.TokenSummary, error) {
	if m.tokens == nil {
		return nil, auth.ErrNotEnabled
	}
	return m.tokens.ListTokens(ctx)
}

func (m *Manager) TokenStats(ctx context.Context) (auth.TokenStats, error) {
	if m.tokens == nil {
		return auth.TokenStats{}, auth.ErrNotEnabled
	}
	return m.tokens.Stats(ctx)
}

func (m *Manager) CleanupExpiredTokens(ctx context.Context) (int, error) {
	if m.tokens == nil {
		return 0, auth.ErrNotEnabled
	}
	cleaned, err := m.tokens.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	if cleaned > 0 {
		audit.LogEvent(ctx, audit.EventTokenSwept, map[string]any{
			"cleaned_count": cleaned,
		})
	}
	return cleaned, nil
}

// SignToken issues a short-lived gateway-signed bearer token for delegated
// access. Fails with auth.ErrNotEnabled when no signing secret is configured.
func (m *Manager) SignToken(ctx context.Context, userID string, roles, permissions []string, level auth.SecurityLevel, ttl time.Duration) (string, error) {
	if m.signer == nil {
		return "", auth.ErrNotEnabled
	}
	token, err := m.signer.Issue(userID, roles, permissions, level, ttl)
	if err != nil {
		return "", err
	}
	audit.LogEvent(ctx, audit.EventTokenSigned, map[string]any{
		"token_user_id":  userID,
		"security_level": level.String(),
		"ttl_seconds":    int(ttl / time.Second),
	})
	return token, nil
}

// TokensEnabled reports whether token administration is available.
func (m *Manager) TokensEnabled() bool { return m.tokens != nil }
