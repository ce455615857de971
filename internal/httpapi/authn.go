package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"dorisgate.io/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer "
)

var publicPaths = []string{
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth authenticates every non-public request through the security
// manager and stores the resulting AuthContext on the request context.
// Bearer tokens and HTTP basic credentials are both accepted.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		creds, err := extractCredentials(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		authCtx, err := a.sec.AuthenticateRequest(r.Context(), creds)
		if err != nil {
			if errors.Is(err, auth.ErrAuthentication) {
				writeError(w, http.StatusUnauthorized, "authentication failed")
			} else {
				writeError(w, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithAuth(r.Context(), authCtx)
		if creds.Type == auth.CredentialToken {
			ctx = auth.ContextWithToken(ctx, creds.Token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards the token administration endpoints.
func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.AuthContext, bool) {
	authCtx, ok := auth.AuthFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return auth.AuthContext{}, false
	}
	if !authCtx.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin privileges required")
		return auth.AuthContext{}, false
	}
	return authCtx, true
}

func extractCredentials(r *http.Request) (auth.Credentials, error) {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return auth.Credentials{}, errors.New("missing credentials")
	}
	if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
		token := strings.TrimSpace(header[len(bearerScheme):])
		if token == "" {
			return auth.Credentials{}, errors.New("missing bearer token")
		}
		return auth.Credentials{Type: auth.CredentialToken, Token: token}, nil
	}
	if username, password, ok := r.BasicAuth(); ok {
		return auth.Credentials{Type: auth.CredentialBasic, Username: username, Password: password}, nil
	}
	return auth.Credentials{}, errors.New("invalid authorization scheme")
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
