package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"dorisgate.io/internal/auth"
)

type createTokenRequest struct {
	TokenID       string   `json:"token_id"`
	UserID        string   `json:"user_id"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
	SecurityLevel string   `json:"security_level"`
	ExpiresHours  *int     `json:"expires_hours"`
	Description   string   `json:"description"`
	CustomToken   string   `json:"custom_token"`
}

func (a *API) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var req createTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.TokenID) == "" || strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "token_id and user_id are required")
		return
	}

	// An unknown security level falls back to internal rather than failing.
	level, err := auth.ParseSecurityLevel(req.SecurityLevel)
	if err != nil {
		level = auth.LevelInternal
	}

	secret, err := a.sec.CreateToken(r.Context(), auth.CreateTokenRequest{
		TokenID:       req.TokenID,
		UserID:        req.UserID,
		Roles:         req.Roles,
		Permissions:   req.Permissions,
		SecurityLevel: level,
		ExpiresHours:  req.ExpiresHours,
		Description:   req.Description,
		CustomToken:   req.CustomToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotEnabled):
			writeError(w, http.StatusServiceUnavailable, "Token authentication is not enabled")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrTokenExists):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Token creation failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"token_id":       req.TokenID,
		"user_id":        req.UserID,
		"token":          secret,
		"roles":          req.Roles,
		"permissions":    req.Permissions,
		"security_level": level.String(),
		"expires_hours":  req.ExpiresHours,
		"description":    req.Description,
		"message":        "Token created successfully",
	})
}

type signTokenRequest struct {
	UserID        string   `json:"user_id"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
	SecurityLevel string   `json:"security_level"`
	TTLMinutes    int      `json:"ttl_minutes"`
}

// handleSignToken issues a short-lived signed bearer token. Unlike managed
// tokens these are never stored; they expire on their own.
func (a *API) handleSignToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var req signTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	level, err := auth.ParseSecurityLevel(req.SecurityLevel)
	if err != nil {
		level = auth.LevelInternal
	}
	ttl := time.Duration(req.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}

	token, err := a.sec.SignToken(r.Context(), req.UserID, req.Roles, req.Permissions, level, ttl)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotEnabled):
			writeError(w, http.StatusServiceUnavailable, "Token signing is not enabled")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Token signing failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"token":              token,
		"user_id":            req.UserID,
		"security_level":     level.String(),
		"expires_in_seconds": int(ttl / time.Second),
	})
}

func (a *API) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodPost, http.MethodDelete)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	tokenID := strings.TrimSpace(r.URL.Query().Get("token_id"))
	if tokenID == "" {
		// Alternate form: /token/revoke/{token_id}
		if rest := strings.TrimPrefix(r.URL.Path, "/token/revoke/"); rest != r.URL.Path {
			tokenID = strings.TrimSpace(strings.Trim(rest, "/"))
		}
	}
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "token_id is required")
		return
	}

	removed, err := a.sec.RevokeToken(r.Context(), tokenID)
	if err != nil {
		if errors.Is(err, auth.ErrNotEnabled) {
			writeError(w, http.StatusServiceUnavailable, "Token authentication is not enabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success":  false,
			"token_id": tokenID,
			"message":  "Token not found or already revoked",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token_id": tokenID,
		"message":  "Token revoked successfully",
	})
}

func (a *API) handleListTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	tokens, err := a.sec.ListTokens(r.Context())
	if err != nil {
		if errors.Is(err, auth.ErrNotEnabled) {
			writeError(w, http.StatusServiceUnavailable, "Token authentication is not enabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(tokens),
		"tokens":  tokens,
	})
}

func (a *API) handleTokenStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	stats, err := a.sec.TokenStats(r.Context())
	if err != nil {
		if errors.Is(err, auth.ErrNotEnabled) {
			writeError(w, http.StatusServiceUnavailable, "Token authentication is not enabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func (a *API) handleCleanupTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	cleaned, err := a.sec.CleanupExpiredTokens(r.Context())
	if err != nil {
		if errors.Is(err, auth.ErrNotEnabled) {
			writeError(w, http.StatusServiceUnavailable, "Token authentication is not enabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"cleaned_count": cleaned,
	})
}
