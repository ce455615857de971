package httpapi

import (
	"net/http"
	"strings"

	"dorisgate.io/internal/auth"
)

type queryRequest struct {
	SQL       string `json:"sql"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

// handleQuery runs one statement through the full security pipeline. The
// response is always the executor envelope; pipeline rejections come back as
// a success=false envelope with HTTP 200, matching what SQL clients expect.
func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	authCtx, ok := auth.AuthFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "sql is required")
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > a.maxResultRows {
		limit = a.maxResultRows
	}
	if req.SessionID != "" {
		authCtx.SessionID = req.SessionID
	}

	result := a.sec.RunQuery(r.Context(), authCtx, req.SQL, limit)
	writeJSON(w, http.StatusOK, result)
}
