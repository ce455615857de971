// Package httpapi is the gateway's HTTP surface: query execution, token
// administration and the usual health/metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"dorisgate.io/internal/obs"
	"dorisgate.io/internal/security"
)

// Pinger is anything whose liveness /readyz should verify. The Doris pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks backend readiness.
type ReadyProbe struct {
	Pool Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pool == nil {
		return nil
	}
	return rp.Pool.Ping(ctx)
}

// Options tunes the HTTP layer.
type Options struct {
	Version            string
	MaxResultRows      int
	RateLimitPerSecond int
	RateLimitBurst     int
}

// API is the HTTP layer.
type API struct {
	mux           *http.ServeMux
	sec           *security.Manager
	readyProbe    ReadyProbe
	version       string
	maxResultRows int
	ratePerSecond int
	rateBurst     int
}

func New(sec *security.Manager, rp ReadyProbe, opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		sec:           sec,
		readyProbe:    rp,
		version:       opts.Version,
		maxResultRows: opts.MaxResultRows,
		ratePerSecond: opts.RateLimitPerSecond,
		rateBurst:     opts.RateLimitBurst,
	}
	if a.maxResultRows <= 0 {
		a.maxResultRows = 1000
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// query pipeline
	a.mux.HandleFunc("/v1/query", a.handleQuery)

	// token administration
	a.mux.HandleFunc("/token/create", a.handleCreateToken)
	a.mux.HandleFunc("/token/sign", a.handleSignToken)
	a.mux.HandleFunc("/token/revoke", a.handleRevokeToken)
	a.mux.HandleFunc("/token/revoke/", a.handleRevokeToken)
	a.mux.HandleFunc("/token/list", a.handleListTokens)
	a.mux.HandleFunc("/token/stats", a.handleTokenStats)
	a.mux.HandleFunc("/token/cleanup", a.handleCleanupTokens)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RequestID(h)
	if a.ratePerSecond > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "dorisgate",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "dorisgate",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
