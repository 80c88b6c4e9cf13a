// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/littleci/littleci/lib/auth"
	"github.com/littleci/littleci/lib/engine"
	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// maxJSONBodySize bounds management API request bodies.
const maxJSONBodySize = 1 << 20

// Config holds the dependencies of a Handler.
type Config struct {
	Engine    *engine.Engine
	Authority *auth.Authority

	// Gatherer serves /metrics. Usually the registry the engine's
	// collectors were registered on.
	Gatherer prometheus.Gatherer

	// Info is returned by GET /api/config.
	Info ServerInfo

	Logger *slog.Logger
}

// ServerInfo describes the server to API clients.
type ServerInfo struct {
	SiteURL        string `json:"site_url"`
	Authentication string `json:"authentication"`
	Workers        int    `json:"workers"`
	Version        string `json:"version,omitempty"`
}

// Handler routes LittleCI HTTP requests.
type Handler struct {
	engine    *engine.Engine
	authority *auth.Authority
	info      ServerInfo
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewHandler builds the route table.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("httpapi: Engine is required")
	}
	if cfg.Authority == nil {
		return nil, fmt.Errorf("httpapi: Authority is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("httpapi: Logger is required")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.NewRegistry()
	}

	h := &Handler{
		engine:    cfg.Engine,
		authority: cfg.Authority,
		info:      cfg.Info,
		logger:    cfg.Logger,
		mux:       http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /healthz", h.HandleHealth)
	h.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
	}))

	h.mux.HandleFunc("GET /trigger/{slug}", h.handleTrigger(trigger.ServiceGeneric))
	h.mux.HandleFunc("POST /trigger/{slug}", h.handleTrigger(trigger.ServiceGeneric))
	h.mux.HandleFunc("POST /github/{slug}", h.handleTrigger(trigger.ServiceGitHub))
	h.mux.HandleFunc("POST /gitea/{slug}", h.handleTrigger(trigger.ServiceGitea))

	h.mux.HandleFunc("POST /api/login", h.HandleLogin)
	h.mux.HandleFunc("POST /api/logout", h.HandleLogout)

	h.mux.HandleFunc("GET /api/config", h.authenticated(h.HandleConfig))
	h.mux.HandleFunc("GET /api/status", h.authenticated(h.HandleStatus))

	h.mux.HandleFunc("GET /api/repositories", h.authenticated(h.HandleListRepositories))
	h.mux.HandleFunc("POST /api/repositories", h.authenticated(h.HandleCreateRepository))
	h.mux.HandleFunc("GET /api/repositories/{slug}", h.authenticated(h.HandleGetRepository))
	h.mux.HandleFunc("PUT /api/repositories/{slug}", h.authenticated(h.HandleUpdateRepository))
	h.mux.HandleFunc("DELETE /api/repositories/{slug}", h.authenticated(h.HandleDeleteRepository))
	h.mux.HandleFunc("POST /api/repositories/{slug}/secret", h.authenticated(h.HandleRegenerateSecret))

	h.mux.HandleFunc("GET /api/repositories/{slug}/jobs", h.authenticated(h.HandleListJobs))
	h.mux.HandleFunc("POST /api/repositories/{slug}/jobs", h.authenticated(h.HandleEnqueue))
	h.mux.HandleFunc("GET /api/repositories/{slug}/jobs/{id}", h.authenticated(h.HandleGetJob))
	h.mux.HandleFunc("GET /api/repositories/{slug}/jobs/{id}/output", h.authenticated(h.HandleJobOutput))
	h.mux.HandleFunc("GET /api/jobs", h.authenticated(h.HandleListAllJobs))
	h.mux.HandleFunc("POST /api/jobs/{id}/cancel", h.authenticated(h.HandleCancelJob))

	h.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		h.sendError(w, http.StatusNotFound, "not found")
	})

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type principalKey struct{}

// principalFrom returns the principal the authenticated middleware
// attached to the request.
func principalFrom(ctx context.Context) auth.Principal {
	principal, _ := ctx.Value(principalKey{}).(auth.Principal)
	return principal
}

// authenticated requires a valid bearer token in simple mode. In none
// mode every request acts as auth.Anonymous.
func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.authority.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="littleci"`)
			h.sendError(w, http.StatusUnauthorized, "%s", publicMessage(err))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	}
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	var triggerErr *trigger.Error
	switch {
	case errors.As(err, &triggerErr):
		return triggerErr.HTTPStatus()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, context.Canceled):
		// The client went away; the status is never seen.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// sendEngineError reports err with its mapped status. Server-side
// failures are logged and their detail withheld from the client.
func (h *Handler) sendEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		h.sendError(w, status, "internal error")
		return
	}
	var triggerErr *trigger.Error
	if errors.As(err, &triggerErr) {
		h.sendError(w, status, "%s", triggerErr.Message)
		return
	}
	h.sendError(w, status, "%s", publicMessage(err))
}

// publicMessage drops the package prefix from sentinel errors
// ("store: not found" reads as "not found").
func publicMessage(err error) string {
	message := err.Error()
	for _, prefix := range []string{"store: ", "auth: ", "engine: "} {
		message = strings.ReplaceAll(message, prefix, "")
	}
	return message
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) sendError(w http.ResponseWriter, status int, format string, args ...any) {
	h.writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// writeJSON encodes value as JSON into w, setting the Content-Type header.
// If encoding fails (typically because the client disconnected), the error
// is logged; the caller cannot send a corrective response to a dead client.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.logger.Warn("writing JSON response", "error", err)
	}
}

// decodeJSON reads a size-limited JSON request body into target.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}
