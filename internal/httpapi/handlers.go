package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsdesk.dev/internal/audit"
	"opsdesk.dev/internal/auth"
	"opsdesk.dev/internal/directory"
	"opsdesk.dev/internal/guard"
	"opsdesk.dev/internal/obs"
	"opsdesk.dev/internal/rbac"
	"opsdesk.dev/internal/workspace"
)

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "opsdesk-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "opsdesk-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

type tokenRequest struct {
	User string `json:"user"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken mints a bearer token for an upstream-verified identity.
// The gateway in front of this service is responsible for authenticating the
// user before calling here.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, r, http.StatusBadRequest, "user is required")
		return
	}
	token, err := auth.GenerateToken(user, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokenTTL),
	})
}

// actor returns the authenticated user ID or writes a 401.
func (a *API) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

// requireRead resolves the actor's role and checks a permission before any
// handler work. Reads are permission-gated but not audited; write handlers may
// use it as a pre-check so nothing is revealed to non-members before the guard
// runs.
func (a *API) requireRead(w http.ResponseWriter, r *http.Request, workspaceID string, perm rbac.Permission) (string, bool) {
	userID, ok := a.actor(w, r)
	if !ok {
		return "", false
	}
	role, err := a.members.Role(r.Context(), workspaceID, userID)
	if err != nil {
		handleGuardError(w, r, err)
		return "", false
	}
	if err := rbac.RequirePermission(role, perm); err != nil {
		obs.GuardDenied("permission")
		handleGuardError(w, r, err)
		return "", false
	}
	return userID, true
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
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

// handleGuardError maps the error taxonomy to HTTP responses. Messages stay
// generic; the specific cause already went to the operational log.
func handleGuardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrPermissionDenied),
		errors.Is(err, rbac.ErrInsufficientRole),
		errors.Is(err, guard.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, guard.ErrRateLimited):
		var rl *guard.RateLimitError
		if errors.As(err, &rl) {
			retry := int(time.Until(rl.ResetAt).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, guard.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, guard.ErrInvalidInput), errors.Is(err, audit.ErrInvalidInput),
		errors.Is(err, workspace.ErrInvalidInput), errors.Is(err, rbac.ErrInvalidRole):
		writeError(w, r, http.StatusBadRequest, "invalid request")
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, workspace.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, workspace.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "already exists")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// writeGuardResult renders a successful guarded operation. A degraded audit
// write is surfaced to the caller instead of silently succeeding.
func writeGuardResult(w http.ResponseWriter, r *http.Request, code int, res guard.Result, body map[string]any) {
	if body == nil {
		body = map[string]any{}
	}
	if res.AuditDegraded {
		body["audit_degraded"] = true
	}
	writeJSON(w, code, body)
}
