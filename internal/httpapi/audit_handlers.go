package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsdesk.dev/internal/audit"
	"opsdesk.dev/internal/rbac"
)

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if _, ok := a.requireRead(w, r, workspaceID, rbac.PermAuditRead); !ok {
		return
	}

	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	records, err := a.auditor.Logs(r.Context(), workspaceID, filter)
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if _, ok := a.requireRead(w, r, workspaceID, rbac.PermAuditRead); !ok {
		return
	}

	days := 30
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 365 {
			writeError(w, r, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = v
	}
	stats, err := a.auditor.Stats(r.Context(), workspaceID, days)
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func auditFilterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		ResourceType: strings.TrimSpace(q.Get("resource_type")),
		ResourceID:   strings.TrimSpace(q.Get("resource_id")),
		UserID:       strings.TrimSpace(q.Get("user_id")),
		Action:       strings.ToUpper(strings.TrimSpace(q.Get("action"))),
	}

	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errors.New("start must be RFC3339")
		}
		f.Start = t
	}
	if raw := strings.TrimSpace(q.Get("end")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errors.New("end must be RFC3339")
		}
		f.End = t
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			return audit.Filter{}, errors.New("limit must be between 1 and 500")
		}
		f.Limit = v
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return audit.Filter{}, errors.New("offset must be a non-negative integer")
		}
		f.Offset = v
	}
	return f, nil
}
