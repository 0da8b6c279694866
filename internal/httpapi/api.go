// Package httpapi is the hardened HTTP entry point. Every mutating route
// runs through the action guard; reads go through an explicit permission
// check. The middleware chain attaches security headers, caps request
// bodies, and rate-limits per client IP before any handler runs.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"opsdesk.dev/internal/audit"
	"opsdesk.dev/internal/directory"
	"opsdesk.dev/internal/guard"
	"opsdesk.dev/internal/obs"
	"opsdesk.dev/internal/workspace"
)

// maxRequestBody is the fixed request-body ceiling applied before any
// guarded operation sees the payload.
const maxRequestBody = 10 << 20 // 10 MiB

// ReadyProbe checks readiness (DB ping when a database is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API's collaborators.
type Config struct {
	Guard      *guard.Guard
	Auditor    *audit.Logger
	Members    workspace.MemberStore
	Directory  directory.Store
	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	guard      *guard.Guard
	auditor    *audit.Logger
	members    workspace.MemberStore
	dir        directory.Store
	readyProbe ReadyProbe
	version    string
}

// New builds the router. All collaborators except the ready probe are
// required.
func New(cfg Config) (*API, error) {
	if cfg.Guard == nil || cfg.Auditor == nil || cfg.Members == nil || cfg.Directory == nil {
		return nil, errors.New("httpapi: guard, auditor, members, and directory are required")
	}
	a := &API{
		mux:        http.NewServeMux(),
		guard:      cfg.Guard,
		auditor:    cfg.Auditor,
		members:    cfg.Members,
		dir:        cfg.Directory,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReady)
	a.mux.HandleFunc("GET /v1/info", a.handleInfo)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("POST /v1/invites/accept", a.handleInviteAccept)

	// Business resources, all workspace-scoped.
	a.mux.HandleFunc("GET /v1/workspaces/{workspace}/{resource}", a.handleResourceList)
	a.mux.HandleFunc("POST /v1/workspaces/{workspace}/{resource}", a.handleResourceCreate)
	a.mux.HandleFunc("GET /v1/workspaces/{workspace}/{resource}/{id}", a.handleResourceGet)
	a.mux.HandleFunc("PUT /v1/workspaces/{workspace}/{resource}/{id}", a.handleResourceUpdate)
	a.mux.HandleFunc("DELETE /v1/workspaces/{workspace}/{resource}/{id}", a.handleResourceDelete)

	// Verb routes.
	a.mux.HandleFunc("POST /v1/workspaces/{workspace}/invoices/{id}/send", a.handleInvoiceSend)
	a.mux.HandleFunc("POST /v1/workspaces/{workspace}/invoices/{id}/void", a.handleInvoiceVoid)
	a.mux.HandleFunc("POST /v1/workspaces/{workspace}/tasks/{id}/complete", a.handleTaskComplete)
	a.mux.HandleFunc("POST /v1/workspaces/{workspace}/expenses/{id}/attachments", a.handleExpenseAttachment)

	// Membership.
	a.mux.HandleFunc("GET /v1/workspaces/{workspace}/members", a.handleMemberList)
	a.mux.HandleFunc("POST /v1/workspaces/{workspace}/members", a.handleMemberInvite)
	a.mux.HandleFunc("PUT /v1/workspaces/{workspace}/members/{user}/role", a.handleMemberRoleChange)
	a.mux.HandleFunc("DELETE /v1/workspaces/{workspace}/members/{user}", a.handleMemberRemove)

	// Audit trail.
	a.mux.HandleFunc("GET /v1/workspaces/{workspace}/audit", a.handleAuditLogs)
	a.mux.HandleFunc("GET /v1/workspaces/{workspace}/audit/stats", a.handleAuditStats)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a, nil
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, 20, 10)
	h = MaxBodyBytes(h, maxRequestBody)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// requestMeta extracts the client fields forwarded into audit records.
func requestMeta(r *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// Rate-limit classes for guarded operations.
var (
	writeLimit  = &guard.RateLimit{Window: time.Minute, MaxAttempts: 60}
	inviteLimit = &guard.RateLimit{Window: time.Hour, MaxAttempts: 20}
)
