// Package guard wraps every workspace-mutating operation in the fixed
// pipeline: resolve role, check permission, check rate limit, sanitize and
// validate input, execute, audit. The ordering is load-bearing: a denied
// permission never reaches sanitation or the audit-as-success path, and a
// completed mutation is always followed by an audit attempt.
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opsdesk.dev/internal/audit"
	"opsdesk.dev/internal/obs"
	"opsdesk.dev/internal/ratelimit"
	"opsdesk.dev/internal/rbac"
	"opsdesk.dev/internal/security"
)

// RoleResolver supplies the actor's current role in a workspace. The guard
// treats any resolution failure, including "not a member", as a denial.
type RoleResolver interface {
	ResolveRole(ctx context.Context, workspaceID, userID string) (rbac.Role, error)
}

// RateLimit declares an operation's rate-limit class. A nil *RateLimit on
// the request means the operation is not rate limited.
type RateLimit struct {
	Window      time.Duration
	MaxAttempts int
}

// Request declares a guarded operation.
type Request struct {
	WorkspaceID  string
	ActorID      string
	Permission   rbac.Permission
	Action       string // audit verb: CREATE, UPDATE, DELETE, or a custom verb
	ResourceType string
	ResourceID   string // optional; the effect may supply it (creates)
	Payload      map[string]any
	Limit        *RateLimit
	Meta         audit.RequestMeta
}

// Effect is what the wrapped business operation reports back: the resource
// it touched and the before/after snapshots the audit record is built from.
type Effect struct {
	ResourceID string
	OldValues  map[string]any
	NewValues  map[string]any
}

// Operation is the wrapped business mutation. It receives the sanitized
// payload; the original request payload is never executed.
type Operation func(ctx context.Context, payload map[string]any) (Effect, error)

// Result reports a completed operation. AuditDegraded is set when the
// mutation committed but its audit record could not be persisted even after
// retry; AuditErr then carries the cause. Callers must surface the degraded
// guarantee rather than treat the result as a clean success.
type Result struct {
	Effect        Effect
	Record        audit.Record
	AuditDegraded bool
	AuditErr      error
}

// Guard composes the permission matrix, validator, rate limiter, and audit
// logger around business operations.
type Guard struct {
	roles        RoleResolver
	limiter      *ratelimit.Limiter
	auditor      *audit.Logger
	auditTimeout time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithAuditTimeout bounds the post-commit audit write. The default is 5s.
func WithAuditTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.auditTimeout = d
		}
	}
}

// New constructs a Guard. All three collaborators are required.
func New(roles RoleResolver, limiter *ratelimit.Limiter, auditor *audit.Logger, opts ...Option) (*Guard, error) {
	if roles == nil {
		return nil, fmt.Errorf("%w: role resolver is required", ErrInvalidInput)
	}
	if limiter == nil {
		return nil, fmt.Errorf("%w: rate limiter is required", ErrInvalidInput)
	}
	if auditor == nil {
		return nil, fmt.Errorf("%w: audit logger is required", ErrInvalidInput)
	}
	g := &Guard{
		roles:        roles,
		limiter:      limiter,
		auditor:      auditor,
		auditTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Execute runs one guarded operation end to end. Permission, rate-limit, and
// validation failures are terminal: the business operation does not run and
// no audit record is written (denials go to the operational channel
// instead). After the operation commits, the audit write runs on a detached
// context so caller cancellation cannot lose the record.
func (g *Guard) Execute(ctx context.Context, req Request, op Operation) (Result, error) {
	if err := req.normalize(); err != nil {
		return Result{}, err
	}
	if op == nil {
		return Result{}, fmt.Errorf("%w: operation is required", ErrInvalidInput)
	}

	// Step 1: resolve the actor's role, fresh for this request.
	role, err := g.roles.ResolveRole(ctx, req.WorkspaceID, req.ActorID)
	if err != nil {
		obs.GuardDenied("permission")
		return Result{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	// Step 2: the admin-only allow-list gates independently of the matrix.
	if rbac.IsAdminOnlyOperation(req.Permission) {
		if err := rbac.RequireRole(role, rbac.RoleAdmin); err != nil {
			obs.GuardDenied("role")
			return Result{}, err
		}
	}
	if err := rbac.RequirePermission(role, req.Permission); err != nil {
		obs.GuardDenied("permission")
		return Result{}, err
	}

	// Step 3: rate limit, counted fresh from the attempt history.
	if req.Limit != nil {
		res, err := g.limiter.Check(ctx, req.WorkspaceID, req.ActorID, req.Action, req.Limit.Window, req.Limit.MaxAttempts)
		if err != nil {
			return Result{}, fmt.Errorf("guard: rate limit check: %w", err)
		}
		if !res.Allowed {
			obs.GuardDenied("rate_limit")
			obs.SecurityWarn("rate_limit.exceeded", map[string]any{
				"workspace_id": req.WorkspaceID,
				"actor_id":     req.ActorID,
				"action":       req.Action,
				"reset_at":     res.ResetAt.Format(time.RFC3339),
			})
			return Result{}, &RateLimitError{Action: req.Action, ResetAt: res.ResetAt}
		}
	}

	// Step 4: sanitize, then reject known injection signatures outright.
	payload := security.SanitizeMap(req.Payload)
	if !security.ValidateSQLParams(payload) {
		signature := security.FindSQLSignature(payload)
		obs.GuardDenied("validation")
		obs.SecurityWarn("sql_injection.blocked", map[string]any{
			"workspace_id":  req.WorkspaceID,
			"actor_id":      req.ActorID,
			"action":        req.Action,
			"resource_type": req.ResourceType,
			"signature":     signature,
		})
		return Result{}, &ValidationError{Reason: signature}
	}

	// Cancellation before execution aborts cleanly: no side effect, no audit.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// Step 5: the business mutation.
	effect, err := op(ctx, payload)
	if err != nil {
		return Result{}, err
	}

	// Step 6: audit on a detached context. The mutation is committed; caller
	// cancellation must not suppress the record.
	result := Result{Effect: effect}
	rec, auditErr := g.writeAudit(ctx, req, effect, payload)
	if auditErr != nil {
		obs.AuditWriteFailed()
		obs.Error("audit write failed after committed mutation", map[string]any{
			"workspace_id":  req.WorkspaceID,
			"actor_id":      req.ActorID,
			"action":        req.Action,
			"resource_type": req.ResourceType,
			"error":         auditErr.Error(),
		})
		result.AuditDegraded = true
		result.AuditErr = fmt.Errorf("%w: %v", audit.ErrWriteFailed, auditErr)
		return result, nil
	}
	result.Record = rec
	return result, nil
}

func (g *Guard) writeAudit(ctx context.Context, req Request, effect Effect, payload map[string]any) (audit.Record, error) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.auditTimeout)
	defer cancel()

	resourceID := effect.ResourceID
	if resourceID == "" {
		resourceID = req.ResourceID
	}

	rec, err := g.logOnce(actx, req, effect, payload, resourceID)
	if err == nil {
		return rec, nil
	}
	// Best-effort single retry, then degrade.
	retryCtx, retryCancel := context.WithTimeout(context.WithoutCancel(ctx), g.auditTimeout)
	defer retryCancel()
	return g.logOnce(retryCtx, req, effect, payload, resourceID)
}

func (g *Guard) logOnce(ctx context.Context, req Request, effect Effect, payload map[string]any, resourceID string) (audit.Record, error) {
	switch req.Action {
	case audit.ActionCreate:
		return g.auditor.LogCreate(ctx, req.WorkspaceID, req.ActorID, req.ResourceType, resourceID, effect.NewValues, req.Meta)
	case audit.ActionUpdate:
		return g.auditor.LogUpdate(ctx, req.WorkspaceID, req.ActorID, req.ResourceType, resourceID, effect.OldValues, effect.NewValues, req.Meta)
	case audit.ActionDelete:
		return g.auditor.LogDelete(ctx, req.WorkspaceID, req.ActorID, req.ResourceType, resourceID, effect.OldValues, req.Meta)
	default:
		details := effect.NewValues
		if details == nil {
			details = payload
		}
		return g.auditor.LogAction(ctx, req.WorkspaceID, req.ActorID, req.Action, req.ResourceType, resourceID, details, req.Meta)
	}
}

func (r *Request) normalize() error {
	r.WorkspaceID = strings.TrimSpace(r.WorkspaceID)
	r.ActorID = strings.TrimSpace(r.ActorID)
	r.Action = strings.ToUpper(strings.TrimSpace(r.Action))
	r.ResourceType = strings.TrimSpace(r.ResourceType)
	if r.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace_id is required", ErrInvalidInput)
	}
	if r.ActorID == "" {
		return fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	if r.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidInput)
	}
	if r.ResourceType == "" {
		return fmt.Errorf("%w: resource_type is required", ErrInvalidInput)
	}
	if r.Permission == "" {
		return fmt.Errorf("%w: permission is required", ErrInvalidInput)
	}
	return nil
}
