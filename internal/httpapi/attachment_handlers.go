package httpapi

import (
	"context"
	"net/http"

	"opsdesk.dev/internal/guard"
	"opsdesk.dev/internal/obs"
	"opsdesk.dev/internal/rbac"
	"opsdesk.dev/internal/security"
)

type attachmentRequest struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// handleExpenseAttachment validates an upload descriptor against the file
// policy and records the attachment intent. The bytes themselves go to the
// storage collaborator; this layer only decides whether they are welcome.
func (a *API) handleExpenseAttachment(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	expenseID := r.PathValue("id")
	// Membership and permission come first: the policy error list below is
	// only for actors already allowed to attach.
	actorID, ok := a.requireRead(w, r, workspaceID, rbac.PermExpensesUpdate)
	if !ok {
		return
	}
	var req attachmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	upload := security.ValidateFileUpload(security.FileUpload{
		Name:     req.Name,
		Size:     req.Size,
		MimeType: req.MimeType,
	})
	if !upload.Valid {
		obs.GuardDenied("validation")
		obs.SecurityWarn("file_upload.blocked", map[string]any{
			"workspace_id": workspaceID,
			"actor_id":     actorID,
			"file_name":    req.Name,
			"errors":       upload.Errors,
		})
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "file rejected",
			"errors": upload.Errors,
		})
		return
	}

	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   rbac.PermExpensesUpdate,
		Action:       "ATTACH",
		ResourceType: "expenses",
		ResourceID:   expenseID,
		Payload: map[string]any{
			"file_name": req.Name,
			"file_size": req.Size,
			"mime_type": req.MimeType,
		},
		Limit: writeLimit,
		Meta:  requestMeta(r),
	}, func(ctx context.Context, clean map[string]any) (guard.Effect, error) {
		if _, err := a.dir.Get(ctx, workspaceID, "expenses", expenseID); err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{ResourceID: expenseID, NewValues: clean}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeGuardResult(w, r, http.StatusAccepted, res, map[string]any{"accepted": true})
}
