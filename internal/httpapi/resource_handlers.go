package httpapi

import (
	"context"
	"net/http"

	"opsdesk.dev/internal/guard"
	"opsdesk.dev/internal/ids"
	"opsdesk.dev/internal/rbac"
)

// resourcePerms maps the URL resource segment to its capability tags. Only
// the four business resources are served here; membership and the audit
// trail have dedicated routes.
var resourcePerms = map[string]struct {
	read, create, update, remove rbac.Permission
}{
	"customers": {rbac.PermCustomersRead, rbac.PermCustomersCreate, rbac.PermCustomersUpdate, rbac.PermCustomersDelete},
	"invoices":  {rbac.PermInvoicesRead, rbac.PermInvoicesCreate, rbac.PermInvoicesUpdate, rbac.PermInvoicesDelete},
	"expenses":  {rbac.PermExpensesRead, rbac.PermExpensesCreate, rbac.PermExpensesUpdate, rbac.PermExpensesDelete},
	"tasks":     {rbac.PermTasksRead, rbac.PermTasksCreate, rbac.PermTasksUpdate, rbac.PermTasksDelete},
}

func resourceParams(w http.ResponseWriter, r *http.Request) (workspaceID, resource string, ok bool) {
	workspaceID = r.PathValue("workspace")
	resource = r.PathValue("resource")
	if workspaceID == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return "", "", false
	}
	if _, known := resourcePerms[resource]; !known {
		writeError(w, r, http.StatusNotFound, "not found")
		return "", "", false
	}
	return workspaceID, resource, true
}

func (a *API) handleResourceList(w http.ResponseWriter, r *http.Request) {
	workspaceID, resource, ok := resourceParams(w, r)
	if !ok {
		return
	}
	if _, ok := a.requireRead(w, r, workspaceID, resourcePerms[resource].read); !ok {
		return
	}
	items, err := a.dir.List(r.Context(), workspaceID, resource)
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	if items == nil {
		items = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleResourceGet(w http.ResponseWriter, r *http.Request) {
	workspaceID, resource, ok := resourceParams(w, r)
	if !ok {
		return
	}
	if _, ok := a.requireRead(w, r, workspaceID, resourcePerms[resource].read); !ok {
		return
	}
	obj, err := a.dir.Get(r.Context(), workspaceID, resource, r.PathValue("id"))
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (a *API) handleResourceCreate(w http.ResponseWriter, r *http.Request) {
	workspaceID, resource, ok := resourceParams(w, r)
	if !ok {
		return
	}
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id := ids.New()
	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   resourcePerms[resource].create,
		Action:       "CREATE",
		ResourceType: resource,
		ResourceID:   id,
		Payload:      payload,
		Limit:        writeLimit,
		Meta:         requestMeta(r),
	}, func(ctx context.Context, clean map[string]any) (guard.Effect, error) {
		obj := make(map[string]any, len(clean)+1)
		for k, v := range clean {
			obj[k] = v
		}
		obj["id"] = id
		if err := a.dir.Put(ctx, workspaceID, resource, id, obj); err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{ResourceID: id, NewValues: obj}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/workspaces/"+workspaceID+"/"+resource+"/"+id)
	writeGuardResult(w, r, http.StatusCreated, res, map[string]any{"item": res.Effect.NewValues})
}

func (a *API) handleResourceUpdate(w http.ResponseWriter, r *http.Request) {
	workspaceID, resource, ok := resourceParams(w, r)
	if !ok {
		return
	}
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")

	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   resourcePerms[resource].update,
		Action:       "UPDATE",
		ResourceType: resource,
		ResourceID:   id,
		Payload:      payload,
		Limit:        writeLimit,
		Meta:         requestMeta(r),
	}, func(ctx context.Context, clean map[string]any) (guard.Effect, error) {
		old, err := a.dir.Get(ctx, workspaceID, resource, id)
		if err != nil {
			return guard.Effect{}, err
		}
		next := make(map[string]any, len(old)+len(clean))
		for k, v := range old {
			next[k] = v
		}
		for k, v := range clean {
			next[k] = v
		}
		next["id"] = id
		if err := a.dir.Put(ctx, workspaceID, resource, id, next); err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{ResourceID: id, OldValues: old, NewValues: next}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeGuardResult(w, r, http.StatusOK, res, map[string]any{"item": res.Effect.NewValues})
}

func (a *API) handleResourceDelete(w http.ResponseWriter, r *http.Request) {
	workspaceID, resource, ok := resourceParams(w, r)
	if !ok {
		return
	}
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   resourcePerms[resource].remove,
		Action:       "DELETE",
		ResourceType: resource,
		ResourceID:   id,
		Limit:        writeLimit,
		Meta:         requestMeta(r),
	}, func(ctx context.Context, _ map[string]any) (guard.Effect, error) {
		old, err := a.dir.Get(ctx, workspaceID, resource, id)
		if err != nil {
			return guard.Effect{}, err
		}
		if err := a.dir.Delete(ctx, workspaceID, resource, id); err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{ResourceID: id, OldValues: old}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeGuardResult(w, r, http.StatusOK, res, map[string]any{"deleted": id})
}

// statusTransition runs a verb route (send/void/complete) that flips a
// status field on an existing object.
func (a *API) statusTransition(w http.ResponseWriter, r *http.Request, resource, action string, perm rbac.Permission, newStatus string) {
	workspaceID := r.PathValue("workspace")
	id := r.PathValue("id")
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}

	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   perm,
		Action:       action,
		ResourceType: resource,
		ResourceID:   id,
		Limit:        writeLimit,
		Meta:         requestMeta(r),
	}, func(ctx context.Context, _ map[string]any) (guard.Effect, error) {
		obj, err := a.dir.Get(ctx, workspaceID, resource, id)
		if err != nil {
			return guard.Effect{}, err
		}
		obj["status"] = newStatus
		if err := a.dir.Put(ctx, workspaceID, resource, id, obj); err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{ResourceID: id, NewValues: map[string]any{"status": newStatus}}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeGuardResult(w, r, http.StatusOK, res, map[string]any{"id": id, "status": newStatus})
}

func (a *API) handleInvoiceSend(w http.ResponseWriter, r *http.Request) {
	a.statusTransition(w, r, "invoices", "SEND", rbac.PermInvoicesSend, "sent")
}

func (a *API) handleInvoiceVoid(w http.ResponseWriter, r *http.Request) {
	a.statusTransition(w, r, "invoices", "VOID", rbac.PermInvoicesVoid, "void")
}

func (a *API) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	a.statusTransition(w, r, "tasks", "COMPLETE", rbac.PermTasksComplete, "done")
}
