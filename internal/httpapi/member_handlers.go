package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"opsdesk.dev/internal/auth"
	"opsdesk.dev/internal/guard"
	"opsdesk.dev/internal/ids"
	"opsdesk.dev/internal/obs"
	"opsdesk.dev/internal/rbac"
	"opsdesk.dev/internal/security"
	"opsdesk.dev/internal/workspace"
)

type inviteRequest struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

func (a *API) handleMemberList(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if _, ok := a.requireRead(w, r, workspaceID, rbac.PermWorkspaceRead); !ok {
		return
	}
	members, err := a.members.List(r.Context(), workspaceID)
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	if members == nil {
		members = []workspace.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (a *API) handleMemberInvite(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, r, http.StatusBadRequest, "valid email is required")
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid role")
		return
	}

	userID := ids.New()
	var inviteToken string
	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   rbac.PermWorkspaceInviteMembers,
		Action:       "INVITE",
		ResourceType: "members",
		ResourceID:   userID,
		Payload: map[string]any{
			"email": email,
			"role":  role.String(),
		},
		Limit: inviteLimit,
		Meta:  requestMeta(r),
	}, func(ctx context.Context, clean map[string]any) (guard.Effect, error) {
		member := workspace.Member{
			WorkspaceID: workspaceID,
			UserID:      userID,
			Email:       email,
			Role:        role,
		}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				return guard.Effect{}, err
			}
			member.PasswordHash = hash
		}
		tok, err := security.GenerateToken(32)
		if err != nil {
			return guard.Effect{}, err
		}
		inviteToken = tok
		member.InviteToken = tok
		if err := a.members.Add(ctx, member); err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{ResourceID: userID, NewValues: clean}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	// The token goes back to the inviter for out-of-band delivery. It never
	// appears in the audit record.
	writeGuardResult(w, r, http.StatusCreated, res, map[string]any{
		"user_id":      userID,
		"email":        email,
		"role":         role.String(),
		"invite_token": inviteToken,
	})
}

type acceptInviteRequest struct {
	Token    string `json:"token"`
	Password string `json:"password,omitempty"`
}

// handleInviteAccept redeems an invite token. The token itself is the
// credential here: the invitee has no bearer token yet, so the route is
// public and the token is single-use.
func (a *API) handleInviteAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}
	var hash string
	if req.Password != "" {
		var err error
		if hash, err = auth.HashPassword(req.Password); err != nil {
			writeError(w, r, http.StatusInternalServerError, "password hashing failed")
			return
		}
	}
	member, err := a.members.AcceptInvite(r.Context(), token, hash)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "invalid invite")
			return
		}
		handleGuardError(w, r, err)
		return
	}
	if _, err := a.auditor.LogAction(r.Context(), member.WorkspaceID, member.UserID, "ACCEPT",
		"members", member.UserID,
		map[string]any{"email": member.Email, "role": member.Role.String()},
		requestMeta(r)); err != nil {
		obs.AuditWriteFailed()
		obs.Error("invite accept audit write failed", map[string]any{"error": err.Error()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_id": member.WorkspaceID,
		"user_id":      member.UserID,
		"email":        member.Email,
		"role":         member.Role.String(),
	})
}

type roleChangeRequest struct {
	Role string `json:"role"`
}

func (a *API) handleMemberRoleChange(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	targetID := r.PathValue("user")
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req roleChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid role")
		return
	}

	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   rbac.PermWorkspaceChangeMemberRoles,
		Action:       "UPDATE",
		ResourceType: "members",
		ResourceID:   targetID,
		Limit:        writeLimit,
		Meta:         requestMeta(r),
	}, func(ctx context.Context, _ map[string]any) (guard.Effect, error) {
		before, err := a.members.Get(ctx, workspaceID, targetID)
		if err != nil {
			return guard.Effect{}, err
		}
		after, err := a.members.UpdateRole(ctx, workspaceID, targetID, role)
		if err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{
			ResourceID: targetID,
			OldValues:  map[string]any{"email": before.Email, "role": before.Role.String()},
			NewValues:  map[string]any{"email": after.Email, "role": after.Role.String()},
		}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeGuardResult(w, r, http.StatusOK, res, map[string]any{
		"user_id": targetID,
		"role":    role.String(),
	})
}

func (a *API) handleMemberRemove(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	targetID := r.PathValue("user")
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}

	res, err := a.guard.Execute(r.Context(), guard.Request{
		WorkspaceID:  workspaceID,
		ActorID:      actorID,
		Permission:   rbac.PermWorkspaceRemoveMembers,
		Action:       "DELETE",
		ResourceType: "members",
		ResourceID:   targetID,
		Limit:        writeLimit,
		Meta:         requestMeta(r),
	}, func(ctx context.Context, _ map[string]any) (guard.Effect, error) {
		before, err := a.members.Get(ctx, workspaceID, targetID)
		if err != nil {
			return guard.Effect{}, err
		}
		if err := a.members.Remove(ctx, workspaceID, targetID); err != nil {
			return guard.Effect{}, err
		}
		return guard.Effect{
			ResourceID: targetID,
			OldValues:  map[string]any{"email": before.Email, "role": before.Role.String()},
		}, nil
	})
	if err != nil {
		handleGuardError(w, r, err)
		return
	}
	writeGuardResult(w, r, http.StatusOK, res, map[string]any{"removed": targetID})
}
