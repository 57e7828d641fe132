package httpapi

import (
	"net/http"
	"strings"

	"lexora.org/internal/account"
	"lexora.org/internal/audit"
	"lexora.org/internal/token"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updatePermissionsRequest struct {
	Permissions account.PermissionSet `json:"permissions"`
}

// caller returns the authenticated account id, or fails the request. The
// service re-checks the admin kind; this only establishes identity.
func (a *API) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := token.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return claims.Subject, true
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	adminID, ok := a.caller(w, r)
	if !ok {
		return
	}
	members, err := a.svc.ListMembers(r.Context(), adminID)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": members,
		"count": len(members),
	})
}

func (a *API) handleMemberResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/firm/members/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	subjectID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.unlinkMember(w, r, subjectID)
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateMemberStatus(w, r, subjectID)
	case len(parts) == 2 && parts[1] == "permissions":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateMemberPermissions(w, r, subjectID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) updateMemberStatus(w http.ResponseWriter, r *http.Request, subjectID string) {
	adminID, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.UpdateMemberStatus(r.Context(), adminID, subjectID, req.Status); err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "firm.member.status.update", map[string]any{
		"subject_id": subjectID,
		"status":     req.Status,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) updateMemberPermissions(w http.ResponseWriter, r *http.Request, subjectID string) {
	adminID, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req updatePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.UpdateMemberPermissions(r.Context(), adminID, subjectID, req.Permissions); err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "firm.member.permissions.update", map[string]any{
		"subject_id": subjectID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) unlinkMember(w http.ResponseWriter, r *http.Request, subjectID string) {
	adminID, ok := a.caller(w, r)
	if !ok {
		return
	}
	if err := a.svc.Unlink(r.Context(), adminID, subjectID); err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "firm.member.unlink", map[string]any{
		"subject_id": subjectID,
	})
	w.WriteHeader(http.StatusNoContent)
}
