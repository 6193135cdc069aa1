package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"teamboard.io/internal/audit"
	"teamboard.io/internal/authz"
)

type setProfileRequest struct {
	ProfileID string `json:"profileId"`
}

type addMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type attachProfileRequest struct {
	ProfileID string `json:"profileId"`
}

type setPermissionsRequest struct {
	PermissionIDs []string `json:"permissionIds"`
}

// PUT /admin/users/{id}/profile
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r.URL.Path, "/admin/users/")
	if len(parts) != 2 || parts[1] != "profile" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req setProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.admin.SetUserProfile(r.Context(), userID, req.ProfileID); err != nil {
		handleAdminError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.profile.set", map[string]any{
		"target_user_id": userID,
		"profile_id":     req.ProfileID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST   /admin/teams/{id}/members
// DELETE /admin/teams/{id}/members/{userId}
// POST   /admin/teams/{id}/profiles
// DELETE /admin/teams/{id}/profiles/{profileId}
func (a *API) handleTeamResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r.URL.Path, "/admin/teams/")
	if len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	teamID := parts[0]
	switch parts[1] {
	case "members":
		a.handleTeamMembers(w, r, teamID, parts[2:])
	case "profiles":
		a.handleTeamProfiles(w, r, teamID, parts[2:])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleTeamMembers(w http.ResponseWriter, r *http.Request, teamID string, rest []string) {
	switch r.Method {
	case http.MethodPost:
		if len(rest) != 0 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		var req addMemberRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.AddTeamMember(r.Context(), req.UserID, teamID, req.Role); err != nil {
			handleAdminError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.team.member.add", map[string]any{
			"team_id":        teamID,
			"target_user_id": req.UserID,
		})
		writeJSON(w, http.StatusCreated, map[string]any{"success": true})
	case http.MethodDelete:
		if len(rest) != 1 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if err := a.admin.RemoveTeamMember(r.Context(), rest[0], teamID); err != nil {
			handleAdminError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.team.member.remove", map[string]any{
			"team_id":        teamID,
			"target_user_id": rest[0],
		})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handleTeamProfiles(w http.ResponseWriter, r *http.Request, teamID string, rest []string) {
	switch r.Method {
	case http.MethodPost:
		if len(rest) != 0 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		var req attachProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.AttachTeamProfile(r.Context(), teamID, req.ProfileID); err != nil {
			handleAdminError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.team.profile.attach", map[string]any{
			"team_id":    teamID,
			"profile_id": req.ProfileID,
		})
		writeJSON(w, http.StatusCreated, map[string]any{"success": true})
	case http.MethodDelete:
		if len(rest) != 1 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if err := a.admin.DetachTeamProfile(r.Context(), teamID, rest[0]); err != nil {
			handleAdminError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.team.profile.detach", map[string]any{
			"team_id":    teamID,
			"profile_id": rest[0],
		})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

// PUT /admin/profiles/{id}/permissions
func (a *API) handleProfileResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r.URL.Path, "/admin/profiles/")
	if len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	profileID := parts[0]
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req setPermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.admin.SetProfilePermissions(r.Context(), profileID, req.PermissionIDs); err != nil {
		handleAdminError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.profile.permissions.set", map[string]any{
		"profile_id": profileID,
		"count":      len(req.PermissionIDs),
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func splitResourcePath(path, prefix string) []string {
	path = strings.TrimPrefix(path, prefix)
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func handleAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, authz.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "admin operation failed")
	}
}
