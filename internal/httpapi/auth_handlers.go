package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"teamboard.io/internal/audit"
	"teamboard.io/internal/authz"
	"teamboard.io/internal/token"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	ProfileID  string `json:"profileId,omitempty"`
	FirstLogin bool   `json:"firstLogin"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.store.UserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	if err := authz.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := a.tokens.Issue(r.Context(), token.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ProfileID: user.DirectProfileID,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{
			ID:         user.ID,
			Email:      user.Email,
			Name:       user.Name,
			ProfileID:  user.DirectProfileID,
			FirstLogin: user.FirstLogin,
		},
		"tokens":          pair,
		"isAuthenticated": true,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refreshToken is required")
		return
	}

	pair, identity, err := a.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrInvalid) || errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrRevoked) {
			unauthorized(w, r)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": identity.UserID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens":  pair,
		"success": true,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	ac, ok := authz.AuthFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	// Blacklist the access token presented on this request, plus the
	// refresh token when the client sends it along.
	if raw, found := token.ExtractFromRequest(r); found {
		if err := a.tokens.Revoke(r.Context(), raw); err != nil {
			writeError(w, r, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	var req refreshRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	if strings.TrimSpace(req.RefreshToken) != "" {
		if err := a.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
			writeError(w, r, http.StatusInternalServerError, "logout failed")
			return
		}
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user_id": ac.UserID,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	ac, ok := authz.AuthFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	teams := make([]map[string]any, 0, len(ac.Memberships))
	for _, m := range ac.Memberships {
		teams = append(teams, map[string]any{
			"id":   m.Team.ID,
			"name": m.Team.Name,
			"role": m.Role,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":          ac.UserID,
		"email":           ac.Email,
		"name":            ac.Name,
		"profileId":       ac.ProfileID,
		"permissions":     ac.Permissions.Names(),
		"teams":           teams,
		"isAuthenticated": true,
	})
}

func (a *API) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	ac, ok := authz.AuthFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	hierarchy, err := a.resolver.ResolveHierarchy(r.Context(), ac.UserID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "hierarchy resolution failed")
		return
	}
	writeJSON(w, http.StatusOK, hierarchy)
}
