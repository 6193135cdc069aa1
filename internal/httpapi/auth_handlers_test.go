package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func doJSON(t *testing.T, handler http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, handler http.Handler) (access, refresh string) {
	t.Helper()
	rr := doJSON(t, handler, http.MethodPost, "/auth/login",
		`{"email":"u1@example.com","password":"secret123"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
			ExpiresIn    int64  `json:"expiresIn"`
		} `json:"tokens"`
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if !resp.IsAuthenticated || resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("incomplete login response: %s", rr.Body.String())
	}
	if resp.Tokens.ExpiresIn <= 0 {
		t.Fatalf("expected positive expiresIn, got %d", resp.Tokens.ExpiresIn)
	}
	return resp.Tokens.AccessToken, resp.Tokens.RefreshToken
}

func TestLoginAndCurrentUser(t *testing.T) {
	_, handler := newTestAPI(t)
	access, _ := login(t, handler)

	rr := doJSON(t, handler, http.MethodGet, "/auth/current-user", "", access)
	if rr.Code != http.StatusOK {
		t.Fatalf("current-user: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		UserID          string   `json:"userId"`
		ProfileID       string   `json:"profileId"`
		Permissions     []string `json:"permissions"`
		Teams           []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"teams"`
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode current-user: %v", err)
	}
	if resp.UserID != "u1" || resp.ProfileID != "p1" || !resp.IsAuthenticated {
		t.Fatalf("unexpected identity: %s", rr.Body.String())
	}
	// Direct profile plus team profile permissions.
	want := map[string]bool{"ViewBoards": false, "EditBoards": false}
	for _, p := range resp.Permissions {
		want[p] = true
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("missing permission %s in %v", name, resp.Permissions)
		}
	}
	if len(resp.Teams) != 1 || resp.Teams[0].Name != "Platform" || resp.Teams[0].Role != "member" {
		t.Fatalf("unexpected teams: %s", rr.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, handler := newTestAPI(t)

	rr := doJSON(t, handler, http.MethodPost, "/auth/login",
		`{"email":"u1@example.com","password":"wrong"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	badPassword := rr.Body.String()

	rr = doJSON(t, handler, http.MethodPost, "/auth/login",
		`{"email":"nobody@example.com","password":"secret123"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	// Unknown user and wrong password must be indistinguishable.
	var a, b map[string]any
	if err := json.Unmarshal([]byte(badPassword), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a["error"] != b["error"] {
		t.Fatalf("credential errors must match: %v vs %v", a["error"], b["error"])
	}
}

func TestRefreshRotatesExactlyOnce(t *testing.T) {
	_, handler := newTestAPI(t)
	_, refresh := login(t, handler)

	rr := doJSON(t, handler, http.MethodPost, "/auth/refresh",
		`{"refreshToken":"`+refresh+`"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("first refresh: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/auth/refresh",
		`{"refreshToken":"`+refresh+`"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("second refresh with the same token: expected 401, got %d", rr.Code)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	_, handler := newTestAPI(t)
	access, refresh := login(t, handler)

	rr := doJSON(t, handler, http.MethodPost, "/auth/logout",
		`{"refreshToken":"`+refresh+`"}`, access)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet, "/auth/current-user", "", access)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked access token must be rejected, got %d", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodPost, "/auth/refresh",
		`{"refreshToken":"`+refresh+`"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked refresh token must be rejected, got %d", rr.Code)
	}
}

func TestCurrentUserRequiresToken(t *testing.T) {
	_, handler := newTestAPI(t)

	rr := doJSON(t, handler, http.MethodGet, "/auth/current-user", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}

	rr = doJSON(t, handler, http.MethodGet, "/auth/current-user", "", "not-a-jwt")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestHierarchySnapshot(t *testing.T) {
	_, handler := newTestAPI(t)
	access, _ := login(t, handler)

	rr := doJSON(t, handler, http.MethodGet, "/auth/hierarchy", "", access)
	if rr.Code != http.StatusOK {
		t.Fatalf("hierarchy: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		EffectiveRoles []string `json:"effectiveRoles"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode hierarchy: %v", err)
	}
	if len(resp.EffectiveRoles) != 2 {
		t.Fatalf("expected direct and team roles, got %v", resp.EffectiveRoles)
	}
}

func TestHealthAndReady(t *testing.T) {
	_, handler := newTestAPI(t)

	rr := doJSON(t, handler, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rr.Code)
	}
	rr = doJSON(t, handler, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestLoginRejectsUnknownFields(t *testing.T) {
	_, handler := newTestAPI(t)

	rr := doJSON(t, handler, http.MethodPost, "/auth/login",
		`{"email":"u1@example.com","password":"secret123","admin":true}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}
