package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"teamboard.io/internal/authz"
	"teamboard.io/internal/obs"
	"teamboard.io/internal/token"
)

// CachePinger reports reachability of the cache backend.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the service's backing stores.
type ReadyProbe struct {
	DB    *sql.DB
	Cache CachePinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Cache != nil {
		if err := rp.Cache.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP layer over the token service and permission resolver.
type API struct {
	mux        *http.ServeMux
	tokens     *token.Service
	resolver   *authz.Resolver
	store      authz.Store
	admin      *authz.Admin
	readyProbe ReadyProbe
	version    string
}

func New(tokens *token.Service, resolver *authz.Resolver, store authz.Store, admin *authz.Admin, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		tokens:     tokens,
		resolver:   resolver,
		store:      store,
		admin:      admin,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/current-user", a.handleCurrentUser)
	a.mux.HandleFunc("/auth/hierarchy", a.handleHierarchy)

	a.mux.Handle("/admin/users/", RequirePermission("ManageUsers")(http.HandlerFunc(a.handleUserResource)))
	a.mux.Handle("/admin/teams/", RequirePermission("ManageTeams")(http.HandlerFunc(a.handleTeamResource)))
	a.mux.Handle("/admin/profiles/", RequirePermission("ManageProfiles")(http.HandlerFunc(a.handleProfileResource)))

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = LoggingJSON(h)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10, "/auth/")
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "teamboard-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
