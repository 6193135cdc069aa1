package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"teamboard.io/internal/cache"
	"teamboard.io/internal/obs"
)

const (
	resolutionKeyPrefix = "authz:resolution:"
	hierarchyKeyPrefix  = "authz:hierarchy:"
)

// ResolutionCache is the slice of the cache the resolver needs. *cache.Cache
// satisfies it.
type ResolutionCache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Resolver computes a user's effective permission set by walking the
// User→Profile and User→Team→Profile graph, cache-first. The cache is best
// effort: staleness is bounded by the TTL plus the invalidation calls every
// graph-mutating write owes the engine, and a cache outage degrades to a
// direct graph walk.
type Resolver struct {
	store         Store
	cache         ResolutionCache
	resolutionTTL time.Duration
	hierarchyTTL  time.Duration
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithResolutionTTL overrides the resolution cache lifetime. This is the
// maximum staleness a permission revocation can suffer when the mutating
// writer fails to invalidate.
func WithResolutionTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.resolutionTTL = ttl
		}
	}
}

// WithHierarchyTTL overrides the hierarchy snapshot cache lifetime.
func WithHierarchyTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.hierarchyTTL = ttl
		}
	}
}

// NewResolver constructs a Resolver over the graph store and shared cache.
func NewResolver(store Store, c ResolutionCache, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("authz: store is required")
	}
	if c == nil {
		return nil, errors.New("authz: cache is required")
	}
	r := &Resolver{
		store:         store,
		cache:         c,
		resolutionTTL: cache.TTLMedium,
		hierarchyTTL:  cache.TTLLong,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func resolutionKey(userID string) string { return resolutionKeyPrefix + userID }
func hierarchyKey(userID string) string  { return hierarchyKeyPrefix + userID }

// Resolve returns the user's effective permissions, serving from cache when
// possible and repopulating it after a graph walk.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Resolution, error) {
	if userID == "" {
		return Resolution{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	var cached Resolution
	err := r.cache.GetJSON(ctx, resolutionKey(userID), &cached)
	switch {
	case err == nil:
		obs.CacheLookup("hit")
		return cached, nil
	case errors.Is(err, cache.ErrMiss):
		obs.CacheLookup("miss")
	default:
		// Backend unavailable: degrade to a direct walk.
		obs.CacheLookup("error")
		obs.LogEntry(map[string]any{
			"level": "warn", "msg": "authz_cache_unavailable", "op": "resolve", "error": err.Error(),
		})
	}

	res, err := r.walk(ctx, userID)
	if err != nil {
		return Resolution{}, err
	}

	if err := r.cache.SetJSON(ctx, resolutionKey(userID), res, r.resolutionTTL); err != nil {
		obs.LogEntry(map[string]any{
			"level": "warn", "msg": "authz_cache_populate_failed", "user_id": userID, "error": err.Error(),
		})
	}
	return res, nil
}

// walk performs the full graph traversal and dedup.
func (r *Resolver) walk(ctx context.Context, userID string) (Resolution, error) {
	res := Resolution{
		UserID:      userID,
		Direct:      []Permission{},
		Team:        []Permission{},
		Combined:    []Permission{},
		Sources:     []Source{},
		Memberships: []Membership{},
	}

	user, err := r.store.User(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		// Fail closed: an unknown user resolves to zero permissions.
		r.logGap(userID, "user", userID)
		return res, nil
	}
	if err != nil {
		return Resolution{}, err
	}
	res.ProfileID = user.DirectProfileID

	seenDirect := map[string]struct{}{}
	if user.DirectProfileID != "" {
		profile, err := r.store.Profile(ctx, user.DirectProfileID)
		switch {
		case errors.Is(err, ErrNotFound):
			r.logGap(userID, "profile", user.DirectProfileID)
		case err != nil:
			return Resolution{}, err
		default:
			perms, err := r.profilePermissions(ctx, userID, profile.ID)
			if err != nil {
				return Resolution{}, err
			}
			for _, p := range perms {
				if _, ok := seenDirect[p.ID]; ok {
					continue
				}
				seenDirect[p.ID] = struct{}{}
				res.Direct = append(res.Direct, p)
			}
			res.Sources = append(res.Sources, Source{
				Origin:      SourceDirect,
				ProfileID:   profile.ID,
				ProfileName: profile.Name,
			})
		}
	}

	memberships, err := r.store.TeamsForUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Resolution{}, err
	}
	seenTeam := map[string]struct{}{}
	for _, m := range memberships {
		res.Memberships = append(res.Memberships, m)
		profiles, err := r.store.TeamProfiles(ctx, m.Team.ID)
		if errors.Is(err, ErrNotFound) {
			r.logGap(userID, "team", m.Team.ID)
			continue
		}
		if err != nil {
			return Resolution{}, err
		}
		for _, profile := range profiles {
			perms, err := r.profilePermissions(ctx, userID, profile.ID)
			if err != nil {
				return Resolution{}, err
			}
			for _, p := range perms {
				if _, ok := seenTeam[p.ID]; ok {
					continue
				}
				seenTeam[p.ID] = struct{}{}
				res.Team = append(res.Team, p)
			}
			res.Sources = append(res.Sources, Source{
				Origin:      SourceTeam,
				ProfileID:   profile.ID,
				ProfileName: profile.Name,
				TeamID:      m.Team.ID,
				TeamName:    m.Team.Name,
			})
		}
	}

	res.Combined = combine(res.Direct, res.Team)
	sortPermissions(res.Direct)
	sortPermissions(res.Team)
	return res, nil
}

// profilePermissions loads a profile's permissions, treating a dangling
// profile reference as an empty edge.
func (r *Resolver) profilePermissions(ctx context.Context, userID, profileID string) ([]Permission, error) {
	perms, err := r.store.ProfilePermissions(ctx, profileID)
	if errors.Is(err, ErrNotFound) {
		r.logGap(userID, "profile_permissions", profileID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *Resolver) logGap(userID, kind, refID string) {
	obs.LogEntry(map[string]any{
		"level": "warn", "msg": "authz_graph_gap",
		"user_id": userID, "ref_kind": kind, "ref_id": refID,
	})
}

// combine unions the two lists deduplicated by permission id.
func combine(direct, team []Permission) []Permission {
	seen := make(map[string]struct{}, len(direct)+len(team))
	combined := make([]Permission, 0, len(direct)+len(team))
	for _, list := range [][]Permission{direct, team} {
		for _, p := range list {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			combined = append(combined, p)
		}
	}
	sortPermissions(combined)
	return combined
}

func sortPermissions(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Name != perms[j].Name {
			return perms[i].Name < perms[j].Name
		}
		return perms[i].ID < perms[j].ID
	})
}

// HasPermission is a convenience wrapper over Resolve.
func (r *Resolver) HasPermission(ctx context.Context, userID, name string) (bool, error) {
	res, err := r.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return res.PermissionSet().Has(name), nil
}

// ResolveHierarchy returns the full graph snapshot for diagnostics, cached
// separately from the resolution with its own TTL.
func (r *Resolver) ResolveHierarchy(ctx context.Context, userID string) (Hierarchy, error) {
	if userID == "" {
		return Hierarchy{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	var cached Hierarchy
	err := r.cache.GetJSON(ctx, hierarchyKey(userID), &cached)
	switch {
	case err == nil:
		obs.CacheLookup("hit")
		return cached, nil
	case errors.Is(err, cache.ErrMiss):
		obs.CacheLookup("miss")
	default:
		obs.CacheLookup("error")
		obs.LogEntry(map[string]any{
			"level": "warn", "msg": "authz_cache_unavailable", "op": "resolve_hierarchy", "error": err.Error(),
		})
	}

	user, err := r.store.User(ctx, userID)
	if err != nil {
		return Hierarchy{}, err
	}
	res, err := r.walk(ctx, userID)
	if err != nil {
		return Hierarchy{}, err
	}

	h := Hierarchy{
		User:           user,
		Teams:          []TeamNode{},
		Combined:       res.Combined,
		EffectiveRoles: []string{},
	}
	if user.DirectProfileID != "" {
		if profile, err := r.store.Profile(ctx, user.DirectProfileID); err == nil {
			h.DirectProfile = &profile
			h.EffectiveRoles = append(h.EffectiveRoles, profile.Name)
		}
	}
	for _, m := range res.Memberships {
		node := TeamNode{Team: m.Team, Role: m.Role, Profiles: []Profile{}}
		profiles, err := r.store.TeamProfiles(ctx, m.Team.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Hierarchy{}, err
		}
		for _, p := range profiles {
			node.Profiles = append(node.Profiles, p)
			h.EffectiveRoles = append(h.EffectiveRoles, m.Team.Name+"/"+p.Name)
		}
		h.Teams = append(h.Teams, node)
	}

	if err := r.cache.SetJSON(ctx, hierarchyKey(userID), h, r.hierarchyTTL); err != nil {
		obs.LogEntry(map[string]any{
			"level": "warn", "msg": "authz_cache_populate_failed", "user_id": userID, "error": err.Error(),
		})
	}
	return h, nil
}

// InvalidateUser evicts both cache entries for the user. Required after any
// edit to the user's direct profile or memberships.
func (r *Resolver) InvalidateUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return r.cache.Delete(ctx, resolutionKey(userID), hierarchyKey(userID))
}

// InvalidateTeam evicts cache entries for every current member of the team.
// Required after any edit to team membership or an attached profile.
func (r *Resolver) InvalidateTeam(ctx context.Context, teamID string) error {
	if teamID == "" {
		return fmt.Errorf("%w: team id is required", ErrInvalidInput)
	}
	memberIDs, err := r.store.TeamMemberIDs(ctx, teamID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(memberIDs)*2)
	for _, id := range memberIDs {
		keys = append(keys, resolutionKey(id), hierarchyKey(id))
	}
	return r.cache.Delete(ctx, keys...)
}

// InvalidateProfile evicts everyone affected by a change to the profile's
// permission list: users holding it directly and all members of teams it is
// attached to.
func (r *Resolver) InvalidateProfile(ctx context.Context, profileID string) error {
	if profileID == "" {
		return fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	userIDs, err := r.store.UsersWithDirectProfile(ctx, profileID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, id := range userIDs {
		if err := r.InvalidateUser(ctx, id); err != nil {
			return err
		}
	}
	teamIDs, err := r.store.TeamsWithProfile(ctx, profileID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, id := range teamIDs {
		if err := r.InvalidateTeam(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
