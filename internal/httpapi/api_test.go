package httpapi

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"teamboard.io/internal/authz"
	"teamboard.io/internal/cache"
	"teamboard.io/internal/token"
)

type stubStore struct {
	mu           sync.Mutex
	users        map[string]authz.User
	profiles     map[string]authz.Profile
	profilePerms map[string][]authz.Permission
	memberships  map[string][]authz.Membership
	teamProfiles map[string][]authz.Profile
}

func (s *stubStore) User(ctx context.Context, id string) (authz.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return authz.User{}, authz.ErrNotFound
	}
	return u, nil
}

func (s *stubStore) UserByEmail(ctx context.Context, email string) (authz.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return authz.User{}, authz.ErrNotFound
}

func (s *stubStore) Profile(ctx context.Context, id string) (authz.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return authz.Profile{}, authz.ErrNotFound
	}
	return p, nil
}

func (s *stubStore) ProfilePermissions(ctx context.Context, profileID string) ([]authz.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profilePerms[profileID], nil
}

func (s *stubStore) TeamsForUser(ctx context.Context, userID string) ([]authz.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberships[userID], nil
}

func (s *stubStore) TeamProfiles(ctx context.Context, teamID string) ([]authz.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamProfiles[teamID], nil
}

func (s *stubStore) TeamMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, ms := range s.memberships {
		for _, m := range ms {
			if m.Team.ID == teamID {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (s *stubStore) UsersWithDirectProfile(ctx context.Context, profileID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, u := range s.users {
		if u.DirectProfileID == profileID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *stubStore) TeamsWithProfile(ctx context.Context, profileID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for teamID, ps := range s.teamProfiles {
		for _, p := range ps {
			if p.ID == profileID {
				ids = append(ids, teamID)
			}
		}
	}
	return ids, nil
}

func (s *stubStore) SetUserProfile(ctx context.Context, userID, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return authz.ErrNotFound
	}
	u.DirectProfileID = profileID
	s.users[userID] = u
	return nil
}

func (s *stubStore) AddTeamMember(ctx context.Context, userID, teamID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[userID] = append(s.memberships[userID], authz.Membership{
		Team: authz.Team{ID: teamID, Name: teamID},
		Role: role,
	})
	return nil
}

func (s *stubStore) RemoveTeamMember(ctx context.Context, userID, teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.memberships[userID][:0]
	removed := false
	for _, m := range s.memberships[userID] {
		if m.Team.ID == teamID {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	if !removed {
		return authz.ErrNotFound
	}
	s.memberships[userID] = kept
	return nil
}

func (s *stubStore) AttachTeamProfile(ctx context.Context, teamID, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return authz.ErrNotFound
	}
	s.teamProfiles[teamID] = append(s.teamProfiles[teamID], p)
	return nil
}

func (s *stubStore) DetachTeamProfile(ctx context.Context, teamID, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.teamProfiles[teamID][:0]
	removed := false
	for _, p := range s.teamProfiles[teamID] {
		if p.ID == profileID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return authz.ErrNotFound
	}
	s.teamProfiles[teamID] = kept
	return nil
}

func (s *stubStore) SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return authz.ErrNotFound
	}
	var perms []authz.Permission
	for _, id := range permissionIDs {
		perms = append(perms, authz.Permission{ID: id, Name: id})
	}
	s.profilePerms[profileID] = perms
	return nil
}

func seedStore(t *testing.T) *stubStore {
	t.Helper()
	hash, err := authz.HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &stubStore{
		users: map[string]authz.User{
			"u1": {
				ID:              "u1",
				Email:           "u1@example.com",
				Name:            "User One",
				PasswordHash:    hash,
				DirectProfileID: "p1",
			},
			"u9": {
				ID:              "u9",
				Email:           "admin@example.com",
				Name:            "Admin",
				PasswordHash:    hash,
				DirectProfileID: "p9",
			},
		},
		profiles: map[string]authz.Profile{
			"p1": {ID: "p1", Name: "Viewers"},
			"p2": {ID: "p2", Name: "Editors"},
			"p9": {ID: "p9", Name: "Administrators"},
		},
		profilePerms: map[string][]authz.Permission{
			"p1": {{ID: "perm-view", Name: "ViewBoards", Category: "boards"}},
			"p2": {{ID: "perm-edit", Name: "EditBoards", Category: "boards"}},
			"p9": {
				{ID: "perm-manage-users", Name: "ManageUsers", Category: "admin"},
				{ID: "perm-manage-teams", Name: "ManageTeams", Category: "admin"},
				{ID: "perm-manage-profiles", Name: "ManageProfiles", Category: "admin"},
			},
		},
		memberships: map[string][]authz.Membership{
			"u1": {{Team: authz.Team{ID: "t1", Name: "Platform"}, Role: "member"}},
		},
		teamProfiles: map[string][]authz.Profile{
			"t1": {{ID: "p2", Name: "Editors"}},
		},
	}
}

func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := cache.New(client, "teamboard")

	tokens, err := token.NewService("test-secret", token.NewBlacklist(c))
	if err != nil {
		t.Fatalf("token.NewService: %v", err)
	}

	store := seedStore(t)
	resolver, err := authz.NewResolver(store, c)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	events := authz.NewEvents()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go authz.NewInvalidator(resolver).Run(ctx, events)

	admin, err := authz.NewAdmin(store, events)
	if err != nil {
		t.Fatalf("NewAdmin: %v", err)
	}

	api := New(tokens, resolver, store, admin, ReadyProbe{Cache: c}, "test")
	return api, api.Handler()
}
