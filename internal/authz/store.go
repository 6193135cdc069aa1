package authz

import "context"

// Store is the read side of the permission graph the resolver walks. Missing
// rows surface as ErrNotFound; the resolver treats dangling references as
// zero permissions for that edge.
type Store interface {
	User(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	Profile(ctx context.Context, id string) (Profile, error)
	ProfilePermissions(ctx context.Context, profileID string) ([]Permission, error)
	TeamsForUser(ctx context.Context, userID string) ([]Membership, error)
	TeamProfiles(ctx context.Context, teamID string) ([]Profile, error)
	TeamMemberIDs(ctx context.Context, teamID string) ([]string, error)
	UsersWithDirectProfile(ctx context.Context, profileID string) ([]string, error)
	TeamsWithProfile(ctx context.Context, profileID string) ([]string, error)
}

// AdminStore is the write side: the graph mutations the engine itself owns.
// Every mutation changes some user's effective permissions, so callers go
// through Admin, which publishes the matching invalidation event.
type AdminStore interface {
	SetUserProfile(ctx context.Context, userID, profileID string) error
	AddTeamMember(ctx context.Context, userID, teamID, role string) error
	RemoveTeamMember(ctx context.Context, userID, teamID string) error
	AttachTeamProfile(ctx context.Context, teamID, profileID string) error
	DetachTeamProfile(ctx context.Context, teamID, profileID string) error
	SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error
}
