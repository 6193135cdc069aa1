package authz

import (
	"context"
	"fmt"
	"strings"
)

// Admin owns the permission-graph mutations. Every successful write publishes
// the matching invalidation event; callers never invalidate by hand.
type Admin struct {
	store  AdminStore
	events *Events
}

// NewAdmin constructs an Admin over the mutable store and event hub.
func NewAdmin(store AdminStore, events *Events) (*Admin, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: admin store is required", ErrInvalidInput)
	}
	if events == nil {
		return nil, fmt.Errorf("%w: event hub is required", ErrInvalidInput)
	}
	return &Admin{store: store, events: events}, nil
}

// SetUserProfile assigns (or, with an empty profileID, clears) the user's
// direct profile.
func (a *Admin) SetUserProfile(ctx context.Context, userID, profileID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := a.store.SetUserProfile(ctx, userID, strings.TrimSpace(profileID)); err != nil {
		return err
	}
	a.events.Publish(Event{Kind: EventUserProfileChanged, UserID: userID, ProfileID: profileID})
	return nil
}

// AddTeamMember adds the user to the team with an informational role.
func (a *Admin) AddTeamMember(ctx context.Context, userID, teamID, role string) error {
	userID = strings.TrimSpace(userID)
	teamID = strings.TrimSpace(teamID)
	if userID == "" || teamID == "" {
		return fmt.Errorf("%w: user id and team id are required", ErrInvalidInput)
	}
	if err := a.store.AddTeamMember(ctx, userID, teamID, strings.TrimSpace(role)); err != nil {
		return err
	}
	a.events.Publish(Event{Kind: EventTeamMembersChanged, UserID: userID, TeamID: teamID})
	return nil
}

// RemoveTeamMember removes the user from the team.
func (a *Admin) RemoveTeamMember(ctx context.Context, userID, teamID string) error {
	userID = strings.TrimSpace(userID)
	teamID = strings.TrimSpace(teamID)
	if userID == "" || teamID == "" {
		return fmt.Errorf("%w: user id and team id are required", ErrInvalidInput)
	}
	if err := a.store.RemoveTeamMember(ctx, userID, teamID); err != nil {
		return err
	}
	a.events.Publish(Event{Kind: EventTeamMembersChanged, UserID: userID, TeamID: teamID})
	return nil
}

// AttachTeamProfile attaches a profile to the team, granting its permissions
// to every member.
func (a *Admin) AttachTeamProfile(ctx context.Context, teamID, profileID string) error {
	teamID = strings.TrimSpace(teamID)
	profileID = strings.TrimSpace(profileID)
	if teamID == "" || profileID == "" {
		return fmt.Errorf("%w: team id and profile id are required", ErrInvalidInput)
	}
	if err := a.store.AttachTeamProfile(ctx, teamID, profileID); err != nil {
		return err
	}
	a.events.Publish(Event{Kind: EventTeamProfilesChanged, TeamID: teamID, ProfileID: profileID})
	return nil
}

// DetachTeamProfile removes a profile from the team.
func (a *Admin) DetachTeamProfile(ctx context.Context, teamID, profileID string) error {
	teamID = strings.TrimSpace(teamID)
	profileID = strings.TrimSpace(profileID)
	if teamID == "" || profileID == "" {
		return fmt.Errorf("%w: team id and profile id are required", ErrInvalidInput)
	}
	if err := a.store.DetachTeamProfile(ctx, teamID, profileID); err != nil {
		return err
	}
	a.events.Publish(Event{Kind: EventTeamProfilesChanged, TeamID: teamID, ProfileID: profileID})
	return nil
}

// SetProfilePermissions replaces the profile's permission list.
func (a *Admin) SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	if err := a.store.SetProfilePermissions(ctx, profileID, dedupeStrings(permissionIDs)); err != nil {
		return err
	}
	a.events.Publish(Event{Kind: EventProfilePermissionsChanged, ProfileID: profileID})
	return nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
