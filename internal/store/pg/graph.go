package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"teamboard.io/internal/authz"
)

// User fetches a user by id.
func (s *Store) User(ctx context.Context, userID string) (authz.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, COALESCE(direct_profile_id, ''), first_login, created_at, updated_at
		FROM users
		WHERE id = $1`, userID))
}

// UserByEmail fetches a user by email, used by login.
func (s *Store) UserByEmail(ctx context.Context, email string) (authz.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, COALESCE(direct_profile_id, ''), first_login, created_at, updated_at
		FROM users
		WHERE email = $1`, email))
}

func (s *Store) scanUser(row *sql.Row) (authz.User, error) {
	var u authz.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.DirectProfileID, &u.FirstLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.User{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// Profile fetches a profile by id.
func (s *Store) Profile(ctx context.Context, profileID string) (authz.Profile, error) {
	var p authz.Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM profiles
		WHERE id = $1`, profileID).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Profile{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	return p, nil
}

// ProfilePermissions lists the permissions granted by a profile.
func (s *Store) ProfilePermissions(ctx context.Context, profileID string) ([]authz.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.category
		FROM permissions p
		JOIN profile_permissions pp ON pp.permission_id = p.id
		WHERE pp.profile_id = $1
		ORDER BY p.name`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query profile permissions: %w", err)
	}
	defer rows.Close()

	var perms []authz.Permission
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// TeamsForUser lists the user's team memberships.
func (s *Store) TeamsForUser(ctx context.Context, userID string) ([]authz.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, ut.role
		FROM user_teams ut
		JOIN teams t ON t.id = ut.team_id
		WHERE ut.user_id = $1
		ORDER BY t.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query teams for user: %w", err)
	}
	defer rows.Close()

	var memberships []authz.Membership
	for rows.Next() {
		var m authz.Membership
		if err := rows.Scan(&m.Team.ID, &m.Team.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// TeamProfiles lists the profiles attached to a team.
func (s *Store) TeamProfiles(ctx context.Context, teamID string) ([]authz.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name
		FROM team_profiles tp
		JOIN profiles p ON p.id = tp.profile_id
		WHERE tp.team_id = $1
		ORDER BY p.name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("query team profiles: %w", err)
	}
	defer rows.Close()

	var profiles []authz.Profile
	for rows.Next() {
		var p authz.Profile
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// TeamMemberIDs lists the ids of every member of a team.
func (s *Store) TeamMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT user_id
		FROM user_teams
		WHERE team_id = $1`, teamID)
}

// UsersWithDirectProfile lists the ids of users holding the profile directly.
func (s *Store) UsersWithDirectProfile(ctx context.Context, profileID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT id
		FROM users
		WHERE direct_profile_id = $1`, profileID)
}

// TeamsWithProfile lists the ids of teams the profile is attached to.
func (s *Store) TeamsWithProfile(ctx context.Context, profileID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT team_id
		FROM team_profiles
		WHERE profile_id = $1`, profileID)
}

func (s *Store) queryIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
