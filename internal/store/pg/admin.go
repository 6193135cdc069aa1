package pg

import (
	"context"
	"fmt"

	"teamboard.io/internal/authz"
)

// SetUserProfile assigns the user's direct profile; an empty profileID clears
// it.
func (s *Store) SetUserProfile(ctx context.Context, userID, profileID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET direct_profile_id = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1`, userID, profileID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("profile %s: %w", profileID, authz.ErrNotFound)
		}
		return fmt.Errorf("set user profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user profile: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s: %w", userID, authz.ErrNotFound)
	}
	return nil
}

// AddTeamMember adds the user to the team; re-adding updates the role.
func (s *Store) AddTeamMember(ctx context.Context, userID, teamID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_teams (user_id, team_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, team_id) DO UPDATE SET role = EXCLUDED.role`, userID, teamID, role)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("user or team: %w", authz.ErrNotFound)
		}
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

// RemoveTeamMember removes the user from the team.
func (s *Store) RemoveTeamMember(ctx context.Context, userID, teamID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_teams
		WHERE user_id = $1 AND team_id = $2`, userID, teamID)
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("membership %s/%s: %w", userID, teamID, authz.ErrNotFound)
	}
	return nil
}

// AttachTeamProfile attaches a profile to the team; attaching twice is a
// no-op.
func (s *Store) AttachTeamProfile(ctx context.Context, teamID, profileID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_profiles (team_id, profile_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, profile_id) DO NOTHING`, teamID, profileID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("team or profile: %w", authz.ErrNotFound)
		}
		return fmt.Errorf("attach team profile: %w", err)
	}
	return nil
}

// DetachTeamProfile removes a profile from the team.
func (s *Store) DetachTeamProfile(ctx context.Context, teamID, profileID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM team_profiles
		WHERE team_id = $1 AND profile_id = $2`, teamID, profileID)
	if err != nil {
		return fmt.Errorf("detach team profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("detach team profile: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("attachment %s/%s: %w", teamID, profileID, authz.ErrNotFound)
	}
	return nil
}

// SetProfilePermissions replaces the profile's permission list atomically.
func (s *Store) SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM profile_permissions
		WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("clear profile permissions: %w", err)
	}
	for _, permID := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profile_permissions (profile_id, permission_id)
			VALUES ($1, $2)`, profileID, permID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("permission %s: %w", permID, authz.ErrNotFound)
			}
			return fmt.Errorf("grant permission: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
