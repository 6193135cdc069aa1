package authz

import "time"

// User is an account holder. DirectProfileID is empty when no profile is
// assigned directly; permissions may still arrive through teams.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	PasswordHash    string    `json:"-"`
	DirectProfileID string    `json:"directProfileId,omitempty"`
	FirstLogin      bool      `json:"firstLogin"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Team is a static grouping of users.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Membership is a user's edge into a team. Role is informational only and
// never enters the permission math.
type Membership struct {
	Team Team   `json:"team"`
	Role string `json:"role"`
}

// Profile is a named, reusable bundle of permissions.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Permission is an atomic grantable capability, globally unique by id.
type Permission struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// SourceOrigin says how a profile contributed to a resolution.
type SourceOrigin string

const (
	SourceDirect SourceOrigin = "direct"
	SourceTeam   SourceOrigin = "team"
)

// Source traces one contributing profile for auditability.
type Source struct {
	Origin      SourceOrigin `json:"origin"`
	ProfileID   string       `json:"profileId"`
	ProfileName string       `json:"profileName"`
	TeamID      string       `json:"teamId,omitempty"`
	TeamName    string       `json:"teamName,omitempty"`
}

// Resolution is a user's effective permission set: the deduplicated union of
// the direct profile's permissions and everything inherited through teams,
// with the source trace retained.
type Resolution struct {
	UserID      string       `json:"userId"`
	ProfileID   string       `json:"profileId,omitempty"`
	Direct      []Permission `json:"direct"`
	Team        []Permission `json:"team"`
	Combined    []Permission `json:"combined"`
	Sources     []Source     `json:"sources"`
	Memberships []Membership `json:"memberships"`
}

// PermissionSet returns the combined permissions keyed by name for guard
// checks.
func (r Resolution) PermissionSet() PermissionSet {
	set := make(PermissionSet, len(r.Combined))
	for _, p := range r.Combined {
		set[p.Name] = struct{}{}
	}
	return set
}

// TeamNode is one team in a hierarchy snapshot.
type TeamNode struct {
	Team     Team      `json:"team"`
	Role     string    `json:"role"`
	Profiles []Profile `json:"profiles"`
}

// Hierarchy is the full graph snapshot for diagnostics and admin UI.
type Hierarchy struct {
	User           User         `json:"user"`
	DirectProfile  *Profile     `json:"directProfile,omitempty"`
	Teams          []TeamNode   `json:"teams"`
	Combined       []Permission `json:"combined"`
	EffectiveRoles []string     `json:"effectiveRoles"`
}
