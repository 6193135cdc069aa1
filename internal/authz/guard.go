package authz

import "teamboard.io/internal/obs"

// PermissionSet is a resolved set of permission names. Guard checks are pure
// functions over this set; resolution happened once per request in the
// middleware and is never repeated here.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Names returns the set contents as a slice, in map order.
func (s PermissionSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	return out
}

// Has reports whether the permission is granted.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether at least one of the permissions is granted.
func (s PermissionSet) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// HasAll reports whether every permission is granted.
func (s PermissionSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Require fails with a DeniedError naming the missing permission. The name is
// recorded for audit and never silently downgraded.
func (s PermissionSet) Require(name string) error {
	if s.Has(name) {
		return nil
	}
	obs.PermissionDenied()
	return &DeniedError{Permission: name}
}

// RequireAny succeeds when any of the permissions is granted; the error names
// the first requested permission.
func (s PermissionSet) RequireAny(names ...string) error {
	if s.HasAny(names...) {
		return nil
	}
	obs.PermissionDenied()
	missing := ""
	if len(names) > 0 {
		missing = names[0]
	}
	return &DeniedError{Permission: missing}
}
