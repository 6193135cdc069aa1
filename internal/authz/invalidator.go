package authz

import (
	"context"

	"teamboard.io/internal/obs"
)

// Invalidator is the single event subscriber that turns graph-mutation events
// into cache invalidations.
type Invalidator struct {
	resolver *Resolver
}

// NewInvalidator constructs an Invalidator over the resolver.
func NewInvalidator(resolver *Resolver) *Invalidator {
	return &Invalidator{resolver: resolver}
}

// Run consumes events until the context ends. Invalidation failures are
// logged, not fatal: the TTL still bounds staleness.
func (i *Invalidator) Run(ctx context.Context, events *Events) {
	for evt := range events.Subscribe(ctx) {
		if err := i.Apply(ctx, evt); err != nil {
			obs.LogEntry(map[string]any{
				"level": "error", "msg": "authz_invalidation_failed",
				"kind": string(evt.Kind), "error": err.Error(),
			})
		}
	}
}

// Apply performs the invalidation for one event.
func (i *Invalidator) Apply(ctx context.Context, evt Event) error {
	switch evt.Kind {
	case EventUserProfileChanged:
		return i.resolver.InvalidateUser(ctx, evt.UserID)
	case EventTeamProfilesChanged:
		return i.resolver.InvalidateTeam(ctx, evt.TeamID)
	case EventTeamMembersChanged:
		// The team eviction only reaches current members; a removed user
		// must be evicted explicitly.
		if evt.UserID != "" {
			if err := i.resolver.InvalidateUser(ctx, evt.UserID); err != nil {
				return err
			}
		}
		return i.resolver.InvalidateTeam(ctx, evt.TeamID)
	case EventProfilePermissionsChanged:
		return i.resolver.InvalidateProfile(ctx, evt.ProfileID)
	default:
		return nil
	}
}
