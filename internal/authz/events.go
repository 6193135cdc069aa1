package authz

import (
	"context"
	"sync"
	"time"
)

// EventKind identifies a class of permission-graph mutation.
type EventKind string

const (
	EventUserProfileChanged        EventKind = "user.profile.changed"
	EventTeamProfilesChanged       EventKind = "team.profiles.changed"
	EventTeamMembersChanged        EventKind = "team.members.changed"
	EventProfilePermissionsChanged EventKind = "profile.permissions.changed"
)

// Event is published by every graph-mutating write. A single subscriber in
// the engine performs the matching cache invalidation, so individual CRUD
// services carry no invalidation obligation of their own.
type Event struct {
	Kind      EventKind `json:"kind"`
	UserID    string    `json:"userId,omitempty"`
	TeamID    string    `json:"teamId,omitempty"`
	ProfileID string    `json:"profileId,omitempty"`
	At        time.Time `json:"at"`
}

// Events fans out graph-mutation events to all active subscribers.
type Events struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewEvents initialises an empty hub.
func NewEvents() *Events {
	return &Events{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (e *Events) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 32)

	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = ch
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.subs, id)
		close(ch)
		e.mu.Unlock()
	}()

	return ch
}

// Publish fans the event out to all subscribers without blocking the writer.
func (e *Events) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- evt:
		default:
			// Drop when a subscriber is slow to avoid blocking writers.
		}
	}
}
