// Package notify is the visibility-notification boundary: membership
// changes and created-while-shared folders are published as events for an
// external notification collaborator. The live accessible view does not
// depend on these events - it rides the store's own subscriptions - so a
// broken notifier never affects view correctness.
package notify

import (
	"context"
	"time"
)

// Event types
const (
	ContributorInvited  = "FOLDER_CONTRIBUTOR_INVITED"
	ContributorRemoved  = "FOLDER_CONTRIBUTOR_REMOVED"
	SharedFolderCreated = "FOLDER_CREATED_SHARED"
)

// MembershipEvent describes one membership change on one folder. Invites
// of a batch fan out to one event per newly-added contributor.
type MembershipEvent struct {
	EventType     string    `json:"event_type"`
	FolderID      string    `json:"folder_id"`
	OwnerID       string    `json:"owner_id"`
	ActorID       string    `json:"actor_id"`
	ContributorID string    `json:"contributor_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewMembershipEvent creates a membership event stamped with the current time.
func NewMembershipEvent(eventType, folderID, ownerID, actorID, contributorID string) *MembershipEvent {
	return &MembershipEvent{
		EventType:     eventType,
		FolderID:      folderID,
		OwnerID:       ownerID,
		ActorID:       actorID,
		ContributorID: contributorID,
		Timestamp:     time.Now(),
	}
}

// Notifier publishes membership events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	PublishMembershipEvent(ctx context.Context, event *MembershipEvent) error
	Close() error
}

// NoopNotifier discards all events. Used in tests and when the engine is
// embedded as a library without a notification collaborator.
type NoopNotifier struct{}

func (NoopNotifier) PublishMembershipEvent(ctx context.Context, event *MembershipEvent) error {
	return nil
}

func (NoopNotifier) Close() error { return nil }
