package services

import (
	"context"

	"cubby/internal/domain/models"
)

// FolderService handles folder lifecycle and the owner-only management
// operations: public visibility and the lock state machine.
type FolderService interface {
	// CreateFolder creates a new folder owned by the actor.
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Folder, error)

	// GetFolder retrieves a folder the actor may view. Unlike the live
	// view, this point read errors: InvalidArgument for empty ids,
	// NotFound for a missing folder, PermissionDenied when the actor may
	// not view it.
	GetFolder(ctx context.Context, folderID, actorID string) (*models.Folder, error)

	// DeleteFolder deletes a folder. Owner only.
	DeleteFolder(ctx context.Context, folderID, actorID string) error

	// SetPublic toggles public visibility. Owner only.
	SetPublic(ctx context.Context, folderID, actorID string, public bool) (*models.Folder, error)

	// Lock freezes contributor writes without affecting visibility.
	// Owner only; locking an already-locked folder is not an error.
	Lock(ctx context.Context, folderID, actorID string) (*models.Folder, error)

	// Unlock restores contributor writes. Owner only; idempotent-safe.
	Unlock(ctx context.Context, folderID, actorID string) (*models.Folder, error)
}

// CreateFolderRequest represents a folder creation request. A non-empty
// ContributorIDs creates the folder already shared and emits the
// created-while-shared event alongside one invite event per contributor.
type CreateFolderRequest struct {
	ActorID        string   `json:"-"`
	Name           string   `json:"name"`
	ParentID       *string  `json:"parent_id,omitempty"` // nil for top level
	IsPublic       bool     `json:"is_public,omitempty"`
	ContributorIDs []string `json:"contributor_ids,omitempty"`
}

// MembershipService manages the contributor set on a folder.
type MembershipService interface {
	// Invite unions contributorIDs into the folder's contributor set and
	// marks it shared. Owner only. Emits one membership-changed event per
	// newly-added id.
	Invite(ctx context.Context, req *InviteRequest) (*models.Folder, error)

	// Remove deletes one contributor from the set, immediately and
	// unconditionally, returning the updated folder. Owner only. Removing
	// an absent contributor is NotFound, not a silent success.
	Remove(ctx context.Context, folderID, actorID, contributorID string) (*models.Folder, error)
}

// InviteRequest represents a contributor invite batch
type InviteRequest struct {
	FolderID       string   `json:"-"`
	ActorID        string   `json:"-"`
	ContributorIDs []string `json:"contributor_ids"`
}

// ViewService produces, per requesting user, the merged "owned or
// contributing" folder listing at a given hierarchy scope.
type ViewService interface {
	// Stream opens a live view: it emits the current merged listing
	// immediately and re-emits whenever either underlying subscription
	// changes. A missing/empty user degrades to a single empty emission
	// rather than an error. Cancelling ctx tears down both upstream
	// subscriptions.
	Stream(ctx context.Context, userID string, parentID *string) (<-chan []models.Folder, error)

	// Snapshot is the point-in-time equivalent of Stream's first emission.
	Snapshot(ctx context.Context, userID string, parentID *string) ([]models.Folder, error)
}
