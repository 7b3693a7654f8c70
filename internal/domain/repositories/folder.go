package repositories

import (
	"context"
	"time"

	"cubby/internal/domain/models"
)

// FolderRepository defines point data access operations for folders.
// It owns no policy: permission checks happen in the service layer before
// any of these are called.
type FolderRepository interface {
	// Create inserts a new folder.
	Create(ctx context.Context, folder *models.Folder) error

	// GetByID retrieves a folder by id.
	GetByID(ctx context.Context, id string) (*models.Folder, error)

	// Delete removes a folder.
	Delete(ctx context.Context, id string) error

	// SetPublic toggles the public visibility flag.
	SetPublic(ctx context.Context, id string, public bool) error

	// SetLock transitions the lock state. The write is conditional on the
	// folder currently being in the opposite state, so a concurrent call
	// can never resurrect a stale locked_at. Returns the resulting
	// transition: applied=false means the folder was already in the target
	// state, which is not an error.
	SetLock(ctx context.Context, id string, locked bool, lockedAt *time.Time) (applied bool, err error)

	// AddContributors unions ids into the contributor set and marks the
	// folder shared. The union happens server-side so concurrent invites
	// commute instead of overwriting each other.
	AddContributors(ctx context.Context, id string, contributorIDs []string) error

	// RemoveContributor removes one id from the contributor set.
	// Removing an absent contributor returns ErrNotFound, not a silent
	// success.
	RemoveContributor(ctx context.Context, id, contributorID string) error

	// ListOwned lists folders owned by ownerID directly under parentID
	// (nil = top level), newest first.
	ListOwned(ctx context.Context, ownerID string, parentID *string) ([]models.Folder, error)

	// ListContributing lists shared folders that have userID in their
	// contributor set, directly under parentID, newest first.
	ListContributing(ctx context.Context, userID string, parentID *string) ([]models.Folder, error)
}

// FolderWatcher opens live subscriptions over the same two queries the
// accessible view merges. Each returned channel emits the full current
// result set immediately and re-emits it whenever a relevant folder
// changes; it closes only when ctx is cancelled (or, under the "fail"
// policy, on an unrecoverable subscription error).
type FolderWatcher interface {
	WatchOwned(ctx context.Context, ownerID string, parentID *string) (<-chan []models.Folder, error)
	WatchContributing(ctx context.Context, userID string, parentID *string) (<-chan []models.Folder, error)
}
