package models

import (
	"slices"
	"time"
)

// Folder is a shareable, hierarchical folder resource. Contributor
// membership is embedded on the folder itself (one row per folder, no join
// table), so membership changes are single-row writes.
type Folder struct {
	ID       string  `json:"id" db:"id"`
	OwnerID  string  `json:"owner_id" db:"owner_id"`
	ParentID *string `json:"parent_id,omitempty" db:"parent_id"` // NULL = top level
	Name     string  `json:"name" db:"name"`

	// IsShared gates contributor access. A folder with IsShared=false
	// behaves as purely private regardless of any stray contributor ids.
	IsShared bool `json:"is_shared" db:"is_shared"`

	// IsPublic grants view to every actor, never contribute.
	IsPublic bool `json:"is_public" db:"is_public"`

	// IsLocked suspends contributor writes without affecting visibility.
	// LockedAt is non-nil iff IsLocked is true.
	IsLocked bool       `json:"is_locked" db:"is_locked"`
	LockedAt *time.Time `json:"locked_at,omitempty" db:"locked_at"`

	// ContributorIDs has set semantics: unique, insertion order irrelevant.
	// The owner is never a member of this set.
	ContributorIDs []string `json:"contributor_ids" db:"contributor_ids"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasContributor reports whether userID is in the contributor set.
// It does not consider IsShared; capability checks belong to the access
// evaluator.
func (f *Folder) HasContributor(userID string) bool {
	return slices.Contains(f.ContributorIDs, userID)
}
