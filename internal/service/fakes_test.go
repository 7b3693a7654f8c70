package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"cubby/internal/domain"
	"cubby/internal/domain/models"
	"cubby/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeFolderRepo is an in-memory FolderRepository with the same edge
// semantics as the postgres implementation.
type fakeFolderRepo struct {
	mu      sync.Mutex
	folders map[string]*models.Folder

	// err, when set, is returned by every method.
	err error
}

func newFakeFolderRepo(folders ...*models.Folder) *fakeFolderRepo {
	r := &fakeFolderRepo{folders: make(map[string]*models.Folder)}
	for _, f := range folders {
		r.folders[f.ID] = f
	}
	return r
}

func (r *fakeFolderRepo) Create(ctx context.Context, folder *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if folder.ParentID != nil {
		if _, ok := r.folders[*folder.ParentID]; !ok {
			return fmt.Errorf("parent folder %s: %w", *folder.ParentID, domain.ErrNotFound)
		}
	}
	copied := *folder
	r.folders[folder.ID] = &copied
	return nil
}

func (r *fakeFolderRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	folder, ok := r.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	copied := *folder
	copied.ContributorIDs = slices.Clone(folder.ContributorIDs)
	return &copied, nil
}

func (r *fakeFolderRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.folders[id]; !ok {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	delete(r.folders, id)
	return nil
}

func (r *fakeFolderRepo) SetPublic(ctx context.Context, id string, public bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	folder, ok := r.folders[id]
	if !ok {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	folder.IsPublic = public
	return nil
}

func (r *fakeFolderRepo) SetLock(ctx context.Context, id string, locked bool, lockedAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	folder, ok := r.folders[id]
	if !ok {
		return false, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if folder.IsLocked == locked {
		return false, nil
	}
	folder.IsLocked = locked
	folder.LockedAt = lockedAt
	return true, nil
}

func (r *fakeFolderRepo) AddContributors(ctx context.Context, id string, contributorIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	folder, ok := r.folders[id]
	if !ok {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	for _, cid := range contributorIDs {
		if !slices.Contains(folder.ContributorIDs, cid) {
			folder.ContributorIDs = append(folder.ContributorIDs, cid)
		}
	}
	folder.IsShared = true
	return nil
}

func (r *fakeFolderRepo) RemoveContributor(ctx context.Context, id, contributorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	folder, ok := r.folders[id]
	if !ok {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if !slices.Contains(folder.ContributorIDs, contributorID) {
		return fmt.Errorf("contributor %s in folder %s: %w", contributorID, id, domain.ErrNotFound)
	}
	folder.ContributorIDs = slices.DeleteFunc(folder.ContributorIDs, func(cid string) bool {
		return cid == contributorID
	})
	return nil
}

func (r *fakeFolderRepo) ListOwned(ctx context.Context, ownerID string, parentID *string) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Folder
	for _, f := range r.folders {
		if f.OwnerID == ownerID && sameParent(f.ParentID, parentID) {
			out = append(out, *f)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *fakeFolderRepo) ListContributing(ctx context.Context, userID string, parentID *string) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Folder
	for _, f := range r.folders {
		if f.IsShared && slices.Contains(f.ContributorIDs, userID) && sameParent(f.ParentID, parentID) {
			out = append(out, *f)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortNewestFirst(folders []models.Folder) {
	sort.Slice(folders, func(i, j int) bool {
		if !folders[i].CreatedAt.Equal(folders[j].CreatedAt) {
			return folders[i].CreatedAt.After(folders[j].CreatedAt)
		}
		return folders[i].ID > folders[j].ID
	})
}

// recordingNotifier captures published membership events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []*notify.MembershipEvent
}

func (n *recordingNotifier) PublishMembershipEvent(_ context.Context, event *notify.MembershipEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) published() []*notify.MembershipEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.events)
}

func (n *recordingNotifier) ofType(eventType string) []*notify.MembershipEvent {
	var out []*notify.MembershipEvent
	for _, e := range n.published() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func strptr(s string) *string { return &s }
