package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"cubby/internal/access"
	"cubby/internal/cache"
	"cubby/internal/config"
	"cubby/internal/domain"
	"cubby/internal/domain/models"
	"cubby/internal/domain/repositories"
	"cubby/internal/domain/services"
	"cubby/internal/notify"
)

var folderNamePattern = regexp.MustCompile(`^[^/]+$`)

type folderService struct {
	repo      repositories.FolderRepository
	txManager repositories.TransactionManager
	cache     *cache.SnapshotCache
	notifier  notify.Notifier
	logger    *slog.Logger
}

// NewFolderService creates a new folder service. txManager and cache may
// be nil: creation then skips transactional parent checks and snapshot
// caching respectively.
func NewFolderService(
	repo repositories.FolderRepository,
	txManager repositories.TransactionManager,
	snapshots *cache.SnapshotCache,
	notifier notify.Notifier,
	logger *slog.Logger,
) services.FolderService {
	return &folderService{
		repo:      repo,
		txManager: txManager,
		cache:     snapshots,
		notifier:  notifier,
		logger:    logger,
	}
}

// CreateFolder creates a new folder owned by the actor. Supplying initial
// contributors creates it shared in one write.
func (s *folderService) CreateFolder(ctx context.Context, req *services.CreateFolderRequest) (*models.Folder, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, &domain.InvalidArgumentError{Message: err.Error()}
	}

	// Normalize empty string to nil for top-level folders
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}

	contributors := dedupe(req.ContributorIDs)
	now := time.Now()
	folder := &models.Folder{
		ID:             uuid.NewString(),
		OwnerID:        req.ActorID,
		ParentID:       req.ParentID,
		Name:           req.Name,
		IsShared:       len(contributors) > 0,
		IsPublic:       req.IsPublic,
		ContributorIDs: contributors,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Parent check and insert share a transaction so the parent cannot
	// disappear between the two. A parent must exist at creation;
	// dangling parents are tolerated read-only elsewhere, never created.
	create := func(ctx context.Context) error {
		if req.ParentID != nil {
			if _, err := s.repo.GetByID(ctx, *req.ParentID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return &domain.InvalidArgumentError{
						Message: fmt.Sprintf("parent folder %s does not exist", *req.ParentID),
					}
				}
				return err
			}
		}
		return s.repo.Create(ctx, folder)
	}

	var err error
	if s.txManager != nil {
		err = s.txManager.ExecTx(ctx, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"owner_id", folder.OwnerID,
		"parent_id", folder.ParentID,
		"shared", folder.IsShared,
		"public", folder.IsPublic,
	)

	if folder.IsShared {
		s.publish(ctx, notify.NewMembershipEvent(
			notify.SharedFolderCreated, folder.ID, folder.OwnerID, req.ActorID, ""))
		for _, contributorID := range folder.ContributorIDs {
			s.publish(ctx, notify.NewMembershipEvent(
				notify.ContributorInvited, folder.ID, folder.OwnerID, req.ActorID, contributorID))
		}
	}

	return folder, nil
}

// GetFolder retrieves a folder the actor may view. An empty actorID is an
// anonymous reader: public folders resolve, everything else is denied. Only
// the folder id is mandatory.
func (s *folderService) GetFolder(ctx context.Context, folderID, actorID string) (*models.Folder, error) {
	if err := requireIDs(map[string]string{"folder id": folderID}); err != nil {
		return nil, err
	}

	folder, err := s.getSnapshot(ctx, folderID)
	if err != nil {
		return nil, err
	}

	if !access.Evaluate(folder, actorID).CanView {
		return nil, &domain.PermissionDeniedError{
			Message: fmt.Sprintf("actor %s may not view folder %s", actorID, folderID),
		}
	}

	return folder, nil
}

// DeleteFolder deletes a folder. Owner only.
func (s *folderService) DeleteFolder(ctx context.Context, folderID, actorID string) error {
	folder, err := s.requireManage(ctx, folderID, actorID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, folderID); err != nil {
		return err
	}
	s.invalidate(ctx, folderID)

	s.logger.Info("folder deleted", "id", folderID, "owner_id", folder.OwnerID)
	return nil
}

// SetPublic toggles public visibility. Owner only.
func (s *folderService) SetPublic(ctx context.Context, folderID, actorID string, public bool) (*models.Folder, error) {
	folder, err := s.requireManage(ctx, folderID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetPublic(ctx, folderID, public); err != nil {
		return nil, err
	}
	s.invalidate(ctx, folderID)

	folder.IsPublic = public
	s.logger.Info("folder visibility changed", "id", folderID, "public", public)
	return folder, nil
}

// Lock freezes contributor writes. Idempotent-safe: locking an
// already-locked folder succeeds and leaves its original locked_at intact.
func (s *folderService) Lock(ctx context.Context, folderID, actorID string) (*models.Folder, error) {
	return s.setLock(ctx, folderID, actorID, true)
}

// Unlock restores contributor writes. Idempotent-safe.
func (s *folderService) Unlock(ctx context.Context, folderID, actorID string) (*models.Folder, error) {
	return s.setLock(ctx, folderID, actorID, false)
}

func (s *folderService) setLock(ctx context.Context, folderID, actorID string, locked bool) (*models.Folder, error) {
	folder, err := s.requireManage(ctx, folderID, actorID)
	if err != nil {
		return nil, err
	}

	var lockedAt *time.Time
	if locked {
		now := time.Now()
		lockedAt = &now
	}

	applied, err := s.repo.SetLock(ctx, folderID, locked, lockedAt)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, folderID)

	if applied {
		folder.IsLocked = locked
		folder.LockedAt = lockedAt
		s.logger.Info("folder lock changed", "id", folderID, "locked", locked)
	}

	return folder, nil
}

// requireManage loads the folder fresh from the store and checks the actor
// holds the manage capability. Management checks never read the cache.
func (s *folderService) requireManage(ctx context.Context, folderID, actorID string) (*models.Folder, error) {
	if err := requireIDs(map[string]string{"folder id": folderID, "actor id": actorID}); err != nil {
		return nil, err
	}

	folder, err := s.repo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}

	if !access.Evaluate(folder, actorID).CanManage {
		return nil, &domain.PermissionDeniedError{
			Message: fmt.Sprintf("actor %s may not manage folder %s", actorID, folderID),
		}
	}

	return folder, nil
}

// getSnapshot reads through the snapshot cache when one is configured.
func (s *folderService) getSnapshot(ctx context.Context, folderID string) (*models.Folder, error) {
	if s.cache != nil {
		if folder := s.cache.Get(ctx, folderID); folder != nil {
			return folder, nil
		}
	}

	folder, err := s.repo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, folder)
	}
	return folder, nil
}

func (s *folderService) invalidate(ctx context.Context, folderID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, folderID)
	}
}

func (s *folderService) publish(ctx context.Context, event *notify.MembershipEvent) {
	if err := s.notifier.PublishMembershipEvent(ctx, event); err != nil {
		s.logger.Warn("publish membership event failed",
			"event_type", event.EventType,
			"folder_id", event.FolderID,
			"error", err,
		)
	}
}

func (s *folderService) validateCreateRequest(req *services.CreateFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ActorID, validation.Required),
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxFolderNameLength),
			validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
		),
		validation.Field(&req.ContributorIDs,
			validation.Each(validation.Required),
			validation.By(func(interface{}) error {
				for _, id := range req.ContributorIDs {
					if id == req.ActorID {
						return errors.New("owner cannot be a contributor")
					}
				}
				return nil
			}),
		),
	)
}

// requireIDs short-circuits empty identifiers to InvalidArgument before
// any store round trip.
func requireIDs(ids map[string]string) error {
	for name, id := range ids {
		if id == "" {
			return &domain.InvalidArgumentError{Message: name + " is required"}
		}
	}
	return nil
}

// dedupe copies ids preserving first occurrence order, dropping duplicates.
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
