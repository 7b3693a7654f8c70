package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"cubby/internal/access"
	"cubby/internal/cache"
	"cubby/internal/config"
	"cubby/internal/domain"
	"cubby/internal/domain/models"
	"cubby/internal/domain/repositories"
	"cubby/internal/domain/services"
	"cubby/internal/notify"
)

type membershipService struct {
	repo     repositories.FolderRepository
	cache    *cache.SnapshotCache
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewMembershipService creates a new membership service.
func NewMembershipService(
	repo repositories.FolderRepository,
	snapshots *cache.SnapshotCache,
	notifier notify.Notifier,
	logger *slog.Logger,
) services.MembershipService {
	return &membershipService{
		repo:     repo,
		cache:    snapshots,
		notifier: notifier,
		logger:   logger,
	}
}

// Invite adds contributors to a folder. The whole batch is validated
// before anything is written: a batch containing the owner, an empty id,
// or too many entries adds nobody. Already-present contributors are
// skipped silently and emit no event.
func (s *membershipService) Invite(ctx context.Context, req *services.InviteRequest) (*models.Folder, error) {
	if err := requireIDs(map[string]string{"folder id": req.FolderID, "actor id": req.ActorID}); err != nil {
		return nil, err
	}
	if len(req.ContributorIDs) == 0 {
		return nil, &domain.InvalidArgumentError{Message: "contributor ids are required"}
	}
	if len(req.ContributorIDs) > config.MaxInviteBatchSize {
		return nil, &domain.InvalidArgumentError{
			Message: fmt.Sprintf("cannot invite more than %d contributors at once", config.MaxInviteBatchSize),
		}
	}
	for _, id := range req.ContributorIDs {
		if id == "" {
			return nil, &domain.InvalidArgumentError{Message: "contributor id cannot be empty"}
		}
	}

	// Existence and permission are settled before validating the batch
	// against folder state, so a non-manager learns nothing about the
	// membership list.
	folder, err := s.repo.GetByID(ctx, req.FolderID)
	if err != nil {
		return nil, err
	}
	if !access.Evaluate(folder, req.ActorID).CanManage {
		return nil, &domain.PermissionDeniedError{
			Message: fmt.Sprintf("actor %s may not manage folder %s", req.ActorID, req.FolderID),
		}
	}

	if slices.Contains(req.ContributorIDs, folder.OwnerID) {
		return nil, &domain.InvalidArgumentError{Message: "owner cannot be invited as a contributor"}
	}

	batch := dedupe(req.ContributorIDs)
	var added []string
	for _, id := range batch {
		if !slices.Contains(folder.ContributorIDs, id) {
			added = append(added, id)
		}
	}

	if len(added) == 0 {
		// Inviting only existing contributors is a no-op, but still
		// marks the folder shared if it somehow was not.
		if folder.IsShared {
			return folder, nil
		}
	}

	if err := s.repo.AddContributors(ctx, req.FolderID, batch); err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.FolderID)

	updated := *folder
	updated.ContributorIDs = append(slices.Clone(folder.ContributorIDs), added...)
	updated.IsShared = true

	if !folder.IsShared {
		s.publish(ctx, notify.NewMembershipEvent(
			notify.SharedFolderCreated, updated.ID, updated.OwnerID, req.ActorID, ""))
	}
	for _, contributorID := range added {
		s.publish(ctx, notify.NewMembershipEvent(
			notify.ContributorInvited, updated.ID, updated.OwnerID, req.ActorID, contributorID))
	}

	s.logger.Info("contributors invited",
		"folder_id", req.FolderID,
		"actor_id", req.ActorID,
		"requested", len(batch),
		"added", len(added),
	)
	return &updated, nil
}

// Remove removes a single contributor. Removing an id that is not a
// contributor is an error, unlike inviting one that already is.
func (s *membershipService) Remove(ctx context.Context, folderID, actorID, contributorID string) (*models.Folder, error) {
	if err := requireIDs(map[string]string{
		"folder id":      folderID,
		"actor id":       actorID,
		"contributor id": contributorID,
	}); err != nil {
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

	if err := s.repo.RemoveContributor(ctx, folderID, contributorID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, folderID)

	updated := *folder
	updated.ContributorIDs = slices.DeleteFunc(slices.Clone(folder.ContributorIDs), func(id string) bool {
		return id == contributorID
	})

	s.publish(ctx, notify.NewMembershipEvent(
		notify.ContributorRemoved, updated.ID, updated.OwnerID, actorID, contributorID))

	s.logger.Info("contributor removed",
		"folder_id", folderID,
		"actor_id", actorID,
		"contributor_id", contributorID,
	)
	return &updated, nil
}

// invalidate drops the point-read snapshot after a membership write.
func (s *membershipService) invalidate(ctx context.Context, folderID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, folderID)
	}
}

func (s *membershipService) publish(ctx context.Context, event *notify.MembershipEvent) {
	if err := s.notifier.PublishMembershipEvent(ctx, event); err != nil {
		s.logger.Warn("publish membership event failed",
			"event_type", event.EventType,
			"folder_id", event.FolderID,
			"error", err,
		)
	}
}
