package service

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"cubby/internal/domain/models"
	"cubby/internal/domain/repositories"
	"cubby/internal/domain/services"
)

// FailurePolicy controls what a live view does when one of its two
// underlying subscriptions dies and cannot be recovered.
type FailurePolicy string

const (
	// FailurePolicyDegrade keeps the view open, treating the dead source
	// as an empty result set.
	FailurePolicyDegrade FailurePolicy = "degrade"
	// FailurePolicyFail closes the view stream.
	FailurePolicyFail FailurePolicy = "fail"
)

type viewService struct {
	repo    repositories.FolderRepository
	watcher repositories.FolderWatcher
	policy  FailurePolicy
	logger  *slog.Logger
}

// NewViewService creates the accessible-folder view service.
func NewViewService(
	repo repositories.FolderRepository,
	watcher repositories.FolderWatcher,
	policy FailurePolicy,
	logger *slog.Logger,
) services.ViewService {
	if policy == "" {
		policy = FailurePolicyDegrade
	}
	return &viewService{
		repo:    repo,
		watcher: watcher,
		policy:  policy,
		logger:  logger,
	}
}

// Snapshot runs the owned and contributing queries concurrently and merges
// them. An empty user id yields an empty listing, not an error.
func (s *viewService) Snapshot(ctx context.Context, userID string, parentID *string) ([]models.Folder, error) {
	if userID == "" {
		return []models.Folder{}, nil
	}

	var owned, contributing []models.Folder
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = s.repo.ListOwned(gctx, userID, parentID)
		return err
	})
	g.Go(func() error {
		var err error
		contributing, err = s.repo.ListContributing(gctx, userID, parentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeView(owned, contributing), nil
}

// Stream opens both subscriptions and emits the merged listing whenever
// either side changes. Emissions are conflated: a consumer that falls
// behind skips intermediate states and always receives the latest.
func (s *viewService) Stream(ctx context.Context, userID string, parentID *string) (<-chan []models.Folder, error) {
	out := make(chan []models.Folder, 1)

	if userID == "" {
		// Degenerate input: one empty emission, held open until the
		// caller goes away.
		out <- []models.Folder{}
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}

	// Both upstream subscriptions share one cancel so tearing down the
	// view tears down both.
	watchCtx, cancel := context.WithCancel(ctx)

	ownedCh, err := s.watcher.WatchOwned(watchCtx, userID, parentID)
	if err != nil {
		cancel()
		return nil, err
	}
	contribCh, err := s.watcher.WatchContributing(watchCtx, userID, parentID)
	if err != nil {
		cancel()
		return nil, err
	}

	go s.merge(watchCtx, cancel, userID, ownedCh, contribCh, out)
	return out, nil
}

func (s *viewService) merge(
	ctx context.Context,
	cancel context.CancelFunc,
	userID string,
	ownedCh, contribCh <-chan []models.Folder,
	out chan []models.Folder,
) {
	defer cancel()
	defer close(out)

	var owned, contributing []models.Folder
	haveOwned, haveContrib := false, false

	for ownedCh != nil || contribCh != nil {
		select {
		case <-ctx.Done():
			return

		case folders, ok := <-ownedCh:
			if !ok {
				if !s.sourceLost(userID, "owned") {
					return
				}
				ownedCh = nil
				owned, haveOwned = nil, true
			} else {
				owned, haveOwned = folders, true
			}

		case folders, ok := <-contribCh:
			if !ok {
				if !s.sourceLost(userID, "contributing") {
					return
				}
				contribCh = nil
				contributing, haveContrib = nil, true
			} else {
				contributing, haveContrib = folders, true
			}
		}

		// Hold the first emission until both sides have reported, so the
		// view never shows half the listing.
		if haveOwned && haveContrib {
			emit(out, mergeView(owned, contributing))
		}
	}

	// Both sources degraded away; keep the last (empty) state visible
	// until the caller cancels.
	<-ctx.Done()
}

// sourceLost reports whether the view should keep going after losing a
// subscription.
func (s *viewService) sourceLost(userID, source string) bool {
	degrade := s.policy == FailurePolicyDegrade
	s.logger.Warn("view subscription closed",
		"user_id", userID,
		"source", source,
		"degrade", degrade,
	)
	return degrade
}

// emit delivers conflated: an unconsumed older state is displaced by the
// newer one instead of blocking the merge loop.
func emit(out chan []models.Folder, folders []models.Folder) {
	for {
		select {
		case out <- folders:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

// mergeView combines the two result sets into one listing. A folder both
// owned and contributed-to appears once, with the owned row winning.
// Ordering is newest first, ids breaking creation-time ties.
func mergeView(owned, contributing []models.Folder) []models.Folder {
	merged := make([]models.Folder, 0, len(owned)+len(contributing))
	seen := make(map[string]bool, len(owned))
	for _, f := range owned {
		if !seen[f.ID] {
			seen[f.ID] = true
			merged = append(merged, f)
		}
	}
	for _, f := range contributing {
		if !seen[f.ID] {
			seen[f.ID] = true
			merged = append(merged, f)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].ID > merged[j].ID
	})
	return merged
}
