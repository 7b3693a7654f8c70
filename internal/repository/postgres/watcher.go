package postgres

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"cubby/internal/domain/models"
	"cubby/internal/domain/repositories"
)

// requeryRetryDelay spaces out retries after a failed watch requery so a
// struggling database is not hammered by every open watch at once.
const requeryRetryDelay = time.Second

// PostgresFolderWatcher implements FolderWatcher on top of the point
// repository and the LISTEN/NOTIFY change listener: each watch runs its
// query once up front, then re-runs and re-emits whenever a relevant change
// event (or a resync) arrives. Emissions are conflated - a slow consumer
// always sees the latest result set, never a stale intermediate one.
type PostgresFolderWatcher struct {
	repo     repositories.FolderRepository
	listener *ChangeListener
	logger   *slog.Logger
}

// NewFolderWatcher creates a live folder watcher
func NewFolderWatcher(repo repositories.FolderRepository, listener *ChangeListener, logger *slog.Logger) repositories.FolderWatcher {
	return &PostgresFolderWatcher{
		repo:     repo,
		listener: listener,
		logger:   logger,
	}
}

// WatchOwned opens a live subscription over "folders owned by ownerID at
// this scope". Owner and parent are immutable, so an event is relevant iff
// it matches both, or concerns a folder currently in the result set.
func (w *PostgresFolderWatcher) WatchOwned(ctx context.Context, ownerID string, parentID *string) (<-chan []models.Folder, error) {
	relevant := func(ev *ChangeEvent) bool {
		return ev.OwnerID == ownerID && sameScope(ev.ParentID, parentID)
	}
	query := func(ctx context.Context) ([]models.Folder, error) {
		return w.repo.ListOwned(ctx, ownerID, parentID)
	}
	return w.watch(ctx, relevant, query)
}

// WatchContributing opens a live subscription over "shared folders listing
// userID as contributor at this scope". Membership events carry the
// post-change contributor set, so removals are caught by the
// currently-in-result-set check rather than the payload.
func (w *PostgresFolderWatcher) WatchContributing(ctx context.Context, userID string, parentID *string) (<-chan []models.Folder, error) {
	relevant := func(ev *ChangeEvent) bool {
		return slices.Contains(ev.ContributorIDs, userID) && sameScope(ev.ParentID, parentID)
	}
	query := func(ctx context.Context) ([]models.Folder, error) {
		return w.repo.ListContributing(ctx, userID, parentID)
	}
	return w.watch(ctx, relevant, query)
}

func (w *PostgresFolderWatcher) watch(
	ctx context.Context,
	relevant func(*ChangeEvent) bool,
	query func(context.Context) ([]models.Folder, error),
) (<-chan []models.Folder, error) {
	events, resync, unsubscribe := w.listener.Subscribe()

	// Initial snapshot runs before returning so the subscription either
	// starts with data or fails loudly to the caller.
	initial, err := query(ctx)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	out := make(chan []models.Folder, 1)

	go func() {
		defer close(out)
		defer unsubscribe()

		emit(out, initial)
		known := idSet(initial)

		var retry <-chan time.Time

		requery := func() {
			folders, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("watch requery failed, will retry", "error", err)
				retry = time.After(requeryRetryDelay)
				return
			}
			retry = nil
			known = idSet(folders)
			emit(out, folders)
		}

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-events:
				if !ok {
					return
				}
				if !relevant(&ev) && !known[ev.FolderID] {
					continue
				}
				requery()

			case <-resync:
				requery()

			case <-retry:
				requery()
			}
		}
	}()

	return out, nil
}

// emit sends the latest result set, displacing an unconsumed older one.
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

func idSet(folders []models.Folder) map[string]bool {
	ids := make(map[string]bool, len(folders))
	for _, f := range folders {
		ids[f.ID] = true
	}
	return ids
}

// sameScope compares two parent scopes, where nil means top level.
func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
