// Package retry wraps the folder repository's point operations with a
// bounded exponential backoff. Only transient store failures are retried;
// the domain error taxonomy (NotFound, InvalidArgument, PermissionDenied)
// passes straight through, as does context cancellation. Live watches are
// not wrapped here - they resubscribe internally.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"cubby/internal/domain"
	"cubby/internal/domain/models"
	"cubby/internal/domain/repositories"
)

// Policy bounds the retry behaviour for a single point operation.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
}

// DefaultPolicy retries twice more after the initial attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
	}
}

type folderRepository struct {
	inner  repositories.FolderRepository
	policy Policy
	logger *slog.Logger
}

// NewFolderRepository wraps inner with the given retry policy.
func NewFolderRepository(inner repositories.FolderRepository, policy Policy, logger *slog.Logger) repositories.FolderRepository {
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy()
	}
	return &folderRepository{inner: inner, policy: policy, logger: logger}
}

// permanent reports whether err must not be retried.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrPermissionDenied) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *folderRepository) do(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.policy.InitialInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("transient store failure",
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		return err
	}

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, r.policy.MaxAttempts-1), ctx))
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	return r.do(ctx, "create", func() error { return r.inner.Create(ctx, folder) })
}

func (r *folderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	var folder *models.Folder
	err := r.do(ctx, "get", func() error {
		var err error
		folder, err = r.inner.GetByID(ctx, id)
		return err
	})
	return folder, err
}

func (r *folderRepository) Delete(ctx context.Context, id string) error {
	return r.do(ctx, "delete", func() error { return r.inner.Delete(ctx, id) })
}

func (r *folderRepository) SetPublic(ctx context.Context, id string, public bool) error {
	return r.do(ctx, "set_public", func() error { return r.inner.SetPublic(ctx, id, public) })
}

func (r *folderRepository) SetLock(ctx context.Context, id string, locked bool, lockedAt *time.Time) (bool, error) {
	var applied bool
	err := r.do(ctx, "set_lock", func() error {
		var err error
		applied, err = r.inner.SetLock(ctx, id, locked, lockedAt)
		return err
	})
	return applied, err
}

func (r *folderRepository) AddContributors(ctx context.Context, id string, contributorIDs []string) error {
	return r.do(ctx, "add_contributors", func() error {
		return r.inner.AddContributors(ctx, id, contributorIDs)
	})
}

func (r *folderRepository) RemoveContributor(ctx context.Context, id, contributorID string) error {
	return r.do(ctx, "remove_contributor", func() error {
		return r.inner.RemoveContributor(ctx, id, contributorID)
	})
}

func (r *folderRepository) ListOwned(ctx context.Context, ownerID string, parentID *string) ([]models.Folder, error) {
	var folders []models.Folder
	err := r.do(ctx, "list_owned", func() error {
		var err error
		folders, err = r.inner.ListOwned(ctx, ownerID, parentID)
		return err
	})
	return folders, err
}

func (r *folderRepository) ListContributing(ctx context.Context, userID string, parentID *string) ([]models.Folder, error) {
	var folders []models.Folder
	err := r.do(ctx, "list_contributing", func() error {
		var err error
		folders, err = r.inner.ListContributing(ctx, userID, parentID)
		return err
	})
	return folders, err
}
