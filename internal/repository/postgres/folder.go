package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cubby/internal/domain"
	"cubby/internal/domain/models"
	"cubby/internal/domain/repositories"
)

// PostgresFolderRepository implements the FolderRepository interface.
// Membership lives in a text[] column on the folder row, so every
// membership change is a single-row write. Each write also fires a
// pg_notify on the folder change channel through the same executor, which
// is what drives the live watchers.
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const folderColumns = `id, owner_id, parent_id, name, is_shared, is_public, is_locked, locked_at, contributor_ids, created_at, updated_at`

func scanFolder(row pgx.Row, f *models.Folder) error {
	return row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.ParentID,
		&f.Name,
		&f.IsShared,
		&f.IsPublic,
		&f.IsLocked,
		&f.LockedAt,
		&f.ContributorIDs,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
}

// Create inserts a new folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, parent_id, name, is_shared, is_public, is_locked, locked_at, contributor_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.ID,
		folder.OwnerID,
		folder.ParentID,
		folder.Name,
		folder.IsShared,
		folder.IsPublic,
		folder.IsLocked,
		folder.LockedAt,
		folder.ContributorIDs,
		folder.CreatedAt,
		folder.UpdatedAt,
	).Scan(&folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("parent folder %v: %w", folder.ParentID, domain.ErrNotFound)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	r.notify(ctx, &ChangeEvent{
		Op:             OpCreated,
		FolderID:       folder.ID,
		OwnerID:        folder.OwnerID,
		ParentID:       folder.ParentID,
		ContributorIDs: folder.ContributorIDs,
	})
	return nil
}

// GetByID retrieves a folder by id
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1
	`, folderColumns, r.tables.Folders)

	var folder models.Folder
	executor := GetExecutor(ctx, r.pool)
	if err := scanFolder(executor.QueryRow(ctx, query, id), &folder); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return &folder, nil
}

// Delete removes a folder
func (r *PostgresFolderRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE id = $1
		RETURNING owner_id, parent_id, contributor_ids
	`, r.tables.Folders)

	ev := ChangeEvent{Op: OpDeleted, FolderID: id}
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(&ev.OwnerID, &ev.ParentID, &ev.ContributorIDs)
	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete folder: %w", err)
	}

	r.notify(ctx, &ev)
	return nil
}

// SetPublic toggles the public visibility flag
func (r *PostgresFolderRepository) SetPublic(ctx context.Context, id string, public bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_public = $2, updated_at = now()
		WHERE id = $1
		RETURNING owner_id, parent_id, contributor_ids
	`, r.tables.Folders)

	ev := ChangeEvent{Op: OpUpdated, FolderID: id}
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, public).Scan(&ev.OwnerID, &ev.ParentID, &ev.ContributorIDs)
	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("set public: %w", err)
	}

	r.notify(ctx, &ev)
	return nil
}

// SetLock transitions the lock state. The WHERE clause makes the write
// conditional on the folder being in the opposite state: a concurrent or
// repeated call finds zero rows and reports applied=false instead of
// resurrecting a stale locked_at. Last writer wins at the store level; no
// application-level compare-and-swap beyond this.
func (r *PostgresFolderRepository) SetLock(ctx context.Context, id string, locked bool, lockedAt *time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET is_locked = $2, locked_at = $3, updated_at = now()
		WHERE id = $1 AND is_locked = NOT $2
		RETURNING owner_id, parent_id, contributor_ids
	`, r.tables.Folders)

	ev := ChangeEvent{Op: OpUpdated, FolderID: id}
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, locked, lockedAt).Scan(&ev.OwnerID, &ev.ParentID, &ev.ContributorIDs)
	if err != nil {
		if IsPgNoRowsError(err) {
			// Already in the target state. Not an error.
			return false, nil
		}
		return false, fmt.Errorf("set lock: %w", err)
	}

	r.notify(ctx, &ev)
	return true, nil
}

// AddContributors unions ids into the contributor set and marks the folder
// shared. The union is computed server-side so concurrent invites commute.
func (r *PostgresFolderRepository) AddContributors(ctx context.Context, id string, contributorIDs []string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			contributor_ids = ARRAY(SELECT DISTINCT unnest(contributor_ids || $2::text[])),
			is_shared = TRUE,
			updated_at = now()
		WHERE id = $1
		RETURNING owner_id, parent_id, contributor_ids
	`, r.tables.Folders)

	ev := ChangeEvent{Op: OpMembershipChanged, FolderID: id}
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, contributorIDs).Scan(&ev.OwnerID, &ev.ParentID, &ev.ContributorIDs)
	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("add contributors: %w", err)
	}

	r.notify(ctx, &ev)
	return nil
}

// RemoveContributor removes one id from the contributor set. The write is
// conditional on current membership: removing an absent contributor is
// NotFound, not a silent success.
func (r *PostgresFolderRepository) RemoveContributor(ctx context.Context, id, contributorID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			contributor_ids = array_remove(contributor_ids, $2),
			updated_at = now()
		WHERE id = $1 AND $2 = ANY(contributor_ids)
		RETURNING owner_id, parent_id, contributor_ids
	`, r.tables.Folders)

	ev := ChangeEvent{Op: OpMembershipChanged, FolderID: id}
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, contributorID).Scan(&ev.OwnerID, &ev.ParentID, &ev.ContributorIDs)
	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("contributor %s on folder %s: %w", contributorID, id, domain.ErrNotFound)
		}
		return fmt.Errorf("remove contributor: %w", err)
	}

	r.notify(ctx, &ev)
	return nil
}

// ListOwned lists folders owned by ownerID directly under parentID, newest
// first. IS NOT DISTINCT FROM makes the nil scope match top-level rows.
func (r *PostgresFolderRepository) ListOwned(ctx context.Context, ownerID string, parentID *string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
		ORDER BY created_at DESC, id DESC
	`, folderColumns, r.tables.Folders)

	return r.listFolders(ctx, query, ownerID, parentID)
}

// ListContributing lists shared folders with userID in their contributor
// set, directly under parentID, newest first.
func (r *PostgresFolderRepository) ListContributing(ctx context.Context, userID string, parentID *string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE is_shared AND $1 = ANY(contributor_ids) AND parent_id IS NOT DISTINCT FROM $2
		ORDER BY created_at DESC, id DESC
	`, folderColumns, r.tables.Folders)

	return r.listFolders(ctx, query, userID, parentID)
}

func (r *PostgresFolderRepository) listFolders(ctx context.Context, query string, args ...interface{}) ([]models.Folder, error) {
	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		var f models.Folder
		if err := scanFolder(rows, &f); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	return folders, nil
}

// notify publishes a change event on the folder channel through the current
// executor, so an event inside a transaction is only delivered on commit.
// Delivery failure is logged, never surfaced: the write itself succeeded.
func (r *PostgresFolderRepository) notify(ctx context.Context, ev *ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("marshal change event", "folder_id", ev.FolderID, "error", err)
		return
	}

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, `SELECT pg_notify($1, $2)`, FolderChannel, string(payload)); err != nil {
		r.logger.Warn("notify folder change", "folder_id", ev.FolderID, "error", err)
	}
}
