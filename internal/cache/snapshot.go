// Package cache provides a bounded, TTL-based read-through cache of folder
// snapshots in Redis. Only snapshots are cached: access decisions are
// always recomputed per check, so a cached snapshot can never grant stale
// capabilities past its TTL. Every folder write invalidates its entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"cubby/internal/domain/models"
)

// DefaultTTL bounds how long a snapshot may serve reads without a store
// round trip.
const DefaultTTL = 5 * time.Minute

// SnapshotCache caches folder snapshots by id.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a snapshot cache. ttl <= 0 falls back to DefaultTTL.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{client: client, ttl: ttl, logger: logger}
}

// Connect dials Redis and verifies connectivity.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *SnapshotCache) key(folderID string) string {
	return fmt.Sprintf("folder:%s", folderID)
}

// Get returns the cached snapshot, or nil on a miss. Cache errors degrade
// to a miss: the caller falls through to the store.
func (c *SnapshotCache) Get(ctx context.Context, folderID string) *models.Folder {
	data, err := c.client.Get(ctx, c.key(folderID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("snapshot cache read failed", "folder_id", folderID, "error", err)
		}
		return nil
	}

	var folder models.Folder
	if err := json.Unmarshal([]byte(data), &folder); err != nil {
		c.logger.Warn("snapshot cache entry corrupt", "folder_id", folderID, "error", err)
		return nil
	}
	return &folder
}

// Set stores a snapshot with the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, folder *models.Folder) {
	data, err := json.Marshal(folder)
	if err != nil {
		c.logger.Warn("marshal snapshot", "folder_id", folder.ID, "error", err)
		return
	}

	if err := c.client.Set(ctx, c.key(folder.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed", "folder_id", folder.ID, "error", err)
	}
}

// Invalidate drops a snapshot after a write.
func (c *SnapshotCache) Invalidate(ctx context.Context, folderID string) {
	if err := c.client.Del(ctx, c.key(folderID)).Err(); err != nil {
		c.logger.Warn("snapshot cache invalidation failed", "folder_id", folderID, "error", err)
	}
}
