package repository

import (
	"context"

	"xp_engine/internal/util"

	"github.com/go-redis/redis/v8"
)

func CourseProgressKey(userID, courseID string) string {
	return util.CourseProgressKeyPrefix + userID + ":" + courseID
}

// ProgressCacheRepository drops the cached course progress the UI reads.
type ProgressCacheRepository struct {
	Redis *redis.Client
}

func NewProgressCacheRepository(rdb *redis.Client) *ProgressCacheRepository {
	return &ProgressCacheRepository{Redis: rdb}
}

func (r *ProgressCacheRepository) Invalidate(ctx context.Context, userID, courseID string) error {
	return r.Redis.Del(ctx, CourseProgressKey(userID, courseID)).Err()
}

// NoopProgressCache is used when no redis is configured and nothing is cached.
type NoopProgressCache struct{}

func (NoopProgressCache) Invalidate(ctx context.Context, userID, courseID string) error {
	return nil
}
