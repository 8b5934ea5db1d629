package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/model"
)

// LeaderboardCache keeps ranked top-N lists for a short TTL and feeds the refresh queue.
type LeaderboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(rdb *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{rdb: rdb, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context, testID uuid.UUID) ([]model.LeaderboardEntry, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.LeaderboardKey(testID.String())).Bytes()
	if err != nil {
		return nil, classify(err)
	}
	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return entries, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, testID uuid.UUID, entries []model.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	return classify(c.rdb.Set(ctx, config.CacheKey.LeaderboardKey(testID.String()), raw, c.ttl).Err())
}

// Invalidate drops the cached lists of the given tests.
func (c *LeaderboardCache) Invalidate(ctx context.Context, testIDs ...uuid.UUID) error {
	if len(testIDs) == 0 {
		return nil
	}
	keys := make([]string, len(testIDs))
	for i, id := range testIDs {
		keys[i] = config.CacheKey.LeaderboardKey(id.String())
	}
	return classify(c.rdb.Del(ctx, keys...).Err())
}

// EnqueueRefresh asks the leaderboard worker to recompute a test's ranking.
func (c *LeaderboardCache) EnqueueRefresh(ctx context.Context, testID uuid.UUID) error {
	return classify(c.rdb.RPush(ctx, config.WorkerKey.LeaderboardRefreshQueue, testID.String()).Err())
}
