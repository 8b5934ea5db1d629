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
	"github.com/stemsi/tryout-backend/internal/scoring"
)

// testTTL bounds how long a deactivated test can still be served from cache.
const testTTL = 6 * time.Hour

// TestCache caches test definitions, answer keys and student papers as JSON.
type TestCache struct {
	rdb *redis.Client
}

// NewTestCache creates a new TestCache.
func NewTestCache(rdb *redis.Client) *TestCache {
	return &TestCache{rdb: rdb}
}

func (c *TestCache) GetDefinition(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	var def model.TestDefinition
	if err := c.get(ctx, config.CacheKey.TestDefinitionKey(id.String()), &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (c *TestCache) SetDefinition(ctx context.Context, def *model.TestDefinition) error {
	return c.set(ctx, config.CacheKey.TestDefinitionKey(def.ID.String()), def)
}

// GetKey returns the cached answer key. Keys are stored as question ID -> correct index.
func (c *TestCache) GetKey(ctx context.Context, id uuid.UUID) (scoring.Key, error) {
	var key scoring.Key
	if err := c.get(ctx, config.CacheKey.TestAnswerKey(id.String()), &key); err != nil {
		return nil, err
	}
	return key, nil
}

func (c *TestCache) SetKey(ctx context.Context, id uuid.UUID, key scoring.Key) error {
	return c.set(ctx, config.CacheKey.TestAnswerKey(id.String()), key)
}

func (c *TestCache) GetPaper(ctx context.Context, id uuid.UUID, section int) (*model.TestPaper, error) {
	var paper model.TestPaper
	if err := c.get(ctx, config.CacheKey.TestPaperKey(id.String(), section), &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

func (c *TestCache) SetPaper(ctx context.Context, paper *model.TestPaper) error {
	return c.set(ctx, config.CacheKey.TestPaperKey(paper.TestID.String(), paper.SectionNumber), paper)
}

// Invalidate removes every cached view of a test. Called when its active flag changes.
func (c *TestCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	keys := []string{
		config.CacheKey.TestDefinitionKey(id.String()),
		config.CacheKey.TestAnswerKey(id.String()),
	}
	for n := 1; n <= 2; n++ {
		keys = append(keys, config.CacheKey.TestPaperKey(id.String(), n))
	}
	return classify(c.rdb.Del(ctx, keys...).Err())
}

func (c *TestCache) get(ctx context.Context, key string, dst any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return classify(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *TestCache) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return classify(c.rdb.Set(ctx, key, raw, testTTL).Err())
}
