package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/tryout-backend/internal/config"
)

// SessionStore remembers the JWT ID of each user's single active login.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func (s *SessionStore) Put(ctx context.Context, userID int, jti string, ttl time.Duration) error {
	return classify(s.rdb.Set(ctx, config.CacheKey.UserSessionKey(userID), jti, ttl).Err())
}

// Get returns the active JWT ID, or ErrMiss when the user has no session.
func (s *SessionStore) Get(ctx context.Context, userID int) (string, error) {
	jti, err := s.rdb.Get(ctx, config.CacheKey.UserSessionKey(userID)).Result()
	return jti, classify(err)
}

func (s *SessionStore) Delete(ctx context.Context, userID int) error {
	return classify(s.rdb.Del(ctx, config.CacheKey.UserSessionKey(userID)).Err())
}
