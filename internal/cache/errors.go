// Package cache is the Redis fast lane: autosave buffers, read-through copies of immutable test
// data and short-lived leaderboards.
package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/tryout-backend/internal/apperror"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = apperror.NotFound("CACHE_MISS", "cache miss")

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrMiss
	case errors.Is(err, context.Canceled):
		return err
	default:
		return apperror.Unavailable(err)
	}
}
