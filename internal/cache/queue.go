package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a Redis list used as a work queue: producers RPUSH, workers BLPOP.
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue creates a Queue over the list at key.
func NewQueue(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

// Pop blocks up to timeout for the next item. It returns ErrMiss when the queue stayed empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		return "", classify(err)
	}
	if len(res) < 2 {
		return "", ErrMiss
	}
	return res[1], nil
}

// TryPop returns the next item without blocking. Used to drain on shutdown.
func (q *Queue) TryPop(ctx context.Context) (string, error) {
	item, err := q.rdb.LPop(ctx, q.key).Result()
	if err != nil {
		return "", classify(err)
	}
	return item, nil
}

// Push appends items to the tail of the queue.
func (q *Queue) Push(ctx context.Context, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	vals := make([]interface{}, len(items))
	for i, it := range items {
		vals[i] = it
	}
	return classify(q.rdb.RPush(ctx, q.key, vals...).Err())
}

// IsEmpty reports whether err means the queue had nothing to give.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Len reports how many items are waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	return n, classify(err)
}
