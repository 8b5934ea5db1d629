package worker

import (
	"context"
	"time"
)

// Queue is the list a worker consumes. cache.Queue implements it over Redis.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	TryPop(ctx context.Context) (string, error)
	Push(ctx context.Context, items ...string) error
}

const (
	BatchSize    = 100
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second
)
