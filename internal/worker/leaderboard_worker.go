package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/cache"
	"github.com/stemsi/tryout-backend/internal/metrics"
)

// Refresher recomputes cached leaderboards.
type Refresher interface {
	Refresh(ctx context.Context, testIDs ...uuid.UUID) error
}

// LeaderboardWorker batches completion notices from the leaderboard_refresh_queue so a burst of
// submissions on one test costs a single recomputation.
type LeaderboardWorker struct {
	queue     Queue
	refresher Refresher
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewLeaderboardWorker creates a new LeaderboardWorker.
func NewLeaderboardWorker(queue Queue, refresher Refresher, m *metrics.Metrics, log zerolog.Logger) *LeaderboardWorker {
	return &LeaderboardWorker{
		queue:     queue,
		refresher: refresher,
		metrics:   m,
		log:       log.With().Str("component", "leaderboard_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.log.Info().Msg("LeaderboardWorker started")

	pending := make(map[uuid.UUID]struct{})
	lastFlush := time.Now()

	for {
		if len(pending) > 0 && (len(pending) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flush(ctx, pending)
			pending = make(map[uuid.UUID]struct{})
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing pending refreshes...")
			w.flush(context.Background(), pending)
			return
		default:
			raw, err := w.queue.Pop(ctx, PollTimeout)
			if err != nil {
				if !cache.IsEmpty(err) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(PollTimeout)
				}
				continue
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				w.log.Error().Err(err).Str("payload", raw).Msg("Invalid test ID")
				continue
			}
			pending[id] = struct{}{}
		}
	}
}

func (w *LeaderboardWorker) flush(ctx context.Context, pending map[uuid.UUID]struct{}) {
	if len(pending) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}

	result := "ok"
	if err := w.refresher.Refresh(ctx, ids...); err != nil {
		result = "error"
		w.log.Warn().Err(err).Int("tests", len(ids)).Msg("Leaderboard refresh failed")
	} else {
		w.log.Debug().Int("tests", len(ids)).Msg("Leaderboards refreshed")
	}
	if w.metrics != nil {
		w.metrics.WorkerBatches.WithLabelValues("leaderboard", result).Inc()
	}
}
