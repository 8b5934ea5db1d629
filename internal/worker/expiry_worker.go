package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/metrics"
)

// Sweeper auto-submits sections whose time ran out.
type Sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker closes sections nobody is watching: a student who closed the tab still gets
// their section submitted at the deadline, through the same path as a manual submit.
type ExpiryWorker struct {
	sweeper  Sweeper
	interval time.Duration
	limit    int
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sweeper Sweeper, interval time.Duration, m *metrics.Metrics, log zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ExpiryWorker{
		sweeper:  sweeper,
		interval: interval,
		limit:    BatchSize,
		metrics:  m,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep keeps going while full pages come back, so a backlog clears within one tick.
func (w *ExpiryWorker) sweep(ctx context.Context) {
	total := 0
	for ctx.Err() == nil {
		n, err := w.sweeper.SweepExpired(ctx, w.limit)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Expiry sweep failed")
				w.observe("error")
			}
			return
		}
		total += n
		if n < w.limit {
			break
		}
	}

	if total > 0 {
		w.log.Info().Int("submitted", total).Msg("Expired sections auto-submitted")
		w.observe("ok")
	}
}

func (w *ExpiryWorker) observe(result string) {
	if w.metrics != nil {
		w.metrics.WorkerBatches.WithLabelValues("expiry", result).Inc()
	}
}
