package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/cache"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/model"
)

// DraftStore persists autosaved selections.
type DraftStore interface {
	SaveDrafts(ctx context.Context, drafts []model.DraftAnswer) error
}

// AutosaveWorker consumes the persist_answers_queue and upserts draft answers to PostgreSQL in
// batches, so an attempt can be resumed even if Redis loses its buffer.
type AutosaveWorker struct {
	queue   Queue
	store   DraftStore
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(queue Queue, store DraftStore, m *metrics.Metrics, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		queue:   queue,
		store:   store,
		metrics: m,
		log:     log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]model.DraftAnswer, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 && (len(batch) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.flush(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
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

			var d model.DraftAnswer
			if err := json.Unmarshal([]byte(raw), &d); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, d)
		}
	}
}

// flush writes one batch. On failure the batch goes back to the queue.
func (w *AutosaveWorker) flush(ctx context.Context, batch []model.DraftAnswer) bool {
	if len(batch) == 0 {
		return true
	}

	if err := w.store.SaveDrafts(ctx, batch); err != nil {
		w.log.Error().Err(err).Int("count", len(batch)).Msg("Persist error, requeueing batch")
		w.observe("error")
		w.requeue(ctx, batch)
		return false
	}
	w.observe("ok")
	w.log.Debug().Int("count", len(batch)).Msg("Drafts persisted")
	return true
}

func (w *AutosaveWorker) requeue(ctx context.Context, batch []model.DraftAnswer) {
	items := make([]string, 0, len(batch))
	for _, d := range batch {
		raw, _ := json.Marshal(d)
		items = append(items, string(raw))
	}
	if err := w.queue.Push(ctx, items...); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("Requeue failed, drafts dropped")
	}
}

// drain persists everything still queued before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		batch := make([]model.DraftAnswer, 0, BatchSize)
		for len(batch) < BatchSize {
			raw, err := w.queue.TryPop(ctx)
			if err != nil {
				break
			}
			var d model.DraftAnswer
			if err := json.Unmarshal([]byte(raw), &d); err != nil {
				w.log.Error().Err(err).Msg("Drain unmarshal error")
				continue
			}
			batch = append(batch, d)
		}
		if len(batch) == 0 || !w.flush(ctx, batch) {
			break
		}
		drained += len(batch)
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func (w *AutosaveWorker) observe(result string) {
	if w.metrics != nil {
		w.metrics.WorkerBatches.WithLabelValues("autosave", result).Inc()
	}
}
