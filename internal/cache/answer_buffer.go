package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/model"
)

// answerTTL outlives the longest section so an expiry sweep can still read the buffer.
const answerTTL = 12 * time.Hour

// AnswerBuffer holds autosaved selections per attempt section and queues them for PostgreSQL.
type AnswerBuffer struct {
	rdb *redis.Client
}

// NewAnswerBuffer creates a new AnswerBuffer.
func NewAnswerBuffer(rdb *redis.Client) *AnswerBuffer {
	return &AnswerBuffer{rdb: rdb}
}

// Save records one selection and enqueues it for the autosave worker in a single round trip.
func (b *AnswerBuffer) Save(ctx context.Context, d model.DraftAnswer) error {
	key := config.CacheKey.AttemptAnswersKey(d.AttemptID.String(), d.SectionNumber)
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, key, d.QuestionID.String(), d.SelectedIndex)
	pipe.Expire(ctx, key, answerTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	_, err = pipe.Exec(ctx)
	return classify(err)
}

// Load returns the buffered selections of one section. An empty buffer yields an empty slice.
func (b *AnswerBuffer) Load(ctx context.Context, attemptID uuid.UUID, section int) ([]model.Answer, error) {
	raw, err := b.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String(), section)).Result()
	if err != nil {
		return nil, classify(err)
	}
	return decodeAnswers(raw), nil
}

// Clear drops the buffer of a submitted section.
func (b *AnswerBuffer) Clear(ctx context.Context, attemptID uuid.UUID, section int) error {
	return classify(b.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String(), section)).Err())
}

// decodeAnswers skips malformed hash fields instead of failing the whole section.
func decodeAnswers(raw map[string]string) []model.Answer {
	answers := make([]model.Answer, 0, len(raw))
	for qid, v := range raw {
		id, err := uuid.Parse(qid)
		if err != nil {
			continue
		}
		idx, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		answers = append(answers, model.Answer{QuestionID: id, SelectedIndex: idx})
	}
	return answers
}
