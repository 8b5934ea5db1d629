package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByIDs retrieves the given questions in the order of ids. Unknown ids are skipped.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.subject, q.class_level, q.question_text, q.image_url, q.options,
		        q.correct_index, q.explanation, q.created_at
		 FROM UNNEST($1::uuid[]) WITH ORDINALITY AS u(id, ord)
		 JOIN questions q ON q.id = u.id
		 ORDER BY u.ord`, ids,
	)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Subject, &q.ClassLevel, &q.Text, &q.ImageURL, &q.Options,
			&q.CorrectIndex, &q.Explanation, &q.CreatedAt); err != nil {
			return nil, classify(err, nil)
		}
		questions = append(questions, q)
	}
	return questions, classify(rows.Err(), nil)
}

// CreateBatch inserts questions in one transaction and fills in their IDs.
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(err, nil)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(
			`INSERT INTO questions (subject, class_level, question_text, image_url, options, correct_index, explanation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at`,
			q.Subject, q.ClassLevel, q.Text, q.ImageURL, q.Options, q.CorrectIndex, q.Explanation,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&q.ID, &q.CreatedAt)
		})
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return classify(err, nil)
	}
	return classify(tx.Commit(ctx), nil)
}
