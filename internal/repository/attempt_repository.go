package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/attempt"
	"github.com/stemsi/tryout-backend/internal/leaderboard"
	"github.com/stemsi/tryout-backend/internal/model"
)

// AttemptRepository stores attempts and is the serialization point for their mutations.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Create inserts a new attempt with all of its section rows.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(err, nil)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO attempts (id, test_id, user_id, created_at_ns)
		 VALUES ($1, $2, $3, $4)`,
		a.ID, a.TestID, a.UserID, a.CreatedAt,
	); err != nil {
		return classify(err, nil)
	}

	for _, s := range a.Sections {
		if _, err := tx.Exec(ctx,
			`INSERT INTO attempt_sections (attempt_id, section_number, started_at_ns, answers)
			 VALUES ($1, $2, $3, $4)`,
			a.ID, s.Number, s.StartedAt, s.Answers,
		); err != nil {
			return classify(err, nil)
		}
	}

	return classify(tx.Commit(ctx), nil)
}

// GetByID loads an attempt with its sections.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := loadAttempt(ctx, r.pool, id, false)
	return a, classify(err, ErrAttemptNotFound)
}

// Update locks the attempt row, applies fn to the stored state and persists the result in the
// same transaction. Concurrent mutations of one attempt are serialized by the row lock. If fn
// returns an error nothing is written.
func (r *AttemptRepository) Update(ctx context.Context, id uuid.UUID, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer tx.Rollback(ctx)

	a, err := loadAttempt(ctx, tx, id, true)
	if err != nil {
		return nil, classify(err, ErrAttemptNotFound)
	}
	before := cloneSections(a.Sections)

	if err := fn(a); err != nil {
		return nil, err
	}
	if err := checkWriteOnce(before, a.Sections); err != nil {
		return nil, err
	}

	for i, s := range a.Sections {
		if sectionsEqual(before[i], s) {
			continue
		}
		if _, err := tx.Exec(ctx,
			`UPDATE attempt_sections
			 SET started_at_ns = $3, submitted_at_ns = $4, score = $5, answers = $6, stats = $7
			 WHERE attempt_id = $1 AND section_number = $2`,
			a.ID, s.Number, s.StartedAt, s.SubmittedAt, s.Score, s.Answers, s.Stats,
		); err != nil {
			return nil, classify(err, nil)
		}
		if before[i].SubmittedAt == nil && s.SubmittedAt != nil {
			if _, err := tx.Exec(ctx,
				`DELETE FROM attempt_draft_answers WHERE attempt_id = $1 AND section_number = $2`,
				a.ID, s.Number,
			); err != nil {
				return nil, classify(err, nil)
			}
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET completed_at_ns = $2, total_score = $3, total_time_taken_ns = $4, is_completed = $5
		 WHERE id = $1`,
		a.ID, a.CompletedAt, a.TotalScore, a.TotalTimeTaken, a.IsCompleted,
	); err != nil {
		return nil, classify(err, nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err, nil)
	}
	return a, nil
}

// ListByUser returns a user's attempts, newest first, optionally restricted to one test.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int, testID *uuid.UUID) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.test_id, t.title, a.created_at_ns, a.completed_at_ns,
		        a.total_score, a.total_time_taken_ns, a.is_completed
		 FROM attempts a
		 JOIN tests t ON t.id = a.test_id
		 WHERE a.user_id = $1 AND ($2::uuid IS NULL OR a.test_id = $2)
		 ORDER BY a.created_at_ns DESC`, userID, testID,
	)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	summaries := []model.AttemptSummary{}
	for rows.Next() {
		var s model.AttemptSummary
		if err := rows.Scan(&s.ID, &s.TestID, &s.TestTitle, &s.CreatedAt, &s.CompletedAt,
			&s.TotalScore, &s.TotalTimeTaken, &s.IsCompleted); err != nil {
			return nil, classify(err, nil)
		}
		summaries = append(summaries, s)
	}
	return summaries, classify(rows.Err(), nil)
}

// ListCompletedByTest reduces every completed attempt of a test to a ranking candidate.
// Raw answers are never read here.
func (r *AttemptRepository) ListCompletedByTest(ctx context.Context, testID uuid.UUID) ([]leaderboard.Candidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, u.name, a.total_score, a.total_time_taken_ns, a.created_at_ns
		 FROM attempts a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.test_id = $1 AND a.is_completed`, testID,
	)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var cands []leaderboard.Candidate
	for rows.Next() {
		var c leaderboard.Candidate
		if err := rows.Scan(&c.AttemptID, &c.UserName, &c.TotalScore, &c.TotalTimeTaken, &c.CreatedAt); err != nil {
			return nil, classify(err, nil)
		}
		cands = append(cands, c)
	}
	return cands, classify(rows.Err(), nil)
}

// ListExpiredSections returns started, unsubmitted sections whose duration has elapsed at now.
func (r *AttemptRepository) ListExpiredSections(ctx context.Context, now int64, limit int) ([]model.OpenSection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.attempt_id, a.test_id, a.user_id, s.section_number, s.started_at_ns, ts.duration_minutes
		 FROM attempt_sections s
		 JOIN attempts a ON a.id = s.attempt_id
		 JOIN test_sections ts ON ts.test_id = a.test_id AND ts.section_number = s.section_number
		 WHERE s.started_at_ns IS NOT NULL
		   AND s.submitted_at_ns IS NULL
		   AND s.started_at_ns + ts.duration_minutes::bigint * 60000000000 <= $1
		 ORDER BY s.started_at_ns
		 LIMIT $2`, now, limit,
	)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var open []model.OpenSection
	for rows.Next() {
		var o model.OpenSection
		if err := rows.Scan(&o.AttemptID, &o.TestID, &o.UserID, &o.SectionNumber, &o.StartedAt, &o.DurationMinutes); err != nil {
			return nil, classify(err, nil)
		}
		open = append(open, o)
	}
	return open, classify(rows.Err(), nil)
}

// SaveDrafts upserts autosaved answers in one statement. Drafts for sections that have already
// been submitted are dropped.
func (r *AttemptRepository) SaveDrafts(ctx context.Context, drafts []model.DraftAnswer) error {
	if len(drafts) == 0 {
		return nil
	}

	n := len(drafts)
	attemptIDs := make([]uuid.UUID, 0, n)
	sections := make([]int32, 0, n)
	questionIDs := make([]uuid.UUID, 0, n)
	indices := make([]int32, 0, n)
	for _, d := range drafts {
		attemptIDs = append(attemptIDs, d.AttemptID)
		sections = append(sections, int32(d.SectionNumber))
		questionIDs = append(questionIDs, d.QuestionID)
		indices = append(indices, int32(d.SelectedIndex))
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_draft_answers (attempt_id, section_number, question_id, selected_index)
		 SELECT DISTINCT ON (u.attempt_id, u.section_number, u.question_id)
		        u.attempt_id, u.section_number, u.question_id, u.selected_index
		 FROM UNNEST($1::uuid[], $2::int[], $3::uuid[], $4::int[])
		      WITH ORDINALITY AS u (attempt_id, section_number, question_id, selected_index, ord)
		 JOIN attempt_sections s
		   ON s.attempt_id = u.attempt_id AND s.section_number = u.section_number
		 WHERE s.submitted_at_ns IS NULL
		 ORDER BY u.attempt_id, u.section_number, u.question_id, u.ord DESC
		 ON CONFLICT (attempt_id, section_number, question_id) DO UPDATE
		 SET selected_index = EXCLUDED.selected_index, updated_at = NOW()`,
		attemptIDs, sections, questionIDs, indices,
	)
	return classify(err, nil)
}

// DraftAnswers returns the persisted autosave state of one section.
func (r *AttemptRepository) DraftAnswers(ctx context.Context, attemptID uuid.UUID, section int) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_index
		 FROM attempt_draft_answers
		 WHERE attempt_id = $1 AND section_number = $2
		 ORDER BY updated_at`, attemptID, section,
	)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.QuestionID, &a.SelectedIndex); err != nil {
			return nil, classify(err, nil)
		}
		answers = append(answers, a)
	}
	return answers, classify(rows.Err(), nil)
}

func loadAttempt(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*model.Attempt, error) {
	query := `SELECT id, test_id, user_id, created_at_ns, completed_at_ns, total_score, total_time_taken_ns, is_completed
	          FROM attempts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a := &model.Attempt{}
	if err := q.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.TestID, &a.UserID, &a.CreatedAt, &a.CompletedAt, &a.TotalScore, &a.TotalTimeTaken, &a.IsCompleted,
	); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT section_number, started_at_ns, submitted_at_ns, score, answers, stats
		 FROM attempt_sections
		 WHERE attempt_id = $1
		 ORDER BY section_number`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s model.SectionAttempt
		if err := rows.Scan(&s.Number, &s.StartedAt, &s.SubmittedAt, &s.Score, &s.Answers, &s.Stats); err != nil {
			return nil, err
		}
		a.Sections = append(a.Sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(a.Sections) == 0 {
		return nil, fmt.Errorf("attempt %s has no sections", id)
	}
	return a, nil
}

func cloneSections(in []model.SectionAttempt) []model.SectionAttempt {
	out := make([]model.SectionAttempt, len(in))
	for i, s := range in {
		out[i] = s
		if s.StartedAt != nil {
			v := *s.StartedAt
			out[i].StartedAt = &v
		}
		if s.SubmittedAt != nil {
			v := *s.SubmittedAt
			out[i].SubmittedAt = &v
		}
	}
	return out
}

// checkWriteOnce rejects any change to a timestamp that was already set.
func checkWriteOnce(before, after []model.SectionAttempt) error {
	if len(before) != len(after) {
		return attempt.ErrShapeMismatch
	}
	for i := range before {
		if before[i].StartedAt != nil && !sameTime(before[i].StartedAt, after[i].StartedAt) {
			return attempt.ErrSectionAlreadyStarted
		}
		if before[i].SubmittedAt != nil && !sameTime(before[i].SubmittedAt, after[i].SubmittedAt) {
			return attempt.ErrSectionAlreadySubmitted
		}
	}
	return nil
}

func sameTime(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sectionsEqual(a, b model.SectionAttempt) bool {
	return sameTime(a.StartedAt, b.StartedAt) && sameTime(a.SubmittedAt, b.SubmittedAt) && a.Score == b.Score
}
