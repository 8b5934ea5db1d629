package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

// TestRepository handles test definition data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// Create inserts a test and its sections in one transaction.
func (r *TestRepository) Create(ctx context.Context, t *model.TestDefinition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classify(err, nil)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, kind, subject, chapter, is_active)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		 RETURNING id, created_at`,
		t.Title, t.Kind, t.Subject, t.Chapter, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return classify(err, nil)
	}

	for _, s := range t.Sections {
		if _, err := tx.Exec(ctx,
			`INSERT INTO test_sections (test_id, section_number, name, duration_minutes, marks_per_question, question_ids)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, s.Number, s.Name, s.DurationMinutes, s.MarksPerQuestion, s.QuestionIDs,
		); err != nil {
			return classify(err, nil)
		}
	}

	return classify(tx.Commit(ctx), nil)
}

// GetByID retrieves a test definition with its sections.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	t := &model.TestDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, kind, COALESCE(subject, ''), COALESCE(chapter, ''), is_active, created_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Kind, &t.Subject, &t.Chapter, &t.IsActive, &t.CreatedAt)
	if err != nil {
		return nil, classify(err, ErrTestNotFound)
	}

	sections, err := r.sections(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	t.Sections = sections[id]
	return t, nil
}

// List retrieves test definitions, newest first. When activeOnly is set, inactive tests are skipped.
func (r *TestRepository) List(ctx context.Context, activeOnly bool) ([]model.TestDefinition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, kind, COALESCE(subject, ''), COALESCE(chapter, ''), is_active, created_at
		 FROM tests
		 WHERE ($1 = FALSE OR is_active)
		 ORDER BY created_at DESC`, activeOnly,
	)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var tests []model.TestDefinition
	var ids []uuid.UUID
	for rows.Next() {
		var t model.TestDefinition
		if err := rows.Scan(&t.ID, &t.Title, &t.Kind, &t.Subject, &t.Chapter, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, classify(err, nil)
		}
		tests = append(tests, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, nil)
	}

	sections, err := r.sections(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tests {
		tests[i].Sections = sections[tests[i].ID]
	}
	return tests, nil
}

// SetActive toggles the availability flag, the only mutable field of a test.
func (r *TestRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tests SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return classify(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (r *TestRepository) sections(ctx context.Context, testIDs []uuid.UUID) (map[uuid.UUID][]model.Section, error) {
	out := make(map[uuid.UUID][]model.Section, len(testIDs))
	if len(testIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT test_id, section_number, name, duration_minutes, marks_per_question, question_ids
		 FROM test_sections
		 WHERE test_id = ANY($1)
		 ORDER BY test_id, section_number`, testIDs,
	)
	if err != nil {
		return nil, classify(err, nil)
	}

	defer rows.Close()

	for rows.Next() {
		var testID uuid.UUID
		var s model.Section
		if err := rows.Scan(&testID, &s.Number, &s.Name, &s.DurationMinutes, &s.MarksPerQuestion, &s.QuestionIDs); err != nil {
			return nil, classify(err, nil)
		}
		out[testID] = append(out[testID], s)
	}
	return out, classify(rows.Err(), nil)
}
