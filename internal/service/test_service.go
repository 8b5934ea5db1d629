package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/apperror"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/scoring"
)

// Test management errors.
var (
	ErrInvalidTest      = apperror.Invalid("INVALID_TEST_DEFINITION", "test definition is not valid")
	ErrInvalidQuestion  = apperror.Invalid("INVALID_QUESTION", "correct index is out of range")
	ErrTestNotFound     = apperror.NotFound("TEST_NOT_FOUND", "test not found")
	ErrSectionNotInTest = apperror.NotFound("SECTION_NOT_FOUND", "test has no such section")
)

// TestService manages test definitions, questions and the cached student papers.
type TestService struct {
	tests     TestStore
	questions QuestionStore
	cache     TestCache
	log       zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests TestStore, questions QuestionStore, cache TestCache, log zerolog.Logger) *TestService {
	return &TestService{
		tests:     tests,
		questions: questions,
		cache:     cache,
		log:       log.With().Str("component", "test_service").Logger(),
	}
}

// CreateQuestions validates and stores a batch of questions.
func (s *TestService) CreateQuestions(ctx context.Context, req model.CreateQuestionsRequest) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		question := model.Question{
			Subject:      q.Subject,
			ClassLevel:   q.ClassLevel,
			Text:         q.Text,
			ImageURL:     q.ImageURL,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
		}
		if !question.HasValidKey() {
			return nil, fmt.Errorf("question %d: %w", i, ErrInvalidQuestion)
		}
		questions = append(questions, question)
	}

	if err := s.questions.CreateBatch(ctx, questions); err != nil {
		return nil, fmt.Errorf("create questions: %w", err)
	}
	s.log.Info().Int("count", len(questions)).Msg("Questions created")
	return questions, nil
}

// CreateTest validates the definition against its kind and stores it. Full-syllabus tests need
// exactly two sections, chapter-wise tests one. Question IDs must exist and must not repeat.
func (s *TestService) CreateTest(ctx context.Context, req model.CreateTestRequest) (*model.TestDefinition, error) {
	if req.Kind.SectionCount() != len(req.Sections) {
		return nil, fmt.Errorf("%s needs %d section(s), got %d: %w",
			req.Kind, req.Kind.SectionCount(), len(req.Sections), ErrInvalidTest)
	}

	def := &model.TestDefinition{
		Title:    req.Title,
		Kind:     req.Kind,
		Subject:  req.Subject,
		Chapter:  req.Chapter,
		IsActive: req.IsActive,
	}

	seen := make(map[uuid.UUID]struct{})
	for i, sec := range req.Sections {
		if sec.MarksPerQuestion <= 0 {
			return nil, fmt.Errorf("section %d: marks per question must be positive: %w", i+1, ErrInvalidTest)
		}
		for _, id := range sec.QuestionIDs {
			if _, dup := seen[id]; dup {
				return nil, fmt.Errorf("question %s is listed twice: %w", id, ErrInvalidTest)
			}
			seen[id] = struct{}{}
		}
		def.Sections = append(def.Sections, model.Section{
			Number:           i + 1,
			Name:             sec.Name,
			DurationMinutes:  sec.DurationMinutes,
			QuestionIDs:      sec.QuestionIDs,
			MarksPerQuestion: sec.MarksPerQuestion,
		})
	}

	questions, err := s.questions.GetByIDs(ctx, def.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) != len(seen) {
		return nil, fmt.Errorf("%d of %d questions exist: %w", len(questions), len(seen), ErrInvalidTest)
	}

	if err := s.tests.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().
		Str("test_id", def.ID.String()).
		Str("kind", string(def.Kind)).
		Bool("active", def.IsActive).
		Msg("Test created")

	if def.IsActive {
		s.warm(ctx, def, questions)
	}
	return def, nil
}

// SetActive toggles a test's availability. Cached views are rebuilt so students never see a
// stale flag for longer than one request.
func (s *TestService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.TestDefinition, error) {
	if err := s.tests.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Cache invalidation failed")
	}

	def, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if active {
		questions, err := s.questions.GetByIDs(ctx, def.QuestionIDs())
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		s.warm(ctx, def, questions)
	}

	s.log.Info().Str("test_id", id.String()).Bool("active", active).Msg("Test availability changed")
	return def, nil
}

// GetDefinition returns a test definition, reading through the cache.
func (s *TestService) GetDefinition(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	if def, err := s.cache.GetDefinition(ctx, id); err == nil {
		return def, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Definition cache read failed")
	}

	def, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetDefinition(ctx, def); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Definition cache write failed")
	}
	return def, nil
}

// ListTests returns test definitions, optionally only the active ones.
func (s *TestService) ListTests(ctx context.Context, activeOnly bool) ([]model.TestDefinition, error) {
	tests, err := s.tests.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if tests == nil {
		tests = []model.TestDefinition{}
	}
	return tests, nil
}

// AnswerKey returns question ID -> correct index for every question of the test.
func (s *TestService) AnswerKey(ctx context.Context, def *model.TestDefinition) (scoring.Key, error) {
	if key, err := s.cache.GetKey(ctx, def.ID); err == nil {
		return key, nil
	}

	questions, err := s.questions.GetByIDs(ctx, def.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	key := scoring.KeyFromQuestions(questions)
	if err := s.cache.SetKey(ctx, def.ID, key); err != nil {
		s.log.Warn().Err(err).Str("test_id", def.ID.String()).Msg("Answer key cache write failed")
	}
	return key, nil
}

// Questions returns the full questions of a test keyed by ID, for result views.
func (s *TestService) Questions(ctx context.Context, def *model.TestDefinition) (map[uuid.UUID]model.Question, error) {
	questions, err := s.questions.GetByIDs(ctx, def.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[uuid.UUID]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

// Paper returns the student view of one section of an active test.
func (s *TestService) Paper(ctx context.Context, id uuid.UUID, section int) (*model.TestPaper, error) {
	if paper, err := s.cache.GetPaper(ctx, id, section); err == nil {
		return paper, nil
	}

	def, err := s.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	if !def.IsActive {
		return nil, ErrTestNotFound
	}
	if _, ok := def.Section(section); !ok {
		return nil, ErrSectionNotInTest
	}

	questions, err := s.questions.GetByIDs(ctx, def.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	papers := buildPapers(def, questions)
	for i := range papers {
		if err := s.cache.SetPaper(ctx, &papers[i]); err != nil {
			s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Paper cache write failed")
			break
		}
	}
	return &papers[section-1], nil
}

// WarmActive preloads the caches of every active test. Called on startup.
func (s *TestService) WarmActive(ctx context.Context) error {
	tests, err := s.tests.List(ctx, true)
	if err != nil {
		return err
	}
	for i := range tests {
		def := &tests[i]
		questions, err := s.questions.GetByIDs(ctx, def.QuestionIDs())
		if err != nil {
			return fmt.Errorf("load questions for %s: %w", def.ID, err)
		}
		s.warm(ctx, def, questions)
	}
	s.log.Info().Int("tests", len(tests)).Msg("Test caches warmed")
	return nil
}

func (s *TestService) warm(ctx context.Context, def *model.TestDefinition, questions []model.Question) {
	if err := s.cache.SetDefinition(ctx, def); err != nil {
		s.log.Warn().Err(err).Str("test_id", def.ID.String()).Msg("Cache warm failed")
		return
	}
	_ = s.cache.SetKey(ctx, def.ID, scoring.KeyFromQuestions(questions))
	papers := buildPapers(def, questions)
	for i := range papers {
		_ = s.cache.SetPaper(ctx, &papers[i])
	}
}

// buildPapers strips answers and explanations and keeps the section's question order.
func buildPapers(def *model.TestDefinition, questions []model.Question) []model.TestPaper {
	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	papers := make([]model.TestPaper, 0, len(def.Sections))
	for _, sec := range def.Sections {
		paper := model.TestPaper{
			TestID:           def.ID,
			Title:            def.Title,
			SectionNumber:    sec.Number,
			SectionName:      sec.Name,
			DurationMinutes:  sec.DurationMinutes,
			MarksPerQuestion: sec.MarksPerQuestion,
			Questions:        make([]model.QuestionForStudent, 0, len(sec.QuestionIDs)),
		}
		for i, id := range sec.QuestionIDs {
			if q, ok := byID[id]; ok {
				paper.Questions = append(paper.Questions, q.ForStudent(i+1))
			}
		}
		papers = append(papers, paper)
	}
	return papers
}
