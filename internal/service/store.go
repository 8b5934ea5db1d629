package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/leaderboard"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/scoring"
)

// The interfaces below are what the services need from PostgreSQL and Redis. The repository and
// cache packages satisfy them; tests use in-memory fakes.

type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type SessionStore interface {
	Put(ctx context.Context, userID int, jti string, ttl time.Duration) error
	Get(ctx context.Context, userID int) (string, error)
	Delete(ctx context.Context, userID int) error
}

type TestStore interface {
	Create(ctx context.Context, t *model.TestDefinition) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error)
	List(ctx context.Context, activeOnly bool) ([]model.TestDefinition, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type QuestionStore interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
	CreateBatch(ctx context.Context, questions []model.Question) error
}

type TestCache interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error)
	SetDefinition(ctx context.Context, def *model.TestDefinition) error
	GetKey(ctx context.Context, id uuid.UUID) (scoring.Key, error)
	SetKey(ctx context.Context, id uuid.UUID, key scoring.Key) error
	GetPaper(ctx context.Context, id uuid.UUID, section int) (*model.TestPaper, error)
	SetPaper(ctx context.Context, paper *model.TestPaper) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	Update(ctx context.Context, id uuid.UUID, fn func(a *model.Attempt) error) (*model.Attempt, error)
	ListByUser(ctx context.Context, userID int, testID *uuid.UUID) ([]model.AttemptSummary, error)
	ListCompletedByTest(ctx context.Context, testID uuid.UUID) ([]leaderboard.Candidate, error)
	ListExpiredSections(ctx context.Context, now int64, limit int) ([]model.OpenSection, error)
	SaveDrafts(ctx context.Context, drafts []model.DraftAnswer) error
	DraftAnswers(ctx context.Context, attemptID uuid.UUID, section int) ([]model.Answer, error)
}

type AnswerBuffer interface {
	Save(ctx context.Context, d model.DraftAnswer) error
	Load(ctx context.Context, attemptID uuid.UUID, section int) ([]model.Answer, error)
	Clear(ctx context.Context, attemptID uuid.UUID, section int) error
}

type LeaderboardCache interface {
	Get(ctx context.Context, testID uuid.UUID) ([]model.LeaderboardEntry, error)
	Set(ctx context.Context, testID uuid.UUID, entries []model.LeaderboardEntry) error
	Invalidate(ctx context.Context, testIDs ...uuid.UUID) error
	EnqueueRefresh(ctx context.Context, testID uuid.UUID) error
}
