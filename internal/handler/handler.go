package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/service"
	"github.com/stemsi/tryout-backend/internal/timer"
)

// The handlers depend on these narrow views of the services.

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, *model.User, error)
	Logout(ctx context.Context, userID int) error
	Me(ctx context.Context, actor service.Actor) (*model.User, error)
}

type TestService interface {
	ListTests(ctx context.Context, activeOnly bool) ([]model.TestDefinition, error)
	GetDefinition(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error)
	Paper(ctx context.Context, id uuid.UUID, section int) (*model.TestPaper, error)
	CreateQuestions(ctx context.Context, req model.CreateQuestionsRequest) ([]model.Question, error)
	CreateTest(ctx context.Context, req model.CreateTestRequest) (*model.TestDefinition, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.TestDefinition, error)
}

type LeaderboardService interface {
	Get(ctx context.Context, testID uuid.UUID) ([]model.LeaderboardEntry, error)
}

type AttemptService interface {
	Start(ctx context.Context, actor service.Actor, testID uuid.UUID) (*model.Attempt, error)
	StartSection(ctx context.Context, actor service.Actor, attemptID uuid.UUID, n int) (*model.Attempt, error)
	SubmitSection(ctx context.Context, actor service.Actor, attemptID uuid.UUID, n int, answers []model.Answer) (*model.SubmitResult, error)
	AutoSubmit(ctx context.Context, attemptID uuid.UUID, n int) (*model.SubmitResult, error)
	GetAttempt(ctx context.Context, actor service.Actor, attemptID uuid.UUID) (*model.Attempt, error)
	GetState(ctx context.Context, actor service.Actor, attemptID uuid.UUID) (*model.AttemptStateView, error)
	GetResult(ctx context.Context, actor service.Actor, attemptID uuid.UUID) (*model.AttemptResult, error)
	ListMine(ctx context.Context, actor service.Actor, testID *uuid.UUID) ([]model.AttemptSummary, error)
	Autosave(ctx context.Context, actor service.Actor, attemptID, questionID uuid.UUID, idx int) (int, error)
	BufferedAnswers(ctx context.Context, attemptID uuid.UUID, n int) ([]model.Answer, error)
	SectionStatus(ctx context.Context, attemptID uuid.UUID, n int) (timer.Status, error)
}

var (
	_ AuthService        = (*service.AuthService)(nil)
	_ TestService        = (*service.TestService)(nil)
	_ LeaderboardService = (*service.LeaderboardService)(nil)
	_ AttemptService     = (*service.AttemptService)(nil)
)

// uuidParam parses a path parameter, answering 400 INVALID_ID when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func sectionParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("section"))
	if err != nil || n < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidSection)
		return 0, false
	}
	return n, true
}

// fail answers with the status and code of a domain error. Unclassified errors are logged
// because the client only ever sees INTERNAL_ERROR for them.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status := response.StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Request failed")
	}
	response.FailError(c, err)
}
