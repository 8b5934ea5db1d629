package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/validator"
)

// TestHandler serves test definitions, papers and leaderboards, plus admin authoring.
type TestHandler struct {
	tests       TestService
	leaderboard LeaderboardService
	log         zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(tests TestService, leaderboard LeaderboardService, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		tests:       tests,
		leaderboard: leaderboard,
		log:         log.With().Str("component", "test_handler").Logger(),
	}
}

// ListTests godoc
// GET /api/v1/tests?active=true
// Students only ever see active tests.
func (h *TestHandler) ListTests(c *gin.Context) {
	activeOnly := c.Query("active") == "true" || middleware.GetActor(c).Role != model.RoleAdmin

	tests, err := h.tests.ListTests(c.Request.Context(), activeOnly)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// GetTest godoc
// GET /api/v1/tests/:test_id
func (h *TestHandler) GetTest(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	def, err := h.tests.GetDefinition(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if !def.IsActive && middleware.GetActor(c).Role != model.RoleAdmin {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": def})
}

// GetPaper godoc
// GET /api/v1/student/tests/:test_id/sections/:section/paper
// Returns the section's questions in order, without answers.
func (h *TestHandler) GetPaper(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}
	n, ok := sectionParam(c)
	if !ok {
		return
	}

	paper, err := h.tests.Paper(c.Request.Context(), id, n)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// GetLeaderboard godoc
// GET /api/v1/tests/:test_id/leaderboard
func (h *TestHandler) GetLeaderboard(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	entries, err := h.leaderboard.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}

// CreateQuestions godoc
// POST /api/v1/admin/questions
func (h *TestHandler) CreateQuestions(c *gin.Context) {
	var req model.CreateQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.tests.CreateQuestions(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"questions": questions})
}

// CreateTest godoc
// POST /api/v1/admin/tests
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	def, err := h.tests.CreateTest(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"test": def})
}

// SetActive godoc
// PATCH /api/v1/admin/tests/:test_id/active
// The only change allowed on a test after creation.
func (h *TestHandler) SetActive(c *gin.Context) {
	id, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}
	var req model.SetTestActiveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	def, err := h.tests.SetActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": def})
}
