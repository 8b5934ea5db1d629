package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/validator"
)

// AttemptHandler exposes the attempt lifecycle to students.
type AttemptHandler struct {
	attempts AttemptService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{attempts: attempts, log: log.With().Str("component", "attempt_handler").Logger()}
}

// Start godoc
// POST /api/v1/student/tests/:test_id/attempts
// Creates an attempt and starts section 1 on the server clock.
func (h *AttemptHandler) Start(c *gin.Context) {
	testID, ok := uuidParam(c, "test_id")
	if !ok {
		return
	}

	a, err := h.attempts.Start(c.Request.Context(), middleware.GetActor(c), testID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attempt": a, "state": a.State().String()})
}

// StartSection godoc
// POST /api/v1/student/attempts/:attempt_id/sections/:section/start
func (h *AttemptHandler) StartSection(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}
	n, ok := sectionParam(c)
	if !ok {
		return
	}

	a, err := h.attempts.StartSection(c.Request.Context(), middleware.GetActor(c), id, n)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": a, "state": a.State().String()})
}

// SubmitSection godoc
// POST /api/v1/student/attempts/:attempt_id/sections/:section/submit
// Body: {answers: [{question_id, selected_index}]}
func (h *AttemptHandler) SubmitSection(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}
	n, ok := sectionParam(c)
	if !ok {
		return
	}
	var req model.SubmitSectionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.attempts.SubmitSection(c.Request.Context(), middleware.GetActor(c), id, n, req.ToAnswers())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Autosave godoc
// PUT /api/v1/student/attempts/:attempt_id/answers
// HTTP fallback for clients without a WebSocket.
func (h *AttemptHandler) Autosave(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}
	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	n, err := h.attempts.Autosave(c.Request.Context(), middleware.GetActor(c), id, req.QuestionID, *req.SelectedIndex)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"section": n, "status": "saved"})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	a, err := h.attempts.GetAttempt(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": a, "state": a.State().String()})
}

// GetState godoc
// GET /api/v1/student/attempts/:attempt_id/state
// Timer and autosaved answers for resuming. An expired section is submitted first.
func (h *AttemptHandler) GetState(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	view, err := h.attempts.GetState(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetResult godoc
// GET /api/v1/student/attempts/:attempt_id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	res, err := h.attempts.GetResult(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// ListMine godoc
// GET /api/v1/student/attempts?test_id=
func (h *AttemptHandler) ListMine(c *gin.Context) {
	var q model.ListAttemptsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var testID *uuid.UUID
	if q.TestID != "" {
		id := uuid.MustParse(q.TestID)
		testID = &id
	}

	attempts, err := h.attempts.ListMine(c.Request.Context(), middleware.GetActor(c), testID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
