package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mocksh/mocksh-backend/internal/exam"
	"github.com/mocksh/mocksh-backend/internal/middleware"
	"github.com/mocksh/mocksh-backend/internal/model"
	"github.com/mocksh/mocksh-backend/internal/response"
	"github.com/mocksh/mocksh-backend/internal/service"
	"github.com/mocksh/mocksh-backend/internal/validator"
)

// ExamHandler exposes the test lifecycle over HTTP.
type ExamHandler struct {
	sessionService *service.SessionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessionService *service.SessionService) *ExamHandler {
	return &ExamHandler{sessionService: sessionService}
}

// Info godoc
// GET /api/v1/exam/info
// Describes the test offered by this deployment.
func (h *ExamHandler) Info(c *gin.Context) {
	response.Success(c, http.StatusOK, h.sessionService.Info())
}

// Start godoc
// POST /api/v1/exam/start
// Samples a fresh question set and starts the countdown.
func (h *ExamHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)

	state, err := h.sessionService.Start(c.Request.Context(), claims.UserID)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, state)
}

// Restart godoc
// POST /api/v1/exam/restart
// Discards the current attempt and starts a new one. Destructive; the client
// confirms with the user first.
func (h *ExamHandler) Restart(c *gin.Context) {
	claims := middleware.GetClaims(c)

	state, err := h.sessionService.Restart(c.Request.Context(), claims.UserID)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, state)
}

// Session godoc
// GET /api/v1/exam/session
// Returns the full session snapshot: state, questions, answers, cursor,
// countdown, and (after submission) the result and its save status.
func (h *ExamHandler) Session(c *gin.Context) {
	claims := middleware.GetClaims(c)
	response.Success(c, http.StatusOK, h.sessionService.Snapshot(c.Request.Context(), claims.UserID))
}

// Answer godoc
// POST /api/v1/exam/answer
// Records a selection. Multi-select toggles the option; single-select
// overwrites the previous choice.
func (h *ExamHandler) Answer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Answer(claims.UserID, req.QuestionID, *req.OptionIndex, req.MultiSelect); err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Navigate godoc
// POST /api/v1/exam/navigate
// Moves the cursor by a delta or jumps to an absolute index, clamped to the
// question range.
func (h *ExamHandler) Navigate(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	idx, err := h.sessionService.Navigate(claims.UserID, req.Delta, req.Index)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"current_index": idx})
}

// Submit godoc
// POST /api/v1/exam/submit
// Finalizes the attempt and returns the score immediately. Persistence runs
// in the background; poll the session endpoint for the save status.
func (h *ExamHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)

	res, err := h.sessionService.Submit(c.Request.Context(), claims.UserID)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Review godoc
// GET /api/v1/exam/review?filter=all|correct|wrong
// Returns the per-question review of the submitted attempt.
func (h *ExamHandler) Review(c *gin.Context) {
	claims := middleware.GetClaims(c)

	filter := exam.Filter(c.DefaultQuery("filter", string(exam.FilterAll)))
	switch filter {
	case exam.FilterAll, exam.FilterCorrect, exam.FilterWrong:
	default:
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	entries, err := h.sessionService.Review(claims.UserID, filter)
	if err != nil {
		failExamError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"filter":  filter,
		"entries": entries,
	})
}

// failExamError maps domain errors from the exam package onto HTTP codes.
func failExamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, exam.ErrAlreadyInProgress):
		response.Fail(c, http.StatusConflict, response.ErrTestInProgress)
	case errors.Is(err, exam.ErrNotInProgress), errors.Is(err, service.ErrNoSession):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveTest)
	case errors.Is(err, exam.ErrNotSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrTestNotSubmitted)
	case errors.Is(err, exam.ErrEmptyBank):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrBankEmpty)
	case errors.Is(err, exam.ErrUnknownQuestion),
		errors.Is(err, exam.ErrOptionOutOfRange),
		errors.Is(err, exam.ErrSelectModeMismatch):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidAnswer)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
