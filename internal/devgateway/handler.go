package devgateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rpsoft/examflow/internal/response"
	"github.com/rpsoft/examflow/internal/validator"
	"github.com/rs/zerolog"
)

// Handler serves the six gateway endpoints over the in-memory store.
type Handler struct {
	store *Store
	log   zerolog.Logger
}

func NewHandler(store *Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("component", "devgateway_handler").Logger(),
	}
}

type answerRequest struct {
	QuestionID       uuid.UUID `json:"question_id" binding:"required"`
	SelectedOptionID *string   `json:"selected_option_id"`
	TextAnswer       string    `json:"text_answer"`
}

type batchRequest struct {
	Answers []answerRequest `json:"answers" binding:"dive"`
}

func (r *answerRequest) toModel() model.Answer {
	return model.Answer{
		QuestionID:       r.QuestionID,
		SelectedOptionID: r.SelectedOptionID,
		TextAnswer:       r.TextAnswer,
	}
}

// GetExamView handles GET /exams/:id/view/.
func (h *Handler) GetExamView(c *gin.Context) {
	examID, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.store.ExamView(examID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetActiveAttempt handles GET /exams/:id/active-attempt/.
func (h *Handler) GetActiveAttempt(c *gin.Context) {
	examID, ok := parseID(c)
	if !ok {
		return
	}
	active, err := h.store.ActiveAttempt(examID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, active)
}

// StartAttempt handles POST /exams/:id/start/.
func (h *Handler) StartAttempt(c *gin.Context) {
	examID, ok := parseID(c)
	if !ok {
		return
	}
	attempt, err := h.store.StartAttempt(examID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, attempt)
}

// SaveAnswer handles POST /exam-attempts/:id/answers/.
func (h *Handler) SaveAnswer(c *gin.Context) {
	attemptID, ok := parseID(c)
	if !ok {
		return
	}
	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.store.SaveAnswers(attemptID, []model.Answer{req.toModel()}); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": 1})
}

// SaveAnswersBatch handles POST /exam-attempts/:id/answers/batch/.
func (h *Handler) SaveAnswersBatch(c *gin.Context) {
	attemptID, ok := parseID(c)
	if !ok {
		return
	}
	var req batchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	answers := make([]model.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, a.toModel())
	}
	if err := h.store.SaveAnswers(attemptID, answers); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": len(answers)})
}

// GradeAttempt handles POST /exam-attempts/:id/grade/.
func (h *Handler) GradeAttempt(c *gin.Context) {
	attemptID, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.store.Grade(attemptID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// fail maps store errors onto wire status and code.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrExamNotFound), errors.Is(err, ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, ErrNoActiveAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
	case errors.Is(err, ErrAttemptActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptActive)
	case errors.Is(err, ErrAttemptCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
	case errors.Is(err, ErrMaxAttempts):
		response.Fail(c, http.StatusForbidden, response.ErrNoAttemptsLeft)
	case errors.Is(err, ErrQuestionNotInExam):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInExam)
	default:
		h.log.Error().Err(err).Msg("Unhandled store error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
