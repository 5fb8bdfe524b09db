package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-points-api/internal/middleware"
	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/response"
)

type ledgerService interface {
	SubmitScore(ctx context.Context, actor models.Actor, req models.SubmitScoreRequest) (*models.LessonScore, error)
	ListScoresForStudent(ctx context.Context, actor models.Actor, studentID string) ([]models.LessonScore, error)
	ListScoresForLesson(ctx context.Context, actor models.Actor, lessonID string) ([]models.LessonScore, error)
}

// ScoreHandler exposes lesson score endpoints.
type ScoreHandler struct {
	service ledgerService
}

// NewScoreHandler constructs the handler.
func NewScoreHandler(svc ledgerService) *ScoreHandler {
	return &ScoreHandler{service: svc}
}

// Submit godoc
// @Summary Submit a lesson score
// @Description Creates or replaces the student's score for the lesson and recomputes their balance
// @Tags Scores
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body models.SubmitScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id}/scores [post]
func (h *ScoreHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, scorePayloadError(err))
		return
	}
	req.LessonID = c.Param("id")

	score, err := h.service.SubmitScore(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score)
}

// ListByLesson godoc
// @Summary List scores for a lesson
// @Tags Scores
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id}/scores [get]
func (h *ScoreHandler) ListByLesson(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	scores, err := h.service.ListScoresForLesson(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(scores))
	response.JSON(c, http.StatusOK, scores, middleware.ExtractMeta(c))
}

// ListByStudent godoc
// @Summary List scores for a student
// @Tags Scores
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/scores [get]
func (h *ScoreHandler) ListByStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	scores, err := h.service.ListScoresForStudent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(scores))
	response.JSON(c, http.StatusOK, scores, middleware.ExtractMeta(c))
}

// scorePayloadError reports a points value that is not a JSON integer as
// INVALID_SCORE; any other malformed body is a validation error.
func scorePayloadError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "points" {
		return appErrors.Wrap(err, appErrors.ErrInvalidScore.Code, appErrors.ErrInvalidScore.Status, "points must be an integer")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload")
}
