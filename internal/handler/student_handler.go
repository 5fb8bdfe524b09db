package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-points-api/internal/models"
	"github.com/noah-isme/lms-points-api/pkg/response"
)

type standingService interface {
	Standing(ctx context.Context, actor models.Actor, studentID string) (*models.Standing, error)
}

type recomputeService interface {
	RecomputeForActor(ctx context.Context, actor models.Actor, studentID string) (int, error)
}

// StudentHandler serves per-student balance views.
type StudentHandler struct {
	standing  standingService
	recompute recomputeService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(standing standingService, recompute recomputeService) *StudentHandler {
	return &StudentHandler{standing: standing, recompute: recompute}
}

// Standing godoc
// @Summary Student standing
// @Description Balance, group and overall rank, and discount eligibility
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/standing [get]
func (h *StudentHandler) Standing(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	standing, err := h.standing.Standing(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing)
}

// Recompute godoc
// @Summary Recompute a student's balance
// @Description Re-derives total points from lesson scores and approved claims
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/recompute [post]
func (h *StudentHandler) Recompute(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	studentID := c.Param("id")
	total, err := h.recompute.RecomputeForActor(c.Request.Context(), actor, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": studentID, "total_points": total})
}
