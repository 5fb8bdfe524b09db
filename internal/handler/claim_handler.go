package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-points-api/internal/middleware"
	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/response"
)

type claimService interface {
	SubmitClaim(ctx context.Context, actor models.Actor, studentID string) (*models.DiscountClaim, error)
	ApproveClaim(ctx context.Context, actor models.Actor, claimID string) (*models.DiscountClaim, error)
	RejectClaim(ctx context.Context, actor models.Actor, claimID string) (*models.DiscountClaim, error)
	ListClaims(ctx context.Context, actor models.Actor, filter models.ClaimFilter) ([]models.DiscountClaim, error)
}

// ClaimHandler exposes the discount claim workflow.
type ClaimHandler struct {
	service claimService
}

// NewClaimHandler constructs the handler.
func NewClaimHandler(svc claimService) *ClaimHandler {
	return &ClaimHandler{service: svc}
}

// List godoc
// @Summary List discount claims
// @Description Admins see every claim, students only their own. Newest first.
// @Tags Claims
// @Produce json
// @Param studentId query string false "Student ID"
// @Param status query string false "pending, approved, rejected or used"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /claims [get]
func (h *ClaimHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.ClaimFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Status:    models.ClaimStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
	switch filter.Status {
	case "", models.ClaimStatusPending, models.ClaimStatusApproved, models.ClaimStatusRejected, models.ClaimStatusUsed:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown claim status"))
		return
	}

	claims, err := h.service.ListClaims(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(claims))
	response.JSON(c, http.StatusOK, claims, middleware.ExtractMeta(c))
}

// Submit godoc
// @Summary Request a discount
// @Description Creates a pending claim for the authenticated student using the current shop settings
// @Tags Claims
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims [post]
func (h *ClaimHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	claim, err := h.service.SubmitClaim(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, claim)
}

// Approve godoc
// @Summary Approve a pending claim
// @Description Debits the claim's points from the student's balance
// @Tags Claims
// @Produce json
// @Param id path string true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims/{id}/approve [post]
func (h *ClaimHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.ApproveClaim)
}

// Reject godoc
// @Summary Reject a pending claim
// @Tags Claims
// @Produce json
// @Param id path string true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims/{id}/reject [post]
func (h *ClaimHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.RejectClaim)
}

func (h *ClaimHandler) decide(c *gin.Context, decision func(context.Context, models.Actor, string) (*models.DiscountClaim, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	claim, err := decision(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, claim)
}
