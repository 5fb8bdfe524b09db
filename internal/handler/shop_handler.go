package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/response"
)

type shopService interface {
	Get(ctx context.Context) (*models.ShopSettings, error)
	Update(ctx context.Context, actor models.Actor, req models.ShopSettings) (*models.ShopSettings, error)
}

// ShopHandler exposes the discount shop configuration.
type ShopHandler struct {
	service shopService
}

// NewShopHandler constructs the handler.
func NewShopHandler(svc shopService) *ShopHandler {
	return &ShopHandler{service: svc}
}

// Get godoc
// @Summary Current shop settings
// @Tags Shop
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /shop/settings [get]
func (h *ShopHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}

// Update godoc
// @Summary Update shop settings
// @Description Existing claims keep the values captured when they were submitted
// @Tags Shop
// @Accept json
// @Produce json
// @Param payload body models.ShopSettings true "Shop settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /shop/settings [put]
func (h *ShopHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.ShopSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid shop settings payload"))
		return
	}
	settings, err := h.service.Update(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}
