package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-points-api/internal/middleware"
	"github.com/noah-isme/lms-points-api/internal/models"
	"github.com/noah-isme/lms-points-api/internal/service"
	"github.com/noah-isme/lms-points-api/pkg/export"
	"github.com/noah-isme/lms-points-api/pkg/response"
)

type leaderboardService interface {
	Leaderboard(ctx context.Context, groupID string) ([]models.LeaderboardEntry, error)
	Export(ctx context.Context, actor models.Actor, groupID string, format export.Format) (*service.ExportFile, error)
}

// LeaderboardHandler serves ranked student lists.
type LeaderboardHandler struct {
	service leaderboardService
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(svc leaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: svc}
}

// Get godoc
// @Summary Leaderboard
// @Description Students ranked by total points, overall or within one group
// @Tags Leaderboard
// @Produce json
// @Param groupId query string false "Group ID"
// @Success 200 {object} response.Envelope
// @Router /leaderboard [get]
func (h *LeaderboardHandler) Get(c *gin.Context) {
	groupID := strings.TrimSpace(c.Query("groupId"))
	entries, err := h.service.Leaderboard(c.Request.Context(), groupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if groupID != "" {
		middleware.SetMeta(c, "group_id", groupID)
	}
	middleware.SetMeta(c, "count", len(entries))
	response.JSON(c, http.StatusOK, entries, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export leaderboard
// @Description Download the leaderboard as CSV or PDF
// @Tags Leaderboard
// @Produce text/csv
// @Produce application/pdf
// @Param groupId query string false "Group ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /leaderboard/export [get]
func (h *LeaderboardHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	format := export.Format(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(export.FormatCSV)))))
	file, err := h.service.Export(c.Request.Context(), actor, strings.TrimSpace(c.Query("groupId")), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
