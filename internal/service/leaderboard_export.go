package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/export"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Name        string
	ContentType string
	Body        []byte
}

// Export renders the leaderboard as CSV or PDF for teachers and admins.
func (s *LeaderboardService) Export(ctx context.Context, actor models.Actor, groupID string, format export.Format) (*ExportFile, error) {
	if actor.Role != models.RoleTeacher && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers and admins can export the leaderboard")
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	entries, err := s.Leaderboard(ctx, groupID)
	if err != nil {
		return nil, err
	}

	title := "Leaderboard"
	scope := "all"
	if groupID != "" {
		title = "Leaderboard - group " + groupID
		scope = groupID
	}
	table := export.Table{
		Title:   title,
		Headers: []string{"Position", "Student", "Group", "Points"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, entry := range entries {
		group := ""
		if entry.GroupID != nil {
			group = *entry.GroupID
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(entry.Position),
			entry.FullName,
			group,
			strconv.Itoa(entry.TotalPoints),
		})
	}

	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render leaderboard")
	}
	return &ExportFile{
		Name:        fmt.Sprintf("leaderboard-%s-%s.%s", scope, time.Now().UTC().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}
