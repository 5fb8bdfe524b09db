package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

type leaderboardReader interface {
	Leaderboard(ctx context.Context, groupID string) ([]models.LeaderboardEntry, error)
}

type pendingClaimFinder interface {
	FindPendingByStudent(ctx context.Context, studentID string) (*models.DiscountClaim, error)
}

// StandingService builds the student dashboard summary.
type StandingService struct {
	students    studentDirectory
	leaderboard leaderboardReader
	claims      pendingClaimFinder
	shop        shopSettingsSource
	reads       ReadPolicy
	logger      *zap.Logger
}

// NewStandingService constructs the standing service.
func NewStandingService(students studentDirectory, leaderboard leaderboardReader, claims pendingClaimFinder, shop shopSettingsSource, reads ReadPolicy, logger *zap.Logger) *StandingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandingService{
		students:    students,
		leaderboard: leaderboard,
		claims:      claims,
		shop:        shop,
		reads:       reads,
		logger:      logger,
	}
}

// Standing returns the student's balance, positions and whether a claim can
// be submitted right now.
func (s *StandingService) Standing(ctx context.Context, actor models.Actor, studentID string) (*models.Standing, error) {
	if actor.Role == models.RoleStudent && !actor.IsSelf(studentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own standing")
	}

	student, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.User, error) {
		return s.students.FindStudent(ctx, studentID)
	})
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}

	overall, err := s.leaderboard.Leaderboard(ctx, "")
	if err != nil {
		return nil, err
	}
	groupPosition := 0
	if student.GroupID != nil {
		group, err := s.leaderboard.Leaderboard(ctx, *student.GroupID)
		if err != nil {
			return nil, err
		}
		groupPosition = entryPosition(group, studentID)
	}

	settings, err := s.shop.Get(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.DiscountClaim, error) {
		return s.claims.FindPendingByStudent(ctx, studentID)
	})
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load pending claim")
	}

	return &models.Standing{
		StudentID:       studentID,
		TotalPoints:     student.TotalPoints,
		GroupPosition:   groupPosition,
		OverallPosition: entryPosition(overall, studentID),
		PointsRequired:  settings.PointsRequired,
		PendingClaim:    pending,
		CanClaim:        pending == nil && student.TotalPoints >= settings.PointsRequired,
	}, nil
}
