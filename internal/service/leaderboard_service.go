package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-points-api/internal/models"
)

// Cached rankings live under a generation-scoped key. Invalidate bumps the
// generation before dropping old entries, so a read that loaded the roster
// before a write committed can only fill a key nobody reads any more.
const (
	leaderboardGenerationKey = "leaderboard:generation"
	leaderboardKeyPattern    = "leaderboard:v*"
)

func leaderboardKey(gen int64, groupID string) string {
	if groupID == "" {
		return fmt.Sprintf("leaderboard:v%d:all", gen)
	}
	return fmt.Sprintf("leaderboard:v%d:group:%s", gen, groupID)
}

type studentRoster interface {
	ListStudents(ctx context.Context, groupID string) ([]models.User, error)
}

// LeaderboardService serves ranked student views, cached until the next
// balance change.
type LeaderboardService struct {
	students studentRoster
	cache    *CacheService
	ttl      time.Duration
	reads    ReadPolicy
	logger   *zap.Logger
}

// NewLeaderboardService constructs the leaderboard service.
func NewLeaderboardService(students studentRoster, cache *CacheService, ttl time.Duration, reads ReadPolicy, logger *zap.Logger) *LeaderboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardService{students: students, cache: cache, ttl: ttl, reads: reads, logger: logger}
}

// Leaderboard ranks every active student, or only one group's when groupID is set.
func (s *LeaderboardService) Leaderboard(ctx context.Context, groupID string) ([]models.LeaderboardEntry, error) {
	gen, cacheable := s.cache.Generation(ctx, leaderboardGenerationKey)
	key := leaderboardKey(gen, groupID)

	var entries []models.LeaderboardEntry
	if cacheable && s.cache.Get(ctx, key, &entries) {
		return entries, nil
	}

	roster, err := readWithRetry(ctx, s.reads, func(ctx context.Context) ([]models.User, error) {
		return s.students.ListStudents(ctx, groupID)
	})
	if err != nil {
		return nil, lookupError(err, "group not found", "failed to load students")
	}

	ranked := Rank(roster)
	entries = make([]models.LeaderboardEntry, 0, len(ranked))
	for i, student := range ranked {
		entries = append(entries, models.LeaderboardEntry{
			Position:    i + 1,
			StudentID:   student.ID,
			FullName:    student.FullName,
			GroupID:     student.GroupID,
			TotalPoints: student.TotalPoints,
		})
	}

	if cacheable {
		s.cache.Set(ctx, key, entries, s.ttl)
	}
	return entries, nil
}

// Invalidate retires every cached leaderboard.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s == nil {
		return
	}
	s.cache.Bump(ctx, leaderboardGenerationKey)
	s.cache.Invalidate(ctx, leaderboardKeyPattern)
}

func entryPosition(entries []models.LeaderboardEntry, studentID string) int {
	for _, entry := range entries {
		if entry.StudentID == studentID {
			return entry.Position
		}
	}
	return 0
}
