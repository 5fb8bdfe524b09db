package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-points-api/internal/models"
	"github.com/noah-isme/lms-points-api/internal/repository"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/logger"
)

type scoreRepo interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, score *models.LessonScore) error
	ListByStudent(ctx context.Context, studentID string) ([]models.LessonScore, error)
	ListByLesson(ctx context.Context, lessonID string) ([]models.LessonScore, error)
}

type lessonDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	FindLesson(ctx context.Context, id string) (*models.Lesson, error)
}

type studentDirectory interface {
	FindStudent(ctx context.Context, id string) (*models.User, error)
}

type balanceRecomputer interface {
	RecomputeWithin(ctx context.Context, exec sqlx.ExtContext, studentID string) (repository.Recomputation, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// LedgerConfig bounds score values.
type LedgerConfig struct {
	MaxScore int
}

// LedgerService records lesson scores and keeps balances in step with them.
type LedgerService struct {
	tx          txProvider
	scores      scoreRepo
	lessons     lessonDirectory
	students    studentDirectory
	aggregation balanceRecomputer
	leaderboard leaderboardInvalidator
	validator   *validator.Validate
	metrics     *MetricsService
	reads       ReadPolicy
	logger      *zap.Logger
	cfg         LedgerConfig
}

// NewLedgerService constructs the ledger service.
func NewLedgerService(
	tx txProvider,
	scores scoreRepo,
	lessons lessonDirectory,
	students studentDirectory,
	aggregation balanceRecomputer,
	leaderboard leaderboardInvalidator,
	validate *validator.Validate,
	metrics *MetricsService,
	reads ReadPolicy,
	logger *zap.Logger,
	cfg LedgerConfig,
) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = models.MaxScorePoints
	}
	return &LedgerService{
		tx:          tx,
		scores:      scores,
		lessons:     lessons,
		students:    students,
		aggregation: aggregation,
		leaderboard: leaderboard,
		validator:   validate,
		metrics:     metrics,
		reads:       reads,
		logger:      logger,
		cfg:         cfg,
	}
}

// SubmitScore upserts the score for (lesson, student) and recomputes the
// student's balance in the same transaction.
func (s *LedgerService) SubmitScore(ctx context.Context, actor models.Actor, req models.SubmitScoreRequest) (score *models.LessonScore, err error) {
	if actor.Role != models.RoleTeacher && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers and admins can submit scores")
	}
	if req.Points == nil || *req.Points < models.MinScorePoints || *req.Points > s.cfg.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrInvalidScore, fmt.Sprintf("points must be an integer between %d and %d", models.MinScorePoints, s.cfg.MaxScore))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}

	lesson, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.Lesson, error) {
		return s.lessons.FindLesson(ctx, req.LessonID)
	})
	if err != nil {
		return nil, lookupError(err, "lesson not found", "failed to load lesson")
	}
	if err := s.ensureTeachesGroup(ctx, actor, lesson.GroupID); err != nil {
		return nil, err
	}

	student, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.User, error) {
		return s.students.FindStudent(ctx, req.StudentID)
	})
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	if req.GroupID != "" && req.GroupID != lesson.GroupID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group does not match the lesson's group")
	}
	if student.GroupID == nil || *student.GroupID != lesson.GroupID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not a member of the lesson's group")
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	score = &models.LessonScore{
		LessonID:  lesson.ID,
		StudentID: student.ID,
		GroupID:   lesson.GroupID,
		Points:    *req.Points,
		TeacherID: actor.UserID,
	}
	if err = s.scores.Upsert(ctx, tx, score); err != nil {
		err = appErrors.Unavailable(err, "failed to save score")
		return nil, err
	}
	result, err := s.aggregation.RecomputeWithin(ctx, tx, student.ID)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Unavailable(err, "failed to commit score")
		return nil, err
	}

	s.metrics.RecordScoreWrite()
	if result.Changed() && s.leaderboard != nil {
		s.leaderboard.Invalidate(ctx)
	}
	logger.For(ctx, s.logger).Info("score recorded",
		zap.String("lesson_id", score.LessonID),
		zap.String("student_id", score.StudentID),
		zap.Int("points", score.Points),
		zap.Int("total_points", result.Total),
		zap.String("teacher_id", actor.UserID),
	)
	return score, nil
}

// ListScoresForStudent returns every score of a student. Students may only
// read their own.
func (s *LedgerService) ListScoresForStudent(ctx context.Context, actor models.Actor, studentID string) ([]models.LessonScore, error) {
	if actor.Role == models.RoleStudent && !actor.IsSelf(studentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own scores")
	}
	if _, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.User, error) {
		return s.students.FindStudent(ctx, studentID)
	}); err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}

	scores, err := readWithRetry(ctx, s.reads, func(ctx context.Context) ([]models.LessonScore, error) {
		return s.scores.ListByStudent(ctx, studentID)
	})
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load scores")
	}
	return scores, nil
}

// ListScoresForLesson returns every score recorded for a lesson.
func (s *LedgerService) ListScoresForLesson(ctx context.Context, actor models.Actor, lessonID string) ([]models.LessonScore, error) {
	if actor.Role != models.RoleTeacher && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers and admins can view lesson scores")
	}
	lesson, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.Lesson, error) {
		return s.lessons.FindLesson(ctx, lessonID)
	})
	if err != nil {
		return nil, lookupError(err, "lesson not found", "failed to load lesson")
	}
	if err := s.ensureTeachesGroup(ctx, actor, lesson.GroupID); err != nil {
		return nil, err
	}

	scores, err := readWithRetry(ctx, s.reads, func(ctx context.Context) ([]models.LessonScore, error) {
		return s.scores.ListByLesson(ctx, lessonID)
	})
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load scores")
	}
	return scores, nil
}

func (s *LedgerService) ensureTeachesGroup(ctx context.Context, actor models.Actor, groupID string) error {
	if actor.IsAdmin() {
		return nil
	}
	group, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.Group, error) {
		return s.lessons.FindByID(ctx, groupID)
	})
	if err != nil {
		return lookupError(err, "group not found", "failed to load group")
	}
	if group.TeacherID == nil || *group.TeacherID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "teacher does not teach this group")
	}
	return nil
}
