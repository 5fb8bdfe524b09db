package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-points-api/internal/models"
)

const scoreColumns = `id, lesson_id, student_id, group_id, points, teacher_id, created_at, updated_at`

// ScoreRepository persists lesson scores, one row per lesson and student.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new instance of ScoreRepository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert writes the score for (lesson, student). An existing row keeps its id
// and created_at; points, teacher, group and updated_at are overwritten.
func (r *ScoreRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, score *models.LessonScore) error {
	if score == nil {
		return fmt.Errorf("score payload is nil")
	}
	now := time.Now().UTC()
	if score.ID == "" {
		score.ID = uuid.NewString()
	}

	query := `INSERT INTO lesson_scores (` + scoreColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (lesson_id, student_id) DO UPDATE SET
	points = EXCLUDED.points,
	teacher_id = EXCLUDED.teacher_id,
	group_id = EXCLUDED.group_id,
	updated_at = EXCLUDED.updated_at
RETURNING ` + scoreColumns
	if err := sqlx.GetContext(ctx, r.exec(exec), score, query,
		score.ID, score.LessonID, score.StudentID, score.GroupID, score.Points, score.TeacherID, now,
	); err != nil {
		return fmt.Errorf("upsert lesson score: %w", err)
	}
	return nil
}

// ListByStudent returns all scores of a student, most recently updated first.
func (r *ScoreRepository) ListByStudent(ctx context.Context, studentID string) ([]models.LessonScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM lesson_scores WHERE student_id = $1 ORDER BY updated_at DESC, id`
	var scores []models.LessonScore
	if err := r.db.SelectContext(ctx, &scores, query, studentID); err != nil {
		return nil, fmt.Errorf("list scores by student: %w", err)
	}
	return scores, nil
}

// ListByLesson returns all scores recorded for a lesson.
func (r *ScoreRepository) ListByLesson(ctx context.Context, lessonID string) ([]models.LessonScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM lesson_scores WHERE lesson_id = $1 ORDER BY updated_at DESC, id`
	var scores []models.LessonScore
	if err := r.db.SelectContext(ctx, &scores, query, lessonID); err != nil {
		return nil, fmt.Errorf("list scores by lesson: %w", err)
	}
	return scores, nil
}
