package models

import "time"

const (
	// MinScorePoints and MaxScorePoints bound a single lesson score.
	MinScorePoints = 0
	MaxScorePoints = 100
)

// LessonScore is the single score a student holds for a lesson.
type LessonScore struct {
	ID        string    `db:"id" json:"id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	Points    int       `db:"points" json:"points"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubmitScoreRequest carries a teacher's score for one student in one lesson.
// Points is a pointer so a missing value is distinguishable from zero.
type SubmitScoreRequest struct {
	LessonID  string `json:"-" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	GroupID   string `json:"group_id"`
	Points    *int   `json:"points" validate:"required"`
}
