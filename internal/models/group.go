package models

import "time"

// Group is a class of students taught by one teacher.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Lesson belongs to exactly one group.
type Lesson struct {
	ID          string    `db:"id" json:"id"`
	GroupID     string    `db:"group_id" json:"group_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	MaterialURL *string   `db:"material_url" json:"material_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
