package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-points-api/internal/models"
)

// GroupRepository reads groups and their lessons.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates a new instance of GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, teacher_id, created_at, updated_at FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// FindLesson returns a lesson by identifier.
func (r *GroupRepository) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	const query = `SELECT id, group_id, title, description, material_url, created_at FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson: %w", err)
	}
	return &lesson, nil
}
