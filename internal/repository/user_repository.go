package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-points-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, group_id, total_points, active, created_at, updated_at`

// UserRepository provides database access for users and student balances.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindStudent returns an active student or sql.ErrNoRows.
func (r *UserRepository) FindStudent(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND role = 'STUDENT' LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &user, nil
}

// ListStudents returns active students, optionally limited to one group. Rows
// come back in registration order so equal totals rank deterministically.
func (r *UserRepository) ListStudents(ctx context.Context, groupID string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'STUDENT' AND active = TRUE`
	var args []interface{}
	if groupID != "" {
		query += ` AND group_id = $1`
		args = append(args, groupID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return users, nil
}

// ListStudentIDs returns every student id, active or not, for reconciliation.
func (r *UserRepository) ListStudentIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM users WHERE role = 'STUDENT' ORDER BY id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	return ids, nil
}
