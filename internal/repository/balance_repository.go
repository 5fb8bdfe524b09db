package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Recomputation is the outcome of re-deriving one student's balance.
type Recomputation struct {
	StudentID string
	Previous  int
	Total     int
}

// Changed reports whether the stored balance was rewritten.
func (r Recomputation) Changed() bool { return r.Previous != r.Total }

// BalanceRepository maintains users.total_points as a cache over lesson scores
// and approved claims. Every write locks the student row first.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a new instance of BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Recompute re-derives the balance as earned minus spent, floored at zero, and
// stores it only when it differs. With a nil exec it runs in its own
// transaction; otherwise exec must be a transaction owned by the caller.
func (r *BalanceRepository) Recompute(ctx context.Context, exec sqlx.ExtContext, studentID string) (result Recomputation, err error) {
	if exec != nil {
		return recomputeBalance(ctx, exec, studentID)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Recomputation{}, fmt.Errorf("begin recompute transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if result, err = recomputeBalance(ctx, tx, studentID); err != nil {
		return Recomputation{}, err
	}
	if err = tx.Commit(); err != nil {
		return Recomputation{}, fmt.Errorf("commit recompute: %w", err)
	}
	return result, nil
}

func recomputeBalance(ctx context.Context, exec sqlx.ExtContext, studentID string) (Recomputation, error) {
	current, err := lockStudentBalance(ctx, exec, studentID)
	if err != nil {
		return Recomputation{}, err
	}

	var sums struct {
		Earned int `db:"earned"`
		Spent  int `db:"spent"`
	}
	const sumQuery = `SELECT
	(SELECT COALESCE(SUM(points), 0) FROM lesson_scores WHERE student_id = $1) AS earned,
	(SELECT COALESCE(SUM(points_required), 0) FROM discount_claims WHERE student_id = $1 AND status IN ('approved', 'used')) AS spent`
	if err := sqlx.GetContext(ctx, exec, &sums, sumQuery, studentID); err != nil {
		return Recomputation{}, fmt.Errorf("sum student points: %w", err)
	}

	total := sums.Earned - sums.Spent
	if total < 0 {
		total = 0
	}

	result := Recomputation{StudentID: studentID, Previous: current, Total: total}
	if !result.Changed() {
		return result, nil
	}

	const updateQuery = `UPDATE users SET total_points = $2, updated_at = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, updateQuery, studentID, total, time.Now().UTC()); err != nil {
		return Recomputation{}, fmt.Errorf("store student total: %w", err)
	}
	return result, nil
}

// lockStudentBalance takes the per-student row lock that serialises every
// balance mutation and returns the stored total.
func lockStudentBalance(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error) {
	const query = `SELECT total_points FROM users WHERE id = $1 AND role = 'STUDENT' FOR UPDATE`
	var total int
	if err := sqlx.GetContext(ctx, exec, &total, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("lock student balance: %w", err)
	}
	return total, nil
}
