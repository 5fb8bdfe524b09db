package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-points-api/internal/models"
)

const (
	claimColumns           = `id, student_id, points_required, discount_percent, month_duration, status, requested_at, approved_at`
	onePendingClaimIndex   = "uq_discount_claims_one_pending"
	selectClaimForUpdate   = `SELECT ` + claimColumns + ` FROM discount_claims WHERE id = $1 FOR UPDATE`
	selectPendingByStudent = `SELECT EXISTS (SELECT 1 FROM discount_claims WHERE student_id = $1 AND status = 'pending')`
)

// ClaimRepository persists discount claims and performs their guarded transitions.
type ClaimRepository struct {
	db *sqlx.DB
}

// NewClaimRepository creates a new instance of ClaimRepository.
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// FindByID returns a claim by identifier.
func (r *ClaimRepository) FindByID(ctx context.Context, id string) (*models.DiscountClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM discount_claims WHERE id = $1`
	var claim models.DiscountClaim
	if err := r.db.GetContext(ctx, &claim, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return &claim, nil
}

// FindPendingByStudent returns the student's pending claim or nil.
func (r *ClaimRepository) FindPendingByStudent(ctx context.Context, studentID string) (*models.DiscountClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM discount_claims WHERE student_id = $1 AND status = 'pending' LIMIT 1`
	var claim models.DiscountClaim
	if err := r.db.GetContext(ctx, &claim, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending claim: %w", err)
	}
	return &claim, nil
}

// List returns claims newest first.
func (r *ClaimRepository) List(ctx context.Context, filter models.ClaimFilter) ([]models.DiscountClaim, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + claimColumns + ` FROM discount_claims`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY requested_at DESC, id DESC`

	var claims []models.DiscountClaim
	if err := r.db.SelectContext(ctx, &claims, query, args...); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// CreatePending inserts a pending claim after re-checking, under the student
// row lock, that the balance covers the snapshot and no claim is pending.
func (r *ClaimRepository) CreatePending(ctx context.Context, claim *models.DiscountClaim) (err error) {
	if claim == nil {
		return fmt.Errorf("claim payload is nil")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	balance, err := lockStudentBalance(ctx, tx, claim.StudentID)
	if err != nil {
		return err
	}
	if balance < claim.PointsRequired {
		err = ErrInsufficientPoints
		return err
	}

	var pending bool
	if err = tx.GetContext(ctx, &pending, selectPendingByStudent, claim.StudentID); err != nil {
		return fmt.Errorf("check pending claim: %w", err)
	}
	if pending {
		err = ErrClaimAlreadyPending
		return err
	}

	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	claim.Status = models.ClaimStatusPending
	claim.RequestedAt = time.Now().UTC()
	claim.ApprovedAt = nil

	const insertQuery = `INSERT INTO discount_claims (id, student_id, points_required, discount_percent, month_duration, status, requested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertQuery,
		claim.ID, claim.StudentID, claim.PointsRequired, claim.DiscountPercent, claim.MonthDuration, claim.Status, claim.RequestedAt,
	); err != nil {
		if isUniqueViolation(err, onePendingClaimIndex) {
			err = ErrClaimAlreadyPending
			return err
		}
		return fmt.Errorf("insert claim: %w", err)
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err, onePendingClaimIndex) {
			return ErrClaimAlreadyPending
		}
		return fmt.Errorf("commit claim: %w", err)
	}
	return nil
}

// Approve debits the claim's snapshot points and marks it approved in one
// transaction. Locks are taken student first, then claim, the same order
// every balance writer uses.
func (r *ClaimRepository) Approve(ctx context.Context, claimID string) (claim *models.DiscountClaim, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var studentID string
	if err = tx.GetContext(ctx, &studentID, `SELECT student_id FROM discount_claims WHERE id = $1`, claimID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("resolve claim student: %w", err)
	}

	balance, err := lockStudentBalance(ctx, tx, studentID)
	if err != nil {
		return nil, err
	}

	var locked models.DiscountClaim
	if err = tx.GetContext(ctx, &locked, selectClaimForUpdate, claimID); err != nil {
		return nil, fmt.Errorf("lock claim: %w", err)
	}
	if locked.Status != models.ClaimStatusPending {
		err = ErrClaimNotPending
		return nil, err
	}
	if balance < locked.PointsRequired {
		err = ErrInsufficientPoints
		return nil, err
	}

	now := time.Now().UTC()
	const debitQuery = `UPDATE users SET total_points = total_points - $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, debitQuery, studentID, locked.PointsRequired, now); err != nil {
		return nil, fmt.Errorf("debit student balance: %w", err)
	}

	const approveQuery = `UPDATE discount_claims SET status = 'approved', approved_at = $2 WHERE id = $1 AND status = 'pending'`
	if _, err = tx.ExecContext(ctx, approveQuery, claimID, now); err != nil {
		return nil, fmt.Errorf("mark claim approved: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve: %w", err)
	}

	locked.Status = models.ClaimStatusApproved
	locked.ApprovedAt = &now
	return &locked, nil
}

// Reject marks a pending claim rejected without touching the balance.
func (r *ClaimRepository) Reject(ctx context.Context, claimID string) (*models.DiscountClaim, error) {
	query := `UPDATE discount_claims SET status = 'rejected', approved_at = $2
WHERE id = $1 AND status = 'pending'
RETURNING ` + claimColumns
	var claim models.DiscountClaim
	if err := r.db.GetContext(ctx, &claim, query, claimID, time.Now().UTC()); err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("reject claim: %w", err)
		}
		if _, findErr := r.FindByID(ctx, claimID); findErr != nil {
			return nil, findErr
		}
		return nil, ErrClaimNotPending
	}
	return &claim, nil
}
