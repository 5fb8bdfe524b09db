package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-points-api/internal/models"
	"github.com/noah-isme/lms-points-api/internal/repository"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/logger"
)

type claimRepo interface {
	FindByID(ctx context.Context, id string) (*models.DiscountClaim, error)
	FindPendingByStudent(ctx context.Context, studentID string) (*models.DiscountClaim, error)
	List(ctx context.Context, filter models.ClaimFilter) ([]models.DiscountClaim, error)
	CreatePending(ctx context.Context, claim *models.DiscountClaim) error
	Approve(ctx context.Context, claimID string) (*models.DiscountClaim, error)
	Reject(ctx context.Context, claimID string) (*models.DiscountClaim, error)
}

type shopSettingsSource interface {
	Get(ctx context.Context) (*models.ShopSettings, error)
}

// ClaimService runs the discount claim state machine: pending to approved or
// rejected, with the balance debit committed together with approval.
type ClaimService struct {
	claims      claimRepo
	students    studentDirectory
	shop        shopSettingsSource
	leaderboard leaderboardInvalidator
	metrics     *MetricsService
	reads       ReadPolicy
	logger      *zap.Logger
}

// NewClaimService constructs the claim service.
func NewClaimService(claims claimRepo, students studentDirectory, shop shopSettingsSource, leaderboard leaderboardInvalidator, metrics *MetricsService, reads ReadPolicy, logger *zap.Logger) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimService{
		claims:      claims,
		students:    students,
		shop:        shop,
		leaderboard: leaderboard,
		metrics:     metrics,
		reads:       reads,
		logger:      logger,
	}
}

// SubmitClaim creates a pending claim for the acting student, snapshotting
// the current shop settings.
func (s *ClaimService) SubmitClaim(ctx context.Context, actor models.Actor, studentID string) (*models.DiscountClaim, error) {
	if actor.Role != models.RoleStudent || !actor.IsSelf(studentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only claim discounts for themselves")
	}
	if _, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.User, error) {
		return s.students.FindStudent(ctx, studentID)
	}); err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}

	settings, err := s.shop.Get(ctx)
	if err != nil {
		return nil, err
	}

	claim := &models.DiscountClaim{
		StudentID:       studentID,
		PointsRequired:  settings.PointsRequired,
		DiscountPercent: settings.DiscountPercent,
		MonthDuration:   settings.MonthDuration,
	}
	if err := s.claims.CreatePending(ctx, claim); err != nil {
		mapped := claimWriteError(err, "failed to submit claim")
		s.metrics.RecordClaimEvent("submit", appErrors.FromError(mapped).Code)
		return nil, mapped
	}

	s.metrics.RecordClaimEvent("submit", "ok")
	logger.For(ctx, s.logger).Info("discount claim submitted",
		zap.String("claim_id", claim.ID),
		zap.String("student_id", studentID),
		zap.Int("points_required", claim.PointsRequired),
	)
	return claim, nil
}

// ApproveClaim debits the claim's snapshot points and marks it approved.
func (s *ClaimService) ApproveClaim(ctx context.Context, actor models.Actor, claimID string) (*models.DiscountClaim, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can approve claims")
	}

	claim, err := s.claims.Approve(ctx, claimID)
	if err != nil {
		claim, err = s.resolveDecision(ctx, claimID, models.ClaimStatusApproved, err)
		if err != nil {
			s.metrics.RecordClaimEvent("approve", appErrors.FromError(err).Code)
			return nil, err
		}
	}

	s.metrics.RecordClaimEvent("approve", "ok")
	if s.leaderboard != nil {
		s.leaderboard.Invalidate(ctx)
	}
	logger.For(ctx, s.logger).Info("discount claim approved",
		zap.String("claim_id", claim.ID),
		zap.String("student_id", claim.StudentID),
		zap.Int("points_debited", claim.PointsRequired),
		zap.String("admin_id", actor.UserID),
	)
	return claim, nil
}

// RejectClaim closes a pending claim without changing the balance.
func (s *ClaimService) RejectClaim(ctx context.Context, actor models.Actor, claimID string) (*models.DiscountClaim, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can reject claims")
	}

	claim, err := s.claims.Reject(ctx, claimID)
	if err != nil {
		claim, err = s.resolveDecision(ctx, claimID, models.ClaimStatusRejected, err)
		if err != nil {
			s.metrics.RecordClaimEvent("reject", appErrors.FromError(err).Code)
			return nil, err
		}
	}

	s.metrics.RecordClaimEvent("reject", "ok")
	logger.For(ctx, s.logger).Info("discount claim rejected",
		zap.String("claim_id", claim.ID),
		zap.String("student_id", claim.StudentID),
		zap.String("admin_id", actor.UserID),
	)
	return claim, nil
}

// ListClaims returns claims newest first. Admins see every claim, students
// only their own.
func (s *ClaimService) ListClaims(ctx context.Context, actor models.Actor, filter models.ClaimFilter) ([]models.DiscountClaim, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "claims are visible to admins and their students only")
	}

	claims, err := readWithRetry(ctx, s.reads, func(ctx context.Context) ([]models.DiscountClaim, error) {
		return s.claims.List(ctx, filter)
	})
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load claims")
	}
	return claims, nil
}

// resolveDecision maps a failed transition. When the failure says nothing
// about whether the write landed, the claim is re-read and the call counts as
// successful only if the claim already carries the target status.
func (s *ClaimService) resolveDecision(ctx context.Context, claimID string, target models.ClaimStatus, cause error) (*models.DiscountClaim, error) {
	if mapped, known := knownClaimError(cause); known {
		return nil, mapped
	}

	current, err := readWithRetry(ctx, s.reads, func(ctx context.Context) (*models.DiscountClaim, error) {
		return s.claims.FindByID(ctx, claimID)
	})
	if err == nil && current.Status == target {
		logger.For(ctx, s.logger).Warn("claim transition reported failure but had committed",
			zap.String("claim_id", claimID),
			zap.String("status", string(target)),
			zap.Error(cause),
		)
		return current, nil
	}
	logger.For(ctx, s.logger).Error("claim transition failed", zap.String("claim_id", claimID), zap.String("target", string(target)), zap.Error(cause))
	return nil, appErrors.Unavailable(cause, "claim decision could not be confirmed")
}

func knownClaimError(err error) (error, bool) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "claim not found"), true
	case errors.Is(err, repository.ErrClaimNotPending):
		return appErrors.Clone(appErrors.ErrClaimNotPending, ""), true
	case errors.Is(err, repository.ErrInsufficientPoints):
		return appErrors.Clone(appErrors.ErrInsufficientPoints, "balance no longer covers this claim"), true
	}
	return nil, false
}

func claimWriteError(err error, failure string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	case errors.Is(err, repository.ErrInsufficientPoints):
		return appErrors.Clone(appErrors.ErrInsufficientPoints, "")
	case errors.Is(err, repository.ErrClaimAlreadyPending):
		return appErrors.Clone(appErrors.ErrClaimAlreadyPending, "")
	}
	return appErrors.Unavailable(err, failure)
}
