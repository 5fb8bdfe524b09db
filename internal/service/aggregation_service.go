package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-points-api/internal/models"
	"github.com/noah-isme/lms-points-api/internal/repository"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
	"github.com/noah-isme/lms-points-api/pkg/jobs"
)

// JobTypeRecompute identifies queued balance recomputations.
const JobTypeRecompute = "ledger.recompute"

type balanceRepo interface {
	Recompute(ctx context.Context, exec sqlx.ExtContext, studentID string) (repository.Recomputation, error)
}

type studentIDLister interface {
	ListStudentIDs(ctx context.Context) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) (bool, error)
}

type leaderboardInvalidator interface {
	Invalidate(ctx context.Context)
}

// AggregationService keeps each student's stored balance equal to its
// derivation from lesson scores and approved claims.
type AggregationService struct {
	balances    balanceRepo
	students    studentIDLister
	queue       jobDispatcher
	leaderboard leaderboardInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	interval    time.Duration
}

// NewAggregationService constructs the aggregation service. queue and
// leaderboard may be nil.
func NewAggregationService(balances balanceRepo, students studentIDLister, queue jobDispatcher, leaderboard leaderboardInvalidator, metrics *MetricsService, logger *zap.Logger, interval time.Duration) *AggregationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregationService{
		balances:    balances,
		students:    students,
		queue:       queue,
		leaderboard: leaderboard,
		metrics:     metrics,
		logger:      logger,
		interval:    interval,
	}
}

// Recompute re-derives and stores one student's balance in its own
// transaction. Calling it again without an intervening change writes nothing.
func (s *AggregationService) Recompute(ctx context.Context, studentID string) (int, error) {
	result, err := s.balances.Recompute(ctx, nil, studentID)
	if err != nil {
		return 0, recomputeError(err)
	}
	s.afterRecompute(ctx, result)
	return result.Total, nil
}

// RecomputeWithin runs the recomputation inside the caller's transaction. The
// caller invalidates derived views once it commits.
func (s *AggregationService) RecomputeWithin(ctx context.Context, exec sqlx.ExtContext, studentID string) (repository.Recomputation, error) {
	result, err := s.balances.Recompute(ctx, exec, studentID)
	if err != nil {
		return repository.Recomputation{}, recomputeError(err)
	}
	s.metrics.RecordRecompute(result.Changed())
	return result, nil
}

// RecomputeForActor is the admin-triggered variant of Recompute.
func (s *AggregationService) RecomputeForActor(ctx context.Context, actor models.Actor, studentID string) (int, error) {
	if !actor.IsAdmin() {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only admins can trigger a recompute")
	}
	return s.Recompute(ctx, studentID)
}

// ReconcileAll enqueues a recomputation for every student and returns how many
// were accepted. Students already queued are skipped.
func (s *AggregationService) ReconcileAll(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, appErrors.Clone(appErrors.ErrInternal, "reconciliation queue missing")
	}
	ids, err := s.students.ListStudentIDs(ctx)
	if err != nil {
		return 0, appErrors.Unavailable(err, "failed to list students")
	}

	accepted := 0
	for _, id := range ids {
		ok, err := s.queue.Enqueue(jobs.Job{ID: id, Type: JobTypeRecompute, Key: id})
		if err != nil {
			return accepted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue recompute")
		}
		if ok {
			accepted++
		}
	}
	s.logger.Info("reconciliation pass enqueued", zap.Int("students", len(ids)), zap.Int("accepted", accepted))
	return accepted, nil
}

// StartReconciler runs ReconcileAll on the configured interval until ctx ends.
func (s *AggregationService) StartReconciler(ctx context.Context) {
	if s.interval <= 0 || s.queue == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ReconcileAll(ctx); err != nil {
					s.logger.Warn("reconciliation pass failed", zap.Error(err))
				}
			}
		}
	}()
}

// HandleJob is the queue handler for recompute jobs.
func (s *AggregationService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeRecompute {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	result, err := s.balances.Recompute(ctx, nil, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("skipping recompute for removed student", zap.String("student_id", job.ID))
			return nil
		}
		return err
	}
	if result.Changed() {
		s.logger.Warn("reconciliation corrected drifted balance",
			zap.String("student_id", result.StudentID),
			zap.Int("stored", result.Previous),
			zap.Int("derived", result.Total),
		)
	}
	s.afterRecompute(ctx, result)
	return nil
}

func (s *AggregationService) afterRecompute(ctx context.Context, result repository.Recomputation) {
	s.metrics.RecordRecompute(result.Changed())
	if result.Changed() && s.leaderboard != nil {
		s.leaderboard.Invalidate(ctx)
	}
}

func recomputeError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Unavailable(err, "failed to recompute balance")
}
