package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

type claimFixture struct {
	svc   *ClaimService
	shop  *ShopService
	agg   *AggregationService
	store *memStore
	inval *invalidationCounter
}

func newClaimFixture(t *testing.T) claimFixture {
	t.Helper()
	store := newMemStore()
	store.addGroup("g1", "t1")
	store.addLesson("l1", "g1")
	store.addLesson("l3", "g1")
	store.addStudent("s1", "g1", 0)
	store.addStudent("s2", "g1", 0)

	inval := &invalidationCounter{}
	shop := NewShopService(memShop{store}, nil, fastReads(), nil)
	svc := NewClaimService(memClaims{store}, store, shop, inval, nil, fastReads(), nil)
	agg := NewAggregationService(store, store, nil, inval, nil, nil, 0)
	return claimFixture{svc: svc, shop: shop, agg: agg, store: store, inval: inval}
}

// seedScore records a score and brings the stored balance in line with it.
func (f claimFixture) seedScore(t *testing.T, lessonID, studentID string, points int) {
	t.Helper()
	require.NoError(t, f.store.Upsert(context.Background(), nil, &models.LessonScore{LessonID: lessonID, StudentID: studentID, GroupID: "g1", Points: points}))
	_, err := f.agg.Recompute(context.Background(), studentID)
	require.NoError(t, err)
}

func studentActor(id string) models.Actor {
	return models.Actor{UserID: id, Role: models.RoleStudent}
}

func TestClaimApprovalDebitsSnapshot(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 45)

	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusPending, claim.Status)
	assert.Equal(t, 40, claim.PointsRequired)
	assert.Equal(t, 10, claim.DiscountPercent)
	assert.Equal(t, 1, claim.MonthDuration)
	assert.Nil(t, claim.ApprovedAt)
	assert.Equal(t, 45, f.store.total("s1"), "submission must not debit")

	approved, err := f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, 5, f.store.total("s1"))
	assert.Equal(t, 2, f.inval.count())
}

func TestSubmitClaimInsufficientPoints(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 30)

	_, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	assert.True(t, errors.Is(err, appErrors.ErrInsufficientPoints))
	assert.Empty(t, f.store.claims)
	assert.Equal(t, 30, f.store.total("s1"))
}

func TestSubmitClaimAllowsOnlyOnePending(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 90)

	_, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)

	_, err = f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	assert.True(t, errors.Is(err, appErrors.ErrClaimAlreadyPending))
	assert.Len(t, f.store.claims, 1)
}

func TestSubmitClaimAfterDecisionIsAllowed(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 90)

	first, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	_, err = f.svc.RejectClaim(context.Background(), adminActor, first.ID)
	require.NoError(t, err)

	second, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestApproveUsesSnapshotAfterShopChange(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 100)

	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)

	_, err = f.shop.Update(context.Background(), adminActor, models.ShopSettings{PointsRequired: 60, DiscountPercent: 15, MonthDuration: 2})
	require.NoError(t, err)

	approved, err := f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, approved.PointsRequired)
	assert.Equal(t, 10, approved.DiscountPercent)
	assert.Equal(t, 60, f.store.total("s1"))
}

func TestDecisionsOnTerminalClaimFail(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 100)

	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	_, err = f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	require.NoError(t, err)
	require.Equal(t, 60, f.store.total("s1"))

	_, err = f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	assert.True(t, errors.Is(err, appErrors.ErrClaimNotPending))
	_, err = f.svc.RejectClaim(context.Background(), adminActor, claim.ID)
	assert.True(t, errors.Is(err, appErrors.ErrClaimNotPending))

	assert.Equal(t, 60, f.store.total("s1"))
	assert.Equal(t, models.ClaimStatusApproved, f.store.claim(claim.ID).Status)

	_, err = f.svc.ApproveClaim(context.Background(), adminActor, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRejectLeavesBalance(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 50)

	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)

	rejected, err := f.svc.RejectClaim(context.Background(), adminActor, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.ApprovedAt)
	assert.Equal(t, 50, f.store.total("s1"))
}

func TestApproveInsufficientAfterScoreEditKeepsClaimPending(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 45)

	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	f.seedScore(t, "l1", "s1", 20)

	_, err = f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	assert.True(t, errors.Is(err, appErrors.ErrInsufficientPoints))
	assert.Equal(t, models.ClaimStatusPending, f.store.claim(claim.ID).Status)
	assert.Equal(t, 20, f.store.total("s1"))
}

func TestRecomputeAfterApprovalKeepsDebit(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 45)

	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	_, err = f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	require.NoError(t, err)

	total, err := f.agg.Recompute(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	f.seedScore(t, "l3", "s1", 10)
	assert.Equal(t, 15, f.store.total("s1"))
}

func TestApproveAmbiguousFailureThatCommitted(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 45)
	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)

	f.store.commitThenFail = errors.New("driver: bad connection")
	approved, err := f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, approved.Status)
	assert.Equal(t, 5, f.store.total("s1"), "debit applied exactly once")
}

func TestApproveAmbiguousFailureThatDidNotCommit(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 45)
	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)

	f.store.failOnce["Approve"] = errors.New("driver: bad connection")
	_, err = f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
	assert.Equal(t, models.ClaimStatusPending, f.store.claim(claim.ID).Status)
	assert.Equal(t, 45, f.store.total("s1"))

	approved, err := f.svc.ApproveClaim(context.Background(), adminActor, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, approved.Status)
	assert.Equal(t, 5, f.store.total("s1"))
}

func TestClaimAuthorization(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 45)

	_, err := f.svc.SubmitClaim(context.Background(), studentActor("s2"), "s1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.svc.SubmitClaim(context.Background(), adminActor, "s1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	claim, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)

	_, err = f.svc.ApproveClaim(context.Background(), teacherOne, claim.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.svc.RejectClaim(context.Background(), studentActor("s1"), claim.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, models.ClaimStatusPending, f.store.claim(claim.ID).Status)
}

func TestListClaimsScopesByRole(t *testing.T) {
	f := newClaimFixture(t)
	f.seedScore(t, "l1", "s1", 100)
	f.seedScore(t, "l1", "s2", 100)

	first, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	_, err = f.svc.RejectClaim(context.Background(), adminActor, first.ID)
	require.NoError(t, err)
	second, err := f.svc.SubmitClaim(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	_, err = f.svc.SubmitClaim(context.Background(), studentActor("s2"), "s2")
	require.NoError(t, err)

	all, err := f.svc.ListClaims(context.Background(), adminActor, models.ClaimFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	own, err := f.svc.ListClaims(context.Background(), studentActor("s1"), models.ClaimFilter{StudentID: "s2"})
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, second.ID, own[0].ID, "newest first")
	assert.Equal(t, first.ID, own[1].ID)

	_, err = f.svc.ListClaims(context.Background(), teacherOne, models.ClaimFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
