package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-points-api/internal/models"
	"github.com/noah-isme/lms-points-api/internal/repository"
	"github.com/noah-isme/lms-points-api/pkg/jobs"
)

// memStore is an in-memory stand-in for the Postgres repositories. It applies
// the same balance rules as the SQL so service tests can assert end states.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	groups   map[string]*models.Group
	lessons  map[string]*models.Lesson
	scores   map[string]*models.LessonScore
	claims   map[string]*models.DiscountClaim
	shop     *models.ShopSettings
	seq      int
	writes   int
	fail     map[string]error
	failOnce map[string]error
	// commitThenFail makes Approve/Reject apply the change and still report failure.
	commitThenFail error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*models.User),
		groups:   make(map[string]*models.Group),
		lessons:  make(map[string]*models.Lesson),
		scores:   make(map[string]*models.LessonScore),
		claims:   make(map[string]*models.DiscountClaim),
		fail:     make(map[string]error),
		failOnce: make(map[string]error),
	}
}

func (s *memStore) injected(op string) error {
	if err, ok := s.failOnce[op]; ok {
		delete(s.failOnce, op)
		return err
	}
	return s.fail[op]
}

func (s *memStore) addGroup(id, teacherID string) {
	s.groups[id] = &models.Group{ID: id, Name: "Group " + id, TeacherID: &teacherID}
}

func (s *memStore) addLesson(id, groupID string) {
	s.lessons[id] = &models.Lesson{ID: id, GroupID: groupID, Title: "Lesson " + id}
}

func (s *memStore) addStudent(id, groupID string, total int) {
	g := groupID
	s.seq++
	s.users[id] = &models.User{
		ID:          id,
		FullName:    "Student " + id,
		Role:        models.RoleStudent,
		GroupID:     &g,
		TotalPoints: total,
		Active:      true,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, s.seq, 0, time.UTC),
	}
}

func (s *memStore) total(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].TotalPoints
}

func (s *memStore) claim(id string) models.DiscountClaim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.claims[id]
}

// students

func (s *memStore) FindStudent(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("FindStudent"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok || u.Role != models.RoleStudent {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (s *memStore) ListStudents(ctx context.Context, groupID string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListStudents"); err != nil {
		return nil, err
	}
	var out []models.User
	for _, u := range s.users {
		if u.Role != models.RoleStudent || !u.Active {
			continue
		}
		if groupID != "" && (u.GroupID == nil || *u.GroupID != groupID) {
			continue
		}
		out = append(out, *u)
	}
	sortByCreated(out)
	return out, nil
}

func (s *memStore) ListStudentIDs(ctx context.Context) ([]string, error) {
	students, err := s.ListStudents(ctx, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(students))
	for _, u := range students {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func sortByCreated(users []models.User) {
	for i := 1; i < len(users); i++ {
		for j := i; j > 0 && users[j].CreatedAt.Before(users[j-1].CreatedAt); j-- {
			users[j], users[j-1] = users[j-1], users[j]
		}
	}
}

// groups and lessons

type memGroups struct{ *memStore }

func (g memGroups) FindByID(ctx context.Context, id string) (*models.Group, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	group, ok := g.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return group, nil
}

func (g memGroups) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("FindLesson"); err != nil {
		return nil, err
	}
	lesson, ok := g.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return lesson, nil
}

// scores

func scoreKey(lessonID, studentID string) string { return lessonID + "|" + studentID }

func (s *memStore) Upsert(ctx context.Context, exec sqlx.ExtContext, score *models.LessonScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Upsert"); err != nil {
		return err
	}
	now := time.Now().UTC()
	key := scoreKey(score.LessonID, score.StudentID)
	if existing, ok := s.scores[key]; ok {
		existing.Points = score.Points
		existing.TeacherID = score.TeacherID
		existing.UpdatedAt = now
		*score = *existing
		return nil
	}
	s.seq++
	score.ID = fmt.Sprintf("score-%d", s.seq)
	score.CreatedAt = now
	score.UpdatedAt = now
	stored := *score
	s.scores[key] = &stored
	return nil
}

func (s *memStore) ListByStudent(ctx context.Context, studentID string) ([]models.LessonScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LessonScore
	for _, sc := range s.scores {
		if sc.StudentID == studentID {
			out = append(out, *sc)
		}
	}
	return out, nil
}

func (s *memStore) ListByLesson(ctx context.Context, lessonID string) ([]models.LessonScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LessonScore
	for _, sc := range s.scores {
		if sc.LessonID == lessonID {
			out = append(out, *sc)
		}
	}
	return out, nil
}

// balances

func (s *memStore) Recompute(ctx context.Context, exec sqlx.ExtContext, studentID string) (repository.Recomputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Recompute"); err != nil {
		return repository.Recomputation{}, err
	}
	u, ok := s.users[studentID]
	if !ok || u.Role != models.RoleStudent {
		return repository.Recomputation{}, sql.ErrNoRows
	}
	earned, spent := 0, 0
	for _, sc := range s.scores {
		if sc.StudentID == studentID {
			earned += sc.Points
		}
	}
	for _, c := range s.claims {
		if c.StudentID == studentID && (c.Status == models.ClaimStatusApproved || c.Status == models.ClaimStatusUsed) {
			spent += c.PointsRequired
		}
	}
	total := earned - spent
	if total < 0 {
		total = 0
	}
	result := repository.Recomputation{StudentID: studentID, Previous: u.TotalPoints, Total: total}
	if result.Changed() {
		u.TotalPoints = total
		s.writes++
	}
	return result, nil
}

// claims

type memClaims struct{ *memStore }

func (c memClaims) FindByID(ctx context.Context, id string) (*models.DiscountClaim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("FindClaim"); err != nil {
		return nil, err
	}
	claim, ok := c.claims[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *claim
	return &copied, nil
}

func (c memClaims) FindPendingByStudent(ctx context.Context, studentID string) (*models.DiscountClaim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, claim := range c.claims {
		if claim.StudentID == studentID && claim.Status == models.ClaimStatusPending {
			copied := *claim
			return &copied, nil
		}
	}
	return nil, nil
}

func (c memClaims) List(ctx context.Context, filter models.ClaimFilter) ([]models.DiscountClaim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("ListClaims"); err != nil {
		return nil, err
	}
	var out []models.DiscountClaim
	for _, claim := range c.claims {
		if filter.StudentID != "" && claim.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		out = append(out, *claim)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].RequestedAt.After(out[j-1].RequestedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (c memClaims) CreatePending(ctx context.Context, claim *models.DiscountClaim) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreatePending"); err != nil {
		return err
	}
	u, ok := c.users[claim.StudentID]
	if !ok {
		return sql.ErrNoRows
	}
	if u.TotalPoints < claim.PointsRequired {
		return repository.ErrInsufficientPoints
	}
	for _, existing := range c.claims {
		if existing.StudentID == claim.StudentID && existing.Status == models.ClaimStatusPending {
			return repository.ErrClaimAlreadyPending
		}
	}
	c.seq++
	claim.ID = fmt.Sprintf("claim-%d", c.seq)
	claim.Status = models.ClaimStatusPending
	claim.RequestedAt = time.Date(2024, 2, 1, 0, 0, c.seq, 0, time.UTC)
	stored := *claim
	c.claims[claim.ID] = &stored
	return nil
}

func (c memClaims) Approve(ctx context.Context, claimID string) (*models.DiscountClaim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("Approve"); err != nil {
		return nil, err
	}
	claim, ok := c.claims[claimID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, repository.ErrClaimNotPending
	}
	u := c.users[claim.StudentID]
	if u.TotalPoints < claim.PointsRequired {
		return nil, repository.ErrInsufficientPoints
	}
	u.TotalPoints -= claim.PointsRequired
	now := time.Now().UTC()
	claim.Status = models.ClaimStatusApproved
	claim.ApprovedAt = &now
	if c.commitThenFail != nil {
		return nil, c.commitThenFail
	}
	copied := *claim
	return &copied, nil
}

func (c memClaims) Reject(ctx context.Context, claimID string) (*models.DiscountClaim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("Reject"); err != nil {
		return nil, err
	}
	claim, ok := c.claims[claimID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, repository.ErrClaimNotPending
	}
	now := time.Now().UTC()
	claim.Status = models.ClaimStatusRejected
	claim.ApprovedAt = &now
	if c.commitThenFail != nil {
		return nil, c.commitThenFail
	}
	copied := *claim
	return &copied, nil
}

// shop settings

type memShop struct{ *memStore }

func (m memShop) Get(ctx context.Context) (*models.ShopSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("ShopGet"); err != nil {
		return nil, err
	}
	if m.shop == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.shop
	return &copied, nil
}

func (m memShop) CreateIfMissing(ctx context.Context, settings models.ShopSettings) (*models.ShopSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shop == nil {
		settings.ID = models.ShopSettingsID
		m.shop = &settings
	}
	copied := *m.shop
	return &copied, nil
}

func (m memShop) Upsert(ctx context.Context, settings *models.ShopSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("ShopUpsert"); err != nil {
		return err
	}
	settings.ID = models.ShopSettingsID
	settings.UpdatedAt = time.Now().UTC()
	stored := *settings
	m.shop = &stored
	return nil
}

// collaborators

type invalidationCounter struct {
	mu    sync.Mutex
	calls int
}

func (c *invalidationCounter) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *invalidationCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingQueue struct {
	jobs []jobs.Job
	seen map[string]bool
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) (bool, error) {
	if q.err != nil {
		return false, q.err
	}
	if q.seen == nil {
		q.seen = make(map[string]bool)
	}
	if q.seen[job.Key] {
		return false, nil
	}
	q.seen[job.Key] = true
	q.jobs = append(q.jobs, job)
	return true, nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func fastReads() ReadPolicy {
	return ReadPolicy{Retries: 2, Delay: time.Millisecond}
}

func intPtr(v int) *int { return &v }
