package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail    *models.User
	findByEmailErr error
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil || m.userByEmail.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "lms-points-api",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	group := "g1"
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "s1", Email: "student@example.com", PasswordHash: hashPassword(t, "password"), Active: true, Role: models.RoleStudent, GroupID: &group}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	require.NotNil(t, res.User.GroupID)
	assert.Equal(t, "g1", *res.User.GroupID)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "s1", Role: models.RoleStudent}, claims.Actor())
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "s1", Email: "student@example.com", PasswordHash: hashPassword(t, "password"), Active: true}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "s1", Email: "student@example.com", PasswordHash: hashPassword(t, "password"), Active: false}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginStoreFailure(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{findByEmailErr: errors.New("connection reset")})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestValidateTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})
	user := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}

	token, err := svc.generateAccessToken(user, time.Now().UTC())
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a1", claims.UserID)

	expired, err := svc.generateAccessToken(user, time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "lms-points-api"})
	foreign, err := other.generateAccessToken(user, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(raw)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
