package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fixitnow/fixitnow-api/internal/models"
	"github.com/fixitnow/fixitnow-api/internal/repository"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail    *models.User
	userByID       *models.User
	findByEmailErr error
	created        *models.User
	createErr      error
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if m.userByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByID, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = 1
	m.created = user
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, repository.NewMemoryRevocationStore(), validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		Issuer:             "test",
		RevocationTTLFloor: time.Hour,
	})
}

func TestAuthServiceRegisterProviderRequiresCategory(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{findByEmailErr: sql.ErrNoRows})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Provider",
		Email:    "p@example.com",
		Phone:    "123",
		Password: "password",
		Role:     models.RoleProvider,
		Gender:   "M",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterProviderZeroesAggregates(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := newAuthService(repo)

	category := models.CategoryPlumbing
	user, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName:        "Provider",
		Email:           "p@example.com",
		Phone:           "123",
		Password:        "password",
		Role:            models.RoleProvider,
		Gender:          "M",
		ServiceCategory: &category,
	})
	require.NoError(t, err)
	require.NotNil(t, user.ProviderRating)
	require.NotNil(t, user.JobsCompleted)
	require.NotNil(t, user.TotalIncome)
	assert.Zero(t, *user.ProviderRating)
	assert.Zero(t, *user.JobsCompleted)
	assert.Zero(t, *user.TotalIncome)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: 1, Email: "p@example.com"}}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Requester",
		Email:    "p@example.com",
		Phone:    "123",
		Password: "password",
		Role:     models.RoleRequester,
		Gender:   "F",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: 1, Email: "u@example.com", FullName: "User", PasswordHash: string(hash), Role: models.RoleRequester}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "u@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(1), res.User.ID)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, models.RoleRequester, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: 1, Email: "u@example.com", PasswordHash: string(hash)}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "u@example.com", Password: "wrong"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
	assert.Equal(t, 401, appErr.Status)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
	assert.Equal(t, 401, appErr.Status)
}

func TestAuthServiceLogoutRevokesToken(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: 1, Email: "u@example.com", PasswordHash: string(hash), Role: models.RoleRequester}}
	svc := newAuthService(repo)
	ctx := context.Background()

	res, err := svc.Login(ctx, models.LoginRequest{Email: "u@example.com", Password: "password"})
	require.NoError(t, err)

	require.NoError(t, svc.CheckRevocation(ctx, res.AccessToken))
	require.NoError(t, svc.Logout(ctx, res.AccessToken))

	err = svc.CheckRevocation(ctx, res.AccessToken)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTokenRevoked.Code, appErr.Code)
	assert.Equal(t, 401, appErr.Status)

	// The token still parses; only the revocation check rejects it.
	_, err = svc.ValidateToken(res.AccessToken)
	assert.NoError(t, err)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: 1, Email: "u@example.com", PasswordHash: string(hash), Role: models.RoleRequester}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "u@example.com", Password: "password"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
