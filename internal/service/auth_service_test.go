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

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

type mockAuthUserRepo struct {
	users   map[string]models.User
	tokens  map[string]models.RefreshToken
	revoked []string
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *mockAuthUserRepo) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]models.RefreshToken)
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockAuthUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	delete(m.tokens, token)
	return nil
}

func (m *mockAuthUserRepo) RevokeUserTokens(ctx context.Context, userID string) error {
	return nil
}

type mockLockoutStore struct {
	counters map[string]int64
}

func (m *mockLockoutStore) IncrementCounter(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[key]++
	return m.counters[key], nil
}

func (m *mockLockoutStore) GetCounter(ctx context.Context, key string) (int64, error) {
	return m.counters[key], nil
}

func (m *mockLockoutStore) DeleteCounter(ctx context.Context, key string) error {
	delete(m.counters, key)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthUserRepo, *mockLockoutStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &mockAuthUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "admin@school.pk", PasswordHash: string(hash), Role: models.RoleAdmin, Active: true},
	}}
	lockout := &mockLockoutStore{counters: map[string]int64{}}
	svc := NewAuthService(users, lockout, AuthConfig{
		Secret:          "test-secret",
		AccessExpiry:    time.Hour,
		RefreshExpiry:   24 * time.Hour,
		LockoutAttempts: 3,
		LockoutWindow:   time.Minute,
	}, validator.New(), zap.NewNop())
	return svc, users, lockout
}

func TestAuthServiceLogin(t *testing.T) {
	svc, users, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.pk",
		Password: "correct-horse",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Contains(t, users.tokens, resp.RefreshToken)

	claims, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _, lockout := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.pk",
		Password: "wrong",
		IP:       "10.0.0.1",
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	assert.Equal(t, int64(1), lockout.counters["lockout:admin@school.pk:10.0.0.1"])
}

func TestAuthServiceLoginLockout(t *testing.T) {
	svc, _, lockout := newAuthFixture(t)

	req := models.LoginRequest{Email: "admin@school.pk", Password: "wrong", IP: "10.0.0.1"}
	for i := 0; i < 3; i++ {
		_, err := svc.Login(context.Background(), req)
		require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	}

	// Fourth attempt is rejected before the password is even checked.
	req.Password = "correct-horse"
	_, err := svc.Login(context.Background(), req)
	require.ErrorIs(t, err, appErrors.ErrAccountLocked)

	// A different IP is not affected.
	req.IP = "10.0.0.2"
	_, err = svc.Login(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, lockout.counters, "lockout:admin@school.pk:10.0.0.2")
}

func TestAuthServiceLoginClearsCounterOnSuccess(t *testing.T) {
	svc, _, lockout := newAuthFixture(t)
	lockout.counters["lockout:admin@school.pk:10.0.0.1"] = 2

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.pk",
		Password: "correct-horse",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotContains(t, lockout.counters, "lockout:admin@school.pk:10.0.0.1")
}

func TestAuthServiceLoginInactiveUser(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	user := users.users["u1"]
	user.Active = false
	users.users["u1"] = user

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.pk",
		Password: "correct-horse",
		IP:       "10.0.0.1",
	})
	require.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	svc, users, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.pk",
		Password: "correct-horse",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: resp.RefreshToken}, "10.0.0.1", "tests")
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)
	assert.Contains(t, users.revoked, resp.RefreshToken)

	_, err = svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: resp.RefreshToken}, "10.0.0.1", "tests")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceParseTokenRejectsTampered(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@school.pk",
		Password: "correct-horse",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)

	_, err = svc.ParseToken(resp.AccessToken + "x")
	require.Error(t, err)
	_, err = svc.ParseToken("not-a-token")
	require.Error(t, err)
}
