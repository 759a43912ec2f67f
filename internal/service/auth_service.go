package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

type authUserRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeUserTokens(ctx context.Context, userID string) error
}

// lockoutStore tracks failed login attempts keyed by email and IP. Backed by
// Redis so the counters survive restarts and are shared across instances.
type lockoutStore interface {
	IncrementCounter(ctx context.Context, key string, ttl time.Duration) (int64, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	DeleteCounter(ctx context.Context, key string) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret          string
	AccessExpiry    time.Duration
	RefreshExpiry   time.Duration
	LockoutAttempts int
	LockoutWindow   time.Duration
}

// AuthService provides login, token refresh and logout.
type AuthService struct {
	users    authUserRepo
	lockout  lockoutStore
	config   AuthConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthService constructs the auth service.
func NewAuthService(users authUserRepo, lockout lockoutStore, config AuthConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LockoutAttempts <= 0 {
		config.LockoutAttempts = 5
	}
	if config.LockoutWindow <= 0 {
		config.LockoutWindow = 15 * time.Minute
	}
	return &AuthService{users: users, lockout: lockout, config: config, validate: validate, logger: logger}
}

func lockoutKey(email, ip string) string {
	return fmt.Sprintf("lockout:%s:%s", email, ip)
}

// Login authenticates a user and issues tokens. After the configured number
// of failed attempts from the same email and IP within the window, logins are
// rejected until the window expires, without revealing whether the password
// was correct.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	key := lockoutKey(req.Email, req.IP)
	if s.lockout != nil {
		attempts, err := s.lockout.GetCounter(ctx, key)
		if err != nil {
			s.logger.Warn("read lockout counter", zap.Error(err))
		}
		if attempts >= int64(s.config.LockoutAttempts) {
			return nil, appErrors.ErrAccountLocked
		}
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordFailure(ctx, key)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailure(ctx, key)
		return nil, appErrors.ErrInvalidCredentials
	}

	if s.lockout != nil {
		if err := s.lockout.DeleteCounter(ctx, key); err != nil {
			s.logger.Warn("clear lockout counter", zap.Error(err))
		}
	}

	accessToken, expiresAt, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshValue, err := generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	refresh := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshValue,
		ExpiresAt: time.Now().UTC().Add(s.config.RefreshExpiry),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}
	if err := s.users.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("update last login", zap.Error(err))
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("ip", req.IP))
	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if s.lockout == nil {
		return
	}
	if _, err := s.lockout.IncrementCounter(ctx, key, s.config.LockoutWindow); err != nil {
		s.logger.Warn("record failed login", zap.Error(err))
	}
}

// Refresh exchanges a live refresh token for a new access token. The old
// refresh token is rotated out.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest, ip, userAgent string) (*models.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	stored, err := s.users.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired refresh token")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired refresh token")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	if err := s.users.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		s.logger.Warn("revoke rotated refresh token", zap.Error(err))
	}

	accessToken, expiresAt, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshValue, err := generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	refresh := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshValue,
		ExpiresAt: time.Now().UTC().Add(s.config.RefreshExpiry),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.users.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return appErrors.Clone(appErrors.ErrValidation, "refresh_token is required")
	}
	return s.users.RevokeRefreshToken(ctx, refreshToken)
}

// Me returns the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, err
	}
	return user, nil
}

// ParseToken validates an access token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.config.AccessExpiry)

	claims := models.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
