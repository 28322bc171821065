package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencliniq/triage/internal/domain"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrSessionRevoked     = errors.New("auth: session revoked")
)

// SessionStore persists one refresh token per user with a TTL. Backed by
// Redis in production.
type SessionStore interface {
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)
	DeleteRefreshToken(ctx context.Context, userID uuid.UUID) error
}

// Service provides password login, token refresh, and logout. Audit
// recording of auth events is done by the route layer, which knows the
// request's origin address.
type Service struct {
	userRepo   domain.UserRepository
	sessions   SessionStore
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(userRepo domain.UserRepository, sessions SessionStore, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		userRepo:   userRepo,
		sessions:   sessions,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Login validates email/password, issues access + refresh tokens, and
// records the refresh token as the user's single active session. The user is
// returned so the caller can audit the event with the real actor identity.
func (s *Service) Login(ctx context.Context, email, password string) (user *domain.User, accessToken, refreshToken string, err error) {
	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		// Return the user so the failed attempt can be audited against the
		// targeted account, without authenticating it.
		return user, "", "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	accessToken, err = IssueAccessToken(s.jwtSecret, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return nil, "", "", fmt.Errorf("auth.Login: %w", err)
	}

	refreshToken, err = IssueRefreshToken(s.jwtSecret, user.ID, user.Role, s.refreshTTL)
	if err != nil {
		return nil, "", "", fmt.Errorf("auth.Login: %w", err)
	}

	if err = s.sessions.SetRefreshToken(ctx, user.ID, refreshToken, s.refreshTTL); err != nil {
		return nil, "", "", fmt.Errorf("auth.Login: %w", err)
	}

	return user, accessToken, refreshToken, nil
}

// RefreshToken validates a refresh token against its stored session copy and
// issues a new access token. A token that no longer matches the stored
// session (logout, or a newer login) is rejected.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	if claims.TokenType != tokenTypeRefresh {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: invalid user id: %w", err)
	}

	stored, err := s.sessions.GetRefreshToken(ctx, userID)
	if err != nil || stored != refreshToken {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrSessionRevoked)
	}

	// Verify the user still exists and fetch current role.
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrUserNotFound)
	}

	newAccess, err := IssueAccessToken(s.jwtSecret, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	return newAccess, nil
}

// Logout revokes the session named by a refresh token. Returns the user ID
// so the caller can audit the event. An already-revoked session is not an
// error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) (uuid.UUID, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth.Logout: %w", err)
	}

	if claims.TokenType != tokenTypeRefresh {
		return uuid.Nil, fmt.Errorf("auth.Logout: %w", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth.Logout: invalid user id: %w", err)
	}

	if err := s.sessions.DeleteRefreshToken(ctx, userID); err != nil {
		return uuid.Nil, fmt.Errorf("auth.Logout: %w", err)
	}

	return userID, nil
}

// GetUser returns a user by ID (for middleware and /auth/me).
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.GetUser: %w", err)
	}

	return user, nil
}
