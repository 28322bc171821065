package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencliniq/triage/internal/auth"
	"github.com/opencliniq/triage/internal/domain"
)

const testSecret = "test-secret-key-very-long-and-secure"

// --- configurable mock UserRepository for service tests ---

type mockServiceRepo struct {
	getByEmailUser *domain.User
	getByEmailErr  error

	getByIDUser *domain.User
	getByIDErr  error
}

func (m *mockServiceRepo) Create(_ context.Context, _ *domain.User) error { return nil }

func (m *mockServiceRepo) GetByID(_ context.Context, _ uuid.UUID) (*domain.User, error) {
	return m.getByIDUser, m.getByIDErr
}

func (m *mockServiceRepo) GetByEmail(_ context.Context, _ string) (*domain.User, error) {
	return m.getByEmailUser, m.getByEmailErr
}

func (m *mockServiceRepo) Update(_ context.Context, _ *domain.User) error { return nil }

func (m *mockServiceRepo) List(_ context.Context, _, _ int) ([]*domain.User, error) {
	return nil, nil
}

func (m *mockServiceRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

// --- in-memory SessionStore ---

type memSessions struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]string
	setErr error
}

func newMemSessions() *memSessions {
	return &memSessions{tokens: make(map[uuid.UUID]string)}
}

func (m *memSessions) SetRefreshToken(_ context.Context, userID uuid.UUID, token string, _ time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = token
	return nil
}

func (m *memSessions) GetRefreshToken(_ context.Context, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[userID]
	if !ok {
		return "", errors.New("no session")
	}
	return token, nil
}

func (m *memSessions) DeleteRefreshToken(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func testUser(t *testing.T, password string) *domain.User {
	t.Helper()

	hash := ""
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password)
		require.NoError(t, err)
	}

	return &domain.User{
		ID:           uuid.New(),
		Email:        "dr.chen@clinic.example",
		PasswordHash: hash,
		Role:         "clinician",
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestServiceLogin(t *testing.T) {
	t.Parallel()

	t.Run("happy_path_stores_session", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		sessions := newMemSessions()
		svc := auth.NewService(&mockServiceRepo{getByEmailUser: user}, sessions, testSecret, 15*time.Minute, 24*time.Hour)

		got, access, refresh, err := svc.Login(context.Background(), user.Email, "hunter2hunter2")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.NotEmpty(t, access)
		assert.NotEmpty(t, refresh)

		stored, err := sessions.GetRefreshToken(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, refresh, stored)
	})

	t.Run("wrong_password_returns_user_for_attribution", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		svc := auth.NewService(&mockServiceRepo{getByEmailUser: user}, newMemSessions(), testSecret, 15*time.Minute, 24*time.Hour)

		got, _, _, err := svc.Login(context.Background(), user.Email, "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		require.NotNil(t, got, "the targeted account is surfaced for audit attribution")
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("unknown_email", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewService(&mockServiceRepo{getByEmailErr: domain.ErrNotFound}, newMemSessions(), testSecret, 15*time.Minute, 24*time.Hour)

		got, _, _, err := svc.Login(context.Background(), "nobody@clinic.example", "pw")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Nil(t, got)
	})

	t.Run("invited_user_without_password_cannot_login", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "")
		svc := auth.NewService(&mockServiceRepo{getByEmailUser: user}, newMemSessions(), testSecret, 15*time.Minute, 24*time.Hour)

		_, _, _, err := svc.Login(context.Background(), user.Email, "")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("session_store_failure", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		sessions := newMemSessions()
		sessions.setErr = errors.New("redis: connection refused")
		svc := auth.NewService(&mockServiceRepo{getByEmailUser: user}, sessions, testSecret, 15*time.Minute, 24*time.Hour)

		_, _, _, err := svc.Login(context.Background(), user.Email, "hunter2hunter2")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

// ---------------------------------------------------------------------------
// RefreshToken
// ---------------------------------------------------------------------------

func TestServiceRefreshToken(t *testing.T) {
	t.Parallel()

	login := func(t *testing.T, user *domain.User, sessions *memSessions) (svc *auth.Service, refresh string) {
		t.Helper()
		svc = auth.NewService(&mockServiceRepo{getByEmailUser: user, getByIDUser: user}, sessions, testSecret, 15*time.Minute, 24*time.Hour)
		_, _, refresh, err := svc.Login(context.Background(), user.Email, "hunter2hunter2")
		require.NoError(t, err)
		return svc, refresh
	}

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		svc, refresh := login(t, user, newMemSessions())

		access, err := svc.RefreshToken(context.Background(), refresh)
		require.NoError(t, err)

		claims, err := auth.ValidateToken(testSecret, access)
		require.NoError(t, err)
		assert.Equal(t, "access", claims.TokenType)
		assert.Equal(t, user.ID.String(), claims.UserID)
	})

	t.Run("access_token_is_not_a_refresh_token", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		svc, _ := login(t, user, newMemSessions())

		access, err := auth.IssueAccessToken(testSecret, user.ID, user.Role, 15*time.Minute)
		require.NoError(t, err)

		_, err = svc.RefreshToken(context.Background(), access)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("revoked_session_rejected", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		sessions := newMemSessions()
		svc, refresh := login(t, user, sessions)

		_, err := svc.Logout(context.Background(), refresh)
		require.NoError(t, err)

		_, err = svc.RefreshToken(context.Background(), refresh)
		assert.ErrorIs(t, err, auth.ErrSessionRevoked)
	})

	t.Run("superseded_session_rejected", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		sessions := newMemSessions()
		svc, firstRefresh := login(t, user, sessions)

		// A second login replaces the stored session token.
		time.Sleep(1100 * time.Millisecond) // distinct iat so the tokens differ
		_, _, secondRefresh, err := svc.Login(context.Background(), user.Email, "hunter2hunter2")
		require.NoError(t, err)
		require.NotEqual(t, firstRefresh, secondRefresh)

		_, err = svc.RefreshToken(context.Background(), firstRefresh)
		assert.ErrorIs(t, err, auth.ErrSessionRevoked)

		_, err = svc.RefreshToken(context.Background(), secondRefresh)
		assert.NoError(t, err)
	})

	t.Run("deleted_user_rejected", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		sessions := newMemSessions()
		repo := &mockServiceRepo{getByEmailUser: user, getByIDUser: user}
		svc := auth.NewService(repo, sessions, testSecret, 15*time.Minute, 24*time.Hour)
		_, _, refresh, err := svc.Login(context.Background(), user.Email, "hunter2hunter2")
		require.NoError(t, err)

		repo.getByIDUser = nil
		repo.getByIDErr = domain.ErrNotFound

		_, err = svc.RefreshToken(context.Background(), refresh)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func TestServiceLogout(t *testing.T) {
	t.Parallel()

	t.Run("returns_user_id_and_is_idempotent", func(t *testing.T) {
		t.Parallel()

		user := testUser(t, "hunter2hunter2")
		sessions := newMemSessions()
		svc := auth.NewService(&mockServiceRepo{getByEmailUser: user, getByIDUser: user}, sessions, testSecret, 15*time.Minute, 24*time.Hour)
		_, _, refresh, err := svc.Login(context.Background(), user.Email, "hunter2hunter2")
		require.NoError(t, err)

		got, err := svc.Logout(context.Background(), refresh)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got)

		// Logging out again is still fine.
		_, err = svc.Logout(context.Background(), refresh)
		assert.NoError(t, err)
	})

	t.Run("garbage_token_rejected", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewService(&mockServiceRepo{}, newMemSessions(), testSecret, 15*time.Minute, 24*time.Hour)

		_, err := svc.Logout(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
