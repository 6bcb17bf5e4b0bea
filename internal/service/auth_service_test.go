package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/securenote/internal/config"
	"github.com/smallbiznis/securenote/internal/domain"
	"github.com/smallbiznis/securenote/internal/jwt"
	"github.com/smallbiznis/securenote/internal/service"
)

func newAuthService(t *testing.T) (*service.AuthService, *memoryUserRepo, *memoryTokenRepo) {
	t.Helper()
	cfg := config.Config{
		SecretKey:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	userRepo := newMemoryUserRepo()
	tokenRepo := newMemoryTokenRepo()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	generator := jwt.NewGenerator(cfg.SecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	return service.NewAuthService(userRepo, tokenRepo, node, generator, cfg, zap.NewNop()), userRepo, tokenRepo
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	authService, _, _ := newAuthService(t)
	ctx := context.Background()

	user, err := authService.Register(ctx, "alice", "  Alice@Example.COM ", "password123", true, false)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotZero(t, user.ID)
	require.NotEqual(t, "password123", user.PasswordHash)

	_, err = authService.Register(ctx, "alice2", "alice@example.com", "password456", true, false)
	require.Error(t, err)
	require.Equal(t, "validation_error", service.AsError(err).Code)
}

func TestRegisterValidation(t *testing.T) {
	authService, _, _ := newAuthService(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name                      string
		username, email, password string
	}{
		{"missing email", "alice", "   ", "pw"},
		{"missing username", "  ", "alice@example.com", "pw"},
		{"missing password", "alice", "alice@example.com", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := authService.Register(ctx, tc.username, tc.email, tc.password, true, false)
			require.Error(t, err)
			require.Equal(t, "validation_error", service.AsError(err).Code)
		})
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	authService, _, tokenRepo := newAuthService(t)
	ctx := context.Background()

	_, err := authService.Register(ctx, "alice", "alice@example.com", "password123", true, false)
	require.NoError(t, err)

	pair, err := authService.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, 1, tokenRepo.count())

	_, err = authService.Login(ctx, "alice@example.com", "wrong")
	require.Equal(t, "unauthorized", service.AsError(err).Code)

	_, err = authService.Login(ctx, "nobody@example.com", "password123")
	require.Equal(t, "unauthorized", service.AsError(err).Code)
}

func TestLoginStoreOutageIsServerError(t *testing.T) {
	authService, userRepo, _ := newAuthService(t)
	ctx := context.Background()

	_, err := authService.Register(ctx, "alice", "alice@example.com", "password123", true, false)
	require.NoError(t, err)

	// A store outage during the user lookup must surface as a 500, not as
	// bad credentials.
	userRepo.getByEmailErr = errors.New("connection refused")
	_, err = authService.Login(ctx, "alice@example.com", "password123")
	require.Error(t, err)
	svcErr := service.AsError(err)
	require.Equal(t, "server_error", svcErr.Code)
	require.Equal(t, http.StatusInternalServerError, svcErr.Status)
}

func TestRegisterDuplicateUsernameNamesTheField(t *testing.T) {
	authService, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := authService.Register(ctx, "alice", "alice@example.com", "password123", true, false)
	require.NoError(t, err)

	_, err = authService.Register(ctx, "alice", "alice2@example.com", "password456", true, false)
	require.Error(t, err)
	svcErr := service.AsError(err)
	require.Equal(t, "validation_error", svcErr.Code)
	require.Equal(t, "Username already registered.", svcErr.Description)
}

func TestValidateAccess(t *testing.T) {
	authService, _, _ := newAuthService(t)
	ctx := context.Background()

	registered, err := authService.Register(ctx, "alice", "alice@example.com", "password123", true, false)
	require.NoError(t, err)

	pair, err := authService.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	user, err := authService.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)

	_, err = authService.ValidateAccess(ctx, "not-a-token")
	require.Equal(t, "unauthorized", service.AsError(err).Code)
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	authService, _, tokenRepo := newAuthService(t)
	ctx := context.Background()

	_, err := authService.Register(ctx, "alice", "alice@example.com", "password123", true, false)
	require.NoError(t, err)

	first, err := authService.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	second, err := authService.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, 2, tokenRepo.count())

	// The first refresh token was consumed by the rotation; replaying it
	// must fail even though its JWT is still within its lifetime.
	_, err = authService.Refresh(ctx, first.RefreshToken)
	require.Equal(t, "unauthorized", service.AsError(err).Code)

	// The rotated token is still good for exactly one more exchange.
	third, err := authService.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, second.RefreshToken, third.RefreshToken)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	authService, _, _ := newAuthService(t)

	_, err := authService.Refresh(context.Background(), "garbage")
	require.Equal(t, "unauthorized", service.AsError(err).Code)
}

func TestSweepExpiredTokens(t *testing.T) {
	authService, _, tokenRepo := newAuthService(t)
	ctx := context.Background()

	_, err := tokenRepo.Create(ctx, domain.RefreshToken{
		ID:        1,
		UserID:    10,
		JTI:       "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = tokenRepo.Create(ctx, domain.RefreshToken{
		ID:        2,
		UserID:    10,
		JTI:       "fresh",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, authService.SweepExpiredTokens(ctx))
	require.Equal(t, 1, tokenRepo.count())
}

type memoryUserRepo struct {
	mu            sync.Mutex
	users         map[int64]domain.User
	getByEmailErr error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[int64]domain.User{}}
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return domain.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
		if existing.Username == user.Username {
			return domain.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
		}
	}
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getByEmailErr != nil {
		return domain.User{}, m.getByEmailErr
	}
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

type memoryTokenRepo struct {
	mu   sync.Mutex
	rows map[string]domain.RefreshToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{rows: map[string]domain.RefreshToken{}}
}

func (m *memoryTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.CreatedAt = time.Now().UTC()
	m.rows[token.JTI] = token
	return token, nil
}

func (m *memoryTokenRepo) Redeem(ctx context.Context, jti string, now time.Time) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[jti]
	if !ok || row.Used || !row.ExpiresAt.After(now) {
		return domain.RefreshToken{}, pgx.ErrNoRows
	}
	row.Used = true
	m.rows[jti] = row
	return row, nil
}

func (m *memoryTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for jti, row := range m.rows {
		if !row.ExpiresAt.After(now) {
			delete(m.rows, jti)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryTokenRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
