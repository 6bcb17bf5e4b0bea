package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/securenote/internal/config"
	"github.com/smallbiznis/securenote/internal/domain"
	"github.com/smallbiznis/securenote/internal/jwt"
	pw "github.com/smallbiznis/securenote/internal/password"
	"github.com/smallbiznis/securenote/internal/repository"
)

// TokenPair is the bearer credential pair returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthService owns registration and the access/refresh token lifecycle.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.RefreshTokenRepository
	snowflake *snowflake.Node
	jwt       *jwt.Generator
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, tokens repository.RefreshTokenRepository, node *snowflake.Node, generator *jwt.Generator, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		snowflake: node,
		jwt:       generator,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/smallbiznis/securenote/internal/service"),
	}
}

// Register creates a new user. Duplicate email or username fails with a
// validation error.
func (s *AuthService) Register(ctx context.Context, username, email, password string, isActive, isAdmin bool) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	normalized := normalizeEmail(email)
	if normalized == "" {
		return domain.User{}, newValidationError("Email is required.")
	}
	if strings.TrimSpace(username) == "" {
		return domain.User{}, newValidationError("Username is required.")
	}
	if password == "" {
		return domain.User{}, newValidationError("Password is required.")
	}

	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return domain.User{}, newValidationError("Email already registered.")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := pw.Hash(password)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           s.snowflake.Generate().Int64(),
		Username:     strings.TrimSpace(username),
		Email:        normalized,
		PasswordHash: hashed,
		IsActive:     isActive,
		IsAdmin:      isAdmin,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		// The pre-check races with concurrent registrations, so the unique
		// index is the authority.
		if repository.IsUniqueViolation(err) {
			if strings.Contains(repository.UniqueConstraint(err), "username") {
				return domain.User{}, newValidationError("Username already registered.")
			}
			return domain.User{}, newValidationError("Email already registered.")
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.audit("register.success", "user_id", created.ID)
	return created, nil
}

// Login authenticates with email/password and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Only a missing row means bad credentials; a store outage must not
		// masquerade as one.
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, newUnauthorizedError("Incorrect username or password.")
		}
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return TokenPair{}, newUnauthorizedError("Incorrect username or password.")
	}

	pair, err := s.IssueTokenPair(ctx, user)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, err
	}

	s.audit("login.success", "user_id", user.ID)
	return pair, nil
}

// IssueTokenPair mints an access token for the user and a refresh token
// whose jti is recorded server-side as unused. Every call persists exactly
// one new row.
func (s *AuthService) IssueTokenPair(ctx context.Context, user domain.User) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.IssueTokenPair")
	defer span.End()

	access, err := s.jwt.GenerateAccessToken(user.Email)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}

	jti := uuid.NewString()
	record := domain.RefreshToken{
		ID:        s.snowflake.Generate().Int64(),
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: time.Now().UTC().Add(s.cfg.RefreshTokenTTL),
		Used:      false,
	}
	if _, err := s.tokens.Create(ctx, record); err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	refresh, err := s.jwt.GenerateRefreshToken(user.ID, jti)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// ValidateAccess verifies a presented access token and resolves its user.
func (s *AuthService) ValidateAccess(ctx context.Context, token string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ValidateAccess")
	defer span.End()

	email, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return domain.User{}, newUnauthorizedError("Invalid or expired.")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, newNotFoundError("User not found.")
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Refresh redeems a refresh token exactly once and issues a fresh pair.
// Replays of a jti are categorically rejected, including the redemption
// race: the repository's conditional update lets at most one caller win.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	userID, jti, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, newUnauthorizedError("Invalid or expired refresh token.")
	}

	redeemed, err := s.tokens.Redeem(ctx, jti, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, newUnauthorizedError("Refresh token is invalid, expired, or already used.")
		}
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("redeem refresh token: %w", err)
	}
	if redeemed.UserID != userID {
		return TokenPair{}, newUnauthorizedError("Refresh token is invalid, expired, or already used.")
	}

	user, err := s.users.GetByID(ctx, redeemed.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, newNotFoundError("User not found.")
		}
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	pair, err := s.IssueTokenPair(ctx, user)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, err
	}

	s.audit("refresh_token.rotated", "user_id", user.ID, "jti", jti)
	return pair, nil
}

// SweepExpiredTokens deletes refresh-token rows past their expiry.
func (s *AuthService) SweepExpiredTokens(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "AuthService.SweepExpiredTokens")
	defer span.End()

	deleted, err := s.tokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("sweep expired tokens: %w", err)
	}
	if deleted > 0 {
		s.audit("refresh_token.sweep", "deleted", deleted)
	}
	return nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
