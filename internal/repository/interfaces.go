package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/securenote/internal/domain"
)

// UserRepository exposes persistence for registered users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
}

// RefreshTokenRepository tracks the server-side state of refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	// Redeem marks the row for jti as used iff it is currently unused and
	// unexpired, and returns it. The check-and-set is a single conditional
	// UPDATE so at most one concurrent redeemer can succeed.
	Redeem(ctx context.Context, jti string, now time.Time) (domain.RefreshToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NoteRepository persists notes and serves the read queries the cache and
// search layers are built on.
type NoteRepository interface {
	Create(ctx context.Context, note domain.Note) (domain.Note, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Note, error)
	ListPublic(ctx context.Context, limit int) ([]domain.NoteWithOwner, error)
	// ListVisible returns every note the user may see: their own plus all
	// public notes, joined with the owner username.
	ListVisible(ctx context.Context, userID int64) ([]domain.NoteWithOwner, error)
}
