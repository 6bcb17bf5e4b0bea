package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smallbiznis/securenote/internal/domain"
)

// PgxPool is the slice of pgxpool.Pool the repositories need. It is
// satisfied by *pgxpool.Pool and by pgxmock.PgxPoolIface in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// UniqueConstraint returns the name of the violated unique constraint, or
// "" when err is not a unique violation.
func UniqueConstraint(err error) string {
	var pg *pgconn.PgError
	if errors.As(err, &pg) && pg.Code == "23505" {
		return pg.ConstraintName
	}
	return ""
}

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
	_ NoteRepository         = (*PostgresNoteRepo)(nil)
)

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db PgxPool
}

func NewPostgresUserRepo(db PgxPool) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const insertUserSQL = `INSERT INTO users (id, username, email, password_hash, is_active, is_admin)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, username, email, password_hash, is_active, is_admin, created_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.IsAdmin,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

const selectUserByEmailSQL = `SELECT id, username, email, password_hash, is_active, is_admin, created_at
FROM users WHERE email = $1`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, selectUserByEmailSQL, email))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

const selectUserByIDSQL = `SELECT id, username, email, password_hash, is_active, is_admin, created_at
FROM users WHERE id = $1`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, selectUserByIDSQL, userID))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsAdmin, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository.
type PostgresRefreshTokenRepo struct {
	db PgxPool
}

func NewPostgresRefreshTokenRepo(db PgxPool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens (id, user_id, jti, expires_at, used)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, jti, expires_at, used, created_at`

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertRefreshTokenSQL,
		token.ID,
		token.UserID,
		token.JTI,
		token.ExpiresAt,
		token.Used,
	)
	created, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return created, nil
}

// Rows are never deleted on redemption and the used flag only moves
// false -> true, so the conditional UPDATE is the whole replay check.
const redeemRefreshTokenSQL = `UPDATE refresh_tokens SET used = TRUE
WHERE jti = $1 AND used = FALSE AND expires_at > $2
RETURNING id, user_id, jti, expires_at, used, created_at`

func (r *PostgresRefreshTokenRepo) Redeem(ctx context.Context, jti string, now time.Time) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, redeemRefreshTokenSQL, jti, now)
	redeemed, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("redeem refresh token: %w", err)
	}
	return redeemed, nil
}

const deleteExpiredTokensSQL = `DELETE FROM refresh_tokens WHERE expires_at <= $1`

func (r *PostgresRefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredTokensSQL, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.JTI, &t.ExpiresAt, &t.Used, &t.CreatedAt); err != nil {
		return domain.RefreshToken{}, err
	}
	return t, nil
}

// PostgresNoteRepo implements NoteRepository.
type PostgresNoteRepo struct {
	db PgxPool
}

func NewPostgresNoteRepo(db PgxPool) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

const insertNoteSQL = `INSERT INTO notes (id, owner_id, title, content, is_public)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, owner_id, title, content, is_public, created_at`

func (r *PostgresNoteRepo) Create(ctx context.Context, note domain.Note) (domain.Note, error) {
	row := r.db.QueryRow(ctx, insertNoteSQL,
		note.ID,
		note.OwnerID,
		note.Title,
		note.Content,
		note.IsPublic,
	)
	var created domain.Note
	if err := row.Scan(&created.ID, &created.OwnerID, &created.Title, &created.Content, &created.IsPublic, &created.CreatedAt); err != nil {
		return domain.Note{}, fmt.Errorf("create note: %w", err)
	}
	return created, nil
}

const selectNotesByOwnerSQL = `SELECT id, owner_id, title, content, is_public, created_at
FROM notes WHERE owner_id = $1 ORDER BY id`

func (r *PostgresNoteRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Note, error) {
	rows, err := r.db.Query(ctx, selectNotesByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list notes by owner: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.IsPublic, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes by owner: %w", err)
	}
	return notes, nil
}

const selectPublicNotesSQL = `SELECT n.id, n.owner_id, n.title, n.content, n.is_public, n.created_at, u.username
FROM notes n JOIN users u ON u.id = n.owner_id
WHERE n.is_public = TRUE ORDER BY n.id LIMIT $1`

func (r *PostgresNoteRepo) ListPublic(ctx context.Context, limit int) ([]domain.NoteWithOwner, error) {
	rows, err := r.db.Query(ctx, selectPublicNotesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list public notes: %w", err)
	}
	defer rows.Close()
	return scanNotesWithOwner(rows)
}

const selectVisibleNotesSQL = `SELECT n.id, n.owner_id, n.title, n.content, n.is_public, n.created_at, u.username
FROM notes n JOIN users u ON u.id = n.owner_id
WHERE n.owner_id = $1 OR n.is_public = TRUE ORDER BY n.id`

func (r *PostgresNoteRepo) ListVisible(ctx context.Context, userID int64) ([]domain.NoteWithOwner, error) {
	rows, err := r.db.Query(ctx, selectVisibleNotesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list visible notes: %w", err)
	}
	defer rows.Close()
	return scanNotesWithOwner(rows)
}

func scanNotesWithOwner(rows pgx.Rows) ([]domain.NoteWithOwner, error) {
	var notes []domain.NoteWithOwner
	for rows.Next() {
		var n domain.NoteWithOwner
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.IsPublic, &n.CreatedAt, &n.OwnerUsername); err != nil {
			return nil, fmt.Errorf("scan note with owner: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}
