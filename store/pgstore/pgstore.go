// Package pgstore implements the authkit persistence contracts on
// PostgreSQL via pgx. The schema is owned by the embedded goose migrations
// in the migrations subdirectory; run them with [Migrate] before first use.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/authkit-go/authkit"
	"github.com/authkit-go/authkit/store/pgstore/migrations"
)

// Migrate brings the schema up to date. It opens a short-lived
// database/sql connection because goose drives that interface; runtime
// queries go through the pgx pool instead.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// UserStore implements authkit.UserStore on a pgx pool.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore returns a UserStore using the given pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = "id, username, email, password_hash, role, created_at"

func (r *UserStore) FindByUsername(ctx context.Context, username string) (*authkit.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
	return scanUser(row, "find user by username")
}

func (r *UserStore) FindByEmail(ctx context.Context, email string) (*authkit.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row, "find user by email")
}

func (r *UserStore) FindByID(ctx context.Context, id int64) (*authkit.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "find user by id")
}

func (r *UserStore) Insert(ctx context.Context, user *authkit.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, user.Username, user.Email, user.PasswordHash, user.Role, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return authkit.ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row, op string) (*authkit.User, error) {
	var user authkit.User
	err := row.Scan(&user.ID, &user.Username, &user.Email,
		&user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authkit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// TokenStore implements authkit.TokenStore on a pgx pool. Rows are never
// deleted; revocation is an UPDATE and expired rows stay for audit.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore returns a TokenStore using the given pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

func (r *TokenStore) Find(ctx context.Context, token string) (*authkit.RefreshToken, error) {
	var record authkit.RefreshToken
	err := r.pool.QueryRow(ctx, `
		SELECT id, token, user_id, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token = $1
	`, token).Scan(&record.ID, &record.Token, &record.UserID,
		&record.ExpiresAt, &record.Revoked, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authkit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &record, nil
}

func (r *TokenStore) Insert(ctx context.Context, record *authkit.RefreshToken) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, record.Token, record.UserID, record.ExpiresAt, record.Revoked, record.CreatedAt).
		Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *TokenStore) MarkRevoked(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrNotFound
	}
	return nil
}

// RevokeAllForUser flips every live token of the user in one statement,
// so the transition is atomic under PostgreSQL's statement semantics.
func (r *TokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}
