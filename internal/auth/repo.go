package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lexpilot/lexpilot/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db dbtx) *PGRepository {
	return &PGRepository{db: db}
}

const findByEmailSQL = `SELECT id, email, COALESCE(full_name, ''), role, password_hash, is_active, last_login, created_at
FROM users WHERE lower(email) = lower($1)`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user      User
		lastLogin pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, findByEmailSQL, email).Scan(
		&user.ID, &user.Email, &user.FullName, &user.Role, &user.PasswordHash, &user.IsActive, &lastLogin, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = lastLogin.Time
	}
	if createdAt.Valid {
		user.CreatedAt = createdAt.Time
	}
	return &user, nil
}

// TouchLastLogin stamps the user's last successful sign-in.
func (r *PGRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, userID, at.UTC())
	return err
}

var _ Repository = (*PGRepository)(nil)
