package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/groupwarden/internal/domain"
)

// Users persists domain.User records.
type Users struct {
	db *sqlx.DB
}

// Get returns the user by id or ErrNotFound.
func (r *Users) Get(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// Upsert writes the whole user record, inserting on first contact.
func (r *Users) Upsert(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	u.UpdatedAt = time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = u.UpdatedAt
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, username, is_approved, is_admin,
		                   approved_by, approved_at, requested_at, created_at, updated_at)
		VALUES (:id, :first_name, :last_name, :username, :is_approved, :is_admin,
		        :approved_by, :approved_at, :requested_at, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
		    first_name   = EXCLUDED.first_name,
		    last_name    = EXCLUDED.last_name,
		    username     = EXCLUDED.username,
		    is_approved  = EXCLUDED.is_approved,
		    is_admin     = EXCLUDED.is_admin,
		    approved_by  = EXCLUDED.approved_by,
		    approved_at  = EXCLUDED.approved_at,
		    requested_at = EXCLUDED.requested_at,
		    updated_at   = EXCLUDED.updated_at`, u)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// Pending returns users with an unanswered approval request, oldest first.
func (r *Users) Pending(ctx context.Context) ([]domain.User, error) {
	var list []domain.User
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM users
		WHERE requested_at IS NOT NULL AND is_approved = FALSE
		ORDER BY requested_at`)
	if err != nil {
		return nil, fmt.Errorf("pending users: %w", err)
	}
	return list, nil
}

// ByUsername returns the user with the given username (without '@') or ErrNotFound.
func (r *Users) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE lower(username) = lower($1)`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user by username %q: %w", username, err)
	}
	return &u, nil
}
