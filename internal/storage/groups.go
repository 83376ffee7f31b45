package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/groupwarden/internal/domain"
)

// Groups persists domain.Group records. The embedded blacklist, warnings,
// settings, and admins lists are saved together with the group row.
type Groups struct {
	db *sqlx.DB
}

// Get returns the group by chat id or ErrNotFound.
func (r *Groups) Get(ctx context.Context, id int64) (*domain.Group, error) {
	var g domain.Group
	err := r.db.GetContext(ctx, &g, `SELECT * FROM groups WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	return &g, nil
}

// Create inserts a new group. The primary key makes a racing second insert
// fail instead of duplicating the record.
func (r *Groups) Create(ctx context.Context, g *domain.Group) error {
	if g == nil {
		return errors.New("nil group")
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO groups (id, title, added_by, is_approved, approved_by, approved_at,
		                    blacklist, warnings, settings, admins, created_at, updated_at)
		VALUES (:id, :title, :added_by, :is_approved, :approved_by, :approved_at,
		        :blacklist, :warnings, :settings, :admins, :created_at, :updated_at)`, g)
	if err != nil {
		return fmt.Errorf("create group %d: %w", g.ID, err)
	}
	return nil
}

// Save writes the whole group document back.
func (r *Groups) Save(ctx context.Context, g *domain.Group) error {
	if g == nil {
		return errors.New("nil group")
	}
	g.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE groups SET
		    title       = :title,
		    added_by    = :added_by,
		    is_approved = :is_approved,
		    approved_by = :approved_by,
		    approved_at = :approved_at,
		    blacklist   = :blacklist,
		    warnings    = :warnings,
		    settings    = :settings,
		    admins      = :admins,
		    updated_at  = :updated_at
		WHERE id = :id`, g)
	if err != nil {
		return fmt.Errorf("save group %d: %w", g.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ManagedBy returns approved groups the user added or manages.
func (r *Groups) ManagedBy(ctx context.Context, userID int64) ([]domain.Group, error) {
	member, err := json.Marshal([]map[string]int64{{"user_id": userID}})
	if err != nil {
		return nil, fmt.Errorf("marshal admin probe: %w", err)
	}
	var list []domain.Group
	err = r.db.SelectContext(ctx, &list, `
		SELECT * FROM groups
		WHERE is_approved = TRUE AND (added_by = $1 OR admins @> $2::jsonb)
		ORDER BY title, id`, userID, string(member))
	if err != nil {
		return nil, fmt.Errorf("groups managed by %d: %w", userID, err)
	}
	return list, nil
}

// All returns every registered group, approved or not.
func (r *Groups) All(ctx context.Context) ([]domain.Group, error) {
	var list []domain.Group
	if err := r.db.SelectContext(ctx, &list, `SELECT * FROM groups ORDER BY title, id`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return list, nil
}
