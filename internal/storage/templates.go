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

// Templates persists welcome and goodbye templates, one row per group in the
// table matching the scope.
type Templates struct {
	db *sqlx.DB
}

func templateTable(scope domain.TemplateScope) (string, error) {
	switch scope {
	case domain.ScopeWelcome:
		return "welcome_templates", nil
	case domain.ScopeGoodbye:
		return "goodbye_templates", nil
	default:
		return "", fmt.Errorf("unknown template scope %q", scope)
	}
}

// GetOrCreate returns the template for the group, inserting the default one
// on first access.
func (r *Templates) GetOrCreate(ctx context.Context, groupID int64, scope domain.TemplateScope) (*domain.Template, error) {
	table, err := templateTable(scope)
	if err != nil {
		return nil, err
	}

	var t domain.Template
	err = r.db.GetContext(ctx, &t, fmt.Sprintf(`SELECT * FROM %s WHERE group_id = $1`, table), groupID)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s %d: %w", table, groupID, err)
	}

	fresh := domain.NewTemplate(groupID, scope, time.Now().UTC())
	_, err = r.db.NamedExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (group_id, text, media_type, media_file_id, has_caption,
		                buttons, show_buttons, show_tags, enabled, created_at, updated_at)
		VALUES (:group_id, :text, :media_type, :media_file_id, :has_caption,
		        :buttons, :show_buttons, :show_tags, :enabled, :created_at, :updated_at)
		ON CONFLICT (group_id) DO NOTHING`, table), fresh)
	if err != nil {
		return nil, fmt.Errorf("create %s %d: %w", table, groupID, err)
	}

	// Re-read in case a concurrent insert won the race.
	if err := r.db.GetContext(ctx, &t, fmt.Sprintf(`SELECT * FROM %s WHERE group_id = $1`, table), groupID); err != nil {
		return nil, fmt.Errorf("reload %s %d: %w", table, groupID, err)
	}
	return &t, nil
}

// Save writes the whole template document back.
func (r *Templates) Save(ctx context.Context, t *domain.Template, scope domain.TemplateScope) error {
	if t == nil {
		return errors.New("nil template")
	}
	table, err := templateTable(scope)
	if err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET
		    text          = :text,
		    media_type    = :media_type,
		    media_file_id = :media_file_id,
		    has_caption   = :has_caption,
		    buttons       = :buttons,
		    show_buttons  = :show_buttons,
		    show_tags     = :show_tags,
		    enabled       = :enabled,
		    updated_at    = :updated_at
		WHERE group_id = :group_id`, table), t)
	if err != nil {
		return fmt.Errorf("save %s %d: %w", table, t.GroupID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
