package domain

import (
	"database/sql/driver"
	"time"
)

// MediaType enumerates the media attachments a template can carry.
type MediaType string

const (
	MediaNone      MediaType = "none"
	MediaPhoto     MediaType = "photo"
	MediaVideo     MediaType = "video"
	MediaAnimation MediaType = "animation"
	MediaSticker   MediaType = "sticker"
)

// TemplateScope distinguishes the welcome template from the goodbye template.
type TemplateScope string

const (
	ScopeWelcome TemplateScope = "welcome"
	ScopeGoodbye TemplateScope = "goodbye"
)

// TemplateButton is one inline URL button attached to a rendered template.
type TemplateButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// TemplateButtons is stored as one JSONB column.
type TemplateButtons []TemplateButton

// Value implements driver.Valuer for the buttons JSONB column.
func (b TemplateButtons) Value() (driver.Value, error) { return jsonValue([]TemplateButton(b)) }

// Scan implements sql.Scanner for the buttons JSONB column.
func (b *TemplateButtons) Scan(src any) error { return jsonScan(b, src) }

// Template is a per-group welcome or goodbye message definition. One row per
// (group, scope); created lazily with default text on first settings access.
type Template struct {
	GroupID     int64           `db:"group_id"`
	Text        string          `db:"text"`
	MediaType   MediaType       `db:"media_type"`
	MediaFileID *string         `db:"media_file_id"`
	HasCaption  bool            `db:"has_caption"`
	Buttons     TemplateButtons `db:"buttons"`
	ShowButtons bool            `db:"show_buttons"`
	ShowTags    bool            `db:"show_tags"`
	Enabled     bool            `db:"enabled"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

const (
	// DefaultWelcomeText greets a new member until the group sets its own text.
	DefaultWelcomeText = "Welcome {user} to {group}! You are member #{membercount}."
	// DefaultGoodbyeText sees a member off until the group sets its own text.
	DefaultGoodbyeText = "Goodbye {name}, we will miss you!"
)

// NewTemplate builds the default template of the given scope for a group.
func NewTemplate(groupID int64, scope TemplateScope, now time.Time) *Template {
	text := DefaultWelcomeText
	if scope == ScopeGoodbye {
		text = DefaultGoodbyeText
	}
	return &Template{
		GroupID:    groupID,
		Text:       text,
		MediaType:  MediaNone,
		HasCaption: true,
		ShowTags:   true,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
