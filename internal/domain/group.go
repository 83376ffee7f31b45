package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BlacklistEntry records one blacklisted user of a group.
type BlacklistEntry struct {
	UserID  int64     `json:"user_id"`
	AddedBy int64     `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
	Reason  string    `json:"reason"`
}

// WarningEntry records the warning counter of one user in a group.
type WarningEntry struct {
	UserID  int64     `json:"user_id"`
	AddedBy int64     `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
	Reason  string    `json:"reason"`
	Count   int       `json:"count"`
}

// AdminEntry records a bot-level manager of a group.
type AdminEntry struct {
	UserID  int64     `json:"user_id"`
	AddedBy int64     `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Settings is the fixed set of per-group moderation switches.
type Settings struct {
	WelcomeEnabled     bool `json:"welcome_enabled"`
	GoodbyeEnabled     bool `json:"goodbye_enabled"`
	AntiSpam           bool `json:"anti_spam"`
	AntiLink           bool `json:"anti_link"`
	AntiForward        bool `json:"anti_forward"`
	RestrictNewMembers bool `json:"restrict_new_members"`
	AutoDeleteCommands bool `json:"auto_delete_commands"`
	AdminOnlyCommands  bool `json:"admin_only_commands"`
}

// DefaultSettings returns the switches a freshly registered group starts with.
func DefaultSettings() Settings {
	return Settings{WelcomeEnabled: true, GoodbyeEnabled: true}
}

// BlacklistEntries is stored as one JSONB column so the group document is
// saved wholesale.
type BlacklistEntries []BlacklistEntry

// WarningEntries is stored as one JSONB column.
type WarningEntries []WarningEntry

// AdminEntries is stored as one JSONB column.
type AdminEntries []AdminEntry

// Group is a managed chat. All embedded lists live inside the group record;
// saving the group persists them together.
type Group struct {
	ID         int64            `db:"id"`
	Title      string           `db:"title"`
	AddedBy    int64            `db:"added_by"`
	IsApproved bool             `db:"is_approved"`
	ApprovedBy *int64           `db:"approved_by"`
	ApprovedAt *time.Time       `db:"approved_at"`
	Blacklist  BlacklistEntries `db:"blacklist"`
	Warnings   WarningEntries   `db:"warnings"`
	Settings   Settings         `db:"settings"`
	Admins     AdminEntries     `db:"admins"`
	CreatedAt  time.Time        `db:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at"`
}

// BlacklistEntryOf returns the blacklist entry for the user, if present.
func (g *Group) BlacklistEntryOf(userID int64) (BlacklistEntry, bool) {
	for _, e := range g.Blacklist {
		if e.UserID == userID {
			return e, true
		}
	}
	return BlacklistEntry{}, false
}

// IsBlacklisted reports whether the user is on the group blacklist.
func (g *Group) IsBlacklisted(userID int64) bool {
	_, ok := g.BlacklistEntryOf(userID)
	return ok
}

// AddToBlacklist appends an entry, keeping one entry per user.
// It reports false when the user is already blacklisted.
func (g *Group) AddToBlacklist(e BlacklistEntry) bool {
	if g.IsBlacklisted(e.UserID) {
		return false
	}
	g.Blacklist = append(g.Blacklist, e)
	return true
}

// RemoveFromBlacklist deletes the entry for the user and reports whether
// one was present.
func (g *Group) RemoveFromBlacklist(userID int64) bool {
	for i, e := range g.Blacklist {
		if e.UserID == userID {
			g.Blacklist = append(g.Blacklist[:i], g.Blacklist[i+1:]...)
			return true
		}
	}
	return false
}

// WarningOf returns the warning entry for the user, if present.
func (g *Group) WarningOf(userID int64) (WarningEntry, bool) {
	for _, e := range g.Warnings {
		if e.UserID == userID {
			return e, true
		}
	}
	return WarningEntry{}, false
}

// AddWarning increments the warning counter for the user, creating the entry
// at count 1 on first warn, and returns the resulting count.
func (g *Group) AddWarning(userID, addedBy int64, reason string, now time.Time) int {
	for i := range g.Warnings {
		if g.Warnings[i].UserID == userID {
			g.Warnings[i].Count++
			g.Warnings[i].Reason = reason
			g.Warnings[i].AddedBy = addedBy
			g.Warnings[i].AddedAt = now
			return g.Warnings[i].Count
		}
	}
	g.Warnings = append(g.Warnings, WarningEntry{
		UserID:  userID,
		AddedBy: addedBy,
		AddedAt: now,
		Reason:  reason,
		Count:   1,
	})
	return 1
}

// RemoveWarning decrements the warning counter and deletes the entry when the
// count would drop to zero. It returns the remaining count and whether an
// entry existed.
func (g *Group) RemoveWarning(userID int64) (int, bool) {
	for i := range g.Warnings {
		if g.Warnings[i].UserID != userID {
			continue
		}
		g.Warnings[i].Count--
		if g.Warnings[i].Count <= 0 {
			g.Warnings = append(g.Warnings[:i], g.Warnings[i+1:]...)
			return 0, true
		}
		return g.Warnings[i].Count, true
	}
	return 0, false
}

// ClearWarnings drops the warning entry for the user entirely.
func (g *Group) ClearWarnings(userID int64) {
	for i := range g.Warnings {
		if g.Warnings[i].UserID == userID {
			g.Warnings = append(g.Warnings[:i], g.Warnings[i+1:]...)
			return
		}
	}
}

// IsGroupAdmin reports whether the user is a bot-level manager of the group.
func (g *Group) IsGroupAdmin(userID int64) bool {
	if g.AddedBy == userID {
		return true
	}
	for _, e := range g.Admins {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func (g *Group) adminEntryOf(userID int64) (AdminEntry, bool) {
	for _, e := range g.Admins {
		if e.UserID == userID {
			return e, true
		}
	}
	return AdminEntry{}, false
}

// SyncAdmins replaces the cached admin list with the live chat admins,
// keeping the original AddedAt of ids that were already present. It reports
// whether the set changed.
func (g *Group) SyncAdmins(ids []int64, at time.Time) bool {
	fresh := make(AdminEntries, 0, len(ids))
	changed := len(ids) != len(g.Admins)
	for _, id := range ids {
		if prev, ok := g.adminEntryOf(id); ok {
			fresh = append(fresh, prev)
			continue
		}
		changed = true
		fresh = append(fresh, AdminEntry{UserID: id, AddedAt: at})
	}
	g.Admins = fresh
	return changed
}

func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func jsonScan(dst any, src any) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// Value implements driver.Valuer for the blacklist JSONB column.
func (e BlacklistEntries) Value() (driver.Value, error) { return jsonValue([]BlacklistEntry(e)) }

// Scan implements sql.Scanner for the blacklist JSONB column.
func (e *BlacklistEntries) Scan(src any) error { return jsonScan(e, src) }

// Value implements driver.Valuer for the warnings JSONB column.
func (e WarningEntries) Value() (driver.Value, error) { return jsonValue([]WarningEntry(e)) }

// Scan implements sql.Scanner for the warnings JSONB column.
func (e *WarningEntries) Scan(src any) error { return jsonScan(e, src) }

// Value implements driver.Valuer for the admins JSONB column.
func (e AdminEntries) Value() (driver.Value, error) { return jsonValue([]AdminEntry(e)) }

// Scan implements sql.Scanner for the admins JSONB column.
func (e *AdminEntries) Scan(src any) error { return jsonScan(e, src) }

// Value implements driver.Valuer for the settings JSONB column.
func (s Settings) Value() (driver.Value, error) { return jsonValue(s) }

// Scan implements sql.Scanner for the settings JSONB column.
func (s *Settings) Scan(src any) error { return jsonScan(s, src) }
