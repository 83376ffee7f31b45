package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/groupwarden/core/logger"
	"github.com/m3rciful/groupwarden/internal/domain"
	"github.com/m3rciful/groupwarden/internal/storage"
	"log/slog"
)

// UserStore is the persistence surface the gate needs for users.
type UserStore interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	Upsert(ctx context.Context, u *domain.User) error
	Pending(ctx context.Context) ([]domain.User, error)
	ByUsername(ctx context.Context, username string) (*domain.User, error)
}

// GroupStore is the persistence surface the gate and moderation need for groups.
type GroupStore interface {
	Get(ctx context.Context, id int64) (*domain.Group, error)
	Create(ctx context.Context, g *domain.Group) error
	Save(ctx context.Context, g *domain.Group) error
	ManagedBy(ctx context.Context, userID int64) ([]domain.Group, error)
	All(ctx context.Context) ([]domain.Group, error)
}

var (
	// ErrNotApproved marks an action attempted by an unapproved user.
	ErrNotApproved = errors.New("user is not approved")
	// ErrAlreadyApproved marks an approval of an already approved user.
	ErrAlreadyApproved = errors.New("user is already approved")
)

// Gate decides whether users and groups may use bot features. The static
// admin allowlist comes from configuration and is injected at construction.
type Gate struct {
	users    UserStore
	groups   GroupStore
	adminIDs []int64
}

// NewGate constructs the approval gate.
func NewGate(users UserStore, groups GroupStore, adminIDs []int64) *Gate {
	return &Gate{users: users, groups: groups, adminIDs: adminIDs}
}

// IsStaticAdmin reports whether the id is in the configured allowlist.
func (g *Gate) IsStaticAdmin(userID int64) bool {
	for _, id := range g.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AdminIDs returns the configured allowlist for notification fan-out.
func (g *Gate) AdminIDs() []int64 {
	out := make([]int64, len(g.adminIDs))
	copy(out, g.adminIDs)
	return out
}

// IsUserApproved reports whether the user may use bot features: allowlisted,
// or stored with is_approved or is_admin set. No other path grants access.
func (g *Gate) IsUserApproved(ctx context.Context, userID int64) bool {
	if g.IsStaticAdmin(userID) {
		return true
	}
	u, err := g.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.SVCGate.Warn("user lookup failed",
				slog.String("event", "gate.user"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
		return false
	}
	return u.IsApproved || u.IsAdmin
}

// EnsureUser returns the stored user, creating the record on first contact.
// Allowlisted ids are created pre-approved.
func (g *Gate) EnsureUser(ctx context.Context, tu *tele.User) (*domain.User, error) {
	if tu == nil {
		return nil, errors.New("nil telegram user")
	}
	u, err := g.users.Get(ctx, tu.ID)
	if err == nil {
		changed := false
		if u.FirstName != tu.FirstName {
			u.FirstName = tu.FirstName
			changed = true
		}
		if name := optString(tu.LastName); !equalString(u.LastName, name) {
			u.LastName = name
			changed = true
		}
		if name := optString(tu.Username); !equalString(u.Username, name) {
			u.Username = name
			changed = true
		}
		if changed {
			if err := g.users.Upsert(ctx, u); err != nil {
				return nil, err
			}
		}
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	u = &domain.User{
		ID:        tu.ID,
		FirstName: tu.FirstName,
		LastName:  optString(tu.LastName),
		Username:  optString(tu.Username),
	}
	if g.IsStaticAdmin(tu.ID) {
		u.IsAdmin = true
		u.IsApproved = true
		u.ApprovedAt = &now
	}
	if err := g.users.Upsert(ctx, u); err != nil {
		return nil, err
	}
	logger.SVCGate.Info("user created",
		slog.String("event", "gate.user.created"),
		slog.Int64("user_id", u.ID),
		slog.Bool("approved", u.IsApproved),
	)
	return u, nil
}

// SeedAdmin makes sure the allowlisted id has a pre-approved admin row.
// An existing record only gets its flags raised; profile fields are left
// alone so repeated startups cannot clobber the stored name and username.
func (g *Gate) SeedAdmin(ctx context.Context, id int64) (*domain.User, error) {
	u, err := g.users.Get(ctx, id)
	if err == nil {
		if u.IsAdmin && u.IsApproved {
			return u, nil
		}
		now := time.Now().UTC()
		u.IsAdmin = true
		u.IsApproved = true
		if u.ApprovedAt == nil {
			u.ApprovedAt = &now
		}
		if err := g.users.Upsert(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	u = &domain.User{
		ID:         id,
		FirstName:  "Admin",
		IsAdmin:    true,
		IsApproved: true,
		ApprovedAt: &now,
	}
	if err := g.users.Upsert(ctx, u); err != nil {
		return nil, err
	}
	logger.SVCGate.Info("admin seeded",
		slog.String("event", "gate.seed"),
		slog.Int64("user_id", id),
	)
	return u, nil
}

// GetUserByTelegramID exposes user lookup for generic helpers.
func (g *Gate) GetUserByTelegramID(ctx context.Context, id int64) (*domain.User, error) {
	return g.users.Get(ctx, id)
}

// RequestApproval marks the user as waiting for approval. It reports whether
// a request was already pending.
func (g *Gate) RequestApproval(ctx context.Context, userID int64) (*domain.User, bool, error) {
	u, err := g.users.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if u.IsApproved || u.IsAdmin {
		return u, false, ErrAlreadyApproved
	}
	if u.RequestedAt != nil {
		return u, true, nil
	}
	now := time.Now().UTC()
	u.RequestedAt = &now
	if err := g.users.Upsert(ctx, u); err != nil {
		return nil, false, err
	}
	logger.SVCGate.Info("approval requested",
		slog.String("event", "gate.request"),
		slog.Int64("user_id", userID),
	)
	return u, false, nil
}

// Approve grants access to the user and clears the pending request.
func (g *Gate) Approve(ctx context.Context, adminID, userID int64) (*domain.User, error) {
	u, err := g.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsApproved {
		return u, ErrAlreadyApproved
	}
	now := time.Now().UTC()
	u.IsApproved = true
	u.ApprovedBy = &adminID
	u.ApprovedAt = &now
	u.RequestedAt = nil
	if err := g.users.Upsert(ctx, u); err != nil {
		return nil, err
	}
	logger.SVCGate.Info("user approved",
		slog.String("event", "gate.approve"),
		slog.Int64("user_id", userID),
		slog.Int64("target_id", adminID),
	)
	return u, nil
}

// Reject clears the pending request without granting access.
func (g *Gate) Reject(ctx context.Context, adminID, userID int64) (*domain.User, error) {
	u, err := g.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.RequestedAt = nil
	if err := g.users.Upsert(ctx, u); err != nil {
		return nil, err
	}
	logger.SVCGate.Info("user rejected",
		slog.String("event", "gate.reject"),
		slog.Int64("user_id", userID),
		slog.Int64("target_id", adminID),
	)
	return u, nil
}

// PendingRequests lists users awaiting approval.
func (g *Gate) PendingRequests(ctx context.Context) ([]domain.User, error) {
	return g.users.Pending(ctx)
}

// EnsureGroup implements the group gate with its auto-approval side effect:
// when the group is unknown or unapproved and the requester is allowlisted or
// approved, the group record is created/approved in place. The returned bool
// tells the caller whether the group ended up approved; on false the caller
// is expected to make the bot leave the chat.
func (g *Gate) EnsureGroup(ctx context.Context, chatID int64, title string, requesterID int64) (*domain.Group, bool, error) {
	allowed := g.IsUserApproved(ctx, requesterID)
	now := time.Now().UTC()

	grp, err := g.groups.Get(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		grp = &domain.Group{
			ID:       chatID,
			Title:    title,
			AddedBy:  requesterID,
			Settings: domain.DefaultSettings(),
		}
		if allowed {
			grp.IsApproved = true
			grp.ApprovedBy = &requesterID
			grp.ApprovedAt = &now
		}
		if err := g.groups.Create(ctx, grp); err != nil {
			// A concurrent add may have inserted the row first; fall back to it.
			if existing, getErr := g.groups.Get(ctx, chatID); getErr == nil {
				return existing, existing.IsApproved, nil
			}
			return nil, false, err
		}
		logger.SVCGroups.Info("group registered",
			slog.String("event", "group.created"),
			slog.Int64("group_id", chatID),
			slog.Int64("user_id", requesterID),
			slog.Bool("approved", grp.IsApproved),
		)
		return grp, grp.IsApproved, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gate group %d: %w", chatID, err)
	}

	if title != "" && grp.Title != title {
		grp.Title = title
		if err := g.groups.Save(ctx, grp); err != nil {
			return nil, false, err
		}
	}
	if grp.IsApproved {
		return grp, true, nil
	}
	if !allowed {
		return grp, false, nil
	}
	grp.IsApproved = true
	grp.ApprovedBy = &requesterID
	grp.ApprovedAt = &now
	if err := g.groups.Save(ctx, grp); err != nil {
		return nil, false, err
	}
	logger.SVCGroups.Info("group approved",
		slog.String("event", "group.approved"),
		slog.Int64("group_id", chatID),
		slog.Int64("user_id", requesterID),
	)
	return grp, true, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalString(a *string, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
