package service

import (
	"context"
	"errors"

	"time"

	"github.com/m3rciful/groupwarden/core/logger"
	"github.com/m3rciful/groupwarden/internal/domain"
	"log/slog"
)

// ChatOps is the live chat capability surface moderation needs. All calls go
// to the platform and are never cached.
type ChatOps interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	BotCanRestrict(ctx context.Context, chatID int64) (bool, error)
	SoftKick(ctx context.Context, chatID, userID int64) error
}

var (
	// ErrAlreadyBlacklisted marks a duplicate blacklist add.
	ErrAlreadyBlacklisted = errors.New("user is already blacklisted")
	// ErrNotBlacklisted marks a removal of an absent blacklist entry.
	ErrNotBlacklisted = errors.New("user is not blacklisted")
	// ErrTargetIsAdmin marks a moderation action aimed at an admin.
	ErrTargetIsAdmin = errors.New("target is an admin")
	// ErrNoRestrictPrivilege marks a kick attempted without restriction rights.
	ErrNoRestrictPrivilege = errors.New("bot lacks restriction privilege")
	// ErrNoWarnings marks an unwarn of a user with no warning entry.
	ErrNoWarnings = errors.New("user has no warnings")
)

// Policy carries the tunable moderation constants.
type Policy struct {
	// WarnThreshold is the warning count that triggers the automatic soft-kick.
	WarnThreshold int
	// DefaultReason substitutes a skipped reason input.
	DefaultReason string
	// MaxMessageLength is the anti-spam length cutoff.
	MaxMessageLength int
}

// NormalizePolicy fills zero fields with the stock values.
func NormalizePolicy(p Policy) Policy {
	if p.WarnThreshold <= 0 {
		p.WarnThreshold = 3
	}
	if p.DefaultReason == "" {
		p.DefaultReason = "No reason provided"
	}
	if p.MaxMessageLength <= 0 {
		p.MaxMessageLength = 1000
	}
	return p
}

// Moderation implements blacklist, warning, and kick operations per group.
// Group documents are saved wholesale; concurrent writers follow
// last-writer-wins semantics.
type Moderation struct {
	groups GroupStore
	chat   ChatOps
	gate   *Gate
	policy Policy
}

// NewModeration constructs the moderation engine.
func NewModeration(groups GroupStore, chat ChatOps, gate *Gate, policy Policy) *Moderation {
	return &Moderation{
		groups: groups,
		chat:   chat,
		gate:   gate,
		policy: NormalizePolicy(policy),
	}
}

// Policy exposes the active constants.
func (m *Moderation) Policy() Policy { return m.policy }

// checkTarget rejects moderation aimed at allowlisted, bot-level, or live
// chat admins. The chat admin status is queried live per call.
func (m *Moderation) checkTarget(ctx context.Context, g *domain.Group, targetID int64) error {
	if m.gate != nil && m.gate.IsStaticAdmin(targetID) {
		return ErrTargetIsAdmin
	}
	if g.IsGroupAdmin(targetID) {
		return ErrTargetIsAdmin
	}
	if m.chat != nil {
		isAdmin, err := m.chat.IsChatAdmin(ctx, g.ID, targetID)
		if err != nil {
			logger.SVCModeration.Warn("admin status check failed",
				slog.String("event", "moderation.target"),
				slog.Int64("group_id", g.ID),
				slog.Int64("target_id", targetID),
				slog.String("err", err.Error()),
			)
		} else if isAdmin {
			return ErrTargetIsAdmin
		}
	}
	return nil
}

// ValidateTarget exposes the admin-target rejection for callers that resolve
// targets interactively before picking an action.
func (m *Moderation) ValidateTarget(ctx context.Context, g *domain.Group, targetID int64) error {
	return m.checkTarget(ctx, g, targetID)
}

// Blacklist adds the target to the group blacklist. Adding a present user is
// a reported no-op.
func (m *Moderation) Blacklist(ctx context.Context, g *domain.Group, targetID, byID int64, reason string) error {
	if err := m.checkTarget(ctx, g, targetID); err != nil {
		return err
	}
	if reason == "" {
		reason = m.policy.DefaultReason
	}
	if !g.AddToBlacklist(domain.BlacklistEntry{
		UserID:  targetID,
		AddedBy: byID,
		AddedAt: time.Now().UTC(),
		Reason:  reason,
	}) {
		return ErrAlreadyBlacklisted
	}
	if err := m.groups.Save(ctx, g); err != nil {
		return err
	}
	logger.SVCModeration.Info("user blacklisted",
		slog.String("event", "moderation.blacklist"),
		slog.Int64("group_id", g.ID),
		slog.Int64("target_id", targetID),
	)
	return nil
}

// Unblacklist removes the target from the blacklist. Removing an absent user
// is a reported no-op.
func (m *Moderation) Unblacklist(ctx context.Context, g *domain.Group, targetID int64) error {
	if !g.RemoveFromBlacklist(targetID) {
		return ErrNotBlacklisted
	}
	if err := m.groups.Save(ctx, g); err != nil {
		return err
	}
	logger.SVCModeration.Info("user unblacklisted",
		slog.String("event", "moderation.unblacklist"),
		slog.Int64("group_id", g.ID),
		slog.Int64("target_id", targetID),
	)
	return nil
}

// BlacklistFromWarning converts a warning entry into a blacklist entry,
// carrying the last warning's reason, and removes the warning.
func (m *Moderation) BlacklistFromWarning(ctx context.Context, g *domain.Group, targetID, byID int64) error {
	w, ok := g.WarningOf(targetID)
	if !ok {
		return ErrNoWarnings
	}
	if g.IsBlacklisted(targetID) {
		return ErrAlreadyBlacklisted
	}
	g.ClearWarnings(targetID)
	g.AddToBlacklist(domain.BlacklistEntry{
		UserID:  targetID,
		AddedBy: byID,
		AddedAt: time.Now().UTC(),
		Reason:  w.Reason,
	})
	if err := m.groups.Save(ctx, g); err != nil {
		return err
	}
	logger.SVCModeration.Info("warning escalated",
		slog.String("event", "moderation.escalate"),
		slog.Int64("group_id", g.ID),
		slog.Int64("target_id", targetID),
	)
	return nil
}

// Warn increments the warning counter. Reaching the threshold soft-kicks the
// target and deletes the warning entry; the kick path needs live restriction
// privilege and reports its absence without mutating further.
func (m *Moderation) Warn(ctx context.Context, g *domain.Group, targetID, byID int64, reason string) (count int, kicked bool, err error) {
	if err := m.checkTarget(ctx, g, targetID); err != nil {
		return 0, false, err
	}
	if reason == "" {
		reason = m.policy.DefaultReason
	}

	count = g.AddWarning(targetID, byID, reason, time.Now().UTC())
	if count >= m.policy.WarnThreshold {
		if err := m.softKick(ctx, g.ID, targetID); err != nil {
			return count, false, err
		}
		g.ClearWarnings(targetID)
		count = 0
		kicked = true
	}
	if err := m.groups.Save(ctx, g); err != nil {
		return count, kicked, err
	}
	logger.SVCModeration.Info("user warned",
		slog.String("event", "moderation.warn"),
		slog.Int64("group_id", g.ID),
		slog.Int64("target_id", targetID),
		slog.Int("warn_count", count),
		slog.Bool("kicked", kicked),
	)
	return count, kicked, nil
}

// Unwarn decrements the warning counter, deleting the entry at zero.
func (m *Moderation) Unwarn(ctx context.Context, g *domain.Group, targetID int64) (int, error) {
	remaining, found := g.RemoveWarning(targetID)
	if !found {
		return 0, ErrNoWarnings
	}
	if err := m.groups.Save(ctx, g); err != nil {
		return remaining, err
	}
	logger.SVCModeration.Info("warning removed",
		slog.String("event", "moderation.unwarn"),
		slog.Int64("group_id", g.ID),
		slog.Int64("target_id", targetID),
		slog.Int("warn_count", remaining),
	)
	return remaining, nil
}

// Kick soft-kicks the target out of the group: kick followed by unban so a
// fresh invite lets the user rejoin.
func (m *Moderation) Kick(ctx context.Context, g *domain.Group, targetID, byID int64, reason string) error {
	if err := m.checkTarget(ctx, g, targetID); err != nil {
		return err
	}
	if reason == "" {
		reason = m.policy.DefaultReason
	}
	if err := m.softKick(ctx, g.ID, targetID); err != nil {
		return err
	}
	logger.SVCModeration.Info("user kicked",
		slog.String("event", "moderation.kick"),
		slog.Int64("group_id", g.ID),
		slog.Int64("target_id", targetID),
		slog.Int64("user_id", byID),
		slog.String("reason", reason),
	)
	return nil
}

// SyncAdmins caches the live chat admin list on the group document so
// offline checks (the managed-groups listing, checkTarget) see current
// admins. An unchanged list is not re-saved.
func (m *Moderation) SyncAdmins(ctx context.Context, g *domain.Group, adminIDs []int64) error {
	if !g.SyncAdmins(adminIDs, time.Now().UTC()) {
		return nil
	}
	if err := m.groups.Save(ctx, g); err != nil {
		return err
	}
	logger.SVCModeration.Info("admin cache refreshed",
		slog.String("event", "moderation.sync_admins"),
		slog.Int64("group_id", g.ID),
		slog.Int("count", len(adminIDs)),
	)
	return nil
}

func (m *Moderation) softKick(ctx context.Context, chatID, targetID int64) error {
	if m.chat == nil {
		return ErrNoRestrictPrivilege
	}
	can, err := m.chat.BotCanRestrict(ctx, chatID)
	if err != nil {
		return err
	}
	if !can {
		return ErrNoRestrictPrivilege
	}
	return m.chat.SoftKick(ctx, chatID, targetID)
}
