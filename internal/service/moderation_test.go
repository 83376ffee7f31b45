package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/groupwarden/core/logger"
	"github.com/m3rciful/groupwarden/internal/domain"
	"log/slog"
)

func seedGroup(groups *fakeGroups, id int64) *domain.Group {
	g := &domain.Group{
		ID:         id,
		Title:      "Test",
		AddedBy:    10,
		IsApproved: true,
		Settings:   domain.DefaultSettings(),
	}
	cp := *g
	groups.byID[id] = &cp
	return g
}

func newModeration(groups *fakeGroups, chat *fakeChat) *Moderation {
	gate := NewGate(newFakeUsers(), groups, []int64{10})
	return NewModeration(groups, chat, gate, Policy{})
}

func TestBlacklistIsIdempotent(t *testing.T) {
	groups := newFakeGroups()
	chat := newFakeChat()
	mod := newModeration(groups, chat)
	g := seedGroup(groups, -1)
	ctx := context.Background()

	if err := mod.Blacklist(ctx, g, 42, 10, "spam"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := mod.Blacklist(ctx, g, 42, 10, "again"); !errors.Is(err, ErrAlreadyBlacklisted) {
		t.Fatalf("second add should report ErrAlreadyBlacklisted, got %v", err)
	}
	if err := mod.Unblacklist(ctx, g, 42); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := mod.Unblacklist(ctx, g, 42); !errors.Is(err, ErrNotBlacklisted) {
		t.Fatalf("second remove should report ErrNotBlacklisted, got %v", err)
	}
}

func TestBlacklistRejectsAdmins(t *testing.T) {
	groups := newFakeGroups()
	chat := newFakeChat()
	mod := newModeration(groups, chat)
	g := seedGroup(groups, -1)
	ctx := context.Background()

	// Allowlisted bot admin.
	if err := mod.Blacklist(ctx, g, 10, 10, ""); !errors.Is(err, ErrTargetIsAdmin) {
		t.Fatalf("allowlisted target: %v", err)
	}
	// Live chat admin.
	chat.admins[77] = true
	if err := mod.Blacklist(ctx, g, 77, 10, ""); !errors.Is(err, ErrTargetIsAdmin) {
		t.Fatalf("chat admin target: %v", err)
	}
}

func TestWarnThresholdSoftKicks(t *testing.T) {
	groups := newFakeGroups()
	chat := newFakeChat()
	mod := newModeration(groups, chat)
	g := seedGroup(groups, -1)
	ctx := context.Background()

	for want := 1; want <= 2; want++ {
		count, kicked, err := mod.Warn(ctx, g, 42, 10, "noise")
		if err != nil || kicked {
			t.Fatalf("warn %d: count=%d kicked=%v err=%v", want, count, kicked, err)
		}
		if count != want {
			t.Fatalf("warn %d: got count %d", want, count)
		}
	}

	count, kicked, err := mod.Warn(ctx, g, 42, 10, "noise")
	if err != nil {
		t.Fatalf("third warn: %v", err)
	}
	if !kicked || count != 0 {
		t.Fatalf("third warn should kick and reset, got count=%d kicked=%v", count, kicked)
	}
	if len(chat.kicks) != 1 || chat.kicks[0] != 42 {
		t.Fatalf("expected one soft-kick of 42, got %v", chat.kicks)
	}
	if _, ok := g.WarningOf(42); ok {
		t.Fatal("warning entry must be removed after the kick")
	}
}

func TestWarnWithoutRestrictPrivilege(t *testing.T) {
	groups := newFakeGroups()
	chat := newFakeChat()
	chat.canRestrict = false
	mod := newModeration(groups, chat)
	g := seedGroup(groups, -1)
	ctx := context.Background()

	g.AddWarning(42, 10, "x", time.Now())
	g.AddWarning(42, 10, "x", time.Now())

	_, kicked, err := mod.Warn(ctx, g, 42, 10, "x")
	if !errors.Is(err, ErrNoRestrictPrivilege) {
		t.Fatalf("expected ErrNoRestrictPrivilege, got %v", err)
	}
	if kicked || len(chat.kicks) != 0 {
		t.Fatal("no kick may happen without restriction privilege")
	}
}

func TestUnwarnDecrementsAndDeletes(t *testing.T) {
	groups := newFakeGroups()
	mod := newModeration(groups, newFakeChat())
	g := seedGroup(groups, -1)
	ctx := context.Background()

	if _, err := mod.Unwarn(ctx, g, 42); !errors.Is(err, ErrNoWarnings) {
		t.Fatalf("unwarn without entry: %v", err)
	}

	g.AddWarning(42, 10, "x", time.Now())
	g.AddWarning(42, 10, "x", time.Now())

	remaining, err := mod.Unwarn(ctx, g, 42)
	if err != nil || remaining != 1 {
		t.Fatalf("unwarn: remaining=%d err=%v", remaining, err)
	}
	remaining, err = mod.Unwarn(ctx, g, 42)
	if err != nil || remaining != 0 {
		t.Fatalf("final unwarn: remaining=%d err=%v", remaining, err)
	}
	if _, ok := g.WarningOf(42); ok {
		t.Fatal("entry must be deleted at zero")
	}
}

func TestBlacklistFromWarningCarriesReason(t *testing.T) {
	groups := newFakeGroups()
	mod := newModeration(groups, newFakeChat())
	g := seedGroup(groups, -1)
	ctx := context.Background()

	g.AddWarning(42, 10, "flooding", time.Now())
	if err := mod.BlacklistFromWarning(ctx, g, 42, 10); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	e, ok := g.BlacklistEntryOf(42)
	if !ok || e.Reason != "flooding" {
		t.Fatalf("expected blacklist entry carrying the warning reason, got %+v ok=%v", e, ok)
	}
	if _, ok := g.WarningOf(42); ok {
		t.Fatal("warning must be removed by escalation")
	}
}

func TestFilterOrderAndExemptions(t *testing.T) {
	groups := newFakeGroups()
	mod := newModeration(groups, newFakeChat())
	g := seedGroup(groups, -1)
	g.Settings.AntiLink = true
	g.Settings.AntiForward = true
	g.Settings.AntiSpam = true

	long := make([]rune, 1001)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name string
		p    Probe
		want Verdict
	}{
		{"link", Probe{SenderID: 1, Text: "check http://example.com"}, VerdictLink},
		{"tme", Probe{SenderID: 1, Text: "join t.me/somewhere"}, VerdictLink},
		{"forward", Probe{SenderID: 1, Text: "fwd", IsForward: true}, VerdictForward},
		{"spam", Probe{SenderID: 1, Text: string(long)}, VerdictSpam},
		{"clean", Probe{SenderID: 1, Text: "hello"}, VerdictNone},
		{"admin exempt", Probe{SenderID: 1, Text: "http://x.y", SenderIsChatAdmin: true}, VerdictNone},
	}
	for _, tc := range cases {
		if got := mod.Filter(g, tc.p); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}

	// The blacklist outranks every other filter and ignores admin status.
	g.AddToBlacklist(domain.BlacklistEntry{UserID: 9})
	p := Probe{SenderID: 9, Text: "hi", SenderIsChatAdmin: true}
	if got := mod.Filter(g, p); got != VerdictBlacklisted {
		t.Fatalf("blacklisted sender: got %q", got)
	}

	// Unapproved groups are never filtered here; the gate handles them.
	g.IsApproved = false
	if got := mod.Filter(g, Probe{SenderID: 9}); got != VerdictNone {
		t.Fatalf("unapproved group: got %q", got)
	}
}

func TestSyncAdminsRefreshesCache(t *testing.T) {
	groups := newFakeGroups()
	mod := newModeration(groups, newFakeChat())
	g := seedGroup(groups, -1)
	ctx := context.Background()

	stale := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	g.Admins = domain.AdminEntries{
		{UserID: 2, AddedAt: stale},
		{UserID: 5, AddedAt: stale},
	}

	if err := mod.SyncAdmins(ctx, g, []int64{2, 3}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !g.IsGroupAdmin(2) || !g.IsGroupAdmin(3) || g.IsGroupAdmin(5) {
		t.Fatalf("unexpected admin set after sync: %+v", g.Admins)
	}
	for _, e := range g.Admins {
		if e.UserID == 2 && !e.AddedAt.Equal(stale) {
			t.Fatalf("kept entry must preserve AddedAt, got %v", e.AddedAt)
		}
	}

	// The refreshed cache feeds the managed-groups listing.
	list, err := groups.ManagedBy(ctx, 3)
	if err != nil || len(list) != 1 || list[0].ID != g.ID {
		t.Fatalf("synced admin must see the group: %v %v", list, err)
	}

	// An unchanged list is not re-saved.
	saves := groups.saves
	if err := mod.SyncAdmins(ctx, g, []int64{2, 3}); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if groups.saves != saves {
		t.Fatal("unchanged admin list must not be re-saved")
	}
}

func TestKickRecordsActorAndReason(t *testing.T) {
	capture := &captureHandler{}
	orig := logger.SVCModeration
	logger.SVCModeration = slog.New(capture)
	defer func() { logger.SVCModeration = orig }()

	groups := newFakeGroups()
	chat := newFakeChat()
	mod := newModeration(groups, chat)
	g := seedGroup(groups, -1)
	ctx := context.Background()

	if err := mod.Kick(ctx, g, 42, 10, "flooding"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(chat.kicks) != 1 || chat.kicks[0] != 42 {
		t.Fatalf("expected one soft-kick of 42, got %v", chat.kicks)
	}

	attrs := capture.attrsOf("user kicked")
	if got := attrs["user_id"].String(); got != "10" {
		t.Fatalf("kick log must carry the acting admin, got %q", got)
	}
	if got := attrs["reason"].String(); got != "flooding" {
		t.Fatalf("kick log must carry the reason, got %q", got)
	}

	// A skipped reason is recorded as the stock substitute.
	if err := mod.Kick(ctx, g, 42, 10, ""); err != nil {
		t.Fatalf("second kick: %v", err)
	}
	attrs = capture.attrsOf("user kicked")
	if got := attrs["reason"].String(); got != "No reason provided" {
		t.Fatalf("blank reason must be substituted in the log, got %q", got)
	}
}
