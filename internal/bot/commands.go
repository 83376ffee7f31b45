package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/groupwarden/core/logger"
	tg "github.com/m3rciful/groupwarden/core/telegram"
	"github.com/m3rciful/groupwarden/core/telegram/commands"
	tghelpers "github.com/m3rciful/groupwarden/core/telegram/helpers"
	"github.com/m3rciful/groupwarden/internal/domain"
	"github.com/m3rciful/groupwarden/internal/service"
	"github.com/m3rciful/groupwarden/internal/session"
	"github.com/m3rciful/groupwarden/internal/storage"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

func (a *App) registerCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Start the bot and request access",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.cmdHelp,
		Description: "Show available commands",
	})
	reg.RegisterCommand("/addgroup", commands.Command{
		Handler:     a.cmdAddGroup,
		Description: "Register a group by forwarding a message from it",
	})
	reg.RegisterCommand("/groups", commands.Command{
		Handler:     a.cmdGroups,
		Description: "List the groups you manage",
	})
	reg.RegisterCommand("/settings", commands.Command{
		Handler:     a.cmdGroups,
		Description: "Open the settings panel of a group",
	})
	reg.RegisterCommand("/requests", commands.Command{
		Handler:     a.cmdRequests,
		Description: "List pending approval requests",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/approve", commands.Command{
		Handler:     a.cmdApprove,
		Description: "Approve a user by id or @username",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/reject", commands.Command{
		Handler:     a.cmdReject,
		Description: "Reject a pending user",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/add", commands.Command{
		Handler:     a.cmdInvite,
		Description: "Create a fresh invite link for this group",
	})
	reg.RegisterCommand("/adminlist", commands.Command{
		Handler:     a.cmdAdminList,
		Description: "List the admins of this group",
	})
	reg.RegisterCommand("/bl", commands.Command{
		Handler:     a.cmdBlacklist,
		Description: "Blacklist a user (reply or id/@username)",
		Aliases:     []string{"blacklist"},
	})
	reg.RegisterCommand("/unbl", commands.Command{
		Handler:     a.cmdUnblacklist,
		Description: "Remove a user from the blacklist",
	})
	reg.RegisterCommand("/warn", commands.Command{
		Handler:     a.cmdWarn,
		Description: "Warn a user",
	})
	reg.RegisterCommand("/unwarn", commands.Command{
		Handler:     a.cmdUnwarn,
		Description: "Remove one warning from a user",
	})
	reg.RegisterCommand("/kick", commands.Command{
		Handler:     a.cmdKick,
		Description: "Kick a user out of the group",
	})
	reg.RegisterCommand("/setwelcome", commands.Command{
		Handler:     a.templateCommand(domain.ScopeWelcome),
		Description: "Configure the welcome message",
	})
	reg.RegisterCommand("/setgoodbye", commands.Command{
		Handler:     a.templateCommand(domain.ScopeGoodbye),
		Description: "Configure the goodbye message",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.cmdCancel,
		Description: "Cancel the current operation",
	})
}

func (a *App) cmdStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	u, err := a.gate.EnsureUser(ctx, c.Sender())
	if err != nil {
		return a.reportError(c, err)
	}
	if u.IsApproved || u.IsAdmin {
		return c.Send("Welcome back! Use /groups to manage your groups or /help for the full command list.")
	}

	markup := &tele.ReplyMarkup{}
	btn := markup.Data("📨 Request Approval", string(ActRequestApproval), "")
	markup.InlineKeyboard = [][]tele.InlineButton{{*btn.Inline()}}
	return c.Send("This bot requires admin approval before use.", markup)
}

func (a *App) cmdHelp(c tele.Context) error {
	return c.Send(strings.Join([]string{
		"Group management:",
		"/addgroup - register a group by forwarding a message from it",
		"/groups - list and configure the groups you manage",
		"/setwelcome, /setgoodbye - configure greeting messages (in a group)",
		"",
		"Moderation (in a group, reply or id/@username):",
		"/bl, /unbl - blacklist management",
		"/warn, /unwarn - warnings (3 warnings = kick)",
		"/kick - kick a user",
		"/add - create an invite link",
		"/adminlist - list group admins",
		"",
		"/cancel - cancel the current operation",
	}, "\n"))
}

func (a *App) cmdAddGroup(c tele.Context) error {
	if !isPrivate(c) {
		return c.Send("Use /addgroup in a private chat with me.")
	}
	if _, ok := a.requireApproved(c); !ok {
		return nil
	}
	a.sessions.Begin(c.Sender().ID, session.Flow{
		Kind:      session.KindGroupForward,
		StartedAt: time.Now(),
	})
	return c.Send("Forward me any message from the group you want to register. Send /cancel to abort.")
}

func (a *App) cmdGroups(c tele.Context) error {
	if !isPrivate(c) {
		return c.Send("Use /groups in a private chat with me.")
	}
	ctx, ok := a.requireApproved(c)
	if !ok {
		return nil
	}
	groups, err := a.store.Groups.ManagedBy(ctx, c.Sender().ID)
	if err != nil {
		return a.reportError(c, err)
	}
	if len(groups) == 0 {
		return c.Send("You do not manage any approved groups yet. Use /addgroup to register one.")
	}
	return c.Send("Select a group to manage:", groupListMarkup(groups))
}

func (a *App) cmdRequests(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	pending, err := a.gate.PendingRequests(ctx)
	if err != nil {
		return a.reportError(c, err)
	}
	if len(pending) == 0 {
		return c.Send("No pending approval requests.")
	}
	for _, u := range pending {
		markup := &tele.ReplyMarkup{}
		approve := markup.Data("✅ Approve", string(ActApproveUser), Action{Kind: ActApproveUser, UserID: u.ID}.Payload())
		reject := markup.Data("🚫 Reject", string(ActRejectUser), Action{Kind: ActRejectUser, UserID: u.ID}.Payload())
		markup.InlineKeyboard = [][]tele.InlineButton{{*approve.Inline(), *reject.Inline()}}
		if err := c.Send(describeUser(&u), markup); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cmdApprove(c tele.Context) error {
	return a.decideApproval(c, "/approve", true)
}

func (a *App) cmdReject(c tele.Context) error {
	return a.decideApproval(c, "/reject", false)
}

func (a *App) decideApproval(c tele.Context, command string, approve bool) error {
	ctx := tghelpers.BuildContext(c)
	args := c.Args()
	if len(args) != 1 {
		return c.Send(approvalUsage(command))
	}
	targetID, err := a.resolveUserArg(ctx, args[0])
	if err != nil {
		return c.Send("I could not find that user. Use a numeric id or a known @username.")
	}

	if approve {
		_, err = a.gate.Approve(ctx, c.Sender().ID, targetID)
	} else {
		_, err = a.gate.Reject(ctx, c.Sender().ID, targetID)
	}
	switch {
	case errors.Is(err, service.ErrAlreadyApproved):
		return c.Send("That user is already approved.")
	case errors.Is(err, storage.ErrNotFound):
		return c.Send("That user has never talked to me.")
	case err != nil:
		return a.reportError(c, err)
	}

	if approve {
		_ = a.platform.SendTo(ctx, targetID, "🎉 Your access request was approved. Send /start to begin.")
		return c.Send("User approved.")
	}
	_ = a.platform.SendTo(ctx, targetID, "Your access request was declined.")
	return c.Send("Request rejected.")
}

func (a *App) cmdInvite(c tele.Context) error {
	g, ctx, ok := a.requireGroupCommand(c)
	if !ok {
		return nil
	}
	link, err := a.platform.InviteLink(ctx, g.ID)
	if err != nil {
		return c.Send("I could not create an invite link. Make sure I am an admin with invite rights.")
	}
	return c.Send("Invite link: " + link)
}

func (a *App) cmdAdminList(c tele.Context) error {
	g, ctx, ok := a.requireGroupCommand(c)
	if !ok {
		return nil
	}
	admins, err := a.platform.AdminsOf(ctx, g.ID)
	if err != nil {
		return c.Send("I could not fetch the admin list.")
	}
	lines := make([]string, 0, len(admins)+1)
	lines = append(lines, fmt.Sprintf("Admins of %s:", g.Title))
	ids := make([]int64, 0, len(admins))
	for _, m := range admins {
		if m.User == nil {
			continue
		}
		role := "admin"
		if m.Role == tele.Creator {
			role = "creator"
		}
		lines = append(lines, fmt.Sprintf("• %s (%s)", displayName(m.User), role))
		if !m.User.IsBot {
			ids = append(ids, m.User.ID)
		}
	}
	if err := a.mod.SyncAdmins(ctx, g, ids); err != nil {
		logger.SVCModeration.Warn("admin cache refresh failed",
			slog.String("event", "moderation.sync_admins"),
			slog.Int64("group_id", g.ID),
			slog.String("err", err.Error()),
		)
	}
	return c.Send(strings.Join(lines, "\n"))
}

func (a *App) cmdBlacklist(c tele.Context) error {
	return a.groupModeration(c, func(ctx context.Context, g *domain.Group, targetID int64, reason string) (string, error) {
		if err := a.mod.Blacklist(ctx, g, targetID, c.Sender().ID, reason); err != nil {
			return "", err
		}
		return fmt.Sprintf("User %d blacklisted.", targetID), nil
	})
}

func (a *App) cmdUnblacklist(c tele.Context) error {
	return a.groupModeration(c, func(ctx context.Context, g *domain.Group, targetID int64, _ string) (string, error) {
		if err := a.mod.Unblacklist(ctx, g, targetID); err != nil {
			return "", err
		}
		return fmt.Sprintf("User %d removed from the blacklist.", targetID), nil
	})
}

func (a *App) cmdWarn(c tele.Context) error {
	return a.groupModeration(c, func(ctx context.Context, g *domain.Group, targetID int64, reason string) (string, error) {
		count, kicked, err := a.mod.Warn(ctx, g, targetID, c.Sender().ID, reason)
		if err != nil {
			return "", err
		}
		if kicked {
			return fmt.Sprintf("User %d reached %d warnings and was kicked.", targetID, a.mod.Policy().WarnThreshold), nil
		}
		return fmt.Sprintf("User %d warned (%d/%d).", targetID, count, a.mod.Policy().WarnThreshold), nil
	})
}

func (a *App) cmdUnwarn(c tele.Context) error {
	return a.groupModeration(c, func(ctx context.Context, g *domain.Group, targetID int64, _ string) (string, error) {
		remaining, err := a.mod.Unwarn(ctx, g, targetID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed one warning from user %d (%d left).", targetID, remaining), nil
	})
}

func (a *App) cmdKick(c tele.Context) error {
	return a.groupModeration(c, func(ctx context.Context, g *domain.Group, targetID int64, reason string) (string, error) {
		if err := a.mod.Kick(ctx, g, targetID, c.Sender().ID, reason); err != nil {
			return "", err
		}
		return fmt.Sprintf("User %d was kicked.", targetID), nil
	})
}

// templateCommand opens the welcome/goodbye menu for the current group in the
// caller's private chat.
func (a *App) templateCommand(scope domain.TemplateScope) tele.HandlerFunc {
	return func(c tele.Context) error {
		g, ctx, ok := a.requireGroupCommand(c)
		if !ok {
			return nil
		}
		t, err := a.store.Templates.GetOrCreate(ctx, g.ID, scope)
		if err != nil {
			return a.reportError(c, err)
		}
		text, markup := templateMenu(g, t, scope)
		if err := a.platform.SendTo(ctx, c.Sender().ID, text, markup); err != nil {
			return c.Send("I could not message you privately. Start a chat with me first, then retry.")
		}
		return c.Send("Check your private chat with me to continue.")
	}
}

func (a *App) cmdCancel(c tele.Context) error {
	if a.sessions.Clear(c.Sender().ID) {
		return c.Send("Cancelled.")
	}
	return c.Send("Nothing to cancel.")
}

// --- shared helpers ---

func isPrivate(c tele.Context) bool {
	return c.Chat() != nil && c.Chat().Type == tele.ChatPrivate
}

func isGroupChat(c tele.Context) bool {
	if c.Chat() == nil {
		return false
	}
	return c.Chat().Type == tele.ChatGroup || c.Chat().Type == tele.ChatSuperGroup
}

// requireApproved gates a private-chat feature behind the approval list.
func (a *App) requireApproved(c tele.Context) (context.Context, bool) {
	ctx := tghelpers.BuildContext(c)
	if !a.gate.IsUserApproved(ctx, c.Sender().ID) {
		_ = c.Send("You are not approved to use this bot yet. Send /start to request access.")
		return ctx, false
	}
	return ctx, true
}

// requireGroupCommand gates a group-chat command: it must run inside an
// approved group and the caller must be a chat admin or a bot operator.
func (a *App) requireGroupCommand(c tele.Context) (*domain.Group, context.Context, bool) {
	ctx := tghelpers.BuildContext(c)
	if !isGroupChat(c) {
		_ = c.Send("This command only works inside a group.")
		return nil, ctx, false
	}
	g, err := a.store.Groups.Get(ctx, c.Chat().ID)
	if err != nil || !g.IsApproved {
		_ = c.Send("This group is not registered with the bot.")
		return nil, ctx, false
	}
	if !a.gate.IsStaticAdmin(c.Sender().ID) {
		isAdmin, err := a.platform.IsChatAdmin(ctx, g.ID, c.Sender().ID)
		if err != nil || !isAdmin {
			_ = c.Send("Only group admins can use this command.")
			return nil, ctx, false
		}
	}
	return g, ctx, true
}

type moderationFunc func(ctx context.Context, g *domain.Group, targetID int64, reason string) (string, error)

// groupModeration resolves the target from the reply or the first argument,
// runs the action, and reports the result or a readable error.
func (a *App) groupModeration(c tele.Context, run moderationFunc) error {
	g, ctx, ok := a.requireGroupCommand(c)
	if !ok {
		return nil
	}

	args := c.Args()
	targetID, reason, err := a.resolveTarget(ctx, c.Message(), args)
	if err != nil {
		return c.Send("Reply to the user's message, or pass a numeric id or @username.")
	}

	text, err := run(ctx, g, targetID, reason)
	if err != nil {
		return c.Send(moderationErrorText(err))
	}
	return c.Send(text)
}

// resolveTarget extracts the target user from a replied-to message or from the
// leading argument. The remaining arguments form the reason.
func (a *App) resolveTarget(ctx context.Context, msg *tele.Message, args []string) (int64, string, error) {
	if msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender.ID, strings.Join(args, " "), nil
	}
	if len(args) == 0 {
		return 0, "", errors.New("no target")
	}
	id, err := a.resolveUserArg(ctx, args[0])
	if err != nil {
		return 0, "", err
	}
	return id, strings.Join(args[1:], " "), nil
}

// resolveUserArg maps a numeric id or @username argument to a user id.
func (a *App) resolveUserArg(ctx context.Context, arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	if !strings.HasPrefix(arg, "@") || len(arg) < 2 {
		return 0, fmt.Errorf("unresolvable target %q", arg)
	}
	u, err := a.store.Users.ByUsername(ctx, arg[1:])
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func approvalUsage(command string) string {
	return "Usage: " + command + " <user id or @username>"
}

func moderationErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrTargetIsAdmin):
		return "I cannot take action against an admin."
	case errors.Is(err, service.ErrAlreadyBlacklisted):
		return "That user is already blacklisted."
	case errors.Is(err, service.ErrNotBlacklisted):
		return "That user is not on the blacklist."
	case errors.Is(err, service.ErrNoWarnings):
		return "That user has no warnings."
	case errors.Is(err, service.ErrNoRestrictPrivilege):
		return "I need the restrict-members admin right to do that."
	default:
		return "The action failed: " + err.Error()
	}
}

func describeUser(u *domain.User) string {
	name := u.FirstName
	if u.LastName != nil {
		name += " " + *u.LastName
	}
	line := fmt.Sprintf("Approval request from %s (id %d)", name, u.ID)
	if u.Username != nil {
		line += " @" + *u.Username
	}
	if u.RequestedAt != nil {
		line += "\nrequested " + u.RequestedAt.UTC().Format("2006-01-02 15:04 UTC")
	}
	return line
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}
