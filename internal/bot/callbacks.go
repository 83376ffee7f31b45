package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/groupwarden/core/logger"
	tg "github.com/m3rciful/groupwarden/core/telegram"
	"github.com/m3rciful/groupwarden/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/groupwarden/core/telegram/helpers"
	"github.com/m3rciful/groupwarden/internal/domain"
	"github.com/m3rciful/groupwarden/internal/render"
	"github.com/m3rciful/groupwarden/internal/service"
	"github.com/m3rciful/groupwarden/internal/session"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// actionHandler receives an already-parsed action.
type actionHandler func(c tele.Context, act Action) error

func (a *App) registerCallbacks(reg *tg.Registry) error {
	handlers := map[ActionKind]actionHandler{
		ActRequestApproval: a.cbRequestApproval,
		ActApproveUser:     a.cbDecideUser(true),
		ActRejectUser:      a.cbDecideUser(false),

		ActGroupList:   a.cbGroupList,
		ActManageGroup: a.cbManageGroup,

		ActToggleSetting: a.cbToggleSetting,

		ActTemplateMenu:          a.cbTemplateMenu,
		ActTemplateEditText:      a.cbTemplateEditText,
		ActTemplateSetMedia:      a.cbTemplateSetMedia,
		ActTemplateAddButton:     a.cbTemplateAddButton,
		ActTemplateClearButtons:  a.cbTemplateClearButtons,
		ActTemplateToggleButtons: a.cbTemplateToggle,
		ActTemplateToggleTags:    a.cbTemplateToggle,
		ActTemplateToggleOn:      a.cbTemplateToggle,
		ActTemplatePreview:       a.cbTemplatePreview,

		ActBlacklistPage:  a.cbBlacklistPage,
		ActBlacklistInfo:  a.cbBlacklistInfo,
		ActUnblacklist:    a.cbUnblacklist,
		ActBlacklistStart: a.cbModerationStart(session.KindBlacklistTarget),
		ActWarnStart:      a.cbModerationStart(session.KindWarnTarget),
		ActKickStart:      a.cbModerationStart(session.KindKickTarget),

		ActWarningsPage: a.cbWarningsPage,
		ActWarningInfo:  a.cbWarningInfo,
		ActUnwarn:       a.cbUnwarn,
		ActEscalate:     a.cbEscalate,
	}

	for kind, fn := range handlers {
		kind, fn := kind, fn
		h := func(c tele.Context) error {
			act, err := ParseAction(kind, callbacks.CallbackPayload(c))
			if err != nil {
				logger.TG.Warn("malformed callback payload",
					slog.String("event", "cb.parse"),
					slog.String("err", err.Error()),
				)
				return c.Respond(&tele.CallbackResponse{Text: "Unrecognized action"})
			}
			return fn(c, act)
		}
		if err := reg.RegisterCallback(string(kind), h); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cbRequestApproval(c tele.Context, _ Action) error {
	ctx := tghelpers.BuildContext(c)
	u, err := a.gate.EnsureUser(ctx, c.Sender())
	if err != nil {
		return a.reportError(c, err)
	}
	_, pending, err := a.gate.RequestApproval(ctx, u.ID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyApproved) {
			return c.Respond(&tele.CallbackResponse{Text: "You are already approved"})
		}
		return a.reportError(c, err)
	}
	if pending {
		return c.Respond(&tele.CallbackResponse{Text: "Your request is already pending"})
	}
	a.notifier.NotifyAdmins(ctx, fmt.Sprintf(
		"📨 New approval request from %s (id %d). Use /requests to review.",
		displayName(c.Sender()), u.ID,
	))
	return c.Edit("Request sent. You will be notified once an admin decides.")
}

// cbDecideUser approves or rejects a pending user. Only allowlisted operators
// may press these buttons even if the message leaks elsewhere.
func (a *App) cbDecideUser(approve bool) actionHandler {
	return func(c tele.Context, act Action) error {
		ctx := tghelpers.BuildContext(c)
		if !a.gate.IsStaticAdmin(c.Sender().ID) {
			return c.Respond(&tele.CallbackResponse{Text: "Admins only"})
		}
		var err error
		if approve {
			_, err = a.gate.Approve(ctx, c.Sender().ID, act.UserID)
		} else {
			_, err = a.gate.Reject(ctx, c.Sender().ID, act.UserID)
		}
		if err != nil {
			if errors.Is(err, service.ErrAlreadyApproved) {
				return c.Edit("Already approved.")
			}
			return a.reportError(c, err)
		}
		if approve {
			_ = a.platform.SendTo(ctx, act.UserID, "🎉 Your access request was approved. Send /start to begin.")
			return c.Edit(fmt.Sprintf("✅ User %d approved.", act.UserID))
		}
		_ = a.platform.SendTo(ctx, act.UserID, "Your access request was declined.")
		return c.Edit(fmt.Sprintf("🚫 User %d rejected.", act.UserID))
	}
}

func (a *App) cbGroupList(c tele.Context, _ Action) error {
	ctx := tghelpers.BuildContext(c)
	groups, err := a.store.Groups.ManagedBy(ctx, c.Sender().ID)
	if err != nil {
		return a.reportError(c, err)
	}
	if len(groups) == 0 {
		return c.Edit("You do not manage any approved groups yet. Use /addgroup to register one.")
	}
	return c.Edit("Select a group to manage:", groupListMarkup(groups))
}

// requireManager loads the group and verifies the presser may manage it.
func (a *App) requireManager(c tele.Context, groupID int64) (*domain.Group, context.Context, bool) {
	ctx := tghelpers.BuildContext(c)
	g, err := a.store.Groups.Get(ctx, groupID)
	if err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "Group not found"})
		return nil, ctx, false
	}
	uid := c.Sender().ID
	if !a.gate.IsStaticAdmin(uid) && !g.IsGroupAdmin(uid) {
		_ = c.Respond(&tele.CallbackResponse{Text: "You do not manage this group"})
		return nil, ctx, false
	}
	return g, ctx, true
}

func (a *App) cbManageGroup(c tele.Context, act Action) error {
	g, _, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	text, markup := managePanel(g)
	return c.Edit(text, markup)
}

func (a *App) cbToggleSetting(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	enabled := toggleSetting(&g.Settings, act.Setting)
	if err := a.store.Groups.Save(ctx, g); err != nil {
		return a.reportError(c, err)
	}
	logger.SVCGroups.Info("setting toggled",
		slog.String("event", "group.setting"),
		slog.Int64("group_id", g.ID),
		slog.String("setting", act.Setting),
		slog.Bool("enabled", enabled),
	)
	text, markup := managePanel(g)
	return c.Edit(text, markup)
}

func (a *App) cbTemplateMenu(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	t, err := a.store.Templates.GetOrCreate(ctx, g.ID, act.Scope)
	if err != nil {
		return a.reportError(c, err)
	}
	text, markup := templateMenu(g, t, act.Scope)
	return c.Edit(text, markup)
}

func textKindFor(scope domain.TemplateScope) session.Kind {
	if scope == domain.ScopeGoodbye {
		return session.KindEditGoodbyeText
	}
	return session.KindEditWelcomeText
}

func mediaKindFor(scope domain.TemplateScope) session.Kind {
	if scope == domain.ScopeGoodbye {
		return session.KindGoodbyeMedia
	}
	return session.KindWelcomeMedia
}

func labelKindFor(scope domain.TemplateScope) session.Kind {
	if scope == domain.ScopeGoodbye {
		return session.KindGoodbyeButtonLabel
	}
	return session.KindWelcomeButtonLabel
}

func (a *App) cbTemplateEditText(c tele.Context, act Action) error {
	if _, _, ok := a.requireManager(c, act.GroupID); !ok {
		return nil
	}
	a.sessions.Begin(c.Sender().ID, session.Flow{
		Kind:      textKindFor(act.Scope),
		GroupID:   act.GroupID,
		StartedAt: time.Now(),
	})
	return c.Send(fmt.Sprintf(
		"Send the new %s text. Placeholders: {user} {userid} {username} {name} {fullname} {group} {membercount}. Send /cancel to abort.",
		scopeTitle(act.Scope),
	))
}

func (a *App) cbTemplateSetMedia(c tele.Context, act Action) error {
	if _, _, ok := a.requireManager(c, act.GroupID); !ok {
		return nil
	}
	a.sessions.Begin(c.Sender().ID, session.Flow{
		Kind:      mediaKindFor(act.Scope),
		GroupID:   act.GroupID,
		StartedAt: time.Now(),
	})
	return c.Send("Send a photo, video, GIF, or sticker to attach. Send /cancel to abort.")
}

func (a *App) cbTemplateAddButton(c tele.Context, act Action) error {
	if _, _, ok := a.requireManager(c, act.GroupID); !ok {
		return nil
	}
	a.sessions.Begin(c.Sender().ID, session.Flow{
		Kind:      labelKindFor(act.Scope),
		GroupID:   act.GroupID,
		StartedAt: time.Now(),
	})
	return c.Send("Send the button label. Send /cancel to abort.")
}

func (a *App) cbTemplateClearButtons(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	t, err := a.store.Templates.GetOrCreate(ctx, g.ID, act.Scope)
	if err != nil {
		return a.reportError(c, err)
	}
	t.Buttons = nil
	if err := a.store.Templates.Save(ctx, t, act.Scope); err != nil {
		return a.reportError(c, err)
	}
	text, markup := templateMenu(g, t, act.Scope)
	return c.Edit(text, markup)
}

// cbTemplateToggle flips the flag matching the pressed action and re-renders.
func (a *App) cbTemplateToggle(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	t, err := a.store.Templates.GetOrCreate(ctx, g.ID, act.Scope)
	if err != nil {
		return a.reportError(c, err)
	}
	switch act.Kind {
	case ActTemplateToggleButtons:
		t.ShowButtons = !t.ShowButtons
	case ActTemplateToggleTags:
		t.ShowTags = !t.ShowTags
	case ActTemplateToggleOn:
		t.Enabled = !t.Enabled
	}
	if err := a.store.Templates.Save(ctx, t, act.Scope); err != nil {
		return a.reportError(c, err)
	}
	text, markup := templateMenu(g, t, act.Scope)
	return c.Edit(text, markup)
}

// cbTemplatePreview renders the template against the presser's own data.
func (a *App) cbTemplatePreview(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	t, err := a.store.Templates.GetOrCreate(ctx, g.ID, act.Scope)
	if err != nil {
		return a.reportError(c, err)
	}
	count, err := a.platform.MemberCount(ctx, g.ID)
	if err != nil {
		count = 0
	}
	r := render.Compose(t, render.MemberFrom(c.Sender(), g.Title, count))
	if err := a.sendRendered(ctx, c.Sender().ID, r); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Preview failed: " + err.Error()})
	}
	return c.Respond(&tele.CallbackResponse{Text: "Preview sent"})
}

func (a *App) cbBlacklistPage(c tele.Context, act Action) error {
	g, _, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	text, markup := blacklistPage(g)
	return c.Edit(text, markup)
}

func (a *App) cbBlacklistInfo(c tele.Context, act Action) error {
	g, _, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	e, found := g.BlacklistEntryOf(act.UserID)
	if !found {
		text, markup := blacklistPage(g)
		return c.Edit(text, markup)
	}
	text, markup := blacklistInfoPage(g, e)
	return c.Edit(text, markup)
}

func (a *App) cbUnblacklist(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	if err := a.mod.Unblacklist(ctx, g, act.UserID); err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: moderationErrorText(err)})
	}
	text, markup := blacklistPage(g)
	return c.Edit(text, markup)
}

func (a *App) cbWarningsPage(c tele.Context, act Action) error {
	g, _, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	text, markup := warningsPage(g)
	return c.Edit(text, markup)
}

func (a *App) cbWarningInfo(c tele.Context, act Action) error {
	g, _, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	e, found := g.WarningOf(act.UserID)
	if !found {
		text, markup := warningsPage(g)
		return c.Edit(text, markup)
	}
	text, markup := warningInfoPage(g, e, a.mod.Policy().WarnThreshold)
	return c.Edit(text, markup)
}

func (a *App) cbUnwarn(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	if _, err := a.mod.Unwarn(ctx, g, act.UserID); err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: moderationErrorText(err)})
	}
	text, markup := warningsPage(g)
	return c.Edit(text, markup)
}

func (a *App) cbEscalate(c tele.Context, act Action) error {
	g, ctx, ok := a.requireManager(c, act.GroupID)
	if !ok {
		return nil
	}
	if err := a.mod.BlacklistFromWarning(ctx, g, act.UserID, c.Sender().ID); err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: moderationErrorText(err)})
	}
	text, markup := warningsPage(g)
	return c.Edit(text, markup)
}

// cbModerationStart opens a target-selection flow for the group.
func (a *App) cbModerationStart(kind session.Kind) actionHandler {
	return func(c tele.Context, act Action) error {
		if _, _, ok := a.requireManager(c, act.GroupID); !ok {
			return nil
		}
		a.sessions.Begin(c.Sender().ID, session.Flow{
			Kind:      kind,
			GroupID:   act.GroupID,
			StartedAt: time.Now(),
		})
		return c.Send("Send the target: a numeric id, @username, or forward one of the user's messages. Send /cancel to abort.")
	}
}
