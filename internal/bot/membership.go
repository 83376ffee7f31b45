package bot

import (
	"context"

	"github.com/m3rciful/groupwarden/core/logger"
	tghelpers "github.com/m3rciful/groupwarden/core/telegram/helpers"
	"github.com/m3rciful/groupwarden/internal/domain"
	"github.com/m3rciful/groupwarden/internal/render"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// onUserJoined greets new members and applies the new-member restriction.
// The bot's own join only triggers group registration.
func (a *App) onUserJoined(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	chat := c.Chat()
	msg := c.Message()
	if chat == nil || msg == nil || c.Sender() == nil {
		return nil
	}

	g, approved, err := a.gate.EnsureGroup(ctx, chat.ID, chat.Title, c.Sender().ID)
	if err != nil {
		return a.reportError(c, err)
	}
	if !approved {
		_ = c.Send("This group is not approved to use the bot. Leaving.")
		return a.platform.Leave(ctx, chat.ID)
	}

	joined := msg.UsersJoined
	if len(joined) == 0 && msg.UserJoined != nil {
		joined = []tele.User{*msg.UserJoined}
	}
	for i := range joined {
		u := &joined[i]
		if u.ID == a.platform.Me() || u.IsBot {
			continue
		}
		a.greet(ctx, g, u)
		if g.Settings.RestrictNewMembers {
			if err := a.platform.RestrictMedia(ctx, g.ID, u.ID); err != nil {
				logger.TG.Warn("new member restriction failed",
					slog.String("event", "member.restrict"),
					slog.Int64("group_id", g.ID),
					slog.Int64("target_id", u.ID),
					slog.String("err", err.Error()),
				)
			}
		}
	}
	return nil
}

func (a *App) greet(ctx context.Context, g *domain.Group, u *tele.User) {
	if !g.Settings.WelcomeEnabled {
		return
	}
	a.sendTemplate(ctx, g, u, domain.ScopeWelcome)
}

// onUserLeft sees a member off. Bot departures render nothing.
func (a *App) onUserLeft(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	chat := c.Chat()
	msg := c.Message()
	if chat == nil || msg == nil || msg.UserLeft == nil {
		return nil
	}
	u := msg.UserLeft
	if u.ID == a.platform.Me() || u.IsBot {
		return nil
	}

	g, err := a.store.Groups.Get(ctx, chat.ID)
	if err != nil || !g.IsApproved || !g.Settings.GoodbyeEnabled {
		return nil
	}
	a.sendTemplate(ctx, g, u, domain.ScopeGoodbye)
	return nil
}

// sendTemplate composes and delivers the group's template for one member.
// Failures are logged; a broken template never blocks the update pipeline.
func (a *App) sendTemplate(ctx context.Context, g *domain.Group, u *tele.User, scope domain.TemplateScope) {
	t, err := a.store.Templates.GetOrCreate(ctx, g.ID, scope)
	if err != nil {
		logger.SVCTemplates.Warn("template load failed",
			slog.String("event", "template.load"),
			slog.Int64("group_id", g.ID),
			slog.String("scope", string(scope)),
			slog.String("err", err.Error()),
		)
		return
	}
	if !t.Enabled {
		return
	}

	count, err := a.platform.MemberCount(ctx, g.ID)
	if err != nil {
		count = 0
	}
	r := render.Compose(t, render.MemberFrom(u, g.Title, count))
	if err := a.sendRendered(ctx, g.ID, r); err != nil {
		logger.SVCTemplates.Warn("template send failed",
			slog.String("event", "template.send"),
			slog.Int64("group_id", g.ID),
			slog.String("scope", string(scope)),
			slog.String("err", err.Error()),
		)
	}
}
