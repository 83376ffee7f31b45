package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/m3rciful/groupwarden/core/logger"
	tghelpers "github.com/m3rciful/groupwarden/core/telegram/helpers"
	"github.com/m3rciful/groupwarden/internal/render"
	"github.com/m3rciful/groupwarden/internal/service"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// guardMiddleware enforces the group gate and passive content filters before
// any routing happens. Private messages only get the first-contact upsert.
func (a *App) guardMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg := c.Message()
		chat := c.Chat()
		if msg == nil || chat == nil {
			return next(c)
		}

		switch chat.Type {
		case tele.ChatGroup, tele.ChatSuperGroup:
			return a.guardGroupMessage(c, next)
		case tele.ChatPrivate:
			ctx := tghelpers.BuildContext(c)
			if s := c.Sender(); s != nil && !s.IsBot {
				if _, err := a.gate.EnsureUser(ctx, s); err != nil {
					logger.SVCGate.Warn("first-contact upsert failed",
						slog.String("event", "gate.ensure"),
						slog.Int64("user_id", s.ID),
						slog.String("err", err.Error()),
					)
				}
			}
		}
		return next(c)
	}
}

func (a *App) guardGroupMessage(c tele.Context, next tele.HandlerFunc) error {
	msg := c.Message()
	chat := c.Chat()
	sender := c.Sender()
	if sender == nil {
		return next(c)
	}
	ctx := tghelpers.BuildContext(c)

	// Membership service messages are routed, never filtered.
	if msg.UserJoined != nil || msg.UserLeft != nil {
		return next(c)
	}
	if sender.ID == a.platform.Me() {
		return nil
	}

	g, approved, err := a.gate.EnsureGroup(ctx, chat.ID, chat.Title, sender.ID)
	if err != nil {
		return a.reportError(c, err)
	}
	if !approved {
		_ = c.Send("This group is not approved to use the bot. Leaving.")
		if err := a.platform.Leave(ctx, chat.ID); err != nil {
			logger.TG.Warn("leave failed",
				slog.String("event", "guard.leave"),
				slog.Int64("group_id", chat.ID),
				slog.String("err", err.Error()),
			)
		}
		return nil
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	isAdmin, err := a.platform.IsChatAdmin(ctx, chat.ID, sender.ID)
	if err != nil {
		logger.TG.Warn("admin status check failed",
			slog.String("event", "guard.admin_check"),
			slog.Int64("group_id", chat.ID),
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
		isAdmin = false
	}

	verdict := a.mod.Filter(g, service.Probe{
		SenderID:          sender.ID,
		Text:              text,
		IsForward:         msg.Origin != nil,
		SenderIsChatAdmin: isAdmin,
	})
	if verdict != service.VerdictNone {
		return a.applyVerdict(c, verdict)
	}

	if service.IsCommand(text) {
		if g.Settings.AdminOnlyCommands && !isAdmin && !a.gate.IsStaticAdmin(sender.ID) {
			_ = c.Delete()
			_ = tghelpers.SendMD(c, fmt.Sprintf("%s, commands are restricted to admins here.", render.Mention(render.MemberFrom(sender, "", 0))))
			return nil
		}
		if g.Settings.AutoDeleteCommands {
			a.deleteLater(chat.ID, msg.ID, time.Duration(a.cfg.Moderation.CommandDeleteSeconds)*time.Second)
		}
	}

	return next(c)
}

func (a *App) applyVerdict(c tele.Context, v service.Verdict) error {
	if err := c.Delete(); err != nil {
		logger.TG.Warn("filtered message delete failed",
			slog.String("event", "guard.delete"),
			slog.Int64("group_id", c.Chat().ID),
			slog.String("err", err.Error()),
		)
	}
	logger.TG.Info("message filtered",
		slog.String("event", "guard.filtered"),
		slog.Int64("group_id", c.Chat().ID),
		slog.Int64("user_id", c.Sender().ID),
		slog.String("scope", string(v)),
	)

	mention := render.Mention(render.MemberFrom(c.Sender(), "", 0))
	switch v {
	case service.VerdictBlacklisted:
		// Blacklisted senders get no notice; their messages just disappear.
		return nil
	case service.VerdictLink:
		_ = tghelpers.SendMD(c, mention+", links are not allowed in this group.")
	case service.VerdictForward:
		_ = tghelpers.SendMD(c, mention+", forwarded messages are not allowed in this group.")
	case service.VerdictSpam:
		_ = tghelpers.SendMD(c, mention+", that message is too long for this group.")
	}
	return nil
}

// deleteLater schedules a fire-and-forget message delete. Errors are logged
// and dropped; the message may already be gone.
func (a *App) deleteLater(chatID int64, messageID int, delay time.Duration) {
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.platform.DeleteMessage(ctx, chatID, messageID); err != nil {
			logger.TG.Debug("deferred delete failed",
				slog.String("event", "guard.delete_later"),
				slog.Int64("group_id", chatID),
				slog.String("err", err.Error()),
			)
		}
	})
}
