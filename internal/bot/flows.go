package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tghelpers "github.com/m3rciful/groupwarden/core/telegram/helpers"
	"github.com/m3rciful/groupwarden/internal/domain"
	"github.com/m3rciful/groupwarden/internal/service"
	"github.com/m3rciful/groupwarden/internal/session"

	tele "gopkg.in/telebot.v4"
)

// skipWord in a reason step substitutes the default reason.
const skipWord = "skip"

func (a *App) registerFlows() {
	a.sessions.SetCancelHandler(func(c tele.Context) error {
		return c.Send("Cancelled.")
	})

	a.sessions.RegisterHandler(session.KindGroupForward, a.flowGroupForward)

	a.sessions.RegisterHandler(session.KindEditWelcomeText, a.flowEditText(domain.ScopeWelcome))
	a.sessions.RegisterHandler(session.KindEditGoodbyeText, a.flowEditText(domain.ScopeGoodbye))
	a.sessions.RegisterHandler(session.KindWelcomeMedia, a.flowSetMedia(domain.ScopeWelcome))
	a.sessions.RegisterHandler(session.KindGoodbyeMedia, a.flowSetMedia(domain.ScopeGoodbye))
	a.sessions.RegisterHandler(session.KindWelcomeButtonLabel, a.flowButtonLabel(session.KindWelcomeButtonURL))
	a.sessions.RegisterHandler(session.KindGoodbyeButtonLabel, a.flowButtonLabel(session.KindGoodbyeButtonURL))
	a.sessions.RegisterHandler(session.KindWelcomeButtonURL, a.flowButtonURL(domain.ScopeWelcome))
	a.sessions.RegisterHandler(session.KindGoodbyeButtonURL, a.flowButtonURL(domain.ScopeGoodbye))

	a.sessions.RegisterHandler(session.KindBlacklistTarget, a.flowTarget(session.KindBlacklistReason))
	a.sessions.RegisterHandler(session.KindWarnTarget, a.flowTarget(session.KindWarnReason))
	a.sessions.RegisterHandler(session.KindKickTarget, a.flowTarget(session.KindKickReason))
	a.sessions.RegisterHandler(session.KindBlacklistReason, a.flowReason)
	a.sessions.RegisterHandler(session.KindWarnReason, a.flowReason)
	a.sessions.RegisterHandler(session.KindKickReason, a.flowReason)
}

// flowGroupForward registers the group a forwarded message originates from.
func (a *App) flowGroupForward(c tele.Context, _ session.Flow) error {
	ctx := tghelpers.BuildContext(c)
	origin := c.Message().Origin
	if origin == nil || origin.Chat == nil || origin.Chat.ID == 0 {
		return c.Send("That message does not carry a group origin. Forward a message posted in the group itself.")
	}
	chat := origin.Chat
	if chat.Type != tele.ChatGroup && chat.Type != tele.ChatSuperGroup {
		return c.Send("That was not forwarded from a group. Try again or send /cancel.")
	}

	g, approved, err := a.gate.EnsureGroup(ctx, chat.ID, chat.Title, c.Sender().ID)
	if err != nil {
		return a.reportError(c, err)
	}
	a.sessions.Clear(c.Sender().ID)
	if !approved {
		return c.Send("The group was recorded but is waiting for approval.")
	}
	return c.Send(fmt.Sprintf("✅ %s is registered. Add me to the group as an admin and use /groups to configure it.", g.Title))
}

func (a *App) flowEditText(scope domain.TemplateScope) session.Handler {
	return func(c tele.Context, f session.Flow) error {
		ctx := tghelpers.BuildContext(c)
		t, err := a.store.Templates.GetOrCreate(ctx, f.GroupID, scope)
		if err != nil {
			return a.reportError(c, err)
		}
		t.Text = c.Text()
		if err := a.store.Templates.Save(ctx, t, scope); err != nil {
			return a.reportError(c, err)
		}
		a.sessions.Clear(c.Sender().ID)
		return c.Send(fmt.Sprintf("%s text updated.", scopeTitle(scope)))
	}
}

func (a *App) flowSetMedia(scope domain.TemplateScope) session.Handler {
	return func(c tele.Context, f session.Flow) error {
		ctx := tghelpers.BuildContext(c)
		msg := c.Message()

		var mediaType domain.MediaType
		var fileID string
		switch {
		case msg.Photo != nil:
			mediaType, fileID = domain.MediaPhoto, msg.Photo.FileID
		case msg.Video != nil:
			mediaType, fileID = domain.MediaVideo, msg.Video.FileID
		case msg.Animation != nil:
			mediaType, fileID = domain.MediaAnimation, msg.Animation.FileID
		case msg.Sticker != nil:
			mediaType, fileID = domain.MediaSticker, msg.Sticker.FileID
		default:
			return c.Send("Send a photo, video, GIF, or sticker. Or /cancel.")
		}

		t, err := a.store.Templates.GetOrCreate(ctx, f.GroupID, scope)
		if err != nil {
			return a.reportError(c, err)
		}
		t.MediaType = mediaType
		t.MediaFileID = &fileID
		if err := a.store.Templates.Save(ctx, t, scope); err != nil {
			return a.reportError(c, err)
		}
		a.sessions.Clear(c.Sender().ID)
		return c.Send(fmt.Sprintf("%s media set to %s.", scopeTitle(scope), mediaType))
	}
}

// flowButtonLabel stashes the label and moves on to the URL step.
func (a *App) flowButtonLabel(next session.Kind) session.Handler {
	return func(c tele.Context, f session.Flow) error {
		label := strings.TrimSpace(c.Text())
		if label == "" {
			return c.Send("The label cannot be empty. Send the button label or /cancel.")
		}
		a.sessions.Advance(c.Sender().ID, session.Flow{
			Kind:    next,
			GroupID: f.GroupID,
			Label:   label,
		})
		return c.Send("Now send the button URL (http://, https://, or tg://).")
	}
}

func validButtonURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "tg://")
}

// flowButtonURL validates the scheme and appends the button. An invalid URL
// re-prompts without losing the stashed label.
func (a *App) flowButtonURL(scope domain.TemplateScope) session.Handler {
	return func(c tele.Context, f session.Flow) error {
		ctx := tghelpers.BuildContext(c)
		raw := strings.TrimSpace(c.Text())
		if !validButtonURL(raw) {
			return c.Send("That URL must start with http://, https://, or tg://. Try again or send /cancel.")
		}
		t, err := a.store.Templates.GetOrCreate(ctx, f.GroupID, scope)
		if err != nil {
			return a.reportError(c, err)
		}
		t.Buttons = append(t.Buttons, domain.TemplateButton{Text: f.Label, URL: raw})
		if err := a.store.Templates.Save(ctx, t, scope); err != nil {
			return a.reportError(c, err)
		}
		a.sessions.Clear(c.Sender().ID)
		return c.Send(fmt.Sprintf("Button %q added.", f.Label))
	}
}

// flowTarget resolves the moderation target and advances to the reason step.
// Unresolvable or admin targets re-prompt and keep the flow pending.
func (a *App) flowTarget(next session.Kind) session.Handler {
	return func(c tele.Context, f session.Flow) error {
		ctx := tghelpers.BuildContext(c)
		targetID, err := a.resolveFlowTarget(ctx, c)
		if err != nil {
			return c.Send("I could not resolve that user. Send a numeric id, @username, or forward one of their messages.")
		}

		g, err := a.store.Groups.Get(ctx, f.GroupID)
		if err != nil {
			a.sessions.Clear(c.Sender().ID)
			return c.Send("That group no longer exists.")
		}
		if err := a.mod.ValidateTarget(ctx, g, targetID); err != nil {
			if errors.Is(err, service.ErrTargetIsAdmin) {
				return c.Send("That user is an admin; pick another target or send /cancel.")
			}
			return a.reportError(c, err)
		}

		a.sessions.Advance(c.Sender().ID, session.Flow{
			Kind:     next,
			GroupID:  f.GroupID,
			TargetID: targetID,
		})
		return c.Send("Now send the reason, or the word \"skip\".")
	}
}

// flowReason executes the pending moderation action with the given reason.
func (a *App) flowReason(c tele.Context, f session.Flow) error {
	ctx := tghelpers.BuildContext(c)
	reason := strings.TrimSpace(c.Text())
	if strings.EqualFold(reason, skipWord) {
		reason = ""
	}

	g, err := a.store.Groups.Get(ctx, f.GroupID)
	if err != nil {
		a.sessions.Clear(c.Sender().ID)
		return c.Send("That group no longer exists.")
	}

	var summary, announce string
	switch f.Kind {
	case session.KindBlacklistReason:
		err = a.mod.Blacklist(ctx, g, f.TargetID, c.Sender().ID, reason)
		summary = fmt.Sprintf("User %d blacklisted in %s.", f.TargetID, g.Title)
		announce = fmt.Sprintf("User %d was blacklisted.", f.TargetID)
	case session.KindWarnReason:
		var count int
		var kicked bool
		count, kicked, err = a.mod.Warn(ctx, g, f.TargetID, c.Sender().ID, reason)
		if kicked {
			summary = fmt.Sprintf("User %d reached %d warnings in %s and was kicked.", f.TargetID, a.mod.Policy().WarnThreshold, g.Title)
			announce = fmt.Sprintf("User %d was kicked after %d warnings.", f.TargetID, a.mod.Policy().WarnThreshold)
		} else {
			summary = fmt.Sprintf("User %d warned in %s (%d/%d).", f.TargetID, g.Title, count, a.mod.Policy().WarnThreshold)
			announce = fmt.Sprintf("User %d was warned (%d/%d).", f.TargetID, count, a.mod.Policy().WarnThreshold)
		}
	case session.KindKickReason:
		err = a.mod.Kick(ctx, g, f.TargetID, c.Sender().ID, reason)
		summary = fmt.Sprintf("User %d kicked from %s.", f.TargetID, g.Title)
		announce = fmt.Sprintf("User %d was kicked.", f.TargetID)
	default:
		a.sessions.Clear(c.Sender().ID)
		return nil
	}

	if err != nil {
		a.sessions.Clear(c.Sender().ID)
		return c.Send(moderationErrorText(err))
	}
	a.sessions.Clear(c.Sender().ID)

	// Let the group know; delivery failure does not undo the action.
	_ = a.platform.SendTo(ctx, g.ID, announce)
	return c.Send(summary)
}

// resolveFlowTarget picks the target from a forwarded message, a reply, or
// the message text.
func (a *App) resolveFlowTarget(ctx context.Context, c tele.Context) (int64, error) {
	msg := c.Message()
	if msg.Origin != nil && msg.Origin.Sender != nil {
		return msg.Origin.Sender.ID, nil
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender.ID, nil
	}
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return 0, errors.New("no target")
	}
	return a.resolveUserArg(ctx, text)
}
