package bot

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by platform calls issued before the bot started.
var ErrNotBound = errors.New("platform: bot not bound")

// Platform wraps the risky Telegram API surface behind error-returning calls.
// It is bound to the live bot in the OnStart hook; until then every call
// reports ErrNotBound instead of panicking on a nil bot.
type Platform struct {
	bot atomic.Pointer[tele.Bot]
}

// NewPlatform constructs an unbound platform adapter.
func NewPlatform() *Platform {
	return &Platform{}
}

// Bind attaches the live bot. Safe to call once at startup.
func (p *Platform) Bind(b *tele.Bot) {
	p.bot.Store(b)
}

func (p *Platform) get(ctx context.Context) (*tele.Bot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := p.bot.Load()
	if b == nil {
		return nil, ErrNotBound
	}
	return b, nil
}

// Me returns the bot's own user id, or 0 before binding.
func (p *Platform) Me() int64 {
	if b := p.bot.Load(); b != nil && b.Me != nil {
		return b.Me.ID
	}
	return 0
}

// IsChatAdmin reports whether the user holds creator or administrator status
// in the chat. The status is always queried live.
func (p *Platform) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	b, err := p.get(ctx)
	if err != nil {
		return false, err
	}
	member, err := b.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return false, err
	}
	return member.Role == tele.Creator || member.Role == tele.Administrator, nil
}

// BotCanRestrict reports whether the bot may ban and restrict members.
func (p *Platform) BotCanRestrict(ctx context.Context, chatID int64) (bool, error) {
	b, err := p.get(ctx)
	if err != nil {
		return false, err
	}
	member, err := b.ChatMemberOf(&tele.Chat{ID: chatID}, b.Me)
	if err != nil {
		return false, err
	}
	if member.Role == tele.Creator {
		return true, nil
	}
	return member.Role == tele.Administrator && member.Rights.CanRestrictMembers, nil
}

// SoftKick removes the user from the chat and immediately lifts the ban, so a
// fresh invite lets them rejoin.
func (p *Platform) SoftKick(ctx context.Context, chatID, userID int64) error {
	b, err := p.get(ctx)
	if err != nil {
		return err
	}
	chat := &tele.Chat{ID: chatID}
	if err := b.Ban(chat, &tele.ChatMember{User: &tele.User{ID: userID}}); err != nil {
		return err
	}
	return b.Unban(chat, &tele.User{ID: userID})
}

// RestrictMedia leaves the user able to send plain text only.
func (p *Platform) RestrictMedia(ctx context.Context, chatID, userID int64) error {
	b, err := p.get(ctx)
	if err != nil {
		return err
	}
	rights := tele.NoRights()
	rights.CanSendMessages = true
	return b.Restrict(&tele.Chat{ID: chatID}, &tele.ChatMember{
		User:   &tele.User{ID: userID},
		Rights: rights,
	})
}

// AdminsOf returns the live admin list of the chat.
func (p *Platform) AdminsOf(ctx context.Context, chatID int64) ([]tele.ChatMember, error) {
	b, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	return b.AdminsOf(&tele.Chat{ID: chatID})
}

// MemberCount returns the live member count of the chat.
func (p *Platform) MemberCount(ctx context.Context, chatID int64) (int, error) {
	b, err := p.get(ctx)
	if err != nil {
		return 0, err
	}
	return b.Len(&tele.Chat{ID: chatID})
}

// InviteLink creates a fresh single-use style invite link for the chat.
func (p *Platform) InviteLink(ctx context.Context, chatID int64) (string, error) {
	b, err := p.get(ctx)
	if err != nil {
		return "", err
	}
	link, err := b.CreateInviteLink(&tele.Chat{ID: chatID}, nil)
	if err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

// Leave makes the bot leave the chat.
func (p *Platform) Leave(ctx context.Context, chatID int64) error {
	b, err := p.get(ctx)
	if err != nil {
		return err
	}
	return b.Leave(&tele.Chat{ID: chatID})
}

// DeleteMessage removes one message from the chat.
func (p *Platform) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	b, err := p.get(ctx)
	if err != nil {
		return err
	}
	return b.Delete(&tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
}

// SendTo sends arbitrary content to a chat or user by id.
func (p *Platform) SendTo(ctx context.Context, recipientID int64, what any, opts ...any) error {
	b, err := p.get(ctx)
	if err != nil {
		return err
	}
	_, err = b.Send(&tele.Chat{ID: recipientID}, what, opts...)
	return err
}
