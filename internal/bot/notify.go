package bot

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/m3rciful/groupwarden/core/logger"
	tghelpers "github.com/m3rciful/groupwarden/core/telegram/helpers"
	"github.com/m3rciful/groupwarden/core/telegram/sender"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// notifier fans messages out to the configured admin ids. Each recipient is
// handled independently so one blocked admin cannot starve the rest.
type notifier struct {
	platform *Platform
	adminIDs []int64
	disp     atomic.Pointer[sender.Dispatcher]
}

func newNotifier(p *Platform, adminIDs []int64) *notifier {
	return &notifier{platform: p, adminIDs: adminIDs}
}

func (n *notifier) bind(d *sender.Dispatcher) {
	n.disp.Store(d)
}

// NotifyAdmins delivers the text to every admin id, asynchronously when the
// dispatcher is available. Per-recipient failures are logged and swallowed.
func (n *notifier) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range n.adminIDs {
		id := id
		run := func() error {
			return n.platform.SendTo(context.Background(), id, text)
		}
		if d := n.disp.Load(); d != nil {
			if err := d.Enqueue(ctx, "notify.admin", "sendMessage", run); err == nil {
				continue
			}
		}
		if err := run(); err != nil {
			logger.TG.Warn("admin notify failed",
				slog.String("event", "notify.admin"),
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
}

// reportError apologizes to the user and fans the error detail out to admins.
// It always returns nil so the update pipeline treats the error as handled.
func (a *App) reportError(c tele.Context, err error) error {
	if err == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	logger.TG.Error("handler error",
		slog.String("event", "tg.handler_error"),
		slog.String("err", err.Error()),
	)

	var chatID, userID int64
	var text string
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if m := c.Message(); m != nil {
		text = m.Text
	}
	a.notifier.NotifyAdmins(ctx, fmt.Sprintf(
		"⚠️ Bot error\nchat: %d\nuser: %d\nmessage: %.200s\nerror: %v",
		chatID, userID, text, err,
	))

	_ = c.Send("Something went wrong on my side. The admins have been notified.")
	return nil
}
