package bot

import (
	"context"

	"github.com/m3rciful/groupwarden/internal/domain"
	"github.com/m3rciful/groupwarden/internal/render"

	tele "gopkg.in/telebot.v4"
)

// sendRendered delivers a composed template payload to the chat. Mentions use
// Markdown profile links, so text always goes out in Markdown mode.
func (a *App) sendRendered(ctx context.Context, chatID int64, r render.Rendered) error {
	opts := []any{tele.ModeMarkdown}
	if r.Markup != nil {
		opts = append(opts, r.Markup)
	}

	switch r.Media {
	case domain.MediaPhoto:
		return a.platform.SendTo(ctx, chatID, &tele.Photo{
			File:    tele.File{FileID: r.MediaFileID},
			Caption: r.Text,
		}, opts...)
	case domain.MediaVideo:
		return a.platform.SendTo(ctx, chatID, &tele.Video{
			File:    tele.File{FileID: r.MediaFileID},
			Caption: r.Text,
		}, opts...)
	case domain.MediaAnimation:
		return a.platform.SendTo(ctx, chatID, &tele.Animation{
			File:    tele.File{FileID: r.MediaFileID},
			Caption: r.Text,
		}, opts...)
	case domain.MediaSticker:
		if err := a.platform.SendTo(ctx, chatID, &tele.Sticker{File: tele.File{FileID: r.MediaFileID}}); err != nil {
			return err
		}
		if r.SeparateText && r.Text != "" {
			return a.platform.SendTo(ctx, chatID, r.Text, opts...)
		}
		return nil
	default:
		if r.Text == "" {
			return nil
		}
		return a.platform.SendTo(ctx, chatID, r.Text, opts...)
	}
}
