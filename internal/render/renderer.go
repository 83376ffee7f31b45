// Package render turns welcome/goodbye templates into outbound message
// payloads. Rendering is pure: the same template and member data always
// produce the same output.
package render

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/groupwarden/core/telegram/format"
	"github.com/m3rciful/groupwarden/internal/domain"
)

// Member carries the already-resolved data a template can reference.
// MemberCount must be queried by the caller before rendering.
type Member struct {
	UserID      int64
	FirstName   string
	LastName    string
	Username    string
	GroupTitle  string
	MemberCount int
}

// MemberFrom extracts template data from a Telegram user.
func MemberFrom(u *tele.User, groupTitle string, memberCount int) Member {
	if u == nil {
		return Member{GroupTitle: groupTitle, MemberCount: memberCount}
	}
	return Member{
		UserID:      u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Username:    u.Username,
		GroupTitle:  groupTitle,
		MemberCount: memberCount,
	}
}

// Rendered is the assembled payload of one template for one member.
type Rendered struct {
	// Text is the message text, or the media caption when Media is set.
	Text string
	// Media and MediaFileID describe the attachment, if any.
	Media       domain.MediaType
	MediaFileID string
	// SeparateText is set for stickers with a caption: the sticker goes out
	// first and Text follows as its own message.
	SeparateText bool
	// Markup holds the inline button rows, nil when buttons are off or empty.
	Markup *tele.ReplyMarkup
}

// Mention builds a Markdown profile link showing the member's first name.
func Mention(m Member) string {
	name, _ := format.EscapeMarkdown(m.FirstName, format.MarkdownV1, "")
	return fmt.Sprintf("[%s](tg://user?id=%d)", name, m.UserID)
}

func fullName(m Member) string {
	parts := make([]string, 0, 2)
	if m.FirstName != "" {
		parts = append(parts, m.FirstName)
	}
	if m.LastName != "" {
		parts = append(parts, m.LastName)
	}
	return strings.Join(parts, " ")
}

func username(m Member) string {
	if m.Username == "" {
		return "no username"
	}
	return "@" + m.Username
}

// Text substitutes the placeholder tokens in text against the member data.
func Text(text string, m Member) string {
	r := strings.NewReplacer(
		"{user}", Mention(m),
		"{userid}", strconv.FormatInt(m.UserID, 10),
		"{username}", username(m),
		"{name}", m.FirstName,
		"{fullname}", fullName(m),
		"{group}", m.GroupTitle,
		"{membercount}", strconv.Itoa(m.MemberCount),
	)
	return r.Replace(text)
}

// Compose assembles the outbound payload for the template. Placeholders are
// substituted only when the template's ShowTags flag is on.
func Compose(t *domain.Template, m Member) Rendered {
	if t == nil {
		return Rendered{}
	}

	text := t.Text
	if t.ShowTags {
		text = Text(text, m)
	}

	out := Rendered{Text: text, Media: t.MediaType}
	if t.MediaType != domain.MediaNone && t.MediaFileID != nil {
		out.MediaFileID = format.DerefString(t.MediaFileID, "")
	} else {
		out.Media = domain.MediaNone
	}

	switch out.Media {
	case domain.MediaNone:
	case domain.MediaSticker:
		// Stickers carry no caption; the text follows separately when wanted.
		out.SeparateText = t.HasCaption && text != ""
		if !out.SeparateText {
			out.Text = ""
		}
	default:
		if !t.HasCaption {
			out.Text = ""
		}
	}

	if t.ShowButtons && len(t.Buttons) > 0 {
		markup := &tele.ReplyMarkup{}
		rows := make([][]tele.InlineButton, 0, len(t.Buttons))
		for _, b := range t.Buttons {
			rows = append(rows, []tele.InlineButton{{Text: b.Text, URL: b.URL}})
		}
		markup.InlineKeyboard = rows
		out.Markup = markup
	}

	return out
}
