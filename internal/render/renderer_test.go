package render

import (
	"strings"
	"testing"

	"github.com/m3rciful/groupwarden/internal/domain"
)

var alice = Member{
	UserID:      42,
	FirstName:   "Alice",
	LastName:    "Liddell",
	Username:    "alice",
	GroupTitle:  "Wonderland",
	MemberCount: 7,
}

func TestTextSubstitutesAllPlaceholders(t *testing.T) {
	in := "{user} {userid} {username} {name} {fullname} {group} {membercount}"
	got := Text(in, alice)

	want := "[Alice](tg://user?id=42) 42 @alice Alice Alice Liddell Wonderland 7"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextNoUsernameFallback(t *testing.T) {
	m := alice
	m.Username = ""
	if got := Text("{username}", m); got != "no username" {
		t.Fatalf("got %q", got)
	}
}

func TestTextIsIdempotent(t *testing.T) {
	in := "Hello {user}, welcome to {group} #{membercount}"
	first := Text(in, alice)
	second := Text(in, alice)
	if first != second {
		t.Fatalf("rendering not deterministic: %q vs %q", first, second)
	}
}

func TestComposeRawTextWhenTagsOff(t *testing.T) {
	tpl := &domain.Template{Text: "Hi {user}", ShowTags: false}
	out := Compose(tpl, alice)
	if out.Text != "Hi {user}" {
		t.Fatalf("expected raw text, got %q", out.Text)
	}
	if out.Media != domain.MediaNone || out.Markup != nil {
		t.Fatal("expected plain text payload")
	}
}

func TestComposeMediaCaption(t *testing.T) {
	fileID := "photo-file-id"
	tpl := &domain.Template{
		Text:        "Welcome {name}",
		ShowTags:    true,
		MediaType:   domain.MediaPhoto,
		MediaFileID: &fileID,
		HasCaption:  true,
	}
	out := Compose(tpl, alice)
	if out.Media != domain.MediaPhoto || out.MediaFileID != fileID {
		t.Fatalf("unexpected media: %+v", out)
	}
	if out.Text != "Welcome Alice" {
		t.Fatalf("unexpected caption %q", out.Text)
	}

	tpl.HasCaption = false
	out = Compose(tpl, alice)
	if out.Text != "" {
		t.Fatalf("caption should be dropped, got %q", out.Text)
	}
}

func TestComposeStickerSendsTextSeparately(t *testing.T) {
	fileID := "sticker-file-id"
	tpl := &domain.Template{
		Text:        "Bye {name}",
		ShowTags:    true,
		MediaType:   domain.MediaSticker,
		MediaFileID: &fileID,
		HasCaption:  true,
	}
	out := Compose(tpl, alice)
	if !out.SeparateText {
		t.Fatal("sticker with caption should send text separately")
	}
	if out.Text != "Bye Alice" {
		t.Fatalf("unexpected follow-up text %q", out.Text)
	}

	tpl.HasCaption = false
	out = Compose(tpl, alice)
	if out.SeparateText || out.Text != "" {
		t.Fatalf("sticker without caption should carry no text: %+v", out)
	}
}

func TestComposeButtons(t *testing.T) {
	tpl := &domain.Template{
		Text:        "hi",
		ShowButtons: true,
		Buttons: domain.TemplateButtons{
			{Text: "Rules", URL: "https://example.com/rules"},
			{Text: "Site", URL: "https://example.com"},
		},
	}
	out := Compose(tpl, alice)
	if out.Markup == nil || len(out.Markup.InlineKeyboard) != 2 {
		t.Fatalf("expected two button rows, got %+v", out.Markup)
	}
	if out.Markup.InlineKeyboard[0][0].URL != "https://example.com/rules" {
		t.Fatalf("unexpected button: %+v", out.Markup.InlineKeyboard[0][0])
	}

	tpl.ShowButtons = false
	if out := Compose(tpl, alice); out.Markup != nil {
		t.Fatal("buttons should be omitted when the toggle is off")
	}
}

func TestComposeMissingFileIDDowngradesToText(t *testing.T) {
	tpl := &domain.Template{Text: "hello", MediaType: domain.MediaVideo}
	out := Compose(tpl, alice)
	if out.Media != domain.MediaNone {
		t.Fatalf("media without file id should downgrade to text, got %v", out.Media)
	}
	if !strings.Contains(out.Text, "hello") {
		t.Fatalf("text lost: %q", out.Text)
	}
}
