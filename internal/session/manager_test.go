package session

import (
	"os"
	"testing"
	"time"

	"github.com/m3rciful/groupwarden/core/logger"

	tele "gopkg.in/telebot.v4"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newMessageContext(t *testing.T, chat *tele.Chat, from *tele.User, text string) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return b.NewContext(tele.Update{Message: &tele.Message{
		Chat:   chat,
		Sender: from,
		Text:   text,
	}})
}

func TestBeginReplacesPendingFlow(t *testing.T) {
	m := NewManager()
	m.Begin(1, Flow{Kind: KindEditWelcomeText, GroupID: 100})
	m.Begin(1, Flow{Kind: KindWarnTarget, GroupID: 200})

	f, ok := m.Get(1)
	if !ok {
		t.Fatal("expected pending flow")
	}
	if f.Kind != KindWarnTarget || f.GroupID != 200 {
		t.Fatalf("expected warn flow for group 200, got %s group %d", f.Kind, f.GroupID)
	}
}

func TestClearReportsPresence(t *testing.T) {
	m := NewManager()
	if m.Clear(7) {
		t.Fatal("clear on empty slot should report false")
	}
	m.Begin(7, Flow{Kind: KindKickTarget, GroupID: 1})
	if !m.Clear(7) {
		t.Fatal("clear should report a pending flow was dropped")
	}
	if m.InProgress(7) {
		t.Fatal("flow should be gone after clear")
	}
}

func TestAdvanceKeepsStartedAt(t *testing.T) {
	m := NewManager()
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.Begin(3, Flow{Kind: KindWelcomeButtonLabel, GroupID: 5, StartedAt: started})
	m.Advance(3, Flow{Kind: KindWelcomeButtonURL, GroupID: 5, Label: "Docs"})

	f, _ := m.Get(3)
	if f.Kind != KindWelcomeButtonURL || f.Label != "Docs" {
		t.Fatalf("unexpected flow after advance: %+v", f)
	}
	if !f.StartedAt.Equal(started) {
		t.Fatalf("expected StartedAt preserved, got %v", f.StartedAt)
	}
}

func TestGroupMessagesNeverFeedPendingFlow(t *testing.T) {
	m := NewManager()
	var got string
	m.RegisterHandler(KindBlacklistReason, func(c tele.Context, f Flow) error {
		got = c.Text()
		return nil
	})
	m.Begin(7, Flow{Kind: KindBlacklistReason, GroupID: -100500})

	user := &tele.User{ID: 7}
	group := newMessageContext(t, &tele.Chat{ID: -100500, Type: tele.ChatSuperGroup}, user, "see you all tomorrow")

	if m.Accepts(group) {
		t.Fatal("group message must not be routed to a pending flow")
	}
	if err := m.ManagerHandler(group); err != nil {
		t.Fatalf("group dispatch: %v", err)
	}
	if got != "" {
		t.Fatalf("group text consumed as flow input: %q", got)
	}
	if !m.InProgress(7) {
		t.Fatal("flow must stay pending after a group message")
	}

	private := newMessageContext(t, &tele.Chat{ID: 7, Type: tele.ChatPrivate}, user, "posting spam links")
	if !m.Accepts(private) {
		t.Fatal("private message should reach the pending flow")
	}
	if err := m.ManagerHandler(private); err != nil {
		t.Fatalf("private dispatch: %v", err)
	}
	if got != "posting spam links" {
		t.Fatalf("expected the private text as flow input, got %q", got)
	}
}

func TestMatchesInputTextSteps(t *testing.T) {
	msg := &tele.Message{}

	if matchesInput(KindEditWelcomeText, msg, "/settings") {
		t.Fatal("commands must not feed a free-text step")
	}
	if !matchesInput(KindEditWelcomeText, msg, "hello there") {
		t.Fatal("plain text should feed a free-text step")
	}
	if matchesInput(KindEditWelcomeText, msg, "") {
		t.Fatal("empty text should not feed a text-edit step")
	}
}

func TestMatchesInputMediaSteps(t *testing.T) {
	if matchesInput(KindWelcomeMedia, &tele.Message{}, "some text") {
		t.Fatal("media step must ignore plain text")
	}
	if !matchesInput(KindWelcomeMedia, &tele.Message{Photo: &tele.Photo{}}, "") {
		t.Fatal("media step should accept a photo")
	}
	if !matchesInput(KindGoodbyeMedia, &tele.Message{Sticker: &tele.Sticker{}}, "") {
		t.Fatal("media step should accept a sticker")
	}
}

func TestMatchesInputTargetSteps(t *testing.T) {
	if !matchesInput(KindBlacklistTarget, &tele.Message{}, "@someone") {
		t.Fatal("target step should accept a username")
	}
	forwarded := &tele.Message{Origin: &tele.MessageOrigin{Sender: &tele.User{ID: 42}}}
	if !matchesInput(KindWarnTarget, forwarded, "") {
		t.Fatal("target step should accept a forwarded message")
	}
	replied := &tele.Message{ReplyTo: &tele.Message{Sender: &tele.User{ID: 42}}}
	if !matchesInput(KindKickTarget, replied, "") {
		t.Fatal("target step should accept a reply")
	}
}

func TestMatchesInputGroupForward(t *testing.T) {
	if matchesInput(KindGroupForward, &tele.Message{}, "just text") {
		t.Fatal("group forward step must ignore plain text")
	}
	fw := &tele.Message{Origin: &tele.MessageOrigin{Chat: &tele.Chat{ID: -100}}}
	if !matchesInput(KindGroupForward, fw, "") {
		t.Fatal("group forward step should accept a forwarded group message")
	}
}
