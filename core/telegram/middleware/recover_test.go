package middleware

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/m3rciful/groupwarden/core/logger"

	tele "gopkg.in/telebot.v4"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestRecoverSwallowsPanic(t *testing.T) {
	h := RecoverMiddleware(func(c tele.Context) error {
		panic("boom")
	})
	if err := h(nil); err != nil {
		t.Fatalf("recovered handler must not return the panic, got %v", err)
	}
}

func TestRecoverInvokesPanicNotifier(t *testing.T) {
	var got error
	var gotCtx tele.Context
	SetPanicNotifier(func(c tele.Context, err error) {
		gotCtx = c
		got = err
	})
	defer SetPanicNotifier(nil)

	h := RecoverMiddleware(func(c tele.Context) error {
		panic("boom")
	})
	if err := h(nil); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got == nil || !strings.Contains(got.Error(), "boom") {
		t.Fatalf("notifier must receive the panic value, got %v", got)
	}
	if gotCtx != nil {
		t.Fatalf("notifier must be handed the handler context unchanged, got %v", gotCtx)
	}
}

func TestRecoverPassesThroughErrors(t *testing.T) {
	notified := false
	SetPanicNotifier(func(tele.Context, error) { notified = true })
	defer SetPanicNotifier(nil)

	want := errors.New("ordinary failure")
	h := RecoverMiddleware(func(c tele.Context) error {
		return want
	})
	if err := h(nil); !errors.Is(err, want) {
		t.Fatalf("plain errors must pass through, got %v", err)
	}
	if notified {
		t.Fatal("plain errors must not trigger the panic notifier")
	}
}
