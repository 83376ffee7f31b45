package middleware

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/m3rciful/groupwarden/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// PanicNotifier receives a recovered handler panic after it was logged, so
// the application can apologize to the user and alert the operators.
type PanicNotifier func(c tele.Context, err error)

var panicNotifier atomic.Pointer[PanicNotifier]

// SetPanicNotifier installs the application-level panic notifier. Passing nil
// removes it.
func SetPanicNotifier(n PanicNotifier) {
	if n == nil {
		panicNotifier.Store(nil)
		return
	}
	panicNotifier.Store(&n)
}

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.TG.Error("panic recovered",
					slog.String("event", "tg.panic"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				if n := panicNotifier.Load(); n != nil {
					(*n)(c, fmt.Errorf("panic: %v", r))
				}
			}
		}()
		return next(c)
	}
}
