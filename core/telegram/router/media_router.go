package router

import (
	"time"

	tg "github.com/m3rciful/groupwarden/core/telegram"
	"github.com/m3rciful/groupwarden/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MediaRoutes builds handlers that feed photo, video, animation, and sticker
// updates into the FSM when the sender has a pending flow. Media outside a
// flow is ignored.
func MediaRoutes(fsmMgr FSM) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if fsmMgr != nil && fsmMgr.Accepts(c) {
			return handleWithSummary(c, "fsm_media", start, "", "", func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}
		logHandlerSummary(c, "media", start, "skip", "ok", nil)
		return nil
	}

	wrapped := middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))
	endpoints := []any{tele.OnPhoto, tele.OnVideo, tele.OnAnimation, tele.OnSticker}
	routes := make([]tg.Route, 0, len(endpoints))
	for _, ep := range endpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrapped})
	}
	return routes
}
