package bot

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/groupwarden/core/bootstrap"
	"github.com/m3rciful/groupwarden/core/logger"
	tg "github.com/m3rciful/groupwarden/core/telegram"
	"github.com/m3rciful/groupwarden/core/telegram/middleware"
	"github.com/m3rciful/groupwarden/core/telegram/router"
	"github.com/m3rciful/groupwarden/internal/service"
	"github.com/m3rciful/groupwarden/internal/session"
	"github.com/m3rciful/groupwarden/internal/storage"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// App wires the approval gate, moderation engine, template storage, and the
// conversation manager into one Telegram bot.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	store    *storage.Store
	gate     *service.Gate
	mod      *service.Moderation
	sessions *session.Manager
	platform *Platform
	notifier *notifier
}

// NewApp builds the application on top of an initialized database handle.
func NewApp(ctx context.Context, cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	if db == nil {
		return nil, fmt.Errorf("bot: nil database handle")
	}

	store := storage.New(db)
	platform := NewPlatform()
	gate := service.NewGate(store.Users, store.Groups, cfg.Admins.IDs)
	mod := service.NewModeration(store.Groups, platform, gate, service.Policy{
		WarnThreshold:    cfg.Moderation.WarnThreshold,
		MaxMessageLength: cfg.Moderation.MaxMessageLength,
	})

	a := &App{
		cfg:      cfg,
		db:       db,
		store:    store,
		gate:     gate,
		mod:      mod,
		sessions: session.NewManager(),
		platform: platform,
	}
	a.notifier = newNotifier(platform, cfg.Admins.IDs)
	a.registerFlows()

	if err := bootstrap.RunSeeders(ctx, store, []bootstrap.Seeder{
		bootstrap.SeederFunc(a.seedAdmins),
	}); err != nil {
		return nil, fmt.Errorf("bot: seeding failed: %w", err)
	}

	return a, nil
}

// seedAdmins pre-approves the allowlisted operator ids so they survive in the
// users table even before their first message. Existing rows keep their
// stored profile; only the admin flags are enforced.
func (a *App) seedAdmins(ctx context.Context, _ bootstrap.Storage) error {
	for _, id := range a.cfg.Admins.IDs {
		if _, err := a.gate.SeedAdmin(ctx, id); err != nil {
			return fmt.Errorf("seed admin %d: %w", id, err)
		}
	}
	logger.SEED.Info("admins seeded",
		slog.String("event", "seed.admins"),
		slog.Int("count", len(a.cfg.Admins.IDs)),
	)
	return nil
}

// TelegramRunOptions assembles the registry, middlewares, and routes.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.registerCommands(reg)
	if err := a.registerCallbacks(reg); err != nil {
		return tg.RunOptions{}, err
	}
	reg.SetTextFallback(a.unknownText)
	reg.SetCallbackNotFound(a.unknownCallback)

	// Recovered handler panics follow the same path as handler errors: the
	// user gets an apology and the operators get the detail.
	middleware.SetPanicNotifier(func(c tele.Context, err error) {
		_ = a.reportError(c, err)
	})

	middlewares := tg.DefaultMiddlewares(&a.cfg.Core, nil)
	middlewares = append(middlewares, tg.Middleware{
		Name: "guard",
		Use:  a.guardMiddleware,
	})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminIDs:      a.cfg.Admins.IDs,
		OnAdminReject: a.adminRejected,
	})
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{})...)
	routes = append(routes, router.MediaRoutes(a.sessions)...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes,
		tg.Route{Endpoint: tele.OnUserJoined, Handler: a.onUserJoined},
		tg.Route{Endpoint: tele.OnUserLeft, Handler: a.onUserLeft},
	)

	return tg.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: middlewares,
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.platform.Bind(rt.Bot)
			a.notifier.bind(rt.Dispatcher)
			return nil
		},
	}, nil
}

func (a *App) adminRejected(c tele.Context) error {
	return c.Send("This command is reserved for bot admins.")
}

func (a *App) unknownText(c tele.Context) error {
	if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	return c.Send("I did not understand that. Use /help to see what I can do.")
}

func (a *App) unknownCallback(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: "Unrecognized action"})
}
