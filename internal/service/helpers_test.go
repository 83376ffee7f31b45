package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/m3rciful/groupwarden/core/logger"
	"github.com/m3rciful/groupwarden/internal/domain"
	"github.com/m3rciful/groupwarden/internal/storage"
	"log/slog"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeUsers struct {
	byID map[int64]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[int64]*domain.User)}
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Upsert(_ context.Context, u *domain.User) error {
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Pending(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.byID {
		if u.RequestedAt != nil && !u.IsApproved {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Username != nil && strings.EqualFold(*u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

type fakeGroups struct {
	byID  map[int64]*domain.Group
	saves int
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{byID: make(map[int64]*domain.Group)}
}

func (f *fakeGroups) Get(_ context.Context, id int64) (*domain.Group, error) {
	g, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGroups) Create(_ context.Context, g *domain.Group) error {
	if _, exists := f.byID[g.ID]; exists {
		return storage.ErrNotFound
	}
	cp := *g
	f.byID[g.ID] = &cp
	return nil
}

func (f *fakeGroups) Save(_ context.Context, g *domain.Group) error {
	if _, exists := f.byID[g.ID]; !exists {
		return storage.ErrNotFound
	}
	cp := *g
	f.byID[g.ID] = &cp
	f.saves++
	return nil
}

func (f *fakeGroups) ManagedBy(_ context.Context, userID int64) ([]domain.Group, error) {
	var out []domain.Group
	for _, g := range f.byID {
		if g.IsApproved && g.IsGroupAdmin(userID) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGroups) All(_ context.Context) ([]domain.Group, error) {
	var out []domain.Group
	for _, g := range f.byID {
		out = append(out, *g)
	}
	return out, nil
}

// captureHandler records slog output so tests can assert on emitted attrs.
type captureHandler struct {
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// attrsOf collects the attrs of the last record with the given message.
func (h *captureHandler) attrsOf(message string) map[string]slog.Value {
	attrs := make(map[string]slog.Value)
	for _, r := range h.records {
		if r.Message != message {
			continue
		}
		for k := range attrs {
			delete(attrs, k)
		}
		r.Attrs(func(a slog.Attr) bool {
			attrs[a.Key] = a.Value
			return true
		})
	}
	return attrs
}

type fakeChat struct {
	admins      map[int64]bool
	canRestrict bool
	kicks       []int64
}

func newFakeChat() *fakeChat {
	return &fakeChat{admins: make(map[int64]bool), canRestrict: true}
}

func (f *fakeChat) IsChatAdmin(_ context.Context, _ int64, userID int64) (bool, error) {
	return f.admins[userID], nil
}

func (f *fakeChat) BotCanRestrict(_ context.Context, _ int64) (bool, error) {
	return f.canRestrict, nil
}

func (f *fakeChat) SoftKick(_ context.Context, _ int64, userID int64) error {
	f.kicks = append(f.kicks, userID)
	return nil
}
