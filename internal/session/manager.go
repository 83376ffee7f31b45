package session

import (
	"strings"
	"sync"

	"github.com/m3rciful/groupwarden/core/logger"
	tghelpers "github.com/m3rciful/groupwarden/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Handler completes or advances a flow for the message carried by c.
type Handler func(c tele.Context, f Flow) error

// CancelCommand clears any pending flow when received, in any state.
const CancelCommand = "/cancel"

// Manager owns the per-user conversation slots. Every mutation goes through
// the mutex so a rapid double-send cannot tear a read/clear pair.
type Manager struct {
	mu       sync.Mutex
	flows    map[int64]Flow
	handlers map[Kind]Handler
	onCancel tele.HandlerFunc
}

// NewManager constructs an empty in-memory Manager.
func NewManager() *Manager {
	return &Manager{
		flows:    make(map[int64]Flow),
		handlers: make(map[Kind]Handler),
	}
}

// RegisterHandler associates a flow kind with its completion handler.
func (m *Manager) RegisterHandler(k Kind, h Handler) {
	if k == KindNone || h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[k] = h
}

// SetCancelHandler installs the handler invoked after /cancel cleared a pending flow.
func (m *Manager) SetCancelHandler(h tele.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCancel = h
}

// Begin opens a new flow for the user, replacing any pending one.
func (m *Manager) Begin(userID int64, f Flow) {
	if f.Kind == KindNone {
		m.Clear(userID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[userID] = f
}

// Advance moves the user to the next step of a multi-step flow,
// preserving StartedAt of the original step when unset.
func (m *Manager) Advance(userID int64, f Flow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.flows[userID]; ok && f.StartedAt.IsZero() {
		f.StartedAt = prev.StartedAt
	}
	m.flows[userID] = f
}

// Get returns the pending flow of the user if one exists.
func (m *Manager) Get(userID int64) (Flow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[userID]
	return f, ok
}

// Clear drops the pending flow and reports whether one was present.
func (m *Manager) Clear(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flows[userID]
	delete(m.flows, userID)
	return ok
}

// InProgress reports whether the user has a pending flow.
func (m *Manager) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flows[userID]
	return ok
}

// Accepts reports whether the sender's pending flow, if any, may consume this
// update. Flows are private-chat conversations; messages the same user sends
// in a group never feed them and fall through to normal routing and the group
// filters.
func (m *Manager) Accepts(c tele.Context) bool {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil || chat.Type != tele.ChatPrivate {
		return false
	}
	return m.InProgress(sender.ID)
}

// HandleCancel clears any pending flow for the sender and runs the cancel
// handler only if a flow was actually pending.
func (m *Manager) HandleCancel(c tele.Context) error {
	userID := c.Sender().ID
	m.mu.Lock()
	_, pending := m.flows[userID]
	delete(m.flows, userID)
	onCancel := m.onCancel
	m.mu.Unlock()

	if pending && onCancel != nil {
		return onCancel(c)
	}
	return nil
}

// ManagerHandler dispatches the inbound message to the pending flow's handler.
// Messages that do not match the shape the flow expects are ignored and the
// flow stays pending.
func (m *Manager) ManagerHandler(c tele.Context) error {
	if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
		return nil
	}
	userID := c.Sender().ID

	m.mu.Lock()
	f, ok := m.flows[userID]
	var handler Handler
	if ok {
		handler = m.handlers[f.Kind]
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "flow.dispatch",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("flow", string(f.Kind)),
		slog.Int64("group_id", f.GroupID),
	)

	text := strings.TrimSpace(c.Text())
	if strings.EqualFold(text, CancelCommand) {
		return m.HandleCancel(c)
	}

	if !matchesInput(f.Kind, c.Message(), text) {
		logger.Debug(ctx, "tg", "flow.skip",
			slog.String("status", "skip"),
			slog.Int64("user_id", userID),
			slog.String("flow", string(f.Kind)),
		)
		return nil
	}

	if handler == nil {
		// A registered kind without a handler means a wiring bug; drop the
		// flow instead of leaving the user stuck.
		m.Clear(userID)
		logger.Warn(ctx, "tg", "flow.no_handler",
			slog.String("flow", string(f.Kind)),
			slog.Int64("user_id", userID),
		)
		return nil
	}
	return handler(c, f)
}

func matchesInput(k Kind, msg *tele.Message, text string) bool {
	if msg == nil {
		return false
	}
	if k.AcceptsMedia() {
		return msg.Photo != nil || msg.Video != nil || msg.Animation != nil || msg.Sticker != nil
	}
	if k == KindGroupForward {
		return msg.Origin != nil
	}
	if text == "" {
		// Target steps also accept a forwarded or replied-to message with no text.
		if k.AcceptsForward() {
			return msg.Origin != nil || msg.ReplyTo != nil
		}
		return false
	}
	// Commands never feed a free-text step; /cancel is handled above.
	return !strings.HasPrefix(text, "/")
}
