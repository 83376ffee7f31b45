package session

import "time"

// Kind identifies one conversation flow step. A user is in at most one
// flow at any time; entering a new flow replaces the previous one.
type Kind string

const (
	// KindNone indicates there is no active conversation with the user.
	KindNone Kind = ""

	// KindEditWelcomeText awaits replacement text for the welcome template.
	KindEditWelcomeText Kind = "welcome_text"
	// KindEditGoodbyeText awaits replacement text for the goodbye template.
	KindEditGoodbyeText Kind = "goodbye_text"
	// KindWelcomeMedia awaits a photo/video/animation/sticker for the welcome template.
	KindWelcomeMedia Kind = "welcome_media"
	// KindGoodbyeMedia awaits a photo/video/animation/sticker for the goodbye template.
	KindGoodbyeMedia Kind = "goodbye_media"
	// KindWelcomeButtonLabel awaits the label of a new welcome button.
	KindWelcomeButtonLabel Kind = "welcome_button_label"
	// KindWelcomeButtonURL awaits the URL of a new welcome button.
	KindWelcomeButtonURL Kind = "welcome_button_url"
	// KindGoodbyeButtonLabel awaits the label of a new goodbye button.
	KindGoodbyeButtonLabel Kind = "goodbye_button_label"
	// KindGoodbyeButtonURL awaits the URL of a new goodbye button.
	KindGoodbyeButtonURL Kind = "goodbye_button_url"

	// KindBlacklistTarget awaits the target user of a blacklist action.
	KindBlacklistTarget Kind = "blacklist_target"
	// KindBlacklistReason awaits the reason of a blacklist action.
	KindBlacklistReason Kind = "blacklist_reason"
	// KindWarnTarget awaits the target user of a warn action.
	KindWarnTarget Kind = "warn_target"
	// KindWarnReason awaits the reason of a warn action.
	KindWarnReason Kind = "warn_reason"
	// KindKickTarget awaits the target user of a kick action.
	KindKickTarget Kind = "kick_target"
	// KindKickReason awaits the reason of a kick action.
	KindKickReason Kind = "kick_reason"

	// KindGroupForward awaits a message forwarded from the group to register.
	KindGroupForward Kind = "group_forward"
)

// Flow is the single pending conversation slot of one user.
type Flow struct {
	Kind      Kind
	GroupID   int64
	TargetID  int64
	Label     string
	StartedAt time.Time
}

// AcceptsMedia reports whether the flow consumes a media message.
func (k Kind) AcceptsMedia() bool {
	return k == KindWelcomeMedia || k == KindGoodbyeMedia
}

// AcceptsForward reports whether the flow consumes a forwarded message.
func (k Kind) AcceptsForward() bool {
	return k == KindGroupForward || k == KindBlacklistTarget ||
		k == KindWarnTarget || k == KindKickTarget
}

// AcceptsText reports whether the flow consumes a free-text message.
func (k Kind) AcceptsText() bool {
	return k != KindNone && !k.AcceptsMedia() && k != KindGroupForward
}
