package service

import (
	"regexp"
	"strings"

	"github.com/m3rciful/groupwarden/internal/domain"
)

// Verdict names the filter that claimed a group message.
type Verdict string

const (
	VerdictNone        Verdict = ""
	VerdictBlacklisted Verdict = "blacklisted"
	VerdictLink        Verdict = "link"
	VerdictForward     Verdict = "forward"
	VerdictSpam        Verdict = "spam"
)

// Probe is the per-message input of the passive filters.
type Probe struct {
	SenderID  int64
	Text      string
	IsForward bool
	// SenderIsChatAdmin must be resolved live by the caller; creator and
	// administrator statuses are exempt from every filter but the blacklist.
	SenderIsChatAdmin bool
}

var linkRe = regexp.MustCompile(`(?i)https?://\S+|\bt\.me/\S+`)

// ContainsLink reports whether the text carries an http(s) URL or a t.me reference.
func ContainsLink(text string) bool {
	return linkRe.MatchString(text)
}

// IsCommand reports whether the message text is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// Filter runs the passive content filters against one group message and
// returns the first verdict that fires. The blacklist is checked first and
// unconditionally; the remaining filters honor the group settings and exempt
// chat admins. Anti-spam is a pure length heuristic.
func (m *Moderation) Filter(g *domain.Group, p Probe) Verdict {
	if g == nil || !g.IsApproved {
		return VerdictNone
	}
	if g.IsBlacklisted(p.SenderID) {
		return VerdictBlacklisted
	}
	if p.SenderIsChatAdmin {
		return VerdictNone
	}
	if g.Settings.AntiLink && ContainsLink(p.Text) {
		return VerdictLink
	}
	if g.Settings.AntiForward && p.IsForward {
		return VerdictForward
	}
	if g.Settings.AntiSpam && len([]rune(p.Text)) > m.policy.MaxMessageLength {
		return VerdictSpam
	}
	return VerdictNone
}
