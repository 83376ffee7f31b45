package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/groupwarden/core/telegram/keyboard"
	"github.com/m3rciful/groupwarden/internal/domain"

	tele "gopkg.in/telebot.v4"
)

func actionBtn(text string, a Action) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: string(a.Kind), Data: a.Payload()}
}

func groupListMarkup(groups []domain.Group) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(groups))
	for _, g := range groups {
		btns = append(btns, actionBtn(g.Title, Action{Kind: ActManageGroup, GroupID: g.ID}))
	}
	return keyboard.InlineButtons(btns)
}

// managePanel is the per-group control panel shown in private chat.
func managePanel(g *domain.Group) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("⚙️ %s\nBlacklisted: %d · Warned: %d",
		g.Title, len(g.Blacklist), len(g.Warnings))

	rows := make([][]keyboard.InlineBtn, 0, 12)
	for i := 0; i < len(settingKeys); i += 2 {
		row := []keyboard.InlineBtn{settingBtn(g, settingKeys[i])}
		if i+1 < len(settingKeys) {
			row = append(row, settingBtn(g, settingKeys[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		[]keyboard.InlineBtn{
			actionBtn("👋 Welcome message", Action{Kind: ActTemplateMenu, GroupID: g.ID, Scope: domain.ScopeWelcome}),
			actionBtn("🚪 Goodbye message", Action{Kind: ActTemplateMenu, GroupID: g.ID, Scope: domain.ScopeGoodbye}),
		},
		[]keyboard.InlineBtn{
			actionBtn("🚫 Blacklist", Action{Kind: ActBlacklistPage, GroupID: g.ID}),
			actionBtn("⚠️ Warnings", Action{Kind: ActWarningsPage, GroupID: g.ID}),
		},
		[]keyboard.InlineBtn{
			actionBtn("➕ Blacklist user", Action{Kind: ActBlacklistStart, GroupID: g.ID}),
			actionBtn("➕ Warn user", Action{Kind: ActWarnStart, GroupID: g.ID}),
			actionBtn("👢 Kick user", Action{Kind: ActKickStart, GroupID: g.ID}),
		},
		[]keyboard.InlineBtn{actionBtn("« Back to groups", Action{Kind: ActGroupList})},
	)
	return text, keyboard.InlineButtonsRows(rows...)
}

func settingBtn(g *domain.Group, key string) keyboard.InlineBtn {
	label := fmt.Sprintf("%s %s", onOff(settingValue(g.Settings, key)), settingLabels[key])
	return actionBtn(label, Action{Kind: ActToggleSetting, GroupID: g.ID, Setting: key})
}

func scopeTitle(scope domain.TemplateScope) string {
	if scope == domain.ScopeGoodbye {
		return "Goodbye"
	}
	return "Welcome"
}

// templateMenu is the welcome/goodbye editor panel.
func templateMenu(g *domain.Group, t *domain.Template, scope domain.TemplateScope) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s message of %s\n\n", scopeTitle(scope), g.Title)
	fmt.Fprintf(&b, "Text:\n%s\n\n", t.Text)
	fmt.Fprintf(&b, "Media: %s · Buttons: %d\n", t.MediaType, len(t.Buttons))
	fmt.Fprintf(&b, "Enabled %s · Caption %s · Buttons shown %s · Placeholders %s",
		onOff(t.Enabled), onOff(t.HasCaption), onOff(t.ShowButtons), onOff(t.ShowTags))

	rows := [][]keyboard.InlineBtn{
		{
			actionBtn("📝 Edit text", Action{Kind: ActTemplateEditText, GroupID: g.ID, Scope: scope}),
			actionBtn("🖼 Set media", Action{Kind: ActTemplateSetMedia, GroupID: g.ID, Scope: scope}),
		},
		{
			actionBtn("🔘 Add button", Action{Kind: ActTemplateAddButton, GroupID: g.ID, Scope: scope}),
			actionBtn("🧹 Clear buttons", Action{Kind: ActTemplateClearButtons, GroupID: g.ID, Scope: scope}),
		},
		{
			actionBtn(onOff(t.ShowButtons)+" Show buttons", Action{Kind: ActTemplateToggleButtons, GroupID: g.ID, Scope: scope}),
			actionBtn(onOff(t.ShowTags)+" Placeholders", Action{Kind: ActTemplateToggleTags, GroupID: g.ID, Scope: scope}),
		},
		{
			actionBtn(onOff(t.Enabled)+" Enabled", Action{Kind: ActTemplateToggleOn, GroupID: g.ID, Scope: scope}),
			actionBtn("👁 Preview", Action{Kind: ActTemplatePreview, GroupID: g.ID, Scope: scope}),
		},
		{actionBtn("« Back", Action{Kind: ActManageGroup, GroupID: g.ID})},
	}
	return b.String(), keyboard.InlineButtonsRows(rows...)
}

func blacklistPage(g *domain.Group) (string, *tele.ReplyMarkup) {
	if len(g.Blacklist) == 0 {
		markup := keyboard.InlineButtons([]keyboard.InlineBtn{
			actionBtn("« Back", Action{Kind: ActManageGroup, GroupID: g.ID}),
		})
		return fmt.Sprintf("🚫 Blacklist of %s is empty.", g.Title), markup
	}
	btns := make([]keyboard.InlineBtn, 0, len(g.Blacklist)+1)
	for _, e := range g.Blacklist {
		btns = append(btns, actionBtn(
			fmt.Sprintf("User %d", e.UserID),
			Action{Kind: ActBlacklistInfo, GroupID: g.ID, UserID: e.UserID},
		))
	}
	btns = append(btns, actionBtn("« Back", Action{Kind: ActManageGroup, GroupID: g.ID}))
	return fmt.Sprintf("🚫 Blacklist of %s (%d):", g.Title, len(g.Blacklist)), keyboard.InlineButtons(btns)
}

func warningsPage(g *domain.Group) (string, *tele.ReplyMarkup) {
	if len(g.Warnings) == 0 {
		markup := keyboard.InlineButtons([]keyboard.InlineBtn{
			actionBtn("« Back", Action{Kind: ActManageGroup, GroupID: g.ID}),
		})
		return fmt.Sprintf("⚠️ No warned users in %s.", g.Title), markup
	}
	btns := make([]keyboard.InlineBtn, 0, len(g.Warnings)+1)
	for _, e := range g.Warnings {
		btns = append(btns, actionBtn(
			fmt.Sprintf("User %d (%d)", e.UserID, e.Count),
			Action{Kind: ActWarningInfo, GroupID: g.ID, UserID: e.UserID},
		))
	}
	btns = append(btns, actionBtn("« Back", Action{Kind: ActManageGroup, GroupID: g.ID}))
	return fmt.Sprintf("⚠️ Warned users in %s (%d):", g.Title, len(g.Warnings)), keyboard.InlineButtons(btns)
}

func blacklistInfoPage(g *domain.Group, e domain.BlacklistEntry) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("🚫 User %d\nAdded by %d on %s\nReason: %s",
		e.UserID, e.AddedBy, e.AddedAt.UTC().Format("2006-01-02 15:04 UTC"), e.Reason)
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{actionBtn("♻️ Unblacklist", Action{Kind: ActUnblacklist, GroupID: g.ID, UserID: e.UserID})},
		[]keyboard.InlineBtn{actionBtn("« Back", Action{Kind: ActBlacklistPage, GroupID: g.ID})},
	)
	return text, markup
}

func warningInfoPage(g *domain.Group, e domain.WarningEntry, threshold int) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("⚠️ User %d: %d/%d warnings\nLast warned by %d on %s\nReason: %s",
		e.UserID, e.Count, threshold, e.AddedBy,
		e.AddedAt.UTC().Format("2006-01-02 15:04 UTC"), e.Reason)
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			actionBtn("➖ Remove warning", Action{Kind: ActUnwarn, GroupID: g.ID, UserID: e.UserID}),
			actionBtn("🚫 Blacklist", Action{Kind: ActEscalate, GroupID: g.ID, UserID: e.UserID}),
		},
		[]keyboard.InlineBtn{actionBtn("« Back", Action{Kind: ActWarningsPage, GroupID: g.ID})},
	)
	return text, markup
}
