package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/groupwarden/internal/domain"
)

// ActionKind names one inline button action. The set is closed: payloads are
// parsed once at the router boundary and unknown actions never reach handlers.
type ActionKind string

const (
	ActRequestApproval ActionKind = "req_approval"
	ActApproveUser     ActionKind = "user_approve"
	ActRejectUser      ActionKind = "user_reject"

	ActGroupList   ActionKind = "group_list"
	ActManageGroup ActionKind = "group_manage"

	ActToggleSetting ActionKind = "setting_toggle"

	ActTemplateMenu          ActionKind = "tpl_menu"
	ActTemplateEditText      ActionKind = "tpl_edit_text"
	ActTemplateSetMedia      ActionKind = "tpl_set_media"
	ActTemplateAddButton     ActionKind = "tpl_add_button"
	ActTemplateClearButtons  ActionKind = "tpl_clear_buttons"
	ActTemplateToggleButtons ActionKind = "tpl_toggle_buttons"
	ActTemplateToggleTags    ActionKind = "tpl_toggle_tags"
	ActTemplateToggleOn      ActionKind = "tpl_toggle_on"
	ActTemplatePreview       ActionKind = "tpl_preview"

	ActBlacklistPage  ActionKind = "bl_page"
	ActBlacklistInfo  ActionKind = "bl_info"
	ActUnblacklist    ActionKind = "bl_remove"
	ActBlacklistStart ActionKind = "bl_start"

	ActWarnStart ActionKind = "warn_start"
	ActKickStart ActionKind = "kick_start"

	ActWarningsPage ActionKind = "warn_page"
	ActWarningInfo  ActionKind = "warn_info"
	ActUnwarn       ActionKind = "warn_remove"
	ActEscalate     ActionKind = "warn_escalate"
)

// Action is the parsed form of one callback press.
type Action struct {
	Kind    ActionKind
	GroupID int64
	UserID  int64
	Scope   domain.TemplateScope
	Setting string
}

// payload shapes per kind: "" | "<group>" | "<group>:<user>" |
// "<group>:<scope>" | "<group>:<setting>".

// ParseAction decodes the callback payload for the given kind. Malformed
// payloads are rejected here so handlers only ever see well-formed actions.
func ParseAction(kind ActionKind, payload string) (Action, error) {
	a := Action{Kind: kind}
	parts := strings.Split(payload, ":")
	if payload == "" {
		parts = nil
	}

	switch kind {
	case ActRequestApproval, ActGroupList:
		return a, nil

	case ActApproveUser, ActRejectUser:
		if len(parts) != 1 {
			return a, fmt.Errorf("action %s: want user id, got %q", kind, payload)
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return a, fmt.Errorf("action %s: bad user id %q", kind, parts[0])
		}
		a.UserID = id
		return a, nil

	case ActManageGroup, ActBlacklistPage, ActWarningsPage,
		ActBlacklistStart, ActWarnStart, ActKickStart:
		if len(parts) != 1 {
			return a, fmt.Errorf("action %s: want group id, got %q", kind, payload)
		}
		return a, parseGroupID(&a, parts[0])

	case ActToggleSetting:
		if len(parts) != 2 {
			return a, fmt.Errorf("action %s: want group:setting, got %q", kind, payload)
		}
		if err := parseGroupID(&a, parts[0]); err != nil {
			return a, err
		}
		if !knownSetting(parts[1]) {
			return a, fmt.Errorf("action %s: unknown setting %q", kind, parts[1])
		}
		a.Setting = parts[1]
		return a, nil

	case ActTemplateMenu, ActTemplateEditText, ActTemplateSetMedia,
		ActTemplateAddButton, ActTemplateClearButtons, ActTemplateToggleButtons,
		ActTemplateToggleTags, ActTemplateToggleOn, ActTemplatePreview:
		if len(parts) != 2 {
			return a, fmt.Errorf("action %s: want group:scope, got %q", kind, payload)
		}
		if err := parseGroupID(&a, parts[0]); err != nil {
			return a, err
		}
		switch domain.TemplateScope(parts[1]) {
		case domain.ScopeWelcome, domain.ScopeGoodbye:
			a.Scope = domain.TemplateScope(parts[1])
		default:
			return a, fmt.Errorf("action %s: unknown scope %q", kind, parts[1])
		}
		return a, nil

	case ActBlacklistInfo, ActUnblacklist, ActWarningInfo, ActUnwarn, ActEscalate:
		if len(parts) != 2 {
			return a, fmt.Errorf("action %s: want group:user, got %q", kind, payload)
		}
		if err := parseGroupID(&a, parts[0]); err != nil {
			return a, err
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return a, fmt.Errorf("action %s: bad user id %q", kind, parts[1])
		}
		a.UserID = id
		return a, nil
	}

	return a, fmt.Errorf("unknown action %q", kind)
}

func parseGroupID(a *Action, s string) error {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("action %s: bad group id %q", a.Kind, s)
	}
	a.GroupID = id
	return nil
}

// Payload builds the wire payload the parser above accepts.
func (a Action) Payload() string {
	switch a.Kind {
	case ActRequestApproval, ActGroupList:
		return ""
	case ActApproveUser, ActRejectUser:
		return strconv.FormatInt(a.UserID, 10)
	case ActManageGroup, ActBlacklistPage, ActWarningsPage,
		ActBlacklistStart, ActWarnStart, ActKickStart:
		return strconv.FormatInt(a.GroupID, 10)
	case ActToggleSetting:
		return strconv.FormatInt(a.GroupID, 10) + ":" + a.Setting
	case ActTemplateMenu, ActTemplateEditText, ActTemplateSetMedia,
		ActTemplateAddButton, ActTemplateClearButtons, ActTemplateToggleButtons,
		ActTemplateToggleTags, ActTemplateToggleOn, ActTemplatePreview:
		return strconv.FormatInt(a.GroupID, 10) + ":" + string(a.Scope)
	default:
		return strconv.FormatInt(a.GroupID, 10) + ":" + strconv.FormatInt(a.UserID, 10)
	}
}
