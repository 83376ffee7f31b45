package bot

import "github.com/m3rciful/groupwarden/internal/domain"

// settingKeys fixes the panel order of the per-group switches.
var settingKeys = []string{
	"welcome_enabled",
	"goodbye_enabled",
	"anti_spam",
	"anti_link",
	"anti_forward",
	"restrict_new_members",
	"auto_delete_commands",
	"admin_only_commands",
}

var settingLabels = map[string]string{
	"welcome_enabled":      "Welcome messages",
	"goodbye_enabled":      "Goodbye messages",
	"anti_spam":            "Anti-spam",
	"anti_link":            "Anti-link",
	"anti_forward":         "Anti-forward",
	"restrict_new_members": "Restrict new members",
	"auto_delete_commands": "Auto-delete commands",
	"admin_only_commands":  "Admin-only commands",
}

func knownSetting(key string) bool {
	_, ok := settingLabels[key]
	return ok
}

func settingField(s *domain.Settings, key string) *bool {
	switch key {
	case "welcome_enabled":
		return &s.WelcomeEnabled
	case "goodbye_enabled":
		return &s.GoodbyeEnabled
	case "anti_spam":
		return &s.AntiSpam
	case "anti_link":
		return &s.AntiLink
	case "anti_forward":
		return &s.AntiForward
	case "restrict_new_members":
		return &s.RestrictNewMembers
	case "auto_delete_commands":
		return &s.AutoDeleteCommands
	case "admin_only_commands":
		return &s.AdminOnlyCommands
	default:
		return nil
	}
}

// toggleSetting flips the switch and returns its new value.
func toggleSetting(s *domain.Settings, key string) bool {
	f := settingField(s, key)
	if f == nil {
		return false
	}
	*f = !*f
	return *f
}

func settingValue(s domain.Settings, key string) bool {
	f := settingField(&s, key)
	if f == nil {
		return false
	}
	return *f
}

func onOff(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}
