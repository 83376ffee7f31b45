package bot

import (
	"testing"

	"github.com/m3rciful/groupwarden/internal/domain"
)

func TestParseActionRoundTrip(t *testing.T) {
	cases := []Action{
		{Kind: ActRequestApproval},
		{Kind: ActGroupList},
		{Kind: ActApproveUser, UserID: 42},
		{Kind: ActRejectUser, UserID: 42},
		{Kind: ActManageGroup, GroupID: -1001234},
		{Kind: ActBlacklistStart, GroupID: -1001234},
		{Kind: ActToggleSetting, GroupID: -1001234, Setting: "anti_link"},
		{Kind: ActTemplateMenu, GroupID: -1001234, Scope: domain.ScopeWelcome},
		{Kind: ActTemplateClearButtons, GroupID: -1001234, Scope: domain.ScopeGoodbye},
		{Kind: ActBlacklistInfo, GroupID: -1001234, UserID: 42},
		{Kind: ActEscalate, GroupID: -1001234, UserID: 42},
	}
	for _, want := range cases {
		got, err := ParseAction(want.Kind, want.Payload())
		if err != nil {
			t.Fatalf("%s: %v", want.Kind, err)
		}
		if got != want {
			t.Fatalf("%s: round trip mismatch: got %+v want %+v", want.Kind, got, want)
		}
	}
}

func TestParseActionRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		kind    ActionKind
		payload string
	}{
		{ActApproveUser, ""},
		{ActApproveUser, "abc"},
		{ActManageGroup, "-100:extra"},
		{ActToggleSetting, "-100"},
		{ActToggleSetting, "-100:no_such_setting"},
		{ActTemplateMenu, "-100:weekly"},
		{ActTemplateMenu, "oops:welcome"},
		{ActBlacklistInfo, "-100"},
		{ActUnwarn, "-100:abc"},
		{ActionKind("made_up"), ""},
	}
	for _, tc := range cases {
		if _, err := ParseAction(tc.kind, tc.payload); err == nil {
			t.Fatalf("%s %q: expected parse error", tc.kind, tc.payload)
		}
	}
}

func TestToggleSettingFlips(t *testing.T) {
	s := domain.DefaultSettings()
	for _, key := range settingKeys {
		before := settingValue(s, key)
		after := toggleSetting(&s, key)
		if after == before {
			t.Fatalf("%s: toggle did not flip the value", key)
		}
		if settingValue(s, key) != after {
			t.Fatalf("%s: toggled value not visible through settingValue", key)
		}
	}

	unchanged := s
	toggleSetting(&s, "no_such_setting")
	if s != unchanged {
		t.Fatal("unknown setting key must not mutate anything")
	}
}

func TestValidButtonURLSchemes(t *testing.T) {
	good := []string{
		"http://example.com",
		"https://example.com/path",
		"tg://user?id=42",
		"HTTPS://EXAMPLE.COM",
	}
	for _, u := range good {
		if !validButtonURL(u) {
			t.Fatalf("%q: expected valid", u)
		}
	}
	bad := []string{"", "example.com", "ftp://example.com", "javascript:alert(1)"}
	for _, u := range bad {
		if validButtonURL(u) {
			t.Fatalf("%q: expected invalid", u)
		}
	}
}
