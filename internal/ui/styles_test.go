package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestApplyTheme(t *testing.T) {
	t.Cleanup(func() { ApplyTheme("dark") })

	tests := []struct {
		name     string
		want     string
		text, bg lipgloss.Color
	}{
		{"light", "light", "235", "254"},
		{"dark", "dark", "255", "236"},
		{"solarized", "dark", "255", "236"},
		{"", "dark", "255", "236"},
	}

	for _, tt := range tests {
		if got := ApplyTheme(tt.name); got != tt.want {
			t.Errorf("ApplyTheme(%q) = %q, want %q", tt.name, got, tt.want)
		}
		if fg := NormalItem.GetForeground(); fg != tt.text {
			t.Errorf("%q: NormalItem foreground = %v, want %v", tt.name, fg, tt.text)
		}
		if bg := StatusBar.GetBackground(); bg != tt.bg {
			t.Errorf("%q: StatusBar background = %v, want %v", tt.name, bg, tt.bg)
		}
	}
}

func TestUndatedBadgeFollowsTheme(t *testing.T) {
	t.Cleanup(func() { ApplyTheme("dark") })

	ApplyTheme("light")
	if got := UndatedBadge.GetForeground(); got != palettes["light"].warn {
		t.Errorf("UndatedBadge foreground = %v, want light warn", got)
	}
	if got := UndatedBadge.GetBackground(); got != palettes["light"].bar {
		t.Errorf("UndatedBadge background = %v, want light bar", got)
	}
}
