package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestGetTheme(t *testing.T) {
	tests := []struct {
		name     string
		noColor  bool
		expected string
	}{
		{"rainbow", false, "rainbow"},
		{"mono", false, "mono"},
		{"green", false, "green"},
		{"unknown", false, "rainbow"},
		{"green", true, "nocolor"},
	}
	for _, tt := range tests {
		if got := GetTheme(tt.name, tt.noColor).Name; got != tt.expected {
			t.Errorf("GetTheme(%q, %v) = %q, want %q", tt.name, tt.noColor, got, tt.expected)
		}
	}
}

func TestThemeNamesAreValid(t *testing.T) {
	for _, name := range ThemeNames() {
		if !ValidTheme(name) {
			t.Errorf("%q listed but not valid", name)
		}
	}
	if ValidTheme("plaid") {
		t.Error("unknown theme accepted")
	}
}

func TestColorThemesHaveForeground(t *testing.T) {
	for _, th := range []Theme{Rainbow(), Mono(), Green()} {
		if _, isNo := th.Accent.GetForeground().(lipgloss.NoColor); isNo {
			t.Errorf("%s has no accent color", th.Name)
		}
	}
	if !NoColor().Title.GetBold() {
		t.Error("nocolor title should be bold")
	}
}

func TestBar(t *testing.T) {
	th := NoColor()
	tests := []struct {
		name      string
		pos, dur  int
		wantFill  int
		wantEmpty int
	}{
		{"start", 0, 1000, 0, 10},
		{"half", 500, 1000, 5, 5},
		{"end", 1000, 1000, 10, 0},
		{"past end", 5000, 1000, 10, 0},
		{"unknown duration", 500, 0, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := th.Bar(10, tt.pos, tt.dur)
			if got := strings.Count(bar, "━"); got != tt.wantFill {
				t.Errorf("filled = %d, want %d", got, tt.wantFill)
			}
			if got := strings.Count(bar, "─"); got != tt.wantEmpty {
				t.Errorf("empty = %d, want %d", got, tt.wantEmpty)
			}
		})
	}
}

func TestClock(t *testing.T) {
	tests := map[int]string{
		0:       "0:00",
		-5:      "0:00",
		61000:   "1:01",
		599999:  "9:59",
		3723000: "1:02:03",
	}
	for ms, want := range tests {
		if got := Clock(ms); got != want {
			t.Errorf("Clock(%d) = %q, want %q", ms, got, want)
		}
	}
}
