// Package ui holds the lipgloss styles and small formatting helpers used by
// the now-playing screen.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Name     string
	Title    lipgloss.Style
	Text     lipgloss.Style
	Dim      lipgloss.Style
	Accent   lipgloss.Style
	Error    lipgloss.Style
	Notice   lipgloss.Style
	Offline  lipgloss.Style
	Border   lipgloss.Style
	Selected lipgloss.Style
	BarFill  lipgloss.Style
	BarEmpty lipgloss.Style
}

var themes = map[string]func() Theme{
	"rainbow": Rainbow,
	"mono":    Mono,
	"green":   Green,
	"nocolor": NoColor,
}

// ThemeNames lists the accepted values of ui.theme.
func ThemeNames() []string {
	return []string{"rainbow", "mono", "green", "nocolor"}
}

func ValidTheme(name string) bool {
	_, ok := themes[name]
	return ok
}

// GetTheme returns the named theme, Rainbow for an unknown name. noColor
// wins over the name.
func GetTheme(name string, noColor bool) Theme {
	if noColor {
		return NoColor()
	}
	if fn, ok := themes[name]; ok {
		return fn()
	}
	return Rainbow()
}

func fg(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }

func Rainbow() Theme {
	return Theme{
		Name:     "rainbow",
		Title:    fg("#8EEBFF").Bold(true),
		Text:     fg("#E6E6FA"),
		Dim:      fg("#6C6F93"),
		Accent:   fg("#FF6FF7"),
		Error:    fg("#FF5F56").Bold(true),
		Notice:   fg("#5CFF5C"),
		Offline:  fg("#FFD166").Bold(true),
		Border:   fg("#7C7CFF"),
		Selected: fg("#FFA7C4").Bold(true),
		BarFill:  fg("#FF6FF7"),
		BarEmpty: fg("#3A3C5A"),
	}
}

func Mono() Theme {
	return Theme{
		Name:     "mono",
		Title:    fg("#FFFFFF").Bold(true),
		Text:     fg("#CCCCCC"),
		Dim:      fg("#666666"),
		Accent:   fg("#FFFFFF").Bold(true),
		Error:    fg("#FFFFFF").Bold(true).Underline(true),
		Notice:   fg("#CCCCCC").Bold(true),
		Offline:  fg("#AAAAAA").Bold(true),
		Border:   fg("#888888"),
		Selected: fg("#FFFFFF").Bold(true).Underline(true),
		BarFill:  fg("#FFFFFF"),
		BarEmpty: fg("#444444"),
	}
}

func Green() Theme {
	bright, medium, dark := "#00FF00", "#00CC00", "#005500"
	return Theme{
		Name:     "green",
		Title:    fg(bright).Bold(true),
		Text:     fg(medium),
		Dim:      fg(dark),
		Accent:   fg(bright).Bold(true),
		Error:    fg(bright).Bold(true).Reverse(true),
		Notice:   fg(bright),
		Offline:  fg(medium).Bold(true),
		Border:   fg("#008800"),
		Selected: fg(bright).Bold(true).Underline(true),
		BarFill:  fg(bright),
		BarEmpty: fg(dark),
	}
}

// NoColor relies on bold and reverse only.
func NoColor() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Name:     "nocolor",
		Title:    plain.Bold(true),
		Text:     plain,
		Dim:      plain,
		Accent:   plain.Bold(true),
		Error:    plain.Bold(true),
		Notice:   plain,
		Offline:  plain.Bold(true),
		Border:   plain,
		Selected: plain.Reverse(true),
		BarFill:  plain,
		BarEmpty: plain,
	}
}

// Bar draws a progress bar of width cells. An unknown duration draws an
// empty bar.
func (t Theme) Bar(width, positionMs, durationMs int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if durationMs > 0 {
		filled = min(max(positionMs, 0)*width/durationMs, width)
	}
	return t.BarFill.Render(strings.Repeat("━", filled)) + t.BarEmpty.Render(strings.Repeat("─", width-filled))
}

// Clock formats milliseconds as m:ss, or h:mm:ss past an hour.
func Clock(ms int) string {
	s := max(ms, 0) / 1000
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
