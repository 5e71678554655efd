package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tunez/knob/internal/engine"
	"github.com/tunez/knob/internal/session"
	"github.com/tunez/knob/internal/ui"
)

func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}
	var main string
	switch {
	case m.eng.Phase() == engine.PhaseSetup:
		main = m.theme.Text.Render("No account yet.") + "\n" +
			m.theme.Dim.Render("Run `knob login` in another terminal, then restart.")
	case m.eng.Phase() == engine.PhaseSuspended:
		main = m.theme.Dim.Render("Sync paused…")
	default:
		switch m.screen {
		case screenNowPlaying:
			main = m.renderNowPlaying()
		case screenDevices:
			main = m.renderDevices()
		case screenPlaylists:
			main = m.renderPlaylists()
		case screenAccounts:
			main = m.renderAccounts()
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTop(), "", main, "", m.renderStatus(), m.renderPlayerBar())
}

func (m Model) renderTop() string {
	title := m.theme.Title.Render("knob ▸ " + m.screen.String())
	var right []string
	if u, ok := m.eng.Registry().ActiveUser(); ok {
		name := u.DisplayName
		if name == "" {
			name = "…"
		}
		right = append(right, m.theme.Dim.Render(name))
	}
	if m.eng.Offline() {
		right = append(right, m.theme.Offline.Render("offline"))
	}
	if len(right) == 0 {
		return title
	}
	return title + "  " + strings.Join(right, " · ")
}

func (m Model) renderStatus() string {
	if m.busy {
		return m.theme.Dim.Render("Working…")
	}
	if m.note != "" {
		if m.noteErr {
			return m.theme.Error.Render(m.note)
		}
		return m.theme.Notice.Render(m.note)
	}
	if s, ok := m.eng.Status(); ok {
		if s.Err {
			return m.theme.Error.Render(s.Text)
		}
		return m.theme.Notice.Render(s.Text)
	}
	if a, ok := m.eng.RetryAction(); ok {
		return m.theme.Dim.Render(a.Kind.String() + " waits for a device")
	}
	return ""
}

func (m Model) renderNowPlaying() string {
	st := m.eng.Snapshot()
	var b strings.Builder
	if st.TrackID == "" {
		b.WriteString(m.theme.Dim.Render("Nothing playing") + "\n")
		if st.ContextName != "" {
			b.WriteString(m.theme.Dim.Render("from "+st.ContextName) + "\n")
		}
	} else {
		b.WriteString(m.theme.Accent.Render(st.TrackName) + "\n")
		b.WriteString(m.theme.Text.Render(st.ArtistsDisplay) + "\n")
		if st.AlbumName != "" {
			b.WriteString(m.theme.Dim.Render(st.AlbumName) + "\n")
		}
		if st.ContextName != "" {
			b.WriteString(m.theme.Dim.Render("from "+st.ContextName) + "\n")
		}
		b.WriteString("\n")
		b.WriteString(m.theme.Bar(m.barWidth(), st.EstimatedProgressMillis, st.DurationMillis) + "\n")
		b.WriteString(m.theme.Dim.Render(ui.Clock(st.EstimatedProgressMillis)+" / "+ui.Clock(st.DurationMillis)) + "\n")
	}
	info := b.String()
	if m.art == nil {
		return info
	}
	img := m.eng.Image()
	cover := m.art.Render(img.URL, img.Data)
	return lipgloss.JoinHorizontal(lipgloss.Top, cover, "  ", info)
}

func (m Model) barWidth() int {
	return max(m.width-28, 10)
}

func (m Model) renderDevices() string {
	devices := m.eng.Registry().Devices()
	if len(devices) == 0 {
		return m.theme.Dim.Render("No devices. Open the app on a speaker or phone, then press d.")
	}
	active := m.eng.Registry().ActiveDeviceID()
	lines := make([]string, 0, len(devices))
	for i, d := range devices {
		mark := "  "
		if d.ID == active {
			mark = "● "
		}
		line := mark + d.Name
		if d.Type != "" {
			line += " (" + d.Type + ")"
		}
		if d.Volume >= 0 {
			line += fmt.Sprintf("  %d%%", d.Volume)
		}
		lines = append(lines, m.row(i, line))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPlaylists() string {
	items, complete := m.eng.Playlists()
	if len(items) == 0 {
		if complete {
			return m.theme.Dim.Render("No playlists")
		}
		return m.theme.Dim.Render("Loading playlists…")
	}
	lines := make([]string, 0, len(items)+1)
	for i, p := range items {
		lines = append(lines, m.row(i, p.Name))
	}
	if !complete {
		lines = append(lines, m.theme.Dim.Render("…"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderAccounts() string {
	users := m.eng.Registry().Users()
	active, _ := m.eng.Registry().ActiveUser()
	lines := make([]string, 0, len(users))
	for i, u := range users {
		mark := "  "
		if u.ID == active.ID {
			mark = "● "
		}
		name := u.DisplayName
		if name == "" {
			name = u.ID
		}
		lines = append(lines, m.row(i, mark+name))
	}
	return strings.Join(lines, "\n")
}

func (m Model) row(i int, text string) string {
	if i == m.selection {
		return m.theme.Selected.Render("› " + text)
	}
	return m.theme.Text.Render("  " + text)
}

func (m Model) renderPlayerBar() string {
	st := m.eng.Snapshot()
	state := "⏸"
	if st.IsPlaying {
		state = "⏵"
	}
	name := "(stopped)"
	if st.TrackID != "" {
		name = st.TrackName
		if st.ArtistsDisplay != "" {
			name = st.ArtistsDisplay + " · " + name
		}
	}
	var flags []string
	if st.IsShuffled {
		flags = append(flags, "shuffle")
	}
	switch st.Repeat {
	case session.RepeatContext:
		flags = append(flags, "repeat")
	case session.RepeatTrack:
		flags = append(flags, "repeat one")
	}
	if st.IsLiked {
		flags = append(flags, "♥")
	}
	if d, ok := m.eng.Registry().ActiveDevice(); ok {
		dev := d.Name
		if d.Volume >= 0 {
			dev += fmt.Sprintf(" %d%%", d.Volume)
		}
		flags = append(flags, dev)
	}
	bar := state + " " + name
	if len(flags) > 0 {
		bar += "  " + m.theme.Dim.Render(strings.Join(flags, " · "))
	}
	return bar
}

func (m Model) renderHelp() string {
	lines := []string{
		m.theme.Title.Render("Help"),
		"",
		m.theme.Accent.Render("Playback"),
		"  space         : Play / Pause",
		"  n / p         : Next / Previous",
		"  h / l         : Seek back / forward",
		"  - / +         : Volume down / up",
		"  s / r         : Shuffle / Repeat",
		"  f             : Like",
		"",
		m.theme.Accent.Render("Screens"),
		"  tab/shift+tab : Switch screens",
		"  j / k         : Move selection",
		"  enter         : Pick device, playlist or account",
		"  d             : Refresh devices",
		"  R             : Reload playlists",
		"",
		m.theme.Accent.Render("Other"),
		"  U             : Check for firmware update",
		"  ?             : Toggle help",
		"  q / ctrl+c    : Quit",
	}
	return strings.Join(lines, "\n")
}
