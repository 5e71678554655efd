// Package app is the terminal front-end. It never talks to the service: keys
// become engine actions and every frame is drawn from engine snapshots.
package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tunez/knob/internal/artwork"
	"github.com/tunez/knob/internal/engine"
	"github.com/tunez/knob/internal/queue"
	"github.com/tunez/knob/internal/ui"
)

type screen int

const (
	screenNowPlaying screen = iota
	screenDevices
	screenPlaylists
	screenAccounts
	screenCount
)

func (s screen) String() string {
	switch s {
	case screenNowPlaying:
		return "Now Playing"
	case screenDevices:
		return "Devices"
	case screenPlaylists:
		return "Playlists"
	case screenAccounts:
		return "Accounts"
	default:
		return ""
	}
}

const frameInterval = 250 * time.Millisecond

// Maintenance runs while the engine is suspended, e.g. a firmware check.
type Maintenance func(ctx context.Context) (string, error)

type Options struct {
	Engine *engine.Engine
	Theme  ui.Theme
	// Artwork renders covers; nil hides them.
	Artwork     *artwork.Renderer
	SeekStep    time.Duration
	VolumeStep  int
	Maintenance Maintenance
}

type Model struct {
	eng         *engine.Engine
	theme       ui.Theme
	art         *artwork.Renderer
	seekStep    int
	volumeStep  int
	maintenance Maintenance

	screen    screen
	selection int
	width     int
	height    int
	showHelp  bool
	busy      bool
	note      string
	noteErr   bool
}

func New(opts Options) Model {
	if opts.SeekStep <= 0 {
		opts.SeekStep = 10 * time.Second
	}
	if opts.VolumeStep <= 0 {
		opts.VolumeStep = 5
	}
	return Model{
		eng:         opts.Engine,
		theme:       opts.Theme,
		art:         opts.Artwork,
		seekStep:    int(opts.SeekStep.Milliseconds()),
		volumeStep:  opts.VolumeStep,
		maintenance: opts.Maintenance,
	}
}

type tickMsg time.Time

type maintenanceMsg struct {
	text string
	err  error
}

type clearNoteMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case maintenanceMsg:
		m.busy = false
		if msg.err != nil {
			m.note, m.noteErr = msg.err.Error(), true
		} else {
			m.note, m.noteErr = msg.text, false
		}
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearNoteMsg{} })
	case clearNoteMsg:
		m.note = ""
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "tab":
		return m.setScreen((m.screen + 1) % screenCount)
	case "shift+tab":
		return m.setScreen((m.screen + screenCount - 1) % screenCount)
	case "j", "down":
		if m.selection < m.listLen()-1 {
			m.selection++
		}
		return m, nil
	case "k", "up":
		if m.selection > 0 {
			m.selection--
		}
		return m, nil
	case "enter":
		m.choose()
		return m, nil
	case "U":
		return m.runMaintenance()
	}

	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case " ":
		m.eng.Enqueue(queue.Toggle())
	case "n":
		m.eng.Enqueue(queue.Next())
	case "p":
		m.eng.Enqueue(queue.Previous())
	case "h", "left":
		m.seek(-m.seekStep)
	case "l", "right":
		m.seek(m.seekStep)
	case "-":
		m.changeVolume(-m.volumeStep)
	case "+", "=":
		m.changeVolume(m.volumeStep)
	case "s":
		m.eng.Enqueue(queue.ToggleShuffle())
	case "r":
		m.eng.Enqueue(queue.ToggleRepeat())
	case "f":
		m.eng.Enqueue(queue.ToggleLike())
	case "d":
		m.eng.Enqueue(queue.GetDevices())
	case "R":
		if m.screen == screenPlaylists {
			m.eng.RefreshPlaylists()
		}
	}
	return m, nil
}

func (m Model) setScreen(s screen) (tea.Model, tea.Cmd) {
	m.screen = s
	m.selection = 0
	switch s {
	case screenPlaylists:
		if items, complete := m.eng.Playlists(); len(items) == 0 && !complete {
			m.eng.RefreshPlaylists()
		}
	case screenDevices:
		m.eng.Enqueue(queue.GetDevices())
	}
	return m, nil
}

// seek moves relative to the estimated position.
func (m Model) seek(delta int) {
	st := m.eng.Snapshot()
	if st.TrackID == "" {
		return
	}
	m.eng.Enqueue(queue.Seek(max(st.EstimatedProgressMillis+delta, 0)))
}

func (m Model) changeVolume(delta int) {
	d, ok := m.eng.Registry().ActiveDevice()
	if !ok || d.Volume < 0 {
		return
	}
	m.eng.Enqueue(queue.SetVolume(d.Volume + delta))
}

// choose acts on the highlighted row of a list screen.
func (m Model) choose() {
	switch m.screen {
	case screenDevices:
		devices := m.eng.Registry().Devices()
		if m.selection < len(devices) {
			m.eng.SelectDevice(devices[m.selection].ID)
		}
	case screenAccounts:
		users := m.eng.Registry().Users()
		if m.selection < len(users) {
			m.eng.SwitchUser(users[m.selection].ID)
		}
	case screenPlaylists:
		items, _ := m.eng.Playlists()
		if m.selection < len(items) {
			p := items[m.selection]
			m.eng.Enqueue(queue.PlayContext(p.URI, p.Name))
		}
	}
}

func (m Model) listLen() int {
	switch m.screen {
	case screenDevices:
		return len(m.eng.Registry().Devices())
	case screenAccounts:
		return m.eng.Registry().Len()
	case screenPlaylists:
		items, _ := m.eng.Playlists()
		return len(items)
	default:
		return 0
	}
}

// runMaintenance suspends syncing around the maintenance hook.
func (m Model) runMaintenance() (tea.Model, tea.Cmd) {
	if m.maintenance == nil || m.busy {
		return m, nil
	}
	m.busy = true
	eng, run := m.eng, m.maintenance
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := eng.Suspend(ctx); err != nil {
			return maintenanceMsg{err: err}
		}
		defer eng.Resume()
		text, err := run(ctx)
		return maintenanceMsg{text: text, err: err}
	}
}
