// Package tui implements the live terminal dashboard: one row per
// provider, a scrolling log pane fed by the observability sink, and a
// cursor that toggles the selected provider's disabled bit.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mintya/auto-proxy/internal/obs"
	"github.com/mintya/auto-proxy/internal/provider"
	"github.com/mintya/auto-proxy/internal/state"
)

// pollInterval is how often the model re-reads state.Snapshot.
const pollInterval = 250 * time.Millisecond

// tickMsg drives the polling loop.
type tickMsg time.Time

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	state     *state.ProxyState
	providers []provider.Provider
	sink      *obs.Sink

	rows   []state.Snapshot
	logs   []obs.Event
	cursor int
	width  int
	height int
	quit   bool
}

// New builds a dashboard Model bound to the shared proxy state.
func New(st *state.ProxyState, providers []provider.Provider, sink *obs.Sink) Model {
	return Model{
		state:     st,
		providers: providers,
		sink:      sink,
	}
}

// Init starts the polling ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles key presses and the poll ticker.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		m.rows = m.state.SnapshotAll(m.providers)
		m.logs = m.sink.Recent()
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.providers)-1 {
				m.cursor++
			}
			return m, nil
		case "enter", " ":
			if m.cursor < len(m.providers) {
				name := m.providers[m.cursor].Name
				m.state.SetDisabled(name, !m.state.Disabled(name))
			}
			return m, nil
		}
	}
	return m, nil
}
