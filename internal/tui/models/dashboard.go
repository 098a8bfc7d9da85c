package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-bridge/internal/bridge"
	"github.com/allbin/serial-bridge/internal/tui/components"
	"github.com/allbin/serial-bridge/internal/tui/keys"
	"github.com/allbin/serial-bridge/internal/tui/styles"
)

// DefaultRefresh is how often the dashboard polls the session snapshot.
const DefaultRefresh = 500 * time.Millisecond

// Bridge is the part of the server the dashboard drives.
type Bridge interface {
	Sessions(ctx context.Context) ([]bridge.SessionInfo, error)
	Shutdown()
	Done() <-chan struct{}
}

// SessionsMsg carries a snapshot fetched from the bridge.
type SessionsMsg struct {
	Infos []bridge.SessionInfo
	Err   error
}

// StoppedMsg is sent once the bridge has finished shutting down.
type StoppedMsg struct{}

type tickMsg time.Time

// Dashboard shows live sessions of a running bridge. Leaving it shuts the
// bridge down.
type Dashboard struct {
	src       Bridge
	table     *components.SessionsTable
	statusBar *components.StatusBar
	help      help.Model
	keys      keys.DashboardKeys

	refresh  time.Duration
	ready    bool
	stopping bool
}

func NewDashboard(src Bridge, address string, opts bridge.Options) *Dashboard {
	return &Dashboard{
		src:       src,
		table:     components.NewSessionsTable(80, 10),
		statusBar: components.NewStatusBar(address, opts),
		help:      help.New(),
		keys:      keys.NewDashboardKeys(),
		refresh:   DefaultRefresh,
	}
}

// Stopping reports whether a shutdown was requested from the dashboard.
func (m *Dashboard) Stopping() bool {
	return m.stopping
}

func (m *Dashboard) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick(), m.waitStopped())
}

func (m *Dashboard) fetch() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		infos, err := src.Sessions(ctx)
		return SessionsMsg{Infos: infos, Err: err}
	}
}

func (m *Dashboard) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Dashboard) waitStopped() tea.Cmd {
	done := m.src.Done()
	return func() tea.Msg {
		<-done
		return StoppedMsg{}
	}
}

func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// title, detail line and status bar
		const chrome = 4
		m.table.SetSize(msg.Width, msg.Height-chrome)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.ready = true

	case tickMsg:
		if m.stopping {
			return m, nil
		}
		return m, tea.Batch(m.fetch(), m.tick())

	case SessionsMsg:
		if errors.Is(msg.Err, bridge.ErrServerClosed) {
			return m, tea.Quit
		}
		if msg.Err != nil {
			m.statusBar.SetError(msg.Err)
			return m, nil
		}
		m.statusBar.SetError(nil)
		m.table.SetSessions(msg.Infos)
		m.statusBar.SetSessions(msg.Infos)

	case StoppedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Shutdown):
			if !m.stopping {
				m.stopping = true
				m.statusBar.SetStopping()
				m.src.Shutdown()
			}
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		}
		return m, m.table.Update(msg)
	}
	return m, nil
}

// detail describes the selected session in one line.
func (m *Dashboard) detail() string {
	info, ok := m.table.Selected()
	if !ok {
		return styles.MutedStyle.Render("no sessions")
	}
	line := fmt.Sprintf("%s  session %s  started %s",
		styles.StateStyle(info.State).Render(info.DeviceID),
		info.ID,
		info.Started.Format("15:04:05"))
	if info.Err != nil {
		line += "  " + styles.ErrorStyle.Render(info.Err.Error())
	}
	return line
}

func (m *Dashboard) View() string {
	title := styles.TitleStyle.Render("serial-bridge")

	var content string
	if m.ready {
		content = m.table.View()
	} else {
		content = "Initializing..."
	}

	parts := []string{
		title,
		styles.ContentBorderStyle.Render(content),
		m.detail(),
	}
	if m.help.ShowAll {
		parts = append(parts, styles.HelpStyle.Render(m.help.View(m.keys)))
	}
	parts = append(parts, m.statusBar.View(time.Now().Format("15:04:05")))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
