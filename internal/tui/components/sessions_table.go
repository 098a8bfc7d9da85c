package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-bridge/internal/bridge"
	"github.com/allbin/serial-bridge/internal/tui/styles"
)

// SessionsTable lists registry entries, one row per device.
type SessionsTable struct {
	table table.Model
	infos []bridge.SessionInfo
	now   func() time.Time
}

func NewSessionsTable(width, height int) *SessionsTable {
	if height < 5 {
		height = 5
	}

	t := table.New(
		table.WithColumns(sessionColumns(width)),
		table.WithFocused(true),
		table.WithHeight(height),
		table.WithWidth(width),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Subtext0).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Text)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(styles.Surface1).
		Bold(false)
	t.SetStyles(s)

	return &SessionsTable{table: t, now: time.Now}
}

// sessionColumns splits width between the columns; the device column
// takes what is left.
func sessionColumns(width int) []table.Column {
	if width < 80 {
		width = 80
	}

	stateWidth := 20
	remoteWidth := 22
	uptimeWidth := 10
	bytesWidth := 10
	shortWidth := 6

	reserved := stateWidth + remoteWidth + uptimeWidth + 2*bytesWidth + shortWidth + 14
	deviceWidth := width - reserved
	if deviceWidth < 12 {
		deviceWidth = 12
	}

	return []table.Column{
		{Title: "Device", Width: deviceWidth},
		{Title: "State", Width: stateWidth},
		{Title: "Remote", Width: remoteWidth},
		{Title: "Uptime", Width: uptimeWidth},
		{Title: "→ Net", Width: bytesWidth},
		{Title: "→ Dev", Width: bytesWidth},
		{Title: "Short", Width: shortWidth},
	}
}

func (st *SessionsTable) SetSize(width, height int) {
	st.table.SetColumns(sessionColumns(width))
	st.table.SetHeight(height)
	st.table.SetWidth(width)
	st.table.UpdateViewport()
}

// SetSessions replaces the rows, keeping the cursor in range.
func (st *SessionsTable) SetSessions(infos []bridge.SessionInfo) {
	st.infos = infos
	now := st.now()

	rows := make([]table.Row, len(infos))
	for i, info := range infos {
		rows[i] = sessionRow(info, now)
	}
	st.table.SetRows(rows)

	if c := st.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		st.table.SetCursor(len(rows) - 1)
	}
	st.table.UpdateViewport()
}

func sessionRow(info bridge.SessionInfo, now time.Time) table.Row {
	state := styles.StateIndicator(info.State) + " " + info.State.String()
	return table.Row{
		info.DeviceID,
		state,
		info.Remote,
		FormatUptime(info.Started, now),
		FormatBytes(info.BytesToNet),
		FormatBytes(info.BytesToDevice),
		fmt.Sprintf("%d", info.ShortWrites),
	}
}

// Selected returns the session under the cursor.
func (st *SessionsTable) Selected() (bridge.SessionInfo, bool) {
	c := st.table.Cursor()
	if c < 0 || c >= len(st.infos) {
		return bridge.SessionInfo{}, false
	}
	return st.infos[c], true
}

func (st *SessionsTable) Len() int {
	return len(st.infos)
}

func (st *SessionsTable) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	st.table, cmd = st.table.Update(msg)
	return cmd
}

func (st *SessionsTable) View() string {
	return st.table.View()
}
