package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-bridge/internal/bridge"
	"github.com/allbin/serial-bridge/internal/tui/styles"
)

// StatusBar is the bottom line of the dashboard.
type StatusBar struct {
	address string
	profile bridge.Profile
	policy  bridge.DuplicatePolicy
	err     error
	width   int

	running  int
	total    int
	stopping bool
}

func NewStatusBar(address string, opts bridge.Options) *StatusBar {
	return &StatusBar{
		address: address,
		profile: opts.Profile,
		policy:  opts.DuplicateOpen,
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

// SetSessions updates the session counters from a snapshot.
func (sb *StatusBar) SetSessions(infos []bridge.SessionInfo) {
	sb.total = len(infos)
	sb.running = 0
	for _, info := range infos {
		if info.State == bridge.StateRunning {
			sb.running++
		}
	}
}

func (sb *StatusBar) SetError(err error) {
	sb.err = err
}

func (sb *StatusBar) SetStopping() {
	sb.stopping = true
}

// ProfileSummary renders the line profile as "1250000 baud 8O2".
func ProfileSummary(p bridge.Profile) string {
	parity := strings.ToUpper(p.Parity.String()[:1])
	return fmt.Sprintf("%d baud %d%s%d", p.BaudRate, p.DataBits, parity, p.StopBits)
}

func (sb *StatusBar) View(timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: Mode indicator
	modeStyle := lipgloss.NewStyle().
		Foreground(styles.Base).
		Background(styles.Green).
		Bold(true).
		Padding(0, 1)
	modeText := "SERVING"
	if sb.stopping {
		modeStyle = modeStyle.Background(styles.Peach)
		modeText = "STOPPING"
	}
	mode := modeStyle.Render(modeText)

	// Section 2: Listen address
	addrStyle := lipgloss.NewStyle().
		Foreground(styles.Mauve).
		Bold(true).
		Padding(0, 1)
	addr := addrStyle.Render(sb.address)

	// Section 3: Session counters, or the last error
	var counters string
	if sb.err != nil {
		counters = lipgloss.NewStyle().
			Foreground(styles.Red).
			Padding(0, 1).
			Render(fmt.Sprintf("✗ %v", sb.err))
	} else {
		counters = lipgloss.NewStyle().
			Foreground(styles.Sky).
			Padding(0, 1).
			Render(fmt.Sprintf("%d running / %d registered", sb.running, sb.total))
	}

	// Section 4: Line profile and duplicate policy
	details := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Padding(0, 1).
		Render(fmt.Sprintf("⚡ %s dup:%s", ProfileSummary(sb.profile), sb.policy))

	timeView := lipgloss.NewStyle().
		Foreground(styles.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	divider := lipgloss.NewStyle().
		Foreground(styles.Surface2).
		Padding(0, 1).
		Render("│")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, mode, addr, counters, divider)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, timeView)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Width(terminalWidth)

	return statusBarStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
