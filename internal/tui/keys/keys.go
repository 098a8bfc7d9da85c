package keys

import "github.com/charmbracelet/bubbles/key"

// DashboardKeys are the bindings of the session dashboard.
type DashboardKeys struct {
	Shutdown key.Binding
	Help     key.Binding
	Up       key.Binding
	Down     key.Binding
	Refresh  key.Binding
}

func NewDashboardKeys() DashboardKeys {
	return DashboardKeys{
		Shutdown: key.NewBinding(
			key.WithKeys("esc", "q", "ctrl+c"),
			key.WithHelp("esc/q", "shut down bridge"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh now"),
		),
	}
}

func (k DashboardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Shutdown}
}

func (k DashboardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Refresh},
		{k.Help, k.Shutdown},
	}
}
