/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	"github.com/allbin/serial-bridge/internal/client"
	"github.com/allbin/serial-bridge/internal/config"
)

var (
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("40")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

var defaultBridgeAddr = net.JoinHostPort("127.0.0.1", strconv.Itoa(config.DefaultPort))

// addBridgeFlags adds the flags shared by commands talking to a running bridge.
func addBridgeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", defaultBridgeAddr, "Bridge management address (host:port)")
	cmd.Flags().Duration("timeout", client.DefaultTimeout, "Request timeout")
}

func bridgeClient(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.New(addr, timeout)
}

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the devices a running bridge can open",
	Long: `Ask a running bridge for its attached devices (the ? command).

Devices the bridge could not open while probing are marked as unopenable.

Examples:
  serial-bridge discover
  serial-bridge discover --addr 10.0.0.5:12345 --table`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := bridgeClient(cmd)
		devices, err := c.Discover(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("✗"), err)
			os.Exit(1)
		}
		if len(devices) == 0 {
			fmt.Printf("No devices attached to %s\n", c.Addr())
			return
		}

		tableFormat, _ := cmd.Flags().GetBool("table")
		if tableFormat {
			fmt.Println(discoveryTable(devices).View())
			return
		}
		for _, d := range devices {
			fmt.Printf("%s\t%s\t%s\t%s\n", d.SerialNumber, d.Type, d.Port, d.Description)
		}
	},
}

func discoveryTable(devices []client.Device) table.Model {
	columns := []table.Column{
		table.NewColumn(columnKeyID, "Identifier", 16),
		table.NewColumn(columnKeyType, "Type", 20),
		table.NewColumn(columnKeyPort, "Port", 16),
		table.NewColumn(columnKeyDesc, "Description", 30),
	}

	rows := make([]table.Row, 0, len(devices))
	for _, d := range devices {
		port := d.Port
		if !d.Openable() {
			port = "unopenable"
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyID:   d.SerialNumber,
			columnKeyType: d.Type,
			columnKeyPort: port,
			columnKeyDesc: d.Description,
		}))
	}

	return table.New(columns).
		WithRows(rows).
		HeaderStyle(tableHeaderStyle)
}

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the devices with a running bridge session",
	Long: `Ask a running bridge which devices currently have a running session
(the * command).`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := bridgeClient(cmd)
		ids, err := c.List(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("✗"), err)
			os.Exit(1)
		}
		if len(ids) == 0 {
			fmt.Printf("No running sessions on %s\n", c.Addr())
			return
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	},
}

// shutdownCmd represents the shutdown command
var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop a running bridge",
	Long: `Ask a running bridge to stop (the ! command). Every session is closed
before the bridge exits.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := bridgeClient(cmd)
		fmt.Printf("%s Stopping bridge at %s...\n", infoStyle.Render("⚡"), c.Addr())
		if err := c.Shutdown(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Shutdown requested\n", successStyle.Render("✓"))
	},
}

func init() {
	for _, c := range []*cobra.Command{discoverCmd, sessionsCmd, shutdownCmd} {
		addBridgeFlags(c)
		rootCmd.AddCommand(c)
	}
	discoverCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}
