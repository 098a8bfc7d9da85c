/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	serial "github.com/allbin/serial-bridge"
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the serial adapters the bridge can open",
	Long: `List the USB serial interfaces attached to this host, keyed by the
identifier clients pass to the @ command.

Multi-interface FTDI chips (FT2232H, FT4232H) are listed once per interface
with the interface letter appended to the USB serial number.

With --all every serial port is listed, including ports without a USB serial
number, which cannot be bridged.`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		tableFormat, _ := cmd.Flags().GetBool("table")

		if all {
			ports, err := serial.ListPorts()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
				os.Exit(1)
			}
			if len(ports) == 0 {
				fmt.Println("No serial ports found")
				return
			}
			if tableFormat {
				fmt.Println(portsTable(ports).View())
			} else {
				for _, port := range ports {
					fmt.Println(port)
				}
			}
			return
		}

		devices, err := serial.ListDevices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing devices: %v\n", err)
			os.Exit(1)
		}
		if len(devices) == 0 {
			fmt.Println("No devices found")
			return
		}

		if tableFormat {
			fmt.Printf("Found %d device(s):\n\n", len(devices))
			fmt.Println(devicesTable(devices).View())
			return
		}
		for _, d := range devices {
			fmt.Printf("%s\t%s\t%s\t%s\n", d.SerialNumber, d.Type, d.Path, d.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
	devicesCmd.Flags().BoolP("all", "a", false, "List every serial port, not only bridgeable devices")
}

const (
	columnKeyID    = "id"
	columnKeyType  = "type"
	columnKeyPort  = "port"
	columnKeyDesc  = "desc"
	columnKeyClass = "class"
)

var tableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("99"))

func devicesTable(devices []serial.DeviceInfo) table.Model {
	columns := []table.Column{
		table.NewColumn(columnKeyID, "Identifier", 16),
		table.NewColumn(columnKeyType, "Type", 20),
		table.NewColumn(columnKeyPort, "Port", 16),
		table.NewColumn(columnKeyDesc, "Description", 30),
	}

	rows := make([]table.Row, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyID:   d.SerialNumber,
			columnKeyType: d.Type,
			columnKeyPort: d.Path,
			columnKeyDesc: d.Description,
		}))
	}

	return table.New(columns).
		WithRows(rows).
		HeaderStyle(tableHeaderStyle)
}

func portsTable(ports []string) table.Model {
	columns := []table.Column{
		table.NewColumn(columnKeyPort, "Port", 15),
		table.NewColumn(columnKeyClass, "Type", 20),
		table.NewColumn(columnKeyDesc, "Description", 30),
	}

	rows := make([]table.Row, 0, len(ports))
	for _, port := range ports {
		info, err := serial.GetPortInfo(port)
		if err != nil {
			rows = append(rows, table.NewRow(table.RowData{
				columnKeyPort:  port,
				columnKeyClass: "Unknown",
				columnKeyDesc:  fmt.Sprintf("Error: %v", err),
			}))
			continue
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPort:  info.Name,
			columnKeyClass: getPortType(info.Name),
			columnKeyDesc:  info.Description,
		}))
	}

	return table.New(columns).
		WithRows(rows).
		HeaderStyle(tableHeaderStyle)
}

// getPortType returns a more specific type classification for the port
func getPortType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}

// resolvePort accepts either a device identifier or a port path.
func resolvePort(arg string) (string, error) {
	if strings.HasPrefix(arg, "/") {
		return arg, nil
	}
	d, err := serial.FindDevice(arg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", arg, err)
	}
	return d.Path, nil
}
