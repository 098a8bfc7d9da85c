/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	serial "github.com/allbin/serial-bridge"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <id|port>",
	Short: "Display detailed information about a serial device",
	Long: `Display detailed information about a serial device including USB metadata
and the FTDI chip type the bridge reports in discovery.

Examples:
  serial-bridge info A50285BI
  serial-bridge info FT4232XYZB
  serial-bridge info /dev/ttyUSB0`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath, err := resolvePort(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		info, err := serial.GetPortInfo(portPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting port info: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)

		if !info.IsUSB() {
			return
		}

		fmt.Println("\nUSB Device Information:")
		fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
		fmt.Printf("  Product ID:   %s\n", info.ProductID)
		fmt.Printf("  Type:         %s\n", serial.DeviceType(info.VendorID, info.ProductID))
		if info.SerialNumber != "" {
			fmt.Printf("  Serial:       %s\n", info.SerialNumber)
		}
		if info.InterfaceNumber != "" {
			fmt.Printf("  Interface:    %s\n", info.InterfaceNumber)
		}
		if info.BusNumber != "" {
			fmt.Printf("  Bus:          %s\n", info.BusNumber)
		}
		if info.DeviceNumber != "" {
			fmt.Printf("  Device:       %s\n", info.DeviceNumber)
		}
		if info.Manufacturer != "" {
			fmt.Printf("  Manufacturer: %s\n", info.Manufacturer)
		}
		if info.Product != "" {
			fmt.Printf("  Product:      %s\n", info.Product)
		}

		// the identifier clients pass to @
		devices, err := serial.ListDevices()
		if err != nil {
			return
		}
		for _, d := range devices {
			if d.Path == info.Path {
				fmt.Printf("\nBridge identifier: %s\n", d.SerialNumber)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
