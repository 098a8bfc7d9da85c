/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/serial-bridge"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset <id|port>",
	Short: "Reset a USB serial device",
	Long: `Perform a USB-level reset on a serial device. This can recover adapters
that are hung or unresponsive without physically unplugging them.

The device will re-enumerate after reset, which may cause the port path
to change (e.g., /dev/ttyUSB0 might become /dev/ttyUSB1). The bridge
identifier stays the same, so clients can reopen with the same @ command.

Requirements:
- usbreset utility must be installed (from usbutils package)
- Root/sudo permissions required for USB operations

Examples:
  sudo serial-bridge reset /dev/ttyUSB0    # Reset by port path
  sudo serial-bridge reset NC7ILXW1        # Reset by identifier`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !serial.IsUSBResetAvailable() {
			fmt.Fprintln(os.Stderr, "Error: usbreset utility not available")
			fmt.Fprintln(os.Stderr, "Install with: sudo apt-get install usbutils")
			os.Exit(1)
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		target := args[0]
		var err error
		if strings.HasPrefix(target, "/") {
			fmt.Printf("Resetting USB device: %s\n", target)
			err = serial.ResetUSBDevice(ctx, target)
		} else {
			fmt.Printf("Resetting USB device with serial: %s\n", target)
			err = serial.ResetUSBDeviceBySerial(ctx, target)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, serial.ErrUSBInfoNotAvailable) {
				fmt.Fprintln(os.Stderr, "This device does not appear to be a USB device")
			}
			os.Exit(1)
		}

		fmt.Println("USB device reset successfully")
		fmt.Println("Device will re-enumerate (port path may change)")
		fmt.Println("\nUse 'serial-bridge devices --table' to see updated device list")
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Duration("timeout", 30*time.Second, "Give up if the reset has not completed in time")
}
