/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	serial "github.com/allbin/serial-bridge"
)

// lineCmd represents the line command
var lineCmd = &cobra.Command{
	Use:   "line <id|port> [dtr|rts] [state]",
	Short: "Show or set the DTR and RTS output lines",
	Long: `Show or set the modem control outputs of a device that is not bridged.

With only a device, the current DTR and RTS states are shown. With a signal
name the state of that signal is shown, and with a state it is set.

Examples:
  serial-bridge line A50285BI
  serial-bridge line A50285BI dtr high
  serial-bridge line /dev/ttyUSB0 rts off

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.RangeArgs(1, 3),
	Run: func(cmd *cobra.Command, args []string) {
		portPath, err := resolvePort(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var (
			signal string
			state  bool
			set    bool
		)
		if len(args) > 1 {
			signal = strings.ToLower(args[1])
			if signal != "dtr" && signal != "rts" {
				fmt.Fprintf(os.Stderr, "Error: unknown signal %q (valid: dtr, rts)\n", args[1])
				os.Exit(1)
			}
		}
		if len(args) > 2 {
			state, err = parseSignalState(args[2])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			set = true
		}

		port, err := serial.Open(portPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening port: %v\n", err)
			os.Exit(1)
		}
		defer port.Close()

		if set {
			if signal == "dtr" {
				err = port.SetDTR(state)
			} else {
				err = port.SetRTS(state)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error setting %s: %v\n", strings.ToUpper(signal), err)
				os.Exit(1)
			}
		}

		dtr, dtrErr := port.GetDTR()
		rts, rtsErr := port.GetRTS()

		if signal == "" {
			fmt.Printf("Modem outputs for %s:\n\n", portPath)
			fmt.Printf("  DTR (Data Terminal Ready): %s\n", signalOrError(dtr, dtrErr))
			fmt.Printf("  RTS (Request To Send):     %s\n", signalOrError(rts, rtsErr))
			return
		}

		current, currentErr := dtr, dtrErr
		if signal == "rts" {
			current, currentErr = rts, rtsErr
		}
		if currentErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not verify %s state: %v\n", strings.ToUpper(signal), currentErr)
		}
		verb := "is"
		if set {
			verb = "set to"
		}
		fmt.Printf("%s %s %s on %s\n", strings.ToUpper(signal), verb, formatSignalState(current), portPath)
	},
}

func init() {
	rootCmd.AddCommand(lineCmd)
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

func signalOrError(state bool, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return formatSignalState(state)
}
