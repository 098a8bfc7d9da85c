/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// attachCmd represents the attach command
var attachCmd = &cobra.Command{
	Use:   "attach <id>",
	Short: "Open a device on a running bridge and pipe it to stdio",
	Long: `Open a device on a running bridge (the @ command) and copy bytes between
the bridge session and stdin/stdout.

Without --send, stdin is forwarded until it ends; the session then stays
open for --wait so trailing device output is not lost.

With --send, the given data is written once and device output is printed
for --wait before disconnecting.

Examples:
  serial-bridge attach A50285BI
  serial-bridge attach A50285BI --send "AT+GMR" --newline --wait 2s
  serial-bridge attach FT4232XYZB --hex --send "01 03 00 00 00 0a"
  cat firmware.bin | serial-bridge attach A50285BI > reply.bin`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]

		data, _ := cmd.Flags().GetString("send")
		hexMode, _ := cmd.Flags().GetBool("hex")
		addNewline, _ := cmd.Flags().GetBool("newline")
		wait, _ := cmd.Flags().GetDuration("wait")
		sendMode := cmd.Flags().Changed("send")

		if hexMode {
			processed, err := parseHexString(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid hex data: %v\n", err)
				os.Exit(1)
			}
			data = processed
		}
		if addNewline && !hexMode {
			data += "\n"
		}

		c := bridgeClient(cmd)
		fmt.Fprintf(os.Stderr, "%s Opening %s on %s...\n", infoStyle.Render("⚡"), id, c.Addr())
		conn, err := c.Open(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("✗"), err)
			os.Exit(1)
		}
		defer conn.Close()
		fmt.Fprintf(os.Stderr, "%s Connected\n", successStyle.Render("✓"))

		var in io.Reader = os.Stdin
		if sendMode {
			in = strings.NewReader(data)
		}
		if err := pipe(conn, in, os.Stdout, wait); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("✗"), err)
			os.Exit(1)
		}
	},
}

func init() {
	addBridgeFlags(attachCmd)
	rootCmd.AddCommand(attachCmd)

	attachCmd.Flags().StringP("send", "s", "", "Send this data instead of reading stdin")
	attachCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	attachCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	attachCmd.Flags().DurationP("wait", "w", time.Second, "Keep reading device output this long after input ends")
}

// pipe copies in to conn and conn to out. Once in is exhausted, output is
// still copied for wait before the session is closed. It returns early
// when the bridge closes the session.
func pipe(conn net.Conn, in io.Reader, out io.Writer, wait time.Duration) error {
	recvDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, conn)
		recvDone <- err
	}()

	sendDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(conn, in)
		sendDone <- err
	}()

	select {
	case err := <-recvDone:
		return closedErr(err)
	case err := <-sendDone:
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case err := <-recvDone:
		return closedErr(err)
	case <-timer.C:
		return nil
	}
}

func closedErr(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("receive: %w", err)
}

func parseHexString(hexStr string) (string, error) {
	// Remove common hex prefixes and whitespace
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")

	if len(hexStr)%2 != 0 {
		return "", fmt.Errorf("hex string must have even length")
	}

	var result strings.Builder
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		var b byte
		if _, err := fmt.Sscanf(hexByte, "%x", &b); err != nil {
			return "", fmt.Errorf("invalid hex byte '%s': %v", hexByte, err)
		}
		result.WriteByte(b)
	}

	return result.String(), nil
}
