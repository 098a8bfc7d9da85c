/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/serial-bridge/internal/capture"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <capture-file>",
	Short: "Decode a session capture file",
	Long: `Decode a capture file written by a bridge with capture.dir set and print
every recorded transfer as a hex dump, with its offset from the first one.

Examples:
  serial-bridge inspect captures/A50285BI-20250301T120000-6f1c2e9a-8d4b-4c0e-9f3a-2b7d5e1a0c44.cbor
  serial-bridge inspect capture.cbor --direction net->device`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		direction, _ := cmd.Flags().GetString("direction")
		if err := inspectCapture(os.Stdout, args[0], direction); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("direction", "d", "", "Only show one direction: device->net or net->device")
}

func inspectCapture(w io.Writer, path, direction string) error {
	r, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		start   time.Time
		count   int
		total   int
		shorts  int
		printed bool
	)
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("chunk %d: %w", count, err)
		}
		if count == 0 {
			start = chunk.Timestamp
			fmt.Fprintf(w, "Session %s on %s, started %s\n\n",
				chunk.SessionID, chunk.DeviceID, start.Format(time.RFC3339Nano))
			printed = true
		}
		count++

		if direction != "" && !strings.EqualFold(chunk.Direction.String(), direction) {
			continue
		}
		total += len(chunk.Data)
		if chunk.Short {
			shorts++
		}
		if err := capture.Dump(w, chunk, start); err != nil {
			return err
		}
	}

	if !printed {
		fmt.Fprintln(w, "Capture is empty")
		return nil
	}
	fmt.Fprintf(w, "\n%d chunk(s), %d byte(s) shown, %d short write(s)\n", count, total, shorts)
	return nil
}
