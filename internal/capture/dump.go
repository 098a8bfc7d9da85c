package capture

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// Dump writes a human-readable rendering of a chunk: a header line with the
// offset from start, direction and length, followed by a hex/ASCII dump.
func Dump(w io.Writer, chunk Chunk, start time.Time) error {
	offset := chunk.Timestamp.Sub(start)
	header := fmt.Sprintf("+%s %s %d bytes", offset.Round(time.Microsecond), chunk.Direction, len(chunk.Data))
	if chunk.Short {
		header += fmt.Sprintf(" (short, %d accepted)", chunk.Accepted)
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	_, err := io.WriteString(w, hex.Dump(chunk.Data))
	return err
}
