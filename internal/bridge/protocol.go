package bridge

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"
)

// Wire strings of the management protocol.
const (
	DiscoveryHeader  = "IQPs found:"
	ListHeader       = "Open ports:"
	OpenedPrefix     = "OK: Opened:"
	OpenFailedLine   = "ERR: Failed to open FTDI device"
	PortUnopenable   = "!"
	PortUnknown      = "?"
	maxCommandLen    = 1024
	commandDiscovery = '?'
	commandOpen      = '@'
	commandList      = '*'
	commandShutdown  = '!'
)

type commandKind int

const (
	cmdEmpty commandKind = iota
	cmdDiscovery
	cmdOpen
	cmdList
	cmdShutdown
	cmdUnknown
)

func (k commandKind) String() string {
	switch k {
	case cmdEmpty:
		return "empty"
	case cmdDiscovery:
		return "discovery"
	case cmdOpen:
		return "open"
	case cmdList:
		return "list"
	case cmdShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

type command struct {
	kind commandKind
	arg  string
	line string
}

// parseCommand selects the command by the first character of line.
func parseCommand(line string) command {
	c := command{line: line}
	if line == "" {
		c.kind = cmdEmpty
		return c
	}
	switch line[0] {
	case commandDiscovery:
		c.kind = cmdDiscovery
	case commandOpen:
		c.kind = cmdOpen
		c.arg = line[1:]
	case commandList:
		c.kind = cmdList
	case commandShutdown:
		c.kind = cmdShutdown
	default:
		c.kind = cmdUnknown
	}
	return c
}

// readCommand reads one line a byte at a time so that bytes following the
// newline stay in the socket. A trailing \r is stripped. EOF before any
// byte yields an empty line; EOF after some bytes ends the line.
func readCommand(conn net.Conn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	defer conn.SetReadDeadline(time.Time{})

	var (
		line []byte
		b    [1]byte
	)
	for {
		n, err := conn.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				break
			}
			if len(line) >= maxCommandLen {
				return "", ErrLineTooLong
			}
			line = append(line, b[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSuffix(string(line), "\r"), nil
}

// discoveryField keeps a field from breaking the comma separated line.
func discoveryField(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '\n', '\r':
			return ' '
		}
		return r
	}, s)
}

// writeDiscovery writes the discovery response. portNames is indexed
// like devices.
func writeDiscovery(w io.Writer, devices []DeviceInfo, portNames []string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(DiscoveryHeader + "\n")
	for i, d := range devices {
		bw.WriteString(discoveryField(d.Description))
		bw.WriteByte(',')
		bw.WriteString(discoveryField(d.Type))
		bw.WriteByte(',')
		bw.WriteString(discoveryField(d.SerialNumber))
		bw.WriteByte(',')
		bw.WriteString(discoveryField(portNames[i]))
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

// writeList writes the list response for the given identifiers.
func writeList(w io.Writer, ids []string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(ListHeader + "\n")
	for _, id := range ids {
		bw.WriteString(id)
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func openedLine(id string) string {
	return OpenedPrefix + id + "\n"
}
