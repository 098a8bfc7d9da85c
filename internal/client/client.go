// Package client speaks the line-based management protocol of a running
// bridge.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/allbin/serial-bridge/internal/bridge"
)

var (
	// ErrOpenRefused is returned when the bridge answers an open with the
	// failure line.
	ErrOpenRefused = errors.New("bridge refused open")
	// ErrUnexpectedResponse is returned for responses that do not follow
	// the protocol.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// DefaultTimeout bounds a whole request when the context has no deadline.
const DefaultTimeout = 10 * time.Second

// Device is one line of a discovery response.
type Device struct {
	Description  string
	Type         string
	SerialNumber string
	// Port is the device path, "!" when the bridge could not open it and
	// "?" when the path is unknown.
	Port string
}

// Openable reports whether the bridge managed to probe the device.
func (d Device) Openable() bool {
	return d.Port != bridge.PortUnopenable
}

// Client issues management commands to one bridge address.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// New returns a client for addr. A zero timeout selects DefaultTimeout.
func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{addr: addr, timeout: timeout}
}

// Addr returns the bridge address.
func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) dial(ctx context.Context, line string) (net.Conn, *bufio.Reader, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, nil, err
	}

	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("send command: %w", err)
	}
	return conn, bufio.NewReader(conn), nil
}

// readBlock reads a header line followed by lines up to the blank
// terminator.
func readBlock(r *bufio.Reader, header string) ([]string, error) {
	first, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.TrimRight(first, "\r\n") != header {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedResponse, first)
	}

	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: missing terminator: %w", ErrUnexpectedResponse, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// Discover asks the bridge to enumerate its devices.
func (c *Client) Discover(ctx context.Context) ([]Device, error) {
	conn, r, err := c.dial(ctx, "?")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	lines, err := readBlock(r, bridge.DiscoveryHeader)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(lines))
	for _, line := range lines {
		f := strings.Split(line, ",")
		if len(f) != 4 {
			return nil, fmt.Errorf("%w: discovery line %q", ErrUnexpectedResponse, line)
		}
		devices = append(devices, Device{Description: f[0], Type: f[1], SerialNumber: f[2], Port: f[3]})
	}
	return devices, nil
}

// List returns the identifiers with a running session.
func (c *Client) List(ctx context.Context) ([]string, error) {
	conn, r, err := c.dial(ctx, "*")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return readBlock(r, bridge.ListHeader)
}

// Shutdown asks the bridge to stop. The bridge sends no response, so
// success only means the command was delivered.
func (c *Client) Shutdown(ctx context.Context) error {
	conn, r, err := c.dial(ctx, "!")
	if err != nil {
		return err
	}
	defer conn.Close()

	// wait for the close so the command is known to be consumed
	if _, err := r.ReadByte(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("await close: %w", err)
	}
	return nil
}

// Open starts a bridge session for id and returns the raw stream. The
// caller owns the returned connection.
func (c *Client) Open(ctx context.Context, id string) (net.Conn, error) {
	conn, r, err := c.dial(ctx, "@"+id)
	if err != nil {
		return nil, err
	}

	line, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read open response: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")

	switch {
	case line == bridge.OpenedPrefix+id:
	case line == bridge.OpenFailedLine:
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenRefused, id)
	default:
		conn.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedResponse, line)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, err
	}
	return &streamConn{Conn: conn, r: r}, nil
}

// streamConn serves bytes already buffered past the open response first.
type streamConn struct {
	net.Conn
	r *bufio.Reader
}

func (s *streamConn) Read(p []byte) (int, error) {
	return s.r.Read(p)
}
