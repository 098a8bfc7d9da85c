package serial

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestGetBaudRate(t *testing.T) {
	tests := []struct {
		input    int
		hasError bool
	}{
		{115200, false},
		{9600, false},
		{57600, false},
		{1000000, false},
		{1250000, true}, // programmed through BOTHER
		{123456, true},
	}

	for _, test := range tests {
		result, err := getBaudRate(test.input)
		if test.hasError {
			if err != ErrInvalidBaudRate {
				t.Errorf("Expected ErrInvalidBaudRate for %d, got %v", test.input, err)
			}
		} else {
			if err != nil {
				t.Errorf("Unexpected error for baud rate %d: %v", test.input, err)
			}
			if result == 0 {
				t.Errorf("Got zero result for valid baud rate %d", test.input)
			}
		}
	}
}

func TestParseParity(t *testing.T) {
	tests := []struct {
		input    string
		expected Parity
		wantErr  bool
	}{
		{"none", ParityNone, false},
		{"", ParityNone, false},
		{"odd", ParityOdd, false},
		{"O", ParityOdd, false},
		{"even", ParityEven, false},
		{"mark", ParityMark, false},
		{"space", ParitySpace, false},
		{"sideways", ParityNone, true},
	}

	for _, tt := range tests {
		got, err := ParseParity(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseParity(%q) error = %v, want ErrInvalidConfig", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("ParseParity(%q) = %v, %v, want %v", tt.input, got, err, tt.expected)
		}
		if got.String() == "unknown" {
			t.Errorf("Parity %d has no name", got)
		}
	}
}

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := Open("/dev/nonexistent")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestOpenInvalidOption(t *testing.T) {
	_, err := Open("/dev/nonexistent", WithBaudRate(-1))
	if err != ErrInvalidBaudRate {
		t.Errorf("Expected ErrInvalidBaudRate before touching the device, got %v", err)
	}
}

func TestMapOpenError(t *testing.T) {
	tests := []struct {
		errno error
		want  error
	}{
		{unix.ENOENT, ErrDeviceNotFound},
		{unix.ENXIO, ErrDeviceNotFound},
		{unix.EACCES, ErrPermissionDenied},
		{unix.EBUSY, ErrDeviceInUse},
	}
	for _, tt := range tests {
		if err := mapOpenError("/dev/ttyUSB0", tt.errno); !errors.Is(err, tt.want) {
			t.Errorf("mapOpenError(%v) = %v, want %v", tt.errno, err, tt.want)
		}
	}

	err := mapOpenError("/dev/ttyUSB0", unix.EIO)
	if !errors.Is(err, unix.EIO) {
		t.Errorf("mapOpenError(EIO) should wrap the errno, got %v", err)
	}
}

func TestClosedPortOperations(t *testing.T) {
	p := &port{fd: -1, closed: true, config: DefaultConfig()}

	if _, err := p.Read(make([]byte, 8)); err != ErrPortClosed {
		t.Errorf("Read: expected ErrPortClosed, got %v", err)
	}
	if _, err := p.Write([]byte("x")); err != ErrPortClosed {
		t.Errorf("Write: expected ErrPortClosed, got %v", err)
	}
	if _, err := p.InputWaiting(); err != ErrPortClosed {
		t.Errorf("InputWaiting: expected ErrPortClosed, got %v", err)
	}
	if err := p.SetBaudRate(9600); err != ErrPortClosed {
		t.Errorf("SetBaudRate: expected ErrPortClosed, got %v", err)
	}
	if err := p.SetInTransferSize(4096); err != ErrPortClosed {
		t.Errorf("SetInTransferSize: expected ErrPortClosed, got %v", err)
	}
	if err := p.SetDTR(true); err != ErrPortClosed {
		t.Errorf("SetDTR: expected ErrPortClosed, got %v", err)
	}
	if _, err := p.GetRTS(); err != ErrPortClosed {
		t.Errorf("GetRTS: expected ErrPortClosed, got %v", err)
	}
	if err := p.Close(); err != ErrPortClosed {
		t.Errorf("Close: expected ErrPortClosed, got %v", err)
	}
	if fd := p.Fd(); fd != -1 {
		t.Errorf("Fd: expected -1 after close, got %d", fd)
	}
}

func TestWaitFd(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	ready, err := waitFd(fds[0], unix.POLLIN, 10*time.Millisecond)
	if err != nil || ready {
		t.Fatalf("empty pipe: ready=%v err=%v", ready, err)
	}

	if _, err := unix.Write(fds[1], []byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	ready, err = waitFd(fds[0], unix.POLLIN, time.Second)
	if err != nil || !ready {
		t.Fatalf("filled pipe: ready=%v err=%v", ready, err)
	}
}

func TestPortReadOnPipe(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[1])

	config := DefaultConfig()
	config.ReadTimeout = 100 * time.Millisecond
	p := &port{fd: fds[0], config: config}
	defer p.Close()

	buf := make([]byte, 16)
	n, err := p.Read(buf)
	if err != nil || n != 0 {
		t.Fatalf("Read on empty pipe = %d, %v; want 0, nil", n, err)
	}

	if _, err := unix.Write(fds[1], []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err = p.Read(buf)
	if err != nil || string(buf[:n]) != "ping" {
		t.Fatalf("Read = %q, %v; want ping", buf[:n], err)
	}
}

func TestPortWriteOnPipe(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])

	config := DefaultConfig()
	config.WriteTimeout = 50 * time.Millisecond
	p := &port{fd: fds[1], config: config}
	defer p.Close()

	n, err := p.Write([]byte("pong"))
	if err != nil || n != 4 {
		t.Fatalf("Write = %d, %v; want 4, nil", n, err)
	}

	// Fill the pipe so the next write times out with a partial count
	big := make([]byte, 1<<20)
	n, err = p.Write(big)
	if !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("expected ErrWriteTimeout, got %v", err)
	}
	if n <= 0 || n >= len(big) {
		t.Errorf("expected partial write, got %d", n)
	}
}

func TestStringers(t *testing.T) {
	if FlowControlNone.String() != "none" || FlowControlRTSCTS.String() != "rtscts" {
		t.Error("unexpected FlowControl names")
	}
	if FlowControl(9).String() != "unknown" {
		t.Error("expected unknown flow control name")
	}
	if Parity(9).String() != "unknown" {
		t.Error("expected unknown parity name")
	}
}
