package bridge

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	serial "github.com/allbin/serial-bridge"
)

// DeviceInfo is one enumerable device as reported by the driver.
type DeviceInfo struct {
	Description  string
	Type         string
	SerialNumber string
	Path         string
}

// Driver enumerates and opens serial devices by identifier.
type Driver interface {
	Enumerate() ([]DeviceInfo, error)
	Open(id string) (Device, error)
	// PortName probes the device and returns its port path. An error means
	// the device could not be opened; an empty name means the path is unknown.
	PortName(id string) (string, error)
}

// Device is an exclusively opened serial device.
type Device interface {
	SetBaudRate(rate int) error
	SetFraming(dataBits, stopBits int, parity serial.Parity) error
	SetFlowControl(fc serial.FlowControl) error
	SetTimeouts(read, write time.Duration) error
	SetInTransferSize(size int) error
	SetDTR(state bool) error

	InputWaiting() (int, error)
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	Close() error
}

// pollable is implemented by devices backed by a file descriptor that
// poll(2) can wait on. A negative fd means not pollable.
type pollable interface {
	Fd() int
}

// Profile is the line configuration applied to every opened device.
type Profile struct {
	BaudRate       int
	DataBits       int
	StopBits       int
	Parity         serial.Parity
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	InTransferSize int
	DTR            bool
}

// DefaultProfile returns 1250000 baud 8O2 without flow control,
// 100ms read and 8s write timeouts, 64KiB transfers and DTR asserted.
func DefaultProfile() Profile {
	return Profile{
		BaudRate:       1250000,
		DataBits:       8,
		StopBits:       2,
		Parity:         serial.ParityOdd,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   8000 * time.Millisecond,
		InTransferSize: 65536,
		DTR:            true,
	}
}

// Apply programs every step of the profile, continuing past failures, and
// returns all failures combined.
func (p Profile) Apply(dev Device) error {
	var err error
	err = multierr.Append(err, step("baud rate", dev.SetBaudRate(p.BaudRate)))
	err = multierr.Append(err, step("framing", dev.SetFraming(p.DataBits, p.StopBits, p.Parity)))
	err = multierr.Append(err, step("flow control", dev.SetFlowControl(serial.FlowControlNone)))
	err = multierr.Append(err, step("timeouts", dev.SetTimeouts(p.ReadTimeout, p.WriteTimeout)))
	err = multierr.Append(err, step("transfer size", dev.SetInTransferSize(p.InTransferSize)))
	err = multierr.Append(err, step("dtr", dev.SetDTR(p.DTR)))
	return err
}

func step(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("set %s: %w", name, err)
}

// openDevice opens id and applies the profile. On any failure the handle,
// if obtained, is closed and the error wraps ErrOpenFailed.
func openDevice(driver Driver, id string, profile Profile) (Device, error) {
	dev, err := driver.Open(id)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpenFailed, id, err)
	}
	if err := profile.Apply(dev); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("%w %s: %w", ErrOpenFailed, id, err)
	}
	return dev, nil
}
