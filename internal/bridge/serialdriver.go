package bridge

import (
	"errors"

	serial "github.com/allbin/serial-bridge"
)

// SerialDriver implements Driver on top of Linux tty devices, identifying
// devices by USB serial number.
type SerialDriver struct {
	// Options are applied when opening a port, before the profile.
	Options []serial.Option
}

var _ Driver = (*SerialDriver)(nil)

// NewSerialDriver returns a driver that opens ports exclusively.
func NewSerialDriver(opts ...serial.Option) *SerialDriver {
	return &SerialDriver{Options: append([]serial.Option{serial.WithExclusive(true)}, opts...)}
}

// Enumerate lists attached USB serial interfaces.
func (d *SerialDriver) Enumerate() ([]DeviceInfo, error) {
	devices, err := serial.ListDevices()
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, DeviceInfo{
			Description:  dev.Description,
			Type:         dev.Type,
			SerialNumber: dev.SerialNumber,
			Path:         dev.Path,
		})
	}
	return infos, nil
}

// Open resolves id to a port and opens it.
func (d *SerialDriver) Open(id string) (Device, error) {
	info, err := serial.FindDevice(id)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(info.Path, d.Options...)
	if err != nil {
		return nil, err
	}
	return &serialDevice{Port: port}, nil
}

// PortName opens and closes the device to check it is usable and returns
// its path.
func (d *SerialDriver) PortName(id string) (string, error) {
	info, err := serial.FindDevice(id)
	if err != nil {
		return "", err
	}
	port, err := serial.Open(info.Path, d.Options...)
	if err != nil {
		return "", err
	}
	_ = port.Close()
	return info.Path, nil
}

// serialDevice adapts serial.Port to Device.
type serialDevice struct {
	serial.Port
}

// Write issues one write. A write timeout is reported as a short write, the
// caller decides whether to retry the remainder.
func (d *serialDevice) Write(data []byte) (int, error) {
	n, err := d.Port.Write(data)
	if errors.Is(err, serial.ErrWriteTimeout) {
		return n, nil
	}
	return n, err
}
