// Package serial provides Linux serial port access and USB adapter discovery
// for the serial bridge.
//
// Ports are opened non-blocking and programmed through termios2, so
// non-standard line rates such as 1250000 baud work on FTDI adapters.
//
// # Basic Usage
//
// Open a serial port with default configuration (115200 8N1, no flow control):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("Hello"))
//	buffer := make([]byte, 256)
//	n, err = port.Read(buffer)
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(1250000),
//	    serial.WithStopBits(2),
//	    serial.WithParity(serial.ParityOdd),
//	    serial.WithReadTimeout(100*time.Millisecond),
//	    serial.WithWriteTimeout(8*time.Second),
//	    serial.WithInitialDTR(true),
//	)
//
// Settings can also be changed on an open port (SetBaudRate, SetFraming,
// SetFlowControl, SetTimeouts); each call reprograms the line immediately.
//
// # Device Discovery
//
// ListDevices returns USB serial interfaces keyed by their serial number.
// Dual and quad FTDI chips expose one entry per interface with the
// interface letter appended (FT123456A, FT123456B):
//
//	devices, err := serial.ListDevices()
//	for _, d := range devices {
//	    fmt.Printf("%s %s %s\n", d.SerialNumber, d.Type, d.Path)
//	}
//
// ListPorts and GetPortInfo give the raw port list and sysfs USB metadata.
//
// # USB Device Management
//
// Reset hung USB devices:
//
//	err := serial.ResetUSBDevice(ctx, "/dev/ttyUSB0")
//	err = serial.ResetUSBDeviceBySerial(ctx, "FT123456A")
//
// Requires usbreset utility from usbutils package and root/sudo permissions.
//
// # Error Handling
//
// Errors wrap sentinel values; use errors.Is:
//
//	if errors.Is(err, serial.ErrDeviceInUse) {
//	    // another process holds the port
//	}
package serial
