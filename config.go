package serial

import "time"

// Config holds the configuration for a serial port
type Config struct {
	BaudRate       int
	DataBits       int
	StopBits       int
	Parity         Parity
	FlowControl    FlowControl
	ReadTimeout    time.Duration // VTIME, must be a multiple of 100ms
	WriteTimeout   time.Duration // 0 blocks until the kernel accepts the data
	InTransferSize int           // read chunk hint, FTDI USB transfer size
	InitialDTR     *bool
	InitialRTS     *bool
	Exclusive      bool // TIOCEXCL after open
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

const (
	maxReadTimeout    = 25500 * time.Millisecond
	minInTransferSize = 64
	maxInTransferSize = 65536
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaudRate:       115200,
		DataBits:       8,
		StopBits:       1,
		Parity:         ParityNone,
		FlowControl:    FlowControlNone,
		ReadTimeout:    2500 * time.Millisecond,
		WriteTimeout:   0,
		InTransferSize: 4096,
		Exclusive:      true,
	}
}

// WithBaudRate sets the baud rate. Non-standard rates are accepted and
// programmed through termios2 (BOTHER).
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if rate <= 0 || rate > 12000000 {
			return ErrInvalidBaudRate
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if parity < ParityNone || parity > ParitySpace {
			return ErrInvalidConfig
		}
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		if fc != FlowControlNone && fc != FlowControlRTSCTS {
			return ErrInvalidConfig
		}
		c.FlowControl = fc
		return nil
	}
}

// WithReadTimeout sets the read timeout. The termios VTIME field counts
// tenths of a second, so the timeout must be a multiple of 100ms up to 25.5s.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 || timeout > maxReadTimeout || timeout%(100*time.Millisecond) != 0 {
			return ErrInvalidConfig
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithWriteTimeout bounds how long Write waits for the port to accept data.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 {
			return ErrInvalidConfig
		}
		c.WriteTimeout = timeout
		return nil
	}
}

// WithInTransferSize sets the inbound transfer size hint (64..65536, multiple of 64)
func WithInTransferSize(size int) Option {
	return func(c *Config) error {
		if size < minInTransferSize || size > maxInTransferSize || size%64 != 0 {
			return ErrInvalidConfig
		}
		c.InTransferSize = size
		return nil
	}
}

// WithInitialDTR sets the DTR line right after open
func WithInitialDTR(state bool) Option {
	return func(c *Config) error {
		c.InitialDTR = &state
		return nil
	}
}

// WithInitialRTS sets the RTS line right after open
func WithInitialRTS(state bool) Option {
	return func(c *Config) error {
		c.InitialRTS = &state
		return nil
	}
}

// WithExclusive controls whether the port is locked with TIOCEXCL
func WithExclusive(exclusive bool) Option {
	return func(c *Config) error {
		c.Exclusive = exclusive
		return nil
	}
}

// readTimeoutTenths converts ReadTimeout into the VTIME value
func (c Config) readTimeoutTenths() uint8 {
	return uint8(c.ReadTimeout / (100 * time.Millisecond))
}
