// Package config provides YAML-based configuration loading for serial-bridge.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	serial "github.com/allbin/serial-bridge"
)

// DefaultPort is the management port used when none is configured.
const DefaultPort = 12345

// Config is the root application configuration.
type Config struct {
	// Listen is the management listener address
	Listen ListenConfig `mapstructure:"listen" yaml:"listen"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Bridge controls dispatcher and session behavior
	Bridge BridgeConfig `mapstructure:"bridge" yaml:"bridge"`

	// Capture enables per-session traffic capture files
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`

	// MDNS controls service advertisement
	MDNS MDNSConfig `mapstructure:"mdns" yaml:"mdns"`
}

// ListenConfig defines the management listener.
type ListenConfig struct {
	// Address to bind, empty means all interfaces
	Address string `mapstructure:"address" yaml:"address"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format: console or json
	Format string `mapstructure:"format" yaml:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs" yaml:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development" yaml:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable" yaml:"enable"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BridgeConfig controls the command dispatcher and bridge sessions.
type BridgeConfig struct {
	// DuplicateOpen: replace, reject or takeover
	DuplicateOpen string `mapstructure:"duplicate_open" yaml:"duplicate_open"`
	// PruneClosed removes registry entries when their session ends
	PruneClosed bool `mapstructure:"prune_closed" yaml:"prune_closed"`
	// EmptyLineShutdown stops the service on an empty command line
	EmptyLineShutdown bool `mapstructure:"empty_line_shutdown" yaml:"empty_line_shutdown"`
	// AllowRemoteShutdown enables the "!" command
	AllowRemoteShutdown bool `mapstructure:"allow_remote_shutdown" yaml:"allow_remote_shutdown"`

	CommandTimeout   time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	TakeoverTimeout  time.Duration `mapstructure:"takeover_timeout" yaml:"takeover_timeout"`
	BufferSize       int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	DeviceWriteRetry bool          `mapstructure:"device_write_retry" yaml:"device_write_retry"`

	Profile ProfileConfig `mapstructure:"profile" yaml:"profile"`
}

// ProfileConfig is the line configuration applied to every opened device.
type ProfileConfig struct {
	BaudRate       int           `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits       int           `mapstructure:"data_bits" yaml:"data_bits"`
	StopBits       int           `mapstructure:"stop_bits" yaml:"stop_bits"`
	Parity         string        `mapstructure:"parity" yaml:"parity"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	InTransferSize int           `mapstructure:"in_transfer_size" yaml:"in_transfer_size"`
	DTR            bool          `mapstructure:"dtr" yaml:"dtr"`
}

// CaptureConfig enables traffic capture. An empty Dir disables it.
type CaptureConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MDNSConfig controls DNS-SD advertisement of the management port.
type MDNSConfig struct {
	Enable    bool          `mapstructure:"enable" yaml:"enable"`
	Instance  string        `mapstructure:"instance" yaml:"instance"`
	Interface string        `mapstructure:"interface" yaml:"interface"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: DefaultPort},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/serial-bridge.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Bridge: BridgeConfig{
			DuplicateOpen:       "replace",
			PruneClosed:         false,
			EmptyLineShutdown:   true,
			AllowRemoteShutdown: true,
			CommandTimeout:      30 * time.Second,
			PollInterval:        5 * time.Millisecond,
			TakeoverTimeout:     10 * time.Second,
			BufferSize:          1 << 20,
			Profile: ProfileConfig{
				BaudRate:       1250000,
				DataBits:       8,
				StopBits:       2,
				Parity:         "odd",
				ReadTimeout:    100 * time.Millisecond,
				WriteTimeout:   8000 * time.Millisecond,
				InTransferSize: 65536,
				DTR:            true,
			},
		},
		MDNS: MDNSConfig{
			Enable:   false,
			Instance: "serial-bridge",
			TTL:      120 * time.Second,
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix SERIAL_BRIDGE and `.`/`-` are
// replaced with `_`. Example: SERIAL_BRIDGE_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SERIAL_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("listen.address", cfg.Listen.Address)
	v.SetDefault("listen.port", cfg.Listen.Port)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("bridge.duplicate_open", cfg.Bridge.DuplicateOpen)
	v.SetDefault("bridge.prune_closed", cfg.Bridge.PruneClosed)
	v.SetDefault("bridge.empty_line_shutdown", cfg.Bridge.EmptyLineShutdown)
	v.SetDefault("bridge.allow_remote_shutdown", cfg.Bridge.AllowRemoteShutdown)
	v.SetDefault("bridge.command_timeout", cfg.Bridge.CommandTimeout)
	v.SetDefault("bridge.poll_interval", cfg.Bridge.PollInterval)
	v.SetDefault("bridge.takeover_timeout", cfg.Bridge.TakeoverTimeout)
	v.SetDefault("bridge.buffer_size", cfg.Bridge.BufferSize)
	v.SetDefault("bridge.device_write_retry", cfg.Bridge.DeviceWriteRetry)
	v.SetDefault("bridge.profile.baud_rate", cfg.Bridge.Profile.BaudRate)
	v.SetDefault("bridge.profile.data_bits", cfg.Bridge.Profile.DataBits)
	v.SetDefault("bridge.profile.stop_bits", cfg.Bridge.Profile.StopBits)
	v.SetDefault("bridge.profile.parity", cfg.Bridge.Profile.Parity)
	v.SetDefault("bridge.profile.read_timeout", cfg.Bridge.Profile.ReadTimeout)
	v.SetDefault("bridge.profile.write_timeout", cfg.Bridge.Profile.WriteTimeout)
	v.SetDefault("bridge.profile.in_transfer_size", cfg.Bridge.Profile.InTransferSize)
	v.SetDefault("bridge.profile.dtr", cfg.Bridge.Profile.DTR)
	v.SetDefault("capture.dir", cfg.Capture.Dir)
	v.SetDefault("mdns.enable", cfg.MDNS.Enable)
	v.SetDefault("mdns.instance", cfg.MDNS.Instance)
	v.SetDefault("mdns.interface", cfg.MDNS.Interface)
	v.SetDefault("mdns.ttl", cfg.MDNS.TTL)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("SERIAL_BRIDGE_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("serial-bridge")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".serial-bridge"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the configuration and reports every invalid field.
func (c *Config) Validate() error {
	var err error

	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		err = multierr.Append(err, fmt.Errorf("invalid log.level: %q", c.Log.Level))
	}

	switch strings.ToLower(c.Log.Format) {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("invalid log.format: %q", c.Log.Format))
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid listen.port: %d", c.Listen.Port))
	}

	c.Bridge.DuplicateOpen = strings.ToLower(strings.TrimSpace(c.Bridge.DuplicateOpen))
	switch c.Bridge.DuplicateOpen {
	case "":
		c.Bridge.DuplicateOpen = "replace"
	case "replace", "reject", "takeover":
	default:
		err = multierr.Append(err, fmt.Errorf("invalid bridge.duplicate_open: %q", c.Bridge.DuplicateOpen))
	}

	if c.Bridge.CommandTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("bridge.command_timeout must be positive"))
	}
	if c.Bridge.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("bridge.poll_interval must be positive"))
	}
	if c.Bridge.TakeoverTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("bridge.takeover_timeout must be positive"))
	}
	if c.Bridge.BufferSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("bridge.buffer_size must be positive"))
	}

	p := c.Bridge.Profile
	if p.BaudRate <= 0 {
		err = multierr.Append(err, fmt.Errorf("bridge.profile.baud_rate must be positive"))
	}
	if p.InTransferSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("bridge.profile.in_transfer_size must be positive"))
	}
	if _, perr := serial.ParseParity(p.Parity); perr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid bridge.profile.parity: %q", p.Parity))
	}

	if c.MDNS.Enable && strings.TrimSpace(c.MDNS.Instance) == "" {
		c.MDNS.Instance = "serial-bridge"
	}
	return err
}

// Address returns the host:port the management listener binds.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Listen.Address, strconv.Itoa(c.Listen.Port))
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
