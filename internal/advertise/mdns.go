// Package advertise announces the management port over DNS-SD so clients on
// the local network can find the bridge without knowing its address.
package advertise

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"go.uber.org/zap"
)

const (
	// ServiceType is the DNS-SD service type of the management protocol.
	ServiceType = "_serial-bridge._tcp"
	// Domain is the DNS-SD domain.
	Domain = "local."
	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// Config describes one advertisement.
type Config struct {
	Instance  string
	Port      int
	Interface string
	TTL       time.Duration
	Version   string
}

// Advertiser registers the management service with zeroconf.
type Advertiser struct {
	logger *zap.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

// New creates an idle advertiser.
func New(logger *zap.Logger) *Advertiser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advertiser{logger: logger.Named("mdns")}
}

// Start registers the service, replacing any earlier registration.
func (a *Advertiser) Start(c Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if c.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(c.TTL.Seconds())))
	}

	ifaces, err := interfaces(c.Interface)
	if err != nil {
		return err
	}

	instance := InstanceName(c.Instance)
	server, err := zeroconf.Register(instance, ServiceType, Domain, c.Port, TXTRecords(c), ifaces, opts...)
	if err != nil {
		return fmt.Errorf("register %s service: %w", ServiceType, err)
	}
	a.server = server

	a.logger.Info("advertising",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", c.Port))
	return nil
}

// Shutdown withdraws the advertisement. It is safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("advertisement withdrawn")
}

// InstanceName returns name, or the host name when empty, cut to the DNS
// label limit.
func InstanceName(name string) string {
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "serial-bridge"
		}
		name = host
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// TXTRecords builds the key=value strings published with the service.
func TXTRecords(c Config) []string {
	txt := []string{"proto=1"}
	if c.Version != "" {
		txt = append(txt, "version="+c.Version)
	}
	return txt
}

// interfaces resolves the configured interface; nil means all interfaces.
func interfaces(name string) ([]net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("mdns interface %q: %w", name, err)
	}
	return []net.Interface{*iface}, nil
}
