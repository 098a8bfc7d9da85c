/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	serial "github.com/allbin/serial-bridge"
	"github.com/allbin/serial-bridge/internal/advertise"
	"github.com/allbin/serial-bridge/internal/bridge"
	"github.com/allbin/serial-bridge/internal/config"
	"github.com/allbin/serial-bridge/internal/logging"
	"github.com/allbin/serial-bridge/internal/tui/models"
)

// Version is set at build time.
var Version = "dev"

var cfgFile string

// rootCmd runs the bridge
var rootCmd = &cobra.Command{
	Use:   "serial-bridge [port]",
	Short: "Expose FTDI serial adapters over TCP",
	Long: `Run the serial bridge: a TCP management service that lists the FTDI
adapters attached to this host and bridges any of them to a client connection.

Clients connect to the management port and send one command line:
  ?       list attached adapters
  @<id>   open adapter <id> and turn the connection into a raw byte pipe
  *       list adapters with a running bridge
  !       shut the service down

The optional positional argument is the management port (default 12345).
Port 0 binds an ephemeral port; the bound address is logged at startup.

Examples:
  serial-bridge
  serial-bridge 2000
  serial-bridge --config /etc/serial-bridge.yaml --tui`,
	Version:      Version,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		var portWarning string
		if len(args) == 1 {
			port, ok := parsePort(args[0])
			if !ok {
				portWarning = fmt.Sprintf("unparsable port %q, using %d", args[0], port)
			}
			cfg.Listen.Port = port
		}

		useTUI, _ := cmd.Flags().GetBool("tui")
		if useTUI {
			cfg.Log.Outputs = fileOutputs(cfg.Log)
		}

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		defer func() { _ = logger.Sync() }()
		if portWarning != "" {
			logger.Warn(portWarning)
		}

		return serve(cmd.Context(), cfg, logger, useTUI)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./serial-bridge.yaml)")
	rootCmd.Flags().Bool("tui", false, "Show the live session dashboard; Esc shuts the bridge down")
}

// parsePort returns the port in s, or the default port when s is not a
// valid TCP port. 0 is accepted and asks the kernel for an ephemeral port.
func parsePort(s string) (int, bool) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 0 || port > 65535 {
		return config.DefaultPort, false
	}
	return port, true
}

// fileOutputs drops terminal outputs so logs do not draw over the
// dashboard. Without a file output the rotation file is used.
func fileOutputs(c config.LogConfig) []string {
	var outs []string
	for _, out := range c.Outputs {
		switch strings.ToLower(out) {
		case "stdout", "stderr":
			continue
		}
		outs = append(outs, out)
	}
	if len(outs) == 0 {
		outs = []string{c.Rotation.Filename}
	}
	return outs
}

// bridgeOptions maps the validated configuration onto server options.
func bridgeOptions(cfg *config.Config) (bridge.Options, error) {
	b := cfg.Bridge
	parity, err := serial.ParseParity(b.Profile.Parity)
	if err != nil {
		return bridge.Options{}, err
	}
	return bridge.Options{
		Address:             cfg.Address(),
		DuplicateOpen:       bridge.DuplicatePolicy(b.DuplicateOpen),
		PruneClosed:         b.PruneClosed,
		EmptyLineShutdown:   b.EmptyLineShutdown,
		AllowRemoteShutdown: b.AllowRemoteShutdown,
		CommandTimeout:      b.CommandTimeout,
		PollInterval:        b.PollInterval,
		TakeoverTimeout:     b.TakeoverTimeout,
		BufferSize:          b.BufferSize,
		DeviceWriteRetry:    b.DeviceWriteRetry,
		Profile: bridge.Profile{
			BaudRate:       b.Profile.BaudRate,
			DataBits:       b.Profile.DataBits,
			StopBits:       b.Profile.StopBits,
			Parity:         parity,
			ReadTimeout:    b.Profile.ReadTimeout,
			WriteTimeout:   b.Profile.WriteTimeout,
			InTransferSize: b.Profile.InTransferSize,
			DTR:            b.Profile.DTR,
		},
		CaptureDir: cfg.Capture.Dir,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, useTUI bool) error {
	opts, err := bridgeOptions(cfg)
	if err != nil {
		return err
	}

	srv := bridge.NewServer(bridge.NewSerialDriver(), opts, logger)
	if err := srv.Listen(); err != nil {
		return err
	}

	if cfg.MDNS.Enable {
		adv := advertise.New(logger)
		err := adv.Start(advertise.Config{
			Instance:  cfg.MDNS.Instance,
			Port:      srv.Addr().(*net.TCPAddr).Port,
			Interface: cfg.MDNS.Interface,
			TTL:       cfg.MDNS.TTL,
			Version:   Version,
		})
		if err != nil {
			logger.Warn("mdns advertisement disabled", zap.Error(err))
		} else {
			srv.RegisterOnShutdown(adv.Shutdown)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !useTUI {
		return srv.Run(ctx)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	p := tea.NewProgram(models.NewDashboard(srv, srv.Addr().String(), opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		logger.Error("dashboard failed", zap.Error(err))
	}

	// the dashboard may exit without a shutdown request (signal, error)
	srv.Shutdown()
	return <-errc
}
