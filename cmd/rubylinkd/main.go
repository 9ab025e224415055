// Command rubylinkd is the core radio link daemon, run on either the
// vehicle or the controller per the -role flag. It loads a Model,
// assembles a stack.RadioStack, opens each configured interface, and
// runs until signaled.
//
// Grounded on the teacher's cmd/direwolf/main.go's overall flag-parse-
// then-initialize-then-run shape, translated from its single cgo-heavy
// binary into a flag-selected role over the pure-Go core built here.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/stack"
)

const defaultSerialBaud = 57600

func main() {
	role := pflag.StringP("role", "R", "vehicle", "Run as 'vehicle' or 'controller'.")
	configPath := pflag.StringP("config-file", "c", "model.yaml", "Model configuration file (YAML).")
	logLevelStr := pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	packetLogPath := pflag.StringP("packet-log", "p", "", "Path (file, or directory with --packet-log-daily) for the CSV packet log. Empty disables it.")
	packetLogDaily := pflag.BoolP("packet-log-daily", "d", false, "Treat --packet-log as a directory of daily-named CSV files.")
	metricsAddr := pflag.StringP("metrics-addr", "m", "", "Address to serve Prometheus metrics on (e.g. :9110). Empty disables.")
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "rubylinkd - the Ruby radio link core daemon.")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	if *role != "vehicle" && *role != "controller" {
		fmt.Fprintf(os.Stderr, "rubylinkd: --role must be 'vehicle' or 'controller', got %q\n", *role)
		os.Exit(1)
	}

	model, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rubylinkd: loading model %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	logLevel, err := log.ParseLevel(*logLevelStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rubylinkd: invalid --log-level %q: %v\n", *logLevelStr, err)
		os.Exit(1)
	}

	runID := config.NewRunID()
	rs, err := stack.New(model, runID, logLevel, *packetLogPath, *packetLogDaily)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rubylinkd: building stack: %v\n", err)
		os.Exit(1)
	}

	rs.Log.Infof("rubylinkd starting: role=%s run=%s interfaces=%d", *role, runID, len(model.RadioInterfaces))

	for _, iface := range model.RadioInterfaces {
		if iface.Disabled {
			continue
		}
		if iface.Driver == config.DriverSerialSiK {
			if err := openSerialInterface(rs, iface); err != nil {
				rs.Log.Errorf("rubylinkd: %v", err)
			}
			continue
		}
		if err := openWifiInterface(rs, iface); err != nil {
			rs.Log.Errorf("rubylinkd: %v", err)
		}
	}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(rs.Metrics)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				rs.Log.Errorf("rubylinkd: metrics server: %v", err)
			}
		}()
		rs.Log.Infof("rubylinkd: serving metrics on %s", *metricsAddr)
	}

	rs.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	rs.Log.Infof("rubylinkd: shutting down")
	if err := rs.Close(); err != nil {
		rs.Log.Errorf("rubylinkd: shutdown: %v", err)
	}
}

// openWifiInterface binds an AF_PACKET raw socket to the adapter in
// monitor mode and wires it into the stack.
func openWifiInterface(rs *stack.RadioStack, iface config.RadioInterfaceParams) error {
	netIface, err := net.InterfaceByName(iface.Name)
	if err != nil {
		return fmt.Errorf("looking up net interface %s: %w", iface.Name, err)
	}

	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return fmt.Errorf("opening AF_PACKET socket on %s: %w", iface.Name, err)
	}

	addr := &unix.SockaddrLinklayer{Protocol: proto, Ifindex: netIface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("binding AF_PACKET socket to %s: %w", iface.Name, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setting %s non-blocking: %w", iface.Name, err)
	}

	rs.AddWifiInterface(iface.Index, fd)
	rs.Log.Infof("rubylinkd: wifi interface %d (%s) attached", iface.Index, iface.Name)
	return nil
}

// openSerialInterface opens the SiK radio's serial device and wires it
// into the stack.
func openSerialInterface(rs *stack.RadioStack, iface config.RadioInterfaceParams) error {
	t, err := term.Open(iface.Name, term.RawMode)
	if err != nil {
		return fmt.Errorf("opening serial device %s: %w", iface.Name, err)
	}
	if err := t.SetSpeed(defaultSerialBaud); err != nil {
		t.Close()
		return fmt.Errorf("setting serial speed on %s: %w", iface.Name, err)
	}

	rs.AddSerialInterface(iface.Index, t)
	rs.Log.Infof("rubylinkd: serial interface %d (%s) attached", iface.Index, iface.Name)
	return nil
}

// htons swaps the two bytes of a 16-bit value, which converts it to
// network byte order on a little-endian host (on a big-endian host the
// result is byte-swapped), matching the AF_PACKET socket()'s protocol
// argument convention.
func htons(v int) uint16 {
	return uint16(v)<<8&0xff00 | uint16(v)>>8
}
