// Package stack wires every collaborator package into one RadioStack
// value, constructed once by a cmd/ main, per spec.md §9's note that
// implementers should "package these as an explicit RadioStack value
// constructed once in main" rather than relying on package-level
// globals the way the teacher's g_pCurrentModel/g_SM_RadioStats did.
package stack

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/rubyfpv/radio-link/internal/adaptive"
	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/ifacepower"
	"github.com/rubyfpv/radio-link/internal/metrics"
	"github.com/rubyfpv/radio-link/internal/radiostats"
	"github.com/rubyfpv/radio-link/internal/relay"
	"github.com/rubyfpv/radio-link/internal/rigctl"
	"github.com/rubyfpv/radio-link/internal/rlog"
	"github.com/rubyfpv/radio-link/internal/rxdriver"
	"github.com/rubyfpv/radio-link/internal/rxengine"
	"github.com/rubyfpv/radio-link/internal/txengine"
	"github.com/rubyfpv/radio-link/internal/txselect"
)

// wifiWriter adapts an already-open AF_PACKET monitor-mode socket fd
// (the same fd AddWifiInterface hands to rxdriver.WifiDriver for
// reading) into a txengine.Writer for the outbound direction.
type wifiWriter struct{ fd int }

func (w wifiWriter) WriteFrame(buf []byte) (int, error) { return unix.Write(w.fd, buf) }

// serialWriter adapts the same rxdriver.SerialPort used for Rx into a
// txengine.Writer for the outbound direction.
type serialWriter struct{ port rxdriver.SerialPort }

func (w serialWriter) WriteFrame(buf []byte) (int, error) { return w.port.Write(buf) }

// noopRateSink discards adaptive capture and radio-rate requests,
// logging only the radio data rate. RadioStack builds its Controller
// with this sink, and neither RadioStack nor Controller has a method to
// replace it.
type noopRateSink struct{ log *rlog.Logger }

func (n noopRateSink) SetBitrate(bps int)             {}
func (n noopRateSink) SetIPQuantizationDelta(d int)   {}
func (n noopRateSink) SetKeyframeMs(ms int)           {}
func (n noopRateSink) SetRadioDataRate(bps int) {
	if n.log != nil {
		n.log.Debugf("stack: adaptive requested radio data rate %d bps (no capture sink wired)", bps)
	}
}

// RadioStack composes one run's worth of the radio link: configuration,
// logging, Rx/Tx engines, statistics, adaptive control and the optional
// out-of-band collaborators (interface power-cycling, rig CAT control,
// relay discovery).
type RadioStack struct {
	Model *config.Model

	Log       *rlog.Logger
	PacketLog *rlog.PacketLog

	Stats *radiostats.Stats

	Rx *rxengine.Engine
	Tx *txengine.Engine

	Selector  *txselect.Selector
	Adaptive  *adaptive.Controller
	Metrics   *metrics.Collector

	// Power cyclers and rig controllers are indexed by radio interface
	// index; both are optional per-interface collaborators absent on
	// interfaces with no GPIO hub control or CAT-controlled rig.
	Power map[int]*ifacepower.Cycler
	Rig   map[int]*rigctl.Controller

	Relay *relay.Announcer

	interfaces []*rxengine.Interface
	txWriters  map[int]txengine.Writer

	router *router
}

// New builds a RadioStack from a loaded Model. It does not open any
// device or start any goroutine; call Start for that.
func New(model *config.Model, runID string, logLevel log.Level, packetLogPath string, packetLogDaily bool) (*RadioStack, error) {
	logger := rlog.New(runID, logLevel)

	packetLog, err := rlog.NewPacketLog(packetLogPath, packetLogDaily)
	if err != nil {
		return nil, fmt.Errorf("stack: opening packet log: %w", err)
	}

	stats := radiostats.New()
	rx := rxengine.New(logger, packetLog, stats, model.ScrambleKey)
	selector := txselect.New(model, stats)
	tx := txengine.New(logger, selector, stats)

	sink := noopRateSink{log: logger}
	adaptiveCtl := adaptive.New(model, sink, sink, nil)

	ifaceIndexes := make([]int, len(model.RadioInterfaces))
	for i, iface := range model.RadioInterfaces {
		ifaceIndexes[i] = iface.Index
	}
	metricsCollector := metrics.New(stats, ifaceIndexes)

	rs := &RadioStack{
		Model:     model,
		Log:       logger,
		PacketLog: packetLog,
		Stats:     stats,
		Rx:        rx,
		Tx:        tx,
		Selector:  selector,
		Adaptive:  adaptiveCtl,
		Metrics:   metricsCollector,
		Power:     make(map[int]*ifacepower.Cycler),
		Rig:       make(map[int]*rigctl.Controller),
		txWriters: make(map[int]txengine.Writer),
	}
	rs.router = newRouter(rx, tx, rs.buildLinkTargets, logger)
	return rs, nil
}

// SetDeliver installs the callback the router hands every decoded,
// deduplicated packet to (spec.md §2, "the upper router consumes those
// queues, produces outbound packets, and calls C6"). Must be called
// before Start; the video renderer, telemetry consumer and menu UI
// that would normally own this callback are out-of-scope external
// collaborators (spec.md §1, Non-goals), so the default is to discard
// every packet.
func (s *RadioStack) SetDeliver(fn DeliverFunc) {
	s.router.deliver = fn
}

// buildLinkTargets resolves the current set of transmittable local
// radio links into the TX engine's LinkTarget form, re-running C5's
// interface selection per link so the router always sends on whatever
// interface is currently best (spec.md §4.5/§4.6).
func (s *RadioStack) buildLinkTargets() []txengine.LinkTarget {
	targets := make([]txengine.LinkTarget, 0, len(s.Model.RadioLinks))
	for i := range s.Model.RadioLinks {
		link := &s.Model.RadioLinks[i]
		if link.Disabled || !link.CanTX {
			continue
		}
		ifaceIdx := s.Selector.SelectInterface(link.ID)
		if ifaceIdx == txselect.NoInterface {
			continue
		}
		iface := s.Model.InterfaceByIndex(ifaceIdx)
		writer, ok := s.txWriters[ifaceIdx]
		if iface == nil || !ok {
			continue
		}
		targets = append(targets, txengine.LinkTarget{
			Link:       link,
			Iface:      iface,
			Writer:     writer,
			IsSerial:   iface.Driver == config.DriverSerialSiK,
			AirRateBPS: link.DataRateDataBPS,
		})
	}
	return targets
}

// AddWifiInterface wires an already-opened monitor-mode socket fd into
// the Rx engine under the interface's configured index.
func (s *RadioStack) AddWifiInterface(ifaceIndex int, fd int) {
	iface := &rxengine.Interface{
		Index: ifaceIndex,
		Wifi:  rxdriver.NewWifiDriver(fd, ifaceIndex),
	}
	s.interfaces = append(s.interfaces, iface)
	s.Rx.AddInterface(iface)
	s.txWriters[ifaceIndex] = wifiWriter{fd: fd}
}

// AddSerialInterface wires an already-opened SiK serial port into the Rx
// engine under the interface's configured index.
func (s *RadioStack) AddSerialInterface(ifaceIndex int, port rxdriver.SerialPort) {
	driver := rxdriver.NewSerialDriver(port, s.Model.ScrambleKey, config.MaxPacketTotalSize)
	driver.BadDataHit = func() {
		s.Stats.SetBadDataOnCurrentRxInterval(ifaceIndex)
	}
	iface := &rxengine.Interface{
		Index:  ifaceIndex,
		Serial: driver,
	}
	s.interfaces = append(s.interfaces, iface)
	s.Rx.AddInterface(iface)
	s.txWriters[ifaceIndex] = serialWriter{port: port}
}

// AttachPower registers a GPIO power cycler for an interface, used to
// recover it after the Rx engine marks it broken.
func (s *RadioStack) AttachPower(ifaceIndex int, cycler *ifacepower.Cycler) {
	s.Power[ifaceIndex] = cycler
}

// AttachRig registers a CAT-controlled rig for an interface.
func (s *RadioStack) AttachRig(ifaceIndex int, ctl *rigctl.Controller) {
	s.Rig[ifaceIndex] = ctl
}

// RecoverInterface power-cycles and resets the broken flag for a radio
// interface the Rx engine reported as broken, if a power cycler is
// attached; it is a no-op otherwise (spec.md §4.4's "external code may
// call 'reset broken state'" leaves the recovery mechanism itself
// outside the core).
func (s *RadioStack) RecoverInterface(ifaceIndex int) error {
	cycler, ok := s.Power[ifaceIndex]
	if !ok {
		return nil
	}
	if err := cycler.Cycle(); err != nil {
		return fmt.Errorf("stack: power-cycling interface %d: %w", ifaceIndex, err)
	}
	for _, iface := range s.interfaces {
		if iface.Index == ifaceIndex {
			iface.ResetBroken()
		}
	}
	return nil
}

// AnnounceRelay starts advertising this node as a relay under ctx, and
// stores the Announcer on the stack. Close does not stop it; the
// advertisement ends when ctx is canceled.
func (s *RadioStack) AnnounceRelay(ctx context.Context, name string, port int) error {
	a, err := relay.Announce(ctx, s.Log, name, port)
	if err != nil {
		return err
	}
	s.Relay = a
	return nil
}

// Start launches the Rx engine's background goroutines and the router
// that drains its output queues and drives Tx (spec.md §2).
func (s *RadioStack) Start() {
	s.Rx.Run()
	s.router.start()
}

// Close stops the router, the Rx engine, and closes the packet log.
func (s *RadioStack) Close() error {
	s.router.stop()
	s.Rx.Stop()
	for _, ctl := range s.Rig {
		ctl.Close()
	}
	return s.PacketLog.Close()
}
