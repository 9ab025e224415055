// Package txengine implements C6: assigning stream sequence numbers,
// building radio frames via internal/packet, emitting them on the
// interface chosen by internal/txselect, and enforcing the serial
// overload bound (spec.md §4.6).
//
// Grounded on the teacher's src/xmit.go (per-channel transmit queue,
// rate-limit table keyed by frame type, fatal-vs-recoverable write
// error handling) generalized from AX.25 framing to Ruby's chained
// packet buffers, and on src/serial_port.go for the pkg/term write path.
package txengine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rubyfpv/radio-link/internal/config"
	"github.com/rubyfpv/radio-link/internal/packet"
	"github.com/rubyfpv/radio-link/internal/radiostats"
	"github.com/rubyfpv/radio-link/internal/rlog"
	"github.com/rubyfpv/radio-link/internal/txselect"
)

// Writer abstracts the underlying radio handle, whether a monitor-mode
// raw socket or a serial port, so the engine's logic does not depend on
// either transport concretely.
type Writer interface {
	WriteFrame(buf []byte) (n int, err error)
}

// RateSettable is optionally implemented by a Writer backed by a real
// Wi-Fi monitor-mode adapter, letting the engine push C5's chosen data
// rate down to the card (spec.md §4.6 step 6, "set radio flags and
// data rate (C5)"). Serial links carry no such concept; their air rate
// is fixed at radio setup time.
type RateSettable interface {
	SetDataRate(bps int) error
}

// RateSelectionState is the controller-level input to C5's per-packet
// data-rate selection (spec.md §4.5): pairing/negotiation/link-lost
// flags and the active video profiles, normally owned by whatever
// layer tracks pairing and adaptive video state. The zero value means
// "not pairing, no controller override, profile 0", which is what
// txselect.Selector.SelectDataRate treats as its baseline case.
type RateSelectionState struct {
	IsPairing          bool
	Settings           *config.ControllerSettings
	ActiveVideoProfile int
	UserProfile        int
	StreamingProfile   int
}

// WriteOutcome distinguishes a recoverable write failure (logged, and
// the packet skipped on that interface without a retry) from the fatal
// -2 the teacher's xmit path uses (spec.md §4.6 step 7).
type WriteOutcome int

const (
	WriteOK WriteOutcome = iota
	WriteFailedRecoverable
	WriteFailedFatal
)

// FatalWriteError, when returned by a Writer, makes the engine stop
// sending the rest of the current chain on that link; Send then goes on
// to the next link target. The engine does not schedule an interface
// reinit or mark the interface unusable for later sends.
type FatalWriteError struct{ Err error }

func (e *FatalWriteError) Error() string { return "txengine: fatal write error: " + e.Err.Error() }
func (e *FatalWriteError) Unwrap() error { return e.Err }

// LinkTarget is everything the engine needs about one local radio link
// to emit on it: its config, its chosen TX interface/writer and
// transport kind.
type LinkTarget struct {
	Link      *config.LocalRadioLinkParams
	Iface     *config.RadioInterfaceParams
	Writer    Writer
	IsSerial  bool
	AirRateBPS int // serial only; Wi-Fi links are not rate-bounded here
}

// streamCounters tracks the monotonic per-stream TX packet index
// (spec.md §4.6 step 2); pings keep their caller-assigned index.
type streamCounters struct {
	mu   sync.Mutex
	next map[packet.StreamID]uint32
}

func newStreamCounters() *streamCounters {
	return &streamCounters{next: make(map[packet.StreamID]uint32)}
}

func (c *streamCounters) assign(stream packet.StreamID) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.next[stream]
	c.next[stream] = idx + 1
	return idx
}

// overloadGuard enforces spec.md's serial overload bound: TX bytes/sec
// on an interface must never exceed DefaultRadioSerialMaxTXLoad percent
// of its configured air rate, alarmed at most once per AlarmThrottleInterval.
type overloadGuard struct {
	mu           sync.Mutex
	windowStart  time.Time
	windowBytes  int
	lastAlarm    time.Time
}

// allow reports whether size more bytes may be sent now without
// breaching the bound, and whether an overload alarm should fire.
func (g *overloadGuard) allow(now time.Time, size int, airRateBPS int) (ok bool, raiseAlarm bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.windowStart.IsZero() || now.Sub(g.windowStart) >= time.Second {
		g.windowStart = now
		g.windowBytes = 0
	}

	limit := airRateBPS * config.DefaultRadioSerialMaxTXLoad / 100
	if g.windowBytes+size > limit {
		raiseAlarm = now.Sub(g.lastAlarm) >= config.AlarmThrottleInterval
		if raiseAlarm {
			g.lastAlarm = now
		}
		return false, raiseAlarm
	}
	g.windowBytes += size
	return true, false
}

// Engine is the C6 TX engine.
type Engine struct {
	log      *rlog.Logger
	selector *txselect.Selector
	stats    *radiostats.Stats
	streams  *streamCounters
	overload map[int]*overloadGuard
	mu       sync.Mutex

	rateState atomic.Pointer[RateSelectionState]

	lastNoTXLog map[int]time.Time
	AlarmSink   func(id config.AlarmID, ifaceIdx int)
}

// New builds a TX engine bound to a selector and the shared stats value.
func New(log *rlog.Logger, selector *txselect.Selector, stats *radiostats.Stats) *Engine {
	return &Engine{
		log:         log,
		selector:    selector,
		stats:       stats,
		streams:     newStreamCounters(),
		overload:    make(map[int]*overloadGuard),
		lastNoTXLog: make(map[int]time.Time),
	}
}

// SetRateSelectionState swaps in the current pairing/negotiation/video
// profile inputs for C5's data-rate selection. Safe to call
// concurrently with Send.
func (e *Engine) SetRateSelectionState(st RateSelectionState) {
	e.rateState.Store(&st)
}

func (e *Engine) guardFor(ifaceIdx int) *overloadGuard {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.overload[ifaceIdx]
	if !ok {
		g = &overloadGuard{}
		e.overload[ifaceIdx] = g
	}
	return g
}

// Send transmits the packets in chain across the given link targets
// (one entry per local link that should carry this buffer), implementing
// spec.md §4.6 steps 2-8. pingLinkID, when >= 0, restricts delivery to a
// single link because the chain is a lone ping packet carrying its
// target link id in-band. firmwareUpdate, when true, stops after the
// first successful send (updates go on exactly one link).
func (e *Engine) Send(chain []*packet.Packet, targets []LinkTarget, pingLinkID int, firmwareUpdate bool) {
	now := time.Now()

	for i, pkt := range chain {
		if pkt.Type != packet.TypePing {
			chain[i].Index = e.streams.assign(pkt.Stream)
		}
	}

	isLonePing := len(chain) == 1 && chain[0].Type == packet.TypePing
	sentOnAny := false

	for _, target := range targets {
		if isLonePing && pingLinkID >= 0 && target.Link.ID != pingLinkID {
			continue
		}
		if firmwareUpdate && sentOnAny {
			break
		}
		if target.Link.Disabled || target.Link.CanRelay && !target.Link.CanTX {
			e.logSkipThrottled(target.Link.ID, now)
			continue
		}
		ifaceIdx := e.selector.SelectInterface(target.Link.ID)
		if ifaceIdx == txselect.NoInterface {
			e.logSkipThrottled(target.Link.ID, now)
			continue
		}

		ok := e.sendChainOnTarget(chain, target, ifaceIdx, now)
		if ok {
			sentOnAny = true
		}
	}

	if !sentOnAny {
		e.log.Warnf("tx: no interface sent chain of %d packet(s) across %d link target(s)", len(chain), len(targets))
	}
}

func (e *Engine) sendChainOnTarget(chain []*packet.Packet, target LinkTarget, ifaceIdx int, now time.Time) bool {
	kind := packet.InterfaceWifi
	if target.IsSerial {
		kind = packet.InterfaceSerial
	}

	if !target.IsSerial {
		e.applyDataRate(target, ifaceIdx)
	}

	sentAny := false
	for _, pkt := range chain {
		if target.IsSerial && !radioCanSendPacketOnSlowLink(pkt.Type) {
			continue
		}

		encoded := packet.Encode(packet.EncodeParams{
			Kind:       kind,
			Type:       pkt.Type,
			Stream:     pkt.Stream,
			Index:      pkt.Index,
			SrcVehicle: pkt.SourceVehicleID,
			DstVehicle: pkt.DestVehicleID,
			Payload:    pkt.Payload,
			Retransmit: pkt.Retransmit,
		})

		overheadAdjusted := len(encoded)
		if target.IsSerial && target.Link.SiKPacketSize > 0 {
			fragments := (len(encoded) + target.Link.SiKPacketSize - 1) / target.Link.SiKPacketSize
			overheadAdjusted += fragments * packet.ShortPacketHeaderSize
		}

		if target.IsSerial {
			guard := e.guardFor(ifaceIdx)
			allowed, raiseAlarm := guard.allow(now, overheadAdjusted, target.AirRateBPS)
			if raiseAlarm && e.AlarmSink != nil {
				e.AlarmSink(config.AlarmRadioLinkDataOverload, ifaceIdx)
			}
			if !allowed {
				continue
			}
		}

		n, err := target.Writer.WriteFrame(encoded)
		if err != nil {
			if _, fatal := err.(*FatalWriteError); fatal {
				return sentAny
			}
			e.log.Warnf("tx write failed on interface %d: %v", ifaceIdx, err)
			continue
		}

		e.stats.OnPacketSentOnInterface(ifaceIdx, n, now)
		e.stats.OnPacketSentOnLink(target.Link.ID, uint8(pkt.Stream), n, 1, now)
		e.stats.SetTxCardForLink(target.Link.ID, ifaceIdx)
		sentAny = true
	}
	return sentAny
}

// applyDataRate runs C5's data-rate selection for a Wi-Fi target,
// records the result in stats, and pushes it down to the card if the
// Writer supports it (spec.md §4.6 step 6, "For Wi-Fi targets: set
// radio flags and data rate (C5)").
func (e *Engine) applyDataRate(target LinkTarget, ifaceIdx int) {
	st := e.rateState.Load()
	if st == nil {
		st = &RateSelectionState{}
	}
	rate := e.selector.SelectDataRate(target.Link.ID, ifaceIdx, st.IsPairing, st.Settings, st.ActiveVideoProfile, st.UserProfile, st.StreamingProfile)
	e.stats.SetTxRadioDataRateForPacket(ifaceIdx, rate)
	if settable, ok := target.Writer.(RateSettable); ok {
		if err := settable.SetDataRate(rate); err != nil {
			e.log.Warnf("tx: failed to set data rate %d on interface %d: %v", rate, ifaceIdx, err)
		}
	}
}

func (e *Engine) logSkipThrottled(linkID int, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastNoTXLog[linkID]; ok && now.Sub(last) < config.AlarmThrottleInterval {
		return
	}
	e.lastNoTXLog[linkID] = now
	e.log.Debugf("tx: link %d has no eligible TX interface this round", linkID)
}

// radioCanSendPacketOnSlowLink is the rate-limit table keyed by packet
// type referenced in spec.md §4.6 step 7 (the teacher's
// radio_can_send_packet_on_slow_link): raw data is the only type ever
// refused on a slow serial link; every other type is allowed.
func radioCanSendPacketOnSlowLink(t packet.Type) bool {
	switch t {
	case packet.TypeRawData:
		return false
	default:
		return true
	}
}
