// Package radiostats implements C7: per-interface, per-link and
// per-stream counters, rolling quality history rings, and RTT/link-lost
// flags. Every field here is written by exactly one of the RX worker or
// the (single) writer thread (spec.md §5, "Statistics counters are
// single-writer per field"); cross-goroutine visibility is provided by
// a single mutex per Stats value rather than per-field atomics, since
// the fields are read far more often (by the supervisor/metrics layer)
// than written, and the teacher's own g_SM_RadioStats is likewise one
// value guarded as a unit rather than field-by-field.
package radiostats

import (
	"sync"
	"time"

	"github.com/rubyfpv/radio-link/internal/config"
)

// QualitySlice is one one-second rx-quality sample retained in the
// rolling history ring (spec.md §3, "rolling history rings of
// rx-quality slices").
type QualitySlice struct {
	Good int
	Bad  int
	Lost int
}

// InterfaceStats is the per-interface counter block.
type InterfaceStats struct {
	History      [config.ControllerLinkStatsHistoryMaxSlices]QualitySlice
	historyHead  int

	BytesPerSecTX uint32
	BytesPerSecRX uint32

	TXPackets uint64

	LastUsedTXRateBPS int

	Broken bool

	// txByteWindow accumulates bytes sent in the current 1-second
	// accounting window, used to derive BytesPerSecTX. The serial
	// overload bound (C6) is enforced by txengine's own per-interface
	// window, not by this one.
	txByteWindow   uint32
	txWindowStart  time.Time
	rxByteWindow   uint32
	rxWindowStart  time.Time
}

// LinkStats is the per-local-radio-link counter block.
type LinkStats struct {
	LastTXInterface int
	Streams         map[uint8]*StreamStats
}

// StreamStats is the per-stream counter block within a link: a packet
// count plus a rolling bytes/sec window, mirroring the per-interface
// rolloverWindow accounting used for BytesPerSecTX/BytesPerSecRX.
type StreamStats struct {
	Packets     uint64
	BytesPerSec uint32

	byteWindow  uint32
	windowStart time.Time
}

// VehicleRxState is the per-peer bookkeeping described in spec.md §3,
// "Vehicle Rx state".
type VehicleRxState struct {
	VehicleID uint32
	InUse     bool

	TotalGood uint64
	TotalBad  uint64
	TotalLost uint64

	TempGood int
	TempBad  int
	TempLost int

	MinPerSecRate int
	MaxPerSecRate int

	// LastRadioLinkIndex tracks the last seen 16-bit radio_link_packet_index
	// per interface, for gap detection (spec.md §3).
	LastRadioLinkIndex map[int]uint16

	LastActivity time.Time
}

// Stats is the full C7 value: one RadioStack owns exactly one of these,
// constructed at startup and shared by reference with every worker
// (spec.md §9, "Global mutable state").
type Stats struct {
	mu sync.Mutex

	Interfaces map[int]*InterfaceStats
	Links      map[int]*LinkStats
	Vehicles   [config.MaxConcurrentVehicles]VehicleRxState

	UplinkPingRTTMs   int
	DownlinkPingRTTMs int
	LinkLost          bool
	RxAirGapMaxMs     int
}

// New creates an empty Stats value.
func New() *Stats {
	return &Stats{
		Interfaces: make(map[int]*InterfaceStats),
		Links:      make(map[int]*LinkStats),
	}
}

func (s *Stats) iface(idx int) *InterfaceStats {
	ifc, ok := s.Interfaces[idx]
	if !ok {
		ifc = &InterfaceStats{}
		s.Interfaces[idx] = ifc
	}
	return ifc
}

func (s *Stats) link(id int) *LinkStats {
	l, ok := s.Links[id]
	if !ok {
		l = &LinkStats{Streams: make(map[uint8]*StreamStats)}
		s.Links[id] = l
	}
	return l
}

func (l *LinkStats) stream(stream uint8) *StreamStats {
	st, ok := l.Streams[stream]
	if !ok {
		st = &StreamStats{}
		l.Streams[stream] = st
	}
	return st
}

// OnPacketSentOnInterface records one TX packet's byte cost against an
// interface's rolling byte/sec window (C7 operation).
func (s *Stats) OnPacketSentOnInterface(ifaceIdx int, size int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc := s.iface(ifaceIdx)
	ifc.TXPackets++
	rolloverWindow(&ifc.txByteWindow, &ifc.txWindowStart, &ifc.BytesPerSecTX, now)
	ifc.txByteWindow += uint32(size)
}

// OnPacketSentOnLink records a per-stream send against a local link's
// packet and bytes/sec counters (C7 operation).
func (s *Stats) OnPacketSentOnLink(linkID int, stream uint8, size int, count int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.link(linkID).stream(stream)
	st.Packets += uint64(count)
	rolloverWindow(&st.byteWindow, &st.windowStart, &st.BytesPerSec, now)
	st.byteWindow += uint32(size)
}

// OnNewRadioPacketReceived records raw (pre-dedup) bytes against an
// interface's rx byte/sec window.
func (s *Stats) OnNewRadioPacketReceived(ifaceIdx int, size int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc := s.iface(ifaceIdx)
	rolloverWindow(&ifc.rxByteWindow, &ifc.rxWindowStart, &ifc.BytesPerSecRX, now)
	ifc.rxByteWindow += uint32(size)
}

// OnUniquePacketReceived records a good packet in the current one-
// second quality slice for an interface (after dedup has passed it).
func (s *Stats) OnUniquePacketReceived(ifaceIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc := s.iface(ifaceIdx)
	ifc.History[ifc.historyHead].Good++
}

// SetBadDataOnCurrentRxInterval counts a CRC failure / malformed packet
// / gap against the current quality slice.
func (s *Stats) SetBadDataOnCurrentRxInterval(ifaceIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc := s.iface(ifaceIdx)
	ifc.History[ifc.historyHead].Bad++
}

// SetLostOnCurrentRxInterval counts a detected gap (lost packet) against
// the current quality slice.
func (s *Stats) SetLostOnCurrentRxInterval(ifaceIdx int, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc := s.iface(ifaceIdx)
	ifc.History[ifc.historyHead].Lost += n
}

// AdvanceHistorySlice rolls every interface's rolling window forward by
// one slot, called once per second by the RX worker's periodic step.
func (s *Stats) AdvanceHistorySlice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ifc := range s.Interfaces {
		ifc.historyHead = (ifc.historyHead + 1) % len(ifc.History)
		ifc.History[ifc.historyHead] = QualitySlice{}
	}
}

func rolloverWindow(byteWindow *uint32, windowStart *time.Time, perSec *uint32, now time.Time) {
	if windowStart.IsZero() {
		*windowStart = now
		return
	}
	if now.Sub(*windowStart) >= time.Second {
		*perSec = *byteWindow
		*byteWindow = 0
		*windowStart = now
	}
}

// SetTxRadioDataRateForPacket records the data rate chosen for the most
// recent TX on an interface (C7 operation, fed by the TX selector C5).
func (s *Stats) SetTxRadioDataRateForPacket(ifaceIdx int, rateBPS int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iface(ifaceIdx).LastUsedTXRateBPS = rateBPS
}

// SetTxCardForLink records which interface was last used to transmit on
// a local link (C7 operation, fed by the TX selector C5).
func (s *Stats) SetTxCardForLink(linkID int, ifaceIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link(linkID).LastTXInterface = ifaceIdx
}

// SetInterfaceBroken marks/unmarks an interface's broken flag.
func (s *Stats) SetInterfaceBroken(ifaceIdx int, broken bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iface(ifaceIdx).Broken = broken
}

// RxRelativeQuality returns a 0-100 score for an interface derived from
// its most recent history slices, consumed by the TX selector (C5) to
// pick the best-quality interface absent a preferred-index override.
func (s *Stats) RxRelativeQuality(ifaceIdx int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, ok := s.Interfaces[ifaceIdx]
	if !ok {
		return 100
	}
	var good, bad, lost int
	for _, sl := range ifc.History {
		good += sl.Good
		bad += sl.Bad
		lost += sl.Lost
	}
	total := good + bad + lost
	if total == 0 {
		return 100
	}
	return good * 100 / total
}

// InterfaceSnapshot is a point-in-time, race-free copy of one
// interface's counters, for consumers (the metrics exporter) that must
// read outside the Stats mutex.
type InterfaceSnapshot struct {
	BytesPerSecTX uint32
	BytesPerSecRX uint32
	Broken        bool
}

// InterfaceSnapshot returns a copy of an interface's current counters.
func (s *Stats) InterfaceSnapshot(ifaceIdx int) InterfaceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, ok := s.Interfaces[ifaceIdx]
	if !ok {
		return InterfaceSnapshot{}
	}
	return InterfaceSnapshot{
		BytesPerSecTX: ifc.BytesPerSecTX,
		BytesPerSecRX: ifc.BytesPerSecRX,
		Broken:        ifc.Broken,
	}
}

// IsLinkLost reports the controller's "link lost" flag.
func (s *Stats) IsLinkLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LinkLost
}

// FindOrAllocateVehicle returns the slot for vehicleID, allocating the
// first free slot on first sighting or reusing the last slot if all are
// taken (spec.md §3, "Vehicle Rx state").
func (s *Stats) FindOrAllocateVehicle(vehicleID uint32, now time.Time) *VehicleRxState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOrAllocateVehicleLocked(vehicleID, now)
}

// findOrAllocateVehicleLocked is FindOrAllocateVehicle's body, callable
// by other Stats methods that already hold s.mu (spec.md §3,
// "Vehicle Rx state": first free slot, else reuse the last slot).
func (s *Stats) findOrAllocateVehicleLocked(vehicleID uint32, now time.Time) *VehicleRxState {
	for i := range s.Vehicles {
		if s.Vehicles[i].InUse && s.Vehicles[i].VehicleID == vehicleID {
			s.Vehicles[i].LastActivity = now
			return &s.Vehicles[i]
		}
	}
	for i := range s.Vehicles {
		if !s.Vehicles[i].InUse {
			s.Vehicles[i] = VehicleRxState{
				VehicleID:          vehicleID,
				InUse:              true,
				LastRadioLinkIndex: make(map[int]uint16),
				LastActivity:       now,
			}
			return &s.Vehicles[i]
		}
	}
	last := &s.Vehicles[len(s.Vehicles)-1]
	*last = VehicleRxState{
		VehicleID:          vehicleID,
		InUse:              true,
		LastRadioLinkIndex: make(map[int]uint16),
		LastActivity:       now,
	}
	return last
}

// ClassifyRadioLinkIndex is the RX worker's bad/good/lost classification
// step (spec.md §4.4 step 3), keyed on the vehicle slot
// FindOrAllocateVehicle would return rather than a second, unbounded
// tracking structure of its own. Only full (non-compressed) headers
// carry a radio_link_packet_index on the wire; compressed-header
// packets get no gap detection in the original protocol either
// (original_source/code/r_station/packets_utils.cpp's encode path only
// assigns the index on the non-compressed branch), so hasIndex=false
// always reports good.
func (s *Stats) ClassifyRadioLinkIndex(vehicleID uint32, ifaceIdx int, hasIndex bool, idx uint16, now time.Time) (good, bad, lost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !hasIndex {
		return true, false, false
	}

	v := s.findOrAllocateVehicleLocked(vehicleID, now)
	prev, ok := v.LastRadioLinkIndex[ifaceIdx]
	v.LastRadioLinkIndex[ifaceIdx] = idx
	if !ok {
		return true, false, false
	}
	switch {
	case idx == prev+1:
		return true, false, false
	case idx > prev:
		return false, false, true // gap: lost some in between
	default:
		return false, true, false // backward/duplicate-ish: treat as bad
	}
}
