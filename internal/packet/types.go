// Package packet implements the Ruby radio link wire format: frame-in/
// frame-out of the three on-wire packet shapes (full header, compressed
// header, serial short packet), CRC discipline and optional scrambling,
// and reassembly of full/compressed packets chained across short
// packets. It is grounded on the teacher's ax25_pad.go (packet object
// design: a single parse step producing a tagged struct instead of
// scattered casts) and il2p_crc.go (table-driven CRC helpers).
package packet

import "fmt"

// StreamID identifies one of the fixed logical subchannels multiplexed
// on the packet index space (spec.md §3, "Stream").
type StreamID uint8

const (
	StreamControl StreamID = iota
	StreamTelemetry
	StreamVideoData
	StreamVideoRetransmit
	StreamAudio
	StreamPing
	StreamData
	// StreamCompressedHeader is a distinguished pseudo-stream used only
	// to mark that a packet carries a compressed header; it is never a
	// real delivery target.
	StreamCompressedHeader
)

// Type identifies the packet's payload kind, independent of its stream.
type Type uint8

const (
	TypePing Type = iota
	TypeRetransmitRequest
	TypeControl
	TypeTelemetry
	TypeVideoData
	TypeAudioData
	TypeRawData
	TypeFirmwareUpdate
	TypeAlarm
)

// HighPriority reports whether packets of this type belong on the
// high-priority queue (spec.md §3, "Packet queues").
func (t Type) HighPriority() bool {
	switch t {
	case TypePing, TypeRetransmitRequest, TypeControl:
		return true
	default:
		return false
	}
}

// Flags are the bit flags carried in every header shape. The full header
// stores these in a 32-bit field; the compressed header stores the same
// bit positions truncated to a single byte, so every flag bit used for
// wire dispatch (module id, compressed-header) must fit in the low byte
// to mean the same thing in both shapes.
type Flags uint32

const (
	FlagModuleMask       Flags = 0x03 // 2 bits: up to 4 module ids
	FlagEncrypted        Flags = 1 << 2
	FlagRetransmit       Flags = 1 << 3
	FlagHeaderOnlyCRC    Flags = 1 << 4
	FlagCompressedHeader Flags = 1 << 5
	FlagHighPriorityHint Flags = 1 << 6
)

// streamPacketIdxMask masks the low bits of the combined stream/packet
// index field to the packet index, per spec.md's
// PACKET_FLAGS_MASK_STREAM_PACKET_IDX. The remaining high bits carry the
// stream id. 24 data bits are reserved for the index (spec.md §3,
// "monotonic 24-bit TX packet index"); the stream id occupies the top
// byte of the 32-bit field.
const (
	streamPacketIdxBits = 24
	streamPacketIdxMask = uint32(1)<<streamPacketIdxBits - 1
)

// combineStreamPacketIdx packs a stream id and packet index into one
// 32-bit field as the wire format requires.
func combineStreamPacketIdx(stream StreamID, idx uint32) uint32 {
	return uint32(stream)<<streamPacketIdxBits | (idx & streamPacketIdxMask)
}

func splitStreamPacketIdx(v uint32) (StreamID, uint32) {
	return StreamID(v >> streamPacketIdxBits), v & streamPacketIdxMask
}

// Packet is the decoded, tagged-variant representation produced by a
// single Decode call — the teacher's "represent as a tagged variant
// with a single parse step" note (spec.md §9) rather than scattered
// pointer casts over the two header shapes.
type Packet struct {
	Kind Kind

	Flags  Flags
	Type   Type
	Stream StreamID
	Index  uint32

	SourceVehicleID uint32
	DestVehicleID   uint32

	// RadioLinkPacketIndex is only present on full headers; it is used
	// by the RX engine (C4) for per-interface gap detection.
	RadioLinkPacketIndex uint16

	TotalLength uint16

	Payload []byte

	Retransmit bool
}

// Kind distinguishes which on-wire header shape produced this Packet.
type Kind int

const (
	KindFull Kind = iota
	KindCompressed
)

// ErrMalformed, ErrLengthMismatch, ErrCRCMismatch and ErrUnknownModule are
// the codec's error taxonomy (spec.md §4.1).
var (
	ErrMalformed      = fmt.Errorf("packet: malformed (too short for header)")
	ErrLengthMismatch = fmt.Errorf("packet: declared length exceeds available bytes")
	ErrCRCMismatch    = fmt.Errorf("packet: CRC mismatch")
	ErrUnknownModule  = fmt.Errorf("packet: unknown module id")
)
