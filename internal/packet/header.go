package packet

// Header byte layouts (spec.md §6, "Wire protocol"). All multi-byte
// fields are little-endian unless noted.

const (
	// FullHeaderSize is sizeof(full header) including its 4-byte CRC.
	FullHeaderSize = 25

	// CompressedHeaderSize is sizeof(compressed header) including its
	// 1-byte CRC.
	CompressedHeaderSize = 17

	// ShortPacketHeaderSize is the fixed part of a serial short packet,
	// before the fragment payload.
	ShortPacketHeaderSize = 3
)

// Short packet start-header values.
const (
	ShortPacketStart        byte = 0xA5
	ShortPacketContinuation byte = 0x5A
)

// offsets within a full header.
const (
	offFullCRC          = 0
	offFullFlags        = 4
	offFullType         = 8
	offFullStreamIdx    = 9
	offFullSrcVehicle   = 13
	offFullDstVehicle   = 17
	offFullRadioLinkIdx = 21
	offFullTotalLen     = 23
	offFullPayload      = FullHeaderSize
)

// offsets within a compressed header.
const (
	offCompCRC        = 0
	offCompFlags      = 1
	offCompType       = 2
	offCompStreamIdx  = 3
	offCompSrcVehicle = 7
	offCompDstVehicle = 11
	offCompTotalLen   = 15
	offCompPayload    = CompressedHeaderSize
)

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 { return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24 }

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// isCompressed reports whether a packet_flags byte has the
// compressed-header bit set (spec.md §9, the dispatch bit the two
// header shapes share).
func isCompressed(flagsByte byte) bool {
	return flagsByte&byte(FlagCompressedHeader) != 0
}
