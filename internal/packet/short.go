package packet

// ShortAssembler reassembles a full or compressed packet fragmented
// across consecutive serial short packets (spec.md §4.1,
// "Short-packet assembly"). One assembler exists per serial interface;
// it is not safe for concurrent use (the per-interface Rx driver, C3,
// owns it exclusively).
type ShortAssembler struct {
	scratch    []byte
	lastSeq    byte
	haveSeq    bool
	scrambleKey []byte
}

// NewShortAssembler creates an assembler with a scratch buffer bounded
// to at least 2×MaxPacketTotalSize per spec.md §4.1.
func NewShortAssembler(scrambleKey []byte, maxPacketTotalSize int) *ShortAssembler {
	return &ShortAssembler{
		scratch:     make([]byte, 0, 2*maxPacketTotalSize),
		scrambleKey: scrambleKey,
	}
}

// reset clears accumulated fragment state, as happens on a fresh
// START_PACKET or a sequence gap.
func (a *ShortAssembler) reset() {
	a.scratch = a.scratch[:0]
	a.haveSeq = false
}

// Feed processes one short packet (start_header, packet_id, data_length,
// fragment bytes already stripped of the 3-byte short header by the
// caller) and returns a reassembled Packet once enough bytes have
// accumulated to satisfy the inner header's declared total_length.
//
// On a sequence gap (packet_id not consecutive with the previous
// fragment) the scratch buffer is reset and the fragment is discarded;
// assembly resumes at the next START_PACKET. On overflow beyond the scratch
// buffer's capacity, the scratch is reset and the overflowing fragment
// discarded (spec.md §4.1, "bounded...and resets on overflow").
func (a *ShortAssembler) Feed(startHeader byte, packetID byte, fragment []byte) (*Packet, error) {
	if startHeader == ShortPacketStart {
		a.reset()
		a.haveSeq = true
		a.lastSeq = packetID
	} else {
		if !a.haveSeq || packetID != a.lastSeq+1 {
			a.reset()
			return nil, nil
		}
		a.lastSeq = packetID
	}

	if len(a.scratch)+len(fragment) > cap(a.scratch) {
		a.reset()
		return nil, nil
	}
	a.scratch = append(a.scratch, fragment...)

	total, _, ok := peekDeclaredLength(a.scratch)
	if !ok {
		return nil, nil
	}
	if len(a.scratch) < int(total) {
		return nil, nil
	}

	pkt, err := Decode(a.scratch[:total], a.scrambleKey)
	a.reset()
	if err != nil {
		return nil, err
	}
	return pkt, nil
}

// peekDeclaredLength inspects a possibly-incomplete reassembly buffer
// for either header shape's declared total_length, without validating
// CRC, so Feed can tell whether enough bytes have accumulated yet.
// The compressed shape (the one Encode uses for serial links) is tried
// first: it is taken when the compressed flags byte has the dispatch
// bit and its total_length is at least CompressedHeaderSize. Otherwise
// the full shape is used when its flags byte lacks the dispatch bit. A
// full header whose bytes match both tests is read as compressed.
func peekDeclaredLength(buf []byte) (uint16, Kind, bool) {
	if len(buf) >= CompressedHeaderSize && isCompressed(buf[offCompFlags]) {
		if total := le16(buf[offCompTotalLen:]); int(total) >= CompressedHeaderSize {
			return total, KindCompressed, true
		}
	}
	if len(buf) >= FullHeaderSize {
		flagsLow := buf[offFullFlags]
		if !isCompressed(flagsLow) {
			return le16(buf[offFullTotalLen:]), KindFull, true
		}
	}
	return 0, 0, false
}
