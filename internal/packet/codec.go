package packet

// InterfaceKind tells Encode which header shape to use for a given
// target, matching spec.md §4.1 ("Frame out: given a payload buffer and
// a target interface kind"). Wi-Fi links default to full headers;
// bandwidth-constrained serial SiK links use compressed headers to cut
// framing overhead.
type InterfaceKind int

const (
	InterfaceWifi InterfaceKind = iota
	InterfaceSerial
)

// EncodeParams carries the caller-assigned fields Encode needs; the
// caller has already set stream id, packet type and destination id
// (spec.md §4.1).
type EncodeParams struct {
	Kind       InterfaceKind
	Type       Type
	Stream     StreamID
	Index      uint32
	SrcVehicle uint32
	DstVehicle uint32
	RadioLinkPacketIndex uint16
	Module     byte
	Retransmit bool
	Encrypted  bool
	HeaderOnlyCRC bool
	Payload    []byte
	ScrambleKey []byte
}

// Encode serializes one packet (full or compressed header depending on
// p.Kind) into a freshly allocated buffer, filling in CRC and, if
// configured, scrambling the result.
func Encode(p EncodeParams) []byte {
	if p.Kind == InterfaceSerial {
		return encodeCompressed(p)
	}
	return encodeFull(p)
}

func flagsByte(p EncodeParams, compressed bool) byte {
	f := p.Module & byte(FlagModuleMask)
	if p.Encrypted {
		f |= byte(FlagEncrypted)
	}
	if p.Retransmit {
		f |= byte(FlagRetransmit)
	}
	if p.HeaderOnlyCRC {
		f |= byte(FlagHeaderOnlyCRC)
	}
	if compressed {
		f |= byte(FlagCompressedHeader)
	}
	return f
}

func encodeFull(p EncodeParams) []byte {
	total := FullHeaderSize + len(p.Payload)
	buf := make([]byte, total)

	flagsWord := uint32(flagsByte(p, false))
	putLE32(buf[offFullFlags:], flagsWord)
	buf[offFullType] = byte(p.Type)
	putLE32(buf[offFullStreamIdx:], combineStreamPacketIdx(p.Stream, p.Index))
	putLE32(buf[offFullSrcVehicle:], p.SrcVehicle)
	putLE32(buf[offFullDstVehicle:], p.DstVehicle)
	putLE16(buf[offFullRadioLinkIdx:], p.RadioLinkPacketIndex)
	putLE16(buf[offFullTotalLen:], uint16(total))
	copy(buf[offFullPayload:], p.Payload)

	crcRegion := buf[4:]
	var covered []byte
	if p.HeaderOnlyCRC {
		covered = crcRegion[:FullHeaderSize-4]
	} else {
		covered = crcRegion
	}
	putLE32(buf[offFullCRC:], crc32Of(covered))

	if p.Encrypted {
		Scramble(buf[FullHeaderSize:], p.ScrambleKey)
	}
	return buf
}

func encodeCompressed(p EncodeParams) []byte {
	total := CompressedHeaderSize + len(p.Payload)
	buf := make([]byte, total)

	buf[offCompFlags] = flagsByte(p, true)
	buf[offCompType] = byte(p.Type)
	putLE32(buf[offCompStreamIdx:], combineStreamPacketIdx(p.Stream, p.Index))
	putLE32(buf[offCompSrcVehicle:], p.SrcVehicle)
	putLE32(buf[offCompDstVehicle:], p.DstVehicle)
	putLE16(buf[offCompTotalLen:], uint16(total))
	copy(buf[offCompPayload:], p.Payload)

	crcRegion := buf[1:]
	var covered []byte
	if p.HeaderOnlyCRC {
		covered = crcRegion[:CompressedHeaderSize-1]
	} else {
		covered = crcRegion
	}
	buf[offCompCRC] = crc8Of(covered)

	if p.Encrypted {
		Scramble(buf[CompressedHeaderSize:], p.ScrambleKey)
	}
	return buf
}

// Decode parses one packet starting at buf[0]. It tries the full-header
// interpretation first (the common case on Wi-Fi links), falling back
// to the compressed interpretation; a decode attempt is accepted only
// when both its CRC validates and the compressed-header dispatch bit at
// that shape's flags byte agrees with the shape being tried. This
// resolves the two shapes' "common dispatch bit" (spec.md §9) without
// needing out-of-band knowledge of which shape a given buffer holds.
//
// scrambleKey is applied (reversed) to the payload before CRC
// validation when the encrypted flag is set.
func Decode(buf []byte, scrambleKey []byte) (*Packet, error) {
	if len(buf) < CompressedHeaderSize {
		return nil, ErrMalformed
	}

	var fullErr error = ErrMalformed
	if len(buf) >= FullHeaderSize {
		if pkt, err := tryDecodeFull(buf, scrambleKey); err == nil {
			return pkt, nil
		} else {
			fullErr = err
		}
	}
	if pkt, err := tryDecodeCompressed(buf, scrambleKey); err == nil {
		return pkt, nil
	} else if err != ErrMalformed {
		return nil, err
	}
	return nil, fullErr
}

func tryDecodeFull(buf []byte, scrambleKey []byte) (*Packet, error) {
	flagsWord := le32(buf[offFullFlags:])
	flagsLow := byte(flagsWord)
	if isCompressed(flagsLow) {
		return nil, ErrMalformed
	}
	total := le16(buf[offFullTotalLen:])
	if int(total) < FullHeaderSize {
		return nil, ErrMalformed
	}
	if int(total) > len(buf) {
		return nil, ErrLengthMismatch
	}

	frame := append([]byte(nil), buf[:total]...)
	if Flags(flagsWord)&FlagEncrypted != 0 {
		Unscramble(frame[offFullPayload:], scrambleKey)
	}

	headerOnly := Flags(flagsWord)&FlagHeaderOnlyCRC != 0
	declaredCRC := le32(frame[offFullCRC:]) & 0x00FF_FFFF

	var covered []byte
	if headerOnly {
		covered = frame[4:FullHeaderSize]
	} else {
		covered = frame[4:]
	}
	if crc32Of(covered) != declaredCRC {
		return nil, ErrCRCMismatch
	}

	payload := frame[offFullPayload:]

	stream, idx := splitStreamPacketIdx(le32(buf[offFullStreamIdx:]))
	return &Packet{
		Kind:                 KindFull,
		Flags:                Flags(flagsWord),
		Type:                 Type(buf[offFullType]),
		Stream:               stream,
		Index:                idx,
		SourceVehicleID:      le32(buf[offFullSrcVehicle:]),
		DestVehicleID:        le32(buf[offFullDstVehicle:]),
		RadioLinkPacketIndex: le16(buf[offFullRadioLinkIdx:]),
		TotalLength:          total,
		Payload:              payload,
		Retransmit:           Flags(flagsWord)&FlagRetransmit != 0,
	}, nil
}

func tryDecodeCompressed(buf []byte, scrambleKey []byte) (*Packet, error) {
	if len(buf) < CompressedHeaderSize {
		return nil, ErrMalformed
	}
	flagsByte := buf[offCompFlags]
	if !isCompressed(flagsByte) {
		return nil, ErrMalformed
	}
	total := le16(buf[offCompTotalLen:])
	if int(total) < CompressedHeaderSize {
		return nil, ErrMalformed
	}
	if int(total) > len(buf) {
		return nil, ErrLengthMismatch
	}

	frame := append([]byte(nil), buf[:total]...)
	if Flags(flagsByte)&FlagEncrypted != 0 {
		Unscramble(frame[offCompPayload:], scrambleKey)
	}

	headerOnly := Flags(flagsByte)&FlagHeaderOnlyCRC != 0
	declaredCRC := frame[offCompCRC]

	var covered []byte
	if headerOnly {
		covered = frame[1:CompressedHeaderSize]
	} else {
		covered = frame[1:]
	}
	if crc8Of(covered) != declaredCRC {
		return nil, ErrCRCMismatch
	}

	payload := frame[offCompPayload:]

	stream, idx := splitStreamPacketIdx(le32(buf[offCompStreamIdx:]))
	return &Packet{
		Kind:            KindCompressed,
		Flags:           Flags(flagsByte),
		Type:            Type(buf[offCompType]),
		Stream:          stream,
		Index:           idx,
		SourceVehicleID: le32(buf[offCompSrcVehicle:]),
		DestVehicleID:   le32(buf[offCompDstVehicle:]),
		TotalLength:     total,
		Payload:         payload,
		Retransmit:      Flags(flagsByte)&FlagRetransmit != 0,
	}, nil
}

// DecodeChain repeatedly decodes packets from buf until it is exhausted,
// matching spec.md §4.1 ("Chaining: multiple packets may be packed in a
// single radio frame; decoding iterates by total_length until the
// buffer is exhausted"). It stops (without error) at the first byte
// remaining too short to hold any header, and returns the first hard
// error (malformed/length-mismatch/CRC) encountered along with the
// packets successfully decoded before it.
func DecodeChain(buf []byte, scrambleKey []byte) ([]*Packet, error) {
	var out []*Packet
	for len(buf) >= CompressedHeaderSize {
		pkt, err := Decode(buf, scrambleKey)
		if err != nil {
			return out, err
		}
		out = append(out, pkt)
		buf = buf[pkt.TotalLength:]
	}
	return out, nil
}
