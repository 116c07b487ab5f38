package rtpsmsg

import "fmt"

// submessageHeaderLen is the 4-byte {kind, flags, octetsToNextHeader} prefix.
const submessageHeaderLen = 4

// RawSubmessage is one parsed-but-not-yet-decoded submessage, as produced by
// ParseMessage and consumed by MessageReceiver.
type RawSubmessage struct {
	Kind  Kind
	Flags byte
	Body  []byte
}

// LittleEndian reports this submessage's own endianness flag, per spec.md
// section 4.5 ("endianness is taken from the per-submessage flag").
func (r RawSubmessage) LittleEndian() bool { return r.Flags&flagEndianness != 0 }

// EncodeMessage frames header followed by each submessage's wire form.
func EncodeMessage(header Header, submessages []RawSubmessage) []byte {
	buf := EncodeHeader(header)
	for _, sm := range submessages {
		buf = appendSubmessage(buf, sm)
	}
	return buf
}

func appendSubmessage(buf []byte, sm RawSubmessage) []byte {
	buf = append(buf, byte(sm.Kind), sm.Flags)
	lenBuf := make([]byte, 2)
	putU16(lenBuf, uint16(len(sm.Body)), sm.LittleEndian())
	buf = append(buf, lenBuf...)
	buf = append(buf, sm.Body...)
	return buf
}

// ParseMessage splits buf into its header and flat submessage sequence.
// Per spec.md section 4.5, an unknown kind with the high bit of the kind
// byte set is skipped; any other malformed submessage aborts parsing of the
// remainder of this message (but never the connection).
func ParseMessage(buf []byte) (Header, []RawSubmessage, error) {
	header, offset, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}
	var out []RawSubmessage
	for offset < len(buf) {
		if offset+submessageHeaderLen > len(buf) {
			return header, out, fmt.Errorf("rtpsmsg: truncated submessage header at offset %d", offset)
		}
		kind := Kind(buf[offset])
		flags := buf[offset+1]
		le := flags&flagEndianness != 0
		n := int(getU16(buf[offset+2:offset+4], le))
		bodyStart := offset + submessageHeaderLen
		bodyEnd := bodyStart + n
		if bodyEnd > len(buf) {
			return header, out, fmt.Errorf("rtpsmsg: submessage body overruns message at offset %d", offset)
		}
		if !isKnownKind(kind) {
			if kind&0x80 != 0 {
				offset = bodyEnd
				continue
			}
			return header, out, fmt.Errorf("rtpsmsg: unknown submessage kind 0x%02x", byte(kind))
		}
		out = append(out, RawSubmessage{Kind: kind, Flags: flags, Body: buf[bodyStart:bodyEnd]})
		offset = bodyEnd
	}
	return header, out, nil
}

func isKnownKind(k Kind) bool {
	switch k {
	case KindPad, KindAckNack, KindHeartbeat, KindGap, KindInfoTs, KindInfoSrc,
		KindInfoReply, KindInfoDst, KindNackFrag, KindHeartbeatFrag, KindData, KindDataFrag:
		return true
	default:
		return false
	}
}
