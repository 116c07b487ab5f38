// Package rtpsmsg implements RTPS message framing: the fixed message
// header, the submessage set of spec.md section 6, and the MessageReceiver
// / MessageSender dispatch of spec.md sections 4.5 and 4.6.
package rtpsmsg

import (
	"encoding/binary"
	"errors"
	"fmt"

	"ddscore/internal/ddsid"
)

// Magic is the fixed 4-byte RTPS message marker.
var Magic = [4]byte{'R', 'T', 'P', 'S'}

// HeaderLen is the fixed size in bytes of the RTPS message header.
const HeaderLen = 20

// Header is the fixed RTPS message header, per spec.md section 6.
type Header struct {
	Version    ddsid.ProtocolVersion
	VendorId   ddsid.VendorId
	GuidPrefix ddsid.GuidPrefix
}

// ErrBadMagic is returned when a buffer does not start with the RTPS magic.
var ErrBadMagic = errors.New("rtpsmsg: bad magic")

// EncodeHeader writes the 20-byte RTPS message header.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[0:4], Magic[:])
	buf[4] = h.Version.Major
	buf[5] = h.Version.Minor
	buf[6] = h.VendorId[0]
	buf[7] = h.VendorId[1]
	copy(buf[8:20], h.GuidPrefix[:])
	return buf
}

// DecodeHeader parses the fixed message header from the start of buf and
// returns the header plus the offset of the first submessage.
func DecodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < HeaderLen {
		return Header{}, 0, fmt.Errorf("rtpsmsg: short header (%d bytes)", len(buf))
	}
	if [4]byte(buf[0:4]) != Magic {
		return Header{}, 0, ErrBadMagic
	}
	h := Header{
		Version:  ddsid.ProtocolVersion{Major: buf[4], Minor: buf[5]},
		VendorId: ddsid.VendorId{buf[6], buf[7]},
	}
	copy(h.GuidPrefix[:], buf[8:20])
	return h, HeaderLen, nil
}

func putU16(b []byte, v uint16, le bool) {
	if le {
		binary.LittleEndian.PutUint16(b, v)
	} else {
		binary.BigEndian.PutUint16(b, v)
	}
}

func getU16(b []byte, le bool) uint16 {
	if le {
		return binary.LittleEndian.Uint16(b)
	}
	return binary.BigEndian.Uint16(b)
}

func putU32(b []byte, v uint32, le bool) {
	if le {
		binary.LittleEndian.PutUint32(b, v)
	} else {
		binary.BigEndian.PutUint32(b, v)
	}
}

func getU32(b []byte, le bool) uint32 {
	if le {
		return binary.LittleEndian.Uint32(b)
	}
	return binary.BigEndian.Uint32(b)
}

func putI32(b []byte, v int32, le bool) { putU32(b, uint32(v), le) }
func getI32(b []byte, le bool) int32    { return int32(getU32(b, le)) }

func putI64(b []byte, v int64, le bool) {
	if le {
		binary.LittleEndian.PutUint64(b, uint64(v))
	} else {
		binary.BigEndian.PutUint64(b, uint64(v))
	}
}

func getI64(b []byte, le bool) int64 {
	if le {
		return int64(binary.LittleEndian.Uint64(b))
	}
	return int64(binary.BigEndian.Uint64(b))
}
