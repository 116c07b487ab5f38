// Package cdr implements the Common Data Representation wire codec used for
// both RTPS submessage payloads and parameter-list discovery records, per
// spec.md section 4.9. It supports plain CDR and parameter-list CDR in both
// v1 (PL_CDR/CDR) and v2 (PL_CDR2/DELIMITED_CDR) framings, little- and
// big-endian.
//
// Buffer growth and primitive packing follow the encoding/binary idiom seen
// throughout the retrieval pack (e.g. the MQTT packet codec's use of
// bytes.Buffer plus manual alignment); there is no reflection-based
// marshaling here, matching the hand-rolled wire codecs in that pack rather
// than reaching for a generic serialization library which DDS's bit-exact
// alignment rules would not let us use anyway.
package cdr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Encapsulation identifies the (encoding kind, options) header that precedes
// every CDR-framed buffer, per spec.md section 4.9.
type Encapsulation uint16

const (
	EncapsulationCDR_BE    Encapsulation = 0x0000
	EncapsulationCDR_LE    Encapsulation = 0x0001
	EncapsulationPL_CDR_BE Encapsulation = 0x0002
	EncapsulationPL_CDR_LE Encapsulation = 0x0003
	EncapsulationCDR2_BE   Encapsulation = 0x0006
	EncapsulationCDR2_LE   Encapsulation = 0x0007
	EncapsulationDCDR2_BE  Encapsulation = 0x0008
	EncapsulationDCDR2_LE  Encapsulation = 0x0009
	EncapsulationPLCDR2_BE Encapsulation = 0x000a
	EncapsulationPLCDR2_LE Encapsulation = 0x000b
)

// LittleEndian reports whether this encapsulation kind encodes in little-endian.
func (e Encapsulation) LittleEndian() bool {
	switch e {
	case EncapsulationCDR_LE, EncapsulationPL_CDR_LE, EncapsulationCDR2_LE, EncapsulationDCDR2_LE, EncapsulationPLCDR2_LE:
		return true
	default:
		return false
	}
}

// IsV2 reports whether this encapsulation kind uses v2 (XCDR2) framing rules.
func (e Encapsulation) IsV2() bool {
	switch e {
	case EncapsulationCDR2_BE, EncapsulationCDR2_LE, EncapsulationDCDR2_BE, EncapsulationDCDR2_LE, EncapsulationPLCDR2_BE, EncapsulationPLCDR2_LE:
		return true
	default:
		return false
	}
}

// IsParameterList reports whether this encapsulation kind frames a
// parameter-list payload rather than a plain struct.
func (e Encapsulation) IsParameterList() bool {
	switch e {
	case EncapsulationPL_CDR_BE, EncapsulationPL_CDR_LE, EncapsulationPLCDR2_BE, EncapsulationPLCDR2_LE:
		return true
	default:
		return false
	}
}

var ErrBufferUnderrun = errors.New("cdr: buffer underrun")

// Writer accumulates a CDR-encoded byte stream with alignment tracking.
type Writer struct {
	buf   []byte
	le    bool
	v2    bool
	start int // alignment origin, usually 0 (start of encapsulation body)
}

// NewWriter creates a Writer for the given endianness and framing version.
// The 4-byte encapsulation header is written immediately.
func NewWriter(enc Encapsulation) *Writer {
	w := &Writer{le: enc.LittleEndian(), v2: enc.IsV2()}
	w.buf = make([]byte, 4)
	binary.BigEndian.PutUint16(w.buf[0:2], uint16(enc))
	binary.BigEndian.PutUint16(w.buf[2:4], 0)
	w.start = 4
	return w
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far, including the header.
func (w *Writer) Len() int { return len(w.buf) }

// align pads the buffer with zero bytes until (len-start)%n == 0.
func (w *Writer) align(n int) {
	if n <= 1 {
		return
	}
	pos := len(w.buf) - w.start
	pad := (n - pos%n) % n
	for i := 0; i < pad; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) order() binary.ByteOrder {
	if w.le {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// WriteByte appends a single byte, unaligned.
func (w *Writer) WriteByte(v byte) { w.buf = append(w.buf, v) }

// WriteBytes appends raw bytes, unaligned.
func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// WriteBool appends a one-byte boolean.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

// WriteU16 appends a 2-byte-aligned uint16.
func (w *Writer) WriteU16(v uint16) {
	w.align(2)
	var tmp [2]byte
	w.order().PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteI16 appends a 2-byte-aligned int16.
func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

// WriteU32 appends a 4-byte-aligned uint32.
func (w *Writer) WriteU32(v uint32) {
	w.align(4)
	var tmp [4]byte
	w.order().PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteI32 appends a 4-byte-aligned int32.
func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

// WriteU64 appends an 8-byte-aligned uint64.
func (w *Writer) WriteU64(v uint64) {
	w.align(8)
	var tmp [8]byte
	w.order().PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteI64 appends an 8-byte-aligned int64.
func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

// WriteString appends a length-prefixed string: u32 count (including the
// terminating NUL) followed by the bytes and a NUL terminator.
func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// WriteSeqLen writes the u32 length prefix shared by sequences.
func (w *Writer) WriteSeqLen(n int) { w.WriteU32(uint32(n)) }

// StartDHeader reserves space for a v2 DHEADER (appendable struct length
// prefix) and returns a patch function to call once the body is written.
func (w *Writer) StartDHeader() func() {
	w.align(4)
	pos := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	bodyStart := len(w.buf)
	return func() {
		length := uint32(len(w.buf) - bodyStart)
		w.order().PutUint32(w.buf[pos:pos+4], length)
	}
}

// Reader consumes a CDR-encoded byte stream with alignment tracking.
type Reader struct {
	buf   []byte
	pos   int
	le    bool
	v2    bool
	start int
}

// NewReader parses the 4-byte encapsulation header and returns a Reader
// positioned at the start of the body.
func NewReader(buf []byte) (*Reader, Encapsulation, error) {
	if len(buf) < 4 {
		return nil, 0, ErrBufferUnderrun
	}
	enc := Encapsulation(binary.BigEndian.Uint16(buf[0:2]))
	r := &Reader{buf: buf, pos: 4, le: enc.LittleEndian(), v2: enc.IsV2(), start: 4}
	return r, enc, nil
}

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) order() binary.ByteOrder {
	if r.le {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (r *Reader) align(n int) {
	if n <= 1 {
		return
	}
	pos := r.pos - r.start
	pad := (n - pos%n) % n
	r.pos += pad
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return ErrBufferUnderrun
	}
	return nil
}

// ReadByte consumes a single unaligned byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes consumes n unaligned raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBool consumes a one-byte boolean.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

// ReadU16 consumes a 2-byte-aligned uint16.
func (r *Reader) ReadU16() (uint16, error) {
	r.align(2)
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order().Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

// ReadI16 consumes a 2-byte-aligned int16.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU32 consumes a 4-byte-aligned uint32.
func (r *Reader) ReadU32() (uint32, error) {
	r.align(4)
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order().Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// ReadI32 consumes a 4-byte-aligned int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadU64 consumes an 8-byte-aligned uint64.
func (r *Reader) ReadU64() (uint64, error) {
	r.align(8)
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order().Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// ReadI64 consumes an 8-byte-aligned int64.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadString consumes a length-prefixed string (count includes the NUL).
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("cdr: string length prefix must be >= 1")
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if len(b) == 0 || b[len(b)-1] != 0 {
		return "", fmt.Errorf("cdr: string missing NUL terminator")
	}
	return string(b[:len(b)-1]), nil
}

// ReadSeqLen reads the u32 length prefix shared by sequences.
func (r *Reader) ReadSeqLen() (int, error) {
	n, err := r.ReadU32()
	return int(n), err
}

// ReadDHeader reads a v2 DHEADER and returns the declared body length in bytes.
func (r *Reader) ReadDHeader() (int, error) {
	n, err := r.ReadU32()
	return int(n), err
}
