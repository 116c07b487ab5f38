package ddsid

import "ddscore/internal/cdr"

// WriteGUID appends the 16-byte wire form of a GUID, unaligned (GUIDs are
// opaque octet sequences on the wire, not aligned primitives).
func WriteGUID(w *cdr.Writer, g GUID) {
	b := g.Bytes()
	w.WriteBytes(b[:])
}

// ReadGUID consumes 16 bytes and parses them as a GUID.
func ReadGUID(r *cdr.Reader) (GUID, error) {
	b, err := r.ReadBytes(16)
	if err != nil {
		return GUID{}, err
	}
	var g GUID
	copy(g.Prefix[:], b[:12])
	copy(g.Entity[:], b[12:16])
	return g, nil
}

// WriteSequenceNumber appends the RTPS (high:i32, low:u32) wire pair for a
// sequence number.
func WriteSequenceNumber(w *cdr.Writer, sn SequenceNumber) {
	v := int64(sn)
	w.WriteI32(int32(v >> 32))
	w.WriteU32(uint32(v & 0xffffffff))
}

// ReadSequenceNumber consumes the (high, low) wire pair.
func ReadSequenceNumber(r *cdr.Reader) (SequenceNumber, error) {
	hi, err := r.ReadI32()
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return SequenceNumber(int64(hi)<<32 | int64(lo)), nil
}

// WriteLocator appends the wire form of a Locator: kind:i32, port:u32, 16-byte address.
func WriteLocator(w *cdr.Writer, l Locator) {
	w.WriteI32(int32(l.Kind))
	w.WriteU32(l.Port)
	w.WriteBytes(l.Address[:])
}

// ReadLocator consumes the wire form of a Locator.
func ReadLocator(r *cdr.Reader) (Locator, error) {
	kind, err := r.ReadI32()
	if err != nil {
		return Locator{}, err
	}
	port, err := r.ReadU32()
	if err != nil {
		return Locator{}, err
	}
	addr, err := r.ReadBytes(16)
	if err != nil {
		return Locator{}, err
	}
	var l Locator
	l.Kind = LocatorKind(kind)
	l.Port = port
	copy(l.Address[:], addr)
	return l, nil
}

// WriteDuration appends the (sec:i32, frac:u32) wire pair.
func WriteDuration(w *cdr.Writer, d Duration) {
	w.WriteI32(d.Sec)
	w.WriteU32(d.Frac)
}

// ReadDuration consumes the (sec, frac) wire pair.
func ReadDuration(r *cdr.Reader) (Duration, error) {
	sec, err := r.ReadI32()
	if err != nil {
		return Duration{}, err
	}
	frac, err := r.ReadU32()
	if err != nil {
		return Duration{}, err
	}
	return Duration{Sec: sec, Frac: frac}, nil
}
