package cdr

import "fmt"

// ParameterId is the 16-bit tag identifying a parameter-list entry, per the
// PIDs enumerated in spec.md section 6.
type ParameterId uint16

// PIDSentinel terminates a parameter list.
const PIDSentinel ParameterId = 0x0001

// mustUnderstandBit marks a PID as mandatory for correct interpretation; an
// unknown PID with this bit set fails the sample per spec.md section 4.9.
const mustUnderstandBit = 0x4000

// MustUnderstand reports whether the must-understand bit is set on a PID.
func (p ParameterId) MustUnderstand() bool { return p&mustUnderstandBit != 0 }

// Parameter is one raw (pid, bytes) entry of a parameter list; Value holds
// the bytes as on the wire, including any padding to the 4-byte boundary.
type Parameter struct {
	ID    ParameterId
	Value []byte
}

// ParameterList is an ordered set of raw parameters, preserving duplicates
// (some PIDs, e.g. locator lists, legitimately repeat).
type ParameterList []Parameter

// WriteParameterList appends parameters followed by the sentinel. Each
// parameter is length-prefixed and padded to a 4-byte boundary, per
// spec.md section 4.9.
func WriteParameterList(w *Writer, params ParameterList) {
	w.align(4)
	for _, p := range params {
		w.WriteU16(uint16(p.ID))
		padded := (len(p.Value) + 3) &^ 3
		w.WriteU16(uint16(padded))
		w.WriteBytes(p.Value)
		for i := len(p.Value); i < padded; i++ {
			w.WriteByte(0)
		}
	}
	w.WriteU16(uint16(PIDSentinel))
	w.WriteU16(0)
}

// ReadParameterList reads parameters until the sentinel PID is encountered.
// Unknown parameters are retained verbatim so callers can apply their own
// must-understand policy.
func ReadParameterList(r *Reader) (ParameterList, error) {
	var out ParameterList
	for {
		r.align(4)
		pidRaw, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		pid := ParameterId(pidRaw)
		length, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		if pid == PIDSentinel {
			return out, nil
		}
		value, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		out = append(out, Parameter{ID: pid, Value: append([]byte(nil), value...)})
	}
}

// Get returns the first parameter matching pid, if any.
func (l ParameterList) Get(pid ParameterId) (Parameter, bool) {
	for _, p := range l {
		if p.ID == pid {
			return p, true
		}
	}
	return Parameter{}, false
}

// GetAll returns every parameter matching pid, in order, for repeating
// fields such as locator lists.
func (l ParameterList) GetAll(pid ParameterId) []Parameter {
	var out []Parameter
	for _, p := range l {
		if p.ID == pid {
			out = append(out, p)
		}
	}
	return out
}

// RequireUnderstood fails if any parameter not in the known set has its
// must-understand bit set, per spec.md section 4.9's "unknown PIDs with the
// must-understand bit set fail the sample" rule.
func (l ParameterList) RequireUnderstood(known map[ParameterId]struct{}) error {
	for _, p := range l {
		if _, ok := known[p.ID]; ok {
			continue
		}
		if p.ID.MustUnderstand() {
			return fmt.Errorf("cdr: unknown must-understand parameter 0x%04x", uint16(p.ID))
		}
	}
	return nil
}
