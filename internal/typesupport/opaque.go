package typesupport

import "ddscore/internal/cdr"

// OpaqueBytes is a keyless TypeSupport for samples that are already raw
// byte slices, for use without a generated type. It writes samples as a CDR
// octet sequence rather than trying to infer field layout.
type OpaqueBytes struct {
	Name string
}

// TypeName returns the registered type name.
func (o OpaqueBytes) TypeName() string { return o.Name }

// Serialize writes sample.([]byte) as a CDR octet sequence.
func (o OpaqueBytes) Serialize(w *cdr.Writer, sample any, enc cdr.Encapsulation) error {
	b, _ := sample.([]byte)
	w.WriteSeqLen(len(b))
	w.WriteBytes(b)
	return nil
}

// Deserialize reads a CDR octet sequence back into a []byte.
func (o OpaqueBytes) Deserialize(r *cdr.Reader, enc cdr.Encapsulation) (any, error) {
	n, err := r.ReadSeqLen()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// HasKey reports false: opaque blobs carry no instance key.
func (o OpaqueBytes) HasKey() bool { return false }

// GetKey always returns nil since OpaqueBytes is keyless.
func (o OpaqueBytes) GetKey(sample any) ([]byte, error) { return nil, nil }
