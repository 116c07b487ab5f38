// Package typesupport defines the TypeSupport capability the RTPS core
// depends on for application-data (de)serialization and keying. Per
// spec.md sections 1 and 6, the concrete IDL-to-CDR code generator that
// would produce TypeSupport implementations for user-defined types is
// explicitly out of scope for the core; this package is the seam the core
// is written against, plus a registry and a reflection-free support for
// opaque byte-blob topics used by tests and the example participant.
package typesupport

import (
	"ddscore/internal/cdr"
)

// TypeSupport lets the RTPS core serialize, deserialize, and extract
// instance keys from application samples of one data type without the core
// knowing anything about that type's Go representation.
type TypeSupport interface {
	// TypeName returns the OMG IDL-qualified type name advertised in SEDP
	// publication/subscription data (spec.md section 4.7).
	TypeName() string

	// Serialize appends sample's CDR encoding (per enc) to w.
	Serialize(w *cdr.Writer, sample any, enc cdr.Encapsulation) error

	// Deserialize decodes one sample from r using enc's conventions.
	Deserialize(r *cdr.Reader, enc cdr.Encapsulation) (any, error)

	// HasKey reports whether this type declares one or more @key fields;
	// samples of keyless types all use the writing DataWriter's own handle.
	HasKey() bool

	// GetKey extracts the instance key bytes for sample, used to compute
	// its InstanceHandle (spec.md section 2).
	GetKey(sample any) ([]byte, error)
}

// Registry maps type names to their TypeSupport, used by a participant to
// resolve the TypeSupport for an incoming SEDP publication before a local
// reader can deserialize that writer's samples.
type Registry struct {
	byName map[string]TypeSupport
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]TypeSupport)}
}

// Register records ts under its own TypeName, overwriting any prior entry.
func (r *Registry) Register(ts TypeSupport) {
	r.byName[ts.TypeName()] = ts
}

// Lookup returns the TypeSupport registered for name, if any.
func (r *Registry) Lookup(name string) (TypeSupport, bool) {
	ts, ok := r.byName[name]
	return ts, ok
}
