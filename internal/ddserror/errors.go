// Package ddserror enumerates the error kinds surfaced to the façade, per
// spec.md section 7.
package ddserror

import (
	"errors"
	"fmt"
)

// Kind classifies a facade-visible failure.
type Kind int

const (
	KindNotEnabled Kind = iota
	KindAlreadyDeleted
	KindPreconditionNotMet
	KindInconsistentPolicy
	KindImmutablePolicy
	KindBadParameter
	KindTimeout
	KindNoData
	KindIllegalOperation
	KindOutOfResources
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNotEnabled:
		return "NotEnabled"
	case KindAlreadyDeleted:
		return "AlreadyDeleted"
	case KindPreconditionNotMet:
		return "PreconditionNotMet"
	case KindInconsistentPolicy:
		return "InconsistentPolicy"
	case KindImmutablePolicy:
		return "ImmutablePolicy"
	case KindBadParameter:
		return "BadParameter"
	case KindTimeout:
		return "Timeout"
	case KindNoData:
		return "NoData"
	case KindIllegalOperation:
		return "IllegalOperation"
	case KindOutOfResources:
		return "OutOfResources"
	default:
		return "Error"
	}
}

// Error is the concrete error type carried through oneshot replies.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is lets errors.Is match on Kind alone, ignoring Reason text.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an Error of the given kind with an optional formatted reason.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Sentinel errors for callers that only need to classify with errors.Is,
// matching the teacher's package-level var Err... idiom.
var (
	ErrNotEnabled         = &Error{Kind: KindNotEnabled}
	ErrAlreadyDeleted     = &Error{Kind: KindAlreadyDeleted}
	ErrPreconditionNotMet = &Error{Kind: KindPreconditionNotMet}
	ErrInconsistentPolicy = &Error{Kind: KindInconsistentPolicy}
	ErrImmutablePolicy    = &Error{Kind: KindImmutablePolicy}
	ErrBadParameter       = &Error{Kind: KindBadParameter}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrNoData             = &Error{Kind: KindNoData}
	ErrIllegalOperation   = &Error{Kind: KindIllegalOperation}
	ErrOutOfResources     = &Error{Kind: KindOutOfResources}
)

// NotEnabled reports that an operation targeted a disabled entity.
func NotEnabled(reason string) *Error { return New(KindNotEnabled, "%s", reason) }

// AlreadyDeleted reports that the target entity no longer exists.
func AlreadyDeleted(reason string) *Error { return New(KindAlreadyDeleted, "%s", reason) }

// PreconditionNotMet reports a structural rule violation.
func PreconditionNotMet(reason string) *Error { return New(KindPreconditionNotMet, "%s", reason) }

// InconsistentPolicy reports a self-consistency failure in a QoS set.
func InconsistentPolicy(reason string) *Error { return New(KindInconsistentPolicy, "%s", reason) }

// ImmutablePolicy reports an attempted change to an immutable policy after enable.
func ImmutablePolicy(reason string) *Error { return New(KindImmutablePolicy, "%s", reason) }

// BadParameter reports an argument that does not refer to a known entity.
func BadParameter(reason string) *Error { return New(KindBadParameter, "%s", reason) }

// Timeout reports a bounded wait that expired.
func Timeout(reason string) *Error { return New(KindTimeout, "%s", reason) }

// NoData reports a read/take with no matching samples.
func NoData() *Error { return &Error{Kind: KindNoData} }

// IllegalOperation reports an operation invalid for the entity's current QoS/state.
func IllegalOperation(reason string) *Error { return New(KindIllegalOperation, "%s", reason) }

// OutOfResources reports that a configured resource limit was reached.
func OutOfResources(reason string) *Error { return New(KindOutOfResources, "%s", reason) }

// Internal wraps an unclassified failure; callers are expected to log it.
func Internal(err error) *Error {
	if err == nil {
		return New(KindError, "unknown error")
	}
	return New(KindError, "%s", err.Error())
}
