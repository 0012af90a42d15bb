package hll

import (
	"fmt"

	"github.com/pkg/errors"
)

// DecodeErrorKind distinguishes the ways a serialized HLL can fail to parse.
// The storage spec does not fix which sub-kind an unknown schema version
// should report, so UnknownVersion is used there by convention.
type DecodeErrorKind int

const (
	UnknownVersion DecodeErrorKind = iota
	UnknownType
	BadParameters
	BadLength
	NonMonotonicExplicit
)

func (k DecodeErrorKind) String() string {
	switch k {
	case UnknownVersion:
		return "unknown schema version"
	case UnknownType:
		return "unknown type ordinal"
	case BadParameters:
		return "log2m or regwidth out of range"
	case BadLength:
		return "payload length inconsistent with declared type"
	case NonMonotonicExplicit:
		return "EXPLICIT entries not strictly ascending"
	default:
		return "unknown decode error"
	}
}

// ErrParameterOutOfRange is returned by New/NewWithOptions when log2m or
// regwidth fall outside their valid ranges.
var ErrParameterOutOfRange = errors.New("hll: parameter out of range")

// ErrParameterMismatch is returned by Union when the two instances were
// constructed with incompatible (log2m, regwidth, explicitThreshold,
// sparseEnabled) parameters.
var ErrParameterMismatch = errors.New("hll: parameter mismatch")

// ErrDecode is the sentinel wrapped by every decoding failure; use
// errors.Is(err, hll.ErrDecode) to detect any malformed-input error
// regardless of its DecodeErrorKind.
var ErrDecode = errors.New("hll: decode error")

// DecodeError reports why FromBytes rejected its input. The target HLL is
// never mutated when this is returned.
type DecodeError struct {
	Kind  DecodeErrorKind
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("hll: decode error (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("hll: decode error (%s)", e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

func newDecodeError(kind DecodeErrorKind, cause error) error {
	return errors.WithStack(&DecodeError{Kind: kind, Cause: cause})
}
