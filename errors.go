// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

import (
	"errors"
	"fmt"
)

// Code is a stable taxonomy of the conditions this package can report.
// Callers may switch on Code without depending on error message text.
type Code int

//go:generate stringer -type=Code
const (
	// Structural errors: the input does not conform to ISOBMFF/OBU framing.
	TruncatedHeader Code = iota
	InvalidSize
	OverrunsParent
	NoMetaBox
	TruncatedIinf
	PayloadOverrun

	// Unsupported: the input is well-formed but names a feature this core
	// deliberately does not implement (see spec Non-goals).
	UnsupportedVersion
	UnsupportedConstruction
	ExternalData
	UnsupportedExtentIndex
	NotCodedStill
	NoExtents
	ZeroExtentLength
	NoSizeField
	ForbiddenBit
	UvlcTooLong
	Unsupported
	// MissingPrimary: spec §4.D rule 1 names this code explicitly even
	// though it is absent from the §7 taxonomy table; kept here to match
	// the component design text (see DESIGN.md open question notes).
	MissingPrimary

	// Resource: exhaustion at a boundary the core itself enforces.
	OutOfMemory
	IoError
)

func (c Code) String() string {
	switch c {
	case TruncatedHeader:
		return "TruncatedHeader"
	case InvalidSize:
		return "InvalidSize"
	case OverrunsParent:
		return "OverrunsParent"
	case NoMetaBox:
		return "NoMetaBox"
	case TruncatedIinf:
		return "TruncatedIinf"
	case PayloadOverrun:
		return "PayloadOverrun"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case UnsupportedConstruction:
		return "UnsupportedConstruction"
	case ExternalData:
		return "ExternalData"
	case UnsupportedExtentIndex:
		return "UnsupportedExtentIndex"
	case NotCodedStill:
		return "NotCodedStill"
	case NoExtents:
		return "NoExtents"
	case ZeroExtentLength:
		return "ZeroExtentLength"
	case NoSizeField:
		return "NoSizeField"
	case ForbiddenBit:
		return "ForbiddenBit"
	case UvlcTooLong:
		return "UvlcTooLong"
	case Unsupported:
		return "Unsupported"
	case MissingPrimary:
		return "MissingPrimary"
	case OutOfMemory:
		return "OutOfMemory"
	case IoError:
		return "IoError"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// FormatError is the error type returned by every exported operation in
// this package. Offset and Box are filled in where the condition was
// detected inside a box tree; Box is the zero fourCC when not applicable.
type FormatError struct {
	Code   Code
	Offset int64
	Box    fourCC
	Err    error
}

func (e *FormatError) Error() string {
	if e.Box != (fourCC{}) {
		return fmt.Sprintf("%s: %s (box %q at offset %d)", e.Code, e.Err, e.Box, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is reports whether target is a *FormatError with the same Code, so
// callers can do errors.Is(err, &FormatError{Code: avifinspect.NoMetaBox}).
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newErr(code Code, format string, args ...any) error {
	return &FormatError{Code: code, Err: fmt.Errorf(format, args...)}
}

func newErrAt(code Code, offset int64, box fourCC, format string, args ...any) error {
	return &FormatError{Code: code, Offset: offset, Box: box, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the Code from err, if err is (or wraps) a *FormatError.
func CodeOf(err error) (Code, bool) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	return 0, false
}

// errStop is the internal panic sentinel that unwinds a single parse
// operation back to its exported entry point, where it is recovered and
// turned into a regular returned error. It always carries a *FormatError
// as its payload; see (*FormatError) and the panic/recover boundary in
// each component's exported function.
type errStop struct {
	err error
}

func stop(code Code, format string, args ...any) {
	panic(errStop{newErr(code, format, args...)})
}

func stopAt(code Code, offset int64, box fourCC, format string, args ...any) {
	panic(errStop{newErrAt(code, offset, box, format, args...)})
}

// recoverStop recovers an errStop panic into *errp. It must be deferred
// at the top of every exported parse entry point. Any other panic value
// is re-panicked unchanged.
func recoverStop(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if es, ok := r.(errStop); ok {
		*errp = es.err
		return
	}
	panic(r)
}
