package ctxprof

import (
	"errors"
	"fmt"
)

// Decode failures. Every error returned by Reader wraps exactly one of these.
var (
	ErrBadMagic            = errors.New("ctxprof: invalid magic")
	ErrUnsupportedVersion  = errors.New("ctxprof: unsupported version")
	ErrUnexpectedStructure = errors.New("ctxprof: unexpected structure")
	ErrMalformedField      = errors.New("ctxprof: malformed field")
	ErrDuplicateRoot       = errors.New("ctxprof: duplicate root")
	ErrDuplicateCallee     = errors.New("ctxprof: duplicate callee at call site")
	ErrDuplicateFlatEntry  = errors.New("ctxprof: duplicate flat profile entry")
	ErrUnexpectedSection   = errors.New("ctxprof: unexpected section")
)

var taxonomy = []error{
	ErrBadMagic,
	ErrUnsupportedVersion,
	ErrUnexpectedStructure,
	ErrMalformedField,
	ErrDuplicateRoot,
	ErrDuplicateCallee,
	ErrDuplicateFlatEntry,
	ErrUnexpectedSection,
}

// fail builds a decode error of the given kind at the cursor position.
func (r *Reader) fail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w at bit %d: %s", kind, r.cur.BitOffset(), fmt.Sprintf(format, args...))
}

// wrap classifies a cursor failure as a structural error, keeping the cursor
// error in the chain.
func (r *Reader) wrap(err error) error {
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w at bit %d: %w", ErrUnexpectedStructure, r.cur.BitOffset(), err)
}
