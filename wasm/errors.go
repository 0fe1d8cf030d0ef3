package wasm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMagic   = errors.New("magic header not detected")
	ErrInvalidVersion = errors.New("unknown binary version")
)

// FormatError is returned when a module's binary encoding is malformed. The error aborts the decode of
// the whole module.
type FormatError struct {
	Offset  int64
	Section string // the name of the enclosing section, if any
	Err     error
}

func (e *FormatError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("wasm: malformed module at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("wasm: malformed %s section at offset %d: %v", e.Section, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// UnsupportedError is returned for constructs that are well-formed WebAssembly but that this package
// does not model, e.g. a function type with more than one result.
type UnsupportedError struct {
	What string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("wasm: unsupported construct: %s", e.What)
}

// IsUnsupported returns true if err is or wraps an UnsupportedError.
func IsUnsupported(err error) bool {
	var u *UnsupportedError
	return errors.As(err, &u)
}
