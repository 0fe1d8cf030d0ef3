package wast

import "fmt"

// SyntaxError describes malformed text.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v: %s", e.Pos, e.Msg)
}

// NameResolutionError is returned when a symbolic reference does not name a declared entity.
type NameResolutionError struct {
	Kind string
	Name string
}

func (e *NameResolutionError) Error() string {
	return fmt.Sprintf("can't find %s '%s'", e.Kind, e.Name)
}

// FieldError identifies the module field whose translation failed.
type FieldError struct {
	Pos   Pos
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Pos, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
