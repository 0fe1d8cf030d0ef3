package wax

import "fmt"

// LabelResolutionError is returned when a branch names a label deeper than the current nesting.
type LabelResolutionError struct {
	Depth   int
	Nesting int
}

func (e *LabelResolutionError) Error() string {
	return fmt.Sprintf("branch depth %d exceeds nesting depth %d", e.Depth, e.Nesting)
}

// IndexError is returned when an instruction refers to an entity that does not exist.
type IndexError struct {
	Space string
	Index uint32
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("unknown %s %d", e.Space, e.Index)
}

// FunctionError identifies the function whose reconstruction failed.
type FunctionError struct {
	Index uint32
	Name  string
	Err   error
}

func (e *FunctionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("function %d (%s): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("function %d: %v", e.Index, e.Err)
}

func (e *FunctionError) Unwrap() error {
	return e.Err
}
