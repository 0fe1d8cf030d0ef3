package ir

import (
	"fmt"

	"github.com/pgavlin/wasmir/wasm"
)

// Module is the reconstructed form of a WebAssembly module.
type Module struct {
	// Source is the decoded module the IR was reconstructed from.
	Source *wasm.Module

	Functions []*Function
	Globals   []*Global
	Data      []*DataSegment
	Elements  []*ElementSegment
	Start     *uint32
}

// Function returns the function with the given index.
func (m *Module) Function(index uint32) (*Function, bool) {
	if index >= uint32(len(m.Functions)) {
		return nil, false
	}
	return m.Functions[int(index)], true
}

// LookupFunction returns the first function whose name or export name matches name.
func (m *Module) LookupFunction(name string) (*Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
		for _, e := range f.Exports {
			if e == name {
				return f, true
			}
		}
	}
	return nil, false
}

// Function is a reconstructed function. Imported functions have an Import and no Body.
type Function struct {
	Index     uint32
	Name      string
	Signature wasm.FunctionSig
	Import    *wasm.ImportName
	Exports   []string

	// Locals holds the function's parameters followed by its declared locals.
	Locals []Local
	Body   *Sequence

	// Diagnostics records problems that were recovered from during reconstruction.
	Diagnostics []string
}

// IsImport returns true if the function is imported.
func (f *Function) IsImport() bool {
	return f.Import != nil
}

// FunctionName returns the display name of a function: its name if it has one, and "f<index>" otherwise.
func FunctionName(index uint32, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("f%d", index)
}

// Global is a module global. Init computes the initial value of a defined global.
type Global struct {
	Index   uint32
	Name    string
	Type    wasm.ValueType
	Mutable bool
	Import  *wasm.ImportName
	Exports []string
	Init    Stm
}

// InitValue returns the value computed by an initializer that consists of a single return.
func InitValue(init Stm) (Expr, bool) {
	for {
		switch s := init.(type) {
		case *Sequence:
			if len(s.Stms) != 1 {
				return nil, false
			}
			init = s.Stms[0]
		case *Return:
			return s.Value, s.Value != nil
		default:
			return nil, false
		}
	}
}

// DataSegment initializes a range of linear memory.
type DataSegment struct {
	MemoryIndex uint32
	Offset      Expr
	Data        []byte
}

// ElementSegment initializes a range of a table with function references.
type ElementSegment struct {
	TableIndex uint32
	Offset     Expr
	Functions  []uint32
}
