// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pgavlin/wasmir/wasm/internal/readpos"
)

const (
	Magic   uint32 = 0x6d736100
	Version uint32 = 0x1
)

// MaxLocals bounds the number of locals a single function may declare.
const MaxLocals = 50000

// Function represents an entry in the function index space of a module. Imported functions have an
// Import and no Body; defined functions have a Body and no Import.
type Function struct {
	Index     uint32
	Name      string
	TypeIndex uint32
	Sig       FunctionSig
	Import    *ImportName
	Exports   []string

	// Locals holds the function's parameters followed by its declared locals, one entry per local.
	Locals []Local
	Body   *FunctionBody

	// LabelNames maps the ordinal of a block, loop, or if instruction within the body to its name.
	LabelNames map[uint32]string
}

// IsImport returns true if the function is imported.
func (f *Function) IsImport() bool {
	return f.Import != nil
}

// Local is a parameter or local variable of a function. Locals are compared by value.
type Local struct {
	Index uint32
	Type  ValueType
}

// Global represents an entry in the global index space of a module.
type Global struct {
	Index   uint32
	Name    string
	Type    GlobalVar
	Import  *ImportName
	Exports []string

	// Init is the raw initializer expression of a defined global.
	Init []byte
}

// Module represents a parsed WebAssembly module:
// http://webassembly.org/docs/modules/
//
// A Module is built once by a decoder and is read-only afterwards.
type Module struct {
	Version  uint32
	Sections []Section

	Types    *SectionTypes
	Import   *SectionImports
	Function *SectionFunctions
	Table    *SectionTables
	Memory   *SectionMemories
	Global   *SectionGlobals
	Export   *SectionExports
	Start    *SectionStartFunction
	Elements *SectionElements
	Code     *SectionCode
	Data     *SectionData
	Customs  []*SectionCustom

	// The function and global index spaces. Imports occupy the lowest indices.
	Functions []*Function
	Globals   []*Global

	// The number of tables and memories, including imports.
	TableCount  int
	MemoryCount int
}

// NewModule creates a new empty module
func NewModule() *Module {
	return &Module{
		Version:  Version,
		Types:    &SectionTypes{},
		Import:   &SectionImports{},
		Function: &SectionFunctions{},
		Table:    &SectionTables{},
		Memory:   &SectionMemories{},
		Global:   &SectionGlobals{},
		Export:   &SectionExports{},
		Elements: &SectionElements{},
		Code:     &SectionCode{},
		Data:     &SectionData{},
	}
}

// Names returns the names section. If no names section exists, this function returns a MissingSectionError.
func (m *Module) Names() (*NameSection, error) {
	s := m.Custom(CustomSectionName)
	if s == nil {
		return nil, MissingSectionError(0)
	}

	var names NameSection
	if err := names.UnmarshalWASM(bytes.NewReader(s.Data)); err != nil {
		return nil, err
	}
	return &names, nil
}

// Custom returns a custom section with a specific name, if it exists.
func (m *Module) Custom(name string) *SectionCustom {
	for _, s := range m.Customs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// GetType returns the signature with the given index.
func (m *Module) GetType(typeidx uint32) (FunctionSig, bool) {
	if m.Types == nil || typeidx >= uint32(len(m.Types.Entries)) {
		return FunctionSig{}, false
	}
	return m.Types.Entries[int(typeidx)], true
}

// GetFunction returns the function with the given index in the function index space.
func (m *Module) GetFunction(funcidx uint32) (*Function, bool) {
	if funcidx >= uint32(len(m.Functions)) {
		return nil, false
	}
	return m.Functions[int(funcidx)], true
}

// GetGlobal returns the global with the given index in the global index space.
func (m *Module) GetGlobal(globalidx uint32) (*Global, bool) {
	if globalidx >= uint32(len(m.Globals)) {
		return nil, false
	}
	return m.Globals[int(globalidx)], true
}

// DecodeModule decodes a WASM module.
func DecodeModule(r io.Reader) (*Module, error) {
	reader := &readpos.ReadPos{
		R:      r,
		CurPos: 0,
	}
	m := &Module{}
	magic, err := readU32(reader)
	if err != nil {
		return nil, &FormatError{Offset: reader.CurPos, Err: truncated(err)}
	}
	if magic != Magic {
		return nil, &FormatError{Offset: 0, Err: ErrInvalidMagic}
	}
	if m.Version, err = readU32(reader); err != nil {
		return nil, &FormatError{Offset: reader.CurPos, Err: truncated(err)}
	}
	if m.Version != Version {
		return nil, &FormatError{Offset: 4, Err: fmt.Errorf("%w %d", ErrInvalidVersion, m.Version)}
	}

	if err := (&sectionDecoder{m: m}).decodeAll(reader); err != nil {
		return nil, err
	}
	if err := m.Link(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustDecode decodes a WASM module and panics on failure.
func MustDecode(r io.Reader) *Module {
	m, err := DecodeModule(r)
	if err != nil {
		panic(fmt.Errorf("decoding module: %w", err))
	}
	return m
}

// Link builds the function and global index spaces from the module's sections. DecodeModule links the
// modules it returns; modules assembled section by section must be linked before use.
func (m *Module) Link() error {
	m.Functions, m.Globals, m.TableCount, m.MemoryCount = nil, nil, 0, 0

	if m.Import != nil {
		for _, entry := range m.Import.Entries {
			name := &ImportName{Module: entry.ModuleName, Field: entry.FieldName}
			switch i := entry.Type.(type) {
			case FuncImport:
				sig, ok := m.GetType(i.Type)
				if !ok {
					return m.sectionError(SectionIDImport, fmt.Errorf("unknown type %d for imported function %v", i.Type, name))
				}
				m.Functions = append(m.Functions, &Function{
					Index:     uint32(len(m.Functions)),
					TypeIndex: i.Type,
					Sig:       sig,
					Import:    name,
				})
			case GlobalVarImport:
				m.Globals = append(m.Globals, &Global{
					Index:  uint32(len(m.Globals)),
					Type:   i.Type,
					Import: name,
				})
			case TableImport:
				m.TableCount++
			case MemoryImport:
				m.MemoryCount++
			}
		}
	}
	if m.Table != nil {
		m.TableCount += len(m.Table.Entries)
	}
	if m.Memory != nil {
		m.MemoryCount += len(m.Memory.Entries)
	}

	var types []uint32
	if m.Function != nil {
		types = m.Function.Types
	}
	var bodies []FunctionBody
	if m.Code != nil {
		bodies = m.Code.Bodies
	}
	if len(types) != len(bodies) {
		return m.sectionError(SectionIDCode, fmt.Errorf("function and code section have inconsistent lengths (%d vs. %d)", len(types), len(bodies)))
	}
	for i, typeidx := range types {
		sig, ok := m.GetType(typeidx)
		if !ok {
			return m.sectionError(SectionIDFunction, fmt.Errorf("unknown type %d for function %d", typeidx, i))
		}
		body := &bodies[i]
		if uint64(len(sig.Params))+body.LocalCount() > MaxLocals {
			return m.sectionError(SectionIDCode, fmt.Errorf("too many locals in function %d", i))
		}

		fn := &Function{
			Index:     uint32(len(m.Functions)),
			TypeIndex: typeidx,
			Sig:       sig,
			Body:      body,
		}
		fn.Locals = ExpandLocals(sig, body.Locals)
		m.Functions = append(m.Functions, fn)
	}

	if m.Global != nil {
		for _, g := range m.Global.Globals {
			m.Globals = append(m.Globals, &Global{
				Index: uint32(len(m.Globals)),
				Type:  g.Type,
				Init:  g.Init,
			})
		}
	}

	if m.Export != nil {
		for _, e := range m.Export.Entries {
			switch e.Kind {
			case ExternalFunction:
				f, ok := m.GetFunction(e.Index)
				if !ok {
					return m.sectionError(SectionIDExport, fmt.Errorf("export %q refers to unknown function %d", e.Name, e.Index))
				}
				f.Exports = append(f.Exports, e.Name)
			case ExternalGlobal:
				g, ok := m.GetGlobal(e.Index)
				if !ok {
					return m.sectionError(SectionIDExport, fmt.Errorf("export %q refers to unknown global %d", e.Name, e.Index))
				}
				g.Exports = append(g.Exports, e.Name)
			}
		}
	}

	if names, err := m.Names(); err == nil {
		for _, sub := range names.Entries {
			switch sub := sub.(type) {
			case *FunctionNamesSubsection:
				for _, n := range sub.Names {
					if f, ok := m.GetFunction(n.Index); ok {
						f.Name = n.Name
					}
				}
			case *LabelNamesSubsection:
				for _, fn := range sub.Funcs {
					f, ok := m.GetFunction(fn.Index)
					if !ok {
						continue
					}
					f.LabelNames = make(map[uint32]string, len(fn.Names))
					for _, n := range fn.Names {
						f.LabelNames[n.Index] = n.Name
					}
				}
			}
		}
	} else if _, missing := err.(MissingSectionError); !missing {
		Logger().Warn("ignoring malformed name section")
	}

	return nil
}

func (m *Module) sectionError(id SectionID, err error) error {
	fe := &FormatError{Section: id.String(), Err: err}
	for _, s := range m.Sections {
		if s.SectionID() == id {
			fe.Offset = s.GetRawSection().Start
		}
	}
	return fe
}

// ExpandLocals returns the full local list of a function with the given signature and run-length
// encoded local declarations: parameters first, then one Local per declared repetition.
func ExpandLocals(sig FunctionSig, entries []LocalEntry) []Local {
	locals := make([]Local, 0, len(sig.Params))
	for _, p := range sig.Params {
		locals = append(locals, Local{Index: uint32(len(locals)), Type: p})
	}
	for _, e := range entries {
		for i := uint32(0); i < e.Count; i++ {
			locals = append(locals, Local{Index: uint32(len(locals)), Type: e.Type})
		}
	}
	return locals
}
