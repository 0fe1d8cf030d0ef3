// Package wasmtest assembles WebAssembly binaries for tests.
package wasmtest

import (
	"bytes"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
	"github.com/pgavlin/wasmir/wasm/leb128"
)

// Func is a defined function.
type Func struct {
	Type   uint32
	Locals []wasm.LocalEntry
	Body   []code.Instruction
}

// Global is a defined global.
type Global struct {
	Type wasm.GlobalVar
	Init []code.Instruction
}

// Data is an active data segment.
type Data struct {
	Memory uint32
	Offset []code.Instruction
	Bytes  []byte
}

// Elem is an active element segment.
type Elem struct {
	Table  uint32
	Offset []code.Instruction
	Funcs  []uint32
}

// Module describes the contents of a binary module. Sections are emitted in the canonical order and only
// when non-empty.
type Module struct {
	Types     []wasm.FunctionSig
	Imports   []wasm.ImportEntry
	Funcs     []Func
	Tables    []wasm.Table
	Memories  []wasm.Memory
	Globals   []Global
	Exports   []wasm.ExportEntry
	Start     *uint32
	Elems     []Elem
	Data      []Data
	FuncNames []wasm.Naming

	// LabelNames is emitted as the label subsection of the name section.
	LabelNames []wasm.LocalNames

	// Extra holds raw sections appended after the known ones, keyed by section id.
	Extra []RawSection
}

// RawSection is an arbitrary section.
type RawSection struct {
	ID      byte
	Payload []byte
}

type writer struct {
	bytes.Buffer
}

func (w *writer) u32(v uint32) {
	leb128.WriteVarUint32(w, v)
}

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.WriteString(s)
}

func (w *writer) nameMap(names []wasm.Naming) {
	w.u32(uint32(len(names)))
	for _, n := range names {
		w.u32(n.Index)
		w.name(n.Name)
	}
}

func (w *writer) subsection(t wasm.NameType, payload *writer) {
	w.WriteByte(byte(t))
	w.u32(uint32(payload.Len()))
	w.Write(payload.Bytes())
}

func (w *writer) limits(l wasm.ResizableLimits) {
	w.u32(l.Flags)
	w.u32(l.Initial)
	if l.Flags&1 != 0 {
		w.u32(l.Maximum)
	}
}

func (w *writer) expr(instrs []code.Instruction) {
	if err := code.Encode(w, instrs); err != nil {
		panic(err)
	}
}

func (w *writer) section(id byte, payload *writer) {
	w.WriteByte(id)
	w.u32(uint32(payload.Len()))
	w.Write(payload.Bytes())
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	var out writer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(m.Types) != 0 {
		var s writer
		s.u32(uint32(len(m.Types)))
		for _, t := range m.Types {
			s.WriteByte(wasm.TypeFunc)
			s.u32(uint32(len(t.Params)))
			for _, p := range t.Params {
				s.WriteByte(byte(p))
			}
			results := t.Results()
			s.u32(uint32(len(results)))
			for _, r := range results {
				s.WriteByte(byte(r))
			}
		}
		out.section(byte(wasm.SectionIDType), &s)
	}

	if len(m.Imports) != 0 {
		var s writer
		s.u32(uint32(len(m.Imports)))
		for _, i := range m.Imports {
			s.name(i.ModuleName)
			s.name(i.FieldName)
			s.WriteByte(byte(i.Type.Kind()))
			switch t := i.Type.(type) {
			case wasm.FuncImport:
				s.u32(t.Type)
			case wasm.TableImport:
				s.WriteByte(wasm.ElemTypeFuncref)
				s.limits(t.Type.Limits)
			case wasm.MemoryImport:
				s.limits(t.Type.Limits)
			case wasm.GlobalVarImport:
				s.WriteByte(byte(t.Type.Type))
				s.globalMut(t.Type)
			}
		}
		out.section(byte(wasm.SectionIDImport), &s)
	}

	if len(m.Funcs) != 0 {
		var s writer
		s.u32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			s.u32(f.Type)
		}
		out.section(byte(wasm.SectionIDFunction), &s)
	}

	if len(m.Tables) != 0 {
		var s writer
		s.u32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			s.WriteByte(wasm.ElemTypeFuncref)
			s.limits(t.Limits)
		}
		out.section(byte(wasm.SectionIDTable), &s)
	}

	if len(m.Memories) != 0 {
		var s writer
		s.u32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			s.limits(mem.Limits)
		}
		out.section(byte(wasm.SectionIDMemory), &s)
	}

	if len(m.Globals) != 0 {
		var s writer
		s.u32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			s.WriteByte(byte(g.Type.Type))
			s.globalMut(g.Type)
			s.expr(g.Init)
		}
		out.section(byte(wasm.SectionIDGlobal), &s)
	}

	if len(m.Exports) != 0 {
		var s writer
		s.u32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			s.name(e.Name)
			s.WriteByte(byte(e.Kind))
			s.u32(e.Index)
		}
		out.section(byte(wasm.SectionIDExport), &s)
	}

	if m.Start != nil {
		var s writer
		s.u32(*m.Start)
		out.section(byte(wasm.SectionIDStart), &s)
	}

	if len(m.Elems) != 0 {
		var s writer
		s.u32(uint32(len(m.Elems)))
		for _, e := range m.Elems {
			if e.Table == 0 {
				s.u32(0)
				s.expr(e.Offset)
			} else {
				s.u32(2)
				s.u32(e.Table)
				s.expr(e.Offset)
				s.WriteByte(0)
			}
			s.u32(uint32(len(e.Funcs)))
			for _, f := range e.Funcs {
				s.u32(f)
			}
		}
		out.section(byte(wasm.SectionIDElement), &s)
	}

	if len(m.Funcs) != 0 {
		var s writer
		s.u32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body writer
			body.u32(uint32(len(f.Locals)))
			for _, l := range f.Locals {
				body.u32(l.Count)
				body.WriteByte(byte(l.Type))
			}
			body.expr(f.Body)
			s.u32(uint32(body.Len()))
			s.Write(body.Bytes())
		}
		out.section(byte(wasm.SectionIDCode), &s)
	}

	if len(m.Data) != 0 {
		var s writer
		s.u32(uint32(len(m.Data)))
		for _, d := range m.Data {
			if d.Memory == 0 {
				s.u32(0)
			} else {
				s.u32(2)
				s.u32(d.Memory)
			}
			s.expr(d.Offset)
			s.u32(uint32(len(d.Bytes)))
			s.Write(d.Bytes)
		}
		out.section(byte(wasm.SectionIDData), &s)
	}

	if len(m.FuncNames) != 0 || len(m.LabelNames) != 0 {
		var s writer
		s.name(wasm.CustomSectionName)
		if len(m.FuncNames) != 0 {
			var names writer
			names.nameMap(m.FuncNames)
			s.subsection(wasm.NameFunction, &names)
		}
		if len(m.LabelNames) != 0 {
			var names writer
			names.u32(uint32(len(m.LabelNames)))
			for _, f := range m.LabelNames {
				names.u32(f.Index)
				names.nameMap(f.Names)
			}
			s.subsection(wasm.NameLabel, &names)
		}
		out.section(byte(wasm.SectionIDCustom), &s)
	}

	for _, x := range m.Extra {
		var s writer
		s.Write(x.Payload)
		out.section(x.ID, &s)
	}

	return out.Bytes()
}

func (w *writer) globalMut(g wasm.GlobalVar) {
	if g.Mutable {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

// Sig is shorthand for a function signature.
func Sig(result wasm.ValueType, params ...wasm.ValueType) wasm.FunctionSig {
	return wasm.FunctionSig{Params: params, Result: result}
}
