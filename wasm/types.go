// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/pgavlin/wasmir/wasm/leb128"
)

// ValueType represents the type of a valid value in Wasm
type ValueType uint8

const (
	ValueTypeVoid ValueType = 0x40
	ValueTypeI32  ValueType = 0x7f
	ValueTypeI64  ValueType = 0x7e
	ValueTypeF32  ValueType = 0x7d
	ValueTypeF64  ValueType = 0x7c
	ValueTypeV128 ValueType = 0x7b
)

var valueTypeStrMap = map[ValueType]string{
	ValueTypeVoid: "void",
	ValueTypeI32:  "i32",
	ValueTypeI64:  "i64",
	ValueTypeF32:  "f32",
	ValueTypeF64:  "f64",
	ValueTypeV128: "v128",
}

func (t ValueType) String() string {
	str, ok := valueTypeStrMap[t]
	if !ok {
		str = fmt.Sprintf("<unknown value_type %d>", int8(t))
	}
	return str
}

// IsValid returns true if t is one of the non-void value types.
func (t ValueType) IsValid() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128:
		return true
	}
	return false
}

// ParseValueType returns the value type with the given text name.
func ParseValueType(name string) (ValueType, bool) {
	for t, n := range valueTypeStrMap {
		if n == name && t != ValueTypeVoid {
			return t, true
		}
	}
	return 0, false
}

// InvalidValueTypeError is returned when a byte that does not encode a value type is encountered.
type InvalidValueTypeError byte

func (e InvalidValueTypeError) Error() string {
	return fmt.Sprintf("wasm: invalid value type 0x%02x", byte(e))
}

func (t *ValueType) UnmarshalWASM(r io.Reader) error {
	b, err := readByte(r)
	if err != nil {
		return err
	}
	v := ValueType(b)
	if !v.IsValid() {
		return InvalidValueTypeError(b)
	}
	*t = v
	return nil
}

// TypeFunc is the form byte that introduces a function type.
const TypeFunc byte = 0x60

// FunctionSig describes the signature of a declared function in a WASM module. A signature has at
// most one result; Result is ValueTypeVoid, or zero, if the function returns nothing.
type FunctionSig struct {
	Params []ValueType
	Result ValueType
}

// NewFunctionSig builds a signature from a parameter list and a result list. More than one result is
// rejected with an UnsupportedError.
func NewFunctionSig(params, results []ValueType) (FunctionSig, error) {
	sig := FunctionSig{Params: params, Result: ValueTypeVoid}
	switch len(results) {
	case 0:
	case 1:
		sig.Result = results[0]
	default:
		return FunctionSig{}, &UnsupportedError{What: fmt.Sprintf("function type with %d results", len(results))}
	}
	return sig, nil
}

// ResultType returns the signature's result, or ValueTypeVoid if it has none. A zero Result means void.
func (f FunctionSig) ResultType() ValueType {
	if f.Result == 0 {
		return ValueTypeVoid
	}
	return f.Result
}

// HasResult returns true if the signature produces a value.
func (f FunctionSig) HasResult() bool {
	return f.ResultType() != ValueTypeVoid
}

// Results returns the signature's results as a list of zero or one types.
func (f FunctionSig) Results() []ValueType {
	if !f.HasResult() {
		return nil
	}
	return []ValueType{f.Result}
}

// Equals returns true if f and g describe the same signature.
func (f FunctionSig) Equals(g FunctionSig) bool {
	if len(f.Params) != len(g.Params) || f.ResultType() != g.ResultType() {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != g.Params[i] {
			return false
		}
	}
	return true
}

func (f FunctionSig) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	b.WriteString(f.ResultType().String())
	return b.String()
}

func (f *FunctionSig) UnmarshalWASM(r io.Reader) error {
	form, err := readByte(r)
	if err != nil {
		return err
	}
	if form != TypeFunc {
		return fmt.Errorf("wasm: invalid function type form 0x%02x", form)
	}

	params, err := readValueTypes(r)
	if err != nil {
		return err
	}
	results, err := readValueTypes(r)
	if err != nil {
		return err
	}

	sig, err := NewFunctionSig(params, results)
	if err != nil {
		return err
	}
	*f = sig
	return nil
}

func readValueTypes(r io.Reader) ([]ValueType, error) {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	var types []ValueType
	for i := uint32(0); i < count; i++ {
		var t ValueType
		if err := t.UnmarshalWASM(r); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// GlobalVar describes the type and mutability of a declared global variable
type GlobalVar struct {
	Type    ValueType // Type of the value stored by the variable
	Mutable bool      // Whether the value of the variable can be changed by the set_global operator
}

func (g *GlobalVar) UnmarshalWASM(r io.Reader) error {
	if err := g.Type.UnmarshalWASM(r); err != nil {
		return err
	}

	m, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	switch m {
	case 0:
	case 1:
		g.Mutable = true
	default:
		return fmt.Errorf("wasm: invalid global mutability %d", m)
	}
	return nil
}

// ElemTypeFuncref is the only table element type a table may declare.
const ElemTypeFuncref byte = 0x70

// ResizableLimits describe the limit of a table or linear memory.
type ResizableLimits struct {
	Flags   uint32 // 1 if the Maximum field is valid
	Initial uint32 // initial length (in units of table elements or wasm pages)
	Maximum uint32 // If flags is 1, it describes the maximum size of the table or memory
}

func (lim *ResizableLimits) UnmarshalWASM(r io.Reader) error {
	var err error
	if lim.Flags, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	if lim.Flags > 1 {
		return &UnsupportedError{What: fmt.Sprintf("limits flags 0x%x", lim.Flags)}
	}
	if lim.Initial, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	if lim.Flags&0x1 != 0 {
		if lim.Maximum, err = leb128.ReadVarUint32(r); err != nil {
			return err
		}
	}
	return nil
}

// Table describes a table in a Wasm module.
type Table struct {
	// The type of elements
	ElementType byte
	Limits      ResizableLimits
}

func (t *Table) UnmarshalWASM(r io.Reader) error {
	b, err := readByte(r)
	if err != nil {
		return err
	}
	if b != ElemTypeFuncref {
		return &UnsupportedError{What: fmt.Sprintf("table element type 0x%02x", b)}
	}
	t.ElementType = b
	return t.Limits.UnmarshalWASM(r)
}

// Memory describes a linear memory.
type Memory struct {
	Limits ResizableLimits
}

func (m *Memory) UnmarshalWASM(r io.Reader) error {
	return m.Limits.UnmarshalWASM(r)
}

// External describes the kind of the entry being imported or exported.
type External uint8

const (
	ExternalFunction External = 0
	ExternalTable    External = 1
	ExternalMemory   External = 2
	ExternalGlobal   External = 3
)

func (e External) String() string {
	switch e {
	case ExternalFunction:
		return "function"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return "<unknown external_kind>"
	}
}

func (e *External) UnmarshalWASM(r io.Reader) error {
	b, err := readByte(r)
	if err != nil {
		return err
	}
	if b > byte(ExternalGlobal) {
		return InvalidExternalError(b)
	}
	*e = External(b)
	return nil
}

// InvalidExternalError is returned when an import or export names an unknown kind.
type InvalidExternalError uint8

func (e InvalidExternalError) Error() string {
	return fmt.Sprintf("wasm: invalid external_kind value %d", uint8(e))
}
