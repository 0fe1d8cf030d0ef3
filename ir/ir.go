// Package ir defines the structured, statement-oriented representation that WebAssembly function bodies
// are reconstructed into.
//
// Expressions are pure trees; anything with an observable side effect is a statement. The node set is
// closed: the only implementations of Expr and Stm are the types in this package.
package ir

import (
	"math"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
)

// A Node is an Expr or a Stm.
type Node interface {
	node()
}

// An Expr is a side-effect-free value computation.
type Expr interface {
	Node

	// Type returns the type of the value the expression produces.
	Type() wasm.ValueType

	expr()
}

// A Stm is a statement.
type Stm interface {
	Node

	stm()
}

// LabelKind distinguishes the two kinds of branch targets.
type LabelKind uint8

const (
	// Break labels are attached to blocks and ifs; branching to one exits the construct.
	Break LabelKind = iota
	// Continue labels are attached to loops; branching to one restarts the loop.
	Continue
)

func (k LabelKind) String() string {
	if k == Continue {
		return "continue"
	}
	return "break"
}

// A Label names a structured construct. Its Type is the construct's declared result type.
type Label struct {
	Kind LabelKind
	Name string
	Type wasm.ValueType
}

// Local identifies a function local. Temporaries introduced during reconstruction have Temp set and
// are keyed by their stack position and type rather than by a local index.
type Local struct {
	Index uint32
	Type  wasm.ValueType
	Temp  bool
}

// Const is a constant. Bits holds the raw bit pattern of the value.
type Const struct {
	ValueType wasm.ValueType
	Bits      uint64
}

func I32Const(v int32) *Const {
	return &Const{ValueType: wasm.ValueTypeI32, Bits: uint64(uint32(v))}
}

func I64Const(v int64) *Const {
	return &Const{ValueType: wasm.ValueTypeI64, Bits: uint64(v)}
}

func F32Const(v float32) *Const {
	return &Const{ValueType: wasm.ValueTypeF32, Bits: uint64(math.Float32bits(v))}
}

func F64Const(v float64) *Const {
	return &Const{ValueType: wasm.ValueTypeF64, Bits: math.Float64bits(v)}
}

func (c *Const) I32() int32 { return int32(c.Bits) }

func (c *Const) I64() int64 { return int64(c.Bits) }

func (c *Const) F32() float32 { return math.Float32frombits(uint32(c.Bits)) }

func (c *Const) F64() float64 { return math.Float64frombits(c.Bits) }

// LocalRef reads a local or a temporary.
type LocalRef struct {
	Local Local
}

// GlobalRef reads a global.
type GlobalRef struct {
	Index     uint32
	ValueType wasm.ValueType
}

// Unop applies a unary operator. Op is the operator's opcode.
type Unop struct {
	Op        code.Opcode
	ValueType wasm.ValueType
	X         Expr
}

// Binop applies a binary operator. Op is the operator's opcode.
type Binop struct {
	Op        code.Opcode
	ValueType wasm.ValueType
	X, Y      Expr
}

// Ternary evaluates to X if Cond is non-zero and Y otherwise.
type Ternary struct {
	Cond      Expr
	X, Y      Expr
	ValueType wasm.ValueType
}

// Call calls a function that returns a value.
type Call struct {
	Func      uint32
	ValueType wasm.ValueType
	Args      []Expr
}

// CallIndirect calls the function stored at index Callee of a table.
type CallIndirect struct {
	TypeIndex uint32
	Table     uint32
	Callee    Expr
	Args      []Expr
	ValueType wasm.ValueType
}

// MemoryRead loads a value from linear memory. Op is the load opcode.
type MemoryRead struct {
	Op        code.Opcode
	ValueType wasm.ValueType
	Addr      Expr
	Offset    uint32
	Align     uint32
}

// MemorySize returns the current size of linear memory in pages.
type MemorySize struct{}

// MemoryGrow grows linear memory and returns its previous size in pages, or -1.
type MemoryGrow struct {
	Delta Expr
}

// Phi stands for the value a structured construct produces when control falls out of it.
type Phi struct {
	Label *Label
}

// InvalidExpr replaces an operand that could not be reconstructed.
type InvalidExpr struct {
	Message   string
	ValueType wasm.ValueType
}

func (*Const) node()        {}
func (*LocalRef) node()     {}
func (*GlobalRef) node()    {}
func (*Unop) node()         {}
func (*Binop) node()        {}
func (*Ternary) node()      {}
func (*Call) node()         {}
func (*CallIndirect) node() {}
func (*MemoryRead) node()   {}
func (*MemorySize) node()   {}
func (*MemoryGrow) node()   {}
func (*Phi) node()          {}
func (*InvalidExpr) node()  {}

func (*Const) expr()        {}
func (*LocalRef) expr()     {}
func (*GlobalRef) expr()    {}
func (*Unop) expr()         {}
func (*Binop) expr()        {}
func (*Ternary) expr()      {}
func (*Call) expr()         {}
func (*CallIndirect) expr() {}
func (*MemoryRead) expr()   {}
func (*MemorySize) expr()   {}
func (*MemoryGrow) expr()   {}
func (*Phi) expr()          {}
func (*InvalidExpr) expr()  {}

func (x *Const) Type() wasm.ValueType        { return x.ValueType }
func (x *LocalRef) Type() wasm.ValueType     { return x.Local.Type }
func (x *GlobalRef) Type() wasm.ValueType    { return x.ValueType }
func (x *Unop) Type() wasm.ValueType         { return x.ValueType }
func (x *Binop) Type() wasm.ValueType        { return x.ValueType }
func (x *Ternary) Type() wasm.ValueType      { return x.ValueType }
func (x *Call) Type() wasm.ValueType         { return x.ValueType }
func (x *CallIndirect) Type() wasm.ValueType { return x.ValueType }
func (x *MemoryRead) Type() wasm.ValueType   { return x.ValueType }
func (*MemorySize) Type() wasm.ValueType     { return wasm.ValueTypeI32 }
func (*MemoryGrow) Type() wasm.ValueType     { return wasm.ValueTypeI32 }
func (x *Phi) Type() wasm.ValueType          { return x.Label.Type }
func (x *InvalidExpr) Type() wasm.ValueType  { return x.ValueType }

// Sequence is a list of statements executed in order.
type Sequence struct {
	Stms []Stm
}

// Append adds statements to the end of the sequence.
func (s *Sequence) Append(stms ...Stm) {
	s.Stms = append(s.Stms, stms...)
}

// Last returns the final statement of the sequence, or nil if it is empty.
func (s *Sequence) Last() Stm {
	if len(s.Stms) == 0 {
		return nil
	}
	return s.Stms[len(s.Stms)-1]
}

type Block struct {
	Label *Label
	Body  *Sequence
}

type Loop struct {
	Label *Label
	Body  *Sequence
}

type If struct {
	Label *Label
	Cond  Expr
	Then  *Sequence
}

type IfElse struct {
	Label *Label
	Cond  Expr
	Then  *Sequence
	Else  *Sequence
}

type SetLocal struct {
	Local Local
	Value Expr
}

type SetGlobal struct {
	Index uint32
	Value Expr
}

type Return struct {
	Value Expr
}

type ReturnVoid struct{}

// ExpressionStatement evaluates an expression and discards its result.
type ExpressionStatement struct {
	X Expr
}

type MemoryWrite struct {
	Op     code.Opcode
	Addr   Expr
	Value  Expr
	Offset uint32
	Align  uint32
}

type Branch struct {
	Label *Label
}

type BranchIf struct {
	Label *Label
	Cond  Expr
}

// BranchTable branches to Labels[Index], or to Default if Index is out of range.
type BranchTable struct {
	Index   Expr
	Labels  []*Label
	Default *Label
}

// SetPhi assigns the value a construct produces when control leaves it through Label.
type SetPhi struct {
	Label *Label
	Value Expr
}

type Unreachable struct{}

type Nop struct{}

func (*Sequence) node()            {}
func (*Block) node()               {}
func (*Loop) node()                {}
func (*If) node()                  {}
func (*IfElse) node()              {}
func (*SetLocal) node()            {}
func (*SetGlobal) node()           {}
func (*Return) node()              {}
func (*ReturnVoid) node()          {}
func (*ExpressionStatement) node() {}
func (*MemoryWrite) node()         {}
func (*Branch) node()              {}
func (*BranchIf) node()            {}
func (*BranchTable) node()         {}
func (*SetPhi) node()              {}
func (*Unreachable) node()         {}
func (*Nop) node()                 {}

func (*Sequence) stm()            {}
func (*Block) stm()               {}
func (*Loop) stm()                {}
func (*If) stm()                  {}
func (*IfElse) stm()              {}
func (*SetLocal) stm()            {}
func (*SetGlobal) stm()           {}
func (*Return) stm()              {}
func (*ReturnVoid) stm()          {}
func (*ExpressionStatement) stm() {}
func (*MemoryWrite) stm()         {}
func (*Branch) stm()              {}
func (*BranchIf) stm()            {}
func (*BranchTable) stm()         {}
func (*SetPhi) stm()              {}
func (*Unreachable) stm()         {}
func (*Nop) stm()                 {}

// IsTerminator returns true if control never falls through s.
func IsTerminator(s Stm) bool {
	switch s.(type) {
	case *Return, *ReturnVoid, *Unreachable, *Branch, *BranchTable:
		return true
	}
	return false
}

// IsPure returns true if evaluating x has no side effects and cannot trap. A pure expression may still
// read variables or memory state.
func IsPure(x Expr) bool {
	switch x := x.(type) {
	case *Const, *LocalRef, *GlobalRef, *Phi, *MemorySize:
		return true
	case *Unop:
		return !mayTrap(x.Op) && IsPure(x.X)
	case *Binop:
		return !mayTrap(x.Op) && IsPure(x.X) && IsPure(x.Y)
	case *Ternary:
		return IsPure(x.Cond) && IsPure(x.X) && IsPure(x.Y)
	default:
		return false
	}
}

// IsTrivial returns true if x is a constant or a variable read.
func IsTrivial(x Expr) bool {
	switch x.(type) {
	case *Const, *LocalRef, *GlobalRef:
		return true
	}
	return false
}

func mayTrap(op code.Opcode) bool {
	switch op {
	case code.OpI32DivS, code.OpI32DivU, code.OpI32RemS, code.OpI32RemU,
		code.OpI64DivS, code.OpI64DivU, code.OpI64RemS, code.OpI64RemU,
		code.OpI32TruncF32S, code.OpI32TruncF32U, code.OpI32TruncF64S, code.OpI32TruncF64U,
		code.OpI64TruncF32S, code.OpI64TruncF32U, code.OpI64TruncF64S, code.OpI64TruncF64U:
		return true
	}
	return false
}
