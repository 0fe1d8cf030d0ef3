package wax

import (
	"errors"
	"fmt"

	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
	"go.uber.org/zap"
)

// - form expression trees by stacking instructions
// - spill the stack to temps before emitting any statement
// - each structured construct starts with an empty stack; its result leaves through a phi
// - code after an unconditional transfer is skipped until the enclosing else or end
//
// temps are keyed by absolute stack position (the heights of all enclosing stacks plus the position
// within the innermost one) and type, so re-spilling a slot reuses its temp.

var (
	errFinished       = errors.New("instruction after the end of the function")
	errUnfinished     = errors.New("function body is missing its final end")
	errElseWithoutIf  = errors.New("else without matching if")
	errBlockParams    = &wasm.UnsupportedError{What: "block parameters"}
	errUnknownOperand = errors.New("instruction has no stack behavior")
)

type frame struct {
	label  *ir.Label
	opcode code.Opcode
	body   *ir.Sequence
	stack  []ir.Expr
	base   int

	// if frames only
	parent  *ir.Sequence
	ifStm   *ir.If
	hasElse bool

	unreachable bool
}

// Function reconstructs a structured body from a function's instruction stream. Instructions are fed to
// the function one at a time in stream order, ending with the end instruction that closes the body.
type Function struct {
	Index     uint32
	Signature wasm.FunctionSig
	Locals    []ir.Local

	options Options
	scope   code.Scope

	body        *ir.Sequence
	frames      []*frame
	labels      int
	dead        int
	exit        *ir.Label
	exitTargets bool
	finished    bool

	ip          int
	instr       code.Instruction
	diagnostics []string
}

// NewFunction creates a builder for the body of a function with the given signature and locals.
func NewFunction(index uint32, signature wasm.FunctionSig, locals []wasm.Local, scope code.Scope, options Options) *Function {
	signature.Result = signature.ResultType()
	f := &Function{
		Index:     index,
		Signature: signature,
		options:   options,
		scope:     scope,
		body:      &ir.Sequence{},
		exit:      &ir.Label{Kind: ir.Break, Name: "exit", Type: signature.Result},
		ip:        -1,
	}
	for _, l := range locals {
		f.Locals = append(f.Locals, ir.Local{Index: l.Index, Type: l.Type})
	}
	f.frames = []*frame{{label: f.exit, opcode: code.OpBlock, body: f.body}}
	return f
}

// Diagnostics returns the problems recovered from so far.
func (f *Function) Diagnostics() []string {
	return f.diagnostics
}

// Finish returns the reconstructed body. It fails if the final end has not been imported.
func (f *Function) Finish() (*ir.Sequence, error) {
	if !f.finished {
		return nil, errUnfinished
	}
	return f.body, nil
}

// ImportInstruction adds the next instruction of the stream to the body.
func (f *Function) ImportInstruction(instr code.Instruction) error {
	return f.ImportNamedBlock(instr, "")
}

// ImportNamedBlock adds the next instruction of the stream to the body. If the instruction opens a block,
// loop, or if and name is non-empty, name is used for the construct's label.
func (f *Function) ImportNamedBlock(instr code.Instruction, name string) error {
	if f.finished {
		return errFinished
	}
	f.ip, f.instr = f.ip+1, instr

	if f.top().unreachable {
		return f.importDead(instr)
	}
	return f.importLive(instr, name)
}

func (f *Function) top() *frame {
	return f.frames[len(f.frames)-1]
}

func (f *Function) importDead(instr code.Instruction) error {
	switch instr.Opcode {
	case code.OpBlock, code.OpLoop, code.OpIf:
		f.dead++
	case code.OpElse:
		if f.dead == 0 {
			return f.elseBranch()
		}
	case code.OpEnd:
		if f.dead > 0 {
			f.dead--
			return nil
		}
		return f.end()
	}
	return nil
}

func (f *Function) importLive(instr code.Instruction, name string) error {
	const I32 = wasm.ValueTypeI32

	info, err := instr.Info()
	if err != nil {
		return err
	}

	switch instr.Opcode {
	case code.OpUnreachable:
		f.discard()
		f.append(&ir.Unreachable{})
		f.top().unreachable = true
	case code.OpNop:
		f.append(&ir.Nop{})

	case code.OpBlock, code.OpLoop, code.OpIf:
		return f.enter(instr, name)
	case code.OpElse:
		return f.elseBranch()
	case code.OpEnd:
		return f.end()

	case code.OpBr:
		return f.br(instr.Labelidx())
	case code.OpBrIf:
		return f.brIf(instr.Labelidx())
	case code.OpBrTable:
		return f.brTable(instr.Labels, instr.Default())
	case code.OpReturn:
		f.ret()

	case code.OpCall:
		sig, ok := f.scope.GetFunctionSignature(instr.Funcidx())
		if !ok {
			return &IndexError{Space: "function", Index: instr.Funcidx()}
		}
		args := f.popArgs(sig.Params)
		f.call(&ir.Call{Func: instr.Funcidx(), ValueType: sig.ResultType(), Args: args})
	case code.OpCallIndirect:
		sig, ok := f.scope.GetType(instr.Typeidx())
		if !ok {
			return &IndexError{Space: "type", Index: instr.Typeidx()}
		}
		callee := f.pop(I32)
		args := f.popArgs(sig.Params)
		f.call(&ir.CallIndirect{TypeIndex: instr.Typeidx(), Callee: callee, Args: args, ValueType: sig.ResultType()})

	case code.OpDrop:
		if x := f.pop(wasm.ValueTypeVoid); !ir.IsPure(x) {
			f.emit(&ir.ExpressionStatement{X: x})
		}
	case code.OpSelect:
		f.selectValue()

	case code.OpLocalGet:
		l, err := f.local(instr.Localidx())
		if err != nil {
			return err
		}
		f.push(&ir.LocalRef{Local: l})
	case code.OpLocalSet, code.OpLocalTee:
		l, err := f.local(instr.Localidx())
		if err != nil {
			return err
		}
		f.emit(&ir.SetLocal{Local: l, Value: f.pop(l.Type)})
		if instr.Opcode == code.OpLocalTee {
			f.push(&ir.LocalRef{Local: l})
		}
	case code.OpGlobalGet:
		g, ok := f.scope.GetGlobalType(instr.Globalidx())
		if !ok {
			return &IndexError{Space: "global", Index: instr.Globalidx()}
		}
		f.push(&ir.GlobalRef{Index: instr.Globalidx(), ValueType: g.Type})
	case code.OpGlobalSet:
		g, ok := f.scope.GetGlobalType(instr.Globalidx())
		if !ok {
			return &IndexError{Space: "global", Index: instr.Globalidx()}
		}
		f.emit(&ir.SetGlobal{Index: instr.Globalidx(), Value: f.pop(g.Type)})

	case code.OpMemorySize:
		f.push(&ir.MemorySize{})
	case code.OpMemoryGrow:
		f.push(&ir.MemoryGrow{Delta: f.pop(I32)})

	case code.OpI32Const:
		f.push(ir.I32Const(instr.I32()))
	case code.OpI64Const:
		f.push(ir.I64Const(instr.I64()))
	case code.OpF32Const:
		f.push(ir.F32Const(instr.F32()))
	case code.OpF64Const:
		f.push(ir.F64Const(instr.F64()))

	default:
		switch info.Kind {
		case code.KindMemoryLoad:
			offset, align := instr.Memarg()
			f.push(&ir.MemoryRead{Op: instr.Opcode, ValueType: info.Result, Addr: f.pop(I32), Offset: offset, Align: align})
		case code.KindMemoryStore:
			offset, align := instr.Memarg()
			value := f.pop(info.Operand)
			addr := f.pop(I32)
			f.emit(&ir.MemoryWrite{Op: instr.Opcode, Addr: addr, Value: value, Offset: offset, Align: align})
		case code.KindUnary:
			x := f.pop(info.Operand)
			f.push(f.fold(&ir.Unop{Op: instr.Opcode, ValueType: info.Result, X: x}))
		case code.KindBinary:
			y := f.pop(info.Operand)
			x := f.pop(info.Operand)
			f.push(f.fold(&ir.Binop{Op: instr.Opcode, ValueType: info.Result, X: x, Y: y}))
		default:
			return fmt.Errorf("%v: %w", info.Name, errUnknownOperand)
		}
	}
	return nil
}

func (f *Function) push(x ir.Expr) {
	top := f.top()
	top.stack = append(top.stack, x)
}

// pop removes the top of the stack. If the stack is empty, the underflow is recorded and an invalid
// expression of type t is returned in place of the missing operand.
func (f *Function) pop(t wasm.ValueType) ir.Expr {
	top := f.top()
	if n := len(top.stack); n > 0 {
		x := top.stack[n-1]
		top.stack = top.stack[:n-1]
		return x
	}

	op := f.instr.OpString()
	Logger().Warn("stack underflow",
		zap.Uint32("function", f.Index),
		zap.Int("instruction", f.ip),
		zap.String("opcode", op))
	f.diagnostics = append(f.diagnostics, fmt.Sprintf("instruction %d (%s): stack underflow", f.ip, op))
	return &ir.InvalidExpr{Message: "stack underflow at " + op, ValueType: t}
}

func (f *Function) popArgs(params []wasm.ValueType) []ir.Expr {
	args := make([]ir.Expr, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		args[i] = f.pop(params[i])
	}
	return args
}

func (f *Function) local(index uint32) (ir.Local, error) {
	if index >= uint32(len(f.Locals)) {
		return ir.Local{}, &IndexError{Space: "local", Index: index}
	}
	return f.Locals[int(index)], nil
}

func (f *Function) append(s ir.Stm) {
	f.top().body.Append(s)
}

// emit spills the stack and then appends s.
func (f *Function) emit(s ir.Stm) {
	f.flush()
	f.append(s)
}

// flush assigns every stack entry that is neither a constant nor already its slot's temp to that
// slot's temp.
func (f *Function) flush() {
	top := f.top()
	for i, x := range top.stack {
		if _, ok := x.(*ir.Const); ok {
			continue
		}

		temp := ir.Local{Index: uint32(top.base + i), Type: x.Type(), Temp: true}
		if ref, ok := x.(*ir.LocalRef); ok && ref.Local == temp {
			continue
		}

		top.body.Append(&ir.SetLocal{Local: temp, Value: x})
		top.stack[i] = &ir.LocalRef{Local: temp}
	}
}

// discard empties the stack, keeping the side effects of the discarded entries.
func (f *Function) discard() {
	top := f.top()
	for _, x := range top.stack {
		if !ir.IsPure(x) {
			top.body.Append(&ir.ExpressionStatement{X: x})
		}
	}
	top.stack = top.stack[:0]
}

func (f *Function) call(x ir.Expr) {
	if x.Type() == wasm.ValueTypeVoid {
		f.emit(&ir.ExpressionStatement{X: x})
		return
	}
	f.push(x)
}

func (f *Function) selectValue() {
	cond := f.pop(wasm.ValueTypeI32)
	y := f.pop(wasm.ValueTypeVoid)
	x := f.pop(y.Type())

	if !ir.IsPure(cond) || !ir.IsPure(x) || !ir.IsPure(y) {
		f.push(x)
		f.push(y)
		f.push(cond)
		f.flush()
		cond, y, x = f.pop(wasm.ValueTypeI32), f.pop(y.Type()), f.pop(x.Type())
	}

	t := x.Type()
	if t == wasm.ValueTypeVoid {
		t = y.Type()
	}
	f.push(&ir.Ternary{Cond: cond, X: x, Y: y, ValueType: t})
}

func (f *Function) fold(x ir.Expr) ir.Expr {
	if f.options.FoldConstants {
		if c, ok := evaluate(x); ok {
			return c
		}
	}
	return x
}

func (f *Function) newLabel(kind ir.LabelKind, name string, t wasm.ValueType) *ir.Label {
	if name == "" {
		name = fmt.Sprintf("label%d", f.labels)
	}
	f.labels++
	return &ir.Label{Kind: kind, Name: name, Type: t}
}

func (f *Function) enter(instr code.Instruction, name string) error {
	in, out, ok := instr.BlockType(f.scope)
	if !ok {
		return &IndexError{Space: "type", Index: instr.Typeidx()}
	}
	if len(in) != 0 {
		return errBlockParams
	}

	var cond ir.Expr
	if instr.Opcode == code.OpIf {
		cond = f.pop(wasm.ValueTypeI32)
	}
	f.flush()

	parent := f.top()
	fr := &frame{opcode: instr.Opcode, base: parent.base + len(parent.stack)}
	switch instr.Opcode {
	case code.OpBlock:
		fr.label = f.newLabel(ir.Break, name, out)
		s := &ir.Block{Label: fr.label, Body: &ir.Sequence{}}
		fr.body = s.Body
		parent.body.Append(s)
	case code.OpLoop:
		fr.label = f.newLabel(ir.Continue, name, out)
		s := &ir.Loop{Label: fr.label, Body: &ir.Sequence{}}
		fr.body = s.Body
		parent.body.Append(s)
	case code.OpIf:
		fr.label = f.newLabel(ir.Break, name, out)
		s := &ir.If{Label: fr.label, Cond: cond, Then: &ir.Sequence{}}
		fr.body, fr.parent, fr.ifStm = s.Then, parent.body, s
		parent.body.Append(s)
	}
	f.frames = append(f.frames, fr)
	return nil
}

// fallThrough materializes the result of the innermost construct when control reaches its end.
func (f *Function) fallThrough(fr *frame) {
	if fr.label.Type == wasm.ValueTypeVoid {
		f.discard()
		return
	}
	v := f.pop(fr.label.Type)
	f.discard()
	f.append(&ir.SetPhi{Label: fr.label, Value: v})
}

func (f *Function) elseBranch() error {
	fr := f.top()
	if fr.ifStm == nil || fr.hasElse {
		return errElseWithoutIf
	}
	if !fr.unreachable {
		f.fallThrough(fr)
	}

	s := &ir.IfElse{Label: fr.label, Cond: fr.ifStm.Cond, Then: fr.ifStm.Then, Else: &ir.Sequence{}}
	fr.parent.Stms[len(fr.parent.Stms)-1] = s
	fr.body, fr.hasElse, fr.unreachable = s.Else, true, false
	fr.stack = fr.stack[:0]
	return nil
}

func (f *Function) end() error {
	if len(f.frames) == 1 {
		f.finish()
		return nil
	}

	fr := f.top()
	if !fr.unreachable {
		f.fallThrough(fr)
	}
	f.frames = f.frames[:len(f.frames)-1]

	if fr.label.Type != wasm.ValueTypeVoid {
		f.push(&ir.Phi{Label: fr.label})
	}
	return nil
}

func (f *Function) finish() {
	fr := f.frames[0]
	if !fr.unreachable {
		switch {
		case f.Signature.Result != wasm.ValueTypeVoid:
			v := f.pop(f.Signature.Result)
			f.discard()
			f.append(&ir.Return{Value: v})
		case len(fr.stack) != 0:
			v := fr.stack[len(fr.stack)-1]
			fr.stack = fr.stack[:len(fr.stack)-1]
			f.discard()
			f.diagnostics = append(f.diagnostics, fmt.Sprintf("value of type %v left on the stack at the end of a function with no result", v.Type()))
			f.append(&ir.Return{Value: v})
		}
	}

	if f.exitTargets {
		body := &ir.Sequence{Stms: []ir.Stm{&ir.Block{Label: f.exit, Body: f.body}}}
		if f.Signature.Result != wasm.ValueTypeVoid {
			body.Append(&ir.Return{Value: &ir.Phi{Label: f.exit}})
		}
		f.body = body
	}

	f.frames, f.finished = nil, true
}

func (f *Function) resolve(depth int) (*frame, error) {
	if depth < 0 || depth >= len(f.frames) {
		return nil, &LabelResolutionError{Depth: depth, Nesting: len(f.frames) - 1}
	}
	return f.frames[len(f.frames)-1-depth], nil
}

// carriesValue returns true if a branch to the construct passes it a value.
func carriesValue(fr *frame) bool {
	return fr.label.Kind == ir.Break && fr.label.Type != wasm.ValueTypeVoid
}

func (f *Function) ret() {
	if f.Signature.Result != wasm.ValueTypeVoid {
		v := f.pop(f.Signature.Result)
		f.discard()
		f.append(&ir.Return{Value: v})
	} else {
		f.discard()
		f.append(&ir.ReturnVoid{})
	}
	f.top().unreachable = true
}

func (f *Function) br(depth int) error {
	target, err := f.resolve(depth)
	if err != nil {
		return err
	}
	if target == f.frames[0] {
		f.ret()
		return nil
	}

	if carriesValue(target) {
		v := f.pop(target.label.Type)
		f.discard()
		f.append(&ir.SetPhi{Label: target.label, Value: v})
	} else {
		f.discard()
	}
	f.append(&ir.Branch{Label: target.label})
	f.top().unreachable = true
	return nil
}

func (f *Function) brIf(depth int) error {
	target, err := f.resolve(depth)
	if err != nil {
		return err
	}
	if target == f.frames[0] {
		f.exitTargets = true
	}

	cond := f.pop(wasm.ValueTypeI32)
	f.flush()
	if carriesValue(target) {
		// the value stays on the stack when the branch is not taken
		v := f.pop(target.label.Type)
		f.push(v)
		f.append(&ir.SetPhi{Label: target.label, Value: v})
	}
	f.append(&ir.BranchIf{Label: target.label, Cond: cond})
	return nil
}

func (f *Function) brTable(labels []int, def int) error {
	targets := make([]*frame, len(labels))
	for i, depth := range labels {
		t, err := f.resolve(depth)
		if err != nil {
			return err
		}
		targets[i] = t
	}
	defaultTarget, err := f.resolve(def)
	if err != nil {
		return err
	}

	index := f.pop(wasm.ValueTypeI32)
	if carriesValue(defaultTarget) {
		v := f.pop(defaultTarget.label.Type)
		f.push(v)
		f.push(index)
		f.flush()
		index, v = f.pop(wasm.ValueTypeI32), f.pop(defaultTarget.label.Type)
		f.discard()

		seen := map[*ir.Label]bool{}
		for _, t := range append(targets, defaultTarget) {
			if carriesValue(t) && !seen[t.label] {
				seen[t.label] = true
				f.append(&ir.SetPhi{Label: t.label, Value: v})
			}
		}
	} else {
		f.discard()
	}

	s := &ir.BranchTable{Index: index, Labels: make([]*ir.Label, len(targets)), Default: defaultTarget.label}
	for i, t := range targets {
		s.Labels[i] = t.label
		if t == f.frames[0] {
			f.exitTargets = true
		}
	}
	if defaultTarget == f.frames[0] {
		f.exitTargets = true
	}
	f.append(s)
	f.top().unreachable = true
	return nil
}
