package wax

import (
	"errors"
	"testing"

	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	i32  = wasm.ValueTypeI32
	i64  = wasm.ValueTypeI64
	void = wasm.ValueTypeVoid
)

type testScope struct {
	globals []wasm.GlobalVar
	funcs   []wasm.FunctionSig
	types   []wasm.FunctionSig
}

func (s *testScope) GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool) {
	if globalidx >= uint32(len(s.globals)) {
		return wasm.GlobalVar{}, false
	}
	return s.globals[globalidx], true
}

func (s *testScope) GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool) {
	if funcidx >= uint32(len(s.funcs)) {
		return wasm.FunctionSig{}, false
	}
	return s.funcs[funcidx], true
}

func (s *testScope) GetType(typeidx uint32) (wasm.FunctionSig, bool) {
	if typeidx >= uint32(len(s.types)) {
		return wasm.FunctionSig{}, false
	}
	return s.types[typeidx], true
}

// scope has a nullary function returning i32, a function taking an i32 and returning nothing, and a
// mutable i32 global.
var scope = &testScope{
	globals: []wasm.GlobalVar{{Type: i32, Mutable: true}},
	funcs: []wasm.FunctionSig{
		{Result: i32},
		{Params: []wasm.ValueType{i32}},
	},
	types: []wasm.FunctionSig{
		{Params: []wasm.ValueType{i32}},
		{Params: []wasm.ValueType{i32}, Result: i32},
	},
}

type testFunction struct {
	sig     wasm.FunctionSig
	locals  []wasm.Local
	options Options
	body    []code.Instruction
}

func locals(types ...wasm.ValueType) []wasm.Local {
	ls := make([]wasm.Local, len(types))
	for i, t := range types {
		ls[i] = wasm.Local{Index: uint32(i), Type: t}
	}
	return ls
}

func (tf testFunction) build() (*Function, error) {
	f := NewFunction(0, tf.sig, tf.locals, scope, tf.options)
	for _, instr := range tf.body {
		if err := f.ImportInstruction(instr); err != nil {
			return f, err
		}
	}
	return f, nil
}

func reconstruct(t *testing.T, tf testFunction) (*ir.Sequence, []string) {
	f, err := tf.build()
	require.NoError(t, err)
	body, err := f.Finish()
	require.NoError(t, err)
	assertNoCodeAfterTerminators(t, body)
	return body, f.Diagnostics()
}

func assertNoCodeAfterTerminators(t *testing.T, body *ir.Sequence) {
	ir.Walk(body, func(n ir.Node) bool {
		if seq, ok := n.(*ir.Sequence); ok {
			for i, s := range seq.Stms {
				if ir.IsTerminator(s) {
					assert.Equal(t, len(seq.Stms)-1, i, "statements follow %T", s)
				}
			}
		}
		return true
	})
}

func seq(stms ...ir.Stm) *ir.Sequence {
	return &ir.Sequence{Stms: stms}
}

func local(index uint32, t wasm.ValueType) *ir.LocalRef {
	return &ir.LocalRef{Local: ir.Local{Index: index, Type: t}}
}

func temp(index uint32, t wasm.ValueType) ir.Local {
	return ir.Local{Index: index, Type: t, Temp: true}
}

func label(name string, kind ir.LabelKind, t wasm.ValueType) *ir.Label {
	return &ir.Label{Kind: kind, Name: name, Type: t}
}

func exitLabel(t wasm.ValueType) *ir.Label {
	return label("exit", ir.Break, t)
}

func TestReturnExpression(t *testing.T) {
	body, diags := reconstruct(t, testFunction{
		sig: wasm.FunctionSig{Result: i32},
		body: []code.Instruction{
			code.I32Const(1),
			code.I32Const(2),
			code.Op(code.OpI32Add),
			code.Return(),
			code.End(),
		},
	})
	assert.Empty(t, diags)
	assert.Equal(t, seq(
		&ir.Return{Value: &ir.Binop{Op: code.OpI32Add, ValueType: i32, X: ir.I32Const(1), Y: ir.I32Const(2)}},
	), body)
}

func TestSetThenUseLocal(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}, Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.I32Const(5),
			code.LocalSet(0),
			code.LocalGet(0),
			code.I32Const(1),
			code.Op(code.OpI32Add),
			code.Return(),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.SetLocal{Local: ir.Local{Index: 0, Type: i32}, Value: ir.I32Const(5)},
		&ir.Return{Value: &ir.Binop{Op: code.OpI32Add, ValueType: i32, X: local(0, i32), Y: ir.I32Const(1)}},
	), body)
}

func TestDeadCodeAfterBranch(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		body: []code.Instruction{
			code.Block(),
			code.Br(0),
			code.I32Const(1),
			code.Drop(),
			code.Call(0),
			code.Loop(),
			code.Nop(),
			code.End(),
			code.End(),
			code.Nop(),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.Block{Label: label("label0", ir.Break, void), Body: seq(&ir.Branch{Label: label("label0", ir.Break, void)})},
		&ir.Nop{},
	), body)
}

func TestStackUnderflow(t *testing.T) {
	body, diags := reconstruct(t, testFunction{
		sig:  wasm.FunctionSig{Result: i32},
		body: []code.Instruction{code.Op(code.OpI32Add), code.End()},
	})

	invalid := &ir.InvalidExpr{Message: "stack underflow at i32.add", ValueType: i32}
	assert.Equal(t, seq(
		&ir.Return{Value: &ir.Binop{Op: code.OpI32Add, ValueType: i32, X: invalid, Y: invalid}},
	), body)
	assert.Equal(t, []string{
		"instruction 0 (i32.add): stack underflow",
		"instruction 0 (i32.add): stack underflow",
	}, diags)
}

func TestReconstructionIsDeterministic(t *testing.T) {
	tf := testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}, Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.Call(0),
			code.Block(code.BlockTypeI32),
			code.LocalGet(0),
			code.If(code.BlockTypeI32),
			code.I32Const(1),
			code.Else(),
			code.Call(0),
			code.End(),
			code.End(),
			code.Op(code.OpI32Add),
			code.End(),
		},
	}
	first, _ := reconstruct(t, tf)
	second, _ := reconstruct(t, tf)
	assert.Equal(t, first, second)
	assert.Equal(t, ir.Sprint(first), ir.Sprint(second))
}

func TestFlushToTemps(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.Call(0),
			code.I32Const(3),
			code.LocalSet(0),
			code.End(),
		},
	})
	call := &ir.Call{Func: 0, ValueType: i32, Args: []ir.Expr{}}
	assert.Equal(t, seq(
		&ir.SetLocal{Local: temp(0, i32), Value: call},
		&ir.SetLocal{Local: ir.Local{Index: 0, Type: i32}, Value: ir.I32Const(3)},
		&ir.Return{Value: &ir.LocalRef{Local: temp(0, i32)}},
	), body)
}

func TestTempsUseAbsolutePositions(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.Call(0),
			code.Block(),
			code.Call(0),
			code.I32Const(1),
			code.LocalSet(0),
			code.Drop(),
			code.End(),
			code.End(),
		},
	})
	call := &ir.Call{Func: 0, ValueType: i32, Args: []ir.Expr{}}
	assert.Equal(t, seq(
		&ir.SetLocal{Local: temp(0, i32), Value: call},
		&ir.Block{Label: label("label0", ir.Break, void), Body: seq(
			&ir.SetLocal{Local: temp(1, i32), Value: call},
			&ir.SetLocal{Local: ir.Local{Index: 0, Type: i32}, Value: ir.I32Const(1)},
		)},
		&ir.Return{Value: &ir.LocalRef{Local: temp(0, i32)}},
	), body)
	assert.Equal(t, []ir.Local{temp(0, i32), temp(1, i32)}, ir.Temps(body))
}

func TestBlockResult(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig: wasm.FunctionSig{Result: i32},
		body: []code.Instruction{
			code.Block(code.BlockTypeI32),
			code.I32Const(1),
			code.End(),
			code.I32Const(2),
			code.Op(code.OpI32Add),
			code.End(),
		},
	})
	l := label("label0", ir.Break, i32)
	assert.Equal(t, seq(
		&ir.Block{Label: l, Body: seq(&ir.SetPhi{Label: l, Value: ir.I32Const(1)})},
		&ir.Return{Value: &ir.Binop{Op: code.OpI32Add, ValueType: i32, X: &ir.Phi{Label: l}, Y: ir.I32Const(2)}},
	), body)
}

func TestBranchWithValue(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig: wasm.FunctionSig{Result: i32},
		body: []code.Instruction{
			code.Block(code.BlockTypeI32),
			code.I32Const(1),
			code.Br(0),
			code.End(),
			code.End(),
		},
	})
	l := label("label0", ir.Break, i32)
	assert.Equal(t, seq(
		&ir.Block{Label: l, Body: seq(&ir.SetPhi{Label: l, Value: ir.I32Const(1)}, &ir.Branch{Label: l})},
		&ir.Return{Value: &ir.Phi{Label: l}},
	), body)
}

func TestConditionalBranchWithValue(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}, Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.Block(code.BlockTypeI32),
			code.I32Const(7),
			code.LocalGet(0),
			code.BrIf(0),
			code.Drop(),
			code.I32Const(9),
			code.End(),
			code.End(),
		},
	})
	l := label("label0", ir.Break, i32)
	assert.Equal(t, seq(
		&ir.Block{Label: l, Body: seq(
			&ir.SetPhi{Label: l, Value: ir.I32Const(7)},
			&ir.BranchIf{Label: l, Cond: local(0, i32)},
			&ir.SetPhi{Label: l, Value: ir.I32Const(9)},
		)},
		&ir.Return{Value: &ir.Phi{Label: l}},
	), body)
}

func TestLoopContinue(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}},
		locals: locals(i32),
		body: []code.Instruction{
			code.Loop(),
			code.LocalGet(0),
			code.I32Const(1),
			code.Op(code.OpI32Sub),
			code.LocalTee(0),
			code.BrIf(0),
			code.End(),
			code.End(),
		},
	})
	l := label("label0", ir.Continue, void)
	assert.Equal(t, seq(
		&ir.Loop{Label: l, Body: seq(
			&ir.SetLocal{
				Local: ir.Local{Index: 0, Type: i32},
				Value: &ir.Binop{Op: code.OpI32Sub, ValueType: i32, X: local(0, i32), Y: ir.I32Const(1)},
			},
			&ir.BranchIf{Label: l, Cond: local(0, i32)},
		)},
	), body)
}

func TestIfElse(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}, Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.LocalGet(0),
			code.If(code.BlockTypeI32),
			code.I32Const(1),
			code.Else(),
			code.I32Const(2),
			code.End(),
			code.End(),
		},
	})
	l := label("label0", ir.Break, i32)
	assert.Equal(t, seq(
		&ir.IfElse{
			Label: l,
			Cond:  local(0, i32),
			Then:  seq(&ir.SetPhi{Label: l, Value: ir.I32Const(1)}),
			Else:  seq(&ir.SetPhi{Label: l, Value: ir.I32Const(2)}),
		},
		&ir.Return{Value: &ir.Phi{Label: l}},
	), body)
}

func TestIfWithoutElse(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}},
		locals: locals(i32),
		body: []code.Instruction{
			code.LocalGet(0),
			code.If(),
			code.Unreachable(),
			code.End(),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.If{Label: label("label0", ir.Break, void), Cond: local(0, i32), Then: seq(&ir.Unreachable{})},
	), body)
}

func TestElseWithoutIf(t *testing.T) {
	_, err := testFunction{body: []code.Instruction{code.Block(), code.Else()}}.build()
	assert.True(t, errors.Is(err, errElseWithoutIf))
}

func TestBranchTable(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}},
		locals: locals(i32),
		body: []code.Instruction{
			code.Block(),
			code.Block(),
			code.LocalGet(0),
			code.BrTable(0, 1),
			code.End(),
			code.End(),
			code.End(),
		},
	})
	outer, inner := label("label0", ir.Break, void), label("label1", ir.Break, void)
	assert.Equal(t, seq(
		&ir.Block{Label: outer, Body: seq(
			&ir.Block{Label: inner, Body: seq(
				&ir.BranchTable{Index: local(0, i32), Labels: []*ir.Label{inner}, Default: outer},
			)},
		)},
	), body)
}

func TestBranchTableWithValue(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}, Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.Block(code.BlockTypeI32),
			code.Call(0),
			code.LocalGet(0),
			code.BrTable(0, 0),
			code.End(),
			code.End(),
		},
	})
	l := label("label0", ir.Break, i32)
	call := &ir.Call{Func: 0, ValueType: i32, Args: []ir.Expr{}}
	assert.Equal(t, seq(
		&ir.Block{Label: l, Body: seq(
			&ir.SetLocal{Local: temp(0, i32), Value: call},
			&ir.SetLocal{Local: temp(1, i32), Value: local(0, i32)},
			&ir.SetPhi{Label: l, Value: &ir.LocalRef{Local: temp(0, i32)}},
			&ir.BranchTable{Index: &ir.LocalRef{Local: temp(1, i32)}, Labels: []*ir.Label{l}, Default: l},
		)},
		&ir.Return{Value: &ir.Phi{Label: l}},
	), body)
}

func TestBranchToFunctionReturns(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig: wasm.FunctionSig{Result: i32},
		body: []code.Instruction{
			code.I32Const(4),
			code.Br(0),
			code.End(),
		},
	})
	assert.Equal(t, seq(&ir.Return{Value: ir.I32Const(4)}), body)
}

func TestConditionalBranchToFunction(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}, Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.I32Const(4),
			code.LocalGet(0),
			code.BrIf(0),
			code.Drop(),
			code.I32Const(5),
			code.End(),
		},
	})
	exit := exitLabel(i32)
	assert.Equal(t, seq(
		&ir.Block{Label: exit, Body: seq(
			&ir.SetPhi{Label: exit, Value: ir.I32Const(4)},
			&ir.BranchIf{Label: exit, Cond: local(0, i32)},
			&ir.Return{Value: ir.I32Const(5)},
		)},
		&ir.Return{Value: &ir.Phi{Label: exit}},
	), body)
}

func TestLabelResolution(t *testing.T) {
	_, err := testFunction{body: []code.Instruction{code.Block(), code.Br(2)}}.build()

	var lre *LabelResolutionError
	require.True(t, errors.As(err, &lre))
	assert.Equal(t, 2, lre.Depth)
	assert.Equal(t, 1, lre.Nesting)
}

func TestBlockParametersUnsupported(t *testing.T) {
	_, err := testFunction{
		body: []code.Instruction{code.I32Const(1), code.Block(code.BlockType(0))},
	}.build()
	assert.True(t, wasm.IsUnsupported(err))
}

func TestBlockTypeIndexResult(t *testing.T) {
	_, err := testFunction{
		body: []code.Instruction{code.Block(code.BlockType(9))},
	}.build()

	var ie *IndexError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "unknown type 9", ie.Error())
}

func TestSelectFlushesImpureOperands(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig: wasm.FunctionSig{Result: i32},
		body: []code.Instruction{
			code.Call(0),
			code.I32Const(2),
			code.I32Const(1),
			code.Select(),
			code.End(),
		},
	})
	call := &ir.Call{Func: 0, ValueType: i32, Args: []ir.Expr{}}
	assert.Equal(t, seq(
		&ir.SetLocal{Local: temp(0, i32), Value: call},
		&ir.Return{Value: &ir.Ternary{Cond: ir.I32Const(1), X: &ir.LocalRef{Local: temp(0, i32)}, Y: ir.I32Const(2), ValueType: i32}},
	), body)
}

func TestSelectPure(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:    wasm.FunctionSig{Params: []wasm.ValueType{i32}, Result: i32},
		locals: locals(i32),
		body: []code.Instruction{
			code.I32Const(1),
			code.I32Const(2),
			code.LocalGet(0),
			code.Select(),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.Return{Value: &ir.Ternary{Cond: local(0, i32), X: ir.I32Const(1), Y: ir.I32Const(2), ValueType: i32}},
	), body)
}

func TestDropKeepsSideEffects(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		body: []code.Instruction{
			code.I32Const(1),
			code.Drop(),
			code.Call(0),
			code.Drop(),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.ExpressionStatement{X: &ir.Call{Func: 0, ValueType: i32, Args: []ir.Expr{}}},
	), body)
}

func TestVoidCall(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		body: []code.Instruction{
			code.I32Const(1),
			code.Call(1),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.ExpressionStatement{X: &ir.Call{Func: 1, ValueType: void, Args: []ir.Expr{ir.I32Const(1)}}},
	), body)
}

func TestVoidCallIndirect(t *testing.T) {
	f, err := testFunction{
		body: []code.Instruction{
			code.I32Const(7),
			code.I32Const(0),
			code.CallIndirect(0),
			code.End(),
		},
	}.build()
	require.NoError(t, err)
	assert.Equal(t, void, f.Signature.Result)
	assert.Equal(t, void, f.exit.Type)

	body, err := f.Finish()
	require.NoError(t, err)
	assert.Equal(t, seq(
		&ir.ExpressionStatement{X: &ir.CallIndirect{TypeIndex: 0, Callee: ir.I32Const(0), Args: []ir.Expr{ir.I32Const(7)}, ValueType: void}},
	), body)
	assert.Empty(t, f.Diagnostics())
}

func TestCallIndirect(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig: wasm.FunctionSig{Result: i32},
		body: []code.Instruction{
			code.I32Const(7),
			code.I32Const(0),
			code.CallIndirect(1),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.Return{Value: &ir.CallIndirect{TypeIndex: 1, Callee: ir.I32Const(0), Args: []ir.Expr{ir.I32Const(7)}, ValueType: i32}},
	), body)
}

func TestGlobals(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		body: []code.Instruction{
			code.GlobalGet(0),
			code.I32Const(1),
			code.Op(code.OpI32Add),
			code.GlobalSet(0),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.SetGlobal{Index: 0, Value: &ir.Binop{
			Op:        code.OpI32Add,
			ValueType: i32,
			X:         &ir.GlobalRef{Index: 0, ValueType: i32},
			Y:         ir.I32Const(1),
		}},
	), body)
}

func TestMemoryAccess(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig: wasm.FunctionSig{Result: i32},
		body: []code.Instruction{
			code.I32Const(8),
			code.I32Const(42),
			code.Mem(code.OpI32Store, 4, 2),
			code.I32Const(8),
			code.Mem(code.OpI32Load, 0, 2),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.MemoryWrite{Op: code.OpI32Store, Addr: ir.I32Const(8), Value: ir.I32Const(42), Offset: 4, Align: 2},
		&ir.Return{Value: &ir.MemoryRead{Op: code.OpI32Load, ValueType: i32, Addr: ir.I32Const(8), Align: 2}},
	), body)
}

func TestLeftoverValueInVoidFunction(t *testing.T) {
	body, diags := reconstruct(t, testFunction{
		body: []code.Instruction{code.I32Const(1), code.End()},
	})
	assert.Equal(t, seq(&ir.Return{Value: ir.I32Const(1)}), body)
	assert.Len(t, diags, 1)
}

func TestNamedBlocks(t *testing.T) {
	f := NewFunction(0, wasm.FunctionSig{}, nil, scope, Options{})
	require.NoError(t, f.ImportNamedBlock(code.Block(), "$outer"))
	require.NoError(t, f.ImportInstruction(code.Block()))
	require.NoError(t, f.ImportInstruction(code.Br(1)))
	require.NoError(t, f.ImportInstruction(code.End()))
	require.NoError(t, f.ImportInstruction(code.End()))
	require.NoError(t, f.ImportInstruction(code.End()))

	body, err := f.Finish()
	require.NoError(t, err)

	outer := label("$outer", ir.Break, void)
	assert.Equal(t, seq(
		&ir.Block{Label: outer, Body: seq(
			&ir.Block{Label: label("label1", ir.Break, void), Body: seq(&ir.Branch{Label: outer})}),
		},
	), body)
}

func TestFinishState(t *testing.T) {
	f := NewFunction(0, wasm.FunctionSig{}, nil, scope, Options{})
	_, err := f.Finish()
	assert.True(t, errors.Is(err, errUnfinished))

	require.NoError(t, f.ImportInstruction(code.End()))
	body, err := f.Finish()
	require.NoError(t, err)
	assert.Empty(t, body.Stms)

	assert.True(t, errors.Is(f.ImportInstruction(code.Nop()), errFinished))
}

func TestUnknownIndices(t *testing.T) {
	cases := []struct {
		name  string
		instr code.Instruction
		want  string
	}{
		{"local", code.LocalGet(3), "unknown local 3"},
		{"global", code.GlobalGet(3), "unknown global 3"},
		{"function", code.Call(3), "unknown function 3"},
		{"type", code.CallIndirect(3), "unknown type 3"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := testFunction{body: []code.Instruction{code.I32Const(0), c.instr}}.build()
			var ie *IndexError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, c.want, ie.Error())
		})
	}
}

func TestFoldConstants(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:     wasm.FunctionSig{Result: i64},
		options: Options{FoldConstants: true},
		body: []code.Instruction{
			code.I32Const(1),
			code.I32Const(2),
			code.Op(code.OpI32Add),
			code.Op(code.OpI64ExtendI32S),
			code.End(),
		},
	})
	assert.Equal(t, seq(&ir.Return{Value: ir.I64Const(3)}), body)
}

func TestFoldConstantsKeepsTraps(t *testing.T) {
	body, _ := reconstruct(t, testFunction{
		sig:     wasm.FunctionSig{Result: i32},
		options: Options{FoldConstants: true},
		body: []code.Instruction{
			code.I32Const(1),
			code.I32Const(0),
			code.Op(code.OpI32DivS),
			code.End(),
		},
	})
	assert.Equal(t, seq(
		&ir.Return{Value: &ir.Binop{Op: code.OpI32DivS, ValueType: i32, X: ir.I32Const(1), Y: ir.I32Const(0)}},
	), body)
}
