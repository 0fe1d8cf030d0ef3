package wax

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pgavlin/wasmir/internal/wasmtest"
	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func decodeModule(t *testing.T, m *wasmtest.Module) *wasm.Module {
	mod, err := wasm.DecodeModule(bytes.NewReader(m.Bytes()))
	require.NoError(t, err)
	return mod
}

func TestDecompileModule(t *testing.T) {
	start := uint32(2)
	m := decodeModule(t, &wasmtest.Module{
		Types: []wasm.FunctionSig{
			wasmtest.Sig(i32, i32),
			wasmtest.Sig(void),
		},
		Imports: []wasm.ImportEntry{
			{ModuleName: "env", FieldName: "next", Type: wasm.FuncImport{Type: 0}},
			{ModuleName: "env", FieldName: "base", Type: wasm.GlobalVarImport{Type: wasm.GlobalVar{Type: i32}}},
		},
		Funcs: []wasmtest.Func{
			{
				Type: 0,
				Body: []code.Instruction{
					code.LocalGet(0),
					code.Call(0),
					code.GlobalGet(1),
					code.Op(code.OpI32Add),
					code.End(),
				},
			},
			{
				Type: 1,
				Body: []code.Instruction{code.I32Const(1), code.GlobalSet(1), code.End()},
			},
		},
		Tables:   []wasm.Table{{ElementType: wasm.ElemTypeFuncref, Limits: wasm.ResizableLimits{Initial: 2}}},
		Memories: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		Globals: []wasmtest.Global{{
			Type: wasm.GlobalVar{Type: i32, Mutable: true},
			Init: []code.Instruction{code.I32Const(7), code.End()},
		}},
		Exports: []wasm.ExportEntry{{Name: "step", Kind: wasm.ExternalFunction, Index: 1}},
		Start:   &start,
		Elems: []wasmtest.Elem{{
			Offset: []code.Instruction{code.GlobalGet(0), code.End()},
			Funcs:  []uint32{1, 2},
		}},
		Data: []wasmtest.Data{{
			Offset: []code.Instruction{code.I32Const(16), code.End()},
			Bytes:  []byte("hi"),
		}},
		FuncNames: []wasm.Naming{{Index: 2, Name: "init"}},
	})

	out, err := DecompileModule(m, Options{})
	require.NoError(t, err)
	assert.Same(t, m, out.Source)

	require.Len(t, out.Functions, 3)
	assert.True(t, out.Functions[0].IsImport())
	assert.Nil(t, out.Functions[0].Body)

	step := out.Functions[1]
	assert.Equal(t, "f1", step.Name)
	assert.Equal(t, []string{"step"}, step.Exports)
	byExport, ok := out.LookupFunction("step")
	require.True(t, ok)
	assert.Same(t, step, byExport)
	assert.Equal(t, seq(&ir.Return{Value: &ir.Binop{
		Op:        code.OpI32Add,
		ValueType: i32,
		X:         &ir.Call{Func: 0, ValueType: i32, Args: []ir.Expr{local(0, i32)}},
		Y:         &ir.GlobalRef{Index: 1, ValueType: i32},
	}}), step.Body)
	assert.Empty(t, step.Diagnostics)

	assert.Equal(t, "init", out.Functions[2].Name)
	assert.Equal(t, seq(&ir.SetGlobal{Index: 1, Value: ir.I32Const(1)}), out.Functions[2].Body)

	require.Len(t, out.Globals, 2)
	assert.NotNil(t, out.Globals[0].Import)
	assert.Nil(t, out.Globals[0].Init)
	assert.True(t, out.Globals[1].Mutable)
	init, ok := ir.InitValue(out.Globals[1].Init)
	require.True(t, ok)
	assert.Equal(t, ir.I32Const(7), init)

	require.Len(t, out.Data, 1)
	assert.Equal(t, ir.I32Const(16), out.Data[0].Offset)
	assert.Equal(t, []byte("hi"), out.Data[0].Data)

	require.Len(t, out.Elements, 1)
	assert.Equal(t, &ir.GlobalRef{Index: 0, ValueType: i32}, out.Elements[0].Offset)
	assert.Equal(t, []uint32{1, 2}, out.Elements[0].Functions)

	require.NotNil(t, out.Start)
	assert.Equal(t, uint32(2), *out.Start)
}

func TestDecompileContinuesAfterUnderflow(t *testing.T) {
	m := decodeModule(t, &wasmtest.Module{
		Types: []wasm.FunctionSig{wasmtest.Sig(i32)},
		Funcs: []wasmtest.Func{
			{Body: []code.Instruction{code.Op(code.OpI32Add), code.End()}},
			{Body: []code.Instruction{code.I32Const(3), code.End()}},
		},
	})

	out, err := DecompileModule(m, Options{})
	require.NoError(t, err)
	require.Len(t, out.Functions, 2)
	assert.Len(t, out.Functions[0].Diagnostics, 2)
	assert.Equal(t, seq(&ir.Return{Value: ir.I32Const(3)}), out.Functions[1].Body)
}

func TestDecompileErrors(t *testing.T) {
	m := decodeModule(t, &wasmtest.Module{
		Types: []wasm.FunctionSig{wasmtest.Sig(void)},
		Funcs: []wasmtest.Func{
			{Body: []code.Instruction{code.Br(3), code.End()}},
			{Body: []code.Instruction{code.End()}},
			{Body: []code.Instruction{code.LocalGet(4), code.Drop(), code.End()}},
		},
	})

	t.Run("stop", func(t *testing.T) {
		out, err := DecompileModule(m, Options{})
		assert.Nil(t, out)

		var fe *FunctionError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, uint32(0), fe.Index)

		var lre *LabelResolutionError
		assert.True(t, errors.As(err, &lre))
	})

	t.Run("keep going", func(t *testing.T) {
		out, err := DecompileModule(m, Options{KeepGoing: true})
		require.NotNil(t, out)
		require.Len(t, out.Functions, 3)

		errs := multierr.Errors(err)
		require.Len(t, errs, 2)
		assert.Equal(t, "function 0: instruction 0 (br 3): branch depth 3 exceeds nesting depth 0", errs[0].Error())
		var ie *IndexError
		assert.True(t, errors.As(errs[1], &ie))

		assert.Nil(t, out.Functions[0].Body)
		assert.Len(t, out.Functions[0].Diagnostics, 1)
		assert.NotNil(t, out.Functions[1].Body)
	})
}

func TestDecompileFunctionImport(t *testing.T) {
	fn := &wasm.Function{Index: 4, Name: "log", Import: &wasm.ImportName{Module: "env", Field: "log"}}
	out, err := DecompileFunction(fn, scope, Options{})
	require.NoError(t, err)
	assert.Equal(t, "log", out.Name)
	assert.True(t, out.IsImport())
	assert.Nil(t, out.Body)
}

func TestDecompileLabelNames(t *testing.T) {
	m := decodeModule(t, &wasmtest.Module{
		Types: []wasm.FunctionSig{wasmtest.Sig(void)},
		Funcs: []wasmtest.Func{{Body: []code.Instruction{
			code.Block(),
			code.Loop(),
			code.Br(1),
			code.End(),
			code.End(),
			code.End(),
		}}},
		LabelNames: []wasm.LocalNames{{Index: 0, Names: []wasm.Naming{{Index: 0, Name: "$done"}}}},
	})
	require.Equal(t, map[uint32]string{0: "$done"}, m.Functions[0].LabelNames)

	out, err := DecompileModule(m, Options{})
	require.NoError(t, err)

	done := label("$done", ir.Break, void)
	assert.Equal(t, seq(
		&ir.Block{Label: done, Body: seq(
			&ir.Loop{Label: label("label1", ir.Continue, void), Body: seq(&ir.Branch{Label: done})},
		)},
	), out.Functions[0].Body)
}
