package code

import (
	"errors"
	"testing"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	cases := []struct {
		op     Opcode
		name   string
		kind   Kind
		pop    int
		push   int
		result wasm.ValueType
	}{
		{OpI32Add, "i32.add", KindBinary, 2, 1, wasm.ValueTypeI32},
		{OpF64Lt, "f64.lt", KindBinary, 2, 1, wasm.ValueTypeI32},
		{OpI64Eqz, "i64.eqz", KindUnary, 1, 1, wasm.ValueTypeI32},
		{OpI32WrapI64, "i32.wrap_i64", KindUnary, 1, 1, wasm.ValueTypeI32},
		{OpF32Const, "f32.const", KindLiteral, 0, 1, wasm.ValueTypeF32},
		{OpI64Load32U, "i64.load32_u", KindMemoryLoad, 1, 1, wasm.ValueTypeI64},
		{OpF64Store, "f64.store", KindMemoryStore, 2, 0, 0},
		{OpMemoryGrow, "memory.grow", KindMemoryManagement, 1, 1, wasm.ValueTypeI32},
		{OpSelect, "select", KindTernary, 3, 1, 0},
		{OpDrop, "drop", KindDrop, 1, 0, 0},
		{OpLocalTee, "local.tee", KindVariable, 1, 1, 0},
		{OpCall, "call", KindCall, 0, 0, 0},
		{OpBrIf, "br_if", KindFlow, 1, 0, 0},
		{OpI64TruncSatF64U, "i64.trunc_sat_f64_u", KindUnary, 1, 1, wasm.ValueTypeI64},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			info, err := Lookup(c.op)
			require.NoError(t, err)
			assert.Equal(t, c.name, info.Name)
			assert.Equal(t, c.kind, info.Kind)
			assert.Equal(t, c.pop, info.Pop)
			assert.Equal(t, c.push, info.Push)
			assert.Equal(t, c.result, info.Result)

			byName, err := LookupName(c.name)
			require.NoError(t, err)
			assert.Equal(t, info, byName)
		})
	}
}

func TestLookupLegacyNames(t *testing.T) {
	for legacy, name := range legacyNames {
		info, err := LookupName(legacy)
		require.NoError(t, err, legacy)
		assert.Equal(t, name, info.Name)
	}
}

func TestLookupInvalid(t *testing.T) {
	_, err := Lookup(0x06)
	var invalid *InvalidOpcodeError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, Opcode(0x06), invalid.Code)

	_, err = LookupName("i32.frobnicate")
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "i32.frobnicate", invalid.Name)
	assert.Equal(t, `invalid opcode "i32.frobnicate"`, err.Error())
}

func TestRegistryIsShared(t *testing.T) {
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
	assert.Equal(t, len(opcodeTable), DefaultRegistry().Opcodes())
}

func TestRegistryConsistency(t *testing.T) {
	for _, info := range opcodeTable {
		switch info.Kind {
		case KindUnary, KindBinary, KindLiteral, KindMemoryLoad, KindMemoryManagement:
			assert.Equal(t, 1, info.Push, info.Name)
			assert.True(t, info.Result.IsValid(), info.Name)
		case KindMemoryStore, KindDrop:
			assert.Equal(t, 0, info.Push, info.Name)
		}
		assert.LessOrEqual(t, info.Push, 1, info.Name)
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	info, err := Lookup(OpI32Add)
	require.NoError(t, err)
	info.Name, info.Pop = "clobbered", 7

	again, err := Lookup(OpI32Add)
	require.NoError(t, err)
	assert.Equal(t, "i32.add", again.Name)
	assert.Equal(t, 2, again.Pop)

	byName, err := LookupName("i32.add")
	require.NoError(t, err)
	assert.Equal(t, again, byName)
}
