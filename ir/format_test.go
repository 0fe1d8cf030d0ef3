package ir

import (
	"strings"
	"testing"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = `func f3(l0 i32) i32 export "run" {
    local l1 i64
    local t0_i32 i32
    local t1_i64 i64
    block label0 i32 {
        t0_i32 = f1(l0)
        loop label1 {
            t1_i64 = g2
            l1 = t1_i64
            if t0_i32 continue label1
        }
        label0.result = i32.add(t0_i32, 1)
    }
    return label0.result
}
`

func TestFprintFunction(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Fprint(&b, sampleFunction()))
	assert.Equal(t, sampleText, b.String())
}

type bracketStyle struct{}

func (bracketStyle) Keyword(s string) string { return "<" + s + ">" }
func (bracketStyle) Name(s string) string    { return s }
func (bracketStyle) Literal(s string) string { return "'" + s + "'" }
func (bracketStyle) Comment(s string) string { return s }

func TestFprintModule(t *testing.T) {
	start := uint32(0)
	m := &Module{
		Functions: []*Function{
			{Index: 0, Name: "$log", Signature: wasm.FunctionSig{Result: wasm.ValueTypeVoid}, Import: &wasm.ImportName{Module: "env", Field: "log"}},
			{Index: 1, Signature: wasm.FunctionSig{Result: wasm.ValueTypeVoid}, Body: &Sequence{Stms: []Stm{
				&ExpressionStatement{X: &Call{Func: 0}},
				&ReturnVoid{},
			}}},
		},
		Globals: []*Global{
			{Index: 0, Type: wasm.ValueTypeI32, Mutable: true, Init: &Sequence{Stms: []Stm{&Return{Value: I32Const(7)}}}},
		},
		Data:     []*DataSegment{{Offset: I32Const(16), Data: []byte("hi")}},
		Elements: []*ElementSegment{{Offset: I32Const(0), Functions: []uint32{0, 1}}},
		Start:    &start,
	}

	p := Printer{Style: bracketStyle{}}
	var b strings.Builder
	require.NoError(t, p.Fprint(&b, m))
	assert.Equal(t, `<global> g0 <mut> i32 = '7'

<func> $log() <import> '"env.log"'

<func> f1() {
    $log()
    <return>
}
<data> 0 <memory> '0' '16'
    '"hi"'
<elem> 0 <table> '0' '0' [$log, f1]
<start> $log
`, b.String())
	assert.Nil(t, p.Module)
}

func TestSprintExpr(t *testing.T) {
	assert.Equal(t, "-5L\n", Sprint(I64Const(-5)))
	assert.Equal(t, "1.5f\n", Sprint(F32Const(1.5)))
	assert.Equal(t, "memory.grow(1)\n", Sprint(&MemoryGrow{Delta: I32Const(1)}))
	assert.Equal(t, "invalid<i32>(\"stack underflow\")\n", Sprint(&InvalidExpr{Message: "stack underflow", ValueType: wasm.ValueTypeI32}))
}
