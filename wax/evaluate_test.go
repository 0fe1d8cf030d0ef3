package wax

import (
	"math"
	"testing"

	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		expr ir.Expr
		want *ir.Const
	}{
		{
			name: "i32 wraps",
			expr: &ir.Binop{Op: code.OpI32Add, ValueType: i32, X: ir.I32Const(math.MaxInt32), Y: ir.I32Const(1)},
			want: ir.I32Const(math.MinInt32),
		},
		{
			name: "i32 comparison",
			expr: &ir.Binop{Op: code.OpI32LtS, ValueType: i32, X: ir.I32Const(-1), Y: ir.I32Const(0)},
			want: ir.I32Const(1),
		},
		{
			name: "i64 shift",
			expr: &ir.Binop{Op: code.OpI64Shl, ValueType: i64, X: ir.I64Const(1), Y: ir.I64Const(65)},
			want: ir.I64Const(2),
		},
		{
			name: "f64 arithmetic",
			expr: &ir.Binop{Op: code.OpF64Mul, ValueType: wasm.ValueTypeF64, X: ir.F64Const(1.5), Y: ir.F64Const(4)},
			want: ir.F64Const(6),
		},
		{
			name: "eqz",
			expr: &ir.Unop{Op: code.OpI32Eqz, ValueType: i32, X: ir.I32Const(0)},
			want: ir.I32Const(1),
		},
		{
			name: "wrap",
			expr: &ir.Unop{Op: code.OpI32WrapI64, ValueType: i32, X: ir.I64Const(0x1_0000_0005)},
			want: ir.I32Const(5),
		},
		{
			name: "clz",
			expr: &ir.Unop{Op: code.OpI32Clz, ValueType: i32, X: ir.I32Const(1)},
			want: ir.I32Const(31),
		},
		{
			name: "unsigned comparison",
			expr: &ir.Binop{Op: code.OpI64LtU, ValueType: i32, X: ir.I64Const(1), Y: ir.I64Const(-1)},
			want: ir.I32Const(1),
		},
		{
			name: "remainder overflow",
			expr: &ir.Binop{Op: code.OpI32RemS, ValueType: i32, X: ir.I32Const(math.MinInt32), Y: ir.I32Const(-1)},
			want: ir.I32Const(0),
		},
		{
			name: "sign extension",
			expr: &ir.Unop{Op: code.OpI64Extend8S, ValueType: i64, X: ir.I64Const(0xff)},
			want: ir.I64Const(-1),
		},
		{
			name: "saturating truncation",
			expr: &ir.Unop{Op: code.OpI32TruncSatF64S, ValueType: i32, X: ir.F64Const(1e20)},
			want: ir.I32Const(math.MaxInt32),
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := evaluate(c.expr)
			assert.True(t, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestEvaluateDeclines(t *testing.T) {
	cases := []struct {
		name string
		expr ir.Expr
	}{
		{"non-constant operand", &ir.Binop{Op: code.OpI32Add, ValueType: i32, X: local(0, i32), Y: ir.I32Const(1)}},
		{"divide by zero", &ir.Binop{Op: code.OpI32DivU, ValueType: i32, X: ir.I32Const(1), Y: ir.I32Const(0)}},
		{"signed overflow", &ir.Binop{Op: code.OpI32DivS, ValueType: i32, X: ir.I32Const(math.MinInt32), Y: ir.I32Const(-1)}},
		{"remainder by zero", &ir.Binop{Op: code.OpI64RemS, ValueType: i64, X: ir.I64Const(1), Y: ir.I64Const(0)}},
		{"truncation out of range", &ir.Unop{Op: code.OpI32TruncF64S, ValueType: i32, X: ir.F64Const(1e20)}},
		{"truncation of NaN", &ir.Unop{Op: code.OpI64TruncF64U, ValueType: i64, X: ir.F64Const(math.NaN())}},
		{"not an operator", ir.I32Const(1)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, ok := evaluate(c.expr)
			assert.False(t, ok)
		})
	}
}
