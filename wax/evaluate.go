package wax

import (
	"math"
	"math/bits"

	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
)

// A unaryRule or binaryRule computes an operator over raw constant bits. Rules panic with errTrap when the
// operation would trap.
type (
	unaryRule  func(x uint64) uint64
	binaryRule func(x, y uint64) uint64
)

type scalar interface {
	~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// lane moves a Go value of one wasm number type in and out of constant bits.
type lane[T scalar] struct {
	decode func(uint64) T
	encode func(T) uint64
}

var (
	i32s = lane[int32]{func(v uint64) int32 { return int32(v) }, func(v int32) uint64 { return uint64(uint32(v)) }}
	u32s = lane[uint32]{func(v uint64) uint32 { return uint32(v) }, func(v uint32) uint64 { return uint64(v) }}
	i64s = lane[int64]{func(v uint64) int64 { return int64(v) }, func(v int64) uint64 { return uint64(v) }}
	u64s = lane[uint64]{func(v uint64) uint64 { return v }, func(v uint64) uint64 { return v }}
	f32s = lane[float32]{
		func(v uint64) float32 { return math.Float32frombits(uint32(v)) },
		func(v float32) uint64 { return uint64(math.Float32bits(v)) },
	}
	f64s = lane[float64]{math.Float64frombits, math.Float64bits}
)

func (l lane[T]) unary(f func(T) T) unaryRule {
	return func(x uint64) uint64 { return l.encode(f(l.decode(x))) }
}

func (l lane[T]) test(f func(T) bool) unaryRule {
	return func(x uint64) uint64 { return boolBits(f(l.decode(x))) }
}

func (l lane[T]) binary(f func(x, y T) T) binaryRule {
	return func(x, y uint64) uint64 { return l.encode(f(l.decode(x), l.decode(y))) }
}

func (l lane[T]) compare(f func(x, y T) bool) binaryRule {
	return func(x, y uint64) uint64 { return boolBits(f(l.decode(x), l.decode(y))) }
}

func convert[T, U scalar](from lane[T], to lane[U], f func(T) U) unaryRule {
	return func(x uint64) uint64 { return to.encode(f(from.decode(x))) }
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func eqz[T scalar](x T) bool              { return x == 0 }
func eq[T scalar](x, y T) bool            { return x == y }
func ne[T scalar](x, y T) bool            { return x != y }
func lt[T scalar](x, y T) bool            { return x < y }
func gt[T scalar](x, y T) bool            { return x > y }
func le[T scalar](x, y T) bool            { return x <= y }
func ge[T scalar](x, y T) bool            { return x >= y }
func add[T scalar](x, y T) T              { return x + y }
func sub[T scalar](x, y T) T              { return x - y }
func mul[T scalar](x, y T) T              { return x * y }
func div[T ~float32 | ~float64](x, y T) T { return x / y }
func neg[T scalar](x T) T                 { return -x }
func cast[T, U scalar](x T) U             { return U(x) }
func reinterpret(x uint64) uint64         { return x }

func and[T ~uint32 | ~uint64](x, y T) T { return x & y }
func or[T ~uint32 | ~uint64](x, y T) T  { return x | y }
func xor[T ~uint32 | ~uint64](x, y T) T { return x ^ y }

func divU[T ~uint32 | ~uint64](x, y T) T {
	if y == 0 {
		panic(errTrap)
	}
	return x / y
}

func remU[T ~uint32 | ~uint64](x, y T) T {
	if y == 0 {
		panic(errTrap)
	}
	return x % y
}

// remS never traps on overflow: MinInt % -1 is zero.
func remS[T ~int32 | ~int64](x, y T) T {
	switch y {
	case 0:
		panic(errTrap)
	case -1:
		return 0
	}
	return x % y
}

func signExtend[T ~int32 | ~int64, N ~int8 | ~int16 | ~int32](x T) T {
	return T(N(x))
}

// f32math runs a float64 math function at float32 precision.
func f32math(f func(float64) float64) func(float32) float32 {
	return func(x float32) float32 { return float32(f(float64(x))) }
}

func f32math2(f func(x, y float64) float64) func(x, y float32) float32 {
	return func(x, y float32) float32 { return float32(f(float64(x), float64(y))) }
}

func fromF32[U scalar](f func(float64) U) func(float32) U {
	return func(x float32) U { return f(float64(x)) }
}

var unaryRules = map[code.Opcode]unaryRule{
	code.OpI32Eqz:    i32s.test(eqz[int32]),
	code.OpI32Clz:    u32s.unary(func(x uint32) uint32 { return uint32(bits.LeadingZeros32(x)) }),
	code.OpI32Ctz:    u32s.unary(func(x uint32) uint32 { return uint32(bits.TrailingZeros32(x)) }),
	code.OpI32Popcnt: u32s.unary(func(x uint32) uint32 { return uint32(bits.OnesCount32(x)) }),

	code.OpI64Eqz:    i64s.test(eqz[int64]),
	code.OpI64Clz:    u64s.unary(func(x uint64) uint64 { return uint64(bits.LeadingZeros64(x)) }),
	code.OpI64Ctz:    u64s.unary(func(x uint64) uint64 { return uint64(bits.TrailingZeros64(x)) }),
	code.OpI64Popcnt: u64s.unary(func(x uint64) uint64 { return uint64(bits.OnesCount64(x)) }),

	code.OpF32Abs:     f32s.unary(f32math(math.Abs)),
	code.OpF32Neg:     f32s.unary(neg[float32]),
	code.OpF32Ceil:    f32s.unary(f32math(math.Ceil)),
	code.OpF32Floor:   f32s.unary(f32math(math.Floor)),
	code.OpF32Trunc:   f32s.unary(f32math(math.Trunc)),
	code.OpF32Nearest: f32s.unary(f32math(math.RoundToEven)),
	code.OpF32Sqrt:    f32s.unary(f32math(math.Sqrt)),

	code.OpF64Abs:     f64s.unary(math.Abs),
	code.OpF64Neg:     f64s.unary(neg[float64]),
	code.OpF64Ceil:    f64s.unary(math.Ceil),
	code.OpF64Floor:   f64s.unary(math.Floor),
	code.OpF64Trunc:   f64s.unary(math.Trunc),
	code.OpF64Nearest: f64s.unary(math.RoundToEven),
	code.OpF64Sqrt:    f64s.unary(math.Sqrt),

	code.OpI32WrapI64:   convert(i64s, i32s, cast[int64, int32]),
	code.OpI32TruncF32S: convert(f32s, i32s, fromF32(i32TruncS)),
	code.OpI32TruncF32U: convert(f32s, u32s, fromF32(i32TruncU)),
	code.OpI32TruncF64S: convert(f64s, i32s, i32TruncS),
	code.OpI32TruncF64U: convert(f64s, u32s, i32TruncU),

	code.OpI64ExtendI32S: convert(i32s, i64s, cast[int32, int64]),
	code.OpI64ExtendI32U: convert(u32s, u64s, cast[uint32, uint64]),
	code.OpI64TruncF32S:  convert(f32s, i64s, fromF32(i64TruncS)),
	code.OpI64TruncF32U:  convert(f32s, u64s, fromF32(i64TruncU)),
	code.OpI64TruncF64S:  convert(f64s, i64s, i64TruncS),
	code.OpI64TruncF64U:  convert(f64s, u64s, i64TruncU),

	code.OpF32ConvertI32S: convert(i32s, f32s, cast[int32, float32]),
	code.OpF32ConvertI32U: convert(u32s, f32s, cast[uint32, float32]),
	code.OpF32ConvertI64S: convert(i64s, f32s, cast[int64, float32]),
	code.OpF32ConvertI64U: convert(u64s, f32s, cast[uint64, float32]),
	code.OpF32DemoteF64:   convert(f64s, f32s, cast[float64, float32]),

	code.OpF64ConvertI32S: convert(i32s, f64s, cast[int32, float64]),
	code.OpF64ConvertI32U: convert(u32s, f64s, cast[uint32, float64]),
	code.OpF64ConvertI64S: convert(i64s, f64s, cast[int64, float64]),
	code.OpF64ConvertI64U: convert(u64s, f64s, cast[uint64, float64]),
	code.OpF64PromoteF32:  convert(f32s, f64s, cast[float32, float64]),

	code.OpI32ReinterpretF32: reinterpret,
	code.OpI64ReinterpretF64: reinterpret,
	code.OpF32ReinterpretI32: reinterpret,
	code.OpF64ReinterpretI64: reinterpret,

	code.OpI32Extend8S:  i32s.unary(signExtend[int32, int8]),
	code.OpI32Extend16S: i32s.unary(signExtend[int32, int16]),
	code.OpI64Extend8S:  i64s.unary(signExtend[int64, int8]),
	code.OpI64Extend16S: i64s.unary(signExtend[int64, int16]),
	code.OpI64Extend32S: i64s.unary(signExtend[int64, int32]),

	code.OpI32TruncSatF32S: convert(f32s, i32s, fromF32(i32TruncSatS)),
	code.OpI32TruncSatF32U: convert(f32s, u32s, fromF32(i32TruncSatU)),
	code.OpI32TruncSatF64S: convert(f64s, i32s, i32TruncSatS),
	code.OpI32TruncSatF64U: convert(f64s, u32s, i32TruncSatU),
	code.OpI64TruncSatF32S: convert(f32s, i64s, fromF32(i64TruncSatS)),
	code.OpI64TruncSatF32U: convert(f32s, u64s, fromF32(i64TruncSatU)),
	code.OpI64TruncSatF64S: convert(f64s, i64s, i64TruncSatS),
	code.OpI64TruncSatF64U: convert(f64s, u64s, i64TruncSatU),
}

var binaryRules = map[code.Opcode]binaryRule{
	code.OpI32Eq:  i32s.compare(eq[int32]),
	code.OpI32Ne:  i32s.compare(ne[int32]),
	code.OpI32LtS: i32s.compare(lt[int32]),
	code.OpI32LtU: u32s.compare(lt[uint32]),
	code.OpI32GtS: i32s.compare(gt[int32]),
	code.OpI32GtU: u32s.compare(gt[uint32]),
	code.OpI32LeS: i32s.compare(le[int32]),
	code.OpI32LeU: u32s.compare(le[uint32]),
	code.OpI32GeS: i32s.compare(ge[int32]),
	code.OpI32GeU: u32s.compare(ge[uint32]),

	code.OpI64Eq:  i64s.compare(eq[int64]),
	code.OpI64Ne:  i64s.compare(ne[int64]),
	code.OpI64LtS: i64s.compare(lt[int64]),
	code.OpI64LtU: u64s.compare(lt[uint64]),
	code.OpI64GtS: i64s.compare(gt[int64]),
	code.OpI64GtU: u64s.compare(gt[uint64]),
	code.OpI64LeS: i64s.compare(le[int64]),
	code.OpI64LeU: u64s.compare(le[uint64]),
	code.OpI64GeS: i64s.compare(ge[int64]),
	code.OpI64GeU: u64s.compare(ge[uint64]),

	code.OpF32Eq: f32s.compare(eq[float32]),
	code.OpF32Ne: f32s.compare(ne[float32]),
	code.OpF32Lt: f32s.compare(lt[float32]),
	code.OpF32Gt: f32s.compare(gt[float32]),
	code.OpF32Le: f32s.compare(le[float32]),
	code.OpF32Ge: f32s.compare(ge[float32]),

	code.OpF64Eq: f64s.compare(eq[float64]),
	code.OpF64Ne: f64s.compare(ne[float64]),
	code.OpF64Lt: f64s.compare(lt[float64]),
	code.OpF64Gt: f64s.compare(gt[float64]),
	code.OpF64Le: f64s.compare(le[float64]),
	code.OpF64Ge: f64s.compare(ge[float64]),

	code.OpI32Add:  i32s.binary(add[int32]),
	code.OpI32Sub:  i32s.binary(sub[int32]),
	code.OpI32Mul:  i32s.binary(mul[int32]),
	code.OpI32DivS: i32s.binary(i32DivS),
	code.OpI32DivU: u32s.binary(divU[uint32]),
	code.OpI32RemS: i32s.binary(remS[int32]),
	code.OpI32RemU: u32s.binary(remU[uint32]),
	code.OpI32And:  u32s.binary(and[uint32]),
	code.OpI32Or:   u32s.binary(or[uint32]),
	code.OpI32Xor:  u32s.binary(xor[uint32]),
	code.OpI32Shl:  u32s.binary(func(x, y uint32) uint32 { return x << (y & 31) }),
	code.OpI32ShrS: i32s.binary(func(x, y int32) int32 { return x >> (uint32(y) & 31) }),
	code.OpI32ShrU: u32s.binary(func(x, y uint32) uint32 { return x >> (y & 31) }),
	code.OpI32Rotl: u32s.binary(func(x, y uint32) uint32 { return bits.RotateLeft32(x, int(y&31)) }),
	code.OpI32Rotr: u32s.binary(func(x, y uint32) uint32 { return bits.RotateLeft32(x, -int(y&31)) }),

	code.OpI64Add:  i64s.binary(add[int64]),
	code.OpI64Sub:  i64s.binary(sub[int64]),
	code.OpI64Mul:  i64s.binary(mul[int64]),
	code.OpI64DivS: i64s.binary(i64DivS),
	code.OpI64DivU: u64s.binary(divU[uint64]),
	code.OpI64RemS: i64s.binary(remS[int64]),
	code.OpI64RemU: u64s.binary(remU[uint64]),
	code.OpI64And:  u64s.binary(and[uint64]),
	code.OpI64Or:   u64s.binary(or[uint64]),
	code.OpI64Xor:  u64s.binary(xor[uint64]),
	code.OpI64Shl:  u64s.binary(func(x, y uint64) uint64 { return x << (y & 63) }),
	code.OpI64ShrS: i64s.binary(func(x, y int64) int64 { return x >> (uint64(y) & 63) }),
	code.OpI64ShrU: u64s.binary(func(x, y uint64) uint64 { return x >> (y & 63) }),
	code.OpI64Rotl: u64s.binary(func(x, y uint64) uint64 { return bits.RotateLeft64(x, int(y&63)) }),
	code.OpI64Rotr: u64s.binary(func(x, y uint64) uint64 { return bits.RotateLeft64(x, -int(y&63)) }),

	code.OpF32Add:      f32s.binary(add[float32]),
	code.OpF32Sub:      f32s.binary(sub[float32]),
	code.OpF32Mul:      f32s.binary(mul[float32]),
	code.OpF32Div:      f32s.binary(div[float32]),
	code.OpF32Min:      f32s.binary(f32math2(fmin)),
	code.OpF32Max:      f32s.binary(f32math2(fmax)),
	code.OpF32Copysign: f32s.binary(f32math2(math.Copysign)),

	code.OpF64Add:      f64s.binary(add[float64]),
	code.OpF64Sub:      f64s.binary(sub[float64]),
	code.OpF64Mul:      f64s.binary(mul[float64]),
	code.OpF64Div:      f64s.binary(div[float64]),
	code.OpF64Min:      f64s.binary(fmin),
	code.OpF64Max:      f64s.binary(fmax),
	code.OpF64Copysign: f64s.binary(math.Copysign),
}

// evaluate folds a unary or binary operator whose operands are constants. Operators that would trap are
// not folded.
func evaluate(x ir.Expr) (*ir.Const, bool) {
	var v uint64
	var ok bool
	switch x := x.(type) {
	case *ir.Unop:
		if rule, has := unaryRules[x.Op]; has {
			if c, isConst := x.X.(*ir.Const); isConst {
				v, ok = apply(func() uint64 { return rule(c.Bits) })
			}
		}
	case *ir.Binop:
		if rule, has := binaryRules[x.Op]; has {
			cx, xConst := x.X.(*ir.Const)
			cy, yConst := x.Y.(*ir.Const)
			if xConst && yConst {
				v, ok = apply(func() uint64 { return rule(cx.Bits, cy.Bits) })
			}
		}
	}
	if !ok {
		return nil, false
	}

	t := x.Type()
	if t == wasm.ValueTypeI32 || t == wasm.ValueTypeF32 {
		v = uint64(uint32(v))
	}
	return &ir.Const{ValueType: t, Bits: v}, true
}

// apply runs a rule, reporting false if it traps.
func apply(rule func() uint64) (v uint64, ok bool) {
	defer func() {
		if x := recover(); x != nil {
			if x != errTrap {
				panic(x)
			}
			v, ok = 0, false
		}
	}()
	return rule(), true
}
