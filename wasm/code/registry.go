package code

import (
	"fmt"

	"github.com/pgavlin/wasmir/wasm"
)

// Kind is the coarse classification of an opcode.
type Kind uint8

const (
	KindFlow Kind = iota
	KindLiteral
	KindUnary
	KindBinary
	KindTernary
	KindDrop
	KindMemoryLoad
	KindMemoryStore
	KindMemoryManagement
	KindVariable
	KindCall
)

func (k Kind) String() string {
	switch k {
	case KindFlow:
		return "flow"
	case KindLiteral:
		return "literal"
	case KindUnary:
		return "unary"
	case KindBinary:
		return "binary"
	case KindTernary:
		return "ternary"
	case KindDrop:
		return "drop"
	case KindMemoryLoad:
		return "memory-load"
	case KindMemoryStore:
		return "memory-store"
	case KindMemoryManagement:
		return "memory-management"
	case KindVariable:
		return "variable"
	case KindCall:
		return "call"
	default:
		return fmt.Sprintf("<unknown kind %d>", int(k))
	}
}

// OpInfo describes a single opcode.
//
// Pop and Push are the fixed operand and result counts. For calls they do not include the callee's
// parameters and results; use Instruction.Stack to account for those. Result is zero for opcodes whose
// result type depends on their operands or immediates (select, variable access, calls).
type OpInfo struct {
	Code    Opcode
	Name    string
	Kind    Kind
	Pop     int
	Push    int
	Operand wasm.ValueType
	Result  wasm.ValueType
}

// InvalidOpcodeError is returned when an opcode or opcode name is not present in the registry.
type InvalidOpcodeError struct {
	Code Opcode
	Name string
}

func (e *InvalidOpcodeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid opcode %q", e.Name)
	}
	if e.Code > 0xff {
		return fmt.Sprintf("invalid opcode 0x%02x 0x%02x", byte(e.Code>>8), byte(e.Code))
	}
	return fmt.Sprintf("invalid opcode 0x%02x", uint16(e.Code))
}

// Registry maps opcodes and opcode names to their descriptions. A Registry is immutable once built.
type Registry struct {
	byCode map[Opcode]*OpInfo
	byName map[string]*OpInfo
}

// Lookup returns a copy of the description of the given opcode.
func (r *Registry) Lookup(op Opcode) (OpInfo, error) {
	if info, ok := r.byCode[op]; ok {
		return *info, nil
	}
	return OpInfo{}, &InvalidOpcodeError{Code: op}
}

// LookupName returns the description of the opcode with the given text name. Legacy names (e.g.
// get_local) are accepted.
func (r *Registry) LookupName(name string) (OpInfo, error) {
	if info, ok := r.byName[name]; ok {
		return *info, nil
	}
	return OpInfo{}, &InvalidOpcodeError{Name: name}
}

// Opcodes returns the number of distinct opcodes in the registry.
func (r *Registry) Opcodes() int {
	return len(r.byCode)
}

var defaultRegistry = newRegistry()

// DefaultRegistry returns the process-wide opcode registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Lookup returns the description of the given opcode from the default registry.
func Lookup(op Opcode) (OpInfo, error) {
	return defaultRegistry.Lookup(op)
}

// LookupName returns the description of the named opcode from the default registry.
func LookupName(name string) (OpInfo, error) {
	return defaultRegistry.LookupName(name)
}

func newRegistry() *Registry {
	r := &Registry{
		byCode: make(map[Opcode]*OpInfo, len(opcodeTable)),
		byName: make(map[string]*OpInfo, len(opcodeTable)+len(legacyNames)),
	}
	for i := range opcodeTable {
		info := &opcodeTable[i]
		r.byCode[info.Code] = info
		r.byName[info.Name] = info
	}
	for legacy, name := range legacyNames {
		r.byName[legacy] = r.byName[name]
	}
	return r
}

var legacyNames = map[string]string{
	"get_local":           "local.get",
	"set_local":           "local.set",
	"tee_local":           "local.tee",
	"get_global":          "global.get",
	"set_global":          "global.set",
	"current_memory":      "memory.size",
	"grow_memory":         "memory.grow",
	"i32.wrap/i64":        "i32.wrap_i64",
	"i32.trunc_s/f32":     "i32.trunc_f32_s",
	"i32.trunc_u/f32":     "i32.trunc_f32_u",
	"i32.trunc_s/f64":     "i32.trunc_f64_s",
	"i32.trunc_u/f64":     "i32.trunc_f64_u",
	"i64.extend_s/i32":    "i64.extend_i32_s",
	"i64.extend_u/i32":    "i64.extend_i32_u",
	"i64.trunc_s/f32":     "i64.trunc_f32_s",
	"i64.trunc_u/f32":     "i64.trunc_f32_u",
	"i64.trunc_s/f64":     "i64.trunc_f64_s",
	"i64.trunc_u/f64":     "i64.trunc_f64_u",
	"f32.convert_s/i32":   "f32.convert_i32_s",
	"f32.convert_u/i32":   "f32.convert_i32_u",
	"f32.convert_s/i64":   "f32.convert_i64_s",
	"f32.convert_u/i64":   "f32.convert_i64_u",
	"f32.demote/f64":      "f32.demote_f64",
	"f64.convert_s/i32":   "f64.convert_i32_s",
	"f64.convert_u/i32":   "f64.convert_i32_u",
	"f64.convert_s/i64":   "f64.convert_i64_s",
	"f64.convert_u/i64":   "f64.convert_i64_u",
	"f64.promote/f32":     "f64.promote_f32",
	"i32.reinterpret/f32": "i32.reinterpret_f32",
	"i64.reinterpret/f64": "i64.reinterpret_f64",
	"f32.reinterpret/i32": "f32.reinterpret_i32",
	"f64.reinterpret/i64": "f64.reinterpret_i64",
}

const (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

var opcodeTable = [...]OpInfo{
	{OpUnreachable, "unreachable", KindFlow, 0, 0, 0, 0},
	{OpNop, "nop", KindFlow, 0, 0, 0, 0},
	{OpBlock, "block", KindFlow, 0, 0, 0, 0},
	{OpLoop, "loop", KindFlow, 0, 0, 0, 0},
	{OpIf, "if", KindFlow, 1, 0, i32, 0},
	{OpElse, "else", KindFlow, 0, 0, 0, 0},
	{OpEnd, "end", KindFlow, 0, 0, 0, 0},
	{OpBr, "br", KindFlow, 0, 0, 0, 0},
	{OpBrIf, "br_if", KindFlow, 1, 0, i32, 0},
	{OpBrTable, "br_table", KindFlow, 1, 0, i32, 0},
	{OpReturn, "return", KindFlow, 0, 0, 0, 0},
	{OpCall, "call", KindCall, 0, 0, 0, 0},
	{OpCallIndirect, "call_indirect", KindCall, 1, 0, i32, 0},
	{OpDrop, "drop", KindDrop, 1, 0, 0, 0},
	{OpSelect, "select", KindTernary, 3, 1, 0, 0},
	{OpLocalGet, "local.get", KindVariable, 0, 1, 0, 0},
	{OpLocalSet, "local.set", KindVariable, 1, 0, 0, 0},
	{OpLocalTee, "local.tee", KindVariable, 1, 1, 0, 0},
	{OpGlobalGet, "global.get", KindVariable, 0, 1, 0, 0},
	{OpGlobalSet, "global.set", KindVariable, 1, 0, 0, 0},
	{OpI32Load, "i32.load", KindMemoryLoad, 1, 1, i32, i32},
	{OpI64Load, "i64.load", KindMemoryLoad, 1, 1, i32, i64},
	{OpF32Load, "f32.load", KindMemoryLoad, 1, 1, i32, f32},
	{OpF64Load, "f64.load", KindMemoryLoad, 1, 1, i32, f64},
	{OpI32Load8S, "i32.load8_s", KindMemoryLoad, 1, 1, i32, i32},
	{OpI32Load8U, "i32.load8_u", KindMemoryLoad, 1, 1, i32, i32},
	{OpI32Load16S, "i32.load16_s", KindMemoryLoad, 1, 1, i32, i32},
	{OpI32Load16U, "i32.load16_u", KindMemoryLoad, 1, 1, i32, i32},
	{OpI64Load8S, "i64.load8_s", KindMemoryLoad, 1, 1, i32, i64},
	{OpI64Load8U, "i64.load8_u", KindMemoryLoad, 1, 1, i32, i64},
	{OpI64Load16S, "i64.load16_s", KindMemoryLoad, 1, 1, i32, i64},
	{OpI64Load16U, "i64.load16_u", KindMemoryLoad, 1, 1, i32, i64},
	{OpI64Load32S, "i64.load32_s", KindMemoryLoad, 1, 1, i32, i64},
	{OpI64Load32U, "i64.load32_u", KindMemoryLoad, 1, 1, i32, i64},
	{OpI32Store, "i32.store", KindMemoryStore, 2, 0, i32, 0},
	{OpI64Store, "i64.store", KindMemoryStore, 2, 0, i64, 0},
	{OpF32Store, "f32.store", KindMemoryStore, 2, 0, f32, 0},
	{OpF64Store, "f64.store", KindMemoryStore, 2, 0, f64, 0},
	{OpI32Store8, "i32.store8", KindMemoryStore, 2, 0, i32, 0},
	{OpI32Store16, "i32.store16", KindMemoryStore, 2, 0, i32, 0},
	{OpI64Store8, "i64.store8", KindMemoryStore, 2, 0, i64, 0},
	{OpI64Store16, "i64.store16", KindMemoryStore, 2, 0, i64, 0},
	{OpI64Store32, "i64.store32", KindMemoryStore, 2, 0, i64, 0},
	{OpMemorySize, "memory.size", KindMemoryManagement, 0, 1, 0, i32},
	{OpMemoryGrow, "memory.grow", KindMemoryManagement, 1, 1, i32, i32},
	{OpI32Const, "i32.const", KindLiteral, 0, 1, 0, i32},
	{OpI64Const, "i64.const", KindLiteral, 0, 1, 0, i64},
	{OpF32Const, "f32.const", KindLiteral, 0, 1, 0, f32},
	{OpF64Const, "f64.const", KindLiteral, 0, 1, 0, f64},
	{OpI32Eqz, "i32.eqz", KindUnary, 1, 1, i32, i32},
	{OpI32Eq, "i32.eq", KindBinary, 2, 1, i32, i32},
	{OpI32Ne, "i32.ne", KindBinary, 2, 1, i32, i32},
	{OpI32LtS, "i32.lt_s", KindBinary, 2, 1, i32, i32},
	{OpI32LtU, "i32.lt_u", KindBinary, 2, 1, i32, i32},
	{OpI32GtS, "i32.gt_s", KindBinary, 2, 1, i32, i32},
	{OpI32GtU, "i32.gt_u", KindBinary, 2, 1, i32, i32},
	{OpI32LeS, "i32.le_s", KindBinary, 2, 1, i32, i32},
	{OpI32LeU, "i32.le_u", KindBinary, 2, 1, i32, i32},
	{OpI32GeS, "i32.ge_s", KindBinary, 2, 1, i32, i32},
	{OpI32GeU, "i32.ge_u", KindBinary, 2, 1, i32, i32},
	{OpI64Eqz, "i64.eqz", KindUnary, 1, 1, i64, i32},
	{OpI64Eq, "i64.eq", KindBinary, 2, 1, i64, i32},
	{OpI64Ne, "i64.ne", KindBinary, 2, 1, i64, i32},
	{OpI64LtS, "i64.lt_s", KindBinary, 2, 1, i64, i32},
	{OpI64LtU, "i64.lt_u", KindBinary, 2, 1, i64, i32},
	{OpI64GtS, "i64.gt_s", KindBinary, 2, 1, i64, i32},
	{OpI64GtU, "i64.gt_u", KindBinary, 2, 1, i64, i32},
	{OpI64LeS, "i64.le_s", KindBinary, 2, 1, i64, i32},
	{OpI64LeU, "i64.le_u", KindBinary, 2, 1, i64, i32},
	{OpI64GeS, "i64.ge_s", KindBinary, 2, 1, i64, i32},
	{OpI64GeU, "i64.ge_u", KindBinary, 2, 1, i64, i32},
	{OpF32Eq, "f32.eq", KindBinary, 2, 1, f32, i32},
	{OpF32Ne, "f32.ne", KindBinary, 2, 1, f32, i32},
	{OpF32Lt, "f32.lt", KindBinary, 2, 1, f32, i32},
	{OpF32Gt, "f32.gt", KindBinary, 2, 1, f32, i32},
	{OpF32Le, "f32.le", KindBinary, 2, 1, f32, i32},
	{OpF32Ge, "f32.ge", KindBinary, 2, 1, f32, i32},
	{OpF64Eq, "f64.eq", KindBinary, 2, 1, f64, i32},
	{OpF64Ne, "f64.ne", KindBinary, 2, 1, f64, i32},
	{OpF64Lt, "f64.lt", KindBinary, 2, 1, f64, i32},
	{OpF64Gt, "f64.gt", KindBinary, 2, 1, f64, i32},
	{OpF64Le, "f64.le", KindBinary, 2, 1, f64, i32},
	{OpF64Ge, "f64.ge", KindBinary, 2, 1, f64, i32},
	{OpI32Clz, "i32.clz", KindUnary, 1, 1, i32, i32},
	{OpI32Ctz, "i32.ctz", KindUnary, 1, 1, i32, i32},
	{OpI32Popcnt, "i32.popcnt", KindUnary, 1, 1, i32, i32},
	{OpI32Add, "i32.add", KindBinary, 2, 1, i32, i32},
	{OpI32Sub, "i32.sub", KindBinary, 2, 1, i32, i32},
	{OpI32Mul, "i32.mul", KindBinary, 2, 1, i32, i32},
	{OpI32DivS, "i32.div_s", KindBinary, 2, 1, i32, i32},
	{OpI32DivU, "i32.div_u", KindBinary, 2, 1, i32, i32},
	{OpI32RemS, "i32.rem_s", KindBinary, 2, 1, i32, i32},
	{OpI32RemU, "i32.rem_u", KindBinary, 2, 1, i32, i32},
	{OpI32And, "i32.and", KindBinary, 2, 1, i32, i32},
	{OpI32Or, "i32.or", KindBinary, 2, 1, i32, i32},
	{OpI32Xor, "i32.xor", KindBinary, 2, 1, i32, i32},
	{OpI32Shl, "i32.shl", KindBinary, 2, 1, i32, i32},
	{OpI32ShrS, "i32.shr_s", KindBinary, 2, 1, i32, i32},
	{OpI32ShrU, "i32.shr_u", KindBinary, 2, 1, i32, i32},
	{OpI32Rotl, "i32.rotl", KindBinary, 2, 1, i32, i32},
	{OpI32Rotr, "i32.rotr", KindBinary, 2, 1, i32, i32},
	{OpI64Clz, "i64.clz", KindUnary, 1, 1, i64, i64},
	{OpI64Ctz, "i64.ctz", KindUnary, 1, 1, i64, i64},
	{OpI64Popcnt, "i64.popcnt", KindUnary, 1, 1, i64, i64},
	{OpI64Add, "i64.add", KindBinary, 2, 1, i64, i64},
	{OpI64Sub, "i64.sub", KindBinary, 2, 1, i64, i64},
	{OpI64Mul, "i64.mul", KindBinary, 2, 1, i64, i64},
	{OpI64DivS, "i64.div_s", KindBinary, 2, 1, i64, i64},
	{OpI64DivU, "i64.div_u", KindBinary, 2, 1, i64, i64},
	{OpI64RemS, "i64.rem_s", KindBinary, 2, 1, i64, i64},
	{OpI64RemU, "i64.rem_u", KindBinary, 2, 1, i64, i64},
	{OpI64And, "i64.and", KindBinary, 2, 1, i64, i64},
	{OpI64Or, "i64.or", KindBinary, 2, 1, i64, i64},
	{OpI64Xor, "i64.xor", KindBinary, 2, 1, i64, i64},
	{OpI64Shl, "i64.shl", KindBinary, 2, 1, i64, i64},
	{OpI64ShrS, "i64.shr_s", KindBinary, 2, 1, i64, i64},
	{OpI64ShrU, "i64.shr_u", KindBinary, 2, 1, i64, i64},
	{OpI64Rotl, "i64.rotl", KindBinary, 2, 1, i64, i64},
	{OpI64Rotr, "i64.rotr", KindBinary, 2, 1, i64, i64},
	{OpF32Abs, "f32.abs", KindUnary, 1, 1, f32, f32},
	{OpF32Neg, "f32.neg", KindUnary, 1, 1, f32, f32},
	{OpF32Ceil, "f32.ceil", KindUnary, 1, 1, f32, f32},
	{OpF32Floor, "f32.floor", KindUnary, 1, 1, f32, f32},
	{OpF32Trunc, "f32.trunc", KindUnary, 1, 1, f32, f32},
	{OpF32Nearest, "f32.nearest", KindUnary, 1, 1, f32, f32},
	{OpF32Sqrt, "f32.sqrt", KindUnary, 1, 1, f32, f32},
	{OpF32Add, "f32.add", KindBinary, 2, 1, f32, f32},
	{OpF32Sub, "f32.sub", KindBinary, 2, 1, f32, f32},
	{OpF32Mul, "f32.mul", KindBinary, 2, 1, f32, f32},
	{OpF32Div, "f32.div", KindBinary, 2, 1, f32, f32},
	{OpF32Min, "f32.min", KindBinary, 2, 1, f32, f32},
	{OpF32Max, "f32.max", KindBinary, 2, 1, f32, f32},
	{OpF32Copysign, "f32.copysign", KindBinary, 2, 1, f32, f32},
	{OpF64Abs, "f64.abs", KindUnary, 1, 1, f64, f64},
	{OpF64Neg, "f64.neg", KindUnary, 1, 1, f64, f64},
	{OpF64Ceil, "f64.ceil", KindUnary, 1, 1, f64, f64},
	{OpF64Floor, "f64.floor", KindUnary, 1, 1, f64, f64},
	{OpF64Trunc, "f64.trunc", KindUnary, 1, 1, f64, f64},
	{OpF64Nearest, "f64.nearest", KindUnary, 1, 1, f64, f64},
	{OpF64Sqrt, "f64.sqrt", KindUnary, 1, 1, f64, f64},
	{OpF64Add, "f64.add", KindBinary, 2, 1, f64, f64},
	{OpF64Sub, "f64.sub", KindBinary, 2, 1, f64, f64},
	{OpF64Mul, "f64.mul", KindBinary, 2, 1, f64, f64},
	{OpF64Div, "f64.div", KindBinary, 2, 1, f64, f64},
	{OpF64Min, "f64.min", KindBinary, 2, 1, f64, f64},
	{OpF64Max, "f64.max", KindBinary, 2, 1, f64, f64},
	{OpF64Copysign, "f64.copysign", KindBinary, 2, 1, f64, f64},
	{OpI32WrapI64, "i32.wrap_i64", KindUnary, 1, 1, i64, i32},
	{OpI32TruncF32S, "i32.trunc_f32_s", KindUnary, 1, 1, f32, i32},
	{OpI32TruncF32U, "i32.trunc_f32_u", KindUnary, 1, 1, f32, i32},
	{OpI32TruncF64S, "i32.trunc_f64_s", KindUnary, 1, 1, f64, i32},
	{OpI32TruncF64U, "i32.trunc_f64_u", KindUnary, 1, 1, f64, i32},
	{OpI64ExtendI32S, "i64.extend_i32_s", KindUnary, 1, 1, i32, i64},
	{OpI64ExtendI32U, "i64.extend_i32_u", KindUnary, 1, 1, i32, i64},
	{OpI64TruncF32S, "i64.trunc_f32_s", KindUnary, 1, 1, f32, i64},
	{OpI64TruncF32U, "i64.trunc_f32_u", KindUnary, 1, 1, f32, i64},
	{OpI64TruncF64S, "i64.trunc_f64_s", KindUnary, 1, 1, f64, i64},
	{OpI64TruncF64U, "i64.trunc_f64_u", KindUnary, 1, 1, f64, i64},
	{OpF32ConvertI32S, "f32.convert_i32_s", KindUnary, 1, 1, i32, f32},
	{OpF32ConvertI32U, "f32.convert_i32_u", KindUnary, 1, 1, i32, f32},
	{OpF32ConvertI64S, "f32.convert_i64_s", KindUnary, 1, 1, i64, f32},
	{OpF32ConvertI64U, "f32.convert_i64_u", KindUnary, 1, 1, i64, f32},
	{OpF32DemoteF64, "f32.demote_f64", KindUnary, 1, 1, f64, f32},
	{OpF64ConvertI32S, "f64.convert_i32_s", KindUnary, 1, 1, i32, f64},
	{OpF64ConvertI32U, "f64.convert_i32_u", KindUnary, 1, 1, i32, f64},
	{OpF64ConvertI64S, "f64.convert_i64_s", KindUnary, 1, 1, i64, f64},
	{OpF64ConvertI64U, "f64.convert_i64_u", KindUnary, 1, 1, i64, f64},
	{OpF64PromoteF32, "f64.promote_f32", KindUnary, 1, 1, f32, f64},
	{OpI32ReinterpretF32, "i32.reinterpret_f32", KindUnary, 1, 1, f32, i32},
	{OpI64ReinterpretF64, "i64.reinterpret_f64", KindUnary, 1, 1, f64, i64},
	{OpF32ReinterpretI32, "f32.reinterpret_i32", KindUnary, 1, 1, i32, f32},
	{OpF64ReinterpretI64, "f64.reinterpret_i64", KindUnary, 1, 1, i64, f64},
	{OpI32Extend8S, "i32.extend8_s", KindUnary, 1, 1, i32, i32},
	{OpI32Extend16S, "i32.extend16_s", KindUnary, 1, 1, i32, i32},
	{OpI64Extend8S, "i64.extend8_s", KindUnary, 1, 1, i64, i64},
	{OpI64Extend16S, "i64.extend16_s", KindUnary, 1, 1, i64, i64},
	{OpI64Extend32S, "i64.extend32_s", KindUnary, 1, 1, i64, i64},
	{OpI32TruncSatF32S, "i32.trunc_sat_f32_s", KindUnary, 1, 1, f32, i32},
	{OpI32TruncSatF32U, "i32.trunc_sat_f32_u", KindUnary, 1, 1, f32, i32},
	{OpI32TruncSatF64S, "i32.trunc_sat_f64_s", KindUnary, 1, 1, f64, i32},
	{OpI32TruncSatF64U, "i32.trunc_sat_f64_u", KindUnary, 1, 1, f64, i32},
	{OpI64TruncSatF32S, "i64.trunc_sat_f32_s", KindUnary, 1, 1, f32, i64},
	{OpI64TruncSatF32U, "i64.trunc_sat_f32_u", KindUnary, 1, 1, f32, i64},
	{OpI64TruncSatF64S, "i64.trunc_sat_f64_s", KindUnary, 1, 1, f64, i64},
	{OpI64TruncSatF64U, "i64.trunc_sat_f64_u", KindUnary, 1, 1, f64, i64},
}
