package code

import (
	"fmt"
	"math"
	"strings"

	"github.com/pgavlin/wasmir/wasm"
)

// Instruction is a single decoded instruction. Immediates are packed into Immediate; br_table keeps its
// target list in Labels and its default target in Immediate.
type Instruction struct {
	Opcode    Opcode `json:"opcode"`
	Immediate uint64 `json:"immediate"`
	Labels    []int  `json:"labels"`
}

// Immediate views. Each is meaningful only for the opcodes that carry that kind of immediate.

func (i *Instruction) Default() int      { return int(i.Immediate) }
func (i *Instruction) Labelidx() int     { return int(i.Immediate) }
func (i *Instruction) Funcidx() uint32   { return uint32(i.Immediate) }
func (i *Instruction) Localidx() uint32  { return uint32(i.Immediate) }
func (i *Instruction) Globalidx() uint32 { return uint32(i.Immediate) }
func (i *Instruction) Typeidx() uint32   { return uint32(i.Immediate) }
func (i *Instruction) I32() int32        { return int32(i.Immediate) }
func (i *Instruction) I64() int64        { return int64(i.Immediate) }
func (i *Instruction) F32() float32      { return math.Float32frombits(uint32(i.Immediate)) }
func (i *Instruction) F64() float64      { return math.Float64frombits(i.Immediate) }

// Memarg returns the offset and log2 alignment of a load or store.
func (i *Instruction) Memarg() (offset uint32, align uint32) {
	return uint32(i.Immediate), uint32(i.Immediate >> 32)
}

// Info returns the registry entry for the instruction's opcode.
func (i *Instruction) Info() (OpInfo, error) {
	return Lookup(i.Opcode)
}

// BlockType returns the parameter and result types of a block, loop or if instruction.
func (i *Instruction) BlockType(scope Scope) (in []wasm.ValueType, out wasm.ValueType, ok bool) {
	if i.Immediate&BlockTypeSpecial != 0 {
		t := wasm.ValueType(i.Immediate & 0xff)
		if t != wasm.ValueTypeVoid && !t.IsValid() {
			return nil, 0, false
		}
		return nil, t, true
	}
	sig, ok := scope.GetType(i.Typeidx())
	if !ok {
		return nil, 0, false
	}
	return sig.Params, sig.ResultType(), true
}

// Stack returns the number of operands the instruction pops and the number of results it pushes.
func (i *Instruction) Stack(scope Scope) (pop, push int) {
	switch i.Opcode {
	case OpCall:
		sig, _ := scope.GetFunctionSignature(i.Funcidx())
		return len(sig.Params), len(sig.Results())
	case OpCallIndirect:
		sig, _ := scope.GetType(i.Typeidx())
		return len(sig.Params) + 1, len(sig.Results())
	}
	info, err := i.Info()
	if err != nil {
		return 0, 0
	}
	return info.Pop, info.Push
}

func memarg(offset, align uint32) uint64 {
	return uint64(align)<<32 | uint64(offset)
}

// OpString returns the text name of the instruction's opcode.
func (i *Instruction) OpString() string {
	info, err := i.Info()
	if err != nil {
		return fmt.Sprintf("<invalid opcode 0x%x>", uint16(i.Opcode))
	}
	return info.Name
}

// String renders the instruction in flat text syntax with numeric indices.
func (i *Instruction) String() string {
	var b strings.Builder
	b.WriteString(i.OpString())
	i.writeImmediates(&b)
	return b.String()
}

func (i *Instruction) writeImmediates(b *strings.Builder) {
	switch i.Opcode {
	case OpBlock, OpLoop, OpIf:
		switch {
		case i.Immediate == BlockTypeEmpty:
		case i.Immediate&BlockTypeSpecial != 0:
			fmt.Fprintf(b, " (result %v)", wasm.ValueType(i.Immediate&0xff))
		default:
			fmt.Fprintf(b, " (type %v)", i.Typeidx())
		}
	case OpBrTable:
		for _, l := range i.Labels {
			fmt.Fprintf(b, " %d", l)
		}
		fmt.Fprintf(b, " %d", i.Default())
	case OpCallIndirect:
		fmt.Fprintf(b, " (type %v)", i.Typeidx())
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		fmt.Fprintf(b, " %d", uint32(i.Immediate))
	case OpI32Const:
		fmt.Fprintf(b, " %d", i.I32())
	case OpI64Const:
		fmt.Fprintf(b, " %d", i.I64())
	case OpF32Const:
		fmt.Fprintf(b, " %g", i.F32())
	case OpF64Const:
		fmt.Fprintf(b, " %g", i.F64())
	default:
		if info, err := i.Info(); err == nil && (info.Kind == KindMemoryLoad || info.Kind == KindMemoryStore) {
			offset, align := i.Memarg()
			if offset != 0 {
				fmt.Fprintf(b, " offset=%v", offset)
			}
			if align != 0 {
				fmt.Fprintf(b, " align=%v", uint64(1)<<align)
			}
		}
	}
}
