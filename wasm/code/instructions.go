package code

import "math"

// Constructors for building instruction sequences by hand, mostly for tests and the text front end.

func imm(op Opcode, v uint64) Instruction {
	return Instruction{Opcode: op, Immediate: v}
}

// structured builds a block, loop or if. An omitted block type is the empty type.
func structured(op Opcode, blockType []uint64) Instruction {
	if len(blockType) == 0 {
		return imm(op, BlockTypeEmpty)
	}
	return imm(op, blockType[0])
}

// Op returns an instruction with no immediates.
func Op(opcode Opcode) Instruction { return Instruction{Opcode: opcode} }

func Unreachable() Instruction { return Op(OpUnreachable) }
func Nop() Instruction         { return Op(OpNop) }
func Else() Instruction        { return Op(OpElse) }
func End() Instruction         { return Op(OpEnd) }
func Return() Instruction      { return Op(OpReturn) }
func Drop() Instruction        { return Op(OpDrop) }
func Select() Instruction      { return Op(OpSelect) }
func MemorySize() Instruction  { return Op(OpMemorySize) }
func MemoryGrow() Instruction  { return Op(OpMemoryGrow) }

func Block(blockType ...uint64) Instruction { return structured(OpBlock, blockType) }
func Loop(blockType ...uint64) Instruction  { return structured(OpLoop, blockType) }
func If(blockType ...uint64) Instruction    { return structured(OpIf, blockType) }

func Br(labelidx int) Instruction   { return imm(OpBr, uint64(labelidx)) }
func BrIf(labelidx int) Instruction { return imm(OpBrIf, uint64(labelidx)) }

// BrTable returns a br_table instruction. The last label is the default target.
func BrTable(labelidx int, labelidxN ...int) Instruction {
	all := append([]int{labelidx}, labelidxN...)
	last := len(all) - 1
	return Instruction{Opcode: OpBrTable, Immediate: uint64(all[last]), Labels: all[:last:last]}
}

func Call(funcidx uint32) Instruction         { return imm(OpCall, uint64(funcidx)) }
func CallIndirect(typeidx uint32) Instruction { return imm(OpCallIndirect, uint64(typeidx)) }

func LocalGet(localidx uint32) Instruction   { return imm(OpLocalGet, uint64(localidx)) }
func LocalSet(localidx uint32) Instruction   { return imm(OpLocalSet, uint64(localidx)) }
func LocalTee(localidx uint32) Instruction   { return imm(OpLocalTee, uint64(localidx)) }
func GlobalGet(globalidx uint32) Instruction { return imm(OpGlobalGet, uint64(globalidx)) }
func GlobalSet(globalidx uint32) Instruction { return imm(OpGlobalSet, uint64(globalidx)) }

// Mem returns a load or store instruction with the given memory argument. align is the log2 of the
// alignment, as encoded.
func Mem(opcode Opcode, offset, align uint32) Instruction {
	return imm(opcode, memarg(offset, align))
}

func I32Const(v int32) Instruction   { return imm(OpI32Const, uint64(v)) }
func I64Const(v int64) Instruction   { return imm(OpI64Const, uint64(v)) }
func F32Const(v float32) Instruction { return imm(OpF32Const, uint64(math.Float32bits(v))) }
func F64Const(v float64) Instruction { return imm(OpF64Const, math.Float64bits(v)) }
