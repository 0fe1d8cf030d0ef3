package code

import (
	"encoding/binary"
	"io"

	"github.com/pgavlin/wasmir/wasm/leb128"
)

func encodeBlockType(w io.Writer, instr Instruction) error {
	// Check for special block types.
	if instr.Immediate&BlockTypeSpecial != 0 {
		_, err := w.Write([]byte{byte(instr.Immediate)})
		return err
	}

	_, err := leb128.WriteVarint64(w, int64(instr.Immediate))
	return err
}

func encodeInstruction(w io.Writer, instr Instruction) error {
	if instr.Opcode > 0xff {
		if _, err := w.Write([]byte{byte(instr.Opcode >> 8)}); err != nil {
			return err
		}
		_, err := leb128.WriteVarUint32(w, uint32(instr.Opcode&0xff))
		return err
	}

	if _, err := w.Write([]byte{byte(instr.Opcode)}); err != nil {
		return err
	}

	if info, err := Lookup(instr.Opcode); err == nil && (info.Kind == KindMemoryLoad || info.Kind == KindMemoryStore) {
		offset, align := instr.Memarg()
		if _, err := leb128.WriteVarUint32(w, align); err != nil {
			return err
		}
		_, err := leb128.WriteVarUint32(w, offset)
		return err
	}

	switch instr.Opcode {
	case OpBlock, OpLoop, OpIf:
		return encodeBlockType(w, instr)
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		_, err := leb128.WriteVarUint32(w, uint32(instr.Immediate))
		return err
	case OpBrTable:
		if _, err := leb128.WriteVarUint32(w, uint32(len(instr.Labels))); err != nil {
			return err
		}
		for _, l := range instr.Labels {
			if _, err := leb128.WriteVarUint32(w, uint32(l)); err != nil {
				return err
			}
		}
		_, err := leb128.WriteVarUint32(w, uint32(instr.Immediate))
		return err
	case OpCallIndirect:
		if _, err := leb128.WriteVarUint32(w, uint32(instr.Immediate)); err != nil {
			return err
		}
		_, err := w.Write([]byte{0x00})
		return err
	case OpMemorySize, OpMemoryGrow:
		_, err := w.Write([]byte{0x00})
		return err
	case OpI32Const:
		_, err := leb128.WriteVarint64(w, int64(int32(instr.Immediate)))
		return err
	case OpI64Const:
		_, err := leb128.WriteVarint64(w, int64(instr.Immediate))
		return err
	case OpF32Const:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(instr.Immediate))
		_, err := w.Write(buf[:])
		return err
	case OpF64Const:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], instr.Immediate)
		_, err := w.Write(buf[:])
		return err
	}

	return nil
}

// Encode writes the binary encoding of an instruction stream. The stream must end with an end
// instruction.
func Encode(w io.Writer, body []Instruction) error {
	for {
		if len(body) == 0 {
			return io.ErrUnexpectedEOF
		}

		if err := encodeInstruction(w, body[0]); err != nil {
			return err
		}
		if body[0].Opcode == OpEnd && len(body) == 1 {
			return nil
		}
		body = body[1:]
	}
}
