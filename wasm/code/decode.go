package code

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/leb128"
)

var ErrInvalidInstruction = errors.New("invalid instruction")

var (
	errUnbalancedElse = errors.New("else without matching if")
	errMissingEnd     = errors.New("unexpected end of instruction stream")
	errTrailingBytes  = errors.New("instructions after final end")
)

// Decode decodes a raw instruction stream, such as a function body or a constant expression. The stream
// must be terminated by the end instruction that closes its outermost block; that instruction is
// included in the result.
//
// Truncated or malformed streams produce a *wasm.FormatError. Unknown opcodes produce an error that wraps
// an *InvalidOpcodeError.
func Decode(body []byte) ([]Instruction, error) {
	r := bytes.NewReader(body)

	instrs := make([]Instruction, 0, len(body)/2)
	var kinds []Opcode
	for {
		offset := int64(len(body) - r.Len())

		instr, err := decodeInstruction(r)
		if err != nil {
			var invalid *InvalidOpcodeError
			if errors.As(err, &invalid) {
				return nil, fmt.Errorf("offset %d: %w", offset, err)
			}
			if err == io.EOF {
				err = errMissingEnd
			}
			return nil, &wasm.FormatError{Offset: offset, Section: wasm.SectionIDCode.String(), Err: truncated(err)}
		}
		instrs = append(instrs, instr)

		switch instr.Opcode {
		case OpBlock, OpLoop, OpIf:
			kinds = append(kinds, instr.Opcode)
		case OpElse:
			if len(kinds) == 0 || kinds[len(kinds)-1] != OpIf {
				return nil, &wasm.FormatError{Offset: offset, Section: wasm.SectionIDCode.String(), Err: errUnbalancedElse}
			}
			kinds[len(kinds)-1] = OpElse
		case OpEnd:
			if len(kinds) == 0 {
				if r.Len() != 0 {
					return nil, &wasm.FormatError{Offset: offset + 1, Section: wasm.SectionIDCode.String(), Err: errTrailingBytes}
				}
				return instrs, nil
			}
			kinds = kinds[:len(kinds)-1]
		}
	}
}

func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func decodeBlockType(r io.Reader) (uint64, error) {
	n, err := leb128.ReadVarint33(r)
	if err != nil {
		return 0, err
	}
	if n >= 0 {
		return uint64(n) & 0x7fffffffffffffff, nil
	}

	switch t := byte(n & 0x7f); t {
	case 0x40, 0x7f, 0x7e, 0x7d, 0x7c, 0x7b:
		return uint64(t) | BlockTypeSpecial, nil
	default:
		return 0, wasm.InvalidValueTypeError(t)
	}
}

func readIndex(r io.Reader) (uint64, error) {
	index, err := leb128.ReadVarUint32(r)
	return uint64(index), truncated(err)
}

func readReserved(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return truncated(err)
	}
	if buf[0] != 0x00 {
		return ErrInvalidInstruction
	}
	return nil
}

func decodeInstruction(r io.Reader) (Instruction, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return Instruction{}, err
	}

	opcode := Opcode(buf[0])
	if opcode == OpPrefix {
		sub, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, truncated(err)
		}
		if sub > 0xff {
			return Instruction{}, &InvalidOpcodeError{Code: opcode<<8 | 0xff}
		}
		opcode = OpPrefix<<8 | Opcode(sub)
	}

	info, err := Lookup(opcode)
	if err != nil {
		return Instruction{}, err
	}

	var immediate uint64
	var labels []int
	switch info.Kind {
	case KindMemoryLoad, KindMemoryStore:
		align, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, truncated(err)
		}
		offset, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, truncated(err)
		}
		return Instruction{Opcode: opcode, Immediate: memarg(offset, align)}, nil
	}

	switch opcode {
	case OpBlock, OpLoop, OpIf:
		if immediate, err = decodeBlockType(r); err != nil {
			return Instruction{}, truncated(err)
		}
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		if immediate, err = readIndex(r); err != nil {
			return Instruction{}, err
		}
	case OpBrTable:
		numLabels, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, truncated(err)
		}

		labels = make([]int, 0, numLabels&0xffff)
		for i := uint32(0); i < numLabels; i++ {
			label, err := leb128.ReadVarUint32(r)
			if err != nil {
				return Instruction{}, truncated(err)
			}
			labels = append(labels, int(label))
		}

		if immediate, err = readIndex(r); err != nil {
			return Instruction{}, err
		}
	case OpCallIndirect:
		if immediate, err = readIndex(r); err != nil {
			return Instruction{}, err
		}
		if err = readReserved(r, buf[:]); err != nil {
			return Instruction{}, err
		}
	case OpMemorySize, OpMemoryGrow:
		if err = readReserved(r, buf[:]); err != nil {
			return Instruction{}, err
		}
	case OpI32Const:
		value, err := leb128.ReadVarint32(r)
		if err != nil {
			return Instruction{}, truncated(err)
		}
		immediate = uint64(value)
	case OpI64Const:
		value, err := leb128.ReadVarint64(r)
		if err != nil {
			return Instruction{}, truncated(err)
		}
		immediate = uint64(value)
	case OpF32Const:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return Instruction{}, truncated(err)
		}
		immediate = uint64(binary.LittleEndian.Uint32(buf[:4]))
	case OpF64Const:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return Instruction{}, truncated(err)
		}
		immediate = binary.LittleEndian.Uint64(buf[:8])
	default:
		// Single-byte encoding; already done
	}

	return Instruction{
		Opcode:    opcode,
		Immediate: immediate,
		Labels:    labels,
	}, nil
}
