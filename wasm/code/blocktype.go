package code

import "github.com/pgavlin/wasmir/wasm"

// Block types are stored in an instruction's immediate. Single-result and empty block types have the
// top bit set; anything else is a type index.
const (
	BlockTypeSpecial = 0x8000000000000000
	BlockTypeMask    = 0x80000000ffffffff

	BlockTypeEmpty = 0x40 | BlockTypeSpecial
	BlockTypeI32   = 0x7f | BlockTypeSpecial
	BlockTypeI64   = 0x7e | BlockTypeSpecial
	BlockTypeF32   = 0x7d | BlockTypeSpecial
	BlockTypeF64   = 0x7c | BlockTypeSpecial
	BlockTypeV128  = 0x7b | BlockTypeSpecial
)

// BlockType returns the block type immediate that refers to the given type index.
func BlockType(typeidx uint32) uint64 {
	return uint64(typeidx)
}

// BlockTypeOf returns the block type immediate for a block with the given result type.
func BlockTypeOf(result wasm.ValueType) uint64 {
	return uint64(result) | BlockTypeSpecial
}
