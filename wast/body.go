package wast

import (
	"bytes"
	"math/bits"
	"strings"

	"github.com/pgavlin/wasmir/wasm/code"
)

// labels is an immutable chain of the labels in scope, innermost first. Entering a construct links a new
// entry in front of the enclosing chain, so sibling constructs never see each other's labels.
type labels struct {
	name   string
	parent *labels
}

func (l *labels) enter(name string) *labels {
	return &labels{name: name, parent: l}
}

func (l *labels) depth(name string) (int, bool) {
	d := 0
	for s := l; s != nil; s = s.parent {
		if s.name == name {
			return d, true
		}
		d++
	}
	return 0, false
}

// body translates flat and folded instructions into an instruction stream.
type body struct {
	m      *module
	locals *space
	instrs []code.Instruction

	// labels maps the ordinal of each named block, loop, or if to its name.
	labels map[uint32]string
	blocks uint32
}

func newBody(m *module, locals *space) *body {
	return &body{m: m, locals: locals, labels: map[uint32]string{}}
}

func (b *body) emit(instr code.Instruction) {
	b.instrs = append(b.instrs, instr)
}

func (b *body) open(instr code.Instruction, name string) {
	if name != "" {
		b.labels[b.blocks] = name
	}
	b.blocks++
	b.emit(instr)
}

// encode terminates the stream and returns its binary encoding.
func (b *body) encode() []byte {
	var buf bytes.Buffer
	if err := code.Encode(&buf, append(b.instrs, code.End())); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var structured = map[string]code.Opcode{
	"block": code.OpBlock,
	"loop":  code.OpLoop,
	"if":    code.OpIf,
}

// seq translates instructions until c is exhausted or positioned at an end or else keyword.
func (b *body) seq(c *cursor, ls *labels) {
	for !c.done() {
		switch it := c.peek().(type) {
		case *Node:
			c.next()
			b.folded(it, ls)
		case *Token:
			if it.Kind != KEYWORD {
				panic(errorf(it, "expected an instruction, got %v", it))
			}
			if it.Text == "end" || it.Text == "else" {
				return
			}
			c.next()
			b.flat(it, c, ls)
		}
	}
}

func (b *body) flat(op *Token, c *cursor, ls *labels) {
	opcode, ok := structured[op.Text]
	if !ok {
		b.emit(b.plain(op, c, ls))
		return
	}

	name := c.name()
	b.open(code.Instruction{Opcode: opcode, Immediate: b.blockType(c)}, name)

	inner := ls.enter(name)
	b.seq(c, inner)
	if opcode == code.OpIf && c.keyword("else") {
		closingName(c, name)
		b.emit(code.Else())
		b.seq(c, inner)
	}
	if !c.keyword("end") {
		panic(errorf(c.at(), "%s without matching end", op.Text))
	}
	closingName(c, name)
	b.emit(code.End())
}

// closingName consumes the optional label that may follow else or end. It must repeat the construct's
// label.
func closingName(c *cursor, name string) {
	if tok, ok := c.token(NAME); ok && tok.Text != name {
		panic(errorf(tok, "mismatched label %s (expected %q)", tok.Text, name))
	}
}

func (b *body) folded(n *Node, ls *labels) {
	c := newCursor(n)
	switch n.Name {
	case "block", "loop":
		name := c.name()
		b.open(code.Instruction{Opcode: structured[n.Name], Immediate: b.blockType(c)}, name)
		b.seq(c, ls.enter(name))
		c.end()
		b.emit(code.End())
	case "if":
		name := c.name()
		blockType := b.blockType(c)
		for !c.done() {
			cond, ok := c.peek().(*Node)
			if !ok || cond.Name == "then" || cond.Name == "else" {
				break
			}
			c.next()
			b.folded(cond, ls)
		}

		then, ok := c.node("then")
		if !ok {
			panic(errorf(c.at(), "expected (then ...)"))
		}
		b.open(code.Instruction{Opcode: code.OpIf, Immediate: blockType}, name)
		inner := ls.enter(name)
		b.list(then, inner)
		if els, ok := c.node("else"); ok {
			b.emit(code.Else())
			b.list(els, inner)
		}
		c.end()
		b.emit(code.End())
	case "":
		panic(errorf(n, "expected an instruction"))
	default:
		instr := b.plain(&Token{Kind: KEYWORD, Pos: n.Pos, Text: n.Name}, c, ls)
		for !c.done() {
			operand, ok := c.next().(*Node)
			if !ok {
				panic(errorf(c.items[c.i-1], "unexpected %v in %s", describeItem(c.items[c.i-1]), n.Name))
			}
			b.folded(operand, ls)
		}
		b.emit(instr)
	}
}

func (b *body) list(n *Node, ls *labels) {
	c := newCursor(n)
	b.seq(c, ls)
	c.end()
}

// blockType parses the type of a block, loop, or if. A single result needs no type index.
func (b *body) blockType(c *cursor) uint64 {
	use := b.m.parseTypeUse(c)
	if !use.explicit && len(use.sig.Params) == 0 {
		return code.BlockTypeOf(use.sig.ResultType())
	}
	return code.BlockType(b.m.typeIndex(use))
}

// plain translates an instruction that does not open a construct. Immediates are read from c.
func (b *body) plain(op *Token, c *cursor, ls *labels) code.Instruction {
	info, err := code.LookupName(op.Text)
	if err != nil {
		panic(err)
	}

	instr := code.Instruction{Opcode: info.Code}
	switch info.Code {
	case code.OpBlock, code.OpLoop, code.OpIf, code.OpElse, code.OpEnd:
		panic(errorf(op, "unexpected %s", op.Text))
	case code.OpBr, code.OpBrIf:
		instr.Immediate = uint64(b.label(c.expectIndex(), ls))
	case code.OpBrTable:
		var targets []int
		for {
			tok, ok := c.index()
			if !ok {
				break
			}
			targets = append(targets, b.label(tok, ls))
		}
		if len(targets) == 0 {
			panic(errorf(op, "br_table requires a default label"))
		}
		instr.Immediate, instr.Labels = uint64(targets[len(targets)-1]), targets[:len(targets)-1]
	case code.OpCall:
		instr.Immediate = uint64(b.m.funcs.resolve(c.expectIndex()))
	case code.OpCallIndirect:
		instr.Immediate = uint64(b.m.typeIndex(b.m.parseTypeUse(c)))
	case code.OpLocalGet, code.OpLocalSet, code.OpLocalTee:
		instr.Immediate = uint64(b.locals.resolve(c.expectIndex()))
	case code.OpGlobalGet, code.OpGlobalSet:
		instr.Immediate = uint64(b.m.globals.resolve(c.expectIndex()))
	case code.OpI32Const:
		tok := c.expectToken(NUMBER)
		v, err := parseInt(tok.Text, 32)
		if err != nil {
			panic(errorf(tok, "%v", err))
		}
		instr = code.I32Const(int32(uint32(v)))
	case code.OpI64Const:
		tok := c.expectToken(NUMBER)
		v, err := parseInt(tok.Text, 64)
		if err != nil {
			panic(errorf(tok, "%v", err))
		}
		instr.Immediate = v
	case code.OpF32Const, code.OpF64Const:
		format := f32Format
		if info.Code == code.OpF64Const {
			format = f64Format
		}
		tok := c.expectToken(NUMBER)
		v, err := parseFloat(tok.Text, format)
		if err != nil {
			panic(errorf(tok, "%v", err))
		}
		instr.Immediate = v
	case code.OpMemorySize, code.OpMemoryGrow:
		if tok, ok := c.index(); ok && b.m.memories.resolve(tok) != 0 {
			panic(errorf(tok, "only memory 0 is addressable"))
		}
	case code.OpSelect:
		if n, ok := c.node("result"); ok {
			rc := newCursor(n)
			rc.valueType()
			rc.end()
		}
	default:
		if info.Kind == code.KindMemoryLoad || info.Kind == code.KindMemoryStore {
			offset, align := b.memarg(info, c)
			instr = code.Mem(info.Code, offset, align)
		}
	}
	return instr
}

func (b *body) label(tok *Token, ls *labels) int {
	if tok.Kind == NAME {
		d, ok := ls.depth(tok.Text)
		if !ok {
			panic(&NameResolutionError{Kind: "label", Name: tok.Text})
		}
		return d
	}
	v, err := parseU32(tok.Text)
	if err != nil {
		panic(errorf(tok, "%v", err))
	}
	return int(v)
}

// memarg parses the optional offset= and align= immediates. The alignment is returned as a power of
// two exponent and defaults to the access's natural alignment.
func (b *body) memarg(info code.OpInfo, c *cursor) (offset, align uint32) {
	align = naturalAlignment(info.Name)
	for {
		tok, ok := c.peek().(*Token)
		if !ok || tok.Kind != KEYWORD {
			return offset, align
		}

		var err error
		switch {
		case strings.HasPrefix(tok.Text, "offset="):
			offset, err = parseU32(tok.Text[len("offset="):])
		case strings.HasPrefix(tok.Text, "align="):
			var n uint32
			n, err = parseU32(tok.Text[len("align="):])
			if err == nil && (n == 0 || n&(n-1) != 0) {
				panic(errorf(tok, "alignment must be a power of two"))
			}
			align = uint32(bits.TrailingZeros32(n))
		default:
			return offset, align
		}
		if err != nil {
			panic(errorf(tok, "%v", err))
		}
		c.next()
	}
}

// naturalAlignment returns the alignment exponent of an access's width.
func naturalAlignment(name string) uint32 {
	access := name[strings.IndexByte(name, '.')+1:]
	switch {
	case strings.Contains(access, "8"):
		return 0
	case strings.Contains(access, "16"):
		return 1
	case strings.Contains(access, "32"):
		return 2
	case strings.HasPrefix(name, "i64"), strings.HasPrefix(name, "f64"):
		return 3
	default:
		return 2
	}
}
