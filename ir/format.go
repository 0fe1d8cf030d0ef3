package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
)

// Style decorates the tokens of formatted IR. The zero Printer uses PlainStyle.
type Style interface {
	Keyword(s string) string
	Name(s string) string
	Literal(s string) string
	Comment(s string) string
}

// PlainStyle leaves tokens unchanged.
type PlainStyle struct{}

func (PlainStyle) Keyword(s string) string { return s }
func (PlainStyle) Name(s string) string    { return s }
func (PlainStyle) Literal(s string) string { return s }
func (PlainStyle) Comment(s string) string { return s }

// A Printer formats IR as text.
type Printer struct {
	Style Style

	// Module, if set, is used to resolve function names in calls.
	Module *Module
}

// Fprint formats a Module, Function, Global, or Node with the default printer.
func Fprint(w io.Writer, x interface{}) error {
	var p Printer
	return p.Fprint(w, x)
}

// Sprint formats x as a string with the default printer.
func Sprint(x interface{}) string {
	var b strings.Builder
	if err := Fprint(&b, x); err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return b.String()
}

// Fprint formats a Module, Function, Global, or Node.
func (p *Printer) Fprint(w io.Writer, x interface{}) error {
	config := *p
	if config.Style == nil {
		config.Style = PlainStyle{}
	}
	if m, ok := x.(*Module); ok && config.Module == nil {
		config.Module = m
	}
	pp := &printer{Printer: &config, style: config.Style}

	switch x := x.(type) {
	case *Module:
		pp.module(x)
	case *Function:
		pp.function(x)
	case *Global:
		pp.global(x)
	case Stm:
		pp.stm(x)
	case Expr:
		pp.WriteString(pp.expr(x))
		pp.WriteByte('\n')
	default:
		return fmt.Errorf("cannot format value of type %T", x)
	}

	_, err := io.WriteString(w, pp.String())
	return err
}

type printer struct {
	*Printer
	strings.Builder

	style  Style
	indent int
}

func (p *printer) line(format string, args ...interface{}) {
	for i := 0; i < p.indent; i++ {
		p.WriteString("    ")
	}
	fmt.Fprintf(p, format, args...)
	p.WriteByte('\n')
}

func (p *printer) kw(s string) string {
	return p.style.Keyword(s)
}

func (p *printer) module(m *Module) {
	for _, g := range m.Globals {
		p.global(g)
	}
	if len(m.Globals) != 0 {
		p.WriteByte('\n')
	}
	for i, f := range m.Functions {
		if i > 0 {
			p.WriteByte('\n')
		}
		p.function(f)
	}
	for i, d := range m.Data {
		p.line("%s %d %s %s %s", p.kw("data"), i, p.kw("memory"), p.style.Literal(strconv.Itoa(int(d.MemoryIndex))), p.expr(d.Offset))
		p.indent++
		p.line("%s", p.style.Literal(strconv.Quote(string(d.Data))))
		p.indent--
	}
	for i, e := range m.Elements {
		refs := make([]string, len(e.Functions))
		for j, f := range e.Functions {
			refs[j] = p.funcName(f)
		}
		p.line("%s %d %s %s %s [%s]", p.kw("elem"), i, p.kw("table"), p.style.Literal(strconv.Itoa(int(e.TableIndex))), p.expr(e.Offset), strings.Join(refs, ", "))
	}
	if m.Start != nil {
		p.line("%s %s", p.kw("start"), p.funcName(*m.Start))
	}
}

func (p *printer) linkage(imp *wasm.ImportName, exports []string) string {
	var b strings.Builder
	if imp != nil {
		fmt.Fprintf(&b, " %s %s", p.kw("import"), p.style.Literal(strconv.Quote(imp.String())))
	}
	for _, e := range exports {
		fmt.Fprintf(&b, " %s %s", p.kw("export"), p.style.Literal(strconv.Quote(e)))
	}
	return b.String()
}

func (p *printer) global(g *Global) {
	mut := ""
	if g.Mutable {
		mut = p.kw("mut") + " "
	}
	header := fmt.Sprintf("%s %s %s%v%s", p.kw("global"), p.style.Name(globalName(g.Index)), mut, g.Type, p.linkage(g.Import, g.Exports))
	if g.Init == nil {
		p.line("%s", header)
		return
	}
	if v, ok := InitValue(g.Init); ok {
		p.line("%s = %s", header, p.expr(v))
		return
	}
	p.line("%s {", header)
	p.indent++
	p.stm(g.Init)
	p.indent--
	p.line("}")
}

func (p *printer) function(f *Function) {
	params := make([]string, len(f.Signature.Params))
	for i, t := range f.Signature.Params {
		params[i] = fmt.Sprintf("%s %v", p.style.Name(localName(Local{Index: uint32(i), Type: t})), t)
	}
	header := fmt.Sprintf("%s %s(%s)", p.kw("func"), p.style.Name(FunctionName(f.Index, f.Name)), strings.Join(params, ", "))
	if f.Signature.HasResult() {
		header += " " + f.Signature.Result.String()
	}
	header += p.linkage(f.Import, f.Exports)

	for _, d := range f.Diagnostics {
		p.line("%s", p.style.Comment("// "+d))
	}
	if f.Body == nil {
		p.line("%s", header)
		return
	}

	p.line("%s {", header)
	p.indent++
	for _, l := range f.Locals[len(f.Signature.Params):] {
		p.line("%s %s %v", p.kw("local"), p.style.Name(localName(l)), l.Type)
	}
	for _, t := range Temps(f.Body) {
		p.line("%s %s %v", p.kw("local"), p.style.Name(localName(t)), t.Type)
	}
	p.stms(f.Body)
	p.indent--
	p.line("}")
}

func (p *printer) stms(s *Sequence) {
	for _, s := range s.Stms {
		p.stm(s)
	}
}

func (p *printer) block(header string, body *Sequence) {
	p.line("%s {", header)
	p.indent++
	p.stms(body)
	p.indent--
	p.line("}")
}

func (p *printer) stm(s Stm) {
	switch s := s.(type) {
	case *Sequence:
		p.stms(s)
	case *Block:
		p.block(p.kw("block")+" "+p.label(s.Label), s.Body)
	case *Loop:
		p.block(p.kw("loop")+" "+p.label(s.Label), s.Body)
	case *If:
		p.block(fmt.Sprintf("%s %s %s", p.kw("if"), p.label(s.Label), p.expr(s.Cond)), s.Then)
	case *IfElse:
		p.line("%s %s %s {", p.kw("if"), p.label(s.Label), p.expr(s.Cond))
		p.indent++
		p.stms(s.Then)
		p.indent--
		p.line("} %s {", p.kw("else"))
		p.indent++
		p.stms(s.Else)
		p.indent--
		p.line("}")
	case *SetLocal:
		p.line("%s = %s", p.style.Name(localName(s.Local)), p.expr(s.Value))
	case *SetGlobal:
		p.line("%s = %s", p.style.Name(globalName(s.Index)), p.expr(s.Value))
	case *Return:
		p.line("%s %s", p.kw("return"), p.expr(s.Value))
	case *ReturnVoid:
		p.line("%s", p.kw("return"))
	case *ExpressionStatement:
		p.line("%s", p.expr(s.X))
	case *MemoryWrite:
		p.line("%s(%s, %s)", p.kw(opName(s.Op)+memSuffix(s.Offset, s.Align)), p.expr(s.Addr), p.expr(s.Value))
	case *Branch:
		p.line("%s %s", p.kw(branchKeyword(s.Label)), p.style.Name(s.Label.Name))
	case *BranchIf:
		p.line("%s %s %s %s", p.kw("if"), p.expr(s.Cond), p.kw(branchKeyword(s.Label)), p.style.Name(s.Label.Name))
	case *BranchTable:
		labels := make([]string, len(s.Labels))
		for i, l := range s.Labels {
			labels[i] = p.style.Name(l.Name)
		}
		p.line("%s %s [%s] %s %s", p.kw("br_table"), p.expr(s.Index), strings.Join(labels, ", "), p.kw("default"), p.style.Name(s.Default.Name))
	case *SetPhi:
		p.line("%s = %s", p.style.Name(phiName(s.Label)), p.expr(s.Value))
	case *Unreachable:
		p.line("%s", p.kw("unreachable"))
	case *Nop:
		p.line("%s", p.kw("nop"))
	default:
		panic(fmt.Errorf("unexpected statement of type %T", s))
	}
}

func (p *printer) label(l *Label) string {
	if l.Type == wasm.ValueTypeVoid {
		return p.style.Name(l.Name)
	}
	return fmt.Sprintf("%s %v", p.style.Name(l.Name), l.Type)
}

func (p *printer) exprs(xs []Expr) string {
	s := make([]string, len(xs))
	for i, x := range xs {
		s[i] = p.expr(x)
	}
	return strings.Join(s, ", ")
}

func (p *printer) funcName(index uint32) string {
	name := ""
	if p.Module != nil {
		if f, ok := p.Module.Function(index); ok {
			name = f.Name
		}
	}
	return p.style.Name(FunctionName(index, name))
}

func (p *printer) expr(x Expr) string {
	switch x := x.(type) {
	case *Const:
		return p.style.Literal(constString(x))
	case *LocalRef:
		return p.style.Name(localName(x.Local))
	case *GlobalRef:
		return p.style.Name(globalName(x.Index))
	case *Unop:
		return fmt.Sprintf("%s(%s)", p.kw(opName(x.Op)), p.expr(x.X))
	case *Binop:
		return fmt.Sprintf("%s(%s, %s)", p.kw(opName(x.Op)), p.expr(x.X), p.expr(x.Y))
	case *Ternary:
		return fmt.Sprintf("%s(%s, %s, %s)", p.kw("select"), p.expr(x.Cond), p.expr(x.X), p.expr(x.Y))
	case *Call:
		return fmt.Sprintf("%s(%s)", p.funcName(x.Func), p.exprs(x.Args))
	case *CallIndirect:
		args := p.exprs(x.Args)
		if args != "" {
			args = ", " + args
		}
		return fmt.Sprintf("%s[%s %d](%s%s)", p.kw("call_indirect"), p.kw("type"), x.TypeIndex, p.expr(x.Callee), args)
	case *MemoryRead:
		return fmt.Sprintf("%s(%s)", p.kw(opName(x.Op)+memSuffix(x.Offset, x.Align)), p.expr(x.Addr))
	case *MemorySize:
		return p.kw("memory.size") + "()"
	case *MemoryGrow:
		return fmt.Sprintf("%s(%s)", p.kw("memory.grow"), p.expr(x.Delta))
	case *Phi:
		return p.style.Name(phiName(x.Label))
	case *InvalidExpr:
		return p.style.Comment(fmt.Sprintf("invalid<%v>(%q)", x.ValueType, x.Message))
	default:
		panic(fmt.Errorf("unexpected expression of type %T", x))
	}
}

func constString(c *Const) string {
	switch c.ValueType {
	case wasm.ValueTypeI32:
		return strconv.FormatInt(int64(c.I32()), 10)
	case wasm.ValueTypeI64:
		return strconv.FormatInt(c.I64(), 10) + "L"
	case wasm.ValueTypeF32:
		return strconv.FormatFloat(float64(c.F32()), 'g', -1, 32) + "f"
	case wasm.ValueTypeF64:
		return strconv.FormatFloat(c.F64(), 'g', -1, 64)
	default:
		return fmt.Sprintf("%v(0x%x)", c.ValueType, c.Bits)
	}
}

func opName(op code.Opcode) string {
	info, err := code.Lookup(op)
	if err != nil {
		return fmt.Sprintf("op%#x", uint16(op))
	}
	return info.Name
}

func memSuffix(offset, align uint32) string {
	s := ""
	if offset != 0 {
		s += fmt.Sprintf("+%d", offset)
	}
	if align != 0 {
		s += fmt.Sprintf("@%d", uint64(1)<<align)
	}
	return s
}

func branchKeyword(l *Label) string {
	return l.Kind.String()
}

func phiName(l *Label) string {
	return l.Name + ".result"
}

func localName(l Local) string {
	if l.Temp {
		return fmt.Sprintf("t%d_%v", l.Index, l.Type)
	}
	return fmt.Sprintf("l%d", l.Index)
}

func globalName(index uint32) string {
	return fmt.Sprintf("g%d", index)
}
