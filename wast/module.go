package wast

import (
	"bytes"
	"io"

	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// space is one of a module's index spaces, or the locals of a function.
type space struct {
	kind  string
	names map[string]uint32
	count uint32
}

func newSpace(kind string) *space {
	return &space{kind: kind, names: map[string]uint32{}}
}

// bind names the entry at index.
func (s *space) bind(it Item, name string, index uint32) {
	if name == "" {
		return
	}
	if _, ok := s.names[name]; ok {
		panic(errorf(it, "duplicate %s %s", s.kind, name))
	}
	s.names[name] = index
}

// add appends a new entry to the space and returns its index.
func (s *space) add(it Item, name string) uint32 {
	index := s.count
	s.count++
	s.bind(it, name, index)
	return index
}

func (s *space) resolve(tok *Token) uint32 {
	switch tok.Kind {
	case NUMBER:
		v, err := parseU32(tok.Text)
		if err != nil {
			panic(errorf(tok, "%v", err))
		}
		return v
	case NAME:
		if v, ok := s.names[tok.Text]; ok {
			return v
		}
		panic(&NameResolutionError{Kind: s.kind, Name: tok.Text})
	default:
		panic(errorf(tok, "expected a %s index", s.kind))
	}
}

// counter hands out indices in a space where imports precede definitions.
type counter struct {
	imports, defs uint32
}

func (c *counter) next(imported bool) uint32 {
	if imported {
		c.imports++
		return c.imports - 1
	}
	c.defs++
	return c.defs - 1
}

type funcDecl struct {
	node   *Node
	index  uint32
	locals *space
	body   *cursor
}

type globalDecl struct {
	node  *Node
	index uint32
	init  *cursor
}

// Options control text decoding.
type Options struct {
	// KeepGoing causes a function whose body cannot be translated to be replaced by a body that traps
	// instead of failing the module. The failures are returned together alongside the module.
	KeepGoing bool
}

// trapBody stands in for a function body that failed to translate.
var trapBody = []byte{byte(code.OpUnreachable), byte(code.OpEnd)}

type module struct {
	m       *wasm.Module
	options Options
	errs    error

	types, funcs, tables, memories, globals *space

	imported      map[string]uint32
	funcIndices   counter
	globalIndices counter
	tableIndices  counter
	memoryIndices counter
	funcDecls     []*funcDecl
	globalDecls   []*globalDecl
	later         []func()
	labelNames    map[uint32]map[uint32]string
	funcNames     map[uint32]string
	globalNames   map[uint32]string
}

// DecodeModule parses a module in the text format and builds the same entity graph the binary decoder
// produces. Function bodies and initializers are encoded as binary instruction streams; block labels
// named in the text are recorded in each function's LabelNames.
func DecodeModule(r io.Reader) (*wasm.Module, error) {
	return DecodeModuleOptions(r, Options{})
}

// DecodeModuleOptions is DecodeModule with options. With KeepGoing set, the module is returned even if
// some function bodies failed, along with the combined failures.
func DecodeModuleOptions(r io.Reader, options Options) (*wasm.Module, error) {
	nodes, err := Parse(r)
	if err != nil {
		return nil, err
	}

	fields, err := moduleFields(nodes)
	if err != nil {
		return nil, err
	}

	mod := &module{
		m:           wasm.NewModule(),
		options:     options,
		types:       newSpace("type"),
		funcs:       newSpace("function"),
		tables:      newSpace("table"),
		memories:    newSpace("memory"),
		globals:     newSpace("global"),
		imported:    map[string]uint32{},
		labelNames:  map[uint32]map[uint32]string{},
		funcNames:   map[uint32]string{},
		globalNames: map[uint32]string{},
	}
	if err := mod.build(fields); err != nil {
		return nil, err
	}

	Logger().Debug("parsed module",
		zap.Int("functions", len(mod.m.Functions)),
		zap.Int("globals", len(mod.m.Globals)),
		zap.Int("types", len(mod.m.Types.Entries)),
		zap.Int("failed", len(multierr.Errors(mod.errs))))
	return mod.m, mod.errs
}

// moduleFields returns the fields of the single module in nodes. A file that omits the module wrapper
// is treated as the fields of an anonymous module.
func moduleFields(nodes []*Node) ([]*Node, error) {
	if len(nodes) == 0 || nodes[0].Name != "module" {
		return nodes, nil
	}
	if len(nodes) > 1 {
		return nil, errorf(nodes[1], "unexpected %s after module", describeItem(nodes[1]))
	}

	c := newCursor(nodes[0])
	c.name()

	var fields []*Node
	for !c.done() {
		n, ok := c.next().(*Node)
		if !ok {
			return nil, errorf(c.items[c.i-1], "expected a module field")
		}
		fields = append(fields, n)
	}
	return fields, nil
}

func (m *module) build(fields []*Node) (err error) {
	defer func() {
		if v := recover(); v != nil {
			e, ok := v.(error)
			if !ok {
				panic(v)
			}
			err = e
		}
	}()

	for _, n := range fields {
		if n.Name == "type" {
			m.guard(n, func() { m.typedef(n) })
		}
	}
	for _, n := range fields {
		m.countImports(n)
	}
	for _, n := range fields {
		n := n
		m.guard(n, func() { m.declare(n) })
	}
	for _, f := range m.later {
		f()
	}
	for _, d := range m.funcDecls {
		d := d
		m.functionOrTrap(d)
	}
	for _, d := range m.globalDecls {
		d := d
		m.guard(d.node, func() { m.m.Global.Globals[d.index-m.imported["global"]].Init = m.constExpr(d.init) })
	}

	if err := m.m.Link(); err != nil {
		return err
	}
	for index, name := range m.funcNames {
		m.m.Functions[index].Name = name
	}
	for index, labels := range m.labelNames {
		m.m.Functions[index].LabelNames = labels
	}
	for index, name := range m.globalNames {
		m.m.Globals[index].Name = name
	}
	return nil
}

// functionOrTrap translates a function body. With KeepGoing set, a failure is recorded and the body is
// replaced by one that traps, so the index spaces and the code section stay aligned.
func (m *module) functionOrTrap(d *funcDecl) {
	if !m.options.KeepGoing {
		m.guard(d.node, func() { m.function(d) })
		return
	}

	bodies := len(m.m.Code.Bodies)
	if err := m.try(d.node, func() { m.function(d) }); err != nil {
		Logger().Warn("replacing function body", zap.Uint32("index", d.index), zap.Error(err))
		m.errs = multierr.Append(m.errs, err)
		m.m.Code.Bodies = append(m.m.Code.Bodies[:bodies], wasm.FunctionBody{Code: trapBody})
		delete(m.labelNames, d.index)
	}
}

// try runs f under guard and returns the failure it raises, if any.
func (m *module) try(n *Node, f func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			e, ok := v.(error)
			if !ok {
				panic(v)
			}
			err = e
		}
	}()
	m.guard(n, f)
	return nil
}

// guard attributes any failure raised by f to the field n.
func (m *module) guard(n *Node, f func()) {
	defer func() {
		if v := recover(); v != nil {
			if err, ok := v.(error); ok {
				if _, ok := err.(*FieldError); !ok {
					v = &FieldError{Pos: n.Pos, Field: fieldName(n), Err: err}
				}
			}
			panic(v)
		}
	}()
	f()
}

func fieldName(n *Node) string {
	if len(n.Items) != 0 {
		if tok, ok := n.Items[0].(*Token); ok && tok.Kind == NAME {
			return n.Name + " " + tok.Text
		}
	}
	return n.Name
}

func (m *module) typedef(n *Node) {
	c := newCursor(n)
	name := c.name()
	fn, ok := c.node("func")
	if !ok {
		panic(errorf(c.at(), "expected a function type"))
	}
	c.end()

	fc := newCursor(fn)
	use := m.parseTypeUse(fc)
	fc.end()

	m.m.Types.Entries = append(m.m.Types.Entries, use.sig)
	m.types.add(n, name)
}

// inlineImport returns the (import ...) clause of a func, global, table, or memory field.
func inlineImport(n *Node) (*Node, bool) {
	c := newCursor(n)
	c.name()
	for {
		if _, ok := c.node("export"); !ok {
			break
		}
	}
	return c.node("import")
}

func (m *module) countImports(n *Node) {
	switch n.Name {
	case "import":
		c := newCursor(n)
		c.i = 2
		if desc, ok := c.peek().(*Node); ok {
			m.imported[desc.Name]++
		}
	case "func", "global", "table", "memory":
		if _, ok := inlineImport(n); ok {
			m.imported[n.Name]++
		}
	}
}

func (m *module) indices(kind string) *counter {
	switch kind {
	case "func":
		return &m.funcIndices
	case "global":
		return &m.globalIndices
	case "table":
		return &m.tableIndices
	default:
		return &m.memoryIndices
	}
}

// allocate returns the index of the next entity of the given kind.
func (m *module) allocate(kind string, imported bool) uint32 {
	c := m.indices(kind)
	if imported {
		return c.next(true)
	}
	return m.imported[kind] + c.next(false)
}

func (m *module) spaceOf(kind string) *space {
	switch kind {
	case "func":
		return m.funcs
	case "global":
		return m.globals
	case "table":
		return m.tables
	default:
		return m.memories
	}
}

func externalOf(kind string) wasm.External {
	switch kind {
	case "func":
		return wasm.ExternalFunction
	case "global":
		return wasm.ExternalGlobal
	case "table":
		return wasm.ExternalTable
	default:
		return wasm.ExternalMemory
	}
}

func (m *module) declare(n *Node) {
	switch n.Name {
	case "type":
	case "import":
		c := newCursor(n)
		modName, field := c.expectString(), c.expectString()
		desc, ok := c.next().(*Node)
		if !ok {
			panic(errorf(n, "expected an import description"))
		}
		c.end()

		dc := newCursor(desc)
		m.entity(desc, dc, desc.Name, dc.name(), &wasm.ImportName{Module: modName, Field: field})
		dc.end()
	case "func", "global", "table", "memory":
		c := newCursor(n)
		name := c.name()

		var exports []string
		for {
			e, ok := c.node("export")
			if !ok {
				break
			}
			ec := newCursor(e)
			exports = append(exports, ec.expectString())
			ec.end()
		}

		var imp *wasm.ImportName
		if in, ok := c.node("import"); ok {
			ic := newCursor(in)
			imp = &wasm.ImportName{Module: ic.expectString(), Field: ic.expectString()}
			ic.end()
		}

		index := m.entity(n, c, n.Name, name, imp)
		for _, e := range exports {
			m.m.Export.Entries = append(m.m.Export.Entries, wasm.ExportEntry{Name: e, Kind: externalOf(n.Name), Index: index})
		}
	case "export", "start", "elem", "data":
		m.later = append(m.later, func() { m.guard(n, func() { m.deferred(n) }) })
	default:
		panic(errorf(n, "unknown module field %q", n.Name))
	}
}

// entity declares a function, global, table, or memory. If imp is nil the entity is defined by the
// remaining items of c.
func (m *module) entity(n *Node, c *cursor, kind, name string, imp *wasm.ImportName) uint32 {
	index := m.allocate(kind, imp != nil)
	m.spaceOf(kind).bind(n, name, index)

	var importType wasm.Import
	switch kind {
	case "func":
		use := m.parseTypeUse(c)
		typeIndex := m.typeIndex(use)
		if imp != nil {
			importType = wasm.FuncImport{Type: typeIndex}
			break
		}

		locals := newSpace("local")
		for i, p := range use.params {
			locals.bind(n, p, uint32(i))
		}
		locals.count = uint32(len(use.sig.Params))

		m.m.Function.Types = append(m.m.Function.Types, typeIndex)
		m.funcDecls = append(m.funcDecls, &funcDecl{node: n, index: index, locals: locals, body: c})
	case "global":
		t := m.globalType(c)
		if imp != nil {
			importType = wasm.GlobalVarImport{Type: t}
			break
		}
		m.m.Global.Globals = append(m.m.Global.Globals, wasm.GlobalEntry{Type: t})
		m.globalDecls = append(m.globalDecls, &globalDecl{node: n, index: index, init: c})
	case "table":
		table := m.table(c, index, imp == nil)
		if imp != nil {
			importType = wasm.TableImport{Type: table}
			break
		}
		m.m.Table.Entries = append(m.m.Table.Entries, table)
	case "memory":
		memory := m.memory(c, index, imp == nil)
		if imp != nil {
			importType = wasm.MemoryImport{Type: memory}
			break
		}
		m.m.Memory.Entries = append(m.m.Memory.Entries, memory)
	default:
		panic(errorf(n, "unknown import kind %q", kind))
	}

	if name != "" {
		switch kind {
		case "func":
			m.funcNames[index] = name
		case "global":
			m.globalNames[index] = name
		}
	}
	if imp != nil {
		c.end()
		m.m.Import.Entries = append(m.m.Import.Entries, wasm.ImportEntry{ModuleName: imp.Module, FieldName: imp.Field, Type: importType})
	}
	return index
}

type typeUse struct {
	index    uint32
	explicit bool
	sig      wasm.FunctionSig
	params   []string
}

// parseTypeUse parses (type x)? (param ...)* (result ...)*.
func (m *module) parseTypeUse(c *cursor) typeUse {
	var use typeUse
	if n, ok := c.node("type"); ok {
		tc := newCursor(n)
		use.index, use.explicit = m.types.resolve(tc.expectIndex()), true
		tc.end()
	}

	var params, results []wasm.ValueType
	var names []string
	for {
		n, ok := c.node("param")
		if !ok {
			break
		}
		pc := newCursor(n)
		if name := pc.name(); name != "" {
			params, names = append(params, pc.valueType()), append(names, name)
			pc.end()
			continue
		}
		for !pc.done() {
			params, names = append(params, pc.valueType()), append(names, "")
		}
	}
	for {
		n, ok := c.node("result")
		if !ok {
			break
		}
		rc := newCursor(n)
		for !rc.done() {
			results = append(results, rc.valueType())
		}
	}

	sig, err := wasm.NewFunctionSig(params, results)
	if err != nil {
		panic(err)
	}

	if !use.explicit {
		use.sig, use.params = sig, names
		return use
	}

	declared, ok := m.m.GetType(use.index)
	if !ok {
		panic(errorf(c.list, "unknown type %d", use.index))
	}
	if len(params) != 0 || len(results) != 0 {
		if !declared.Equals(sig) {
			panic(errorf(c.list, "inline signature %v does not match type %d", sig, use.index))
		}
	} else {
		names = make([]string, len(declared.Params))
	}
	use.sig, use.params = declared, names
	return use
}

// typeIndex returns the index of the type used by use, adding a type if the signature was given
// inline and matches no existing type.
func (m *module) typeIndex(use typeUse) uint32 {
	if use.explicit {
		return use.index
	}
	for i, t := range m.m.Types.Entries {
		if t.Equals(use.sig) {
			return uint32(i)
		}
	}
	m.m.Types.Entries = append(m.m.Types.Entries, use.sig)
	return m.types.add(nil, "")
}

func (m *module) globalType(c *cursor) wasm.GlobalVar {
	if n, ok := c.node("mut"); ok {
		mc := newCursor(n)
		t := mc.valueType()
		mc.end()
		return wasm.GlobalVar{Type: t, Mutable: true}
	}
	return wasm.GlobalVar{Type: c.valueType()}
}

func (m *module) limits(c *cursor) wasm.ResizableLimits {
	l := wasm.ResizableLimits{Initial: c.expectU32()}
	if tok, ok := c.token(NUMBER); ok {
		max, err := parseU32(tok.Text)
		if err != nil {
			panic(errorf(tok, "%v", err))
		}
		l.Flags, l.Maximum = 1, max
	}
	return l
}

func isElemType(c *cursor) bool {
	return c.keyword("funcref") || c.keyword("anyfunc")
}

func (m *module) table(c *cursor, index uint32, defined bool) wasm.Table {
	if defined && isElemType(c) {
		elem, ok := c.node("elem")
		if !ok {
			panic(errorf(c.at(), "expected an inline element segment"))
		}
		c.end()

		ec := newCursor(elem)
		n := len(ec.items)
		m.later = append(m.later, func() {
			seg := wasm.ElementSegment{Index: index, Offset: constOffset(0)}
			for !ec.done() {
				seg.Elems = append(seg.Elems, m.funcs.resolve(ec.expectIndex()))
			}
			m.m.Elements.Entries = append(m.m.Elements.Entries, seg)
		})
		return wasm.Table{ElementType: wasm.ElemTypeFuncref, Limits: wasm.ResizableLimits{Flags: 1, Initial: uint32(n), Maximum: uint32(n)}}
	}

	limits := m.limits(c)
	if !isElemType(c) {
		panic(errorf(c.at(), "expected funcref"))
	}
	if defined {
		c.end()
	}
	return wasm.Table{ElementType: wasm.ElemTypeFuncref, Limits: limits}
}

const pageSize = 65536

func (m *module) memory(c *cursor, index uint32, defined bool) wasm.Memory {
	if defined {
		if seg, ok := c.node("data"); ok {
			c.end()

			var data []byte
			dc := newCursor(seg)
			for !dc.done() {
				data = append(data, dc.expectString()...)
			}
			m.m.Data.Entries = append(m.m.Data.Entries, wasm.DataSegment{Index: index, Offset: constOffset(0), Data: data})

			pages := uint32((len(data) + pageSize - 1) / pageSize)
			return wasm.Memory{Limits: wasm.ResizableLimits{Flags: 1, Initial: pages, Maximum: pages}}
		}
	}

	limits := m.limits(c)
	if defined {
		c.end()
	}
	return wasm.Memory{Limits: limits}
}

func constOffset(v int32) []byte {
	var buf bytes.Buffer
	if err := code.Encode(&buf, []code.Instruction{code.I32Const(v), code.End()}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// deferred handles the fields that refer to entities by name.
func (m *module) deferred(n *Node) {
	c := newCursor(n)
	switch n.Name {
	case "export":
		name := c.expectString()
		desc, ok := c.next().(*Node)
		if !ok {
			panic(errorf(n, "expected an export description"))
		}
		c.end()

		dc := newCursor(desc)
		index := m.spaceOf(desc.Name).resolve(dc.expectIndex())
		dc.end()
		m.m.Export.Entries = append(m.m.Export.Entries, wasm.ExportEntry{Name: name, Kind: externalOf(desc.Name), Index: index})
	case "start":
		index := m.funcs.resolve(c.expectIndex())
		c.end()
		m.m.Start = &wasm.SectionStartFunction{Index: index}
	case "elem":
		seg := wasm.ElementSegment{Index: m.segmentTarget(c, "table", m.tables)}
		seg.Offset = m.segmentOffset(c)
		c.keyword("func")
		for !c.done() {
			seg.Elems = append(seg.Elems, m.funcs.resolve(c.expectIndex()))
		}
		m.m.Elements.Entries = append(m.m.Elements.Entries, seg)
	case "data":
		seg := wasm.DataSegment{Index: m.segmentTarget(c, "memory", m.memories)}
		seg.Offset = m.segmentOffset(c)
		for !c.done() {
			seg.Data = append(seg.Data, c.expectString()...)
		}
		m.m.Data.Entries = append(m.m.Data.Entries, seg)
	}
}

// segmentTarget parses the optional table or memory of an active segment.
func (m *module) segmentTarget(c *cursor, kind string, s *space) uint32 {
	if n, ok := c.node(kind); ok {
		tc := newCursor(n)
		index := s.resolve(tc.expectIndex())
		tc.end()
		return index
	}
	if tok, ok := c.index(); ok {
		return s.resolve(tok)
	}
	return 0
}

// segmentOffset parses (offset instr*) or a single folded instruction.
func (m *module) segmentOffset(c *cursor) []byte {
	if n, ok := c.node("offset"); ok {
		return m.constExpr(newCursor(n))
	}
	n, ok := c.next().(*Node)
	if !ok {
		panic(errorf(c.list, "expected a segment offset"))
	}
	return m.constExpr(&cursor{list: n, items: []Item{n}})
}

// constExpr translates an initializer expression and encodes it.
func (m *module) constExpr(c *cursor) []byte {
	b := newBody(m, newSpace("local"))
	b.seq(c, nil)
	c.end()
	return b.encode()
}

func (m *module) function(d *funcDecl) {
	c := d.body

	var entries []wasm.LocalEntry
	addLocal := func(it Item, name string, t wasm.ValueType) {
		d.locals.add(it, name)
		if n := len(entries); n != 0 && entries[n-1].Type == t {
			entries[n-1].Count++
			return
		}
		entries = append(entries, wasm.LocalEntry{Count: 1, Type: t})
	}
	for {
		n, ok := c.node("local")
		if !ok {
			break
		}
		lc := newCursor(n)
		if name := lc.name(); name != "" {
			addLocal(n, name, lc.valueType())
			lc.end()
			continue
		}
		for !lc.done() {
			addLocal(n, "", lc.valueType())
		}
	}

	b := newBody(m, d.locals)
	b.seq(c, &labels{})
	c.end()

	m.m.Code.Bodies = append(m.m.Code.Bodies, wasm.FunctionBody{Locals: entries, Code: b.encode()})
	if len(b.labels) != 0 {
		m.labelNames[d.index] = b.labels
	}
}
