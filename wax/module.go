package wax

import (
	"fmt"

	"github.com/pgavlin/wasmir/ir"
	"github.com/pgavlin/wasmir/wasm"
	"github.com/pgavlin/wasmir/wasm/code"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Options control reconstruction.
type Options struct {
	// KeepGoing causes DecompileModule to reconstruct every function even if some fail. The failures are
	// returned together alongside the partial module.
	KeepGoing bool

	// FoldConstants evaluates operators whose operands are all constants.
	FoldConstants bool
}

// DecompileModule reconstructs the IR for every function, global initializer, and segment offset of a
// decoded module.
func DecompileModule(m *wasm.Module, options Options) (*ir.Module, error) {
	scope := code.NewModuleScope(m)
	out := &ir.Module{Source: m}

	var errs error
	fail := func(err error) error {
		if !options.KeepGoing {
			return err
		}
		Logger().Warn("reconstruction failed", zap.Error(err))
		errs = multierr.Append(errs, err)
		return nil
	}

	for _, fn := range m.Functions {
		f, err := DecompileFunction(fn, scope, options)
		if err != nil {
			if err = fail(err); err != nil {
				return nil, err
			}
		}
		out.Functions = append(out.Functions, f)
	}

	for _, g := range m.Globals {
		og := &ir.Global{
			Index:   g.Index,
			Name:    g.Name,
			Type:    g.Type.Type,
			Mutable: g.Type.Mutable,
			Import:  g.Import,
			Exports: g.Exports,
		}
		if g.Import == nil {
			init, err := decompileInit(g.Init, g.Type.Type, scope, options)
			if err != nil {
				if err = fail(fmt.Errorf("global %d initializer: %w", g.Index, err)); err != nil {
					return nil, err
				}
			} else {
				og.Init = init
			}
		}
		out.Globals = append(out.Globals, og)
	}

	if m.Data != nil {
		for i, d := range m.Data.Entries {
			offset, err := decompileOffset(d.Offset, scope, options)
			if err != nil {
				if err = fail(fmt.Errorf("data segment %d offset: %w", i, err)); err != nil {
					return nil, err
				}
			}
			out.Data = append(out.Data, &ir.DataSegment{MemoryIndex: d.Index, Offset: offset, Data: d.Data})
		}
	}

	if m.Elements != nil {
		for i, e := range m.Elements.Entries {
			offset, err := decompileOffset(e.Offset, scope, options)
			if err != nil {
				if err = fail(fmt.Errorf("element segment %d offset: %w", i, err)); err != nil {
					return nil, err
				}
			}
			out.Elements = append(out.Elements, &ir.ElementSegment{TableIndex: e.Index, Offset: offset, Functions: e.Elems})
		}
	}

	if m.Start != nil {
		start := m.Start.Index
		out.Start = &start
	}

	return out, errs
}

// DecompileFunction reconstructs a single function. Imported functions are returned without a body.
// If reconstruction fails, the returned function carries the failure in its diagnostics and the error is
// a *FunctionError.
func DecompileFunction(fn *wasm.Function, scope code.Scope, options Options) (*ir.Function, error) {
	out := &ir.Function{
		Index:     fn.Index,
		Name:      ir.FunctionName(fn.Index, fn.Name),
		Signature: fn.Sig,
		Import:    fn.Import,
		Exports:   fn.Exports,
	}
	for _, l := range fn.Locals {
		out.Locals = append(out.Locals, ir.Local{Index: l.Index, Type: l.Type})
	}
	if fn.IsImport() || fn.Body == nil {
		return out, nil
	}

	b := NewFunction(fn.Index, fn.Sig, fn.Locals, scope, options)
	body, err := importBody(b, fn.Body.Code, fn.LabelNames)
	out.Diagnostics = b.Diagnostics()
	if err != nil {
		out.Diagnostics = append(out.Diagnostics, err.Error())
		return out, &FunctionError{Index: fn.Index, Name: fn.Name, Err: err}
	}
	out.Body = body

	Logger().Debug("reconstructed function",
		zap.Uint32("index", fn.Index),
		zap.String("name", out.Name),
		zap.Int("statements", len(body.Stms)),
		zap.Int("diagnostics", len(out.Diagnostics)))
	return out, nil
}

// importBody feeds a raw instruction stream to b. labels names structured instructions by ordinal.
func importBody(b *Function, raw []byte, labels map[uint32]string) (*ir.Sequence, error) {
	instrs, err := code.Decode(raw)
	if err != nil {
		return nil, err
	}

	var ordinal uint32
	for ip := range instrs {
		var name string
		switch instrs[ip].Opcode {
		case code.OpBlock, code.OpLoop, code.OpIf:
			name = labels[ordinal]
			ordinal++
		}
		if err := b.ImportNamedBlock(instrs[ip], name); err != nil {
			return nil, fmt.Errorf("instruction %d (%v): %w", ip, instrs[ip].String(), err)
		}
	}
	return b.Finish()
}

// decompileInit reconstructs a constant expression as the body of a function that returns its value.
func decompileInit(raw []byte, t wasm.ValueType, scope code.Scope, options Options) (*ir.Sequence, error) {
	b := NewFunction(0, wasm.FunctionSig{Result: t}, nil, scope, options)
	return importBody(b, raw, nil)
}

func decompileOffset(raw []byte, scope code.Scope, options Options) (ir.Expr, error) {
	init, err := decompileInit(raw, wasm.ValueTypeI32, scope, options)
	if err != nil {
		return nil, err
	}
	v, ok := ir.InitValue(init)
	if !ok {
		return nil, fmt.Errorf("offset expression does not produce a value")
	}
	return v, nil
}
