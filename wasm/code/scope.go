package code

import "github.com/pgavlin/wasmir/wasm"

// Scope resolves the indices used by instruction immediates.
type Scope interface {
	GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool)
	GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool)
	GetType(typeidx uint32) (wasm.FunctionSig, bool)
}

// ModuleScope resolves indices against a module's index spaces.
type ModuleScope struct {
	module *wasm.Module
}

func NewModuleScope(m *wasm.Module) *ModuleScope {
	return &ModuleScope{module: m}
}

func (s *ModuleScope) GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool) {
	g, ok := s.module.GetGlobal(globalidx)
	if !ok {
		return wasm.GlobalVar{}, false
	}
	return g.Type, true
}

func (s *ModuleScope) GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool) {
	f, ok := s.module.GetFunction(funcidx)
	if !ok {
		return wasm.FunctionSig{}, false
	}
	return f.Sig, true
}

func (s *ModuleScope) GetType(typeidx uint32) (wasm.FunctionSig, bool) {
	return s.module.GetType(typeidx)
}
