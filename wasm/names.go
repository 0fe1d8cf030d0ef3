// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"io"

	"github.com/pgavlin/wasmir/wasm/leb128"
)

// A list of well-known custom sections
const (
	CustomSectionName = "name"
)

// NameType is the type of name subsection.
type NameType byte

const (
	NameModule   = NameType(0)
	NameFunction = NameType(1)
	NameLocal    = NameType(2)
	NameLabel    = NameType(3)
)

type NameSubsection interface {
	Type() NameType
	UnmarshalWASM(r io.Reader) error
}

type ModuleNameSubsection struct {
	Name string
}

func (s *ModuleNameSubsection) Type() NameType {
	return NameModule
}

func (s *ModuleNameSubsection) UnmarshalWASM(r io.Reader) error {
	var err error
	s.Name, err = readUTF8StringUint(r)
	return err
}

type Naming struct {
	Index uint32
	Name  string
}

type FunctionNamesSubsection struct {
	Names []Naming
}

func (s *FunctionNamesSubsection) Type() NameType {
	return NameFunction
}

func (s *FunctionNamesSubsection) UnmarshalWASM(r io.Reader) error {
	var err error
	s.Names, err = readNameMap(r)
	return err
}

type LocalNames struct {
	Index uint32
	Names []Naming
}

type LocalNamesSubsection struct {
	Funcs []LocalNames
}

func (s *LocalNamesSubsection) Type() NameType {
	return NameLocal
}

func (s *LocalNamesSubsection) UnmarshalWASM(r io.Reader) error {
	var err error
	s.Funcs, err = readIndirectNameMap(r)
	return err
}

// LabelNamesSubsection names the structured instructions of each function. Labels are numbered by the
// order of their block, loop, or if instructions within the function body.
type LabelNamesSubsection struct {
	Funcs []LocalNames
}

func (s *LabelNamesSubsection) Type() NameType {
	return NameLabel
}

func (s *LabelNamesSubsection) UnmarshalWASM(r io.Reader) error {
	var err error
	s.Funcs, err = readIndirectNameMap(r)
	return err
}

// NameSection is a custom section that stores names of modules, functions and locals for debugging purposes.
// See https://github.com/WebAssembly/design/blob/master/BinaryEncoding.md#name-section for more details.
//
// Subsections other than the module, function, local, and label name maps are ignored.
type NameSection struct {
	Entries []NameSubsection
}

func (s *NameSection) UnmarshalWASM(r io.Reader) error {
	var entries []NameSubsection
	for {
		typ, err := readByte(r)
		if err == io.EOF {
			s.Entries = entries
			return nil
		} else if err != nil {
			return err
		}

		payload, err := readBytesUint(r)
		if err != nil {
			return err
		}

		var sub NameSubsection
		switch NameType(typ) {
		case NameModule:
			sub = &ModuleNameSubsection{}
		case NameFunction:
			sub = &FunctionNamesSubsection{}
		case NameLocal:
			sub = &LocalNamesSubsection{}
		case NameLabel:
			sub = &LabelNamesSubsection{}
		default:
			continue
		}

		if err = sub.UnmarshalWASM(bytes.NewReader(payload)); err != nil {
			return err
		}

		entries = append(entries, sub)
	}
}

func readNameMap(r io.Reader) ([]Naming, error) {
	var nameMap []Naming
	err := readVector(r, func(r io.Reader) error {
		ind, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		name, err := readUTF8StringUint(r)
		if err != nil {
			return err
		}
		nameMap = append(nameMap, Naming{Index: ind, Name: name})
		return nil
	})
	return nameMap, err
}

func readIndirectNameMap(r io.Reader) ([]LocalNames, error) {
	var funcs []LocalNames
	err := readVector(r, func(r io.Reader) error {
		index, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		names, err := readNameMap(r)
		if err != nil {
			return err
		}
		funcs = append(funcs, LocalNames{Index: index, Names: names})
		return nil
	})
	return funcs, err
}
