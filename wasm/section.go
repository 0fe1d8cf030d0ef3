// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pgavlin/wasmir/wasm/internal/readpos"
	"github.com/pgavlin/wasmir/wasm/leb128"
	"go.uber.org/zap"
)

// Section is a decoded section of a binary module.
type Section interface {
	SectionID() SectionID
	// GetRawSection returns the section's position within the module.
	GetRawSection() *RawSection
	// ReadPayload decodes the section's contents. r is limited to the payload.
	ReadPayload(r io.Reader) error
}

// SectionID identifies a section kind.
type SectionID uint8

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
)

var sectionNames = [...]string{"custom", "type", "import", "function", "table", "memory", "global", "export", "start", "element", "code", "data"}

func (s SectionID) String() string {
	if int(s) < len(sectionNames) {
		return sectionNames[s]
	}
	return "unknown"
}

// RawSection records where a section's payload lies in the module's bytes.
type RawSection struct {
	Start int64
	End   int64

	ID SectionID
}

func (s *RawSection) SectionID() SectionID {
	return s.ID
}

func (s *RawSection) GetRawSection() *RawSection {
	return s
}

// MissingSectionError is returned when a section that must be present is not.
type MissingSectionError SectionID

func (e MissingSectionError) Error() string {
	return fmt.Sprintf("wasm: missing section %s", SectionID(e).String())
}

var errSectionOrder = errors.New("sections must occur at most once and in the prescribed order")

// sectionSlots attaches a fresh section of each known kind to a module.
var sectionSlots = map[SectionID]func(m *Module) Section{
	SectionIDCustom: func(m *Module) Section {
		cs := &SectionCustom{}
		m.Customs = append(m.Customs, cs)
		return cs
	},
	SectionIDType:     func(m *Module) Section { m.Types = &SectionTypes{}; return m.Types },
	SectionIDImport:   func(m *Module) Section { m.Import = &SectionImports{}; return m.Import },
	SectionIDFunction: func(m *Module) Section { m.Function = &SectionFunctions{}; return m.Function },
	SectionIDTable:    func(m *Module) Section { m.Table = &SectionTables{}; return m.Table },
	SectionIDMemory:   func(m *Module) Section { m.Memory = &SectionMemories{}; return m.Memory },
	SectionIDGlobal:   func(m *Module) Section { m.Global = &SectionGlobals{}; return m.Global },
	SectionIDExport:   func(m *Module) Section { m.Export = &SectionExports{}; return m.Export },
	SectionIDStart:    func(m *Module) Section { m.Start = &SectionStartFunction{}; return m.Start },
	SectionIDElement:  func(m *Module) Section { m.Elements = &SectionElements{}; return m.Elements },
	SectionIDCode:     func(m *Module) Section { m.Code = &SectionCode{}; return m.Code },
	SectionIDData:     func(m *Module) Section { m.Data = &SectionData{}; return m.Data },
}

// sectionDecoder reads the section sequence that follows the module header.
type sectionDecoder struct {
	m    *Module
	last SectionID // most recent non-custom section
}

func (d *sectionDecoder) decodeAll(r *readpos.ReadPos) error {
	for {
		more, err := d.decodeNext(r)
		if err != nil || !more {
			return err
		}
	}
}

// decodeNext decodes one section. It reports false once the input is exhausted.
func (d *sectionDecoder) decodeNext(r *readpos.ReadPos) (bool, error) {
	headerStart := r.CurPos
	b, err := r.ReadByte()
	switch {
	case err == io.EOF:
		return false, nil
	case err != nil:
		return false, &FormatError{Offset: headerStart, Err: err}
	}
	id := SectionID(b)

	size, err := leb128.ReadVarUint32(r)
	if err != nil {
		return false, &FormatError{Offset: r.CurPos, Section: id.String(), Err: truncated(err)}
	}

	raw := RawSection{ID: id, Start: r.CurPos}
	payload, err := readBytes(r, size)
	if err != nil {
		return false, &FormatError{Offset: r.CurPos, Section: id.String(), Err: truncated(err)}
	}
	raw.End = r.CurPos

	slot, known := sectionSlots[id]
	if !known {
		Logger().Warn("skipping unknown section", zap.Uint8("id", b), zap.Uint32("size", size), zap.Int64("offset", raw.Start))
		return true, nil
	}
	Logger().Debug("reading section", zap.Stringer("id", id), zap.Uint32("size", size), zap.Int64("offset", raw.Start))

	if id != SectionIDCustom {
		if id <= d.last {
			return false, &FormatError{Offset: headerStart, Section: id.String(), Err: errSectionOrder}
		}
		d.last = id
	}

	sec := slot(d.m)
	pr := bytes.NewReader(payload)
	err = sec.ReadPayload(pr)
	at := raw.Start + int64(len(payload)-pr.Len())
	switch {
	case err != nil && IsUnsupported(err):
		return false, fmt.Errorf("%s section: %w", id, err)
	case err != nil:
		return false, &FormatError{Offset: at, Section: id.String(), Err: truncated(err)}
	case pr.Len() != 0:
		return false, &FormatError{Offset: at, Section: id.String(), Err: errors.New("section size mismatch")}
	}

	*sec.GetRawSection() = raw
	d.m.Sections = append(d.m.Sections, sec)
	return true, nil
}

func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func readVector(r io.Reader, read func(r io.Reader) error) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if err := read(r); err != nil {
			return err
		}
	}
	return nil
}

// entry is implemented by pointers to vector elements that decode themselves.
type decodable[T any] interface {
	*T
	UnmarshalWASM(r io.Reader) error
}

// readEntries decodes a length-prefixed vector of self-decoding elements.
func readEntries[T any, P decodable[T]](r io.Reader) ([]T, error) {
	var entries []T
	err := readVector(r, func(r io.Reader) error {
		var e T
		if err := P(&e).UnmarshalWASM(r); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// readIndices decodes a length-prefixed vector of u32 indices.
func readIndices(r io.Reader) ([]uint32, error) {
	var indices []uint32
	err := readVector(r, func(r io.Reader) error {
		i, err := leb128.ReadVarUint32(r)
		indices = append(indices, i)
		return err
	})
	return indices, err
}

// readSegmentHeader reads the flags of an element or data segment, the explicit index for flag 2, and the
// offset expression. Passive and declarative segments are unsupported.
func readSegmentHeader(r io.Reader, what string) (flags, index uint32, offset []byte, err error) {
	if flags, err = leb128.ReadVarUint32(r); err != nil {
		return 0, 0, nil, err
	}
	switch flags {
	case 0:
	case 2:
		if index, err = leb128.ReadVarUint32(r); err != nil {
			return 0, 0, nil, err
		}
	default:
		return 0, 0, nil, &UnsupportedError{What: fmt.Sprintf("%s segment flags 0x%x", what, flags)}
	}
	offset, err = readInitExpr(r)
	return flags, index, offset, err
}

var _ Section = (*SectionCustom)(nil)

// SectionCustom holds the name and payload of a custom section.
type SectionCustom struct {
	RawSection
	Name string
	Data []byte
}

func (s *SectionCustom) SectionID() SectionID { return SectionIDCustom }

func (s *SectionCustom) ReadPayload(r io.Reader) (err error) {
	if s.Name, err = readUTF8StringUint(r); err != nil {
		return err
	}
	s.Data, err = io.ReadAll(r)
	return err
}

// SectionTypes holds the module's function signatures.
type SectionTypes struct {
	RawSection
	Entries []FunctionSig
}

func (*SectionTypes) SectionID() SectionID { return SectionIDType }

func (s *SectionTypes) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readEntries[FunctionSig](r)
	return err
}

// SectionImports holds the module's imports.
type SectionImports struct {
	RawSection
	Entries []ImportEntry
}

func (*SectionImports) SectionID() SectionID { return SectionIDImport }

func (s *SectionImports) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readEntries[ImportEntry](r)
	return err
}

// SectionFunctions holds the type index of each function defined by the code section.
type SectionFunctions struct {
	RawSection
	Types []uint32
}

func (*SectionFunctions) SectionID() SectionID { return SectionIDFunction }

func (s *SectionFunctions) ReadPayload(r io.Reader) (err error) {
	s.Types, err = readIndices(r)
	return err
}

type SectionTables struct {
	RawSection
	Entries []Table
}

func (*SectionTables) SectionID() SectionID { return SectionIDTable }

func (s *SectionTables) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readEntries[Table](r)
	return err
}

type SectionMemories struct {
	RawSection
	Entries []Memory
}

func (*SectionMemories) SectionID() SectionID { return SectionIDMemory }

func (s *SectionMemories) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readEntries[Memory](r)
	return err
}

type SectionGlobals struct {
	RawSection
	Globals []GlobalEntry
}

func (*SectionGlobals) SectionID() SectionID { return SectionIDGlobal }

func (s *SectionGlobals) ReadPayload(r io.Reader) (err error) {
	s.Globals, err = readEntries[GlobalEntry](r)
	return err
}

// GlobalEntry is a global's type and its constant initializer, including the terminating end opcode.
type GlobalEntry struct {
	Type GlobalVar
	Init []byte
}

func (g *GlobalEntry) UnmarshalWASM(r io.Reader) (err error) {
	if err = g.Type.UnmarshalWASM(r); err != nil {
		return err
	}
	g.Init, err = readInitExpr(r)
	return err
}

// SectionExports holds the module's exports. Export names are unique.
type SectionExports struct {
	RawSection
	Entries []ExportEntry
}

func (*SectionExports) SectionID() SectionID { return SectionIDExport }

func (s *SectionExports) ReadPayload(r io.Reader) error {
	entries, err := readEntries[ExportEntry](r)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Name]; dup {
			return DuplicateExportError(e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	s.Entries = entries
	return nil
}

type DuplicateExportError string

func (e DuplicateExportError) Error() string {
	return fmt.Sprintf("duplicate export entry: %s", string(e))
}

// ExportEntry names an item in one of the module's index spaces.
type ExportEntry struct {
	Name  string
	Kind  External
	Index uint32
}

func (e *ExportEntry) UnmarshalWASM(r io.Reader) (err error) {
	if e.Name, err = readUTF8StringUint(r); err != nil {
		return err
	}
	if err = e.Kind.UnmarshalWASM(r); err != nil {
		return err
	}
	e.Index, err = leb128.ReadVarUint32(r)
	return err
}

type SectionStartFunction struct {
	RawSection
	Index uint32
}

func (*SectionStartFunction) SectionID() SectionID { return SectionIDStart }

func (s *SectionStartFunction) ReadPayload(r io.Reader) (err error) {
	s.Index, err = leb128.ReadVarUint32(r)
	return err
}

type SectionElements struct {
	RawSection
	Entries []ElementSegment
}

func (*SectionElements) SectionID() SectionID { return SectionIDElement }

func (s *SectionElements) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readEntries[ElementSegment](r)
	return err
}

// ElementSegment is an active segment of function indices placed into a table at Offset.
type ElementSegment struct {
	Index  uint32
	Offset []byte
	Elems  []uint32
}

func (s *ElementSegment) UnmarshalWASM(r io.Reader) error {
	flags, index, offset, err := readSegmentHeader(r, "element")
	if err != nil {
		return err
	}
	s.Index, s.Offset = index, offset

	if flags == 2 {
		kind, err := readByte(r)
		if err != nil {
			return err
		}
		if kind != 0 {
			return &UnsupportedError{What: fmt.Sprintf("element kind 0x%02x", kind)}
		}
	}

	s.Elems, err = readIndices(r)
	return err
}

// SectionCode holds the bodies of the module's defined functions.
type SectionCode struct {
	RawSection
	Bodies []FunctionBody
}

func (*SectionCode) SectionID() SectionID { return SectionIDCode }

func (s *SectionCode) ReadPayload(r io.Reader) (err error) {
	s.Bodies, err = readEntries[FunctionBody](r)
	return err
}

// FunctionBody is a function's run-length local declarations and its undecoded instruction bytes.
type FunctionBody struct {
	Locals []LocalEntry
	Code   []byte
}

func (f *FunctionBody) UnmarshalWASM(r io.Reader) error {
	body, err := readBytesUint(r)
	if err != nil {
		return err
	}

	br := bytes.NewReader(body)
	if f.Locals, err = readEntries[LocalEntry](br); err != nil {
		return err
	}
	f.Code = body[len(body)-br.Len():]
	return nil
}

// LocalCount returns the number of declared locals, expanding run-length entries.
func (f *FunctionBody) LocalCount() uint64 {
	n := uint64(0)
	for _, l := range f.Locals {
		n += uint64(l.Count)
	}
	return n
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count uint32
	Type  ValueType
}

func (l *LocalEntry) UnmarshalWASM(r io.Reader) (err error) {
	if l.Count, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	return l.Type.UnmarshalWASM(r)
}

type SectionData struct {
	RawSection
	Entries []DataSegment
}

func (*SectionData) SectionID() SectionID { return SectionIDData }

func (s *SectionData) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readEntries[DataSegment](r)
	return err
}

// DataSegment is an active segment of bytes placed into a memory at Offset.
type DataSegment struct {
	Index  uint32
	Offset []byte
	Data   []byte
}

func (s *DataSegment) UnmarshalWASM(r io.Reader) error {
	_, index, offset, err := readSegmentHeader(r, "data")
	if err != nil {
		return err
	}
	s.Index, s.Offset = index, offset
	s.Data, err = readBytesUint(r)
	return err
}
