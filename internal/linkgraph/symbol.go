// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import (
	"strconv"
	"strings"

	"github.com/bofld/bofld/internal/coff"
)

// SymbolTypeKind discriminates the symbol "type" attribute.
type SymbolTypeKind uint8

const (
	// SymbolTypeValue is a regular COFF type word.
	SymbolTypeValue SymbolTypeKind = iota

	// SymbolTypeDebug marks a debug symbol.
	SymbolTypeDebug

	// SymbolTypeAbsolute carries an absolute value instead of a
	// section offset.
	SymbolTypeAbsolute
)

// SymbolType is the type attribute of a symbol node.
type SymbolType struct {
	Kind  SymbolTypeKind
	Value uint32
}

// ValueType returns a SymbolType wrapping a COFF type word.
func ValueType(typ uint16) SymbolType {
	return SymbolType{Kind: SymbolTypeValue, Value: uint32(typ)}
}

// SymbolNode is a symbol in the link graph.
type SymbolNode struct {
	// definitions is the outgoing definition edge list.
	definitions EdgeList[SymbolNode, SectionNode, DefinitionWeight]

	// imports is the outgoing import edge list.
	imports EdgeList[SymbolNode, LibraryNode, ImportWeight]

	// relocations is the incoming relocation edge list.
	relocations EdgeList[SectionNode, SymbolNode, RelocationWeight]

	name         string
	storageClass uint8

	// section is set for section symbols, recognized by their
	// auxiliary section record.
	section bool

	typ SymbolType

	// Assign-once layout slots.
	tableIndex    uint32
	tableAssigned bool
	outputName    coff.Name
	outputNamed   bool

	// msvcLabel caches the MSVC data label check: 0 unknown,
	// 1 yes, 2 no.
	msvcLabel uint8
}

// Definitions returns the symbol's outgoing definition edges.
func (s *SymbolNode) Definitions() *EdgeList[SymbolNode, SectionNode, DefinitionWeight] {
	return &s.definitions
}

// Imports returns the symbol's outgoing import edges.
func (s *SymbolNode) Imports() *EdgeList[SymbolNode, LibraryNode, ImportWeight] {
	return &s.imports
}

// References returns the symbol's incoming relocation edges.
func (s *SymbolNode) References() *EdgeList[SectionNode, SymbolNode, RelocationWeight] {
	return &s.relocations
}

// Name returns the symbol name.
func (s *SymbolNode) Name() string {
	return s.name
}

// DemangledName returns the name for display, rendering an `__imp_`
// prefix as `__declspec(dllimport)`.
func (s *SymbolNode) DemangledName() string {
	if unprefixed, ok := strings.CutPrefix(s.name, "__imp_"); ok {
		return "__declspec(dllimport) " + unprefixed
	}
	return s.name
}

// StorageClass returns the symbol storage class.
func (s *SymbolNode) StorageClass() uint8 {
	return s.storageClass
}

// IsSectionSymbol reports whether this is a section symbol.
func (s *SymbolNode) IsSectionSymbol() bool {
	return s.section
}

// IsLabel reports whether the symbol is a label, including MSVC data
// labels.
func (s *SymbolNode) IsLabel() bool {
	return s.storageClass == coff.ImageSymClassLabel || s.IsMsvcLabel()
}

// IsMsvcLabel reports whether this is an MSVC `$SG<number>` static data
// label defined in a `.data` group section.
func (s *SymbolNode) IsMsvcLabel() bool {
	if s.msvcLabel == 0 {
		s.msvcLabel = 2
		if s.storageClass == coff.ImageSymClassStatic {
			if digits, ok := strings.CutPrefix(s.name, "$SG"); ok {
				if _, err := strconv.ParseUint(digits, 10, 64); err == nil {
					if def := s.definitions.Front(); def != nil && def.Target().Name().GroupName() == ".data" {
						s.msvcLabel = 1
					}
				}
			}
		}
	}
	return s.msvcLabel == 1
}

// IsUnreferenced reports whether the symbol has no references, or every
// referencing section has been discarded.
func (s *SymbolNode) IsUnreferenced() bool {
	for e := s.relocations.Front(); e != nil; e = s.relocations.Next(e) {
		if !e.Source().IsDiscarded() {
			return false
		}
	}
	return true
}

// IsUndefined reports whether the symbol has neither definitions nor
// imports.
func (s *SymbolNode) IsUndefined() bool {
	return s.imports.Empty() && s.definitions.Empty()
}

// IsDuplicate reports whether the symbol has multiple non-COMDAT
// definitions.
func (s *SymbolNode) IsDuplicate() bool {
	count := 0
	for e := s.definitions.Front(); e != nil; e = s.definitions.Next(e) {
		if e.Weight().Selection() == SelectionNone {
			count++
			if count > 1 {
				return true
			}
		}
	}
	return false
}

// IsMultiplyDefined reports whether the symbol's COMDAT definitions
// violate their declared selection: NoDuplicates with more than one
// definition, SameSize with unequal sizes, or ExactMatch with unequal
// checksums.
func (s *SymbolNode) IsMultiplyDefined() bool {
	var noDuplicates, sameSize, exactMatch bool
	sizes := make(map[uint32]struct{})
	checksums := make(map[uint32]struct{})

	for e := s.definitions.Front(); e != nil; e = s.definitions.Next(e) {
		switch e.Weight().Selection() {
		case SelectionNoDuplicates:
			noDuplicates = true
		case SelectionSameSize:
			sizes[e.Target().Data().Len()] = struct{}{}
			sameSize = true
		case SelectionExactMatch:
			checksums[e.Target().Checksum()] = struct{}{}
			exactMatch = true
		}
	}

	return (noDuplicates && s.definitions.Len() > 1) ||
		(sameSize && len(sizes) > 1) ||
		(exactMatch && len(checksums) > 1)
}

// Type returns the symbol type attribute.
func (s *SymbolNode) Type() SymbolType {
	return s.typ
}

// SetType replaces the type with a COFF type word; definitions upgrade
// the type of a previously seen external.
func (s *SymbolNode) SetType(typ uint16) {
	s.typ = ValueType(typ)
}

// AssignTableIndex records the output symbol table index. Assigning
// twice panics: reservation walks each symbol exactly once.
func (s *SymbolNode) AssignTableIndex(index uint32) {
	if s.tableAssigned {
		panic("symbol " + s.DemangledName() + " already assigned a symbol table index")
	}
	s.tableIndex = index
	s.tableAssigned = true
}

// TableIndex returns the assigned output symbol table index.
func (s *SymbolNode) TableIndex() (uint32, bool) {
	return s.tableIndex, s.tableAssigned
}

// OutputName returns the reserved output name handle.
func (s *SymbolNode) OutputName() (coff.Name, bool) {
	return s.outputName, s.outputNamed
}

// SetOutputNameOnce reserves the output name handle if not already set.
func (s *SymbolNode) SetOutputNameOnce(name func() coff.Name) coff.Name {
	if !s.outputNamed {
		s.outputName = name()
		s.outputNamed = true
	}
	return s.outputName
}
