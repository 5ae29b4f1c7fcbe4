// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

// slab hands out pointer-stable values of one type. Values are bump
// allocated out of fixed blocks; a full slab grows by appending a new
// block, never by moving an old one, so handed-out pointers stay valid
// for the slab's lifetime. Nothing is ever freed individually; the
// whole arena is dropped when the link finishes.
type slab[T any] struct {
	blocks [][]T
}

func (s *slab[T]) alloc() *T {
	if len(s.blocks) == 0 {
		s.blocks = append(s.blocks, make([]T, 0, 16))
	}
	last := &s.blocks[len(s.blocks)-1]
	if len(*last) == cap(*last) {
		grown := make([]T, 0, cap(*last)*2)
		s.blocks = append(s.blocks, grown)
		last = &s.blocks[len(s.blocks)-1]
	}
	*last = append(*last, *new(T))
	return &(*last)[len(*last)-1]
}

func (s *slab[T]) reserve(n int) {
	if n > 0 {
		s.blocks = append(s.blocks, make([]T, 0, n))
	}
}

// Arena owns every node and edge of one link invocation. A pre-pass
// over the inputs sizes the slabs so graph construction does not have
// to grow them.
type Arena struct {
	coffs     slab[CoffNode]
	sections  slab[SectionNode]
	symbols   slab[SymbolNode]
	libraries slab[LibraryNode]

	definitions  slab[DefinitionEdge]
	relocations  slab[RelocationEdge]
	imports      slab[ImportEdge]
	associatives slab[AssociativeEdge]
}

// ArenaSpec is the node and edge counts estimated by the spec pre-pass.
type ArenaSpec struct {
	Coffs       int
	Sections    int
	Symbols     int
	Definitions int
	Relocations int
}

// NewArena returns an Arena pre-sized to the spec counts.
func NewArena(spec ArenaSpec) *Arena {
	a := &Arena{}
	a.coffs.reserve(spec.Coffs)
	a.sections.reserve(spec.Sections)
	a.symbols.reserve(spec.Symbols)
	a.definitions.reserve(spec.Definitions)
	a.relocations.reserve(spec.Relocations)
	return a
}

func (a *Arena) newCoff(filePath, memberPath string) *CoffNode {
	node := a.coffs.alloc()
	node.filePath = filePath
	node.memberPath = memberPath
	return node
}

func (a *Arena) newSection(name string, characteristics uint32, data SectionData, checksum uint32, coff *CoffNode) *SectionNode {
	node := a.sections.alloc()
	*node = SectionNode{
		definitions:     newIncomingList[SymbolNode, SectionNode, DefinitionWeight](),
		coff:            coff,
		name:            SectionName(name),
		characteristics: characteristics,
		data:            data,
		checksum:        checksum,
	}
	return node
}

func (a *Arena) newSymbol(name string, storageClass uint8, section bool, typ SymbolType) *SymbolNode {
	node := a.symbols.alloc()
	*node = SymbolNode{
		relocations:  newIncomingList[SectionNode, SymbolNode, RelocationWeight](),
		name:         name,
		storageClass: storageClass,
		section:      section,
		typ:          typ,
	}
	return node
}

func (a *Arena) newLibrary(name string) *LibraryNode {
	node := a.libraries.alloc()
	*node = LibraryNode{
		imports: newIncomingList[SymbolNode, LibraryNode, ImportWeight](),
		name:    LibraryName(name),
	}
	return node
}

func (a *Arena) newDefinition(source *SymbolNode, target *SectionNode, weight DefinitionWeight) *DefinitionEdge {
	edge := a.definitions.alloc()
	*edge = DefinitionEdge{source: source, target: target, weight: weight}
	return edge
}

func (a *Arena) newRelocation(source *SectionNode, target *SymbolNode, weight RelocationWeight) *RelocationEdge {
	edge := a.relocations.alloc()
	*edge = RelocationEdge{source: source, target: target, weight: weight}
	return edge
}

func (a *Arena) newImport(source *SymbolNode, target *LibraryNode, weight ImportWeight) *ImportEdge {
	edge := a.imports.alloc()
	*edge = ImportEdge{source: source, target: target, weight: weight}
	return edge
}

func (a *Arena) newAssociative(source, target *SectionNode) *AssociativeEdge {
	edge := a.associatives.alloc()
	*edge = AssociativeEdge{source: source, target: target}
	return edge
}
