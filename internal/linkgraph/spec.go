// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import "github.com/bofld/bofld/internal/coff"

// Spec walks inputs once before the real graph build to estimate node
// and edge counts, so the arena and the graph's maps are pre-sized.
type Spec struct {
	coffs       int
	externals   int
	sections    int
	symbols     int
	definitions int
	relocations int
	maxSections int
	maxSymbols  int
}

// NewSpec returns an empty Spec.
func NewSpec() *Spec {
	return &Spec{}
}

// AddCoff adds one input's counts to the estimate.
func (s *Spec) AddCoff(obj *coff.File) {
	s.coffs++

	sections := obj.Sections()
	symbols := obj.Symbols()

	s.sections += len(sections)
	s.symbols += len(symbols)
	s.maxSections = max(s.maxSections, len(sections))
	s.maxSymbols = max(s.maxSymbols, len(symbols))

	for i := range symbols {
		sym := &symbols[i]
		if sym.IsGlobal() {
			s.externals++
		}
		if sym.IsDefinition() || sym.HasAuxSection() || sym.IsCommon() {
			s.definitions++
		}
	}

	for i := range sections {
		s.relocations += len(sections[i].Relocations)
	}
}

// Arena allocates the arena pre-sized from the estimate.
func (s *Spec) Arena() *Arena {
	return NewArena(ArenaSpec{
		Coffs:       s.coffs,
		Sections:    s.sections,
		Symbols:     s.symbols,
		Definitions: s.definitions,
		Relocations: s.relocations,
	})
}

// Graph allocates a LinkGraph over arena with capacity from the
// estimate.
func (s *Spec) Graph(arena *Arena, machine uint16) *LinkGraph {
	return &LinkGraph{
		machine:         machine,
		sectionNodes:    make([]*SectionNode, 0, s.sections),
		libraryNodes:    newOrderedMap[*LibraryNode](),
		coffNodes:       make(map[CoffNode]struct{}, s.coffs),
		rootCoff:        &CoffNode{filePath: "<root>"},
		externalSymbols: newOrderedMapCap[*SymbolNode](s.externals),
		cache:           newGraphCache(s.maxSymbols, s.maxSections),
		arena:           arena,
	}
}
