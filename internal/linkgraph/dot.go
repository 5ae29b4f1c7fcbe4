// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import (
	"fmt"
	"io"

	"github.com/bofld/bofld/internal/coff"
)

// WriteDotGraph writes the GraphViz dot representation of the graph:
// sections as records, symbols as plain nodes (red when undefined,
// duplicate or multiply defined), libraries as diamonds and the API
// node as a triangle; edges labeled with definition offsets, relocation
// offsets, COMDAT selections and import names.
func (g *LinkGraph) WriteDotGraph(w io.Writer) error {
	dw := &dotWriter{
		w:          w,
		symbolIDs:  make(map[*SymbolNode]int, g.nodeCount),
		sectionIDs: make(map[*SectionNode]int),
		libraryIDs: make(map[*LibraryNode]int),
	}

	dw.printf("digraph {\n")

	sections := g.allSections()

	for _, section := range sections {
		id := dw.sectionID(section)
		dw.printf("    %d [ label=\"{ %s | %s | { Size: %#x\\l | Align: %#x\\l | Checksum: %#x\\l } }\" shape=record ]\n",
			id, section.Name(), section.Coff().ShortName(),
			section.Data().Len(), coff.Alignment(section.Characteristics()), section.Checksum())

		for e := section.Relocations().Front(); e != nil; e = section.Relocations().Next(e) {
			dw.declareSymbol(e.Target())
		}
		for e := section.Definitions().Front(); e != nil; e = section.Definitions().Next(e) {
			dw.declareSymbol(e.Source())
		}
	}

	for _, symbol := range g.extraneousSymbols {
		if symbol.References().Empty() {
			dw.declareSymbol(symbol)
		}
	}

	g.libraryNodes.each(func(_ string, library *LibraryNode) bool {
		id := dw.libraryID(library)
		dw.printf("    %d [ label=\"%s\" shape=diamond ]\n", id, library.Name())
		return true
	})

	if g.apiNode != nil {
		id := dw.libraryID(g.apiNode)
		dw.printf("    %d [ label=\"%s\" shape=triangle ]\n", id, g.apiNode.Name().TrimDllSuffix())
	}

	for _, section := range sections {
		sectionID := dw.sectionID(section)

		for e := section.Relocations().Front(); e != nil; e = section.Relocations().Next(e) {
			dw.printf("    %d -> %d [ label=\"relocation (addr %#x)\" ]\n",
				sectionID, dw.symbolID(e.Target()), e.Weight().Address())
		}

		for e := section.Definitions().Front(); e != nil; e = section.Definitions().Next(e) {
			symbol := e.Source()
			label := fmt.Sprintf("defined at %#x", e.Weight().Address())
			if selection := e.Weight().Selection(); selection != SelectionNone {
				label += fmt.Sprintf(" (%s)", selection)
			}
			attrs := ""
			if symbol.IsDuplicate() || symbol.IsMultiplyDefined() {
				attrs = " color=red"
			}
			dw.printf("    %d -> %d [ label=\"%s\"%s ]\n", dw.symbolID(symbol), sectionID, label, attrs)
		}

		for e := section.AssociativeEdges().Front(); e != nil; e = section.AssociativeEdges().Next(e) {
			dw.printf("    %d -> %d [ label=\"associative\" ]\n", sectionID, dw.sectionID(e.Target()))
		}
	}

	writeImports := func(library *LibraryNode) {
		libraryID := dw.libraryID(library)
		for e := library.Imports().Front(); e != nil; e = library.Imports().Next(e) {
			dw.printf("    %d -> %d [ label=\"import \\\"%s\\\"\" ]\n",
				dw.symbolID(e.Source()), libraryID, e.Weight().ImportName())
		}
	}

	if g.apiNode != nil {
		writeImports(g.apiNode)
	}
	g.libraryNodes.each(func(_ string, library *LibraryNode) bool {
		writeImports(library)
		return true
	})

	dw.printf("}\n")
	return dw.err
}

func (g *LinkGraph) allSections() []*SectionNode {
	sections := g.sectionNodes
	if g.commonSection != nil {
		sections = append(sections[:len(sections):len(sections)], g.commonSection)
	}
	return sections
}

type dotWriter struct {
	w   io.Writer
	err error

	nextID     int
	symbolIDs  map[*SymbolNode]int
	sectionIDs map[*SectionNode]int
	libraryIDs map[*LibraryNode]int
}

func (dw *dotWriter) printf(format string, args ...any) {
	if dw.err != nil {
		return
	}
	_, dw.err = fmt.Fprintf(dw.w, format, args...)
}

func (dw *dotWriter) sectionID(section *SectionNode) int {
	id, ok := dw.sectionIDs[section]
	if !ok {
		id = dw.nextID
		dw.nextID++
		dw.sectionIDs[section] = id
	}
	return id
}

func (dw *dotWriter) libraryID(library *LibraryNode) int {
	id, ok := dw.libraryIDs[library]
	if !ok {
		id = dw.nextID
		dw.nextID++
		dw.libraryIDs[library] = id
	}
	return id
}

func (dw *dotWriter) symbolID(symbol *SymbolNode) int {
	id, ok := dw.symbolIDs[symbol]
	if !ok {
		id = dw.nextID
		dw.nextID++
		dw.symbolIDs[symbol] = id
	}
	return id
}

// declareSymbol emits the node statement for a symbol once.
func (dw *dotWriter) declareSymbol(symbol *SymbolNode) {
	if _, seen := dw.symbolIDs[symbol]; seen {
		return
	}
	id := dw.symbolID(symbol)

	attrs := ""
	if symbol.IsUndefined() || symbol.IsDuplicate() || symbol.IsMultiplyDefined() {
		attrs = " color=red"
	}
	dw.printf("    %d [ label=\"%s\"%s ]\n", id, symbol.Name(), attrs)
}
