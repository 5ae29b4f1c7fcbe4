// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package linkgraph holds the link graph: an arena-backed graph of
// COFFs, sections, symbols and libraries joined by definition,
// relocation, import and associative edges, plus the passes that turn
// a finished graph into a linked output object.
package linkgraph

import (
	"fmt"
	"log/slog"

	"github.com/bofld/bofld/internal/coff"
	"github.com/bofld/bofld/internal/jamcrc"
	"github.com/bofld/bofld/internal/slogutil"
)

// LinkGraph is the mutable graph one link invocation builds its inputs
// into. All nodes and edges live in the arena; a graph is only valid
// while its arena is.
type LinkGraph struct {
	// machine is the target machine value for the output.
	machine uint16

	// sectionNodes lists every section node in insertion order.
	sectionNodes []*SectionNode

	// commonSection is the synthetic section COMMON symbols are
	// allocated into, created on first use.
	commonSection *SectionNode

	// rootCoff owns linker-synthesized sections.
	rootCoff *CoffNode

	// libraryNodes maps DLL names to library nodes, insertion ordered.
	libraryNodes *orderedMap[*LibraryNode]

	// coffNodes tracks the (file, member) pairs already ingested.
	coffNodes map[CoffNode]struct{}

	// apiNode is the distinguished library for API imports.
	apiNode *LibraryNode

	// externalSymbols maps names to globally-scoped symbols, insertion
	// ordered.
	externalSymbols *orderedMap[*SymbolNode]

	// extraneousSymbols holds local symbols without a section
	// (absolute and debug symbols); they only matter to the dot dump.
	extraneousSymbols []*SymbolNode

	nodeCount int

	cache *graphCache

	arena *Arena
}

// NewLinkGraph returns an empty graph over arena; prefer building via
// Spec so maps and slabs are pre-sized.
func NewLinkGraph(arena *Arena, machine uint16) *LinkGraph {
	return NewSpec().Graph(arena, machine)
}

// Machine returns the target machine value.
func (g *LinkGraph) Machine() uint16 {
	return g.machine
}

func validStorageClass(class uint8) bool {
	switch class {
	case coff.ImageSymClassEndOfFunction,
		coff.ImageSymClassNull,
		coff.ImageSymClassAutomatic,
		coff.ImageSymClassExternal,
		coff.ImageSymClassStatic,
		coff.ImageSymClassRegister,
		coff.ImageSymClassExternalDef,
		coff.ImageSymClassLabel,
		coff.ImageSymClassUndefinedLabel,
		coff.ImageSymClassMemberOfStruct,
		coff.ImageSymClassArgument,
		coff.ImageSymClassStructTag,
		coff.ImageSymClassMemberOfUnion,
		coff.ImageSymClassUnionTag,
		coff.ImageSymClassTypeDefinition,
		coff.ImageSymClassUndefinedStatic,
		coff.ImageSymClassEnumTag,
		coff.ImageSymClassMemberOfEnum,
		coff.ImageSymClassRegisterParam,
		coff.ImageSymClassBitField,
		coff.ImageSymClassBlock,
		coff.ImageSymClassFunction,
		coff.ImageSymClassEndOfStruct,
		coff.ImageSymClassFile,
		coff.ImageSymClassSection,
		coff.ImageSymClassWeakExternal,
		coff.ImageSymClassClrToken:
		return true
	}
	return false
}

func symbolTypeOf(sym *coff.Symbol) SymbolType {
	switch sym.SectionNumber {
	case coff.ImageSymAbsolute:
		return SymbolType{Kind: SymbolTypeAbsolute, Value: sym.Value}
	case coff.ImageSymDebug:
		return SymbolType{Kind: SymbolTypeDebug}
	default:
		return ValueType(sym.Type)
	}
}

// AddCoff ingests one COFF into the graph. Inputs already present are
// skipped; inputs for the wrong machine are rejected.
func (g *LinkGraph) AddCoff(filePath, memberPath string, obj *coff.File) error {
	if obj.Machine() != g.machine {
		return &ArchitectureMismatchError{Expected: g.machine, Found: obj.Machine()}
	}

	key := CoffNode{filePath: filePath, memberPath: memberPath}
	if _, present := g.coffNodes[key]; present {
		return nil
	}
	g.coffNodes[key] = struct{}{}

	coffNode := g.arena.newCoff(filePath, memberPath)
	g.nodeCount++

	g.cache.clear()

	sections := obj.Sections()
	for i := range sections {
		section := &sections[i]

		var data SectionData
		if section.Uninitialized() {
			data = UninitializedData(section.SizeOfRawData)
		} else {
			data = InitializedData(section.Data)
		}

		sectionNode := g.arena.newSection(section.Name, section.Characteristics, data, 0, coffNode)
		g.nodeCount++

		g.cache.insertSection(section.Index, sectionNode)
		g.sectionNodes = append(g.sectionNodes, sectionNode)
	}

	symbols := obj.Symbols()
	for i := range symbols {
		sym := &symbols[i]

		if !validStorageClass(sym.StorageClass) {
			return &SymbolParseError{Name: sym.Name, Index: sym.Index,
				Err: &unknownStorageClassError{class: sym.StorageClass}}
		}

		var graphSymbol *SymbolNode
		if sym.IsGlobal() {
			existing, present := g.externalSymbols.getOrInsert(sym.Name, func() *SymbolNode {
				g.nodeCount++
				return g.arena.newSymbol(sym.Name, sym.StorageClass, sym.HasAuxSection(), symbolTypeOf(sym))
			})
			if present && sym.IsDefinition() {
				// A definition upgrades the type recorded for a
				// previously seen external.
				existing.SetType(sym.Type)
			}
			graphSymbol = existing
		} else {
			graphSymbol = g.arena.newSymbol(sym.Name, sym.StorageClass, sym.HasAuxSection(), symbolTypeOf(sym))
			g.nodeCount++
		}

		g.cache.insertSymbol(sym.Index, graphSymbol)

		if sym.SectionNumber <= 0 {
			if sym.IsCommon() {
				// COMMON symbols hold their requested size in the
				// definition offset until allocation.
				common := g.getOrCreateCommonSection()
				edge := g.arena.newDefinition(graphSymbol, common, DefinitionWeight{address: sym.Value})
				graphSymbol.Definitions().PushBack(edge)
				common.Definitions().PushBack(edge)
			} else if !sym.IsGlobal() {
				g.extraneousSymbols = append(g.extraneousSymbols, graphSymbol)
			}
			continue
		}

		graphSection, ok := g.cache.section(int(sym.SectionNumber))
		if !ok {
			return &SymbolSectionIndexError{
				SymbolName:  sym.Name,
				SymbolIndex: sym.Index,
				SectionNum:  int(sym.SectionNumber),
			}
		}

		weight := DefinitionWeight{address: sym.Value}

		if sym.HasAuxSection() {
			aux, err := sym.AuxSection()
			if err != nil {
				return &SymbolParseError{Name: sym.Name, Index: sym.Index, Err: err}
			}
			checksum := aux.CheckSum

			if graphSection.IsComdat() {
				selection := ComdatSelection(aux.Selection)
				if selection < SelectionNoDuplicates || selection > SelectionLargest {
					return &ComdatSelectionError{Name: sym.Name, Index: sym.Index, Selection: aux.Selection}
				}

				// An associative record names the root section; wire
				// the dependency from the root to this section.
				if selection == SelectionAssociative {
					rootSection, ok := g.cache.section(int(aux.Number))
					if !ok {
						return &MissingComdatAssociativeSectionError{
							Symbol:           sym.Name,
							AssociativeIndex: int(aux.Number),
						}
					}
					rootSection.AssociativeEdges().PushBack(g.arena.newAssociative(rootSection, graphSection))
				}

				g.cache.insertComdatSelection(int(sym.SectionNumber), selection)
			}

			// .rdata$zzz sections are deduped by checksum in the
			// output; compute it from the bytes when the record
			// carries none.
			if graphSection.Name() == ".rdata$zzz" && checksum == 0 {
				if data := graphSection.Data(); !data.Uninitialized() {
					checksum = ^jamcrc.Checksum(data.Bytes())
				}
			}

			graphSection.ReplaceChecksum(checksum)
		} else if graphSection.IsComdat() {
			selection, ok := g.cache.comdatSelection(int(sym.SectionNumber))
			if !ok {
				return &MissingComdatSectionSymbolError{Symbol: sym.Name}
			}
			weight.selection = selection
		}

		edge := g.arena.newDefinition(graphSymbol, graphSection, weight)
		graphSymbol.Definitions().PushBack(edge)
		graphSection.Definitions().PushBack(edge)
	}

	for i := range sections {
		section := &sections[i]
		graphSection, _ := g.cache.section(section.Index)

		for _, reloc := range section.Relocations {
			targetSymbol, ok := g.cache.symbol(int(reloc.SymbolTableIndex))
			if !ok {
				return &RelocationTargetError{
					Section:     section.Name,
					Address:     reloc.VirtualAddress,
					SymbolIndex: reloc.SymbolTableIndex,
				}
			}

			edge := g.arena.newRelocation(graphSection, targetSymbol, RelocationWeight{
				address: reloc.VirtualAddress,
				typ:     reloc.Type,
			})
			graphSection.Relocations().PushBack(edge)
			targetSymbol.References().PushBack(edge)
		}
	}

	return nil
}

type unknownStorageClassError struct {
	class uint8
}

func (e *unknownStorageClassError) Error() string {
	return fmt.Sprintf("unknown storage class value (%d)", e.class)
}

func (g *LinkGraph) getOrCreateCommonSection() *SectionNode {
	if g.commonSection == nil {
		characteristics := coff.ImageScnCntUninitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite
		if g.machine == coff.ImageFileMachineAmd64 {
			characteristics |= coff.ImageScnAlign8Bytes
		} else {
			characteristics |= coff.ImageScnAlign4Bytes
		}
		g.commonSection = g.arena.newSection("COMMON data", characteristics, UninitializedData(0), 0, g.rootCoff)
		g.nodeCount++
	}
	return g.commonSection
}

// AddExternalSymbol creates an undefined external if the name is not
// already present; the driver seeds the entry point this way.
func (g *LinkGraph) AddExternalSymbol(name string) {
	g.externalSymbols.getOrInsert(name, func() *SymbolNode {
		g.nodeCount++
		return g.arena.newSymbol(name, coff.ImageSymClassExternal, false, ValueType(0))
	})
}

// UndefinedSymbols returns the names of the currently undefined
// externals in insertion order.
func (g *LinkGraph) UndefinedSymbols() []string {
	var undefined []string
	g.externalSymbols.each(func(name string, symbol *SymbolNode) bool {
		if symbol.IsUndefined() {
			undefined = append(undefined, name)
		}
		return true
	})
	return undefined
}

// AddAPIImport wires symbol to the distinguished API library node using
// the import record. The symbol must already exist.
func (g *LinkGraph) AddAPIImport(symbol string, imp *coff.ImportMember) error {
	if g.apiNode == nil {
		g.apiNode = g.arena.newLibrary(imp.DLL)
		g.nodeCount++
	}
	return g.addImportEdge(symbol, g.apiNode, imp)
}

// AddLibraryImport wires symbol to the library node for the import's
// DLL, creating the node on first use.
func (g *LinkGraph) AddLibraryImport(symbol string, imp *coff.ImportMember) error {
	library, _ := g.libraryNodes.getOrInsert(imp.DLL, func() *LibraryNode {
		g.nodeCount++
		return g.arena.newLibrary(imp.DLL)
	})
	return g.addImportEdge(symbol, library, imp)
}

func (g *LinkGraph) addImportEdge(symbol string, library *LibraryNode, imp *coff.ImportMember) error {
	symbolNode, ok := g.externalSymbols.get(symbol)
	if !ok {
		panic("symbol " + symbol + " does not exist")
	}

	if imp.Machine != g.machine {
		return &ArchitectureMismatchError{Expected: g.machine, Found: imp.Machine}
	}

	importName := imp.Import.Name
	if imp.Import.ByOrdinal {
		slog.Warn("found ordinal import value, linking public symbol name",
			slog.Uint64("ordinal", uint64(imp.Import.Ordinal)), slogutil.Symbol(symbol))
		importName = imp.Symbol
	}

	edge := g.arena.newImport(symbolNode, library, ImportWeight{importName: importName})
	symbolNode.Imports().PushBack(edge)
	library.Imports().PushBack(edge)

	return nil
}

// Finish validates every external and hands the graph to the output
// builder. Undefined, duplicate and multiply-defined symbols are
// collected and reported together.
func (g *LinkGraph) Finish() (*BuiltGraph, []error) {
	var symbolErrors []error

	g.externalSymbols.each(func(_ string, symbol *SymbolNode) bool {
		switch {
		case symbol.IsUndefined():
			symbolErrors = append(symbolErrors, &UndefinedSymbolError{Symbol: symbol})
		case symbol.IsDuplicate():
			symbolErrors = append(symbolErrors, &DuplicateSymbolError{Symbol: symbol})
		case symbol.IsMultiplyDefined():
			symbolErrors = append(symbolErrors, &MultiplyDefinedSymbolError{Symbol: symbol})
		}
		return true
	})

	if len(symbolErrors) > 0 {
		return nil, symbolErrors
	}

	return newBuiltGraph(g), nil
}
