// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/bofld/bofld/internal/coff"
	"github.com/bofld/bofld/internal/slogutil"
)

// outputSection is one section of the output object: its header under
// construction and the input section nodes folded into it.
type outputSection struct {
	name coff.Name

	characteristics      uint32
	sizeOfRawData        uint32
	pointerToRawData     uint32
	pointerToRelocations uint32
	numberOfRelocations  uint16

	nodes []*SectionNode
}

// BuiltGraph is the finalized link graph. No more inputs can be added;
// the remaining passes discard, allocate, synthesize and emit.
type BuiltGraph struct {
	machine uint16

	// sections groups surviving section nodes by group name, insertion
	// ordered.
	sections *orderedMap[*outputSection]

	commonSection *SectionNode

	rootCoff *CoffNode

	libraryNodes *orderedMap[*LibraryNode]

	apiNode *LibraryNode

	externalSymbols *orderedMap[*SymbolNode]

	arena *Arena
}

// newBuiltGraph partitions the graph's sections into output sections,
// dropping LnkRemove and debug sections and deduping `.rdata$zzz`.
func newBuiltGraph(g *LinkGraph) *BuiltGraph {
	b := &BuiltGraph{
		machine:         g.machine,
		sections:        newOrderedMap[*outputSection](),
		commonSection:   g.commonSection,
		rootCoff:        g.rootCoff,
		libraryNodes:    g.libraryNodes,
		apiNode:         g.apiNode,
		externalSymbols: g.externalSymbols,
		arena:           g.arena,
	}

	for _, section := range g.sectionNodes {
		if section.Characteristics()&coff.ImageScnLnkRemove != 0 {
			slog.Debug("discarding 'IMAGE_SCN_LNK_REMOVE' section",
				slogutil.String("coff", section.Coff()), slogutil.Section(section.Name().String()))
			section.Discard()
			continue
		}
		if section.IsDebug() {
			slog.Debug("discarding debug section",
				slogutil.String("coff", section.Coff()), slogutil.Section(section.Name().String()))
			section.Discard()
			continue
		}

		entry, _ := b.sections.getOrInsert(section.Name().GroupName(), func() *outputSection {
			return &outputSection{}
		})
		entry.nodes = append(entry.nodes, section)
	}

	// Sort each group by full section name so `$` ordering drives the
	// output order.
	b.sections.each(func(_ string, section *outputSection) bool {
		slices.SortStableFunc(section.nodes, func(a, b *SectionNode) int {
			switch {
			case a.Name() < b.Name():
				return -1
			case a.Name() > b.Name():
				return 1
			}
			return 0
		})
		return true
	})

	// Fold adjacent .rdata$zzz sections with identical payloads.
	if rdata, ok := b.sections.get(".rdata"); ok {
		rdata.nodes = dedupAdjacent(rdata.nodes, func(first, second *SectionNode) bool {
			firstOrdering, firstOk := first.Name().GroupOrdering()
			secondOrdering, secondOk := second.Name().GroupOrdering()
			return firstOk && firstOrdering == "zzz" &&
				secondOk && secondOrdering == "zzz" &&
				first.Relocations().Empty() &&
				second.Relocations().Empty() &&
				first.Checksum() == second.Checksum()
		})
	}

	return b
}

// dedupAdjacent removes consecutive entries for which same reports a
// duplicate of the retained predecessor, keeping the first of each run.
func dedupAdjacent(nodes []*SectionNode, same func(candidate, kept *SectionNode) bool) []*SectionNode {
	if len(nodes) < 2 {
		return nodes
	}
	kept := nodes[:1]
	for _, node := range nodes[1:] {
		if !same(node, kept[len(kept)-1]) {
			kept = append(kept, node)
		}
	}
	return kept
}

// MergeBss moves every .bss node into .data, creating .data with
// read/write initialized-data characteristics when absent. COMMON
// allocation runs first so COMMON storage is merged too.
func (b *BuiltGraph) MergeBss() {
	b.allocateCommons()

	bss, _ := b.sections.getOrInsert(".bss", func() *outputSection { return &outputSection{} })
	bssNodes := bss.nodes
	bss.nodes = nil

	data, _ := b.sections.getOrInsert(".data", func() *outputSection {
		return &outputSection{
			characteristics: coff.ImageScnCntInitializedData |
				coff.ImageScnMemRead |
				coff.ImageScnMemWrite,
		}
	})

	data.nodes = append(data.nodes, bssNodes...)
	slog.Debug("'.bss' output section merged with '.data' section")
}

// allocateCommons assigns every COMMON symbol an offset in the COMMON
// section and appends that section to .bss. Idempotent: the section
// reference is consumed on the first run.
func (b *BuiltGraph) allocateCommons() {
	common := b.commonSection
	if common == nil {
		return
	}
	b.commonSection = nil

	// Collect the COMMON symbols, de-duplicated by name, with the
	// largest requested size over all their definitions.
	type commonSymbol struct {
		symbol *SymbolNode
		size   uint32
	}
	seen := make(map[*SymbolNode]struct{})
	var commons []commonSymbol

	for e := common.Definitions().Front(); e != nil; e = common.Definitions().Next(e) {
		symbol := e.Source()
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		size := uint32(0)
		for d := symbol.Definitions().Front(); d != nil; d = symbol.Definitions().Next(d) {
			size = max(size, d.Weight().Address())
		}
		commons = append(commons, commonSymbol{symbol: symbol, size: size})
	}

	slices.SortStableFunc(commons, func(a, b commonSymbol) int {
		switch {
		case a.size < b.size:
			return -1
		case a.size > b.size:
			return 1
		}
		return 0
	})

	align := coff.Alignment(common.Characteristics())
	if align == 0 {
		align = 1
	}

	// Collapse each symbol's definition list to a single edge holding
	// the final offset.
	var addr uint32
	for _, c := range commons {
		addr = nextMultiple(addr, align)

		def := c.symbol.Definitions().PopFront()
		def.Weight().SetAddress(addr)
		c.symbol.Definitions().Clear()
		c.symbol.Definitions().PushBack(def)

		addr += c.size
	}

	// Mirror the collapsed edges on the COMMON section's side.
	common.Definitions().Clear()
	for _, c := range commons {
		common.Definitions().PushBack(c.symbol.Definitions().Front())
	}

	common.SetUninitializedSize(addr)

	bss, _ := b.sections.getOrInsert(".bss", func() *outputSection {
		return &outputSection{characteristics: common.Characteristics()}
	})
	bss.nodes = append(bss.nodes, common)
}

// codeThunk is the import thunk byte pattern: a RIP-relative indirect
// JMP through a 32-bit displacement, padded with two NOPs to 8 bytes.
var codeThunk = [8]byte{0xff, 0x25, 0x00, 0x00, 0x00, 0x00, 0x90, 0x90}

// applyImportThunks gives every referenced import a local code stub.
// The referenced symbol becomes a definition in a synthesized
// `.text$zzz` section and the import moves to a fresh `__imp_` symbol
// targeted by the stub's relocation.
func (b *BuiltGraph) applyImportThunks() {
	type thunk struct {
		symbol     *SymbolNode
		importName string
	}
	var thunks []thunk

	libraries := make([]*LibraryNode, 0, b.libraryNodes.len()+1)
	if b.apiNode != nil {
		libraries = append(libraries, b.apiNode)
	}
	b.libraryNodes.each(func(_ string, library *LibraryNode) bool {
		libraries = append(libraries, library)
		return true
	})

	for _, library := range libraries {
		for e := library.Imports().Front(); e != nil; e = library.Imports().Next(e) {
			symbol := e.Source()
			importName := e.Weight().ImportName()

			// A symbol that is already the `__imp_` name for its
			// import needs no stub; neither does one nothing
			// references.
			alreadyImp := false
			if unprefixed, ok := cutImpPrefix(symbol.Name()); ok {
				alreadyImp = unprefixed == importName
			}
			if !alreadyImp && !symbol.IsUnreferenced() {
				thunks = append(thunks, thunk{symbol: symbol, importName: importName})
			}
		}
	}

	if len(thunks) == 0 {
		return
	}

	data := make([]byte, len(codeThunk)*len(thunks))
	for off := 0; off < len(data); off += len(codeThunk) {
		copy(data[off:], codeThunk[:])
	}

	codeSection := b.arena.newSection(".text$zzz",
		coff.ImageScnCntCode|
			coff.ImageScnMemExecute|
			coff.ImageScnMemRead|
			coff.ImageScnAlign8Bytes,
		InitializedData(data), 0, b.rootCoff)

	thunkRelocType := coff.ImageRelAmd64Rel32
	if b.machine == coff.ImageFileMachineI386 {
		thunkRelocType = coff.ImageRelI386Dir32
	}

	for i, t := range thunks {
		thunkAddr := uint32(i) * uint32(len(codeThunk))

		definition := b.arena.newDefinition(t.symbol, codeSection, DefinitionWeight{address: thunkAddr})
		t.symbol.Definitions().PushBack(definition)
		codeSection.Definitions().PushBack(definition)

		impSymbol := b.arena.newSymbol("__imp_"+t.importName, coff.ImageSymClassExternal, false, ValueType(0))

		relocation := b.arena.newRelocation(codeSection, impSymbol, RelocationWeight{
			address: thunkAddr + 2,
			typ:     thunkRelocType,
		})
		codeSection.Relocations().PushBack(relocation)
		impSymbol.References().PushBack(relocation)

		// Move the import edge from the original symbol onto the new
		// `__imp_` symbol; the list re-home is O(1).
		importEdge := t.symbol.Imports().PopFront()
		importEdge.ReplaceSource(impSymbol)
		impSymbol.Imports().PushBack(importEdge)
	}

	entry, _ := b.sections.getOrInsert(codeSection.Name().GroupName(), func() *outputSection {
		return &outputSection{}
	})
	entry.nodes = append(entry.nodes, codeSection)
}

func cutImpPrefix(name string) (string, bool) {
	const prefix = "__imp_"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):], true
	}
	return "", false
}

// handleComdats resolves COMDAT selections over every external and
// propagates keep/discard decisions across associative edges.
func (b *BuiltGraph) handleComdats() {
	b.externalSymbols.each(func(_ string, symbol *SymbolNode) bool {
		first := symbol.Definitions().Front()
		if first == nil {
			return true
		}

		selection := first.Weight().Selection()
		if selection == SelectionNone {
			return true
		}

		switch selection {
		case SelectionAny, SelectionSameSize, SelectionExactMatch:
			// Keep the first definition, discard the rest.
			for e := symbol.Definitions().Next(first); e != nil; e = symbol.Definitions().Next(e) {
				section := e.Target()
				slog.Debug("discarding COMDAT section",
					slogutil.String("coff", section.Coff()),
					slogutil.Section(section.Name().String()),
					slogutil.String("selection", selection))
				section.Discard()
			}

		case SelectionLargest:
			var largest *SectionNode
			for e := first; e != nil; e = symbol.Definitions().Next(e) {
				section := e.Target()
				if largest == nil {
					largest = section
					continue
				}
				if largest.Data().Len() < section.Data().Len() {
					slog.Debug("discarding COMDAT section",
						slogutil.String("coff", largest.Coff()),
						slogutil.Section(largest.Name().String()),
						slogutil.String("selection", selection))
					largest.Discard()
					largest = section
				} else {
					section.Discard()
				}
			}

		case SelectionAssociative:
			// Dependents inherit their root's state below.
		}

		// Propagate each definition's state over its associative
		// dependents.
		for e := first; e != nil; e = symbol.Definitions().Next(e) {
			rootSection := e.Target()
			rootDiscarded := rootSection.IsDiscarded()

			rootSection.AssociativeBFS(func(dependent *SectionNode) {
				if rootDiscarded && !dependent.IsDiscarded() {
					slog.Debug("discarding COMDAT section associative to discarded root",
						slogutil.String("coff", dependent.Coff()),
						slogutil.Section(dependent.Name().String()),
						slogutil.String("root", rootSection.Name().String()))
				}
				dependent.SetDiscarded(rootDiscarded)
			})
		}

		return true
	})
}

// Link runs the output pipeline and returns the linked COFF bytes.
func (b *BuiltGraph) Link() ([]byte, error) {
	b.applyImportThunks()
	b.handleComdats()
	b.allocateCommons()

	// Drop discarded nodes and empty output sections.
	b.sections.retain(func(name string, section *outputSection) bool {
		kept := section.nodes[:0]
		for _, node := range section.nodes {
			if !node.IsDiscarded() {
				kept = append(kept, node)
			}
		}
		section.nodes = kept
		if len(section.nodes) == 0 {
			slog.Debug("discarding output section", slogutil.Section(name))
			return false
		}
		return true
	})

	writer := coff.NewWriter()
	writer.ReserveFileHeader()

	// Layout: derive characteristics, align members, assign addresses.
	b.sections.each(func(name string, section *outputSection) bool {
		section.name = writer.AddSectionName(name)
		var sectionAlignment uint32

		if section.characteristics == 0 && len(section.nodes) > 0 {
			flags := coff.ZeroAlign(section.nodes[0].Characteristics())
			flags &^= coff.ImageScnLnkComdat
			section.characteristics = flags
		}

		for _, node := range section.nodes {
			if align := coff.Alignment(node.Characteristics()); align != 0 {
				section.sizeOfRawData = nextMultiple(section.sizeOfRawData, align)
				sectionAlignment = max(sectionAlignment, align)
			}

			slog.Debug("mapping section",
				slogutil.String("coff", node.Coff()),
				slogutil.Section(node.Name().String()),
				slog.String("output", name),
				slog.Uint64("address", uint64(section.sizeOfRawData)),
				slog.Uint64("size", uint64(node.Data().Len())))

			node.AssignVirtualAddress(section.sizeOfRawData)
			section.sizeOfRawData += node.Data().Len()
		}

		if sectionAlignment != 0 {
			section.characteristics |= coff.AlignCharacteristic(sectionAlignment)
		}
		return true
	})

	writer.ReserveSectionHeaders(uint16(b.sections.len()))

	// Reserve section data for initialized sections.
	b.sections.each(func(_ string, section *outputSection) bool {
		if section.characteristics&coff.ImageScnCntUninitializedData == 0 {
			section.pointerToRawData = writer.ReserveSection(int(section.sizeOfRawData))
		}
		return true
	})

	// Reserve relocations, skipping targets resolved inside the same
	// output section; a reference into a discarded section with no
	// import to fall back on is fatal here.
	var linkErr error
	b.sections.each(func(name string, section *outputSection) bool {
		relocCount := 0

		for _, node := range section.nodes {
			for e := node.Relocations().Front(); e != nil; e = node.Relocations().Next(e) {
				symbol := e.Target()

				if definition := firstLiveDefinition(symbol); definition != nil {
					if definition.Target().Name().GroupName() == name {
						continue
					}
				} else if symbol.Imports().Empty() {
					linkErr = &DiscardedSectionError{
						CoffName:  node.Coff().String(),
						Reference: nearestPriorSymbol(node, e.Weight().Address()),
						Symbol:    symbol.DemangledName(),
					}
					return false
				}

				relocCount++
			}
		}

		if relocCount > 0xffff {
			panic(fmt.Sprintf("output section %s has %d relocations", name, relocCount))
		}
		section.numberOfRelocations = uint16(relocCount)
		section.pointerToRelocations = writer.ReserveRelocations(relocCount)
		return true
	})
	if linkErr != nil {
		return nil, linkErr
	}

	// Reserve symbol table indices: one section symbol plus aux per
	// output section, then the symbols defined in its members.
	b.sections.each(func(_ string, section *outputSection) bool {
		sectionSymbolIndex := writer.ReserveSymbolIndex()
		writer.ReserveAuxSection()

		for _, node := range section.nodes {
			for e := node.Definitions().Front(); e != nil; e = node.Definitions().Next(e) {
				symbol := e.Source()

				if symbol.IsSectionSymbol() || symbol.IsLabel() {
					// Labels and section symbols reuse the section
					// symbol's index.
					symbol.AssignTableIndex(sectionSymbolIndex)
				} else {
					symbol.SetOutputNameOnce(func() coff.Name {
						return writer.AddName(symbol.Name())
					})
					symbol.AssignTableIndex(writer.ReserveSymbolIndex())
				}
			}
		}
		return true
	})

	// Reserve API imports, then library imports under their mangled
	// `__imp_<dll>$<name>` output names.
	if b.apiNode != nil {
		for e := b.apiNode.Imports().Front(); e != nil; e = b.apiNode.Imports().Next(e) {
			symbol := e.Source()
			symbol.SetOutputNameOnce(func() coff.Name {
				return writer.AddName(symbol.Name())
			})
			symbol.AssignTableIndex(writer.ReserveSymbolIndex())
		}
	}

	b.libraryNodes.each(func(_ string, library *LibraryNode) bool {
		for e := library.Imports().Front(); e != nil; e = library.Imports().Next(e) {
			symbol := e.Source()
			mangled := fmt.Sprintf("__imp_%s$%s", library.Name().TrimDllSuffix(), e.Weight().ImportName())
			symbol.SetOutputNameOnce(func() coff.Name {
				return writer.AddName(mangled)
			})
			symbol.AssignTableIndex(writer.ReserveSymbolIndex())
		}
		return true
	})

	writer.ReserveSymtabStrtab()

	// Emission.
	writer.WriteFileHeader(coff.FileHeader{
		Machine:         b.machine,
		TimeDateStamp:   0,
		Characteristics: coff.ImageFileLineNumsStripped,
	})

	b.sections.each(func(_ string, section *outputSection) bool {
		writer.WriteSectionHeader(coff.SectionHeader{
			Name:                 section.name,
			SizeOfRawData:        section.sizeOfRawData,
			PointerToRawData:     section.pointerToRawData,
			PointerToRelocations: section.pointerToRelocations,
			NumberOfRelocations:  section.numberOfRelocations,
			Characteristics:      section.characteristics,
		})
		return true
	})

	// Section bodies: members at their assigned addresses, gaps padded
	// with NOPs in code and zeros in data; an uninitialized member in
	// an initialized output section becomes explicit zero padding.
	b.sections.each(func(_ string, section *outputSection) bool {
		if section.sizeOfRawData == 0 ||
			section.characteristics&coff.ImageScnCntUninitializedData != 0 {
			return true
		}

		writer.WriteSectionAlign()

		padByte := byte(0x00)
		if section.characteristics&coff.ImageScnCntCode != 0 {
			padByte = 0x90
		}

		var written uint32
		for _, node := range section.nodes {
			if gap := node.VirtualAddress() - written; gap > 0 {
				writer.Write(repeatByte(padByte, gap))
				written += gap
			}

			data := node.Data()
			if data.Uninitialized() {
				writer.Write(repeatByte(padByte, data.Len()))
			} else {
				writer.Write(data.Bytes())
			}
			written += data.Len()
		}
		return true
	})

	// Relocations, skipping same-output-section targets again.
	b.sections.each(func(name string, section *outputSection) bool {
		for _, node := range section.nodes {
			for e := node.Relocations().Front(); e != nil; e = node.Relocations().Next(e) {
				symbol := e.Target()

				if definition := firstLiveDefinition(symbol); definition != nil {
					if definition.Target().Name().GroupName() == name {
						continue
					}
				}

				index, ok := symbol.TableIndex()
				if !ok {
					panic("symbol " + symbol.DemangledName() + " was never assigned a symbol table index")
				}

				writer.WriteRelocation(coff.Relocation{
					VirtualAddress:   node.VirtualAddress() + e.Weight().Address(),
					SymbolTableIndex: index,
					Type:             e.Weight().Type(),
				})
			}
		}
		return true
	})

	// Symbol table: section symbols with aux records, then member
	// definitions, then imports.
	sectionIndex := 0
	b.sections.each(func(_ string, section *outputSection) bool {
		sectionIndex++

		writer.WriteSymbol(coff.SymbolRecord{
			Name:               section.name,
			Value:              0,
			SectionNumber:      int16(sectionIndex),
			Type:               coff.ImageSymTypeNull,
			StorageClass:       coff.ImageSymClassStatic,
			NumberOfAuxSymbols: 1,
		})
		writer.WriteAuxSection(coff.AuxSection{
			Length:              section.sizeOfRawData,
			NumberOfRelocations: section.numberOfRelocations,
			Number:              uint16(sectionIndex),
		})

		for _, node := range section.nodes {
			for e := node.Definitions().Front(); e != nil; e = node.Definitions().Next(e) {
				symbol := e.Source()
				if symbol.IsSectionSymbol() || symbol.IsLabel() {
					continue
				}

				name, ok := symbol.OutputName()
				if !ok {
					panic("symbol " + symbol.DemangledName() + " never had the name reserved in the output COFF")
				}

				typ := uint16(0)
				if t := symbol.Type(); t.Kind == SymbolTypeValue {
					typ = uint16(t.Value)
				}

				writer.WriteSymbol(coff.SymbolRecord{
					Name:          name,
					Value:         e.Weight().Address() + node.VirtualAddress(),
					SectionNumber: int16(sectionIndex),
					Type:          typ,
					StorageClass:  symbol.StorageClass(),
				})
			}
		}
		return true
	})

	writeImportSymbol := func(symbol *SymbolNode) {
		name, ok := symbol.OutputName()
		if !ok {
			panic("symbol " + symbol.DemangledName() + " never had the name reserved in the output COFF")
		}
		writer.WriteSymbol(coff.SymbolRecord{
			Name:         name,
			StorageClass: coff.ImageSymClassExternal,
		})
	}

	if b.apiNode != nil {
		for e := b.apiNode.Imports().Front(); e != nil; e = b.apiNode.Imports().Next(e) {
			writeImportSymbol(e.Source())
		}
	}
	b.libraryNodes.each(func(_ string, library *LibraryNode) bool {
		for e := library.Imports().Front(); e != nil; e = library.Imports().Next(e) {
			writeImportSymbol(e.Source())
		}
		return true
	})

	writer.WriteStrtab()

	built := writer.Bytes()

	if err := b.fixupRelocations(built); err != nil {
		return nil, err
	}

	return built, nil
}

// firstLiveDefinition returns the symbol's first definition whose
// section survived, or nil.
func firstLiveDefinition(symbol *SymbolNode) *DefinitionEdge {
	for e := symbol.Definitions().Front(); e != nil; e = symbol.Definitions().Next(e) {
		if !e.Target().IsDiscarded() {
			return e
		}
	}
	return nil
}

// fixupRelocations patches section bytes in place against the final
// virtual addresses: section-symbol references shift by the target
// section's address, same-group references resolve to PC-relative
// form, label references shift by section plus label offset, and
// everything else stays symbolic.
func (b *BuiltGraph) fixupRelocations(built []byte) error {
	var fixupErr error

	b.sections.each(func(_ string, section *outputSection) bool {
		base := int(section.pointerToRawData)

		for _, node := range section.nodes {
			nodeStart := base + int(node.VirtualAddress())
			nodeData := built[nodeStart : nodeStart+int(node.Data().Len())]

			for e := node.Relocations().Front(); e != nil; e = node.Relocations().Next(e) {
				symbol := e.Target()

				definition := firstLiveDefinition(symbol)
				if definition == nil {
					continue
				}
				targetSection := definition.Target()

				relocAddr := e.Weight().Address()
				if relocAddr+4 > node.Data().Len() {
					fixupErr = &RelocationBoundsError{
						CoffName: node.Coff().String(),
						Section:  node.Name().String(),
						Address:  relocAddr,
						Size:     node.Data().Len(),
					}
					return false
				}

				word := nodeData[relocAddr : relocAddr+4]

				switch {
				case symbol.IsSectionSymbol():
					// Shift by the target section's placement.
					value := le32(word)
					shifted, ok := checkedAdd(value, targetSection.VirtualAddress())
					if !ok {
						fixupErr = &RelocationOverflowError{
							CoffName: node.Coff().String(),
							Section:  node.Name().String(),
							Address:  relocAddr,
						}
						return false
					}
					putLe32(word, shifted)

				case node.Name().GroupName() == targetSection.Name().GroupName():
					// Same output section: resolve the PC-relative
					// reference statically. The inline addend is read
					// big-endian, matching the COFF addend convention
					// used here.
					relocVA := relocAddr + node.VirtualAddress()
					symbolVA := definition.Weight().Address() + targetSection.VirtualAddress()

					value := be32(word)
					delta := symbolVA - (relocVA + 4)
					putLe32(word, value+delta)

				case symbol.IsLabel():
					// The emitted relocation points at the section
					// symbol; shift by section placement plus the
					// label's offset inside it.
					value := le32(word)
					shifted, ok := checkedAdd(value, targetSection.VirtualAddress())
					if ok {
						shifted, ok = checkedAdd(shifted, definition.Weight().Address())
					}
					if !ok {
						fixupErr = &RelocationOverflowError{
							CoffName: node.Coff().String(),
							Section:  node.Name().String(),
							Address:  relocAddr,
						}
						return false
					}
					putLe32(word, shifted)

				default:
					// Symbolic; the emitted relocation carries the
					// resolution.
				}
			}
		}
		return true
	})

	return fixupErr
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func be32(b []byte) uint32 {
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}

func putLe32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func checkedAdd(a, b uint32) (uint32, bool) {
	sum := a + b
	return sum, sum >= a
}

func nextMultiple(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

func repeatByte(b byte, n uint32) []byte {
	buf := make([]byte, n)
	if b != 0 {
		for i := range buf {
			buf[i] = b
		}
	}
	return buf
}
