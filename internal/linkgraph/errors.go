// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import (
	"fmt"
	"sort"
	"strings"
)

// ArchitectureMismatchError reports an input whose machine differs from
// the link target.
type ArchitectureMismatchError struct {
	Expected uint16
	Found    uint16
}

func (e *ArchitectureMismatchError) Error() string {
	return fmt.Sprintf("invalid architecture %#x, expected %#x", e.Found, e.Expected)
}

// SymbolParseError reports a symbol table entry that could not be
// turned into a graph node.
type SymbolParseError struct {
	Name  string
	Index int
	Err   error
}

func (e *SymbolParseError) Error() string {
	return fmt.Sprintf("could not parse symbol '%s' at table index %d: %v", e.Name, e.Index, e.Err)
}

func (e *SymbolParseError) Unwrap() error {
	return e.Err
}

// SymbolSectionIndexError reports a symbol referencing a section number
// the file does not have.
type SymbolSectionIndexError struct {
	SymbolName  string
	SymbolIndex int
	SectionNum  int
}

func (e *SymbolSectionIndexError) Error() string {
	return fmt.Sprintf("symbol '%s' at table index %d references invalid section number %d",
		e.SymbolName, e.SymbolIndex, e.SectionNum)
}

// RelocationTargetError reports a relocation whose symbol index is out
// of range.
type RelocationTargetError struct {
	Section     string
	Address     uint32
	SymbolIndex uint32
}

func (e *RelocationTargetError) Error() string {
	return fmt.Sprintf("%s+%#x relocation references invalid target symbol index %d",
		e.Section, e.Address, e.SymbolIndex)
}

// ComdatSelectionError reports an invalid COMDAT selection value.
type ComdatSelectionError struct {
	Name      string
	Index     int
	Selection uint8
}

func (e *ComdatSelectionError) Error() string {
	return fmt.Sprintf("could not parse symbol '%s' at table index %d: invalid COMDAT selection (%d)",
		e.Name, e.Index, e.Selection)
}

// MissingComdatSectionSymbolError reports a COMDAT symbol whose section
// has no section symbol carrying the selection.
type MissingComdatSectionSymbolError struct {
	Symbol string
}

func (e *MissingComdatSectionSymbolError) Error() string {
	return fmt.Sprintf("COMDAT symbol '%s' is missing a section symbol", e.Symbol)
}

// MissingComdatAssociativeSectionError reports an associative COMDAT
// record naming a section the file does not have.
type MissingComdatAssociativeSectionError struct {
	Symbol           string
	AssociativeIndex int
}

func (e *MissingComdatAssociativeSectionError) Error() string {
	return fmt.Sprintf("COMDAT section symbol '%s' is missing associative section %d",
		e.Symbol, e.AssociativeIndex)
}

// referenceSites renders up to five reference sites for a symbol, each
// as COFF:(nearest prior symbol) or COFF:(section+offset).
func referenceSites(sb *strings.Builder, symbol *SymbolNode) {
	refs := symbol.References()
	count := 0
	for e := refs.Front(); e != nil; e = refs.Next(e) {
		if count == 5 {
			break
		}
		count++

		section := e.Source()
		fmt.Fprintf(sb, "\n>>> referenced by %s:(%s)", section.Coff(), nearestPriorSymbol(section, e.Weight().Address()))
	}

	if remaining := refs.Len() - count; remaining > 0 {
		fmt.Fprintf(sb, "\n>>> referenced %d more times", remaining)
	}
}

// nearestPriorSymbol names the closest non-label defined symbol at or
// before address in section, falling back to section+offset.
func nearestPriorSymbol(section *SectionNode, address uint32) string {
	type def struct {
		address uint32
		name    string
	}
	var defs []def

	for e := section.Definitions().Front(); e != nil; e = section.Definitions().Next(e) {
		symbol := e.Source()
		if symbol.IsSectionSymbol() || symbol.IsLabel() {
			continue
		}
		defs = append(defs, def{address: e.Weight().Address(), name: symbol.DemangledName()})
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].address < defs[j].address })

	best := ""
	for _, d := range defs {
		if d.address > address {
			break
		}
		best = d.name
	}
	if best != "" {
		return best
	}
	return fmt.Sprintf("%s+%#x", section.Name(), address)
}

func definitionSites(sb *strings.Builder, symbol *SymbolNode) {
	defs := symbol.Definitions()
	count := 0
	for e := defs.Front(); e != nil; e = defs.Next(e) {
		if count == 5 {
			break
		}
		count++
		fmt.Fprintf(sb, "\n>>> defined at %s", e.Target().Coff())
	}
	if remaining := defs.Len() - count; remaining > 0 {
		fmt.Fprintf(sb, "\n>>> defined %d more times", remaining)
	}
}

// UndefinedSymbolError reports a symbol no source could resolve, with
// up to five reference sites.
type UndefinedSymbolError struct {
	Symbol *SymbolNode
}

func (e *UndefinedSymbolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "undefined symbol: %s", e.Symbol.DemangledName())
	referenceSites(&sb, e.Symbol)
	return sb.String()
}

// DuplicateSymbolError reports a symbol with multiple non-COMDAT
// definitions.
type DuplicateSymbolError struct {
	Symbol *SymbolNode
}

func (e *DuplicateSymbolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "duplicate symbol: %s", e.Symbol.DemangledName())
	definitionSites(&sb, e.Symbol)
	return sb.String()
}

// MultiplyDefinedSymbolError reports COMDAT definitions violating their
// declared selection.
type MultiplyDefinedSymbolError struct {
	Symbol *SymbolNode
}

func (e *MultiplyDefinedSymbolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "multiply defined symbol: %s", e.Symbol.DemangledName())
	definitionSites(&sb, e.Symbol)
	return sb.String()
}

// DiscardedSectionError is a fatal layout error: a surviving relocation
// targets a symbol whose every definition was discarded.
type DiscardedSectionError struct {
	CoffName  string
	Reference string
	Symbol    string
}

func (e *DiscardedSectionError) Error() string {
	return fmt.Sprintf("%s: %s references symbol '%s' defined in discarded section.",
		e.CoffName, e.Reference, e.Symbol)
}

// RelocationBoundsError is a fatal layout error: a relocation does not
// fit inside its section's data.
type RelocationBoundsError struct {
	CoffName string
	Section  string
	Address  uint32
	Size     uint32
}

func (e *RelocationBoundsError) Error() string {
	return fmt.Sprintf("%s: %s+%#x relocation is outside section bounds (size = %#x).",
		e.CoffName, e.Section, e.Address, e.Size)
}

// RelocationOverflowError is a fatal layout error: the relocation
// adjustment overflowed 32 bits.
type RelocationOverflowError struct {
	CoffName string
	Section  string
	Address  uint32
}

func (e *RelocationOverflowError) Error() string {
	return fmt.Sprintf("%s: relocation adjustment at '%s+%#x' overflowed.",
		e.CoffName, e.Section, e.Address)
}
