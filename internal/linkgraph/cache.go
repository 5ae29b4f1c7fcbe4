// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

// graphCache maps one input COFF's raw table indices to graph nodes
// while it is being ingested, so adjacency construction stays O(edges).
// It is cleared between inputs.
type graphCache struct {
	// symbols maps raw symbol table indices to symbol nodes.
	symbols map[int]*SymbolNode

	// sections maps 1-based section numbers to section nodes.
	sections map[int]*SectionNode

	// comdatSelections maps section numbers to the selection declared
	// by the section symbol's auxiliary record.
	comdatSelections map[int]ComdatSelection
}

func newGraphCache(symbols, sections int) *graphCache {
	return &graphCache{
		symbols:          make(map[int]*SymbolNode, symbols),
		sections:         make(map[int]*SectionNode, sections),
		comdatSelections: make(map[int]ComdatSelection),
	}
}

func (c *graphCache) clear() {
	clear(c.symbols)
	clear(c.sections)
	clear(c.comdatSelections)
}

func (c *graphCache) insertSection(index int, section *SectionNode) {
	c.sections[index] = section
}

func (c *graphCache) insertSymbol(index int, symbol *SymbolNode) {
	c.symbols[index] = symbol
}

func (c *graphCache) insertComdatSelection(index int, selection ComdatSelection) {
	c.comdatSelections[index] = selection
}

func (c *graphCache) section(index int) (*SectionNode, bool) {
	section, ok := c.sections[index]
	return section, ok
}

func (c *graphCache) symbol(index int) (*SymbolNode, bool) {
	symbol, ok := c.symbols[index]
	return symbol, ok
}

func (c *graphCache) comdatSelection(index int) (ComdatSelection, bool) {
	selection, ok := c.comdatSelections[index]
	return selection, ok
}
