// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import "fmt"

// Edge is a directed graph edge. Every edge is threaded through two
// intrusive singly-linked lists at once: the outgoing list of its
// source node and the incoming list of its target node. The two next
// pointers live in the edge itself, so walking, pushing and re-homing
// are O(1) and allocation free.
type Edge[S, T, W any] struct {
	nextOutgoing *Edge[S, T, W]
	nextIncoming *Edge[S, T, W]

	source *S
	target *T

	weight W
}

// Source returns the node this edge leaves.
func (e *Edge[S, T, W]) Source() *S {
	return e.source
}

// Target returns the node this edge enters.
func (e *Edge[S, T, W]) Target() *T {
	return e.target
}

// Weight returns the edge weight for reading or updating in place.
func (e *Edge[S, T, W]) Weight() *W {
	return &e.weight
}

// ReplaceSource re-homes the edge onto a new source node. The edge must
// have been unlinked from its previous source's outgoing list first.
func (e *Edge[S, T, W]) ReplaceSource(source *S) {
	if e.nextOutgoing != nil {
		panic("edge is still linked into an outgoing list")
	}
	e.source = source
}

// EdgeList is an adjacency list over one of an edge's two link
// directions. The incoming flag selects which next pointer the list
// threads; an edge is always a member of exactly one outgoing and one
// incoming list.
type EdgeList[S, T, W any] struct {
	head *Edge[S, T, W]
	tail *Edge[S, T, W]
	size int

	incoming bool
}

func newIncomingList[S, T, W any]() EdgeList[S, T, W] {
	return EdgeList[S, T, W]{incoming: true}
}

func (l *EdgeList[S, T, W]) link(e *Edge[S, T, W]) **Edge[S, T, W] {
	if l.incoming {
		return &e.nextIncoming
	}
	return &e.nextOutgoing
}

// Len returns the number of edges in the list.
func (l *EdgeList[S, T, W]) Len() int {
	return l.size
}

// Empty reports whether the list has no edges.
func (l *EdgeList[S, T, W]) Empty() bool {
	return l.head == nil
}

// Front returns the first edge, or nil.
func (l *EdgeList[S, T, W]) Front() *Edge[S, T, W] {
	return l.head
}

// Next returns the edge following e in this list, or nil.
func (l *EdgeList[S, T, W]) Next(e *Edge[S, T, W]) *Edge[S, T, W] {
	return *l.link(e)
}

// PushBack appends e to the list. The edge must not currently be a
// member of this list; an edge re-homed from another list may carry a
// stale next pointer, so it is reset here.
func (l *EdgeList[S, T, W]) PushBack(e *Edge[S, T, W]) {
	*l.link(e) = nil
	if l.tail != nil {
		*l.link(l.tail) = e
		l.tail = e
	} else {
		l.head = e
		l.tail = e
	}
	l.size++
}

// PopFront unlinks and returns the first edge, or nil. The edge itself
// stays alive in the arena.
func (l *EdgeList[S, T, W]) PopFront() *Edge[S, T, W] {
	removed := l.head
	if removed == nil {
		return nil
	}
	next := l.link(removed)
	l.head = *next
	*next = nil
	if l.head == nil {
		l.tail = nil
	}
	l.size--
	return removed
}

// Clear drops every edge from the list without touching the edges'
// other list membership.
func (l *EdgeList[S, T, W]) Clear() {
	l.head = nil
	l.tail = nil
	l.size = 0
}

// ComdatSelection is the COMDAT selection declared by a section
// definition; zero means the definition is not COMDAT.
type ComdatSelection uint8

const (
	SelectionNone         ComdatSelection = 0
	SelectionNoDuplicates ComdatSelection = 1
	SelectionAny          ComdatSelection = 2
	SelectionSameSize     ComdatSelection = 3
	SelectionExactMatch   ComdatSelection = 4
	SelectionAssociative  ComdatSelection = 5
	SelectionLargest      ComdatSelection = 6
)

func (s ComdatSelection) String() string {
	switch s {
	case SelectionNone:
		return "None"
	case SelectionNoDuplicates:
		return "NoDuplicates"
	case SelectionAny:
		return "Any"
	case SelectionSameSize:
		return "SameSize"
	case SelectionExactMatch:
		return "ExactMatch"
	case SelectionAssociative:
		return "Associative"
	case SelectionLargest:
		return "Largest"
	}
	return fmt.Sprintf("ComdatSelection(%d)", uint8(s))
}

// DefinitionWeight carries the symbol's offset within its section and
// the COMDAT selection when the section is COMDAT. The offset is only
// mutated for COMMON symbols, whose addresses are assigned late.
type DefinitionWeight struct {
	address   uint32
	selection ComdatSelection
}

// Address returns the symbol offset within the section.
func (w *DefinitionWeight) Address() uint32 {
	return w.address
}

// SetAddress assigns the symbol offset; used for COMMON allocation.
func (w *DefinitionWeight) SetAddress(val uint32) {
	w.address = val
}

// Selection returns the COMDAT selection, SelectionNone when the
// definition is not COMDAT.
func (w *DefinitionWeight) Selection() ComdatSelection {
	return w.selection
}

// RelocationWeight carries a relocation's offset within the source
// section and its platform type.
type RelocationWeight struct {
	address uint32
	typ     uint16
}

// Address returns the relocation offset within the section.
func (w *RelocationWeight) Address() uint32 {
	return w.address
}

// Type returns the platform relocation type.
func (w *RelocationWeight) Type() uint16 {
	return w.typ
}

// ImportWeight carries the exported name used for an import.
type ImportWeight struct {
	importName string
}

// ImportName returns the name the symbol is imported under.
func (w *ImportWeight) ImportName() string {
	return w.importName
}

// AssociativeWeight is the empty weight of an associative section edge.
type AssociativeWeight struct{}

// The concrete edge kinds.
type (
	// DefinitionEdge connects a symbol to a section defining it.
	DefinitionEdge = Edge[SymbolNode, SectionNode, DefinitionWeight]

	// RelocationEdge connects a section to a symbol it references.
	RelocationEdge = Edge[SectionNode, SymbolNode, RelocationWeight]

	// ImportEdge connects a symbol to the library importing it.
	ImportEdge = Edge[SymbolNode, LibraryNode, ImportWeight]

	// AssociativeEdge connects a COMDAT root section to a dependent
	// section whose keep/discard state follows the root's.
	AssociativeEdge = Edge[SectionNode, SectionNode, AssociativeWeight]
)
