// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import (
	"strings"

	"github.com/bofld/bofld/internal/coff"
)

// SectionName is a section name with `<group>$<ordering>` semantics.
type SectionName string

// GroupName returns the part before the first '$', or the whole name
// for ungrouped sections.
func (n SectionName) GroupName() string {
	if group, _, ok := strings.Cut(string(n), "$"); ok {
		return group
	}
	return string(n)
}

// GroupOrdering returns the part after the first '$' and whether the
// name is grouped at all.
func (n SectionName) GroupOrdering() (string, bool) {
	_, ordering, ok := strings.Cut(string(n), "$")
	return ordering, ok
}

func (n SectionName) String() string {
	return string(n)
}

// SectionData is a section's contents: a borrowed byte slice for
// initialized data, or just a size for uninitialized data.
type SectionData struct {
	bytes []byte
	size  uint32

	uninitialized bool
}

// InitializedData wraps a borrowed data slice.
func InitializedData(data []byte) SectionData {
	return SectionData{bytes: data, size: uint32(len(data))}
}

// UninitializedData records a memory size with no file contents.
func UninitializedData(size uint32) SectionData {
	return SectionData{size: size, uninitialized: true}
}

// Len returns the section's size in bytes, whether or not it has file
// contents.
func (d SectionData) Len() uint32 {
	return d.size
}

// Bytes returns the initialized contents, nil for uninitialized data.
func (d SectionData) Bytes() []byte {
	return d.bytes
}

// Uninitialized reports whether the section has no file contents.
func (d SectionData) Uninitialized() bool {
	return d.uninitialized
}

// SectionNode is a section in the link graph.
type SectionNode struct {
	// relocations is the outgoing relocation edge list.
	relocations EdgeList[SectionNode, SymbolNode, RelocationWeight]

	// definitions is the incoming definition edge list.
	definitions EdgeList[SymbolNode, SectionNode, DefinitionWeight]

	// associative is the outgoing COMDAT associative edge list.
	associative EdgeList[SectionNode, SectionNode, AssociativeWeight]

	// coff is the input this section came from.
	coff *CoffNode

	name            SectionName
	characteristics uint32
	data            SectionData
	checksum        uint32

	// virtualAddress is assigned exactly once, during layout.
	virtualAddress uint32

	discarded bool
}

// Relocations returns the section's outgoing relocation edges.
func (s *SectionNode) Relocations() *EdgeList[SectionNode, SymbolNode, RelocationWeight] {
	return &s.relocations
}

// Definitions returns the section's incoming definition edges.
func (s *SectionNode) Definitions() *EdgeList[SymbolNode, SectionNode, DefinitionWeight] {
	return &s.definitions
}

// AssociativeEdges returns the outgoing associative edges. If this
// section is kept, the adjacent sections must be kept too.
func (s *SectionNode) AssociativeEdges() *EdgeList[SectionNode, SectionNode, AssociativeWeight] {
	return &s.associative
}

// Coff returns the input COFF this section was sourced from.
func (s *SectionNode) Coff() *CoffNode {
	return s.coff
}

// Name returns the section name.
func (s *SectionNode) Name() SectionName {
	return s.name
}

// Characteristics returns the section characteristic flags.
func (s *SectionNode) Characteristics() uint32 {
	return s.characteristics
}

// Data returns the section contents.
func (s *SectionNode) Data() SectionData {
	return s.data
}

// SetUninitializedSize replaces the size of an uninitialized section.
func (s *SectionNode) SetUninitializedSize(val uint32) {
	if s.data.uninitialized {
		s.data.size = val
	}
}

// Checksum returns the section data checksum.
func (s *SectionNode) Checksum() uint32 {
	return s.checksum
}

// ReplaceChecksum sets the section data checksum.
func (s *SectionNode) ReplaceChecksum(val uint32) {
	s.checksum = val
}

// VirtualAddress returns the layout-assigned address, zero before
// layout.
func (s *SectionNode) VirtualAddress() uint32 {
	return s.virtualAddress
}

// AssignVirtualAddress records the section's address in its output
// section.
func (s *SectionNode) AssignVirtualAddress(val uint32) {
	s.virtualAddress = val
}

// Discard marks the section as dropped from the output.
func (s *SectionNode) Discard() {
	s.discarded = true
}

// SetDiscarded sets the discarded state directly; associative
// propagation may flip dependents back to kept.
func (s *SectionNode) SetDiscarded(val bool) {
	s.discarded = val
}

// IsDiscarded reports whether the section was dropped.
func (s *SectionNode) IsDiscarded() bool {
	return s.discarded
}

// IsComdat reports whether the section has the COMDAT flag.
func (s *SectionNode) IsComdat() bool {
	return s.characteristics&coff.ImageScnLnkComdat != 0
}

// IsDebug reports whether this is one of the dropped debug sections.
func (s *SectionNode) IsDebug() bool {
	if s.name.GroupName() != ".debug" {
		return false
	}
	ordering, ok := s.name.GroupOrdering()
	return ok && (ordering == "S" || ordering == "T" || ordering == "P" || ordering == "F")
}

// AssociativeBFS visits this section and every transitive associative
// dependent exactly once, in breadth-first order.
func (s *SectionNode) AssociativeBFS(visit func(*SectionNode)) {
	queue := []*SectionNode{s}
	visited := map[*SectionNode]struct{}{s: {}}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		for e := next.associative.Front(); e != nil; e = next.associative.Next(e) {
			target := e.Target()
			if _, seen := visited[target]; !seen {
				visited[target] = struct{}{}
				queue = append(queue, target)
			}
		}

		visit(next)
	}
}
