// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package coff

import (
	"encoding/binary"
	"fmt"
)

// Writer assembles a relocatable COFF object in two phases: the reserve
// phase lays out file offsets and symbol table indices, the write phase
// emits bytes in the same order. The caller drives both from the same
// section list. Only two ordering errors panic: ReserveFileHeader once
// the file offset has moved, and WriteFileHeader before
// ReserveSymtabStrtab.
// Other differences between the phases are not detected; WriteSymbol
// zero-fills up to the reserved symbol table offset but does not check
// that earlier writes stayed below it.
type Writer struct {
	buf []byte

	// Reserve-phase state.
	offset        uint32
	symbolCount   uint32
	sectionCount  uint16
	symtabOffset  uint32
	strtab        []byte
	strtabOffsets map[string]uint32
	reserveDone   bool
}

// Name is a symbol or section name prepared for the header record:
// either inline in the 8-byte field or an offset into the string table.
type Name struct {
	raw    [8]byte
	offset uint32
	long   bool
	// section names use the "/offset" convention instead of the
	// zero-prefix used by symbols.
	section bool
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{
		strtabOffsets: make(map[string]uint32),
	}
}

// ReserveFileHeader reserves space for the file header.
func (w *Writer) ReserveFileHeader() {
	if w.offset != 0 {
		panic("file header must be reserved first")
	}
	w.offset = FileHeaderSize
}

// ReserveSectionHeaders reserves count section headers.
func (w *Writer) ReserveSectionHeaders(count uint16) {
	w.sectionCount = count
	w.offset += uint32(count) * SectionHeaderSize
}

// ReserveSection reserves size bytes of section data, aligned to a
// 4-byte file offset, and returns the PointerToRawData value.
func (w *Writer) ReserveSection(size int) uint32 {
	if size == 0 {
		return 0
	}
	w.offset = align4(w.offset)
	start := w.offset
	w.offset += uint32(size)
	return start
}

// ReserveRelocations reserves count relocation entries and returns the
// PointerToRelocations value, zero when count is zero.
func (w *Writer) ReserveRelocations(count int) uint32 {
	if count == 0 {
		return 0
	}
	start := w.offset
	w.offset += uint32(count) * RelocationSize
	return start
}

// ReserveSymbolIndex reserves one symbol table slot and returns its
// index.
func (w *Writer) ReserveSymbolIndex() uint32 {
	index := w.symbolCount
	w.symbolCount++
	return index
}

// ReserveAuxSection reserves the auxiliary slot following a section
// symbol.
func (w *Writer) ReserveAuxSection() uint32 {
	return w.ReserveSymbolIndex()
}

// AddName interns name for a symbol record.
func (w *Writer) AddName(name string) Name {
	return w.addName(name, false)
}

// AddSectionName interns name for a section header.
func (w *Writer) AddSectionName(name string) Name {
	return w.addName(name, true)
}

func (w *Writer) addName(name string, section bool) Name {
	n := Name{section: section}
	if len(name) <= 8 {
		copy(n.raw[:], name)
		return n
	}

	offset, ok := w.strtabOffsets[name]
	if !ok {
		// Offsets are relative to the start of the table, which begins
		// with its own 4-byte size.
		offset = uint32(len(w.strtab)) + 4
		w.strtab = append(w.strtab, name...)
		w.strtab = append(w.strtab, 0)
		w.strtabOffsets[name] = offset
	}
	n.long = true
	n.offset = offset
	return n
}

// ReserveSymtabStrtab finalizes the reserve phase: symbol table followed
// by the string table.
func (w *Writer) ReserveSymtabStrtab() {
	w.symtabOffset = w.offset
	w.offset += w.symbolCount * SymbolSize
	w.offset += 4 + uint32(len(w.strtab))
	w.reserveDone = true
	w.buf = make([]byte, 0, w.offset)
}

// WriteFileHeader writes the file header using the reserved layout. The
// symbol table pointer and counts come from the reserve phase; machine,
// timestamp and characteristics from hdr.
func (w *Writer) WriteFileHeader(hdr FileHeader) {
	if !w.reserveDone {
		panic("write phase started before ReserveSymtabStrtab")
	}
	var rec [FileHeaderSize]byte
	le.PutUint16(rec[0:2], hdr.Machine)
	le.PutUint16(rec[2:4], w.sectionCount)
	le.PutUint32(rec[4:8], hdr.TimeDateStamp)
	le.PutUint32(rec[8:12], w.symtabOffset)
	le.PutUint32(rec[12:16], w.symbolCount)
	le.PutUint16(rec[16:18], 0)
	le.PutUint16(rec[18:20], hdr.Characteristics)
	w.buf = append(w.buf, rec[:]...)
}

// SectionHeader is the header for one output section.
type SectionHeader struct {
	Name                 Name
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	NumberOfRelocations  uint16
	Characteristics      uint32
}

// WriteSectionHeader writes one section header.
func (w *Writer) WriteSectionHeader(hdr SectionHeader) {
	var rec [SectionHeaderSize]byte
	w.putName(rec[0:8], hdr.Name)
	le.PutUint32(rec[16:20], hdr.SizeOfRawData)
	le.PutUint32(rec[20:24], hdr.PointerToRawData)
	le.PutUint32(rec[24:28], hdr.PointerToRelocations)
	le.PutUint16(rec[32:34], hdr.NumberOfRelocations)
	le.PutUint32(rec[36:40], hdr.Characteristics)
	w.buf = append(w.buf, rec[:]...)
}

func (w *Writer) putName(dst []byte, n Name) {
	if !n.long {
		copy(dst, n.raw[:])
		return
	}
	if n.section {
		copy(dst, fmt.Sprintf("/%d", n.offset))
		return
	}
	le.PutUint32(dst[0:4], 0)
	le.PutUint32(dst[4:8], n.offset)
}

// putSymbolName writes a name in symbol-record encoding even when the
// name was interned for a section header; section symbols share the
// header's Name handle.
func (w *Writer) putSymbolName(dst []byte, n Name) {
	if !n.long {
		copy(dst, n.raw[:])
		return
	}
	le.PutUint32(dst[0:4], 0)
	le.PutUint32(dst[4:8], n.offset)
}

// WriteSectionAlign pads the buffer to the 4-byte section data
// alignment used by ReserveSection.
func (w *Writer) WriteSectionAlign() {
	for uint32(len(w.buf))%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}

// Write appends raw section data.
func (w *Writer) Write(data []byte) {
	w.buf = append(w.buf, data...)
}

// WriteRelocation writes one relocation entry.
func (w *Writer) WriteRelocation(rel Relocation) {
	var rec [RelocationSize]byte
	le.PutUint32(rec[0:4], rel.VirtualAddress)
	le.PutUint32(rec[4:8], rel.SymbolTableIndex)
	le.PutUint16(rec[8:10], rel.Type)
	w.buf = append(w.buf, rec[:]...)
}

// SymbolRecord is one symbol table entry for the write phase.
type SymbolRecord struct {
	Name               Name
	Value              uint32
	SectionNumber      int16
	Type               uint16
	StorageClass       uint8
	NumberOfAuxSymbols uint8
}

// WriteSymbol writes one symbol table entry. The first symbol record
// must land at the reserved symbol table offset.
func (w *Writer) WriteSymbol(sym SymbolRecord) {
	if uint32(len(w.buf)) < w.symtabOffset {
		// Zero-fill any gap left by sections whose data was reserved
		// but produced fewer bytes; this keeps the symbol table at the
		// offset recorded in the file header.
		w.buf = append(w.buf, make([]byte, w.symtabOffset-uint32(len(w.buf)))...)
	}
	var rec [SymbolSize]byte
	w.putSymbolName(rec[0:8], sym.Name)
	le.PutUint32(rec[8:12], sym.Value)
	le.PutUint16(rec[12:14], uint16(sym.SectionNumber))
	le.PutUint16(rec[14:16], sym.Type)
	rec[16] = sym.StorageClass
	rec[17] = sym.NumberOfAuxSymbols
	w.buf = append(w.buf, rec[:]...)
}

// WriteAuxSection writes an auxiliary section definition record.
func (w *Writer) WriteAuxSection(aux AuxSection) {
	var rec [SymbolSize]byte
	le.PutUint32(rec[0:4], aux.Length)
	le.PutUint16(rec[4:6], aux.NumberOfRelocations)
	le.PutUint16(rec[6:8], aux.NumberOfLinenumbers)
	le.PutUint32(rec[8:12], aux.CheckSum)
	le.PutUint16(rec[12:14], aux.Number)
	rec[14] = aux.Selection
	w.buf = append(w.buf, rec[:]...)
}

// WriteStrtab writes the string table and finishes the file.
func (w *Writer) WriteStrtab() {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(w.strtab))+4)
	w.buf = append(w.buf, size[:]...)
	w.buf = append(w.buf, w.strtab...)
}

// Bytes returns the assembled object.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func align4(v uint32) uint32 {
	return (v + 3) &^ 3
}
