// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package cofftest assembles COFF objects and archives byte by byte for
// tests. It is deliberately independent of the reader and writer under
// test.
package cofftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var (
	le = binary.LittleEndian
	be = binary.BigEndian
)

// Section describes one section of a test object.
type Section struct {
	Name            string
	Characteristics uint32
	Data            []byte

	// UninitSize is the declared size for uninitialized sections.
	UninitSize uint32

	Relocs []Reloc
}

// Reloc is one relocation of a test section.
type Reloc struct {
	VirtualAddress   uint32
	SymbolTableIndex uint32
	Type             uint16
}

// Symbol describes one symbol table entry of a test object.
type Symbol struct {
	Name          string
	Value         uint32
	SectionNumber int16
	Type          uint16
	StorageClass  uint8
	Aux           [][18]byte
}

// AuxSection builds an auxiliary section definition record.
func AuxSection(length uint32, numRelocs uint16, checksum uint32, number uint16, selection uint8) [18]byte {
	var rec [18]byte
	le.PutUint32(rec[0:4], length)
	le.PutUint16(rec[4:6], numRelocs)
	le.PutUint32(rec[8:12], checksum)
	le.PutUint16(rec[12:14], number)
	rec[14] = selection
	return rec
}

// Object is a test COFF under construction.
type Object struct {
	Machine  uint16
	Sections []Section
	Symbols  []Symbol
}

// Bytes assembles the object.
func (o *Object) Bytes() []byte {
	const (
		fileHeaderSize    = 20
		sectionHeaderSize = 40
		symbolSize        = 18
		relocationSize    = 10
	)

	var strtab bytes.Buffer
	strtabOffset := func(name string) uint32 {
		offset := uint32(strtab.Len()) + 4
		strtab.WriteString(name)
		strtab.WriteByte(0)
		return offset
	}

	// Lay out section data and relocation offsets.
	offset := uint32(fileHeaderSize + sectionHeaderSize*len(o.Sections))
	type sectionLayout struct {
		dataPtr  uint32
		relocPtr uint32
	}
	layouts := make([]sectionLayout, len(o.Sections))

	for i := range o.Sections {
		section := &o.Sections[i]
		if section.Characteristics&0x00000080 == 0 && len(section.Data) > 0 {
			layouts[i].dataPtr = offset
			offset += uint32(len(section.Data))
		}
		if len(section.Relocs) > 0 {
			layouts[i].relocPtr = offset
			offset += uint32(len(section.Relocs)) * relocationSize
		}
	}

	symtabPtr := offset

	totalSymbols := 0
	for i := range o.Symbols {
		totalSymbols += 1 + len(o.Symbols[i].Aux)
	}

	var buf bytes.Buffer

	// File header.
	var hdr [fileHeaderSize]byte
	le.PutUint16(hdr[0:2], o.Machine)
	le.PutUint16(hdr[2:4], uint16(len(o.Sections)))
	le.PutUint32(hdr[8:12], symtabPtr)
	le.PutUint32(hdr[12:16], uint32(totalSymbols))
	buf.Write(hdr[:])

	putName := func(dst []byte, name string, section bool) {
		if len(name) <= 8 {
			copy(dst, name)
			return
		}
		offset := strtabOffset(name)
		if section {
			copy(dst, fmt.Sprintf("/%d", offset))
			return
		}
		le.PutUint32(dst[4:8], offset)
	}

	// Section headers.
	for i := range o.Sections {
		section := &o.Sections[i]
		var rec [sectionHeaderSize]byte
		putName(rec[0:8], section.Name, true)

		size := uint32(len(section.Data))
		if section.Characteristics&0x00000080 != 0 {
			size = section.UninitSize
		}
		le.PutUint32(rec[16:20], size)
		le.PutUint32(rec[20:24], layouts[i].dataPtr)
		le.PutUint32(rec[24:28], layouts[i].relocPtr)
		le.PutUint16(rec[32:34], uint16(len(section.Relocs)))
		le.PutUint32(rec[36:40], section.Characteristics)
		buf.Write(rec[:])
	}

	// Section data and relocations.
	for i := range o.Sections {
		section := &o.Sections[i]
		if layouts[i].dataPtr != 0 {
			buf.Write(section.Data)
		}
		for _, reloc := range section.Relocs {
			var rec [relocationSize]byte
			le.PutUint32(rec[0:4], reloc.VirtualAddress)
			le.PutUint32(rec[4:8], reloc.SymbolTableIndex)
			le.PutUint16(rec[8:10], reloc.Type)
			buf.Write(rec[:])
		}
	}

	// Symbol table.
	for i := range o.Symbols {
		sym := &o.Symbols[i]
		var rec [symbolSize]byte
		putName(rec[0:8], sym.Name, false)
		le.PutUint32(rec[8:12], sym.Value)
		le.PutUint16(rec[12:14], uint16(sym.SectionNumber))
		le.PutUint16(rec[14:16], sym.Type)
		rec[16] = sym.StorageClass
		rec[17] = uint8(len(sym.Aux))
		buf.Write(rec[:])
		for _, aux := range sym.Aux {
			buf.Write(aux[:])
		}
	}

	// String table.
	var size [4]byte
	le.PutUint32(size[:], uint32(strtab.Len())+4)
	buf.Write(size[:])
	buf.Write(strtab.Bytes())

	return buf.Bytes()
}

// SymbolIndexes returns the raw symbol table index of each Symbol,
// counting auxiliary slots, for wiring relocations.
func (o *Object) SymbolIndexes() []uint32 {
	indexes := make([]uint32, len(o.Symbols))
	index := uint32(0)
	for i := range o.Symbols {
		indexes[i] = index
		index += 1 + uint32(len(o.Symbols[i].Aux))
	}
	return indexes
}

// ArchiveMember is one member of a test archive.
type ArchiveMember struct {
	Name string
	Data []byte

	// Symbols lists the names the symbol map attributes to this
	// member.
	Symbols []string
}

// Archive assembles a GNU-style `!<arch>` file with a first-member
// symbol map.
func Archive(members []ArchiveMember) []byte {
	const headerSize = 60

	type symbolEntry struct {
		name   string
		member int
	}
	var symbols []symbolEntry
	for i, member := range members {
		for _, name := range member.Symbols {
			symbols = append(symbols, symbolEntry{name: name, member: i})
		}
	}

	// Build the symbol map with offsets patched in afterwards.
	var armap bytes.Buffer
	var count [4]byte
	be.PutUint32(count[:], uint32(len(symbols)))
	armap.Write(count[:])
	offsetsStart := armap.Len()
	armap.Write(make([]byte, len(symbols)*4))
	for _, sym := range symbols {
		armap.WriteString(sym.name)
		armap.WriteByte(0)
	}

	writeHeader := func(buf *bytes.Buffer, name string, size int) {
		var hdr [headerSize]byte
		for i := range hdr {
			hdr[i] = ' '
		}
		copy(hdr[0:16], name)
		copy(hdr[28:34], "0")
		copy(hdr[34:40], "0")
		copy(hdr[40:48], "0")
		copy(hdr[48:58], fmt.Sprintf("%d", size))
		copy(hdr[58:60], "`\n")
		buf.Write(hdr[:])
	}

	// Compute member offsets: magic, then the symbol map member, then
	// each regular member at an even offset.
	offset := len("!<arch>\n") + headerSize + armap.Len()
	if offset%2 != 0 {
		offset++
	}

	memberOffsets := make([]int, len(members))
	for i, member := range members {
		memberOffsets[i] = offset
		offset += headerSize + len(member.Data)
		if offset%2 != 0 {
			offset++
		}
	}

	armapBytes := armap.Bytes()
	for i, sym := range symbols {
		be.PutUint32(armapBytes[offsetsStart+i*4:], uint32(memberOffsets[sym.member]))
	}

	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	writeHeader(&buf, "/", len(armapBytes))
	buf.Write(armapBytes)
	if buf.Len()%2 != 0 {
		buf.WriteByte('\n')
	}

	for _, member := range members {
		writeHeader(&buf, member.Name+"/", len(member.Data))
		buf.Write(member.Data)
		if buf.Len()%2 != 0 {
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes()
}

// ShortImport assembles a short-form import record member.
func ShortImport(machine uint16, symbol, dll string, importType, nameType uint8) []byte {
	payload := append(append([]byte(symbol), 0), append([]byte(dll), 0)...)

	var buf bytes.Buffer
	var hdr [20]byte
	le.PutUint16(hdr[0:2], 0)
	le.PutUint16(hdr[2:4], 0xffff)
	le.PutUint16(hdr[6:8], machine)
	le.PutUint32(hdr[12:16], uint32(len(payload)))
	le.PutUint16(hdr[18:20], uint16(importType)|uint16(nameType)<<2)
	buf.Write(hdr[:])
	buf.Write(payload)
	return buf.Bytes()
}
