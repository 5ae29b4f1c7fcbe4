// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package coff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bofld/bofld/internal/coff"
)

// TestWriterRoundTrip drives the two-phase writer through a small
// object and parses the result back with the reader.
func TestWriterRoundTrip(t *testing.T) {
	w := coff.NewWriter()

	textData := []byte{0x48, 0x31, 0xc0, 0xc3}

	w.ReserveFileHeader()
	w.ReserveSectionHeaders(2)

	textPtr := w.ReserveSection(len(textData))
	textRelocPtr := w.ReserveRelocations(1)

	textName := w.AddSectionName(".text")
	bssName := w.AddSectionName(".bss")

	textSymIndex := w.ReserveSymbolIndex()
	w.ReserveAuxSection()
	goName := w.AddName("go")
	goIndex := w.ReserveSymbolIndex()
	longName := w.AddName("an_external_symbol_with_a_long_name")
	longIndex := w.ReserveSymbolIndex()

	w.ReserveSymtabStrtab()

	w.WriteFileHeader(coff.FileHeader{
		Machine:         coff.ImageFileMachineAmd64,
		Characteristics: coff.ImageFileLineNumsStripped,
	})

	w.WriteSectionHeader(coff.SectionHeader{
		Name:                 textName,
		SizeOfRawData:        uint32(len(textData)),
		PointerToRawData:     textPtr,
		PointerToRelocations: textRelocPtr,
		NumberOfRelocations:  1,
		Characteristics:      coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
	})
	w.WriteSectionHeader(coff.SectionHeader{
		Name:            bssName,
		SizeOfRawData:   32,
		Characteristics: coff.ImageScnCntUninitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
	})

	w.WriteSectionAlign()
	w.Write(textData)

	w.WriteRelocation(coff.Relocation{
		VirtualAddress:   2,
		SymbolTableIndex: longIndex,
		Type:             coff.ImageRelAmd64Rel32,
	})

	w.WriteSymbol(coff.SymbolRecord{
		Name:               textName,
		SectionNumber:      1,
		StorageClass:       coff.ImageSymClassStatic,
		NumberOfAuxSymbols: 1,
	})
	w.WriteAuxSection(coff.AuxSection{
		Length:              uint32(len(textData)),
		NumberOfRelocations: 1,
		Number:              1,
	})
	w.WriteSymbol(coff.SymbolRecord{
		Name:          goName,
		SectionNumber: 1,
		Type:          0x20,
		StorageClass:  coff.ImageSymClassExternal,
	})
	w.WriteSymbol(coff.SymbolRecord{
		Name:         longName,
		StorageClass: coff.ImageSymClassExternal,
	})

	w.WriteStrtab()

	parsed, err := coff.Parse(w.Bytes())
	require.NoError(t, err)

	assert.Equal(t, uint16(2), parsed.Header.NumberOfSections)
	assert.Equal(t, uint32(4), parsed.Header.NumberOfSymbols)
	assert.Equal(t, uint32(0), parsed.Header.TimeDateStamp)
	assert.Equal(t, coff.ImageFileLineNumsStripped, parsed.Header.Characteristics)

	sections := parsed.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, ".text", sections[0].Name)
	assert.Equal(t, textData, sections[0].Data)
	require.Len(t, sections[0].Relocations, 1)
	assert.Equal(t, longIndex, sections[0].Relocations[0].SymbolTableIndex)

	assert.True(t, sections[1].Uninitialized())
	assert.Equal(t, uint32(32), sections[1].SizeOfRawData)

	symbols := parsed.Symbols()
	require.Len(t, symbols, 3)
	assert.Equal(t, ".text", symbols[0].Name)
	assert.True(t, symbols[0].HasAuxSection())
	assert.Equal(t, "go", symbols[1].Name)
	assert.Equal(t, "an_external_symbol_with_a_long_name", symbols[2].Name)

	// Reserved indices line up with the written table.
	assert.Equal(t, uint32(0), textSymIndex)
	sym, ok := parsed.SymbolByIndex(goIndex)
	require.True(t, ok)
	assert.Equal(t, "go", sym.Name)
}

func TestWriterEmptyObject(t *testing.T) {
	w := coff.NewWriter()
	w.ReserveFileHeader()
	w.ReserveSectionHeaders(0)
	w.ReserveSymtabStrtab()
	w.WriteFileHeader(coff.FileHeader{Machine: coff.ImageFileMachineI386})
	w.WriteStrtab()

	parsed, err := coff.Parse(w.Bytes())
	require.NoError(t, err)
	assert.Empty(t, parsed.Sections())
	assert.Empty(t, parsed.Symbols())
}
