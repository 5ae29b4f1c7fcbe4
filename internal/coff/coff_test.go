// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package coff_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bofld/bofld/internal/coff"
	"github.com/bofld/bofld/internal/cofftest"
)

func TestParseSectionsAndSymbols(t *testing.T) {
	obj := &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{
			{
				Name:            ".text",
				Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
				Data:            []byte{0x90, 0x90, 0xc3},
				Relocs: []cofftest.Reloc{
					{VirtualAddress: 1, SymbolTableIndex: 1, Type: coff.ImageRelAmd64Rel32},
				},
			},
			{
				Name:            ".bss",
				Characteristics: coff.ImageScnCntUninitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
				UninitSize:      64,
			},
		},
		Symbols: []cofftest.Symbol{
			{Name: "go", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal, Type: 0x20},
			{Name: "external_data", SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	}

	parsed, err := coff.Parse(obj.Bytes())
	require.NoError(t, err)

	assert.Equal(t, coff.ImageFileMachineAmd64, parsed.Machine())
	assert.True(t, parsed.Is64())

	sections := parsed.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, ".text", sections[0].Name)
	assert.Equal(t, []byte{0x90, 0x90, 0xc3}, sections[0].Data)

	wantRelocs := []coff.Relocation{
		{VirtualAddress: 1, SymbolTableIndex: 1, Type: coff.ImageRelAmd64Rel32},
	}
	if diff := cmp.Diff(wantRelocs, sections[0].Relocations); diff != "" {
		t.Errorf("relocation mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, sections[1].Uninitialized())
	assert.Equal(t, uint32(64), sections[1].SizeOfRawData)
	assert.Nil(t, sections[1].Data)

	symbols := parsed.Symbols()
	require.Len(t, symbols, 2)
	assert.True(t, symbols[0].IsGlobal())
	assert.True(t, symbols[0].IsDefinition())
	assert.True(t, symbols[1].IsUndefined())
	assert.False(t, symbols[1].IsCommon())
}

func TestParseCommonSymbol(t *testing.T) {
	obj := &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Symbols: []cofftest.Symbol{
			{Name: "shared", Value: 32, SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	}

	parsed, err := coff.Parse(obj.Bytes())
	require.NoError(t, err)
	require.Len(t, parsed.Symbols(), 1)
	assert.True(t, parsed.Symbols()[0].IsCommon())
}

func TestParseLongNames(t *testing.T) {
	obj := &cofftest.Object{
		Machine: coff.ImageFileMachineI386,
		Sections: []cofftest.Section{{
			Name:            ".myverylongsection",
			Characteristics: coff.ImageScnCntInitializedData,
			Data:            []byte{1, 2, 3, 4},
		}},
		Symbols: []cofftest.Symbol{
			{Name: "a_symbol_name_longer_than_eight", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
		},
	}

	parsed, err := coff.Parse(obj.Bytes())
	require.NoError(t, err)
	assert.Equal(t, ".myverylongsection", parsed.Sections()[0].Name)
	assert.Equal(t, "a_symbol_name_longer_than_eight", parsed.Symbols()[0].Name)
}

func TestParseAuxSection(t *testing.T) {
	obj := &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{{
			Name:            ".rdata",
			Characteristics: coff.ImageScnCntInitializedData | coff.ImageScnLnkComdat,
			Data:            make([]byte, 12),
		}},
		Symbols: []cofftest.Symbol{
			{
				Name:          ".rdata",
				SectionNumber: 1,
				StorageClass:  coff.ImageSymClassStatic,
				Aux:           [][18]byte{cofftest.AuxSection(12, 0, 0xdeadbeef, 0, coff.ImageComdatSelectAny)},
			},
			{Name: "value", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
		},
	}

	parsed, err := coff.Parse(obj.Bytes())
	require.NoError(t, err)

	symbols := parsed.Symbols()
	require.Len(t, symbols, 2)
	require.True(t, symbols[0].HasAuxSection())

	aux, err := symbols[0].AuxSection()
	require.NoError(t, err)
	assert.Equal(t, uint32(12), aux.Length)
	assert.Equal(t, uint32(0xdeadbeef), aux.CheckSum)
	assert.Equal(t, coff.ImageComdatSelectAny, aux.Selection)

	// Relocation symbol indices count aux slots.
	sym, ok := parsed.SymbolByIndex(2)
	require.True(t, ok)
	assert.Equal(t, "value", sym.Name)
}

func TestRejectUnknownMachine(t *testing.T) {
	obj := &cofftest.Object{Machine: 0x1c0} // ARM
	_, err := coff.Parse(obj.Bytes())
	assert.Error(t, err)
}

func TestAlignmentCharacteristics(t *testing.T) {
	assert.Equal(t, uint32(1), coff.Alignment(coff.ImageScnAlign1Bytes))
	assert.Equal(t, uint32(8), coff.Alignment(coff.ImageScnAlign8Bytes))
	assert.Equal(t, uint32(8192), coff.Alignment(coff.ImageScnAlign8192Bytes))
	assert.Equal(t, uint32(0), coff.Alignment(0))

	assert.Equal(t, coff.ImageScnAlign16Bytes, coff.AlignCharacteristic(16))
	assert.Equal(t, uint32(0), coff.ZeroAlign(coff.ImageScnAlign4096Bytes))
}

func TestShortImportRoundTrip(t *testing.T) {
	data := cofftest.ShortImport(coff.ImageFileMachineAmd64, "MessageBoxA", "USER32.dll", 0, 1)

	require.True(t, coff.IsImportHeader(data))

	imp, err := coff.ParseImport(data)
	require.NoError(t, err)
	assert.Equal(t, "MessageBoxA", imp.Symbol)
	assert.Equal(t, "USER32.dll", imp.DLL)
	assert.Equal(t, coff.ImportCode, imp.Type)
	assert.False(t, imp.Import.ByOrdinal)
	assert.Equal(t, "MessageBoxA", imp.Import.Name)
}

func TestShortImportKinds(t *testing.T) {
	for _, tc := range []struct {
		importType uint8
		want       coff.ImportType
	}{
		{0, coff.ImportCode},
		{1, coff.ImportData},
		{2, coff.ImportConst},
	} {
		data := cofftest.ShortImport(coff.ImageFileMachineAmd64, "sym", "a.dll", tc.importType, 1)
		imp, err := coff.ParseImport(data)
		require.NoError(t, err)
		assert.Equal(t, tc.want, imp.Type)
	}
}

func TestShortImportOrdinal(t *testing.T) {
	data := cofftest.ShortImport(coff.ImageFileMachineAmd64, "ordfunc", "ord.dll", 0, 0)
	// Patch in the ordinal value.
	data[16] = 42

	imp, err := coff.ParseImport(data)
	require.NoError(t, err)
	require.True(t, imp.Import.ByOrdinal)
	assert.Equal(t, uint16(42), imp.Import.Ordinal)
}

func TestNonImportRejected(t *testing.T) {
	obj := &cofftest.Object{Machine: coff.ImageFileMachineAmd64}
	data := obj.Bytes()
	assert.False(t, coff.IsImportHeader(data))
	_, err := coff.ParseImport(data)
	assert.Error(t, err)
}
