// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package archive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bofld/bofld/internal/archive"
	"github.com/bofld/bofld/internal/coff"
	"github.com/bofld/bofld/internal/cofftest"
)

func simpleObject(symbol string) []byte {
	obj := &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{{
			Name:            ".text",
			Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			Data:            []byte{0xc3},
		}},
		Symbols: []cofftest.Symbol{
			{Name: symbol, SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
		},
	}
	return obj.Bytes()
}

func TestRejectNotArchive(t *testing.T) {
	_, err := archive.Parse([]byte("not an archive"))
	assert.ErrorIs(t, err, archive.ErrNotArchive)
}

func TestRejectThinArchive(t *testing.T) {
	_, err := archive.Parse([]byte("!<thin>\n"))
	assert.ErrorIs(t, err, archive.ErrThinArchive)
}

func TestRejectMissingSymbolMap(t *testing.T) {
	_, err := archive.Parse([]byte("!<arch>\n"))
	assert.ErrorIs(t, err, archive.ErrNoSymbolMap)
}

func TestExtractCoffMember(t *testing.T) {
	data := cofftest.Archive([]cofftest.ArchiveMember{
		{Name: "one.o", Data: simpleObject("alpha"), Symbols: []string{"alpha"}},
		{Name: "two.o", Data: simpleObject("beta"), Symbols: []string{"beta"}},
	})

	a, err := archive.Parse(data)
	require.NoError(t, err)

	extracted, err := a.ExtractSymbol("beta")
	require.NoError(t, err)
	assert.Equal(t, "two.o", extracted.Name)
	require.NotNil(t, extracted.Coff)
	assert.Nil(t, extracted.Import)
	assert.Equal(t, "beta", extracted.Coff.Symbols()[0].Name)
}

func TestExtractMiss(t *testing.T) {
	data := cofftest.Archive([]cofftest.ArchiveMember{
		{Name: "one.o", Data: simpleObject("alpha"), Symbols: []string{"alpha"}},
	})

	a, err := archive.Parse(data)
	require.NoError(t, err)

	_, err = a.ExtractSymbol("missing")
	assert.ErrorIs(t, err, archive.ErrNotFound)

	// Lookups after a miss still succeed from the cache.
	extracted, err := a.ExtractSymbol("alpha")
	require.NoError(t, err)
	assert.Equal(t, "one.o", extracted.Name)
}

func TestExtractShortImportMember(t *testing.T) {
	data := cofftest.Archive([]cofftest.ArchiveMember{
		{
			Name:    "USER32.dll",
			Data:    cofftest.ShortImport(coff.ImageFileMachineAmd64, "MessageBoxA", "USER32.dll", 0, 1),
			Symbols: []string{"MessageBoxA", "__imp_MessageBoxA"},
		},
	})

	a, err := archive.Parse(data)
	require.NoError(t, err)

	extracted, err := a.ExtractSymbol("MessageBoxA")
	require.NoError(t, err)
	require.NotNil(t, extracted.Import)
	assert.Equal(t, "USER32.dll", extracted.Import.DLL)
	assert.Equal(t, "MessageBoxA", extracted.Import.Symbol)

	imp, err := a.ExtractImport("__imp_MessageBoxA")
	require.NoError(t, err)
	assert.Equal(t, "MessageBoxA", imp.Symbol)
}

func TestExtractImportRejectsCoff(t *testing.T) {
	data := cofftest.Archive([]cofftest.ArchiveMember{
		{Name: "one.o", Data: simpleObject("alpha"), Symbols: []string{"alpha"}},
	})

	a, err := archive.Parse(data)
	require.NoError(t, err)

	_, err = a.ExtractImport("alpha")
	assert.Error(t, err)
}

func TestMembersIteration(t *testing.T) {
	data := cofftest.Archive([]cofftest.ArchiveMember{
		{Name: "one.o", Data: simpleObject("alpha"), Symbols: []string{"alpha"}},
		{Name: "two.o", Data: simpleObject("beta"), Symbols: []string{"beta"}},
	})

	a, err := archive.Parse(data)
	require.NoError(t, err)

	members, err := a.Members()
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "one.o", members[0].Name)
	assert.Equal(t, "two.o", members[1].Name)
}

// legacyArchive builds the three-member legacy import chain for one
// symbol: symbol member, head member and tail member. The caller
// provides the import lookup table entry of the symbol member.
func legacyArchive(t *testing.T, ilt []byte) []byte {
	t.Helper()

	idata := func(name string, data []byte) cofftest.Section {
		return cofftest.Section{
			Name:            name,
			Characteristics: coff.ImageScnCntInitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
			Data:            data,
		}
	}

	// Hint bytes then the NUL-terminated import name.
	hintName := append([]byte{0, 0}, append([]byte("FrobExport"), 0)...)

	symbolMember := &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{
			{
				Name:            ".text",
				Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
				Data:            []byte{0xff, 0x25, 0, 0, 0, 0},
			},
			idata(".idata$7", make([]byte, 4)),
			idata(".idata$5", make([]byte, 8)),
			idata(".idata$4", ilt),
			idata(".idata$6", hintName),
			{
				Name:            ".data",
				Characteristics: coff.ImageScnCntInitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
				Data:            make([]byte, 4),
			},
			{
				Name:            ".bss",
				Characteristics: coff.ImageScnCntUninitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
				UninitSize:      4,
			},
		},
		Symbols: []cofftest.Symbol{
			{Name: "Frob", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
			{Name: "_head_frob_dll", SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	}

	headMember := &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{
			{
				Name:            ".text",
				Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			},
			idata(".idata$2", make([]byte, 20)),
			idata(".idata$5", make([]byte, 8)),
			idata(".idata$4", make([]byte, 8)),
			{
				Name:            ".data",
				Characteristics: coff.ImageScnCntInitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
			},
			{
				Name:            ".bss",
				Characteristics: coff.ImageScnCntUninitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
			},
		},
		Symbols: []cofftest.Symbol{
			{Name: "_head_frob_dll", SectionNumber: 2, StorageClass: coff.ImageSymClassExternal},
			{Name: "frob_dll_iname", SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	}

	tailMember := &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{
			{
				Name:            ".text",
				Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			},
			idata(".idata$4", make([]byte, 8)),
			idata(".idata$5", make([]byte, 8)),
			idata(".idata$7", append([]byte("frob.dll"), 0)),
			{
				Name:            ".data",
				Characteristics: coff.ImageScnCntInitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
			},
			{
				Name:            ".bss",
				Characteristics: coff.ImageScnCntUninitializedData | coff.ImageScnMemRead | coff.ImageScnMemWrite,
			},
		},
		Symbols: []cofftest.Symbol{
			{Name: "frob_dll_iname", SectionNumber: 4, StorageClass: coff.ImageSymClassExternal},
		},
	}

	return cofftest.Archive([]cofftest.ArchiveMember{
		{Name: "frobs.o", Data: symbolMember.Bytes(), Symbols: []string{"Frob"}},
		{Name: "frobh.o", Data: headMember.Bytes(), Symbols: []string{"_head_frob_dll"}},
		{Name: "frobt.o", Data: tailMember.Bytes(), Symbols: []string{"frob_dll_iname"}},
	})
}

func TestLegacyImportChain(t *testing.T) {
	// Import lookup table entry referencing a name (high bit clear).
	a, err := archive.Parse(legacyArchive(t, make([]byte, 8)))
	require.NoError(t, err)

	extracted, err := a.ExtractSymbol("Frob")
	require.NoError(t, err)
	require.NotNil(t, extracted.Import)

	imp := extracted.Import
	assert.Equal(t, "Frob", imp.Symbol)
	assert.Equal(t, "frob.dll", imp.DLL)
	assert.Equal(t, coff.ImportCode, imp.Type)
	assert.False(t, imp.Import.ByOrdinal)
	assert.Equal(t, "FrobExport", imp.Import.Name)

	// The head to DLL mapping is cached; a second extraction does not
	// re-walk the chain.
	again, err := a.ExtractSymbol("Frob")
	require.NoError(t, err)
	assert.Equal(t, "frob.dll", again.Import.DLL)
}

func TestLegacyImportOrdinal(t *testing.T) {
	// Import lookup table entry with the ordinal bit set and ordinal 7.
	ilt := make([]byte, 8)
	ilt[0] = 7
	ilt[7] = 0x80

	a, err := archive.Parse(legacyArchive(t, ilt))
	require.NoError(t, err)

	extracted, err := a.ExtractSymbol("Frob")
	require.NoError(t, err)
	require.NotNil(t, extracted.Import)
	require.True(t, extracted.Import.Import.ByOrdinal)
	assert.Equal(t, uint16(7), extracted.Import.Import.Ordinal)
}
