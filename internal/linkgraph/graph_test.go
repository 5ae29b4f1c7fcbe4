// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bofld/bofld/internal/coff"
	"github.com/bofld/bofld/internal/cofftest"
	"github.com/bofld/bofld/internal/linkgraph"
)

func parseObject(t *testing.T, obj *cofftest.Object) *coff.File {
	t.Helper()
	parsed, err := coff.Parse(obj.Bytes())
	require.NoError(t, err)
	return parsed
}

func buildGraph(t *testing.T, machine uint16, objects map[string]*coff.File, order []string) *linkgraph.LinkGraph {
	t.Helper()

	spec := linkgraph.NewSpec()
	for _, name := range order {
		spec.AddCoff(objects[name])
	}

	graph := spec.Graph(spec.Arena(), machine)
	for _, name := range order {
		require.NoError(t, graph.AddCoff(name, "", objects[name]))
	}
	return graph
}

func TestUndefinedSymbols(t *testing.T) {
	obj := parseObject(t, &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{{
			Name:            ".text",
			Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			Data:            make([]byte, 8),
			Relocs: []cofftest.Reloc{
				{VirtualAddress: 2, SymbolTableIndex: 1, Type: coff.ImageRelAmd64Rel32},
			},
		}},
		Symbols: []cofftest.Symbol{
			{Name: "go", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
			{Name: "helper", SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	})

	graph := buildGraph(t, coff.ImageFileMachineAmd64, map[string]*coff.File{"in.o": obj}, []string{"in.o"})

	assert.Equal(t, []string{"helper"}, graph.UndefinedSymbols())

	graph.AddExternalSymbol("entry")
	assert.Equal(t, []string{"helper", "entry"}, graph.UndefinedSymbols())

	_, errs := graph.Finish()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "undefined symbol: helper")
	// The reference site names the nearest prior defined symbol.
	assert.Contains(t, errs[0].Error(), "referenced by in.o:(go)")
}

func TestGlobalDeduplication(t *testing.T) {
	def := parseObject(t, &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{{
			Name:            ".text",
			Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			Data:            make([]byte, 4),
		}},
		Symbols: []cofftest.Symbol{
			{Name: "shared", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal, Type: 0x20},
		},
	})
	ref := parseObject(t, &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Symbols: []cofftest.Symbol{
			{Name: "shared", SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	})

	graph := buildGraph(t, coff.ImageFileMachineAmd64,
		map[string]*coff.File{"def.o": def, "ref.o": ref}, []string{"ref.o", "def.o"})

	// The reference and the definition resolved to one node.
	assert.Empty(t, graph.UndefinedSymbols())
}

func TestDuplicateInputSkipped(t *testing.T) {
	obj := parseObject(t, &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{{
			Name:            ".text",
			Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			Data:            make([]byte, 4),
		}},
		Symbols: []cofftest.Symbol{
			{Name: "go", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
		},
	})

	graph := buildGraph(t, coff.ImageFileMachineAmd64, map[string]*coff.File{"in.o": obj}, []string{"in.o"})

	// Same (file, member) pair again: silently skipped, no duplicate
	// symbol error.
	require.NoError(t, graph.AddCoff("in.o", "", obj))

	_, errs := graph.Finish()
	assert.Nil(t, errs)
}

func TestArchitectureMismatch(t *testing.T) {
	obj := parseObject(t, &cofftest.Object{Machine: coff.ImageFileMachineI386})

	graph := linkgraph.NewLinkGraph(linkgraph.NewSpec().Arena(), coff.ImageFileMachineAmd64)
	err := graph.AddCoff("in.o", "", obj)

	var mismatch *linkgraph.ArchitectureMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, coff.ImageFileMachineAmd64, mismatch.Expected)
	assert.Equal(t, coff.ImageFileMachineI386, mismatch.Found)
}

func TestDuplicateSymbolError(t *testing.T) {
	makeDef := func() *coff.File {
		return parseObject(t, &cofftest.Object{
			Machine: coff.ImageFileMachineAmd64,
			Sections: []cofftest.Section{{
				Name:            ".text",
				Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
				Data:            make([]byte, 4),
			}},
			Symbols: []cofftest.Symbol{
				{Name: "twice", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
			},
		})
	}

	graph := buildGraph(t, coff.ImageFileMachineAmd64,
		map[string]*coff.File{"a.o": makeDef(), "b.o": makeDef()}, []string{"a.o", "b.o"})

	_, errs := graph.Finish()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "duplicate symbol: twice")
	assert.Contains(t, errs[0].Error(), "defined at a.o")
	assert.Contains(t, errs[0].Error(), "defined at b.o")
}

func TestMultiplyDefinedSameSize(t *testing.T) {
	makeComdat := func(size int) *coff.File {
		return parseObject(t, &cofftest.Object{
			Machine: coff.ImageFileMachineAmd64,
			Sections: []cofftest.Section{{
				Name:            ".rdata",
				Characteristics: coff.ImageScnCntInitializedData | coff.ImageScnMemRead | coff.ImageScnLnkComdat,
				Data:            make([]byte, size),
			}},
			Symbols: []cofftest.Symbol{
				{
					Name:          ".rdata",
					SectionNumber: 1,
					StorageClass:  coff.ImageSymClassStatic,
					Aux:           [][18]byte{cofftest.AuxSection(uint32(size), 0, 0, 0, coff.ImageComdatSelectSameSize)},
				},
				{Name: "samesize", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
			},
		})
	}

	graph := buildGraph(t, coff.ImageFileMachineAmd64,
		map[string]*coff.File{"a.o": makeComdat(8), "b.o": makeComdat(16)}, []string{"a.o", "b.o"})

	_, errs := graph.Finish()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "multiply defined symbol: samesize")
}

func TestImportEdges(t *testing.T) {
	obj := parseObject(t, &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{{
			Name:            ".text",
			Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			Data:            make([]byte, 8),
			Relocs: []cofftest.Reloc{
				{VirtualAddress: 2, SymbolTableIndex: 1, Type: coff.ImageRelAmd64Rel32},
			},
		}},
		Symbols: []cofftest.Symbol{
			{Name: "go", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
			{Name: "MessageBoxA", SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	})

	graph := buildGraph(t, coff.ImageFileMachineAmd64, map[string]*coff.File{"in.o": obj}, []string{"in.o"})

	require.NoError(t, graph.AddLibraryImport("MessageBoxA", &coff.ImportMember{
		Machine: coff.ImageFileMachineAmd64,
		Symbol:  "MessageBoxA",
		DLL:     "USER32.dll",
		Import:  coff.ImportName{Name: "MessageBoxA"},
		Type:    coff.ImportCode,
	}))

	assert.Empty(t, graph.UndefinedSymbols())

	_, errs := graph.Finish()
	assert.Nil(t, errs)
}

func TestImportArchitectureMismatch(t *testing.T) {
	graph := linkgraph.NewLinkGraph(linkgraph.NewSpec().Arena(), coff.ImageFileMachineAmd64)
	graph.AddExternalSymbol("func")

	err := graph.AddAPIImport("func", &coff.ImportMember{
		Machine: coff.ImageFileMachineI386,
		Symbol:  "func",
		DLL:     "a.dll",
		Import:  coff.ImportName{Name: "func"},
	})

	var mismatch *linkgraph.ArchitectureMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestOrdinalImportLinksPublicName(t *testing.T) {
	graph := linkgraph.NewLinkGraph(linkgraph.NewSpec().Arena(), coff.ImageFileMachineAmd64)
	graph.AddExternalSymbol("ordfunc")

	require.NoError(t, graph.AddLibraryImport("ordfunc", &coff.ImportMember{
		Machine: coff.ImageFileMachineAmd64,
		Symbol:  "ordfunc",
		DLL:     "ord.dll",
		Import:  coff.ImportName{Ordinal: 12, ByOrdinal: true},
	}))

	// The symbol resolved by name, not ordinal; it shows in the dot
	// dump as an import of the public name.
	var dot bytes.Buffer
	require.NoError(t, graph.WriteDotGraph(&dot))
	assert.Contains(t, dot.String(), `import \"ordfunc\"`)
}

func TestCommonSymbolDefinitions(t *testing.T) {
	obj := parseObject(t, &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Symbols: []cofftest.Symbol{
			{Name: "buffer", Value: 64, SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	})

	graph := buildGraph(t, coff.ImageFileMachineAmd64, map[string]*coff.File{"in.o": obj}, []string{"in.o"})

	// COMMON symbols are defined, not undefined.
	assert.Empty(t, graph.UndefinedSymbols())
}

func TestWriteDotGraph(t *testing.T) {
	obj := parseObject(t, &cofftest.Object{
		Machine: coff.ImageFileMachineAmd64,
		Sections: []cofftest.Section{{
			Name:            ".text",
			Characteristics: coff.ImageScnCntCode | coff.ImageScnMemExecute | coff.ImageScnMemRead,
			Data:            make([]byte, 8),
			Relocs: []cofftest.Reloc{
				{VirtualAddress: 0, SymbolTableIndex: 1, Type: coff.ImageRelAmd64Rel32},
			},
		}},
		Symbols: []cofftest.Symbol{
			{Name: "go", SectionNumber: 1, StorageClass: coff.ImageSymClassExternal},
			{Name: "missing", SectionNumber: 0, StorageClass: coff.ImageSymClassExternal},
		},
	})

	graph := buildGraph(t, coff.ImageFileMachineAmd64, map[string]*coff.File{"in.o": obj}, []string{"in.o"})

	var dot bytes.Buffer
	require.NoError(t, graph.WriteDotGraph(&dot))

	out := dot.String()
	assert.True(t, strings.HasPrefix(out, "digraph {"))
	assert.Contains(t, out, ".text")
	// Undefined symbols are flagged red.
	assert.Contains(t, out, `label="missing" color=red`)
	assert.Contains(t, out, "relocation (addr 0x0)")
	assert.Contains(t, out, "defined at 0x0")
}
