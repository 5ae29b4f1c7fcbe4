// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command bofdump prints the headers, sections, symbols and archive
// contents of COFF objects and import libraries.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/bofld/bofld/internal/archive"
	"github.com/bofld/bofld/internal/coff"
)

func main() {
	app := cli.NewApp()
	app.Name = "bofdump"
	app.Usage = "inspect COFF objects and import libraries"
	app.ArgsUsage = "<file>..."
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "symbols, s",
			Usage: "print the symbol table",
		},
		cli.BoolFlag{
			Name:  "relocations, r",
			Usage: "print relocation entries",
		},
	}
	app.Action = dump

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bofdump:", err)
		os.Exit(1)
	}
}

func dump(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("no input files", 1)
	}

	for _, path := range c.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		fmt.Printf("%s:\n", path)
		if bytes.HasPrefix(data, []byte(archive.Magic)) || bytes.HasPrefix(data, []byte(archive.ThinMagic)) {
			if err := dumpArchive(c, data); err != nil {
				return err
			}
		} else if coff.IsImportHeader(data) {
			if err := dumpImport(data); err != nil {
				return err
			}
		} else {
			if err := dumpCoff(c, data); err != nil {
				return err
			}
		}
		fmt.Println()
	}

	return nil
}

func dumpCoff(c *cli.Context, data []byte) error {
	obj, err := coff.Parse(data)
	if err != nil {
		return err
	}

	fmt.Printf("  machine: %#x\n", obj.Machine())
	fmt.Printf("  sections: %d, symbols: %d\n", len(obj.Sections()), obj.Header.NumberOfSymbols)

	for _, section := range obj.Sections() {
		fmt.Printf("  [%d] %-16s size=%#-8x characteristics=%#010x relocs=%d\n",
			section.Index, section.Name, section.SizeOfRawData,
			section.Characteristics, len(section.Relocations))

		if c.Bool("relocations") {
			for _, reloc := range section.Relocations {
				fmt.Printf("      reloc +%#06x type=%#06x symbol=%d\n",
					reloc.VirtualAddress, reloc.Type, reloc.SymbolTableIndex)
			}
		}
	}

	if c.Bool("symbols") {
		for _, sym := range obj.Symbols() {
			fmt.Printf("  sym [%4d] %-32s value=%#-8x section=%-3d class=%d\n",
				sym.Index, sym.Name, sym.Value, sym.SectionNumber, sym.StorageClass)
		}
	}

	return nil
}

func dumpImport(data []byte) error {
	imp, err := coff.ParseImport(data)
	if err != nil {
		return err
	}
	fmt.Printf("  short import: %s from %s as %s (%s)\n", imp.Symbol, imp.DLL, imp.Import, imp.Type)
	return nil
}

func dumpArchive(c *cli.Context, data []byte) error {
	a, err := archive.Parse(data)
	if err != nil {
		return err
	}

	members, err := a.Members()
	if err != nil {
		return err
	}

	for _, member := range members {
		kind := "coff"
		if coff.IsImportHeader(member.Data) {
			kind = "import"
		}
		fmt.Printf("  member %-24s offset=%#-8x size=%#-8x %s\n",
			member.Name, member.Offset, len(member.Data), kind)

		if kind == "import" {
			imp, err := coff.ParseImport(member.Data)
			if err != nil {
				fmt.Printf("      malformed import: %v\n", err)
				continue
			}
			fmt.Printf("      %s from %s as %s (%s)\n", imp.Symbol, imp.DLL, imp.Import, imp.Type)
		} else if c.Bool("symbols") {
			obj, err := coff.Parse(member.Data)
			if err != nil {
				continue
			}
			for _, sym := range obj.Symbols() {
				if sym.IsGlobal() {
					fmt.Printf("      global %s\n", sym.Name)
				}
			}
		}
	}

	return nil
}
