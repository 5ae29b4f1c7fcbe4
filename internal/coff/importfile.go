// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package coff

import (
	"bytes"
	"fmt"
)

// ImportType classifies what kind of object an import refers to.
type ImportType uint8

const (
	ImportCode ImportType = iota
	ImportData
	ImportConst
)

func (t ImportType) String() string {
	switch t {
	case ImportCode:
		return "code"
	case ImportData:
		return "data"
	case ImportConst:
		return "const"
	}
	return fmt.Sprintf("ImportType(%d)", uint8(t))
}

// ImportName is the exported name a symbol is imported under: either a
// string name or an ordinal number.
type ImportName struct {
	Name    string
	Ordinal uint16

	// ByOrdinal selects between the two fields.
	ByOrdinal bool
}

func (n ImportName) String() string {
	if n.ByOrdinal {
		return fmt.Sprintf("#%d", n.Ordinal)
	}
	return n.Name
}

// ImportMember is one decoded import: a public symbol resolved through a
// DLL export. Both short-form import records and legacy import library
// member chains decode into this shape.
type ImportMember struct {
	// Machine value for the import.
	Machine uint16

	// Symbol is the public symbol name.
	Symbol string

	// DLL the symbol is imported from.
	DLL string

	// Import is the name exported from the DLL.
	Import ImportName

	// Type of the imported object.
	Type ImportType
}

// Short-form import header field offsets.
const (
	importHeaderSize = 20

	importNameTypeShift = 2
	importNameTypeMask  = 0x7
	importTypeMask      = 0x3

	importByOrdinal = 0
	importByName    = 1
)

// IsImportHeader reports whether data begins with the two-u16 sentinel
// of a short-form import record.
func IsImportHeader(data []byte) bool {
	return len(data) >= 4 &&
		le.Uint16(data[0:2]) == ImageFileMachineUnknown &&
		le.Uint16(data[2:4]) == 0xffff
}

// ParseImport decodes a short-form import record.
func ParseImport(data []byte) (*ImportMember, error) {
	if !IsImportHeader(data) {
		return nil, fmt.Errorf("missing short import header sentinel")
	}
	if len(data) < importHeaderSize {
		return nil, fmt.Errorf("short import header truncated (%d bytes)", len(data))
	}

	machine := le.Uint16(data[6:8])
	sizeOfData := le.Uint32(data[12:16])
	ordinalOrHint := le.Uint16(data[16:18])
	flags := le.Uint16(data[18:20])

	payload := data[importHeaderSize:]
	if uint32(len(payload)) < sizeOfData {
		return nil, fmt.Errorf("short import data truncated (%d < %d)", len(payload), sizeOfData)
	}
	payload = payload[:sizeOfData]

	symEnd := bytes.IndexByte(payload, 0)
	if symEnd < 0 {
		return nil, fmt.Errorf("short import symbol name is not NUL terminated")
	}
	symbol := string(payload[:symEnd])

	dllField := payload[symEnd+1:]
	dllEnd := bytes.IndexByte(dllField, 0)
	if dllEnd < 0 {
		return nil, fmt.Errorf("short import dll name is not NUL terminated")
	}
	dll := string(dllField[:dllEnd])

	member := &ImportMember{
		Machine: machine,
		Symbol:  symbol,
		DLL:     dll,
	}

	switch flags & importTypeMask {
	case 0:
		member.Type = ImportCode
	case 1:
		member.Type = ImportData
	case 2:
		member.Type = ImportConst
	default:
		return nil, fmt.Errorf("invalid short import type %d", flags&importTypeMask)
	}

	switch (flags >> importNameTypeShift) & importNameTypeMask {
	case importByOrdinal:
		member.Import = ImportName{Ordinal: ordinalOrHint, ByOrdinal: true}
	default:
		// All the name-based variants (name, noprefix, undecorate,
		// export-as) resolve to importing by the public symbol name.
		member.Import = ImportName{Name: symbol}
	}

	return member, nil
}
